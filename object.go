package tinyjs

// objectKind enumerates the engine's exotic-object families (spec
// §3.4's "30+ object classes", §9 "best represented as a tag byte plus
// a per-kind union of auxiliary state"). Not every kind spec.md names
// needs a distinct Go type for its auxiliary state -- `aux` below
// holds whatever the kind needs, type-asserted by the handful of
// call sites that care (built-ins, the GC's mark visitor, ToString).
type objectKind byte

const (
	objectKindPlain objectKind = iota
	objectKindArray
	objectKindFunction
	objectKindBuiltin
	objectKindBoundFunction
	objectKindError
	objectKindDate
	objectKindRegExp
	objectKindArrayBuffer
	objectKindTypedArray
	objectKindDataView
	objectKindPromise
	objectKindProxy
	objectKindGenerator
	objectKindMap
	objectKindSet
	objectKindWeakMap
	objectKindWeakSet
	objectKindWeakRef
	objectKindFinalizationRegistry
	objectKindGlobal
	objectKindArguments
	// objectKindIterator backs the runtime iterator objects
	// opGetIterator/opIteratorNext produce for for-in/for-of (vm.go):
	// not one of spec §3.4's named exotic kinds, but needed somewhere
	// to anchor the cursor state those two opcodes share across a loop.
	objectKindIterator
)

// jsObject is the heap cell payload for KindObject values (spec §3.4):
// a header plus either a property descriptor list or, for arrays in
// their fast-path storage mode, a packed element vector.
type jsObject struct {
	proto      cpointer // nullCPointer means no prototype
	kind       objectKind
	extensible bool

	propsHead  *property
	propsIndex map[propKey]*property

	// fastArray holds a dense, zero-based element vector (holes stored
	// as Empty)
	// for arrays whose keys are still a dense integer prefix with
	// default attributes (spec §3.4's "fast array" optimization).
	// `usesFastArray` is sticky-false: once an array de-optimizes it
	// never returns to fast storage (the transition is irreversible,
	// spec §3.4).
	fastArray     []Value
	usesFastArray bool
	length        uint32

	aux any

	nativePtr *nativePointerEntry // spec §6.1 object_{set,get,has,delete}_native_ptr
}

func newOrdinaryObject(proto cpointer) *jsObject {
	return &jsObject{proto: proto, kind: objectKindPlain, extensible: true, propsIndex: map[propKey]*property{}}
}

func newArrayObject(proto cpointer, compactAllocationLimit int) *jsObject {
	o := newOrdinaryObject(proto)
	o.kind = objectKindArray
	o.usesFastArray = true
	o.fastArray = make([]Value, 0, min(16, compactAllocationLimit))
	return o
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// findOwnProperty walks the descriptor list via the map index; it
// never consults the fast-array storage -- callers check
// usesFastArray/index range first (array.go).
func (o *jsObject) findOwnProperty(key propKey) (*property, bool) {
	p, ok := o.propsIndex[key]
	return p, ok
}

// insertProperty appends a new descriptor, preserving the invariant
// that the list is ordered the way it was first observed (ECMA-262's
// OrdinaryOwnPropertyKeys integer-keys-ascending-then-strings-then-
// symbols ordering is applied only when *enumerating*, by
// ordinaryEnumerableKeys/ordinaryOwnPropertyKeys below, not by storage
// order).
func (o *jsObject) insertProperty(p *property) {
	o.propsIndex[p.key] = p
	if o.propsHead == nil {
		o.propsHead = p
		return
	}
	tail := o.propsHead
	for tail.next != nil {
		tail = tail.next
	}
	tail.next = p
}

func (o *jsObject) removeProperty(key propKey) {
	delete(o.propsIndex, key)
	var prev *property
	for cur := o.propsHead; cur != nil; cur = cur.next {
		if cur.key == key {
			if prev == nil {
				o.propsHead = cur.next
			} else {
				prev.next = cur.next
			}
			return
		}
		prev = cur
	}
}

// ordinaryGetOwnProperty implements spec §4.2's
// `ordinary_get_own_property_descriptor`, including the fast-array
// and `.length` exotic cases (spec §3.4).
func (ctx *Context) ordinaryGetOwnProperty(o *jsObject, key propKey) (*property, bool) {
	if key.kind == propKeyIndex && o.usesFastArray {
		if idx := int(key.index); idx >= 0 && idx < len(o.fastArray) {
			return &property{key: key, kind: propKindData, value: o.fastArray[idx], writable: true, enumerable: true, configurable: true}, true
		}
		return nil, false
	}
	if key.kind == propKeyString && o.kind == objectKindArray && ctx.stringContent(key.str) == "length" {
		return &property{key: key, kind: propKindData, value: Int(int(o.length)), writable: !o.isLengthFrozen(), enumerable: false, configurable: false}, true
	}
	return o.findOwnProperty(key)
}

func (o *jsObject) isLengthFrozen() bool { return false }

// ordinaryGet implements the `[[Get]]` internal method: own property
// first, then the prototype chain, then accessor invocation (spec
// §4.2). `receiver` is threaded through for accessor `this` binding
// and for `Reflect.get`'s receiver override.
func (ctx *Context) ordinaryGet(startCP cpointer, key propKey, receiver Value) (Value, error) {
	cur := startCP
	for !cur.isNull() {
		o := ctx.heap.Decode(cur).(*jsObject)
		if o.kind == objectKindProxy {
			return ctx.proxyGet(o, key, receiver)
		}
		if p, ok := ctx.ordinaryGetOwnProperty(o, key); ok {
			if p.kind == propKindAccessor {
				if p.get.IsUndefined() {
					return Undefined, nil
				}
				return ctx.Call(p.get, receiver, nil)
			}
			return p.value, nil
		}
		cur = o.proto
	}
	return Undefined, nil
}

// ordinarySet implements `[[Set]]`: walks the chain looking for an
// accessor or a non-writable data property to reject on, then creates
// or updates an own data property on the receiver (spec §4.2).
func (ctx *Context) ordinarySet(startCP cpointer, key propKey, v Value, receiver Value) (bool, error) {
	cur := startCP
	for !cur.isNull() {
		o := ctx.heap.Decode(cur).(*jsObject)
		if o.kind == objectKindProxy {
			return ctx.proxySet(o, key, v, receiver)
		}
		if p, ok := ctx.ordinaryGetOwnProperty(o, key); ok {
			if p.kind == propKindAccessor {
				if p.set.IsUndefined() {
					return false, nil
				}
				_, err := ctx.Call(p.set, receiver, []Value{v})
				return err == nil, err
			}
			if !p.writable {
				return false, nil
			}
			if cur == receiver.ref_() {
				return ctx.setOwnDataProperty(o, key, v)
			}
			break
		}
		cur = o.proto
	}
	if !receiver.IsObject() {
		return false, nil
	}
	recv := ctx.heap.Decode(receiver.ref_()).(*jsObject)
	return ctx.setOwnDataProperty(recv, key, v)
}

func (ctx *Context) setOwnDataProperty(o *jsObject, key propKey, v Value) (bool, error) {
	if o.kind == objectKindArray && key.kind == propKeyIndex {
		return ctx.arraySetIndex(o, key.index, v)
	}
	if p, ok := o.findOwnProperty(key); ok {
		if p.kind == propKindAccessor || !p.writable {
			return false, nil
		}
		p.value = v
		return true, nil
	}
	if !o.extensible {
		return false, nil
	}
	o.insertProperty(defaultDataProperty(key, v))
	return true, nil
}

// ordinaryDefineOwnProperty implements `[[DefineOwnProperty]]` for the
// subset of descriptor combinations the compiler/built-ins actually
// construct (data property with explicit attributes, or accessor
// pair); full partial-descriptor merging semantics are intentionally
// out of scope (spec.md's stated non-goal: "full conformance to
// edge cases the source itself approximates").
func (ctx *Context) ordinaryDefineOwnProperty(o *jsObject, key propKey, p *property) bool {
	if key.kind == propKeyIndex && o.kind == objectKindArray && p.isDefaultAttributes() {
		ok, _ := ctx.arraySetIndex(o, key.index, p.value)
		return ok
	}
	if o.usesFastArray {
		ctx.deoptimizeFastArray(o)
	}
	if !o.extensible {
		if _, exists := o.findOwnProperty(key); !exists {
			return false
		}
	}
	p.key = key
	if existing, ok := o.findOwnProperty(key); ok {
		*existing = *p
		existing.next = existing.next
		return true
	}
	o.insertProperty(p)
	return true
}

func (ctx *Context) ordinaryDelete(o *jsObject, key propKey) bool {
	if key.kind == propKeyIndex && o.usesFastArray && int(key.index) < len(o.fastArray) {
		ctx.deoptimizeFastArray(o)
	}
	if p, ok := o.findOwnProperty(key); ok {
		if !p.configurable {
			return false
		}
		o.removeProperty(key)
		return true
	}
	return true
}

// ordinaryEnumerableKeys returns own enumerable string keys in
// ECMA-262's mandated order: integer indices ascending, then
// remaining string keys in insertion order (spec §3.4, §4.2's
// `ordinary_enumerable_keys`). Symbols are never enumerable via
// for-in (spec §4.6.3).
func (ctx *Context) ordinaryEnumerableKeys(o *jsObject) []propKey {
	var indices []propKey
	var strings []propKey
	if o.usesFastArray {
		for i := range o.fastArray {
			indices = append(indices, indexPropKey(uint32(i)))
		}
	}
	for cur := o.propsHead; cur != nil; cur = cur.next {
		if !cur.enumerable || cur.key.kind == propKeySymbol {
			continue
		}
		if cur.key.kind == propKeyIndex {
			indices = append(indices, cur.key)
		} else {
			strings = append(strings, cur.key)
		}
	}
	return append(indices, strings...)
}

func (ctx *Context) ordinaryOwnPropertyKeys(o *jsObject) []propKey {
	keys := ctx.ordinaryEnumerableKeys(o)
	for cur := o.propsHead; cur != nil; cur = cur.next {
		if cur.enumerable {
			continue
		}
		keys = append(keys, cur.key)
	}
	return keys
}

// nativePointerEntry backs spec §6.1's `object_set_native_ptr` family:
// an embedder-owned pointer tagged by a type-info descriptor that may
// itself hold Value references the GC must trace (spec §4.7's roots
// list: "each object's native-pointer table entries").
type nativePointerEntry struct {
	typeInfo *NativePointerTypeInfo
	ptr      any
}

// NativePointerTypeInfo is the embedder-supplied descriptor spec §6.1
// requires: an optional free callback plus, for embedded Value slots
// inside the native struct, a reference count and a References
// callback returning those Values, so the GC can trace through opaque
// embedder memory without understanding its layout.
type NativePointerTypeInfo struct {
	FreeCB             func(ptr any)
	NumberOfReferences int
	References         func(ptr any) []Value
}
