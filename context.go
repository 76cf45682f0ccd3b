package tinyjs

import (
	"fmt"
	"math"
)

// context.go ties together the heap, string table, realm (global
// object + intrinsics), the live call-frame stack, and the exception
// slot into the one object the rest of the engine threads through
// every operation -- the same "one context struct passed everywhere"
// idiom the teacher uses for its own parser state (base_parser.go's
// receiver), scaled up to the handful of subsystems an ECMAScript
// engine needs instead of just a lexer cursor.
type Context struct {
	heap    *Heap
	strings *stringTable
	config  *Config
	realm   *Realm

	frames []*frame

	exceptionValue Value
	hasException   bool

	microtasks []func()

	abortReason AbortReason
	aborted     bool

	// haltEvery/haltFn back the embedder's periodic cancellation hook
	// (spec §5/§6.1 `halt_handler`): vm.go's dispatch loop calls haltFn
	// every haltEvery opcodes and throws an abort if it returns true.
	// haltEvery <= 0 disables the check entirely (the default).
	haltEvery   int
	haltOpcodes int
	haltFn      func() bool

	// logSink backs Engine.Log (spec §6.1 `log`); defaults to a no-op so
	// an embedder that never calls HaltHandler/Log pays nothing.
	logSink func(msg string)
}

// NewContext constructs a fresh global execution context (spec §6.1's
// `engine_init`): a heap sized from cfg, an empty string table, and a
// realm with every intrinsic wired up (realm.go's setupRealm).
func NewContext(cfg *Config) *Context {
	if cfg == nil {
		cfg = NewConfig()
	}
	h := NewHeap(cfg.GetInt("heap.size"))
	ctx := &Context{heap: h, strings: newStringTable(h), config: cfg, logSink: func(string) {}}
	h.SetGCTrigger(func(heap *Heap) { ctx.collectGarbage() })
	ctx.realm = setupRealm(ctx)
	return ctx
}

func (ctx *Context) globalEnv() *lexEnv { return ctx.realm.globalEnv }

// --- exception plumbing ---

// Throw sets the exception slot and returns a *RuntimeException error
// that every throwing operation must propagate immediately.
func (ctx *Context) Throw(v Value) error {
	ctx.exceptionValue = v
	ctx.hasException = true
	return &RuntimeException{Value: v}
}

func (ctx *Context) ThrowTypeError(msg string) error  { return ctx.throwNamed("TypeError", msg) }
func (ctx *Context) ThrowRangeError(msg string) error { return ctx.throwNamed("RangeError", msg) }
func (ctx *Context) ThrowReferenceError(msg string) error {
	return ctx.throwNamed("ReferenceError", msg)
}
func (ctx *Context) ThrowSyntaxError(msg string) error { return ctx.throwNamed("SyntaxError", msg) }

func (ctx *Context) throwNamed(kind, msg string) error {
	v := ctx.makeError(kind, msg)
	return ctx.Throw(v)
}

func (ctx *Context) makeError(kind, msg string) Value {
	ctorVal, _ := ctx.getGlobalBinding(kind)
	if ctorVal.IsObject() {
		v, err := ctx.Construct(ctorVal, []Value{stringValue(ctx.strings.FindOrCreate(msg, isASCII(msg)))})
		if err == nil {
			return v
		}
	}
	o := newOrdinaryObject(ctx.realm.objectPrototype)
	cp := ctx.heap.Alloc(heapKindObject, o)
	nameCP := ctx.strings.FindOrCreate("name", true)
	msgCP := ctx.strings.FindOrCreate("message", true)
	o.insertProperty(defaultDataProperty(stringPropKey(nameCP), stringValue(ctx.strings.FindOrCreate(kind, true))))
	o.insertProperty(defaultDataProperty(stringPropKey(msgCP), stringValue(ctx.strings.FindOrCreate(msg, isASCII(msg)))))
	return objectValue(cp)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func (ctx *Context) ClearException() {
	ctx.exceptionValue = Value{}
	ctx.hasException = false
}

func (ctx *Context) HasException() bool { return ctx.hasException }
func (ctx *Context) ExceptionValue() Value { return ctx.exceptionValue }

// ThrowAbort signals an unrecoverable engine condition (out-of-memory,
// an embedder-requested halt) that unwinds every frame regardless of
// any try/catch in the way (spec §4.3/§6.1's `jerry_value_is_abort`
// equivalent).
func (ctx *Context) ThrowAbort(reason AbortReason, payload Value) error {
	ctx.aborted = true
	ctx.abortReason = reason
	return &AbortError{Reason: reason, Payload: payload}
}

func (ctx *Context) Aborted() bool { return ctx.aborted }

// --- abstract operations used across object.go/array.go/env.go ---

func (ctx *Context) hasProperty(objCP cpointer, key propKey) (bool, error) {
	cur := objCP
	for !cur.isNull() {
		o := ctx.heap.Decode(cur).(*jsObject)
		if _, ok := ctx.ordinaryGetOwnProperty(o, key); ok {
			return true, nil
		}
		cur = o.proto
	}
	return false, nil
}

// Get/Set are the embedder-facing and compiler-facing property
// accessors (spec §6.1's `object_get_property`/`set_property`),
// dispatching to ordinaryGet/ordinarySet with the object itself as
// the receiver.
func (ctx *Context) Get(obj Value, key propKey) (Value, error) {
	if !obj.IsObject() {
		return ctx.getFromPrimitive(obj, key)
	}
	return ctx.ordinaryGet(obj.ref_(), key, obj)
}

func (ctx *Context) Set(obj Value, key propKey, v Value) (bool, error) {
	if !obj.IsObject() {
		return false, nil
	}
	return ctx.ordinarySet(obj.ref_(), key, v, obj)
}

// getFromPrimitive backs property access on non-object values
// (`"abc".length`, `(5).toString()`): spec §4.2's ToObject-on-read
// without materializing a wrapper object for every access.
func (ctx *Context) getFromPrimitive(v Value, key propKey) (Value, error) {
	switch v.Kind() {
	case KindString:
		if key.kind == propKeyString && ctx.stringContent(key.str) == "length" {
			return Int(ctx.stringLength(v.ref_())), nil
		}
		if key.kind == propKeyIndex {
			s := ctx.stringContent(v.ref_())
			units := []rune(s)
			if int(key.index) < len(units) {
				return stringValue(ctx.strings.FindOrCreate(string(units[key.index]), true)), nil
			}
			return Undefined, nil
		}
		return ctx.ordinaryGet(ctx.realm.stringPrototype, key, v)
	case KindNumber:
		return ctx.ordinaryGet(ctx.realm.numberPrototype, key, v)
	case KindBoolean:
		return ctx.ordinaryGet(ctx.realm.booleanPrototype, key, v)
	default:
		return Undefined, ctx.ThrowTypeError("Cannot read properties of " + v.Kind().String())
	}
}

func (ctx *Context) getGlobalBinding(name string) (Value, error) {
	return ctx.getBindingValue(ctx.realm.globalEnv, name, false)
}

// --- ToString / ToNumber / ToBoolean abstract operations (spec §4.2) ---

func (ctx *Context) ToBoolean(v Value) bool {
	switch v.Kind() {
	case KindUndefined, KindNull:
		return false
	case KindBoolean:
		return v.AsBool()
	case KindNumber:
		n := v.AsNumber()
		return n != 0 && !math.IsNaN(n)
	case KindString:
		return ctx.stringLength(v.ref_()) > 0
	default:
		return true
	}
}

func (ctx *Context) ToNumber(v Value) (float64, error) {
	switch v.Kind() {
	case KindNumber:
		return v.AsNumber(), nil
	case KindUndefined:
		return math.NaN(), nil
	case KindNull:
		return 0, nil
	case KindBoolean:
		if v.AsBool() {
			return 1, nil
		}
		return 0, nil
	case KindString:
		return parseNumericString(ctx.stringContent(v.ref_())), nil
	case KindObject:
		prim, err := ctx.ToPrimitive(v, "number")
		if err != nil {
			return 0, err
		}
		return ctx.ToNumber(prim)
	default:
		return math.NaN(), nil
	}
}

func parseNumericString(s string) float64 {
	trimmed := trimJSWhitespace(s)
	if trimmed == "" {
		return 0
	}
	var f float64
	n, err := fmt.Sscanf(trimmed, "%g", &f)
	if n != 1 || err != nil {
		return math.NaN()
	}
	return f
}

func trimJSWhitespace(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\n' || s[start] == '\r') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\n' || s[end-1] == '\r') {
		end--
	}
	return s[start:end]
}

func (ctx *Context) ToString(v Value) (cpointer, error) {
	switch v.Kind() {
	case KindString:
		return v.ref_(), nil
	case KindUndefined:
		return ctx.strings.FindOrCreate("undefined", true), nil
	case KindNull:
		return ctx.strings.FindOrCreate("null", true), nil
	case KindBoolean:
		if v.AsBool() {
			return ctx.strings.FindOrCreate("true", true), nil
		}
		return ctx.strings.FindOrCreate("false", true), nil
	case KindNumber:
		s := formatNumber(v.AsNumber())
		return ctx.strings.FindOrCreate(s, true), nil
	case KindObject:
		prim, err := ctx.ToPrimitive(v, "string")
		if err != nil {
			return nullCPointer, err
		}
		return ctx.ToString(prim)
	default:
		return nullCPointer, ctx.ThrowTypeError("Cannot convert value to string")
	}
}

// ToPrimitive implements the OrdinaryToPrimitive fallback (no
// Symbol.toPrimitive support in this port): tries valueOf then
// toString, or the reverse when hint is
// "string".
func (ctx *Context) ToPrimitive(v Value, hint string) (Value, error) {
	if !v.IsObject() {
		return v, nil
	}
	methods := []string{"valueOf", "toString"}
	if hint == "string" {
		methods = []string{"toString", "valueOf"}
	}
	for _, name := range methods {
		key := stringPropKey(ctx.strings.FindOrCreate(name, true))
		fn, err := ctx.Get(v, key)
		if err != nil {
			return Value{}, err
		}
		if ctx.isCallable(fn) {
			result, err := ctx.Call(fn, v, nil)
			if err != nil {
				return Value{}, err
			}
			if !result.IsObject() {
				return result, nil
			}
		}
	}
	return Value{}, ctx.ThrowTypeError("Cannot convert object to primitive value")
}

func (ctx *Context) isCallable(v Value) bool {
	if !v.IsObject() {
		return false
	}
	o := ctx.heap.Decode(v.ref_()).(*jsObject)
	switch o.kind {
	case objectKindFunction, objectKindBuiltin, objectKindBoundFunction:
		return true
	default:
		return false
	}
}

// proxyGet/proxySet are wired into ordinaryGet/ordinarySet's
// proxy-kind branch. handlerMethod never finds a trap, so both always
// forward to the target unchanged (spec §4.2's "no trap" fallback
// behavior); a handler's `get`/`set` methods are not called.
func (ctx *Context) proxyGet(o *jsObject, key propKey, receiver Value) (Value, error) {
	px := o.aux.(*proxyState)
	if trap, ok := px.handlerMethod("get"); ok {
		keyVal := ctx.propKeyToValue(key)
		return ctx.Call(trap, objectValue(px.handler), []Value{objectValue(px.target), keyVal, receiver})
	}
	return ctx.ordinaryGet(px.target, key, receiver)
}

func (ctx *Context) proxySet(o *jsObject, key propKey, v Value, receiver Value) (bool, error) {
	px := o.aux.(*proxyState)
	if trap, ok := px.handlerMethod("set"); ok {
		keyVal := ctx.propKeyToValue(key)
		result, err := ctx.Call(trap, objectValue(px.handler), []Value{objectValue(px.target), keyVal, v, receiver})
		if err != nil {
			return false, err
		}
		return ctx.ToBoolean(result), nil
	}
	return ctx.ordinarySet(px.target, key, v, receiver)
}

func (ctx *Context) propKeyToValue(key propKey) Value {
	switch key.kind {
	case propKeySymbol:
		return symbolValue(key.sym)
	case propKeyIndex:
		return stringValue(ctx.strings.FindOrCreate(formatNumber(float64(key.index)), true))
	default:
		return stringValue(key.str)
	}
}

type proxyState struct {
	target  cpointer
	handler cpointer
}

func (px *proxyState) handlerMethod(name string) (Value, bool) {
	return Value{}, false // the handler object is not consulted
}

// RunMicrotasks drains the job queue (spec §4.8's `run_jobs`), used by
// Promise reactions and the embedding API's event-loop integration
// point.
func (ctx *Context) RunMicrotasks() {
	for len(ctx.microtasks) > 0 {
		job := ctx.microtasks[0]
		ctx.microtasks = ctx.microtasks[1:]
		job()
	}
}

func (ctx *Context) enqueueMicrotask(job func()) {
	ctx.microtasks = append(ctx.microtasks, job)
}

func (ctx *Context) collectGarbage() {
	runGC(ctx)
}

func (ctx *Context) Heap() *Heap { return ctx.heap }
func (ctx *Context) HeapStats() HeapStats { return ctx.heap.Stats() }
