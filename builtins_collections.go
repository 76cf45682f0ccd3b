package tinyjs

// builtins_collections.go implements Map/Set (linear-scan, SameValueZero-
// keyed -- spec.md's object model names Map/Set as exotic kinds but
// never mandates a hash-table implementation strategy, so a simple
// slice-backed association list is an acceptable simplification for
// a "core" engine) and the Promise
// reaction routines that ride on microtask.go's job queue.

type mapEntry struct {
	key, value Value
}

type mapState struct {
	entries []mapEntry
}

func newMapValue(ctx *Context) Value {
	o := newOrdinaryObject(ctx.realm.mapPrototype)
	o.kind = objectKindMap
	o.aux = &mapState{}
	cp := ctx.heap.Alloc(heapKindObject, o)
	return objectValue(cp)
}

func thisMap(ctx *Context, this Value) (*mapState, error) {
	if !this.IsObject() {
		return nil, ctx.ThrowTypeError("Map method called on non-object")
	}
	o := ctx.heap.Decode(this.ref_()).(*jsObject)
	if o.kind != objectKindMap {
		return nil, ctx.ThrowTypeError("Map method called on non-Map")
	}
	return o.aux.(*mapState), nil
}

func builtinMapGet(ctx *Context, this Value, args []Value) (Value, error) {
	m, err := thisMap(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 {
		return Undefined, nil
	}
	for _, e := range m.entries {
		if sameValueZero(ctx, e.key, args[0]) {
			return e.value, nil
		}
	}
	return Undefined, nil
}

func builtinMapSet(ctx *Context, this Value, args []Value) (Value, error) {
	m, err := thisMap(ctx, this)
	if err != nil {
		return Value{}, err
	}
	var key, val Value = Undefined, Undefined
	if len(args) > 0 {
		key = args[0]
	}
	if len(args) > 1 {
		val = args[1]
	}
	for i := range m.entries {
		if sameValueZero(ctx, m.entries[i].key, key) {
			m.entries[i].value = val
			return this, nil
		}
	}
	m.entries = append(m.entries, mapEntry{key: key, value: val})
	return this, nil
}

func builtinMapHas(ctx *Context, this Value, args []Value) (Value, error) {
	m, err := thisMap(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 {
		return False, nil
	}
	for _, e := range m.entries {
		if sameValueZero(ctx, e.key, args[0]) {
			return True, nil
		}
	}
	return False, nil
}

func builtinMapDelete(ctx *Context, this Value, args []Value) (Value, error) {
	m, err := thisMap(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 {
		return False, nil
	}
	for i, e := range m.entries {
		if sameValueZero(ctx, e.key, args[0]) {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return True, nil
		}
	}
	return False, nil
}

type setState struct {
	values []Value
}

func newSetValue(ctx *Context) Value {
	o := newOrdinaryObject(ctx.realm.setPrototype)
	o.kind = objectKindSet
	o.aux = &setState{}
	cp := ctx.heap.Alloc(heapKindObject, o)
	return objectValue(cp)
}

func thisSet(ctx *Context, this Value) (*setState, error) {
	if !this.IsObject() {
		return nil, ctx.ThrowTypeError("Set method called on non-object")
	}
	o := ctx.heap.Decode(this.ref_()).(*jsObject)
	if o.kind != objectKindSet {
		return nil, ctx.ThrowTypeError("Set method called on non-Set")
	}
	return o.aux.(*setState), nil
}

func builtinSetAdd(ctx *Context, this Value, args []Value) (Value, error) {
	s, err := thisSet(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 {
		return this, nil
	}
	for _, v := range s.values {
		if sameValueZero(ctx, v, args[0]) {
			return this, nil
		}
	}
	s.values = append(s.values, args[0])
	return this, nil
}

func builtinSetHas(ctx *Context, this Value, args []Value) (Value, error) {
	s, err := thisSet(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 {
		return False, nil
	}
	for _, v := range s.values {
		if sameValueZero(ctx, v, args[0]) {
			return True, nil
		}
	}
	return False, nil
}

func builtinSetDelete(ctx *Context, this Value, args []Value) (Value, error) {
	s, err := thisSet(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 {
		return False, nil
	}
	for i, v := range s.values {
		if sameValueZero(ctx, v, args[0]) {
			s.values = append(s.values[:i], s.values[i+1:]...)
			return True, nil
		}
	}
	return False, nil
}

// --- Promise ---

type promiseReactionState byte

const (
	promisePending promiseReactionState = iota
	promiseFulfilled
	promiseRejected
)

type reaction struct {
	onFulfilled, onRejected Value
	resultPromise           *jsObject
}

type promiseState struct {
	state     promiseReactionState
	result    Value
	reactions []reaction
}

func newPromiseValue(ctx *Context) (Value, *promiseState) {
	o := newOrdinaryObject(ctx.realm.promisePrototype)
	o.kind = objectKindPromise
	ps := &promiseState{}
	o.aux = ps
	cp := ctx.heap.Alloc(heapKindObject, o)
	return objectValue(cp), ps
}

// resolvePromise/rejectPromise implement the settle half of spec
// §4.8's promise job model: flipping state and scheduling every
// pending reaction onto context.go's FIFO microtask queue exactly
// once, matching ECMA-262's "a promise settles at most once" rule.
func (ctx *Context) resolvePromise(ps *promiseState, v Value) {
	if ps.state != promisePending {
		return
	}
	ps.state = promiseFulfilled
	ps.result = v
	ctx.flushReactions(ps)
}

func (ctx *Context) rejectPromise(ps *promiseState, v Value) {
	if ps.state != promisePending {
		return
	}
	ps.state = promiseRejected
	ps.result = v
	ctx.flushReactions(ps)
}

func (ctx *Context) flushReactions(ps *promiseState) {
	reactions := ps.reactions
	ps.reactions = nil
	for _, r := range reactions {
		r := r
		ctx.enqueueMicrotask(func() { ctx.runReaction(ps, r) })
	}
}

func (ctx *Context) runReaction(ps *promiseState, r reaction) {
	handler := r.onFulfilled
	if ps.state == promiseRejected {
		handler = r.onRejected
	}
	resultPS := r.resultPromise.aux.(*promiseState)
	if !ctx.isCallable(handler) {
		if ps.state == promiseRejected {
			ctx.rejectPromise(resultPS, ps.result)
		} else {
			ctx.resolvePromise(resultPS, ps.result)
		}
		return
	}
	result, err := ctx.Call(handler, Undefined, []Value{ps.result})
	if err != nil {
		ctx.rejectPromise(resultPS, ctx.exceptionValue)
		ctx.ClearException()
		return
	}
	ctx.resolvePromise(resultPS, result)
}

func thisPromise(ctx *Context, this Value) (*jsObject, error) {
	if !this.IsObject() {
		return nil, ctx.ThrowTypeError("Promise method called on non-object")
	}
	o := ctx.heap.Decode(this.ref_()).(*jsObject)
	if o.kind != objectKindPromise {
		return nil, ctx.ThrowTypeError("Promise method called on non-Promise")
	}
	return o, nil
}

func builtinPromiseThen(ctx *Context, this Value, args []Value) (Value, error) {
	o, err := thisPromise(ctx, this)
	if err != nil {
		return Value{}, err
	}
	var onFulfilled, onRejected Value = Undefined, Undefined
	if len(args) > 0 {
		onFulfilled = args[0]
	}
	if len(args) > 1 {
		onRejected = args[1]
	}
	resultVal, resultPS := newPromiseValue(ctx)
	resultObj := ctx.heap.Decode(resultVal.ref_()).(*jsObject)
	_ = resultPS
	ps := o.aux.(*promiseState)
	r := reaction{onFulfilled: onFulfilled, onRejected: onRejected, resultPromise: resultObj}
	if ps.state == promisePending {
		ps.reactions = append(ps.reactions, r)
	} else {
		ctx.enqueueMicrotask(func() { ctx.runReaction(ps, r) })
	}
	return resultVal, nil
}

func builtinPromiseCatch(ctx *Context, this Value, args []Value) (Value, error) {
	var onRejected Value = Undefined
	if len(args) > 0 {
		onRejected = args[0]
	}
	return builtinPromiseThen(ctx, this, []Value{Undefined, onRejected})
}

// --- WeakMap / WeakSet / WeakRef / FinalizationRegistry ---
//
// Entries/targets below hold a bare cpointer to the key/target rather
// than a Value wrapping one, and gc.go's markAux deliberately does not
// trace through it -- that's what makes the reference weak. gc.go's
// pruneWeakContainers drops (or, for WeakRef, clears) any entry whose
// key/target cell was swept in the cycle that just ran, and its
// ephemeron fixpoint pass keeps a WeakMap's *value* alive exactly as
// long as its key is independently reachable (ECMA-262 WeakMap
// semantics), not for the container's own lifetime.

type weakMapEntry struct {
	key   cpointer
	value Value
}

type weakMapState struct {
	entries []weakMapEntry
}

func newWeakMapValue(ctx *Context) Value {
	o := newOrdinaryObject(ctx.realm.weakMapPrototype)
	o.kind = objectKindWeakMap
	o.aux = &weakMapState{}
	cp := ctx.heap.Alloc(heapKindObject, o)
	return objectValue(cp)
}

func thisWeakMap(ctx *Context, this Value) (*weakMapState, error) {
	if !this.IsObject() {
		return nil, ctx.ThrowTypeError("WeakMap method called on non-object")
	}
	o := ctx.heap.Decode(this.ref_()).(*jsObject)
	if o.kind != objectKindWeakMap {
		return nil, ctx.ThrowTypeError("WeakMap method called on non-WeakMap")
	}
	return o.aux.(*weakMapState), nil
}

// weakKeyOf validates that v is a key WeakMap/WeakSet/WeakRef/
// FinalizationRegistry may hold weakly: an object (ECMA-262 also
// permits non-registered symbols, omitted here -- spec.md's §1
// Non-goals exclude the registered-symbol machinery that distinction
// depends on).
func weakKeyOf(ctx *Context, v Value) (cpointer, error) {
	if !v.IsObject() {
		return nullCPointer, ctx.ThrowTypeError("Invalid value used as weak collection key")
	}
	return v.ref_(), nil
}

func builtinWeakMapGet(ctx *Context, this Value, args []Value) (Value, error) {
	m, err := thisWeakMap(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 || !args[0].IsObject() {
		return Undefined, nil
	}
	key := args[0].ref_()
	for _, e := range m.entries {
		if e.key == key {
			return e.value, nil
		}
	}
	return Undefined, nil
}

func builtinWeakMapSet(ctx *Context, this Value, args []Value) (Value, error) {
	m, err := thisWeakMap(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 {
		return Value{}, ctx.ThrowTypeError("Invalid value used as weak collection key")
	}
	key, err := weakKeyOf(ctx, args[0])
	if err != nil {
		return Value{}, err
	}
	val := Undefined
	if len(args) > 1 {
		val = args[1]
	}
	for i := range m.entries {
		if m.entries[i].key == key {
			m.entries[i].value = val
			return this, nil
		}
	}
	m.entries = append(m.entries, weakMapEntry{key: key, value: val})
	return this, nil
}

func builtinWeakMapHas(ctx *Context, this Value, args []Value) (Value, error) {
	m, err := thisWeakMap(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 || !args[0].IsObject() {
		return False, nil
	}
	key := args[0].ref_()
	for _, e := range m.entries {
		if e.key == key {
			return True, nil
		}
	}
	return False, nil
}

func builtinWeakMapDelete(ctx *Context, this Value, args []Value) (Value, error) {
	m, err := thisWeakMap(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 || !args[0].IsObject() {
		return False, nil
	}
	key := args[0].ref_()
	for i, e := range m.entries {
		if e.key == key {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return True, nil
		}
	}
	return False, nil
}

type weakSetState struct {
	targets []cpointer
}

func newWeakSetValue(ctx *Context) Value {
	o := newOrdinaryObject(ctx.realm.weakSetPrototype)
	o.kind = objectKindWeakSet
	o.aux = &weakSetState{}
	cp := ctx.heap.Alloc(heapKindObject, o)
	return objectValue(cp)
}

func thisWeakSet(ctx *Context, this Value) (*weakSetState, error) {
	if !this.IsObject() {
		return nil, ctx.ThrowTypeError("WeakSet method called on non-object")
	}
	o := ctx.heap.Decode(this.ref_()).(*jsObject)
	if o.kind != objectKindWeakSet {
		return nil, ctx.ThrowTypeError("WeakSet method called on non-WeakSet")
	}
	return o.aux.(*weakSetState), nil
}

func builtinWeakSetAdd(ctx *Context, this Value, args []Value) (Value, error) {
	s, err := thisWeakSet(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 {
		return Value{}, ctx.ThrowTypeError("Invalid value used in weak set")
	}
	target, err := weakKeyOf(ctx, args[0])
	if err != nil {
		return Value{}, err
	}
	for _, t := range s.targets {
		if t == target {
			return this, nil
		}
	}
	s.targets = append(s.targets, target)
	return this, nil
}

func builtinWeakSetHas(ctx *Context, this Value, args []Value) (Value, error) {
	s, err := thisWeakSet(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 || !args[0].IsObject() {
		return False, nil
	}
	target := args[0].ref_()
	for _, t := range s.targets {
		if t == target {
			return True, nil
		}
	}
	return False, nil
}

func builtinWeakSetDelete(ctx *Context, this Value, args []Value) (Value, error) {
	s, err := thisWeakSet(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 || !args[0].IsObject() {
		return False, nil
	}
	target := args[0].ref_()
	for i, t := range s.targets {
		if t == target {
			s.targets = append(s.targets[:i], s.targets[i+1:]...)
			return True, nil
		}
	}
	return False, nil
}

type weakRefState struct {
	target cpointer
}

// newWeakRefWithTarget backs `new WeakRef(target)` (vm.go's Construct,
// routed off *weakRefCtorState, parallel to Promise's executor-driven
// bespoke construction).
func newWeakRefWithTarget(ctx *Context, target Value) (Value, error) {
	cp, err := weakKeyOf(ctx, target)
	if err != nil {
		return Value{}, err
	}
	o := newOrdinaryObject(ctx.realm.weakRefPrototype)
	o.kind = objectKindWeakRef
	o.aux = &weakRefState{target: cp}
	valCP := ctx.heap.Alloc(heapKindObject, o)
	return objectValue(valCP), nil
}

func builtinWeakRefDeref(ctx *Context, this Value, args []Value) (Value, error) {
	if !this.IsObject() {
		return Value{}, ctx.ThrowTypeError("WeakRef method called on non-object")
	}
	o := ctx.heap.Decode(this.ref_()).(*jsObject)
	if o.kind != objectKindWeakRef {
		return Value{}, ctx.ThrowTypeError("WeakRef method called on non-WeakRef")
	}
	wr := o.aux.(*weakRefState)
	if wr.target.isNull() {
		return Undefined, nil
	}
	return objectValue(wr.target), nil
}

type finalizationRecord struct {
	target          cpointer
	heldValue       Value
	unregisterToken cpointer
}

type finalizationRegistryState struct {
	cleanupCallback Value
	records         []finalizationRecord
}

// newFinalizationRegistryWithCallback backs `new
// FinalizationRegistry(callback)`.
func newFinalizationRegistryWithCallback(ctx *Context, callback Value) (Value, error) {
	if !ctx.isCallable(callback) {
		return Value{}, ctx.ThrowTypeError("FinalizationRegistry callback must be callable")
	}
	o := newOrdinaryObject(ctx.realm.finalizationRegistryPrototype)
	o.kind = objectKindFinalizationRegistry
	o.aux = &finalizationRegistryState{cleanupCallback: callback}
	cp := ctx.heap.Alloc(heapKindObject, o)
	return objectValue(cp), nil
}

func thisFinalizationRegistry(ctx *Context, this Value) (*finalizationRegistryState, error) {
	if !this.IsObject() {
		return nil, ctx.ThrowTypeError("FinalizationRegistry method called on non-object")
	}
	o := ctx.heap.Decode(this.ref_()).(*jsObject)
	if o.kind != objectKindFinalizationRegistry {
		return nil, ctx.ThrowTypeError("FinalizationRegistry method called on non-FinalizationRegistry")
	}
	return o.aux.(*finalizationRegistryState), nil
}

func builtinFinalizationRegistryRegister(ctx *Context, this Value, args []Value) (Value, error) {
	fr, err := thisFinalizationRegistry(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 || !args[0].IsObject() {
		return Value{}, ctx.ThrowTypeError("FinalizationRegistry target must be an object")
	}
	target := args[0].ref_()
	held := Undefined
	if len(args) > 1 {
		held = args[1]
	}
	if held.IsObject() && held.ref_() == target {
		return Value{}, ctx.ThrowTypeError("FinalizationRegistry held value must not be the target")
	}
	var token cpointer
	if len(args) > 2 && args[2].IsObject() {
		token = args[2].ref_()
	}
	fr.records = append(fr.records, finalizationRecord{target: target, heldValue: held, unregisterToken: token})
	return Undefined, nil
}

func builtinFinalizationRegistryUnregister(ctx *Context, this Value, args []Value) (Value, error) {
	fr, err := thisFinalizationRegistry(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 || !args[0].IsObject() {
		return False, nil
	}
	token := args[0].ref_()
	removed := false
	kept := fr.records[:0]
	for _, rec := range fr.records {
		if rec.unregisterToken == token {
			removed = true
			continue
		}
		kept = append(kept, rec)
	}
	fr.records = kept
	return Bool(removed), nil
}

// weakRefCtorState/finalizationRegistryCtorState mark the two builtins
// whose `new` form takes a constructor-only argument (a target, a
// callback) rather than fitting constructGeneric's uniform no-arg
// dispatch -- vm.go's Construct recognizes both alongside
// *promiseCtorState.
type weakRefCtorState struct{}

type finalizationRegistryCtorState struct{}

func installWeakCollections(ctx *Context, r *Realm) {
	for name, route := range map[string]int{
		"get": routeWeakMapGet, "set": routeWeakMapSet, "has": routeWeakMapHas, "delete": routeWeakMapDelete,
	} {
		newBuiltin(ctx, r.weakMapPrototype, name, route, r.weakMapPrototype)
	}
	for name, route := range map[string]int{
		"add": routeWeakSetAdd, "has": routeWeakSetHas, "delete": routeWeakSetDelete,
	} {
		newBuiltin(ctx, r.weakSetPrototype, name, route, r.weakSetPrototype)
	}
	newBuiltin(ctx, r.weakRefPrototype, "deref", routeWeakRefDeref, r.weakRefPrototype)
	newBuiltin(ctx, r.finalizationRegistryPrototype, "register", routeFinalizationRegistryRegister, r.finalizationRegistryPrototype)
	newBuiltin(ctx, r.finalizationRegistryPrototype, "unregister", routeFinalizationRegistryUnregister, r.finalizationRegistryPrototype)

	weakRefCtor := newOrdinaryObject(r.functionPrototype)
	weakRefCtor.kind = objectKindBuiltin
	weakRefCtor.aux = &weakRefCtorState{}
	protoKey := stringPropKey(ctx.strings.FindOrCreate("prototype", true))
	weakRefCtor.insertProperty(&property{key: protoKey, kind: propKindData, value: objectValue(r.weakRefPrototype), writable: false, configurable: false})
	weakRefCtorCP := ctx.heap.Alloc(heapKindObject, weakRefCtor)
	r.globalEnv.createMutableBinding("WeakRef", true)
	r.globalEnv.initializeBinding("WeakRef", objectValue(weakRefCtorCP))

	finalizationCtor := newOrdinaryObject(r.functionPrototype)
	finalizationCtor.kind = objectKindBuiltin
	finalizationCtor.aux = &finalizationRegistryCtorState{}
	finalizationCtor.insertProperty(&property{key: protoKey, kind: propKindData, value: objectValue(r.finalizationRegistryPrototype), writable: false, configurable: false})
	finalizationCtorCP := ctx.heap.Alloc(heapKindObject, finalizationCtor)
	r.globalEnv.createMutableBinding("FinalizationRegistry", true)
	r.globalEnv.initializeBinding("FinalizationRegistry", objectValue(finalizationCtorCP))
}
