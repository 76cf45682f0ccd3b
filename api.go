package tinyjs

// api.go is the public embedding surface spec §6.1 names: a handle-
// based API keyed on Value, validated by api_internal.go's thin
// wrappers before delegating to the real abstract operations that
// live in context.go/vm.go/object.go/module.go. Spec §1 is explicit
// that this surface is an external collaborator, not core-engine
// logic, so -- matching the teacher's own public `NewGrammarParser`/
// `Parse`/`Generate` entry points over its recursive-descent/codegen
// core -- every method here is a few lines of validation plus one
// call into the core.

// Engine is the embedder-facing handle wrapping one Context: spec
// §9's "Global context state... All 'current' pointers live in this
// struct", with Engine adding only the init/cleanup lifecycle and
// argument-checked wrappers around it.
type Engine struct {
	ctx *Context
}

// Init constructs a fresh engine (spec §6.1 `init(flags)`). It takes
// no flags argument; configuration comes through cfg instead (nil for
// defaults).
func Init(cfg *Config) *Engine {
	return &Engine{ctx: NewContext(cfg)}
}

// Cleanup releases the engine (spec §6.1 `cleanup()`). There is
// nothing to explicitly free beyond letting Go's own GC reclaim the
// Context and its Heap once the caller drops the last reference; this
// exists for API-shape parity and as the one place a future native
// resource (e.g., an OS-level timer registered by halt_handler) would
// be torn down.
func (e *Engine) Cleanup() {
	e.ctx = nil
}

func (e *Engine) Context() *Context { return e.ctx }

// --- Parsing & execution (spec §6.1 "Parsing"/"Execution") ---

// ParseOptions mirrors the original's `jerry_parse_options_t`: a
// subset relevant to a single-realm embedding (module parsing and an
// optional source name for error messages).
type ParseOptions struct {
	SourceName string
	IsModule   bool
}

// Parse compiles source into a callable script value without running
// it (spec §6.1 `parse`). A syntax error is returned as a Go error
// (the *ParseError itself), matching the "returns a value... or an
// exception" contract via Go's two-result idiom rather than an
// exception-tagged Value, since no Context frame is active yet to
// hold one.
func (e *Engine) Parse(source string, opts ParseOptions) (*functionTemplate, error) {
	if err := e.checkInitialized(); err != nil {
		return nil, err
	}
	prog, info, errs := ParseProgram(source)
	if len(errs) > 0 {
		errs[0].Source = opts.SourceName
		return nil, errs[0]
	}
	return CompileProgram(prog, info), nil
}

// Run executes a script template previously returned by Parse (spec
// §6.1 `run(script) -> Value`), as top-level code in the engine's one
// realm.
func (e *Engine) Run(script *functionTemplate) (Value, error) {
	if err := e.checkInitialized(); err != nil {
		return Value{}, err
	}
	fr := newFrame(script, e.ctx.realm.globalEnv, objectValue(e.ctx.realm.globalObj), Undefined, Undefined)
	return e.ctx.runFrame(fr)
}

// Eval parses and immediately runs source (spec §6.1
// `eval(source, flags) -> Value`), the one-shot convenience path the
// teacher's own `cmd/main.go` reaches for instead of separate
// parse/run calls.
func (e *Engine) Eval(source string) (Value, error) {
	template, err := e.Parse(source, ParseOptions{SourceName: "<eval>"})
	if err != nil {
		return Value{}, err
	}
	return e.Run(template)
}

// Call invokes fn as a function (spec §6.1 `call`).
func (e *Engine) Call(fn Value, this Value, args []Value) (Value, error) {
	if err := e.checkInitialized(); err != nil {
		return Value{}, err
	}
	if err := e.requireCallable(fn); err != nil {
		return Value{}, err
	}
	return e.ctx.Call(fn, this, args)
}

// Construct invokes fn via `new` (spec §6.1 `construct`).
func (e *Engine) Construct(fn Value, args []Value) (Value, error) {
	if err := e.checkInitialized(); err != nil {
		return Value{}, err
	}
	if err := e.requireCallable(fn); err != nil {
		return Value{}, err
	}
	return e.ctx.Construct(fn, args)
}

// RunJobs drains the microtask queue (spec §6.1 `run_jobs`).
func (e *Engine) RunJobs() {
	e.ctx.RunMicrotasks()
}

// --- Value constructors & predicates (spec §6.1 "Values") ---

func (e *Engine) NewBoolean(b bool) Value  { return Bool(b) }
func (e *Engine) NewNumber(n float64) Value { return Number(n) }
func (e *Engine) NewString(s string) Value { return e.ctx.newStringResult(s) }
func (e *Engine) NewNull() Value           { return Null }
func (e *Engine) NewUndefined() Value      { return Undefined }
func (e *Engine) NewSymbol(description string) Value { return e.ctx.newSymbolValue(description) }
func (e *Engine) NewBigInt(n int64) Value  { return e.ctx.newBigIntValue(n) }

func (e *Engine) NewArray() Value { return newArrayValue(e.ctx) }

func (e *Engine) NewObject() Value {
	o := newOrdinaryObject(e.ctx.realm.objectPrototype)
	cp := e.ctx.heap.Alloc(heapKindObject, o)
	return objectValue(cp)
}

// NewFunction wraps a Go closure as a callable JS function object
// (spec §6.1 `constructors for... function`), the embedder-extension
// path every `native_module` evaluation callback and host-provided
// API (resolvers, halt handlers exposed as callable script values)
// needs.
func (e *Engine) NewFunction(fn func(this Value, args []Value) (Value, error)) Value {
	return newNativeClosure(e.ctx, func(ctx *Context, this Value, args []Value) (Value, error) {
		return fn(this, args)
	})
}

func (e *Engine) NewError(kind, message string) Value {
	return e.ctx.makeError(kind, message)
}

func (e *Engine) NewRegExp(pattern, flags string) (Value, error) {
	return newRegExpValue(e.ctx, pattern, flags)
}

func (e *Engine) NewPromise() (Value, *promiseState) {
	return newPromiseValue(e.ctx)
}

// Conversions (spec §6.1 "conversions to_boolean/number/object/
// primitive/string/bigint").
func (e *Engine) ToBoolean(v Value) bool            { return e.ctx.ToBoolean(v) }
func (e *Engine) ToNumber(v Value) (float64, error) { return e.ctx.ToNumber(v) }
func (e *Engine) ToString(v Value) (string, error) {
	cp, err := e.ctx.ToString(v)
	if err != nil {
		return "", err
	}
	return e.ctx.stringContent(cp), nil
}
func (e *Engine) ToPrimitive(v Value, hint string) (Value, error) { return e.ctx.ToPrimitive(v, hint) }
func (e *Engine) ToObject(v Value) (Value, error) {
	if v.IsObject() {
		return v, nil
	}
	if v.IsNullish() {
		return Value{}, e.ctx.ThrowTypeError("Cannot convert undefined or null to object")
	}
	kind := map[Kind]string{KindString: "String", KindNumber: "Number", KindBoolean: "Boolean"}[v.Kind()]
	if kind == "" {
		return Value{}, e.ctx.ThrowTypeError("Cannot convert value to object")
	}
	return constructPrimitiveWrapper(e.ctx, kind, []Value{v})
}

// Type predicates (spec §6.1 "type predicates").
func (e *Engine) IsUndefined(v Value) bool { return v.IsUndefined() }
func (e *Engine) IsNull(v Value) bool      { return v.IsNull() }
func (e *Engine) IsBoolean(v Value) bool   { return v.IsBoolean() }
func (e *Engine) IsNumber(v Value) bool    { return v.IsNumber() }
func (e *Engine) IsString(v Value) bool    { return v.IsString() }
func (e *Engine) IsObject(v Value) bool    { return v.IsObject() }
func (e *Engine) IsCallable(v Value) bool  { return e.ctx.isCallable(v) }
func (e *Engine) IsArray(v Value) bool {
	return v.IsObject() && e.ctx.heap.Decode(v.ref_()).(*jsObject).kind == objectKindArray
}
func (e *Engine) IsException(v Value) bool { return v.IsException() }
func (e *Engine) IsAbort(err error) bool {
	_, ok := err.(*AbortError)
	return ok
}
func (e *Engine) IsError(v Value) bool {
	return v.IsObject() && e.ctx.heap.Decode(v.ref_()).(*jsObject).kind == objectKindError
}

// --- Properties (spec §6.1 "Properties") ---

func (e *Engine) Has(obj Value, key Value) (bool, error) {
	if err := e.requireObject(obj); err != nil {
		return false, err
	}
	pk, err := e.toPropKey(key)
	if err != nil {
		return false, err
	}
	return e.ctx.hasProperty(obj.ref_(), pk)
}

func (e *Engine) HasOwn(obj Value, key Value) (bool, error) {
	if err := e.requireObject(obj); err != nil {
		return false, err
	}
	pk, err := e.toPropKey(key)
	if err != nil {
		return false, err
	}
	o := e.ctx.heap.Decode(obj.ref_()).(*jsObject)
	_, ok := e.ctx.ordinaryGetOwnProperty(o, pk)
	return ok, nil
}

func (e *Engine) Get(obj Value, key Value) (Value, error) {
	pk, err := e.toPropKey(key)
	if err != nil {
		return Value{}, err
	}
	return e.ctx.Get(obj, pk)
}

func (e *Engine) Set(obj Value, key Value, v Value) (bool, error) {
	if err := e.requireObject(obj); err != nil {
		return false, err
	}
	pk, err := e.toPropKey(key)
	if err != nil {
		return false, err
	}
	return e.ctx.Set(obj, pk, v)
}

func (e *Engine) Delete(obj Value, key Value) (bool, error) {
	if err := e.requireObject(obj); err != nil {
		return false, err
	}
	pk, err := e.toPropKey(key)
	if err != nil {
		return false, err
	}
	o := e.ctx.heap.Decode(obj.ref_()).(*jsObject)
	return e.ctx.ordinaryDelete(o, pk), nil
}

func (e *Engine) DefineOwn(obj Value, key Value, v Value, writable, enumerable, configurable bool) (bool, error) {
	if err := e.requireObject(obj); err != nil {
		return false, err
	}
	pk, err := e.toPropKey(key)
	if err != nil {
		return false, err
	}
	o := e.ctx.heap.Decode(obj.ref_()).(*jsObject)
	p := &property{key: pk, kind: propKindData, value: v, writable: writable, enumerable: enumerable, configurable: configurable}
	return e.ctx.ordinaryDefineOwnProperty(o, pk, p), nil
}

func (e *Engine) GetOwnDescriptor(obj Value, key Value) (writable, enumerable, configurable, found bool, value Value, err error) {
	if err = e.requireObject(obj); err != nil {
		return
	}
	var pk propKey
	pk, err = e.toPropKey(key)
	if err != nil {
		return
	}
	o := e.ctx.heap.Decode(obj.ref_()).(*jsObject)
	p, ok := e.ctx.ordinaryGetOwnProperty(o, pk)
	if !ok {
		return false, false, false, false, Value{}, nil
	}
	return p.writable, p.enumerable, p.configurable, true, p.value, nil
}

// ObjectKeys returns obj's own enumerable string-keyed property names
// (spec §6.1 `object_keys`), the Object.keys() surface.
func (e *Engine) ObjectKeys(obj Value) ([]string, error) {
	if err := e.requireObject(obj); err != nil {
		return nil, err
	}
	o := e.ctx.heap.Decode(obj.ref_()).(*jsObject)
	var names []string
	for _, k := range e.ctx.ordinaryEnumerableKeys(o) {
		names = append(names, e.propKeyString(k))
	}
	return names, nil
}

// PropertyNames implements spec §6.1's `property_names(filter)`: a
// richer enumeration than ObjectKeys, gated by a bitmask of which
// property classes to include.
type PropertyNameFilter uint8

const (
	PropertyNamesIncludeNonEnumerable PropertyNameFilter = 1 << iota
	PropertyNamesIncludePrototypeChain
)

func (e *Engine) PropertyNames(obj Value, filter PropertyNameFilter) ([]string, error) {
	if err := e.requireObject(obj); err != nil {
		return nil, err
	}
	var names []string
	seen := map[string]bool{}
	cur := obj.ref_()
	for !cur.isNull() {
		o := e.ctx.heap.Decode(cur).(*jsObject)
		var keys []propKey
		if filter&PropertyNamesIncludeNonEnumerable != 0 {
			keys = e.ctx.ordinaryOwnPropertyKeys(o)
		} else {
			keys = e.ctx.ordinaryEnumerableKeys(o)
		}
		for _, k := range keys {
			s := e.propKeyString(k)
			if !seen[s] {
				seen[s] = true
				names = append(names, s)
			}
		}
		if filter&PropertyNamesIncludePrototypeChain == 0 {
			break
		}
		cur = o.proto
	}
	return names, nil
}

func (e *Engine) propKeyString(k propKey) string {
	switch k.kind {
	case propKeyIndex:
		return formatNumber(float64(k.index))
	case propKeyString:
		return e.ctx.stringContent(k.str)
	default:
		return "Symbol(" + e.ctx.symbolDescription(k.sym) + ")"
	}
}

// --- Modules (spec §6.1/§6.2) ---

func (e *Engine) ParseModule(source, name string) (*Module, error) { return e.ctx.ParseModule(source, name) }
func (e *Engine) ModuleLink(root *Module, resolve ModuleResolver) error {
	return e.ctx.LinkModule(root, resolve)
}
func (e *Engine) ModuleEvaluate(root *Module) (Value, error) { return e.ctx.EvaluateModule(root) }
func (e *Engine) ModuleState(m *Module) ModuleState          { return m.State() }
func (e *Engine) ModuleRequestCount(m *Module) int            { return m.RequestCount() }
func (e *Engine) ModuleRequest(m *Module, i int) string       { return m.Request(i) }
func (e *Engine) ModuleNamespace(m *Module) Value             { return m.ModuleNamespace() }
func (e *Engine) NativeModule(name string, exports []string, eval func(ctx *Context, m *Module) error) *Module {
	return e.ctx.NativeModule(name, exports, eval)
}

// --- Promises (spec §6.1 "Promises") ---

func (e *Engine) PromiseResolve(ps *promiseState, v Value) { e.ctx.resolvePromise(ps, v) }
func (e *Engine) PromiseReject(ps *promiseState, v Value)  { e.ctx.rejectPromise(ps, v) }
func (e *Engine) PromiseState(p Value) (string, Value, error) {
	if err := e.requireObject(p); err != nil {
		return "", Value{}, err
	}
	o := e.ctx.heap.Decode(p.ref_()).(*jsObject)
	ps, ok := o.aux.(*promiseState)
	if !ok {
		return "", Value{}, &engineError{"value is not a promise"}
	}
	switch ps.state {
	case promiseFulfilled:
		return "fulfilled", ps.result, nil
	case promiseRejected:
		return "rejected", ps.result, nil
	default:
		return "pending", Value{}, nil
	}
}

// --- Errors (spec §6.1 "Errors") ---

func (e *Engine) Throw(v Value) error             { return e.ctx.Throw(v) }
func (e *Engine) ThrowValue(v Value) error         { return e.ctx.Throw(v) }
func (e *Engine) ThrowAbort(reason AbortReason, payload Value) error {
	return e.ctx.ThrowAbort(reason, payload)
}
func (e *Engine) ExceptionValue() Value { return e.ctx.ExceptionValue() }
func (e *Engine) ClearException()       { e.ctx.ClearException() }
func (e *Engine) ErrorType(v Value) (string, error) {
	if !v.IsObject() {
		return "", &engineError{"value is not an object"}
	}
	name, err := e.ctx.Get(v, stringPropKey(e.ctx.strings.FindOrCreate("name", true)))
	if err != nil {
		return "", err
	}
	if name.IsString() {
		return e.ctx.stringContent(name.ref_()), nil
	}
	return "Error", nil
}

// --- Native pointers (spec §6.1 "Native pointers") ---

func (e *Engine) ObjectSetNativePointer(obj Value, typeInfo *NativePointerTypeInfo, ptr any) error {
	if err := e.checkNotInFinalizer(); err != nil {
		return err
	}
	if err := e.requireObject(obj); err != nil {
		return err
	}
	o := e.ctx.heap.Decode(obj.ref_()).(*jsObject)
	o.nativePtr = &nativePointerEntry{typeInfo: typeInfo, ptr: ptr}
	return nil
}

func (e *Engine) ObjectGetNativePointer(obj Value) (any, bool, error) {
	if err := e.requireObject(obj); err != nil {
		return nil, false, err
	}
	o := e.ctx.heap.Decode(obj.ref_()).(*jsObject)
	if o.nativePtr == nil {
		return nil, false, nil
	}
	return o.nativePtr.ptr, true, nil
}

func (e *Engine) ObjectHasNativePointer(obj Value) (bool, error) {
	_, ok, err := e.ObjectGetNativePointer(obj)
	return ok, err
}

func (e *Engine) ObjectDeleteNativePointer(obj Value) error {
	if err := e.checkNotInFinalizer(); err != nil {
		return err
	}
	if err := e.requireObject(obj); err != nil {
		return err
	}
	o := e.ctx.heap.Decode(obj.ref_()).(*jsObject)
	if o.nativePtr != nil && o.nativePtr.typeInfo != nil && o.nativePtr.typeInfo.FreeCB != nil {
		o.nativePtr.typeInfo.FreeCB(o.nativePtr.ptr)
	}
	o.nativePtr = nil
	return nil
}

// --- Realms (spec §6.1 "Realms") ---
//
// This port supports exactly one realm per Engine (spec §1's scope
// does not call for multi-realm `with_realm`/`Realm` host-object
// switching, and spec §9's Context owns "the" realm singular, not a
// stack of them): Realm()/RealmThis cover the single-realm case the
// rest of the API already assumes everywhere else.

func (e *Engine) Realm() *Realm { return e.ctx.realm }

func (e *Engine) RealmThis() Value { return objectValue(e.ctx.realm.globalObj) }

// --- Miscellaneous (spec §6.1 "Miscellaneous") ---

// HeapGCMode selects heap_gc's aggressiveness; this port's collector
// is always a full mark-sweep (spec §4.7 names no incremental mode),
// so both constants trigger the identical cycle -- kept as two names
// purely so embedder code written against the original's
// `JERRY_GC_PRESSURE_LOW`/`_HIGH` enum compiles against the same
// shape here.
type HeapGCMode int

const (
	HeapGCPressureLow HeapGCMode = iota
	HeapGCPressureHigh
)

func (e *Engine) HeapGC(mode HeapGCMode) { e.ctx.collectGarbage() }

func (e *Engine) HeapStats() HeapStats { return e.ctx.HeapStats() }

// RegisterMagicStrings installs embedder-defined identifiers into the
// string table ahead of time (spec §6.1 `register_magic_strings`), so
// a host binding that's invoked on every property access doesn't pay
// FindOrCreate's lookup cost the first time it runs.
func (e *Engine) RegisterMagicStrings(strs []string) {
	for _, s := range strs {
		e.ctx.strings.FindOrCreate(s, isASCII(s))
	}
}

// HaltHandler installs the periodic cancellation callback spec §5
// describes ("invoked every N opcodes... returning a special value
// causes the interpreter to throw an abort exception"). every is the
// opcode-count period; fn returning true requests an abort.
func (e *Engine) HaltHandler(every int, fn func() bool) {
	e.ctx.haltEvery = every
	e.ctx.haltFn = fn
}

// Log is the embedder-facing diagnostic sink (spec §6.1 `log`),
// gated by level against Config's `log.level`.
func (e *Engine) Log(level int, msg string) {
	if level <= e.ctx.config.GetInt("log.level") {
		e.ctx.logSink(msg)
	}
}

// Backtrace/BacktraceCapture implement spec §6.1's debugging pair: a
// snapshot of the live Context.frames call-chain, newest frame first,
// one entry per frame: its function template's name, or `<anonymous>`
// when the template has none.
func (e *Engine) BacktraceCapture(maxDepth int) []string {
	var out []string
	for i := len(e.ctx.frames) - 1; i >= 0 && (maxDepth <= 0 || len(out) < maxDepth); i-- {
		fr := e.ctx.frames[i]
		name := fr.template.name
		if name == "" {
			name = "<anonymous>"
		}
		out = append(out, name)
	}
	return out
}

func (e *Engine) Backtrace() []string { return e.BacktraceCapture(0) }
