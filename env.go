package tinyjs

// env.go implements ECMA-262's lexical environment records (spec §5):
// the chain of binding scopes the compiler resolves identifiers
// against at compile time and the VM walks at run time for `eval`,
// `with`, and any binding the compiler could not resolve to a local
// slot.

type envKind byte

const (
	envKindDeclarative envKind = iota
	envKindObjectBinding
	envKindFunction
	envKindGlobal
	envKindClassPrivate // holds `#field`/`#method` bindings for one class body
	envKindWith
)

// bindingState tracks the temporal-dead-zone lifecycle spec §5
// requires for `let`/`const`/class bindings: a binding exists (is
// hoisted) before its declaration executes, but reading or writing it
// before initialization must throw a ReferenceError.
type bindingState byte

const (
	bindingUninitialized bindingState = iota
	bindingInitialized
)

type binding struct {
	value    Value
	mutable  bool // false for const bindings
	state    bindingState
	deletable bool // true only for bindings created by direct eval / var in non-strict sloppy-mode annex B paths
}

// lexEnv is the heap-independent runtime representation of one scope.
// Unlike jsString/jsObject, environments are not interned or shared by
// content, so they live as plain Go pointers reachable from call
// frames and closures rather than through a cpointer -- the GC traces
// them by walking frame.go's call-frame stack and every Function
// object's captured env pointer (gc.go's root enumeration).
type lexEnv struct {
	kind   envKind
	outer  *lexEnv
	names  map[string]*binding
	// bindingObject backs envKindObjectBinding (the `with` statement's
	// object, and historically `arguments`/global var bindings in
	// engines that model them this way; this port keeps `with` as the
	// only object-binding consumer, spec §5's module breakdown leaves
	// the rest to ordinary declarative bindings for simplicity).
	bindingObject cpointer
	// privateNames backs envKindClassPrivate: `#x` resolves by identity
	// of the class body that declared it, not by string name collision
	// across unrelated classes (spec §5 / §4.6's private-field carve-out).
	privateNames map[string]*privateName
}

// privateName is the unforgeable token a class body's `#field`/`#method`
// declarations mint; object.go's property model never stores private
// members as propKey string entries specifically so unrelated code
// holding the string "x" cannot collide with `#x` (spec §4.6).
type privateName struct {
	description string
	isMethod    bool
	isAccessor  bool
	get, set    Value
}

func newDeclarativeEnv(outer *lexEnv) *lexEnv {
	return &lexEnv{kind: envKindDeclarative, outer: outer, names: map[string]*binding{}}
}

func newFunctionEnv(outer *lexEnv) *lexEnv {
	e := newDeclarativeEnv(outer)
	e.kind = envKindFunction
	return e
}

func newGlobalEnv() *lexEnv {
	e := newDeclarativeEnv(nil)
	e.kind = envKindGlobal
	return e
}

func newObjectBindingEnv(outer *lexEnv, obj cpointer) *lexEnv {
	return &lexEnv{kind: envKindObjectBinding, outer: outer, bindingObject: obj}
}

func newClassPrivateEnv(outer *lexEnv) *lexEnv {
	return &lexEnv{kind: envKindClassPrivate, outer: outer, privateNames: map[string]*privateName{}}
}

// CreateMutableBinding / CreateImmutableBinding / InitializeBinding /
// GetBindingValue / SetMutableBinding mirror ECMA-262's environment
// record abstract methods (spec §5). They operate only on the
// declarative/function/global cases; object-binding and with-scope
// lookups are handled by hasBinding/getBindingValue's object-binding
// branch, which defers to ordinary [[Get]]/[[HasProperty]].

func (e *lexEnv) createMutableBinding(name string, deletable bool) {
	e.names[name] = &binding{state: bindingUninitialized, mutable: true, deletable: deletable}
}

func (e *lexEnv) createImmutableBinding(name string) {
	e.names[name] = &binding{state: bindingUninitialized, mutable: false}
}

func (e *lexEnv) initializeBinding(name string, v Value) {
	b, ok := e.names[name]
	internalAssert(ok, "initializeBinding on undeclared name "+name)
	b.value = v
	b.state = bindingInitialized
}

// hasBinding reports whether name is declared in this single
// environment record (not the chain); for object-binding environments
// it defers to the target object's [[HasProperty]].
func (ctx *Context) hasBinding(e *lexEnv, name string) (bool, error) {
	if e.kind == envKindObjectBinding {
		return ctx.hasProperty(e.bindingObject, stringPropKey(ctx.strings.FindOrCreate(name, true)))
	}
	_, ok := e.names[name]
	return ok, nil
}

// resolveBinding walks outward from e looking for name, returning the
// environment it was found in, or nil if the chain is exhausted
// (spec §5: "a failed resolution is a lexical ReferenceError, raised
// by the caller").
func (ctx *Context) resolveBinding(e *lexEnv, name string) (*lexEnv, error) {
	for cur := e; cur != nil; cur = cur.outer {
		ok, err := ctx.hasBinding(cur, name)
		if err != nil {
			return nil, err
		}
		if ok {
			return cur, nil
		}
	}
	return nil, nil
}

func (ctx *Context) getBindingValue(e *lexEnv, name string, strict bool) (Value, error) {
	if e.kind == envKindObjectBinding {
		return ctx.Get(objectValue(e.bindingObject), stringPropKey(ctx.strings.FindOrCreate(name, true)))
	}
	b, ok := e.names[name]
	internalAssert(ok, "getBindingValue on undeclared name "+name)
	if b.state == bindingUninitialized {
		return Value{}, ctx.ThrowReferenceError("Cannot access '" + name + "' before initialization")
	}
	return b.value, nil
}

func (ctx *Context) setMutableBinding(e *lexEnv, name string, v Value, strict bool) error {
	if e.kind == envKindObjectBinding {
		ok, err := ctx.Set(objectValue(e.bindingObject), stringPropKey(ctx.strings.FindOrCreate(name, true)), v)
		if err == nil && !ok && strict {
			return ctx.ThrowTypeError("Cannot assign to read only property '" + name + "'")
		}
		return err
	}
	b, ok := e.names[name]
	if !ok {
		if strict {
			return ctx.ThrowReferenceError(name + " is not defined")
		}
		ctx.globalEnv().createMutableBinding(name, true)
		ctx.globalEnv().initializeBinding(name, v)
		return nil
	}
	if b.state == bindingUninitialized {
		return ctx.ThrowReferenceError("Cannot access '" + name + "' before initialization")
	}
	if !b.mutable {
		if strict {
			return ctx.ThrowTypeError("Assignment to constant variable.")
		}
		return nil
	}
	b.value = v
	return nil
}

// lookupPrivateName searches only envKindClassPrivate frames, since
// `#x` is scoped to the nearest enclosing class body and never
// shadowed the way ordinary lexical names are (spec §4.6).
func lookupPrivateName(e *lexEnv, name string) (*privateName, bool) {
	for cur := e; cur != nil; cur = cur.outer {
		if cur.kind == envKindClassPrivate {
			if pn, ok := cur.privateNames[name]; ok {
				return pn, true
			}
		}
	}
	return nil, false
}
