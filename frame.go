package tinyjs

// frame.go is the VM's call-frame representation: one per in-flight
// function activation, threaded through vm.go's CBC dispatch loop and
// Context.frames (context.go). Frames live as plain Go-heap structs
// rather than an arena slab -- gc.go's root enumeration walks
// Context.frames directly, the same approach the teacher takes for its
// own parser call stack instead of hand-rolling a stack allocator.
type frame struct {
	template *functionTemplate
	env      *lexEnv

	// localBindings gives opGetLocal/opSetLocal O(1) index access to the
	// exact same *binding cells env exposes by name. Both access paths
	// must land on one shared binding object: a nested closure reading a
	// captured outer local through the environment chain (opGetVar) has
	// to observe whatever this frame's fast path (opGetLocal/opSetLocal)
	// last wrote, and vice versa. Splitting these into two independent
	// stores -- a slot array plus a separate env -- would let the two
	// access paths silently diverge the moment a closure captured a
	// variable also touched by the fast path.
	localBindings []*binding

	stack []Value

	this      Value
	newTarget Value
	funcObj   Value // the function object executing this frame, for opMakeClass's home-object wiring and super lookups

	pc int

	// inFinally is not read or written by the VM: unwinding toward a
	// catch or finally block is driven by functionTemplate.exceptions.
	inFinally bool

	// yieldFn/awaitFn are non-nil only for a frame driven by
	// generator.go's coroutine runner (a generator or async function
	// body); opYield/opYieldStar/opAwait (vm.go) call through these
	// instead of suspending the dispatch loop directly, since Go's
	// call stack -- not an explicit resumable continuation -- is what
	// actually needs parking, and generator.go does that with a
	// goroutine instead.
	yieldFn func(ctx *Context, v Value) (Value, error)
	awaitFn func(ctx *Context, v Value) (Value, error)
}

// newFrame instantiates one call activation of template, closing over
// closureEnv (the defining function's captured environment, nil for
// the top-level program) and registering every frame-slot name as a
// binding in a single fresh declarative environment (spec §5's
// function environment record, scoped to exactly this call).
func newFrame(template *functionTemplate, closureEnv *lexEnv, this, newTarget, funcObj Value) *frame {
	env := newFunctionEnv(closureEnv)
	fr := &frame{
		template:  template,
		env:       env,
		this:      this,
		newTarget: newTarget,
		funcObj:   funcObj,
	}
	fr.localBindings = make([]*binding, len(template.localNames))
	for i, name := range template.localNames {
		env.createMutableBinding(name, false)
		env.initializeBinding(name, Undefined)
		fr.localBindings[i] = env.names[name]
	}
	return fr
}

// bindArguments positionally assigns call arguments into this frame's
// parameter slots (slot i <- args[i], or Undefined past the end of
// args) and, unless this is an arrow function (which has no `arguments`
// of its own, spec §4.7), installs an `arguments` binding built from
// the raw argument list.
//
// Default parameter values and rest-parameter gathering are not
// implemented: compileParam never emits the default-value
// expression or an opRest-driven collection step, so a defaulted or
// rest parameter behaves as a plain positional binding here, matching
// what the compiler actually produces.
func (fr *frame) bindArguments(ctx *Context, args []Value) {
	for i := 0; i < fr.template.paramCount && i < len(fr.localBindings); i++ {
		if i < len(args) {
			fr.localBindings[i].value = args[i]
		}
	}
	if fr.template.isArrow {
		return
	}
	fr.env.createMutableBinding("arguments", false)
	fr.env.initializeBinding("arguments", ctx.newArgumentsObject(args))
}

func (fr *frame) push(v Value) { fr.stack = append(fr.stack, v) }

func (fr *frame) pop() Value {
	n := len(fr.stack)
	v := fr.stack[n-1]
	fr.stack = fr.stack[:n-1]
	return v
}

func (fr *frame) popN(n int) []Value {
	idx := len(fr.stack) - n
	out := append([]Value(nil), fr.stack[idx:]...)
	fr.stack = fr.stack[:idx]
	return out
}

func (fr *frame) peek() Value         { return fr.stack[len(fr.stack)-1] }
func (fr *frame) peekAt(depth int) Value { return fr.stack[len(fr.stack)-1-depth] }
func (fr *frame) dup()                { fr.push(fr.peek()) }

// newArgumentsObject builds the array-like `arguments` binding every
// non-arrow call gets (spec §4.7): an ordinary object with indexed
// data properties and a `length`, not a true exotic Arguments object
// (no live parameter-mapping to the originating slots: a write to a
// parameter is not seen through `arguments`, and the reverse).
func (ctx *Context) newArgumentsObject(args []Value) Value {
	o := newOrdinaryObject(ctx.realm.objectPrototype)
	o.kind = objectKindArguments
	cp := ctx.heap.Alloc(heapKindObject, o)
	for i, a := range args {
		o.insertProperty(defaultDataProperty(indexPropKey(uint32(i)), a))
	}
	lengthKey := stringPropKey(ctx.strings.FindOrCreate("length", true))
	o.insertProperty(&property{key: lengthKey, kind: propKindData, value: Int(len(args)), writable: true, enumerable: false, configurable: true})
	return objectValue(cp)
}

// functionState is the aux payload for objectKindFunction objects
// (user-defined closures created by opMakeFunction/opMakeArrow/
// opMakeClass): the compiled template plus the environment captured at
// closure-creation time, and the lexical `this`/`new.target` an arrow
// function borrows from its enclosing call instead of binding its own
// (spec §4.7).
type functionState struct {
	template *functionTemplate
	env      *lexEnv

	isArrow          bool
	lexicalThis      Value
	lexicalNewTarget Value

	// homeObject backs `super.prop` resolution for methods (the
	// compiler emits no super-property opcode, so no instruction reads
	// it; it is recorded here so an opGetSuperProp
	// handler has somewhere to read it from without a functionState
	// shape change).
	homeObject Value
}

func newFunctionObject(ctx *Context, template *functionTemplate, closureEnv *lexEnv, homeObject Value) Value {
	o := newOrdinaryObject(ctx.realm.functionPrototype)
	o.kind = objectKindFunction
	o.aux = &functionState{template: template, env: closureEnv, homeObject: homeObject}
	protoObj := newOrdinaryObject(ctx.realm.objectPrototype)
	protoCP := ctx.heap.Alloc(heapKindObject, protoObj)
	cp := ctx.heap.Alloc(heapKindObject, o)
	ctorKey := stringPropKey(ctx.strings.FindOrCreate("constructor", true))
	protoObj.insertProperty(&property{key: ctorKey, kind: propKindData, value: objectValue(cp), writable: true, enumerable: false, configurable: true})
	protoKey := stringPropKey(ctx.strings.FindOrCreate("prototype", true))
	o.insertProperty(&property{key: protoKey, kind: propKindData, value: objectValue(protoCP), writable: true, enumerable: false, configurable: false})
	nameKey := stringPropKey(ctx.strings.FindOrCreate("name", true))
	o.insertProperty(&property{key: nameKey, kind: propKindData, value: stringValue(ctx.strings.FindOrCreate(template.name, isASCII(template.name))), writable: false, enumerable: false, configurable: true})
	lengthKey := stringPropKey(ctx.strings.FindOrCreate("length", true))
	o.insertProperty(&property{key: lengthKey, kind: propKindData, value: Int(template.paramCount), writable: false, enumerable: false, configurable: true})
	return objectValue(cp)
}

func newArrowFunctionObject(ctx *Context, template *functionTemplate, closureEnv *lexEnv, lexicalThis, lexicalNewTarget Value) Value {
	v := newFunctionObject(ctx, template, closureEnv, Undefined)
	o := ctx.heap.Decode(v.ref_()).(*jsObject)
	fs := o.aux.(*functionState)
	fs.isArrow = true
	fs.lexicalThis = lexicalThis
	fs.lexicalNewTarget = lexicalNewTarget
	return v
}
