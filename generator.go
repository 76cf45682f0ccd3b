package tinyjs

// generator.go gives generator and async function bodies the ability
// to suspend mid-execution (vm.go's opYield/opAwait), something a
// plain Go call stack cannot do on its own. A generator body runs on
// its own goroutine; a pair of unbuffered channels hands control back
// and forth so that at any instant exactly one goroutine -- the
// caller or the suspended body -- is ever executing engine code
// against the shared Context, the same single-writer discipline the
// teacher's own recursive-descent parser gets for free from its plain
// call stack (base_parser.go), reconstructed here with channels since
// a suspended generator body needs to survive across multiple calls
// into the VM instead of one uninterrupted parse.

type coroutineMsg struct {
	value Value
	done  bool
	err   error
}

// generatorState is the aux payload for objectKindGenerator objects:
// the two handoff channels plus the finished flag that makes a
// generator's `.next()` idempotent once it has run to completion
// (spec §4.7: "a completed generator always returns {done: true}").
type generatorState struct {
	resumeCh chan coroutineMsg // caller -> body: value/error sent into a suspended yield
	yieldCh  chan coroutineMsg // body -> caller: a yielded value, or the final return/error
	finished bool

	// fr is the suspended body's call frame. While the body is parked on
	// resumeCh/yieldCh its frame stays off Context.frames (it is only
	// pushed there inside the goroutine's own runFrame call, which
	// hasn't started until the first resume), so gc.go roots it
	// directly here instead.
	fr *frame
}

func valueOrUndefined(args []Value, i int) Value {
	if i < len(args) {
		return args[i]
	}
	return Undefined
}

// startGeneratorCall implements calling a `function*`/`async function`
// (vm.go's Call dispatch, which routes here whenever the callee's
// template is a generator or async body).
func (ctx *Context) startGeneratorCall(fs *functionState, this, newTarget, fnVal Value, args []Value) (Value, error) {
	if fs.template.isAsync {
		return ctx.startAsyncCall(fs, this, newTarget, fnVal, args)
	}

	gs := &generatorState{
		resumeCh: make(chan coroutineMsg),
		yieldCh:  make(chan coroutineMsg),
	}
	fr := newFrame(fs.template, fs.env, this, newTarget, fnVal)
	fr.bindArguments(ctx, args)
	gs.fr = fr
	fr.yieldFn = func(ctx *Context, v Value) (Value, error) {
		gs.yieldCh <- coroutineMsg{value: v}
		msg := <-gs.resumeCh
		if msg.err != nil {
			return Value{}, msg.err
		}
		return msg.value, nil
	}

	go func() {
		start := <-gs.resumeCh
		if start.err != nil {
			gs.yieldCh <- coroutineMsg{done: true, err: start.err}
			return
		}
		result, err := ctx.runFrame(fr)
		gs.yieldCh <- coroutineMsg{value: result, done: true, err: err}
	}()

	o := newOrdinaryObject(ctx.realm.objectPrototype)
	o.kind = objectKindGenerator
	o.aux = gs
	cp := ctx.heap.Alloc(heapKindObject, o)

	nextFn := newNativeClosure(ctx, func(ctx *Context, this Value, args []Value) (Value, error) {
		return ctx.resumeGenerator(gs, valueOrUndefined(args, 0), nil)
	})
	throwFn := newNativeClosure(ctx, func(ctx *Context, this Value, args []Value) (Value, error) {
		return ctx.resumeGenerator(gs, Undefined, ctx.Throw(valueOrUndefined(args, 0)))
	})
	returnFn := newNativeClosure(ctx, func(ctx *Context, this Value, args []Value) (Value, error) {
		// A pending `return()` that the body never observes as a thrown
		// completion at its current yield point is out of scope
		// here: the generator is simply marked finished.
		gs.finished = true
		return ctx.newIterResult(valueOrUndefined(args, 0), true)
	})
	for name, fn := range map[string]Value{"next": nextFn, "throw": throwFn, "return": returnFn} {
		key := stringPropKey(ctx.strings.FindOrCreate(name, true))
		o.insertProperty(&property{key: key, kind: propKindData, value: fn, writable: true, enumerable: false, configurable: true})
	}

	return objectValue(cp), nil
}

// resumeGenerator drives one step of a suspended generator body: it
// hands `sent` (or a pending throw completion, carried as `err`)
// across to the goroutine parked in fr.yieldFn and blocks for the
// next yield or the body's completion.
func (ctx *Context) resumeGenerator(gs *generatorState, sent Value, err error) (Value, error) {
	if gs.finished {
		return ctx.newIterResult(Undefined, true)
	}
	gs.resumeCh <- coroutineMsg{value: sent, err: err}
	msg := <-gs.yieldCh
	if msg.done {
		gs.finished = true
		if msg.err != nil {
			if re, ok := msg.err.(*RuntimeException); ok {
				return Value{}, ctx.Throw(re.Value)
			}
			return Value{}, msg.err
		}
		return ctx.newIterResult(msg.value, true)
	}
	return ctx.newIterResult(msg.value, false)
}

func (ctx *Context) newIterResult(v Value, done bool) (Value, error) {
	o := newOrdinaryObject(ctx.realm.objectPrototype)
	cp := ctx.heap.Alloc(heapKindObject, o)
	valueKey := stringPropKey(ctx.strings.FindOrCreate("value", true))
	doneKey := stringPropKey(ctx.strings.FindOrCreate("done", true))
	o.insertProperty(&property{key: valueKey, kind: propKindData, value: v, writable: true, enumerable: true, configurable: true})
	o.insertProperty(&property{key: doneKey, kind: propKindData, value: Bool(done), writable: true, enumerable: true, configurable: true})
	return objectValue(cp), nil
}

// startAsyncCall runs an async function body to completion on the
// calling goroutine: opAwait (below) drains the microtask queue until
// the awaited value settles instead of truly suspending the call. A
// simplification: this engine has no event
// loop beyond the explicit microtask queue context.go's RunMicrotasks
// drains (spec.md's stated non-goal of a timer/macrotask facility),
// so nothing would ever advance a genuinely suspended async call
// between here and the embedder's next RunMicrotasks anyway.
func (ctx *Context) startAsyncCall(fs *functionState, this, newTarget, fnVal Value, args []Value) (Value, error) {
	resultVal, ps := newPromiseValue(ctx)
	fr := newFrame(fs.template, fs.env, this, newTarget, fnVal)
	fr.bindArguments(ctx, args)
	fr.awaitFn = func(ctx *Context, v Value) (Value, error) {
		return ctx.awaitValue(v)
	}
	result, err := ctx.runFrame(fr)
	if err != nil {
		if re, ok := err.(*RuntimeException); ok {
			ctx.rejectPromise(ps, re.Value)
			ctx.ClearException()
			return resultVal, nil
		}
		return Value{}, err
	}
	ctx.resolvePromise(ps, result)
	return resultVal, nil
}

// awaitValue implements `await v`: a non-promise (or already-settled
// promise) resolves immediately; a still-pending promise is waited
// out by repeatedly draining the microtask queue, since nothing else
// in this engine ever settles a promise except a microtask job.
func (ctx *Context) awaitValue(v Value) (Value, error) {
	if !v.IsObject() {
		return v, nil
	}
	o := ctx.heap.Decode(v.ref_()).(*jsObject)
	if o.kind != objectKindPromise {
		return v, nil
	}
	ps := o.aux.(*promiseState)
	for ps.state == promisePending && len(ctx.microtasks) > 0 {
		ctx.RunMicrotasks()
	}
	switch ps.state {
	case promiseFulfilled:
		return ps.result, nil
	case promiseRejected:
		return Value{}, ctx.Throw(ps.result)
	default:
		return Undefined, nil
	}
}
