package tinyjs

// microtask.go documents and extends the FIFO job queue context.go
// owns (`enqueueMicrotask`/`RunMicrotasks`): the Promise constructor
// and its `resolve`/`reject` statics. Jobs are also enqueued by
// promise reactions and by gc.go's FinalizationRegistry cleanup
// (spec §4.8's "run_jobs" entry point drains exactly this
// queue, with no separate macrotask/timer queue -- an explicit
// spec.md non-goal, "a polished CLI/test harness" implies no event
// loop beyond this).

type promiseCtorState struct{}

func installPromiseConstructor(ctx *Context, r *Realm) {
	o := newOrdinaryObject(r.functionPrototype)
	o.kind = objectKindBuiltin
	o.aux = &promiseCtorState{}
	key := stringPropKey(ctx.strings.FindOrCreate("prototype", true))
	o.insertProperty(&property{key: key, kind: propKindData, value: objectValue(r.promisePrototype), writable: false, configurable: false})
	cp := ctx.heap.Alloc(heapKindObject, o)
	newBuiltin(ctx, nullCPointer, "resolve", routePromiseResolve, cp)
	newBuiltin(ctx, nullCPointer, "reject", routePromiseReject, cp)
	r.globalEnv.createMutableBinding("Promise", true)
	r.globalEnv.initializeBinding("Promise", objectValue(cp))
}

func builtinPromiseResolve(ctx *Context, this Value, args []Value) (Value, error) {
	v := Undefined
	if len(args) > 0 {
		v = args[0]
	}
	resultVal, ps := newPromiseValue(ctx)
	ctx.resolvePromise(ps, v)
	return resultVal, nil
}

func builtinPromiseReject(ctx *Context, this Value, args []Value) (Value, error) {
	v := Undefined
	if len(args) > 0 {
		v = args[0]
	}
	resultVal, ps := newPromiseValue(ctx)
	ctx.rejectPromise(ps, v)
	return resultVal, nil
}

// newPromiseWithExecutor backs the `new Promise((resolve, reject) =>
// ...)` constructor call path the VM's opNew dispatches to when it
// sees objectKindBuiltin with a *promiseCtorState aux (vm.go's
// construct helper), calling the user executor synchronously with two
// native-function arguments that close over the new promise's state.
func newPromiseWithExecutor(ctx *Context, executor Value) (Value, error) {
	resultVal, ps := newPromiseValue(ctx)
	resolveFn := newNativeClosure(ctx, func(ctx *Context, this Value, args []Value) (Value, error) {
		v := Undefined
		if len(args) > 0 {
			v = args[0]
		}
		ctx.resolvePromise(ps, v)
		return Undefined, nil
	})
	rejectFn := newNativeClosure(ctx, func(ctx *Context, this Value, args []Value) (Value, error) {
		v := Undefined
		if len(args) > 0 {
			v = args[0]
		}
		ctx.rejectPromise(ps, v)
		return Undefined, nil
	})
	if _, err := ctx.Call(executor, Undefined, []Value{resolveFn, rejectFn}); err != nil {
		ctx.rejectPromise(ps, ctx.exceptionValue)
		ctx.ClearException()
	}
	return resultVal, nil
}

// newNativeClosure wraps an ad-hoc Go closure (one not registered in
// Realm.routingTable, since it's unique per executor call rather than
// shared across every object of a kind) as a callable object; vm.go's
// call dispatch checks for this aux kind before consulting the
// routing table.
func newNativeClosure(ctx *Context, fn nativeFunc) Value {
	o := newOrdinaryObject(ctx.realm.functionPrototype)
	o.kind = objectKindBuiltin
	o.aux = &closureFuncState{fn: fn}
	cp := ctx.heap.Alloc(heapKindObject, o)
	return objectValue(cp)
}

type closureFuncState struct {
	fn nativeFunc
}
