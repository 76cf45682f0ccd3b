package tinyjs

// api_internal.go holds the argument-validation wrappers api.go's
// public entry points share. Per spec.md §1 these wrappers are an
// explicit external collaborator ("the public embedding API surface")
// rather than a core-engine concern, so they stay thin: check the
// shape, delegate to a context.go/vm.go abstract operation, translate
// a Go error into the handle-shaped return api.go promises. Grounded
// on the teacher's own "thin validating wrapper over a real operation"
// split between its public `Parse`/`Generate` entry points
// (grammar_parser.go) and the actual recursive-descent/codegen work
// underneath them.

// checkInitialized is the precondition every non-lifecycle API call
// makes (spec §6.1: "every operation assumes the engine is
// initialized"); Engine's own zero value has a nil ctx, so a caller
// skipping Init would otherwise nil-deref deep inside the object
// model instead of getting a clear message.
func (e *Engine) checkInitialized() error {
	if e.ctx == nil {
		return errNotInitialized
	}
	return nil
}

var errNotInitialized = &engineError{"engine not initialized: call Init first"}

type engineError struct{ msg string }

func (err *engineError) Error() string { return err.msg }

// checkNotInFinalizer backs spec §5's re-entrancy rule ("the embedder
// must never enter the engine from inside a finalizer, a GC mark, or
// a native callback currently on the VM stack"): gc.go's sweep sets
// this flag for the duration of every finalizer call.
func (e *Engine) checkNotInFinalizer() error {
	if e.ctx.heap.inFinalizer {
		return errReentrantFinalizer
	}
	return nil
}

var errReentrantFinalizer = &engineError{"illegal re-entry into the engine from a finalizer"}

// requireCallable/requireObject are the two argument-shape checks
// repeated across Call/Construct/property-access wrappers below.
func (e *Engine) requireCallable(v Value) error {
	if !e.ctx.isCallable(v) {
		return &engineError{"value is not callable"}
	}
	return nil
}

func (e *Engine) requireObject(v Value) error {
	if !v.IsObject() {
		return &engineError{"value is not an object"}
	}
	return nil
}

// toPropKey exposes ctx.toPropertyKey to api.go under the name spec
// §6.1's property-operation family (`has`/`get`/`set`/`delete`/
// `define_own`) uses for its key argument, which may be a string,
// number, or symbol Value exactly like the JS-level operators that
// back them.
func (e *Engine) toPropKey(key Value) (propKey, error) {
	return e.ctx.toPropertyKey(key)
}
