package tinyjs

// realm.go builds the per-engine global object and intrinsic
// prototypes (spec §4.8's "numeric built-in-routing-id dispatch"):
// one Realm owns one global lexEnv plus the handful of Prototype
// cpointers every other file threads through (ctx.realm.arrayPrototype
// in array.go, ctx.realm.objectPrototype in context.go's ToPrimitive
// fallback, ...). Grounded on the teacher's routing-id map-dispatch
// idiom (value.go's FormatToken-keyed maps), generalized from
// formatting tokens to built-in call IDs below.
type Realm struct {
	globalEnv *lexEnv
	globalObj cpointer

	// evalFn is the cpointer of the realm's one intrinsic `eval`
	// function object, installed by installGlobalEval below. vm.go's
	// opCallEval compares a call-site's resolved callee against this
	// cpointer to decide whether a syntactic `eval(...)` call is still
	// direct eval (spec §4.6.3) or has been shadowed to an ordinary
	// function (which gets an ordinary call instead).
	evalFn cpointer

	objectPrototype               cpointer
	functionPrototype             cpointer
	arrayPrototype                cpointer
	stringPrototype               cpointer
	numberPrototype               cpointer
	booleanPrototype              cpointer
	errorPrototype                cpointer
	regexpPrototype               cpointer
	promisePrototype              cpointer
	mapPrototype                  cpointer
	setPrototype                  cpointer
	weakMapPrototype              cpointer
	weakSetPrototype              cpointer
	weakRefPrototype              cpointer
	finalizationRegistryPrototype cpointer

	// routingTable maps a builtin's numeric id (spec §4.8) to its Go
	// implementation, the fixed dispatch surface every builtin function
	// object's aux slot points back into.
	routingTable map[int]nativeFunc
}

type nativeFunc func(ctx *Context, this Value, args []Value) (Value, error)

// builtinFuncState is the aux payload for objectKindBuiltin objects:
// the routing id plus a display name, resolved through
// Realm.routingTable at call time (vm.go's opCall).
type builtinFuncState struct {
	id   int
	name string
}

// routing ids, grouped by family; stable only within one process run
// (never serialized), unlike the original's snapshot-stable ids (an
// explicit spec.md non-goal: "snapshot serialization").
const (
	routeObjectToString = iota + 1
	routeObjectValueOf
	routeObjectKeys
	routeObjectAssign
	routeFunctionCall
	routeFunctionApply
	routeFunctionBind
	routeArrayPush
	routeArrayPop
	routeArrayShift
	routeArrayUnshift
	routeArraySlice
	routeArrayJoin
	routeArrayMap
	routeArrayFilter
	routeArrayForEach
	routeArrayReduce
	routeArrayIndexOf
	routeArrayIncludes
	routeArrayConcat
	routeArrayIterator
	routeStringCharAt
	routeStringSlice
	routeStringSplit
	routeStringIndexOf
	routeStringToUpperCase
	routeStringToLowerCase
	routeStringConcat
	routeStringIncludes
	routeStringReplace
	routeStringTrim
	routeNumberToString
	routeBooleanToString
	routeErrorToString
	routeConsoleLog
	routeJSONStringify
	routeJSONParse
	routeMathFloor
	routeMathCeil
	routeMathRound
	routeMathRandom
	routeMathMax
	routeMathMin
	routeMathAbs
	routeMathPow
	routeMathSqrt
	routePromiseThen
	routePromiseCatch
	routePromiseResolve
	routePromiseReject
	routeRegExpExec
	routeRegExpTest
	routeMapGet
	routeMapSet
	routeMapHas
	routeMapDelete
	routeSetAdd
	routeSetHas
	routeSetDelete
	routeWeakMapGet
	routeWeakMapSet
	routeWeakMapHas
	routeWeakMapDelete
	routeWeakSetAdd
	routeWeakSetHas
	routeWeakSetDelete
	routeWeakRefDeref
	routeFinalizationRegistryRegister
	routeFinalizationRegistryUnregister
	routeGlobalEval
)

func setupRealm(ctx *Context) *Realm {
	r := &Realm{routingTable: map[int]nativeFunc{}}
	r.globalEnv = newGlobalEnv()

	r.objectPrototype = ctx.heap.Alloc(heapKindObject, newOrdinaryObject(nullCPointer))
	r.functionPrototype = ctx.heap.Alloc(heapKindObject, newOrdinaryObject(r.objectPrototype))
	r.arrayPrototype = ctx.heap.Alloc(heapKindObject, newOrdinaryObject(r.objectPrototype))
	r.stringPrototype = ctx.heap.Alloc(heapKindObject, newOrdinaryObject(r.objectPrototype))
	r.numberPrototype = ctx.heap.Alloc(heapKindObject, newOrdinaryObject(r.objectPrototype))
	r.booleanPrototype = ctx.heap.Alloc(heapKindObject, newOrdinaryObject(r.objectPrototype))
	r.errorPrototype = ctx.heap.Alloc(heapKindObject, newOrdinaryObject(r.objectPrototype))
	r.regexpPrototype = ctx.heap.Alloc(heapKindObject, newOrdinaryObject(r.objectPrototype))
	r.promisePrototype = ctx.heap.Alloc(heapKindObject, newOrdinaryObject(r.objectPrototype))
	r.mapPrototype = ctx.heap.Alloc(heapKindObject, newOrdinaryObject(r.objectPrototype))
	r.setPrototype = ctx.heap.Alloc(heapKindObject, newOrdinaryObject(r.objectPrototype))
	r.weakMapPrototype = ctx.heap.Alloc(heapKindObject, newOrdinaryObject(r.objectPrototype))
	r.weakSetPrototype = ctx.heap.Alloc(heapKindObject, newOrdinaryObject(r.objectPrototype))
	r.weakRefPrototype = ctx.heap.Alloc(heapKindObject, newOrdinaryObject(r.objectPrototype))
	r.finalizationRegistryPrototype = ctx.heap.Alloc(heapKindObject, newOrdinaryObject(r.objectPrototype))

	globalObject := newOrdinaryObject(r.objectPrototype)
	globalObject.kind = objectKindGlobal
	r.globalObj = ctx.heap.Alloc(heapKindObject, globalObject)

	registerRoutes(r)
	installObjectPrototype(ctx, r)
	installFunctionPrototype(ctx, r)
	installArrayPrototype(ctx, r)
	installStringPrototype(ctx, r)
	installNumberAndBooleanPrototypes(ctx, r)
	installErrorConstructors(ctx, r)
	installMathAndJSON(ctx, r)
	installConsole(ctx, r)
	installGlobalEval(ctx, r)
	installMapAndSet(ctx, r)
	installWeakCollections(ctx, r)
	installPromiseConstructor(ctx, r)
	installMapSetConstructors(ctx, r)

	return r
}

func registerRoutes(r *Realm) {
	r.routingTable[routeObjectToString] = builtinObjectToString
	r.routingTable[routeObjectValueOf] = builtinObjectValueOf
	r.routingTable[routeObjectKeys] = builtinObjectKeys
	r.routingTable[routeObjectAssign] = builtinObjectAssign
	r.routingTable[routeFunctionCall] = builtinFunctionCall
	r.routingTable[routeFunctionApply] = builtinFunctionApply
	r.routingTable[routeFunctionBind] = builtinFunctionBind
	r.routingTable[routeArrayPush] = builtinArrayPush
	r.routingTable[routeArrayPop] = builtinArrayPop
	r.routingTable[routeArrayShift] = builtinArrayShift
	r.routingTable[routeArrayUnshift] = builtinArrayUnshift
	r.routingTable[routeArraySlice] = builtinArraySlice
	r.routingTable[routeArrayJoin] = builtinArrayJoin
	r.routingTable[routeArrayMap] = builtinArrayMap
	r.routingTable[routeArrayFilter] = builtinArrayFilter
	r.routingTable[routeArrayForEach] = builtinArrayForEach
	r.routingTable[routeArrayReduce] = builtinArrayReduce
	r.routingTable[routeArrayIndexOf] = builtinArrayIndexOf
	r.routingTable[routeArrayIncludes] = builtinArrayIncludes
	r.routingTable[routeArrayConcat] = builtinArrayConcat
	r.routingTable[routeStringCharAt] = builtinStringCharAt
	r.routingTable[routeStringSlice] = builtinStringSlice
	r.routingTable[routeStringSplit] = builtinStringSplit
	r.routingTable[routeStringIndexOf] = builtinStringIndexOf
	r.routingTable[routeStringToUpperCase] = builtinStringToUpperCase
	r.routingTable[routeStringToLowerCase] = builtinStringToLowerCase
	r.routingTable[routeStringConcat] = builtinStringConcat
	r.routingTable[routeStringIncludes] = builtinStringIncludes
	r.routingTable[routeStringReplace] = builtinStringReplace
	r.routingTable[routeStringTrim] = builtinStringTrim
	r.routingTable[routeNumberToString] = builtinNumberToString
	r.routingTable[routeBooleanToString] = builtinBooleanToString
	r.routingTable[routeErrorToString] = builtinErrorToString
	r.routingTable[routeConsoleLog] = builtinConsoleLog
	r.routingTable[routeJSONStringify] = builtinJSONStringify
	r.routingTable[routeJSONParse] = builtinJSONParse
	r.routingTable[routeMathFloor] = builtinMathFloor
	r.routingTable[routeMathCeil] = builtinMathCeil
	r.routingTable[routeMathRound] = builtinMathRound
	r.routingTable[routeMathRandom] = builtinMathRandom
	r.routingTable[routeMathMax] = builtinMathMax
	r.routingTable[routeMathMin] = builtinMathMin
	r.routingTable[routeMathAbs] = builtinMathAbs
	r.routingTable[routeMathPow] = builtinMathPow
	r.routingTable[routeMathSqrt] = builtinMathSqrt
	r.routingTable[routePromiseThen] = builtinPromiseThen
	r.routingTable[routePromiseCatch] = builtinPromiseCatch
	r.routingTable[routeRegExpExec] = builtinRegExpExec
	r.routingTable[routeRegExpTest] = builtinRegExpTest
	r.routingTable[routeMapGet] = builtinMapGet
	r.routingTable[routeMapSet] = builtinMapSet
	r.routingTable[routeMapHas] = builtinMapHas
	r.routingTable[routeMapDelete] = builtinMapDelete
	r.routingTable[routeSetAdd] = builtinSetAdd
	r.routingTable[routeSetHas] = builtinSetHas
	r.routingTable[routeSetDelete] = builtinSetDelete
	r.routingTable[routeWeakMapGet] = builtinWeakMapGet
	r.routingTable[routeWeakMapSet] = builtinWeakMapSet
	r.routingTable[routeWeakMapHas] = builtinWeakMapHas
	r.routingTable[routeWeakMapDelete] = builtinWeakMapDelete
	r.routingTable[routeWeakSetAdd] = builtinWeakSetAdd
	r.routingTable[routeWeakSetHas] = builtinWeakSetHas
	r.routingTable[routeWeakSetDelete] = builtinWeakSetDelete
	r.routingTable[routeWeakRefDeref] = builtinWeakRefDeref
	r.routingTable[routeFinalizationRegistryRegister] = builtinFinalizationRegistryRegister
	r.routingTable[routeFinalizationRegistryUnregister] = builtinFinalizationRegistryUnregister
	r.routingTable[routeGlobalEval] = builtinGlobalEval
}

// installGlobalEval wires the realm's one intrinsic `eval` (spec
// §6.2's eval flavors): called directly from a syntactic `eval(...)`
// site (opCallEval), it runs in the calling frame's own scope chain;
// called any other way -- stored in a variable, passed around, invoked
// as `(0, eval)(...)` -- it is indirect eval and runs in the global
// scope instead (builtinGlobalEval below), exactly the distinction
// vm.go's evalInScope doc comment names.
func installGlobalEval(ctx *Context, r *Realm) {
	v := newBuiltin(ctx, nullCPointer, "eval", routeGlobalEval, nullCPointer)
	r.evalFn = v.ref_()
	r.globalEnv.createMutableBinding("eval", true)
	r.globalEnv.initializeBinding("eval", v)
}

// builtinGlobalEval implements indirect eval: source runs in the
// realm's global lexical environment with `this` bound to the global
// object, regardless of which scope the call itself occurred in.
func builtinGlobalEval(ctx *Context, this Value, args []Value) (Value, error) {
	if len(args) == 0 || !args[0].IsString() {
		if len(args) > 0 {
			return args[0], nil
		}
		return Undefined, nil
	}
	source := ctx.stringContent(args[0].ref_())
	return ctx.evalInScope(source, ctx.realm.globalEnv, objectValue(ctx.realm.globalObj))
}

// newBuiltin allocates one builtin function object wired to routeID,
// and — unless installOn is null — installs it as a non-enumerable
// property on installOn (spec §3.4/§4.8's "prototype methods are
// ordinary builtin function objects").
func newBuiltin(ctx *Context, proto cpointer, name string, routeID int, installOn cpointer) Value {
	o := newOrdinaryObject(ctx.realm.functionPrototype)
	o.kind = objectKindBuiltin
	o.aux = &builtinFuncState{id: routeID, name: name}
	cp := ctx.heap.Alloc(heapKindObject, o)
	v := objectValue(cp)
	if !installOn.isNull() {
		target := ctx.heap.Decode(installOn).(*jsObject)
		key := stringPropKey(ctx.strings.FindOrCreate(name, true))
		target.insertProperty(&property{key: key, kind: propKindData, value: v, writable: true, configurable: true})
	}
	return v
}

func installObjectPrototype(ctx *Context, r *Realm) {
	newBuiltin(ctx, r.objectPrototype, "toString", routeObjectToString, r.objectPrototype)
	newBuiltin(ctx, r.objectPrototype, "valueOf", routeObjectValueOf, r.objectPrototype)
}

func installFunctionPrototype(ctx *Context, r *Realm) {
	newBuiltin(ctx, r.functionPrototype, "call", routeFunctionCall, r.functionPrototype)
	newBuiltin(ctx, r.functionPrototype, "apply", routeFunctionApply, r.functionPrototype)
	newBuiltin(ctx, r.functionPrototype, "bind", routeFunctionBind, r.functionPrototype)
}

func installArrayPrototype(ctx *Context, r *Realm) {
	for name, route := range map[string]int{
		"push": routeArrayPush, "pop": routeArrayPop, "shift": routeArrayShift,
		"unshift": routeArrayUnshift, "slice": routeArraySlice, "join": routeArrayJoin,
		"map": routeArrayMap, "filter": routeArrayFilter, "forEach": routeArrayForEach,
		"reduce": routeArrayReduce, "indexOf": routeArrayIndexOf, "includes": routeArrayIncludes,
		"concat": routeArrayConcat,
	} {
		newBuiltin(ctx, r.arrayPrototype, name, route, r.arrayPrototype)
	}
}

func installStringPrototype(ctx *Context, r *Realm) {
	for name, route := range map[string]int{
		"charAt": routeStringCharAt, "slice": routeStringSlice, "split": routeStringSplit,
		"indexOf": routeStringIndexOf, "toUpperCase": routeStringToUpperCase,
		"toLowerCase": routeStringToLowerCase, "concat": routeStringConcat,
		"includes": routeStringIncludes, "replace": routeStringReplace, "trim": routeStringTrim,
	} {
		newBuiltin(ctx, r.stringPrototype, name, route, r.stringPrototype)
	}
}

func installNumberAndBooleanPrototypes(ctx *Context, r *Realm) {
	newBuiltin(ctx, r.numberPrototype, "toString", routeNumberToString, r.numberPrototype)
	newBuiltin(ctx, r.booleanPrototype, "toString", routeBooleanToString, r.booleanPrototype)
}

func installErrorConstructors(ctx *Context, r *Realm) {
	newBuiltin(ctx, r.errorPrototype, "toString", routeErrorToString, r.errorPrototype)
	nameKey := stringPropKey(ctx.strings.FindOrCreate("name", true))
	msgKey := stringPropKey(ctx.strings.FindOrCreate("message", true))
	ctx.heap.Decode(r.errorPrototype).(*jsObject).insertProperty(&property{key: nameKey, kind: propKindData, value: stringValue(ctx.strings.FindOrCreate("Error", true)), writable: true, enumerable: false, configurable: true})
	ctx.heap.Decode(r.errorPrototype).(*jsObject).insertProperty(&property{key: msgKey, kind: propKindData, value: stringValue(ctx.strings.FindOrCreate("", true)), writable: true, enumerable: false, configurable: true})
	for _, kind := range []string{"Error", "TypeError", "RangeError", "ReferenceError", "SyntaxError", "EvalError", "URIError"} {
		ctorProto := r.errorPrototype
		if kind != "Error" {
			protoObj := newOrdinaryObject(r.errorPrototype)
			protoObj.insertProperty(&property{key: nameKey, kind: propKindData, value: stringValue(ctx.strings.FindOrCreate(kind, true)), writable: true, enumerable: false, configurable: true})
			ctorProto = ctx.heap.Alloc(heapKindObject, protoObj)
		}
		ctorVal := newErrorConstructor(ctx, kind, ctorProto)
		r.globalEnv.createMutableBinding(kind, true)
		r.globalEnv.initializeBinding(kind, ctorVal)
	}
}

// newErrorConstructor builds a callable builtin that, used with `new`,
// produces an ordinary Error-kind object whose prototype carries the
// family name and whose own `message` is set from the first argument
// (spec §3.4's Error family, §4.8 construction path).
func newErrorConstructor(ctx *Context, kind string, proto cpointer) Value {
	o := newOrdinaryObject(ctx.realm.functionPrototype)
	o.kind = objectKindBuiltin
	o.aux = &errorCtorState{kind: kind, proto: proto}
	key := stringPropKey(ctx.strings.FindOrCreate("prototype", true))
	o.insertProperty(&property{key: key, kind: propKindData, value: objectValue(proto), writable: false, configurable: false})
	cp := ctx.heap.Alloc(heapKindObject, o)
	return objectValue(cp)
}

type errorCtorState struct {
	kind  string
	proto cpointer
}

func installMathAndJSON(ctx *Context, r *Realm) {
	mathObj := newOrdinaryObject(r.objectPrototype)
	mathCP := ctx.heap.Alloc(heapKindObject, mathObj)
	for name, route := range map[string]int{
		"floor": routeMathFloor, "ceil": routeMathCeil, "round": routeMathRound,
		"random": routeMathRandom, "max": routeMathMax, "min": routeMathMin,
		"abs": routeMathAbs, "pow": routeMathPow, "sqrt": routeMathSqrt,
	} {
		newBuiltin(ctx, nullCPointer, name, route, mathCP)
	}
	r.globalEnv.createMutableBinding("Math", true)
	r.globalEnv.initializeBinding("Math", objectValue(mathCP))

	jsonObj := newOrdinaryObject(r.objectPrototype)
	jsonCP := ctx.heap.Alloc(heapKindObject, jsonObj)
	newBuiltin(ctx, nullCPointer, "stringify", routeJSONStringify, jsonCP)
	newBuiltin(ctx, nullCPointer, "parse", routeJSONParse, jsonCP)
	r.globalEnv.createMutableBinding("JSON", true)
	r.globalEnv.initializeBinding("JSON", objectValue(jsonCP))

	objectCtor := newOrdinaryObject(r.functionPrototype)
	objectCtor.kind = objectKindBuiltin
	objectCtor.aux = &ctorState{kind: "Object"}
	objectCtorCP := ctx.heap.Alloc(heapKindObject, objectCtor)
	newBuiltin(ctx, nullCPointer, "keys", routeObjectKeys, objectCtorCP)
	newBuiltin(ctx, nullCPointer, "assign", routeObjectAssign, objectCtorCP)
	r.globalEnv.createMutableBinding("Object", true)
	r.globalEnv.initializeBinding("Object", objectValue(objectCtorCP))
}

func installConsole(ctx *Context, r *Realm) {
	consoleObj := newOrdinaryObject(r.objectPrototype)
	consoleCP := ctx.heap.Alloc(heapKindObject, consoleObj)
	newBuiltin(ctx, nullCPointer, "log", routeConsoleLog, consoleCP)
	r.globalEnv.createMutableBinding("console", true)
	r.globalEnv.initializeBinding("console", objectValue(consoleCP))
}

func installMapAndSet(ctx *Context, r *Realm) {
	for name, route := range map[string]int{
		"get": routeMapGet, "set": routeMapSet, "has": routeMapHas, "delete": routeMapDelete,
	} {
		newBuiltin(ctx, r.mapPrototype, name, route, r.mapPrototype)
	}
	for name, route := range map[string]int{
		"add": routeSetAdd, "has": routeSetHas, "delete": routeSetDelete,
	} {
		newBuiltin(ctx, r.setPrototype, name, route, r.setPrototype)
	}
}
