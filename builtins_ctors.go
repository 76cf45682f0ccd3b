package tinyjs

// builtins_ctors.go wires the remaining global `new X()`-constructible
// intrinsics (Object, Array, Map, Set, WeakMap, WeakSet, RegExp,
// String, Number, Boolean) as callable builtin objects
// whose aux carries a *ctorState vm.go's Construct recognizes and
// dispatches on, parallel to the dedicated *errorCtorState/
// *promiseCtorState aux kinds already used for Error subclasses and
// Promise (which need bespoke construction logic instead of this
// generic "look up by name" dispatch).
type ctorState struct {
	kind string
}

func newGenericCtor(ctx *Context, name string, proto cpointer) Value {
	o := newOrdinaryObject(ctx.realm.functionPrototype)
	o.kind = objectKindBuiltin
	o.aux = &ctorState{kind: name}
	key := stringPropKey(ctx.strings.FindOrCreate("prototype", true))
	o.insertProperty(&property{key: key, kind: propKindData, value: objectValue(proto), writable: false, configurable: false})
	cp := ctx.heap.Alloc(heapKindObject, o)
	return objectValue(cp)
}

func installMapSetConstructors(ctx *Context, r *Realm) {
	arrayCtor := newGenericCtor(ctx, "Array", r.arrayPrototype)
	r.globalEnv.createMutableBinding("Array", true)
	r.globalEnv.initializeBinding("Array", arrayCtor)

	mapCtor := newGenericCtor(ctx, "Map", r.mapPrototype)
	r.globalEnv.createMutableBinding("Map", true)
	r.globalEnv.initializeBinding("Map", mapCtor)

	setCtor := newGenericCtor(ctx, "Set", r.setPrototype)
	r.globalEnv.createMutableBinding("Set", true)
	r.globalEnv.initializeBinding("Set", setCtor)

	weakMapCtor := newGenericCtor(ctx, "WeakMap", r.weakMapPrototype)
	r.globalEnv.createMutableBinding("WeakMap", true)
	r.globalEnv.initializeBinding("WeakMap", weakMapCtor)

	weakSetCtor := newGenericCtor(ctx, "WeakSet", r.weakSetPrototype)
	r.globalEnv.createMutableBinding("WeakSet", true)
	r.globalEnv.initializeBinding("WeakSet", weakSetCtor)

	regexpCtor := newGenericCtor(ctx, "RegExp", r.regexpPrototype)
	r.globalEnv.createMutableBinding("RegExp", true)
	r.globalEnv.initializeBinding("RegExp", regexpCtor)

	stringCtor := newGenericCtor(ctx, "String", r.stringPrototype)
	r.globalEnv.createMutableBinding("String", true)
	r.globalEnv.initializeBinding("String", stringCtor)

	numberCtor := newGenericCtor(ctx, "Number", r.numberPrototype)
	r.globalEnv.createMutableBinding("Number", true)
	r.globalEnv.initializeBinding("Number", numberCtor)

	booleanCtor := newGenericCtor(ctx, "Boolean", r.booleanPrototype)
	r.globalEnv.createMutableBinding("Boolean", true)
	r.globalEnv.initializeBinding("Boolean", booleanCtor)
}

// constructGeneric implements `new` for every *ctorState-tagged
// builtin (vm.go's opNew calls this when the callee's aux is a
// *ctorState); Error/Promise have their own construction helpers
// since they need per-family or executor-driven logic this uniform
// dispatch doesn't fit.
func constructGeneric(ctx *Context, kind string, args []Value) (Value, error) {
	switch kind {
	case "Object":
		if len(args) > 0 && args[0].IsObject() {
			return args[0], nil
		}
		o := newOrdinaryObject(ctx.realm.objectPrototype)
		cp := ctx.heap.Alloc(heapKindObject, o)
		return objectValue(cp), nil
	case "Array":
		v := newArrayValue(ctx)
		o := ctx.heap.Decode(v.ref_()).(*jsObject)
		if len(args) == 1 && args[0].IsNumber() {
			ctx.arraySetLength(o, uint32(args[0].AsNumber()))
		} else {
			for i, a := range args {
				ctx.arraySetIndex(o, uint32(i), a)
			}
		}
		return v, nil
	case "Map":
		v := newMapValue(ctx)
		return v, nil
	case "WeakMap":
		return newWeakMapValue(ctx), nil
	case "WeakSet":
		v := newWeakSetValue(ctx)
		if len(args) > 0 && args[0].IsObject() {
			if arr := ctx.heap.Decode(args[0].ref_()).(*jsObject); arr.kind == objectKindArray {
				s := ctx.heap.Decode(v.ref_()).(*jsObject).aux.(*weakSetState)
				n := ctx.arrayLength(arr)
				for i := uint32(0); i < n; i++ {
					el, _ := ctx.arrayGetIndex(arr, i)
					if el.IsObject() {
						s.targets = append(s.targets, el.ref_())
					}
				}
			}
		}
		return v, nil
	case "Set":
		v := newSetValue(ctx)
		s := ctx.heap.Decode(v.ref_()).(*jsObject).aux.(*setState)
		if len(args) > 0 && args[0].IsObject() {
			if arr := ctx.heap.Decode(args[0].ref_()).(*jsObject); arr.kind == objectKindArray {
				n := ctx.arrayLength(arr)
				for i := uint32(0); i < n; i++ {
					el, _ := ctx.arrayGetIndex(arr, i)
					s.values = append(s.values, el)
				}
			}
		}
		return v, nil
	case "RegExp":
		pattern, flags := "", ""
		if len(args) > 0 {
			cp, err := ctx.ToString(args[0])
			if err != nil {
				return Value{}, err
			}
			pattern = ctx.stringContent(cp)
		}
		if len(args) > 1 {
			cp, err := ctx.ToString(args[1])
			if err != nil {
				return Value{}, err
			}
			flags = ctx.stringContent(cp)
		}
		return newRegExpValue(ctx, pattern, flags)
	case "String", "Number", "Boolean":
		return constructPrimitiveWrapper(ctx, kind, args)
	default:
		return Value{}, ctx.ThrowTypeError("unknown constructor " + kind)
	}
}

// constructPrimitiveWrapper builds the boxed-object form of `new
// String(...)`/`new Number(...)`/`new Boolean(...)`: an ordinary
// object whose `aux` carries the wrapped primitive, distinct from the
// unboxed values object.go/context.go's getFromPrimitive handles
// directly (spec §3.4's wrapper-object exotic kinds).
func constructPrimitiveWrapper(ctx *Context, kind string, args []Value) (Value, error) {
	var proto cpointer
	var prim Value = Undefined
	switch kind {
	case "String":
		proto = ctx.realm.stringPrototype
		if len(args) > 0 {
			cp, err := ctx.ToString(args[0])
			if err != nil {
				return Value{}, err
			}
			prim = stringValue(cp)
		} else {
			prim = ctx.newStringResult("")
		}
	case "Number":
		proto = ctx.realm.numberPrototype
		if len(args) > 0 {
			n, err := ctx.ToNumber(args[0])
			if err != nil {
				return Value{}, err
			}
			prim = Number(n)
		} else {
			prim = Number(0)
		}
	case "Boolean":
		proto = ctx.realm.booleanPrototype
		if len(args) > 0 {
			prim = Bool(ctx.ToBoolean(args[0]))
		} else {
			prim = False
		}
	}
	o := newOrdinaryObject(proto)
	o.aux = &primitiveWrapperState{primitive: prim}
	cp := ctx.heap.Alloc(heapKindObject, o)
	return objectValue(cp), nil
}

type primitiveWrapperState struct {
	primitive Value
}
