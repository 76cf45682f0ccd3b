package tinyjs

// builtins_array.go implements Array.prototype's routing-id targets.
// Each reads `this` as the receiver array (falling back to treating
// any object with own integer-indexed properties as array-like where
// ECMA-262 permits, a simplification this port keeps deliberately
// narrow: only objectKindArray receivers are supported; generic
// array-likes are not).

func thisArray(ctx *Context, this Value) (*jsObject, error) {
	if !this.IsObject() {
		return nil, ctx.ThrowTypeError("Array.prototype method called on non-object")
	}
	o := ctx.heap.Decode(this.ref_()).(*jsObject)
	if o.kind != objectKindArray {
		return nil, ctx.ThrowTypeError("Array.prototype method called on non-array")
	}
	return o, nil
}

func builtinArrayPush(ctx *Context, this Value, args []Value) (Value, error) {
	o, err := thisArray(ctx, this)
	if err != nil {
		return Value{}, err
	}
	n := ctx.arrayLength(o)
	for _, a := range args {
		ctx.arraySetIndex(o, n, a)
		n++
	}
	return Int(int(n)), nil
}

func builtinArrayPop(ctx *Context, this Value, args []Value) (Value, error) {
	o, err := thisArray(ctx, this)
	if err != nil {
		return Value{}, err
	}
	n := ctx.arrayLength(o)
	if n == 0 {
		return Undefined, nil
	}
	v, _ := ctx.arrayGetIndex(o, n-1)
	ctx.arraySetLength(o, n-1)
	return v, nil
}

func builtinArrayShift(ctx *Context, this Value, args []Value) (Value, error) {
	o, err := thisArray(ctx, this)
	if err != nil {
		return Value{}, err
	}
	n := ctx.arrayLength(o)
	if n == 0 {
		return Undefined, nil
	}
	first, _ := ctx.arrayGetIndex(o, 0)
	for i := uint32(1); i < n; i++ {
		v, _ := ctx.arrayGetIndex(o, i)
		ctx.arraySetIndex(o, i-1, v)
	}
	ctx.arraySetLength(o, n-1)
	return first, nil
}

func builtinArrayUnshift(ctx *Context, this Value, args []Value) (Value, error) {
	o, err := thisArray(ctx, this)
	if err != nil {
		return Value{}, err
	}
	n := ctx.arrayLength(o)
	shift := uint32(len(args))
	if shift == 0 {
		return Int(int(n)), nil
	}
	for i := n; i > 0; i-- {
		v, _ := ctx.arrayGetIndex(o, i-1)
		ctx.arraySetIndex(o, i-1+shift, v)
	}
	for i, a := range args {
		ctx.arraySetIndex(o, uint32(i), a)
	}
	return Int(int(n + shift)), nil
}

func builtinArraySlice(ctx *Context, this Value, args []Value) (Value, error) {
	o, err := thisArray(ctx, this)
	if err != nil {
		return Value{}, err
	}
	n := int(ctx.arrayLength(o))
	start, end := 0, n
	if len(args) > 0 {
		start = normalizeSliceIndex(ctx, args[0], n)
	}
	if len(args) > 1 && !args[1].IsUndefined() {
		end = normalizeSliceIndex(ctx, args[1], n)
	}
	result := newArrayValue(ctx)
	resultObj := ctx.heap.Decode(result.ref_()).(*jsObject)
	out := uint32(0)
	for i := start; i < end; i++ {
		v, _ := ctx.arrayGetIndex(o, uint32(i))
		ctx.arraySetIndex(resultObj, out, v)
		out++
	}
	return result, nil
}

func normalizeSliceIndex(ctx *Context, v Value, length int) int {
	n, _ := ctx.ToNumber(v)
	idx := int(n)
	if idx < 0 {
		idx += length
	}
	if idx < 0 {
		return 0
	}
	if idx > length {
		return length
	}
	return idx
}

func builtinArrayJoin(ctx *Context, this Value, args []Value) (Value, error) {
	o, err := thisArray(ctx, this)
	if err != nil {
		return Value{}, err
	}
	sep := ","
	if len(args) > 0 && !args[0].IsUndefined() {
		cp, err := ctx.ToString(args[0])
		if err != nil {
			return Value{}, err
		}
		sep = ctx.stringContent(cp)
	}
	n := ctx.arrayLength(o)
	out := ""
	for i := uint32(0); i < n; i++ {
		if i > 0 {
			out += sep
		}
		v, ok := ctx.arrayGetIndex(o, i)
		if !ok || v.IsNullish() {
			continue
		}
		cp, err := ctx.ToString(v)
		if err != nil {
			return Value{}, err
		}
		out += ctx.stringContent(cp)
	}
	return stringValue(ctx.strings.FindOrCreate(out, isASCII(out))), nil
}

func builtinArrayMap(ctx *Context, this Value, args []Value) (Value, error) {
	o, err := thisArray(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 {
		return Value{}, ctx.ThrowTypeError("Array.prototype.map callback is not a function")
	}
	n := ctx.arrayLength(o)
	result := newArrayValue(ctx)
	resultObj := ctx.heap.Decode(result.ref_()).(*jsObject)
	thisArg := Undefined
	if len(args) > 1 {
		thisArg = args[1]
	}
	for i := uint32(0); i < n; i++ {
		v, _ := ctx.arrayGetIndex(o, i)
		mapped, err := ctx.Call(args[0], thisArg, []Value{v, Int(int(i)), this})
		if err != nil {
			return Value{}, err
		}
		ctx.arraySetIndex(resultObj, i, mapped)
	}
	return result, nil
}

func builtinArrayFilter(ctx *Context, this Value, args []Value) (Value, error) {
	o, err := thisArray(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 {
		return Value{}, ctx.ThrowTypeError("Array.prototype.filter callback is not a function")
	}
	n := ctx.arrayLength(o)
	result := newArrayValue(ctx)
	resultObj := ctx.heap.Decode(result.ref_()).(*jsObject)
	out := uint32(0)
	thisArg := Undefined
	if len(args) > 1 {
		thisArg = args[1]
	}
	for i := uint32(0); i < n; i++ {
		v, _ := ctx.arrayGetIndex(o, i)
		keep, err := ctx.Call(args[0], thisArg, []Value{v, Int(int(i)), this})
		if err != nil {
			return Value{}, err
		}
		if ctx.ToBoolean(keep) {
			ctx.arraySetIndex(resultObj, out, v)
			out++
		}
	}
	return result, nil
}

func builtinArrayForEach(ctx *Context, this Value, args []Value) (Value, error) {
	o, err := thisArray(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 {
		return Value{}, ctx.ThrowTypeError("Array.prototype.forEach callback is not a function")
	}
	n := ctx.arrayLength(o)
	thisArg := Undefined
	if len(args) > 1 {
		thisArg = args[1]
	}
	for i := uint32(0); i < n; i++ {
		v, _ := ctx.arrayGetIndex(o, i)
		if _, err := ctx.Call(args[0], thisArg, []Value{v, Int(int(i)), this}); err != nil {
			return Value{}, err
		}
	}
	return Undefined, nil
}

func builtinArrayReduce(ctx *Context, this Value, args []Value) (Value, error) {
	o, err := thisArray(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 {
		return Value{}, ctx.ThrowTypeError("Array.prototype.reduce callback is not a function")
	}
	n := ctx.arrayLength(o)
	i := uint32(0)
	var acc Value
	if len(args) > 1 {
		acc = args[1]
	} else {
		if n == 0 {
			return Value{}, ctx.ThrowTypeError("Reduce of empty array with no initial value")
		}
		acc, _ = ctx.arrayGetIndex(o, 0)
		i = 1
	}
	for ; i < n; i++ {
		v, _ := ctx.arrayGetIndex(o, i)
		acc, err = ctx.Call(args[0], Undefined, []Value{acc, v, Int(int(i)), this})
		if err != nil {
			return Value{}, err
		}
	}
	return acc, nil
}

func builtinArrayIndexOf(ctx *Context, this Value, args []Value) (Value, error) {
	o, err := thisArray(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 {
		return Int(-1), nil
	}
	n := ctx.arrayLength(o)
	for i := uint32(0); i < n; i++ {
		v, _ := ctx.arrayGetIndex(o, i)
		if strictEquals(ctx, v, args[0]) {
			return Int(int(i)), nil
		}
	}
	return Int(-1), nil
}

func builtinArrayIncludes(ctx *Context, this Value, args []Value) (Value, error) {
	o, err := thisArray(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 {
		return False, nil
	}
	n := ctx.arrayLength(o)
	for i := uint32(0); i < n; i++ {
		v, _ := ctx.arrayGetIndex(o, i)
		if sameValueZero(ctx, v, args[0]) {
			return True, nil
		}
	}
	return False, nil
}

func builtinArrayConcat(ctx *Context, this Value, args []Value) (Value, error) {
	o, err := thisArray(ctx, this)
	if err != nil {
		return Value{}, err
	}
	result := newArrayValue(ctx)
	resultObj := ctx.heap.Decode(result.ref_()).(*jsObject)
	out := uint32(0)
	n := ctx.arrayLength(o)
	for i := uint32(0); i < n; i++ {
		v, _ := ctx.arrayGetIndex(o, i)
		ctx.arraySetIndex(resultObj, out, v)
		out++
	}
	for _, a := range args {
		if a.IsObject() {
			if ao := ctx.heap.Decode(a.ref_()).(*jsObject); ao.kind == objectKindArray {
				m := ctx.arrayLength(ao)
				for i := uint32(0); i < m; i++ {
					v, _ := ctx.arrayGetIndex(ao, i)
					ctx.arraySetIndex(resultObj, out, v)
					out++
				}
				continue
			}
		}
		ctx.arraySetIndex(resultObj, out, a)
		out++
	}
	return result, nil
}

// strictEquals implements `===` for the builtins above without going
// through the VM's opStrictEq bytecode path (vm.go calls the same
// helper for that opcode).
func strictEquals(ctx *Context, a, b Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case KindUndefined, KindNull:
		return true
	case KindBoolean:
		return a.AsBool() == b.AsBool()
	case KindNumber:
		return a.AsNumber() == b.AsNumber()
	case KindString:
		return ctx.stringEquals(a.ref_(), b.ref_())
	case KindSymbol, KindBigInt, KindObject:
		return a.ref_() == b.ref_()
	default:
		return false
	}
}
