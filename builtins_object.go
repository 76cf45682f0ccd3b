package tinyjs

// builtins_object.go implements the Object/Function/Error/console/JSON
// routing-id targets realm.go registers. Each follows the
// `nativeFunc(ctx, this, args) (Value, error)` shape spec §4.8 assigns
// to every builtin call, the port's stand-in for the original's
// `ecma_builtin_routine_id`-switched native handlers.

func builtinObjectToString(ctx *Context, this Value, args []Value) (Value, error) {
	if !this.IsObject() {
		s, err := ctx.ToString(this)
		if err != nil {
			return Value{}, err
		}
		return stringValue(s), nil
	}
	o := ctx.heap.Decode(this.ref_()).(*jsObject)
	tag := "Object"
	switch o.kind {
	case objectKindArray:
		tag = "Array"
	case objectKindFunction, objectKindBuiltin, objectKindBoundFunction:
		tag = "Function"
	case objectKindError:
		tag = "Error"
	}
	return stringValue(ctx.strings.FindOrCreate("[object "+tag+"]", true)), nil
}

func builtinObjectValueOf(ctx *Context, this Value, args []Value) (Value, error) {
	return this, nil
}

func builtinObjectKeys(ctx *Context, this Value, args []Value) (Value, error) {
	if len(args) == 0 || !args[0].IsObject() {
		return newArrayValue(ctx), nil
	}
	o := ctx.heap.Decode(args[0].ref_()).(*jsObject)
	keys := ctx.ordinaryEnumerableKeys(o)
	result := newArrayValue(ctx)
	resultObj := ctx.heap.Decode(result.ref_()).(*jsObject)
	for i, k := range keys {
		ctx.arraySetIndex(resultObj, uint32(i), ctx.propKeyToValue(k))
	}
	return result, nil
}

func builtinObjectAssign(ctx *Context, this Value, args []Value) (Value, error) {
	if len(args) == 0 {
		return Undefined, nil
	}
	target := args[0]
	if !target.IsObject() {
		return target, nil
	}
	for _, src := range args[1:] {
		if !src.IsObject() {
			continue
		}
		o := ctx.heap.Decode(src.ref_()).(*jsObject)
		for _, k := range ctx.ordinaryEnumerableKeys(o) {
			v, err := ctx.Get(src, k)
			if err != nil {
				return Value{}, err
			}
			if _, err := ctx.Set(target, k, v); err != nil {
				return Value{}, err
			}
		}
	}
	return target, nil
}

func builtinFunctionCall(ctx *Context, this Value, args []Value) (Value, error) {
	var newThis Value = Undefined
	var rest []Value
	if len(args) > 0 {
		newThis = args[0]
		rest = args[1:]
	}
	return ctx.Call(this, newThis, rest)
}

func builtinFunctionApply(ctx *Context, this Value, args []Value) (Value, error) {
	var newThis Value = Undefined
	if len(args) > 0 {
		newThis = args[0]
	}
	var rest []Value
	if len(args) > 1 && args[1].IsObject() {
		arr := ctx.heap.Decode(args[1].ref_()).(*jsObject)
		n := ctx.arrayLength(arr)
		for i := uint32(0); i < n; i++ {
			v, _ := ctx.arrayGetIndex(arr, i)
			rest = append(rest, v)
		}
	}
	return ctx.Call(this, newThis, rest)
}

func builtinFunctionBind(ctx *Context, this Value, args []Value) (Value, error) {
	var boundThis Value = Undefined
	var boundArgs []Value
	if len(args) > 0 {
		boundThis = args[0]
		boundArgs = append(boundArgs, args[1:]...)
	}
	o := newOrdinaryObject(ctx.realm.functionPrototype)
	o.kind = objectKindBoundFunction
	o.aux = &boundFunctionState{target: this, boundThis: boundThis, boundArgs: boundArgs}
	cp := ctx.heap.Alloc(heapKindObject, o)
	return objectValue(cp), nil
}

type boundFunctionState struct {
	target    Value
	boundThis Value
	boundArgs []Value
}

func builtinErrorToString(ctx *Context, this Value, args []Value) (Value, error) {
	nameKey := stringPropKey(ctx.strings.FindOrCreate("name", true))
	msgKey := stringPropKey(ctx.strings.FindOrCreate("message", true))
	nameVal, err := ctx.Get(this, nameKey)
	if err != nil {
		return Value{}, err
	}
	msgVal, err := ctx.Get(this, msgKey)
	if err != nil {
		return Value{}, err
	}
	nameCP, _ := ctx.ToString(nameVal)
	msgCP, _ := ctx.ToString(msgVal)
	name, msg := ctx.stringContent(nameCP), ctx.stringContent(msgCP)
	if msg == "" {
		return stringValue(ctx.strings.FindOrCreate(name, isASCII(name))), nil
	}
	out := name + ": " + msg
	return stringValue(ctx.strings.FindOrCreate(out, isASCII(out))), nil
}

func builtinConsoleLog(ctx *Context, this Value, args []Value) (Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = ctx.inspect(a)
	}
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	ctx.config.SetString("console.last", out) // observable by embedders/tests without real stdout
	return Undefined, nil
}

// inspect renders a value for console.log/JSON debugging without
// invoking user-overridable toString (so a thrown toString can't
// break logging), mirroring how most embeddable engines keep their
// debug print path independent of the ToString abstract operation.
func (ctx *Context) inspect(v Value) string {
	switch v.Kind() {
	case KindString:
		return ctx.stringContent(v.ref_())
	case KindObject:
		o := ctx.heap.Decode(v.ref_()).(*jsObject)
		if o.kind == objectKindArray {
			n := ctx.arrayLength(o)
			s := "[ "
			for i := uint32(0); i < n; i++ {
				if i > 0 {
					s += ", "
				}
				el, _ := ctx.arrayGetIndex(o, i)
				s += ctx.inspect(el)
			}
			return s + " ]"
		}
		return "[object]"
	default:
		return v.String()
	}
}

func builtinJSONStringify(ctx *Context, this Value, args []Value) (Value, error) {
	if len(args) == 0 {
		return Undefined, nil
	}
	s, err := jsonStringify(ctx, args[0])
	if err != nil {
		return Value{}, err
	}
	return stringValue(ctx.strings.FindOrCreate(s, isASCII(s))), nil
}

func builtinJSONParse(ctx *Context, this Value, args []Value) (Value, error) {
	if len(args) == 0 {
		return Undefined, nil
	}
	cp, err := ctx.ToString(args[0])
	if err != nil {
		return Value{}, err
	}
	return jsonParse(ctx, ctx.stringContent(cp))
}
