package tinyjs

import "strings"

// builtins_string.go implements String.prototype's routing-id targets.
// All operate on the UTF-16-code-unit indexing ECMA-262 mandates via
// []rune approximation (a simplification for astral characters vs.
// true surrogate-pair indexing).

func thisString(ctx *Context, this Value) (string, error) {
	if this.IsString() {
		return ctx.stringContent(this.ref_()), nil
	}
	cp, err := ctx.ToString(this)
	if err != nil {
		return "", err
	}
	return ctx.stringContent(cp), nil
}

func (ctx *Context) newStringResult(s string) Value {
	return stringValue(ctx.strings.FindOrCreate(s, isASCII(s)))
}

func builtinStringCharAt(ctx *Context, this Value, args []Value) (Value, error) {
	s, err := thisString(ctx, this)
	if err != nil {
		return Value{}, err
	}
	idx := 0
	if len(args) > 0 {
		n, _ := ctx.ToNumber(args[0])
		idx = int(n)
	}
	runes := []rune(s)
	if idx < 0 || idx >= len(runes) {
		return ctx.newStringResult(""), nil
	}
	return ctx.newStringResult(string(runes[idx])), nil
}

func builtinStringSlice(ctx *Context, this Value, args []Value) (Value, error) {
	s, err := thisString(ctx, this)
	if err != nil {
		return Value{}, err
	}
	runes := []rune(s)
	n := len(runes)
	start, end := 0, n
	if len(args) > 0 {
		start = normalizeSliceIndex(ctx, args[0], n)
	}
	if len(args) > 1 && !args[1].IsUndefined() {
		end = normalizeSliceIndex(ctx, args[1], n)
	}
	if end < start {
		end = start
	}
	return ctx.newStringResult(string(runes[start:end])), nil
}

func builtinStringSplit(ctx *Context, this Value, args []Value) (Value, error) {
	s, err := thisString(ctx, this)
	if err != nil {
		return Value{}, err
	}
	result := newArrayValue(ctx)
	resultObj := ctx.heap.Decode(result.ref_()).(*jsObject)
	if len(args) == 0 || args[0].IsUndefined() {
		ctx.arraySetIndex(resultObj, 0, ctx.newStringResult(s))
		return result, nil
	}
	sepCP, err := ctx.ToString(args[0])
	if err != nil {
		return Value{}, err
	}
	sep := ctx.stringContent(sepCP)
	var parts []string
	if sep == "" {
		for _, r := range s {
			parts = append(parts, string(r))
		}
	} else {
		parts = strings.Split(s, sep)
	}
	for i, p := range parts {
		ctx.arraySetIndex(resultObj, uint32(i), ctx.newStringResult(p))
	}
	return result, nil
}

func builtinStringIndexOf(ctx *Context, this Value, args []Value) (Value, error) {
	s, err := thisString(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 {
		return Int(-1), nil
	}
	needleCP, err := ctx.ToString(args[0])
	if err != nil {
		return Value{}, err
	}
	needle := ctx.stringContent(needleCP)
	idx := strings.Index(s, needle)
	if idx < 0 {
		return Int(-1), nil
	}
	return Int(len([]rune(s[:idx]))), nil
}

func builtinStringToUpperCase(ctx *Context, this Value, args []Value) (Value, error) {
	s, err := thisString(ctx, this)
	if err != nil {
		return Value{}, err
	}
	return ctx.newStringResult(strings.ToUpper(s)), nil
}

func builtinStringToLowerCase(ctx *Context, this Value, args []Value) (Value, error) {
	s, err := thisString(ctx, this)
	if err != nil {
		return Value{}, err
	}
	return ctx.newStringResult(strings.ToLower(s)), nil
}

func builtinStringConcat(ctx *Context, this Value, args []Value) (Value, error) {
	s, err := thisString(ctx, this)
	if err != nil {
		return Value{}, err
	}
	for _, a := range args {
		cp, err := ctx.ToString(a)
		if err != nil {
			return Value{}, err
		}
		s += ctx.stringContent(cp)
	}
	return ctx.newStringResult(s), nil
}

func builtinStringIncludes(ctx *Context, this Value, args []Value) (Value, error) {
	s, err := thisString(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 {
		return False, nil
	}
	needleCP, err := ctx.ToString(args[0])
	if err != nil {
		return Value{}, err
	}
	return Bool(strings.Contains(s, ctx.stringContent(needleCP))), nil
}

func builtinStringReplace(ctx *Context, this Value, args []Value) (Value, error) {
	s, err := thisString(ctx, this)
	if err != nil {
		return Value{}, err
	}
	if len(args) < 2 {
		return ctx.newStringResult(s), nil
	}
	patCP, err := ctx.ToString(args[0])
	if err != nil {
		return Value{}, err
	}
	pattern := ctx.stringContent(patCP)
	replCP, err := ctx.ToString(args[1])
	if err != nil {
		return Value{}, err
	}
	return ctx.newStringResult(strings.Replace(s, pattern, ctx.stringContent(replCP), 1)), nil
}

func builtinStringTrim(ctx *Context, this Value, args []Value) (Value, error) {
	s, err := thisString(ctx, this)
	if err != nil {
		return Value{}, err
	}
	return ctx.newStringResult(trimJSWhitespace(s)), nil
}

func builtinNumberToString(ctx *Context, this Value, args []Value) (Value, error) {
	n, err := ctx.ToNumber(this)
	if err != nil {
		return Value{}, err
	}
	return ctx.newStringResult(formatNumber(n)), nil
}

func builtinBooleanToString(ctx *Context, this Value, args []Value) (Value, error) {
	if ctx.ToBoolean(this) {
		return ctx.newStringResult("true"), nil
	}
	return ctx.newStringResult("false"), nil
}
