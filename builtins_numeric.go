package tinyjs

import (
	"math"
	"math/rand"
)

// builtins_numeric.go implements the Math routing-id targets. Go's
// math package already is the "fixed interface" spec.md's routing
// design wants for transcendental functions -- no third-party numeric
// library in the retrieved pack does better than stdlib here
// (a stdlib-only choice).

func argNumber(ctx *Context, args []Value, i int) float64 {
	if i >= len(args) {
		return math.NaN()
	}
	n, _ := ctx.ToNumber(args[i])
	return n
}

func builtinMathFloor(ctx *Context, this Value, args []Value) (Value, error) {
	return Number(math.Floor(argNumber(ctx, args, 0))), nil
}

func builtinMathCeil(ctx *Context, this Value, args []Value) (Value, error) {
	return Number(math.Ceil(argNumber(ctx, args, 0))), nil
}

func builtinMathRound(ctx *Context, this Value, args []Value) (Value, error) {
	return Number(math.Floor(argNumber(ctx, args, 0) + 0.5)), nil
}

func builtinMathRandom(ctx *Context, this Value, args []Value) (Value, error) {
	return Number(rand.Float64()), nil
}

func builtinMathMax(ctx *Context, this Value, args []Value) (Value, error) {
	if len(args) == 0 {
		return Number(math.Inf(-1)), nil
	}
	m := math.Inf(-1)
	for i := range args {
		n := argNumber(ctx, args, i)
		if math.IsNaN(n) {
			return Number(math.NaN()), nil
		}
		if n > m {
			m = n
		}
	}
	return Number(m), nil
}

func builtinMathMin(ctx *Context, this Value, args []Value) (Value, error) {
	if len(args) == 0 {
		return Number(math.Inf(1)), nil
	}
	m := math.Inf(1)
	for i := range args {
		n := argNumber(ctx, args, i)
		if math.IsNaN(n) {
			return Number(math.NaN()), nil
		}
		if n < m {
			m = n
		}
	}
	return Number(m), nil
}

func builtinMathAbs(ctx *Context, this Value, args []Value) (Value, error) {
	return Number(math.Abs(argNumber(ctx, args, 0))), nil
}

func builtinMathPow(ctx *Context, this Value, args []Value) (Value, error) {
	return Number(math.Pow(argNumber(ctx, args, 0), argNumber(ctx, args, 1))), nil
}

func builtinMathSqrt(ctx *Context, this Value, args []Value) (Value, error) {
	return Number(math.Sqrt(argNumber(ctx, args, 0))), nil
}
