package tinyjs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBoolean(t *testing.T) {
	ctx := NewContext(NewConfig())

	tests := []struct {
		Name     string
		V        Value
		Expected bool
	}{
		{"undefined", Undefined, false},
		{"null", Null, false},
		{"zero", Number(0), false},
		{"nan", Number(math.NaN()), false},
		{"nonzero number", Number(1), true},
		{"empty string", ctx.newStringResult(""), false},
		{"nonempty string", ctx.newStringResult("x"), true},
		{"true", True, true},
		{"false", False, false},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			assert.Equal(t, test.Expected, ctx.ToBoolean(test.V))
		})
	}
}

func TestToNumber(t *testing.T) {
	ctx := NewContext(NewConfig())

	n, err := ctx.ToNumber(ctx.newStringResult("42"))
	require.NoError(t, err)
	assert.Equal(t, float64(42), n)

	n, err = ctx.ToNumber(True)
	require.NoError(t, err)
	assert.Equal(t, float64(1), n)

	n, err = ctx.ToNumber(Null)
	require.NoError(t, err)
	assert.Equal(t, float64(0), n)

	n, err = ctx.ToNumber(Undefined)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(n))
}

func TestThrowAndExceptionState(t *testing.T) {
	ctx := NewContext(NewConfig())

	assert.False(t, ctx.HasException())

	err := ctx.ThrowTypeError("bad value")
	require.Error(t, err)
	assert.True(t, ctx.HasException())
	assert.True(t, ctx.ExceptionValue().IsObject())

	ctx.ClearException()
	assert.False(t, ctx.HasException())
}

func TestStringInterning(t *testing.T) {
	ctx := NewContext(NewConfig())

	a := ctx.strings.FindOrCreate("shared", true)
	b := ctx.strings.FindOrCreate("shared", true)
	assert.Equal(t, a, b, "identical string content should intern to the same cpointer")
}
