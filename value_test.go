package tinyjs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		Name     string
		N        float64
		Expected string
	}{
		{"integer", 42, "42"},
		{"fraction", 3.5, "3.5"},
		{"negative zero", math.Copysign(0, -1), "0"},
		{"large integer", 1e20, "100000000000000000000"},
	}
	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			assert.Equal(t, test.Expected, formatNumber(test.N))
		})
	}
}

func TestValuePredicates(t *testing.T) {
	assert.True(t, Undefined.IsUndefined())
	assert.True(t, Null.IsNull())
	assert.True(t, Null.IsNullish())
	assert.True(t, Undefined.IsNullish())
	assert.True(t, Bool(true).IsBoolean())
	assert.True(t, Number(1).IsNumber())
	assert.False(t, Number(1).IsObject())
}

func TestSameValueZero(t *testing.T) {
	ctx := NewContext(NewConfig())

	assert.True(t, sameValueZero(ctx, Number(1), Number(1)))
	assert.False(t, sameValueZero(ctx, Number(1), Number(2)))
	assert.True(t, sameValueZero(ctx, Undefined, Undefined))

	nan := Number(nanValue())
	assert.True(t, sameValueZero(ctx, nan, nan), "NaN is SameValueZero to itself")
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}

func TestSymbolAndBigIntRoundTrip(t *testing.T) {
	ctx := NewContext(NewConfig())

	sym := ctx.newSymbolValue("tag")
	assert.Equal(t, "tag", ctx.symbolDescription(sym.ref_()))

	big := ctx.newBigIntValue(123456789)
	assert.Equal(t, int64(123456789), ctx.bigIntContent(big.ref_()))
}
