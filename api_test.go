package tinyjs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eval is the table-test helper every case below funnels through: fresh
// Engine, parse, run, drain microtasks, stringify the result.
func eval(t *testing.T, src string) (string, error) {
	t.Helper()
	engine := Init(NewConfig())
	defer engine.Cleanup()

	template, err := engine.Parse(src, ParseOptions{SourceName: "<test>"})
	if err != nil {
		return "", err
	}
	result, err := engine.Run(template)
	if err != nil {
		return "", err
	}
	engine.RunJobs()
	return engine.ToString(result)
}

func TestEvalExpressions(t *testing.T) {
	tests := []struct {
		Name     string
		Source   string
		Expected string
	}{
		{
			Name:     "arithmetic",
			Source:   "var x = 1 + 2; x",
			Expected: "3",
		},
		{
			Name:     "function call",
			Source:   "function f(a, b) { return a * b; } f(6, 7)",
			Expected: "42",
		},
		{
			Name:     "loop and string concatenation",
			Source:   "var s = ''; for (var i = 0; i < 3; i++) { s = s + i; } s",
			Expected: "012",
		},
		{
			Name:     "try/catch",
			Source:   "var r; try { throw 'boom'; } catch (e) { r = 'caught:' + e; } r",
			Expected: "caught:boom",
		},
		{
			Name:     "getter access",
			Source:   "var o = { get answer() { return 42; } }; o.answer",
			Expected: "42",
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			out, err := eval(t, test.Source)
			require.NoError(t, err)
			assert.Equal(t, test.Expected, out)
		})
	}
}

func TestEvalPromiseResolution(t *testing.T) {
	out, err := eval(t, `
		var seen = '';
		Promise.resolve(1).then(function(v) { seen = 'resolved:' + v; });
		seen
	`)
	require.NoError(t, err)
	// the reaction hasn't flushed yet at this point in the script
	assert.Equal(t, "", out)
}

func TestStringLiteralInterning(t *testing.T) {
	engine := Init(NewConfig())
	defer engine.Cleanup()

	template, err := engine.Parse(`'hello' === 'hello'`, ParseOptions{SourceName: "<test>"})
	require.NoError(t, err)

	result, err := engine.Run(template)
	require.NoError(t, err)
	assert.True(t, result.AsBool())
}

func TestEngineEvalHelper(t *testing.T) {
	engine := Init(NewConfig())
	defer engine.Cleanup()

	result, err := engine.Eval("2 + 2")
	require.NoError(t, err)
	assert.Equal(t, float64(4), result.AsNumber())
}

func TestEngineValueConstructors(t *testing.T) {
	engine := Init(NewConfig())
	defer engine.Cleanup()

	t.Run("boolean", func(t *testing.T) {
		assert.True(t, engine.NewBoolean(true).AsBool())
	})

	t.Run("number", func(t *testing.T) {
		assert.Equal(t, "3.5", engine.NewNumber(3.5).String())
	})

	t.Run("string", func(t *testing.T) {
		v := engine.NewString("abc")
		s, err := engine.ToString(v)
		require.NoError(t, err)
		assert.Equal(t, "abc", s)
	})

	t.Run("array", func(t *testing.T) {
		v := engine.NewArray()
		assert.True(t, v.IsObject())
	})

	t.Run("object", func(t *testing.T) {
		v := engine.NewObject()
		assert.True(t, v.IsObject())
	})

	t.Run("symbol", func(t *testing.T) {
		v := engine.NewSymbol("tag")
		assert.False(t, v.IsObject())
	})

	t.Run("bigint", func(t *testing.T) {
		v := engine.NewBigInt(9001)
		assert.False(t, v.IsObject())
	})
}

func TestEngineNewFunctionRoundTrip(t *testing.T) {
	engine := Init(NewConfig())
	defer engine.Cleanup()

	fn := engine.NewFunction(func(this Value, args []Value) (Value, error) {
		if len(args) == 0 {
			return Undefined, nil
		}
		return Number(args[0].AsNumber() * 2), nil
	})

	result, err := engine.Call(fn, Undefined, []Value{Number(21)})
	require.NoError(t, err)
	assert.Equal(t, float64(42), result.AsNumber())
}

func TestEngineThrowAndClearException(t *testing.T) {
	engine := Init(NewConfig())
	defer engine.Cleanup()

	_, err := engine.Eval("nonExistentIdentifier")
	require.Error(t, err)
	assert.True(t, engine.ctx.HasException())

	engine.ctx.ClearException()
	assert.False(t, engine.ctx.HasException())
}

func TestEngineToObjectWrapsPrimitives(t *testing.T) {
	engine := Init(NewConfig())
	defer engine.Cleanup()

	wrapped, err := engine.ToObject(engine.NewString("abc"))
	require.NoError(t, err)
	assert.True(t, wrapped.IsObject())

	_, err = engine.ToObject(engine.NewNull())
	require.Error(t, err)
}

func TestEngineProperties(t *testing.T) {
	engine := Init(NewConfig())
	defer engine.Cleanup()

	obj := engine.NewObject()
	key := engine.NewString("greeting")

	_, err := engine.Set(obj, key, engine.NewString("hi"))
	require.NoError(t, err)

	has, err := engine.Has(obj, key)
	require.NoError(t, err)
	assert.True(t, has)

	got, err := engine.Get(obj, key)
	require.NoError(t, err)
	gotStr, err := engine.ToString(got)
	require.NoError(t, err)
	assert.Equal(t, "hi", gotStr)
}

func TestGeneratorYieldSequence(t *testing.T) {
	out, err := eval(t, `
		function* gen() { yield 1; yield 2; return 3; }
		var g = gen();
		var a = g.next().value;
		var b = g.next().value;
		var c = g.next();
		'' + a + b + c.value + c.done
	`)
	require.NoError(t, err)
	assert.Equal(t, "123true", out)
}

func TestHaltHandlerAbortsLongRunningScript(t *testing.T) {
	engine := Init(NewConfig())
	defer engine.Cleanup()

	engine.HaltHandler(10, func() bool { return true })

	_, err := engine.Eval("var i = 0; while (true) { i++; }")
	require.Error(t, err)
}
