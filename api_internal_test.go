package tinyjs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckInitialized(t *testing.T) {
	var zero Engine
	assert.Equal(t, errNotInitialized, zero.checkInitialized())

	engine := Init(NewConfig())
	defer engine.Cleanup()
	assert.NoError(t, engine.checkInitialized())
}

func TestRequireCallableAndObject(t *testing.T) {
	engine := Init(NewConfig())
	defer engine.Cleanup()

	fn := engine.NewFunction(func(this Value, args []Value) (Value, error) { return Undefined, nil })
	assert.NoError(t, engine.requireCallable(fn))
	assert.Error(t, engine.requireCallable(engine.NewNumber(1)))

	obj := engine.NewObject()
	assert.NoError(t, engine.requireObject(obj))
	assert.Error(t, engine.requireObject(engine.NewString("x")))
}

func TestToPropKeyFromString(t *testing.T) {
	engine := Init(NewConfig())
	defer engine.Cleanup()

	key, err := engine.toPropKey(engine.NewString("length"))
	require.NoError(t, err)
	assert.Equal(t, "length", engine.propKeyString(key))
}

func TestCheckNotInFinalizer(t *testing.T) {
	engine := Init(NewConfig())
	defer engine.Cleanup()

	assert.NoError(t, engine.checkNotInFinalizer())

	engine.ctx.heap.inFinalizer = true
	assert.Equal(t, errReentrantFinalizer, engine.checkNotInFinalizer())
	engine.ctx.heap.inFinalizer = false
}
