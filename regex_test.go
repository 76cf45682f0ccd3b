package tinyjs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegexEngineTestAndExec(t *testing.T) {
	eng, err := newRegexEngine(`\d+`, "")
	require.NoError(t, err)

	ok, err := eng.Test("abc 123")
	require.NoError(t, err)
	assert.True(t, ok)

	m, err := eng.Exec("abc 123", 0)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 4, m.Index)
	assert.Equal(t, "123", m.Groups[0])
}

func TestRegexEngineFlags(t *testing.T) {
	eng, err := newRegexEngine("abc", "i")
	require.NoError(t, err)

	ok, err := eng.Test("ABC")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewRegExpValueRejectsBadPattern(t *testing.T) {
	ctx := NewContext(NewConfig())

	_, err := newRegExpValue(ctx, "(unclosed", "")
	require.Error(t, err)
	assert.True(t, ctx.HasException())
}

func TestRegExpLiteralViaEngine(t *testing.T) {
	out, err := eval(t, `/[0-9]+/.test("room42")`)
	require.NoError(t, err)
	assert.Equal(t, "true", out)
}
