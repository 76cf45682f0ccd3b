package tinyjs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleStateString(t *testing.T) {
	tests := []struct {
		State    ModuleState
		Expected string
	}{
		{ModuleUnlinked, "unlinked"},
		{ModuleLinking, "linking"},
		{ModuleLinked, "linked"},
		{ModuleEvaluating, "evaluating"},
		{ModuleEvaluated, "evaluated"},
		{ModuleError, "error"},
	}
	for _, test := range tests {
		assert.Equal(t, test.Expected, test.State.String())
	}
}

func TestNativeModuleEvaluatesWithoutLinking(t *testing.T) {
	ctx := NewContext(NewConfig())

	m := ctx.NativeModule("env", []string{"PLATFORM"}, func(ctx *Context, m *Module) error {
		return nil
	})
	assert.Equal(t, ModuleLinked, m.State())

	ns, err := ctx.EvaluateModule(m)
	require.NoError(t, err)
	assert.True(t, ns.IsObject())
	assert.Equal(t, ModuleEvaluated, m.State())
}

func TestParseModuleDiscoversSpecifiersAndExports(t *testing.T) {
	ctx := NewContext(NewConfig())

	src := `
import "./math.js"
export var answer = 42;
export function helper() { return 1; }
export default function() {}
`
	m, err := ctx.ParseModule(src, "main.js")
	require.NoError(t, err)

	assert.Equal(t, ModuleUnlinked, m.State())
	assert.Equal(t, 1, m.RequestCount())
	assert.Equal(t, "./math.js", m.Request(0))
	assert.Equal(t, []string{"answer", "helper", "default"}, m.exportNames)
}

func TestLinkModuleResolvesDependencyGraph(t *testing.T) {
	ctx := NewContext(NewConfig())

	dep, err := ctx.ParseModule("export var value = 1;", "dep.js")
	require.NoError(t, err)

	root, err := ctx.ParseModule(`import "./dep.js"`, "root.js")
	require.NoError(t, err)

	resolveCalls := 0
	resolver := func(ctx *Context, specifier string, referrer *Module) (*Module, error) {
		resolveCalls++
		assert.Equal(t, "./dep.js", specifier)
		return dep, nil
	}

	require.NoError(t, ctx.LinkModule(root, resolver))
	assert.Equal(t, ModuleLinked, root.State())
	assert.Equal(t, ModuleLinked, dep.State())
	assert.Equal(t, 1, resolveCalls)

	_, err = ctx.EvaluateModule(root)
	require.NoError(t, err)
	assert.Equal(t, ModuleEvaluated, root.State())
	assert.Equal(t, ModuleEvaluated, dep.State())
}

func TestLinkModuleResolverFailurePropagates(t *testing.T) {
	ctx := NewContext(NewConfig())

	root, err := ctx.ParseModule(`import "./missing.js"`, "root.js")
	require.NoError(t, err)

	boom := errors.New("module not found")
	resolver := func(ctx *Context, specifier string, referrer *Module) (*Module, error) {
		return nil, boom
	}

	err = ctx.LinkModule(root, resolver)
	require.Error(t, err)
	assert.Equal(t, ModuleError, root.State())
	assert.Equal(t, boom, root.Error())
}

func TestEvaluateModuleRequiresLinked(t *testing.T) {
	ctx := NewContext(NewConfig())

	m, err := ctx.ParseModule("export var x = 1;", "a.js")
	require.NoError(t, err)

	_, err = ctx.EvaluateModule(m)
	require.Error(t, err)
}
