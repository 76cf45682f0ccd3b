package tinyjs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrayBuiltins(t *testing.T) {
	tests := []struct {
		Name     string
		Source   string
		Expected string
	}{
		{"push returns new length", "[1,2].push(3)", "3"},
		{"pop returns last element", "[1,2,3].pop()", "3"},
		{"join default comma", "[1,2,3].join()", "1,2,3"},
		{"join custom separator", "['a','b'].join('-')", "a-b"},
		{"map doubles", "[1,2,3].map(function(x){return x*2}).join()", "2,4,6"},
		{"filter evens", "[1,2,3,4].filter(function(x){return x%2===0}).join()", "2,4"},
		{"reduce sums", "[1,2,3,4].reduce(function(a,b){return a+b}, 0)", "10"},
		{"indexOf found", "[10,20,30].indexOf(20)", "1"},
		{"includes true", "[10,20,30].includes(30)", "true"},
		{"concat", "[1,2].concat([3,4]).join()", "1,2,3,4"},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			out, err := eval(t, test.Source)
			require.NoError(t, err)
			assert.Equal(t, test.Expected, out)
		})
	}
}

func TestObjectAndStringBuiltins(t *testing.T) {
	tests := []struct {
		Name     string
		Source   string
		Expected string
	}{
		{"Object.keys", "Object.keys({a:1,b:2}).join()", "a,b"},
		{"string concat via plus", "'foo' + 'bar'", "foobar"},
		{"string length", "'hello'.length", "5"},
		{"string toUpperCase", "'abc'.toUpperCase()", "ABC"},
		{"string split", "'a,b,c'.split(',').join('-')", "a-b-c"},
		{"string trim", "'  hi  '.trim()", "hi"},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			out, err := eval(t, test.Source)
			require.NoError(t, err)
			assert.Equal(t, test.Expected, out)
		})
	}
}

func TestMapAndSetBuiltins(t *testing.T) {
	out, err := eval(t, `
		var m = new Map();
		m.set('a', 1);
		m.get('a')
	`)
	require.NoError(t, err)
	assert.Equal(t, "1", out)

	out, err = eval(t, `
		var s = new Set();
		s.add(1);
		s.has(1)
	`)
	require.NoError(t, err)
	assert.Equal(t, "true", out)
}

func TestWeakCollectionsBuiltins(t *testing.T) {
	out, err := eval(t, `
		var key = {};
		var wm = new WeakMap();
		wm.set(key, 'value');
		wm.has(key) + ':' + wm.get(key)
	`)
	require.NoError(t, err)
	assert.Equal(t, "true:value", out)

	out, err = eval(t, `
		var target = {};
		var wm = new WeakMap();
		wm.set(target, 1);
		wm.delete(target);
		wm.has(target)
	`)
	require.NoError(t, err)
	assert.Equal(t, "false", out)

	out, err = eval(t, `
		var target = {};
		var ws = new WeakSet();
		ws.add(target);
		ws.has(target)
	`)
	require.NoError(t, err)
	assert.Equal(t, "true", out)

	out, err = eval(t, `
		var target = {};
		var ref = new WeakRef(target);
		ref.deref() === target
	`)
	require.NoError(t, err)
	assert.Equal(t, "true", out)

	_, err = eval(t, `
		var fr = new FinalizationRegistry(function(held) {});
		var target = {};
		fr.register(target, 'token');
		fr.unregister('token')
	`)
	require.NoError(t, err)
}
