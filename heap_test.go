package tinyjs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeapAllocAndDecode(t *testing.T) {
	h := NewHeap(4)

	cp := h.Alloc(heapKindString, "hello")
	require.False(t, cp.isNull())
	assert.Equal(t, "hello", h.Decode(cp))
	assert.Equal(t, heapKindString, h.kindOf(cp))
}

func TestHeapFreeListReuse(t *testing.T) {
	h := NewHeap(4)

	cp := h.Alloc(heapKindString, "first")
	h.Free(cp)
	assert.Equal(t, heapKindFree, h.kindOf(cp))

	cp2 := h.Alloc(heapKindString, "second")
	assert.Equal(t, cp, cp2)
	assert.Equal(t, "second", h.Decode(cp2))
}

func TestHeapExhaustionTriggersGCCallback(t *testing.T) {
	h := NewHeap(1)

	triggered := false
	h.SetGCTrigger(func(h *Heap) { triggered = true })

	h.Alloc(heapKindString, "one")
	h.Alloc(heapKindString, "two")

	assert.True(t, triggered)
	assert.True(t, h.OutOfMemory())
	assert.False(t, h.OutOfMemory(), "flag should clear after reading once")
}

func TestHeapStats(t *testing.T) {
	h := NewHeap(8)
	h.Alloc(heapKindString, "a")
	h.Alloc(heapKindObject, struct{}{})

	stats := h.Stats()
	assert.Equal(t, 8, stats.Capacity)
	assert.Equal(t, 2, stats.Allocated)
}
