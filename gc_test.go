package tinyjs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGCSweepsUnreachableObjects(t *testing.T) {
	ctx := NewContext(NewConfig())

	garbage := ctx.heap.Alloc(heapKindObject, newOrdinaryObject(nullCPointer))
	assert.Equal(t, heapKindObject, ctx.heap.kindOf(garbage))

	ctx.collectGarbage()

	assert.Equal(t, heapKindFree, ctx.heap.kindOf(garbage))
}

func TestGCKeepsGlobalObjectReachable(t *testing.T) {
	ctx := NewContext(NewConfig())

	globalCP := ctx.realm.globalObj
	assert.False(t, globalCP.isNull())

	ctx.collectGarbage()

	assert.Equal(t, heapKindObject, ctx.heap.kindOf(globalCP))
}

// TestGCPrunesWeakMapEntryAfterKeyCollected exercises gc.go's
// pruneWeakContainers: once a WeakMap key becomes unreachable from any
// root, the GC drops the entry rather than leaving it to dangle on a
// freed cpointer.
func TestGCPrunesWeakMapEntryAfterKeyCollected(t *testing.T) {
	ctx := NewContext(NewConfig())

	wmVal := newWeakMapValue(ctx)
	wm := ctx.heap.Decode(wmVal.ref_()).(*jsObject).aux.(*weakMapState)

	keyCP := ctx.heap.Alloc(heapKindObject, newOrdinaryObject(nullCPointer))
	wm.entries = append(wm.entries, weakMapEntry{key: keyCP, value: Number(1)})

	// Root the WeakMap itself (via the global env) but not the key.
	ctx.realm.globalEnv.createMutableBinding("wm", true)
	ctx.realm.globalEnv.initializeBinding("wm", wmVal)

	ctx.collectGarbage()

	assert.Equal(t, heapKindFree, ctx.heap.kindOf(keyCP))
	assert.Empty(t, wm.entries)
}

// TestGCEphemeronKeepsWeakMapValueAliveWithKey verifies the fixpoint
// in gc.markEphemeronValues: a WeakMap value survives a collection as
// long as its key is independently reachable, even though nothing
// else roots the value directly.
func TestGCEphemeronKeepsWeakMapValueAliveWithKey(t *testing.T) {
	ctx := NewContext(NewConfig())

	wmVal := newWeakMapValue(ctx)
	wm := ctx.heap.Decode(wmVal.ref_()).(*jsObject).aux.(*weakMapState)

	keyCP := ctx.heap.Alloc(heapKindObject, newOrdinaryObject(nullCPointer))
	valueCP := ctx.heap.Alloc(heapKindObject, newOrdinaryObject(nullCPointer))
	wm.entries = append(wm.entries, weakMapEntry{key: keyCP, value: objectValue(valueCP)})

	ctx.realm.globalEnv.createMutableBinding("wm", true)
	ctx.realm.globalEnv.initializeBinding("wm", wmVal)
	ctx.realm.globalEnv.createMutableBinding("key", true)
	ctx.realm.globalEnv.initializeBinding("key", objectValue(keyCP))

	ctx.collectGarbage()

	assert.Equal(t, heapKindObject, ctx.heap.kindOf(keyCP))
	assert.Equal(t, heapKindObject, ctx.heap.kindOf(valueCP))
	assert.Len(t, wm.entries, 1)
}
