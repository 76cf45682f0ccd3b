package tinyjs

import "fmt"

// cpointer is a compressed pointer: a dense index into the engine's
// heap, scaled by nothing more than "one slot" in this port (spec
// §3.2/§9: "expose them through a typed index wrapper... references
// are temporary and never stored [as raw pointers]"). Zero is the
// reserved null value, exactly like the C engine's scaled byte offset
// being zero at the heap base.
//
// cpointer is intentionally a distinct type from plain int so that a
// stray integer can never silently stand in for a heap reference; see
// the teacher's ILabel/FileID typed-index idiom (vm_instructions.go,
// pos.go in the original langlang sources).
type cpointer uint32

const nullCPointer cpointer = 0

func (cp cpointer) isNull() bool { return cp == nullCPointer }

// heapKind tags what a heap cell holds, so the allocator can keep a
// free list per kind (spec §4.1 "one free list per allocation
// granularity class") without needing byte-level size accounting --
// in this port a "size class" is simply "same Go type", since the Go
// runtime already packs each kind densely.
type heapKind byte

const (
	heapKindFree heapKind = iota
	heapKindString
	heapKindObject
	heapKindSymbol
	heapKindBigInt
	heapKindException
	heapKindEnvironment
	heapKindCompiledCode
	heapKindArrayBuffer
)

type heapCell struct {
	kind heapKind
	obj  any
	mark bool // GC mark bit, consulted and cleared by gc.go
}

// Heap is the fixed-capacity arena every in-heap reference is
// addressed into. It is not reentrant with respect to itself: Alloc
// may trigger a GC cycle (gc.go), which may free cells and push them
// back onto the free lists, but it never calls back into Alloc.
type Heap struct {
	cells     []heapCell
	freeLists map[heapKind][]cpointer
	capacity  int
	oom       bool

	allocated int // cells currently in use; watermark for GC triggering
	gcTrigger func(h *Heap)

	// inFinalizer is true for the duration of gc.go's sweep finalizer
	// calls; api_internal.go's checkNotInFinalizer consults it to reject
	// embedder re-entry per spec §5.
	inFinalizer bool
}

// NewHeap builds a heap with room for `capacity` cells -- the
// port's stand-in for spec §4.1's "fixed-size backing store". Index 0
// is reserved so cpointer zero can mean null.
func NewHeap(capacity int) *Heap {
	h := &Heap{
		cells:     make([]heapCell, 1, capacity+1),
		freeLists: make(map[heapKind][]cpointer),
		capacity:  capacity,
	}
	return h
}

// SetGCTrigger installs the callback Alloc uses to run a collection
// cycle before giving up on an allocation. context.go wires this to
// the VM's mark roots.
func (h *Heap) SetGCTrigger(fn func(h *Heap)) { h.gcTrigger = fn }

// Alloc reserves a new cell of the given kind and returns its
// cpointer. On exhaustion it triggers a GC and retries once; if that
// still fails it sets the OOM flag and returns the null pointer,
// mirroring spec §4.1's failure model (the interpreter is responsible
// for turning that into an abort).
func (h *Heap) Alloc(kind heapKind, obj any) cpointer {
	if cp, ok := h.allocFreeList(kind, obj); ok {
		return cp
	}
	if len(h.cells) <= h.capacity {
		h.cells = append(h.cells, heapCell{kind: kind, obj: obj})
		h.allocated++
		return cpointer(len(h.cells) - 1)
	}
	if h.gcTrigger != nil {
		h.gcTrigger(h)
		if cp, ok := h.allocFreeList(kind, obj); ok {
			return cp
		}
	}
	h.oom = true
	return nullCPointer
}

func (h *Heap) allocFreeList(kind heapKind, obj any) (cpointer, bool) {
	list := h.freeLists[kind]
	if len(list) == 0 {
		return nullCPointer, false
	}
	cp := list[len(list)-1]
	h.freeLists[kind] = list[:len(list)-1]
	h.cells[cp] = heapCell{kind: kind, obj: obj}
	h.allocated++
	return cp, true
}

// Free returns a cell to its kind's free list. Called only from the
// GC sweep phase (gc.go) -- never from inside a mark function, per
// spec §4.7's GC invariants.
func (h *Heap) Free(cp cpointer) {
	if cp.isNull() {
		return
	}
	cell := &h.cells[cp]
	kind := cell.kind
	*cell = heapCell{kind: heapKindFree}
	h.freeLists[kind] = append(h.freeLists[kind], cp)
	h.allocated--
}

// Decode returns the Go value stored at cp. It panics on a null or
// out-of-range pointer: by construction no live reference should ever
// decode to a freed or nonexistent cell (spec §3.2: "ownership is
// expressed by reachability from roots plus the GC").
func (h *Heap) Decode(cp cpointer) any {
	internalAssert(!cp.isNull(), "Decode called on null cpointer")
	internalAssert(int(cp) < len(h.cells), "cpointer out of heap range")
	return h.cells[cp].obj
}

func (h *Heap) kindOf(cp cpointer) heapKind {
	if cp.isNull() || int(cp) >= len(h.cells) {
		return heapKindFree
	}
	return h.cells[cp].kind
}

// OutOfMemory reports (and clears) the sticky OOM flag set by a
// failed Alloc. The interpreter checks this immediately after any
// opcode that allocates.
func (h *Heap) OutOfMemory() bool {
	v := h.oom
	h.oom = false
	return v
}

// Stats backs the embedding API's `heap_stats` (spec §6.1).
type HeapStats struct {
	Capacity  int
	Allocated int
	Cells     int
}

func (h *Heap) Stats() HeapStats {
	return HeapStats{Capacity: h.capacity, Allocated: h.allocated, Cells: len(h.cells)}
}

func (h *Heap) String() string {
	return fmt.Sprintf("Heap{cells=%d/%d, allocated=%d}", len(h.cells), h.capacity, h.allocated)
}
