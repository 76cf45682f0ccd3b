package tinyjs

// gc.go is the heap's mark-sweep collector (spec §4.7/§9): wired as
// Heap.gcTrigger (context.go's NewContext) so Heap.Alloc runs it
// automatically on exhaustion, and reachable directly through
// Context.collectGarbage for an embedder-requested collection.
//
// Marking is iterative rather than recursive (a worklist of gray
// cpointers), the same explicit-stack idiom the teacher uses for its
// own non-recursive traversal state (vm_stack.go's `stack` type)
// rather than risking a Go call-stack blowout on a long property or
// prototype chain.

// runGC performs one full collection cycle: clear marks, trace every
// root, then sweep every still-unmarked cell back to its free list.
func runGC(ctx *Context) {
	h := ctx.heap
	for i := range h.cells {
		h.cells[i].mark = false
	}

	// objIndex lets a mark visitor reach a *jsObject held only by a raw
	// Go pointer instead of a cpointer (builtins_collections.go's
	// reaction.resultPromise) by looking the pointer back up to its cell.
	objIndex := make(map[*jsObject]cpointer, h.allocated)
	for i := 1; i < len(h.cells); i++ {
		if o, ok := h.cells[i].obj.(*jsObject); ok {
			objIndex[o] = cpointer(i)
		}
	}

	g := &gcState{ctx: ctx, heap: h, objIndex: objIndex, visitedEnv: map[*lexEnv]bool{}}

	// Magic strings live for the process lifetime (strtab.go) and are
	// never reached by walking frames/realm, so they are marked as
	// permanent roots directly.
	for _, cp := range ctx.strings.magic {
		g.mark(cp)
	}

	for _, fr := range ctx.frames {
		g.markFrame(fr)
	}
	if ctx.realm != nil {
		g.markRealm(ctx.realm)
	}
	if ctx.hasException {
		g.markValue(ctx.exceptionValue)
	}

	for {
		for len(g.gray) > 0 {
			cp := g.gray[len(g.gray)-1]
			g.gray = g.gray[:len(g.gray)-1]
			g.markCell(cp)
		}
		if !g.markEphemeronValues() {
			break
		}
	}

	// inFinalizer gates api_internal.go's re-entrancy check (spec §5:
	// "never enter the engine from inside a finalizer"); a finalizer may
	// itself allocate (spec §4.7), so this only blocks embedder re-entry
	// through the public API, not internal Alloc calls.
	h.inFinalizer = true
	for i := 1; i < len(h.cells); i++ {
		cp := cpointer(i)
		if h.cells[cp].kind == heapKindFree || h.cells[cp].mark {
			continue
		}
		g.finalize(cp)
		h.Free(cp)
	}
	h.inFinalizer = false

	g.pruneWeakContainers()
}

// pruneWeakContainers runs once per cycle, after sweep has returned
// every dead cell to its free list: live WeakMap/WeakSet entries whose
// key/target just got swept are dropped, a live WeakRef whose target
// got swept is cleared, and a live FinalizationRegistry record whose
// target got swept has its cleanup callback queued onto the microtask
// queue with the record's held value, then is removed (spec §4.7:
// "weak containers... drop cleared entries during sweep").
func (g *gcState) pruneWeakContainers() {
	for i := 1; i < len(g.heap.cells); i++ {
		cell := &g.heap.cells[i]
		if cell.kind != heapKindObject {
			continue
		}
		o, ok := cell.obj.(*jsObject)
		if !ok {
			continue
		}
		switch aux := o.aux.(type) {
		case *weakMapState:
			kept := aux.entries[:0]
			for _, e := range aux.entries {
				if g.heap.kindOf(e.key) != heapKindFree {
					kept = append(kept, e)
				}
			}
			aux.entries = kept
		case *weakSetState:
			kept := aux.targets[:0]
			for _, t := range aux.targets {
				if g.heap.kindOf(t) != heapKindFree {
					kept = append(kept, t)
				}
			}
			aux.targets = kept
		case *weakRefState:
			if !aux.target.isNull() && g.heap.kindOf(aux.target) == heapKindFree {
				aux.target = nullCPointer
			}
		case *finalizationRegistryState:
			kept := aux.records[:0]
			for _, rec := range aux.records {
				if g.heap.kindOf(rec.target) != heapKindFree {
					kept = append(kept, rec)
					continue
				}
				if g.ctx.isCallable(aux.cleanupCallback) {
					cb, held := aux.cleanupCallback, rec.heldValue
					g.ctx.enqueueMicrotask(func() {
						if _, err := g.ctx.Call(cb, Undefined, []Value{held}); err != nil {
							g.ctx.ClearException()
						}
					})
				}
			}
			aux.records = kept
		}
	}
}

type gcState struct {
	ctx        *Context
	heap       *Heap
	objIndex   map[*jsObject]cpointer
	visitedEnv map[*lexEnv]bool
	gray       []cpointer
}

func (g *gcState) mark(cp cpointer) {
	if cp.isNull() || int(cp) >= len(g.heap.cells) {
		return
	}
	cell := &g.heap.cells[cp]
	if cell.kind == heapKindFree || cell.mark {
		return
	}
	cell.mark = true
	g.gray = append(g.gray, cp)
}

func (g *gcState) markValue(v Value) {
	switch v.Kind() {
	case KindObject, KindString, KindSymbol, KindBigInt:
		g.mark(v.ref_())
	}
}

func (g *gcState) markPropKey(k propKey) {
	switch k.kind {
	case propKeyString:
		g.mark(k.str)
	case propKeySymbol:
		g.mark(k.sym)
	}
}

func (g *gcState) markObjPtr(o *jsObject) {
	if o == nil {
		return
	}
	if cp, ok := g.objIndex[o]; ok {
		g.mark(cp)
	}
}

// markFrame roots one call activation: its operand stack, this/
// newTarget/funcObj, every parameter/local slot, and the environment
// chain it closes over.
func (g *gcState) markFrame(fr *frame) {
	if fr == nil {
		return
	}
	g.markValue(fr.this)
	g.markValue(fr.newTarget)
	g.markValue(fr.funcObj)
	for _, v := range fr.stack {
		g.markValue(v)
	}
	for _, b := range fr.localBindings {
		if b != nil {
			g.markValue(b.value)
		}
	}
	g.markEnv(fr.env)
}

// markEnv walks the outer chain, stopping at an already-visited
// environment: many frames/closures share the same outer prefix, and
// without the visited check a deep closure nest would be retraced
// once per frame that captured it.
func (g *gcState) markEnv(e *lexEnv) {
	for e != nil {
		if g.visitedEnv[e] {
			return
		}
		g.visitedEnv[e] = true
		if e.kind == envKindObjectBinding {
			g.mark(e.bindingObject)
		}
		for _, b := range e.names {
			g.markValue(b.value)
		}
		for _, pn := range e.privateNames {
			g.markValue(pn.get)
			g.markValue(pn.set)
		}
		e = e.outer
	}
}

func (g *gcState) markRealm(r *Realm) {
	g.mark(r.globalObj)
	g.mark(r.objectPrototype)
	g.mark(r.functionPrototype)
	g.mark(r.arrayPrototype)
	g.mark(r.stringPrototype)
	g.mark(r.numberPrototype)
	g.mark(r.booleanPrototype)
	g.mark(r.errorPrototype)
	g.mark(r.regexpPrototype)
	g.mark(r.promisePrototype)
	g.mark(r.mapPrototype)
	g.mark(r.setPrototype)
	g.mark(r.weakMapPrototype)
	g.mark(r.weakSetPrototype)
	g.mark(r.weakRefPrototype)
	g.mark(r.finalizationRegistryPrototype)
	g.markEnv(r.globalEnv)
}

// markCell traces one gray cell's own outgoing edges. Only
// heapKindObject cells carry further cpointer edges to chase;
// heapKindString cells hold plain Go string data (a transient rope's
// left/right are raw *jsString pointers Go's own GC already keeps
// alive once the rope cell itself is reachable, not cpointer edges
// this heap's bookkeeping needs to walk).
func (g *gcState) markCell(cp cpointer) {
	cell := &g.heap.cells[cp]
	if cell.kind != heapKindObject {
		return
	}
	o := cell.obj.(*jsObject)
	g.mark(o.proto)
	for _, v := range o.fastArray {
		g.markValue(v)
	}
	for p := o.propsHead; p != nil; p = p.next {
		g.markPropKey(p.key)
		switch p.kind {
		case propKindData:
			g.markValue(p.value)
		case propKindAccessor:
			g.markValue(p.get)
			g.markValue(p.set)
		}
	}
	if o.nativePtr != nil && o.nativePtr.typeInfo != nil && o.nativePtr.typeInfo.References != nil {
		for _, v := range o.nativePtr.typeInfo.References(o.nativePtr.ptr) {
			g.markValue(v)
		}
	}
	g.markAux(o)
}

// markAux dispatches on the per-kind auxiliary payload object.go
// documents ("not every kind needs a distinct Go type... type-asserted
// by the handful of call sites that care"); this is the GC's call
// site. Kinds whose aux carries no Value/cpointer edges (*ctorState,
// *promiseCtorState, *closureFuncState, *builtinFuncState,
// *regexpState) fall through with nothing to do.
func (g *gcState) markAux(o *jsObject) {
	switch aux := o.aux.(type) {
	case *functionState:
		g.markEnv(aux.env)
		g.markValue(aux.lexicalThis)
		g.markValue(aux.lexicalNewTarget)
		g.markValue(aux.homeObject)
	case *boundFunctionState:
		g.markValue(aux.target)
		g.markValue(aux.boundThis)
		for _, v := range aux.boundArgs {
			g.markValue(v)
		}
	case *errorCtorState:
		g.mark(aux.proto)
	case *primitiveWrapperState:
		g.markValue(aux.primitive)
	case *mapState:
		for _, e := range aux.entries {
			g.markValue(e.key)
			g.markValue(e.value)
		}
	case *setState:
		for _, v := range aux.values {
			g.markValue(v)
		}
	case *promiseState:
		g.markValue(aux.result)
		for _, r := range aux.reactions {
			g.markValue(r.onFulfilled)
			g.markValue(r.onRejected)
			g.markObjPtr(r.resultPromise)
		}
	case *generatorState:
		// The goroutine parked on resumeCh/yieldCh keeps its own frame
		// alive via ordinary Go reachability once it has started; before
		// the first resume (or while suspended mid-yield, which already
		// re-enters runFrame and so is covered by the Context.frames
		// walk above) aux.fr is the only root pointing at it.
		if !aux.finished {
			g.markFrame(aux.fr)
		}
	case *iteratorState:
		for _, v := range aux.values {
			g.markValue(v)
		}
		for _, k := range aux.keys {
			g.markPropKey(k)
		}
	case *proxyState:
		g.mark(aux.target)
		g.mark(aux.handler)
	case *weakMapState, *weakSetState, *weakRefState:
		// Keys/targets are intentionally not marked here -- that is what
		// makes the reference weak (spec §4.7's weak containers). A
		// WeakMap's values are marked later, once per-key reachability is
		// known, by the ephemeron fixpoint in runGC.
	case *finalizationRegistryState:
		g.markValue(aux.cleanupCallback)
		for _, rec := range aux.records {
			g.markValue(rec.heldValue)
		}
	}
}

// markEphemeronValues marks every WeakMap value whose key cell is
// already marked, and reports whether it marked anything new (the
// driver in runGC re-drains the gray worklist and re-scans until a
// fixpoint, since a value just marked here may itself be an object
// another WeakMap uses as a key). This realizes ECMA-262's "a WeakMap
// value stays alive only as long as its key is independently
// reachable" rather than the simpler-but-wrong "alive as long as the
// WeakMap itself is".
func (g *gcState) markEphemeronValues() bool {
	before := len(g.gray)
	for i := 1; i < len(g.heap.cells); i++ {
		cell := &g.heap.cells[i]
		if cell.kind != heapKindObject || !cell.mark {
			continue
		}
		o, ok := cell.obj.(*jsObject)
		if !ok {
			continue
		}
		wm, ok := o.aux.(*weakMapState)
		if !ok {
			continue
		}
		for _, e := range wm.entries {
			if !e.key.isNull() && g.heap.cells[e.key].mark {
				g.markValue(e.value)
			}
		}
	}
	return len(g.gray) > before
}

// finalize runs a cell's release hooks just before its slot returns to
// the free list (spec §4.7: "external strings invoke the embedder's
// release callback" / native-pointer free callbacks).
func (g *gcState) finalize(cp cpointer) {
	cell := &g.heap.cells[cp]
	switch cell.kind {
	case heapKindObject:
		o := cell.obj.(*jsObject)
		if o.nativePtr != nil && o.nativePtr.typeInfo != nil && o.nativePtr.typeInfo.FreeCB != nil {
			o.nativePtr.typeInfo.FreeCB(o.nativePtr.ptr)
		}
	case heapKindString:
		s := cell.obj.(*jsString)
		// The string table's by-content index must not outlive the cell
		// it points at, or a later FindOrCreate with the same content
		// would hand back a cpointer some unrelated string has since
		// been allocated into.
		if cur, ok := g.ctx.strings.byValue[s.data]; ok && cur == cp {
			delete(g.ctx.strings.byValue, s.data)
		}
		if s.release != nil {
			s.release()
		}
	}
}
