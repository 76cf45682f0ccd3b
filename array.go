package tinyjs

// array.go implements the fast-array optimization spec.md's object
// model calls out explicitly: arrays start in a dense, zero-based
// storage mode and fall back permanently to the ordinary
// property-list representation the moment any of four conditions
// holds. The four triggers below are named directly in spec §3.4.

func newArrayValue(ctx *Context) Value {
	o := newArrayObject(ctx.realm.arrayPrototype, ctx.config.GetInt("typedarray.compact_allocation_limit"))
	cp := ctx.heap.Alloc(heapKindObject, o)
	return objectValue(cp)
}

// arraySetIndex is the fast path `OrdinarySet`/`OrdinaryDefineOwnProperty`
// delegate to for array index writes. It grows the dense vector when
// the write lands at or just past the end, fills holes with Empty
// when the write skips ahead, and de-optimizes outright when the gap
// would be wasteful (trigger 4: "a sparse-gap threshold on index
// definition").
func (ctx *Context) arraySetIndex(o *jsObject, index uint32, v Value) (bool, error) {
	if !o.usesFastArray {
		return ctx.setOwnDataProperty(o, indexPropKey(index), v)
	}
	n := uint32(len(o.fastArray))
	switch {
	case index < n:
		o.fastArray[index] = v
	case index == n:
		o.fastArray = append(o.fastArray, v)
	default:
		gap := index - n
		const maxSparseGap = 256
		if gap > maxSparseGap {
			ctx.deoptimizeFastArray(o)
			return ctx.setOwnDataProperty(o, indexPropKey(index), v)
		}
		for i := uint32(0); i < gap; i++ {
			o.fastArray = append(o.fastArray, Empty)
		}
		o.fastArray = append(o.fastArray, v)
	}
	if index+1 > o.length {
		o.length = index + 1
	}
	return true, nil
}

// deoptimizeFastArray implements triggers 1-3 (non-default property
// attributes defined on an index, a hole-creating deletion, or
// shrinking `.length` below the dense prefix): it materializes every
// dense element as an ordinary data property and clears the fast
// storage. The transition never reverses (spec §3.4).
func (ctx *Context) deoptimizeFastArray(o *jsObject) {
	if !o.usesFastArray {
		return
	}
	for i, v := range o.fastArray {
		if v.IsEmpty() {
			continue
		}
		o.insertProperty(defaultDataProperty(indexPropKey(uint32(i)), v))
	}
	o.fastArray = nil
	o.usesFastArray = false
}

// arraySetLength implements the `.length` setter's exotic truncation
// behavior: shrinking below the current dense prefix deletes the
// truncated elements (trigger 3) and, for any non-configurable
// element in the truncated range, stops short and returns false per
// ECMA-262's `ArraySetLength`.
func (ctx *Context) arraySetLength(o *jsObject, newLen uint32) bool {
	if o.usesFastArray {
		if newLen >= uint32(len(o.fastArray)) {
			o.length = newLen
			return true
		}
		ctx.deoptimizeFastArray(o)
	}
	for i := o.length; i > newLen; i-- {
		key := indexPropKey(i - 1)
		if p, ok := o.findOwnProperty(key); ok {
			if !p.configurable {
				o.length = i
				return false
			}
			o.removeProperty(key)
		}
	}
	o.length = newLen
	return true
}

// arrayGetIndex is the read-side fast path; callers fall back to
// ordinaryGet for holes and out-of-range indices so the prototype
// chain is still consulted.
func (ctx *Context) arrayGetIndex(o *jsObject, index uint32) (Value, bool) {
	if o.usesFastArray && index < uint32(len(o.fastArray)) {
		v := o.fastArray[index]
		if v.IsEmpty() {
			return Undefined, false
		}
		return v, true
	}
	return Undefined, false
}

func (ctx *Context) arrayLength(o *jsObject) uint32 { return o.length }
