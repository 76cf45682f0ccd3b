package tinyjs

// propKeyKind discriminates the three property-key shapes ECMA-262
// recognizes (spec §4.2): a canonical non-negative integer index
// below 2^32-1, an arbitrary string, or a symbol. Canonicalizing array
// indices out of the general string case is what lets array/fast-array
// storage (array.go) avoid boxing every element access through the
// string-keyed property list.
type propKeyKind byte

const (
	propKeyString propKeyKind = iota
	propKeyIndex
	propKeySymbol
)

// propKey is a comparable value usable directly as a Go map key, the
// implementation-only lookup accelerator layered on top of the
// spec-mandated linked list of descriptors (spec §3.4): the list
// preserves enumeration order, the map gives O(1) has/get.
type propKey struct {
	kind  propKeyKind
	index uint32
	str   cpointer
	sym   cpointer
}

func stringPropKey(cp cpointer) propKey { return propKey{kind: propKeyString, str: cp} }
func symbolPropKey(cp cpointer) propKey { return propKey{kind: propKeySymbol, sym: cp} }
func indexPropKey(i uint32) propKey     { return propKey{kind: propKeyIndex, index: i} }

// toPropertyKey implements the `ToPropertyKey` abstract operation
// (spec §4.2), including array-index canonicalization: a string that
// is the decimal representation of an integer in [0, 2^32-2] (the
// spec carve-out excluding 2^32-1, which is reserved as a valid but
// non-index "length"-adjacent string) becomes a propKeyIndex instead
// of a propKeyString.
func (ctx *Context) toPropertyKey(v Value) (propKey, error) {
	if v.Kind() == KindSymbol {
		return symbolPropKey(v.ref_()), nil
	}
	s, err := ctx.ToString(v)
	if err != nil {
		return propKey{}, err
	}
	content := ctx.stringContent(s)
	if idx, ok := canonicalArrayIndex(content); ok {
		return indexPropKey(idx), nil
	}
	return stringPropKey(s), nil
}

// canonicalArrayIndex reports whether s is the canonical decimal
// spelling (no leading zero unless "0" itself, no sign) of an integer
// in [0, 2^32-2], per the ECMA-262 array-index string grammar spec
// §3.4/§4.2 requires objects and arrays to canonicalize.
func canonicalArrayIndex(s string) (uint32, bool) {
	if s == "" {
		return 0, false
	}
	if s == "0" {
		return 0, true
	}
	if s[0] < '1' || s[0] > '9' {
		return 0, false
	}
	var n uint64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint64(c-'0')
		if n > 0xFFFFFFFE {
			return 0, false
		}
	}
	return uint32(n), true
}

// propKind distinguishes data properties from accessor properties
// (spec §3.4).
type propKind byte

const (
	propKindData propKind = iota
	propKindAccessor
)

// property is one node in the object's descriptor list. `next`
// threads the list in insertion order; array.go's fast-array path
// bypasses this entirely for dense integer keys with default
// attributes.
type property struct {
	key   propKey
	kind  propKind
	value Value        // propKindData
	get   Value        // propKindAccessor; Undefined if absent
	set   Value        // propKindAccessor; Undefined if absent
	writable     bool
	enumerable   bool
	configurable bool
	next *property
}

func defaultDataProperty(key propKey, value Value) *property {
	return &property{key: key, kind: propKindData, value: value, writable: true, enumerable: true, configurable: true}
}

func (p *property) isDefaultAttributes() bool {
	return p.kind == propKindData && p.writable && p.enumerable && p.configurable
}
