package tinyjs

import (
	"unicode"
	"unicode/utf16"
)

// stringVariant mirrors spec §3.3's closed set of string
// representations. Go's garbage-collected, already-deduplicated-by-
// content-at-the-compiler-level string type makes "short inline" vs.
// "long separately allocated" a distinction without a difference at
// the storage layer, but the *kind* still matters for finalization:
// external strings must run the embedder's release callback, and
// magic strings are never freed at all (they live in the static
// table for the process lifetime).
type stringVariant byte

const (
	stringVariantMagic stringVariant = iota
	stringVariantExternalMagic
	stringVariantInline
	stringVariantLong
	stringVariantExternal
	stringVariantRope // transient: concatenation result not yet flattened
)

// jsString is the heap cell payload for KindString values (spec §3.3).
type jsString struct {
	variant stringVariant
	data    string // UTF-8; CESU-8 boundary handling happens at encode/decode time, below
	ascii   bool

	// left/right are only set for stringVariantRope; flatten()
	// replaces them with a concrete `data` and promotes the variant
	// to Inline/Long on first read, same as the original's lazy rope
	// flattening.
	left, right *jsString

	// release is invoked by the GC sweep (gc.go) when an external
	// string is collected (spec §4.7 "external strings invoke the
	// embedder's release callback").
	release func()
}

// magicStrings is the pre-built table of identifiers the engine
// itself references constantly (property names used by built-ins,
// spec §3.3 "magic string (index into a pre-built table)"). Looking
// these up by index avoids re-interning "length" or "constructor" on
// every property access.
var magicStrings = [...]string{
	"", "length", "constructor", "prototype", "name", "message",
	"toString", "valueOf", "Symbol.iterator", "next", "done", "value",
	"__proto__", "arguments", "this", "undefined", "null", "true",
	"false", "NaN", "Infinity", "get", "set", "writable", "enumerable",
	"configurable",
}

var magicStringIndex = func() map[string]int {
	m := make(map[string]int, len(magicStrings))
	for i, s := range magicStrings {
		m[s] = i
	}
	return m
}()

// stringTable interns every non-magic string by content, guaranteeing
// the identity invariant spec §8 tests: `find_or_create(s) ==
// find_or_create(s)` as cpointers, for any byte sequence s.
type stringTable struct {
	heap    *Heap
	byValue map[string]cpointer
	magic   [len(magicStrings)]cpointer
}

func newStringTable(h *Heap) *stringTable {
	return &stringTable{heap: h, byValue: make(map[string]cpointer)}
}

// FindOrCreate is the operation spec §3.3/§4.2/§8 centers on: given
// raw bytes (already decoded to a Go string) and a caller-supplied
// ASCII hint, it returns a cpointer stable across repeated calls with
// equal content.
func (t *stringTable) FindOrCreate(s string, asciiHint bool) cpointer {
	if idx, ok := magicStringIndex[s]; ok {
		return t.magicCPointer(idx)
	}
	if cp, ok := t.byValue[s]; ok {
		return cp
	}
	variant := stringVariantInline
	if len(s) > 32 {
		variant = stringVariantLong
	}
	cp := t.heap.Alloc(heapKindString, &jsString{variant: variant, data: s, ascii: asciiHint})
	if !cp.isNull() {
		t.byValue[s] = cp
	}
	return cp
}

func (t *stringTable) magicCPointer(idx int) cpointer {
	if !t.magic[idx].isNull() {
		return t.magic[idx]
	}
	cp := t.heap.Alloc(heapKindString, &jsString{variant: stringVariantMagic, data: magicStrings[idx], ascii: true})
	t.magic[idx] = cp
	return cp
}

// NewExternalString registers an embedder-owned byte buffer as a
// string value. `release` is called once, from the GC sweep, when the
// string becomes unreachable (spec §3.3, §4.7).
func (t *stringTable) NewExternalString(s string, release func()) cpointer {
	return t.heap.Alloc(heapKindString, &jsString{variant: stringVariantExternal, data: s, release: release})
}

// NewExternalStringFromUTF16 is the other common shape of
// embedder-owned string: a native UI toolkit or a `DataView` handing
// the engine a UTF-16 code unit buffer instead of UTF-8 bytes. Uses
// golang.org/x/text/encoding/unicode's UTF-16 decoder so malformed
// lone surrogates are replaced per the Unicode Replacement Character
// policy rather than panicking the lexer later when the content is
// rescanned, matching how embedder-held buffers are treated as opaque
// and untrusted throughout §6.1.
func (t *stringTable) NewExternalStringFromUTF16(units []uint16, release func()) (cpointer, error) {
	s, err := utf16BytesToUTF8(units)
	if err != nil {
		return nullCPointer, err
	}
	return t.heap.Alloc(heapKindString, &jsString{variant: stringVariantExternal, data: s, release: release}), nil
}

// NewRope builds the transient concatenation representation spec §3.3
// names; it is flattened lazily the first time its content is read.
func (t *stringTable) NewRope(left, right cpointer) cpointer {
	l := t.heap.Decode(left).(*jsString)
	r := t.heap.Decode(right).(*jsString)
	return t.heap.Alloc(heapKindString, &jsString{variant: stringVariantRope, left: l, right: r})
}

func (s *jsString) flatten() string {
	if s.variant != stringVariantRope {
		return s.data
	}
	s.data = s.left.flatten() + s.right.flatten()
	s.left, s.right = nil, nil
	if len(s.data) > 32 {
		s.variant = stringVariantLong
	} else {
		s.variant = stringVariantInline
	}
	return s.data
}

func (ctx *Context) stringContent(cp cpointer) string {
	js := ctx.heap.Decode(cp).(*jsString)
	return js.flatten()
}

func (ctx *Context) stringEquals(a, b cpointer) bool {
	if a == b {
		return true
	}
	return ctx.stringContent(a) == ctx.stringContent(b)
}

// stringLength returns the UTF-16 code unit count ECMAScript's
// `.length` uses, not the UTF-8 byte count nor the rune count (spec
// §3.3's CESU-8 obligation: astral characters count as two code
// units).
func (ctx *Context) stringLength(cp cpointer) int {
	return len(utf16.Encode([]rune(ctx.stringContent(cp))))
}

// isIDStart/isIDContinue back the lexer's identifier scanning (spec
// §4.4). ECMA-262 defines these in terms of the Unicode `ID_Start`/
// `ID_Continue` derived properties, which collapse to
// unicode.IsLetter plus the engine's own `$`/`_` extensions for
// IDStart, and additionally IsDigit, and the Unicode Mn/Mc/Pc/Nd
// combining-mark categories for IDContinue.
func isIDStart(r rune) bool {
	return r == '$' || r == '_' || unicode.IsLetter(r)
}

func isIDContinue(r rune) bool {
	if isIDStart(r) || unicode.IsDigit(r) {
		return true
	}
	return unicode.In(r, unicode.Mn, unicode.Mc, unicode.Pc)
}
