package tinyjs

import (
	"fmt"
	"math"
	"strconv"
)

// Kind is the result of the engine's `value_type` abstract operation
// (spec §4.2). It also doubles as the discriminant carried inline by
// Value, generalized from the teacher's `FormatToken`-style small enum
// idiom (value.go in the langlang sources) to the handful of variants
// spec §3.1 requires.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBoolean
	KindEmpty // a "hole": array holes, TDZ bindings (spec §3.1)
	KindNumber
	KindString
	KindSymbol
	KindBigInt
	KindObject
	// kindException is the transient "error" tag (spec §3.1). Only
	// exceptionMarker constructs it, and nothing calls that: a throwing
	// operation returns a *RuntimeException error instead.
	kindException
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBoolean:
		return "boolean"
	case KindEmpty:
		return "empty"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSymbol:
		return "symbol"
	case KindBigInt:
		return "bigint"
	case KindObject:
		return "object"
	default:
		return "exception"
	}
}

// Value is the engine's tagged value. Where the original C engine
// packs a discriminant and payload into a single 32-bit word to
// minimize memory per spec §3.1/§9, this port uses a small struct:
// Go already gives every Value a compact, GC-invisible-cost
// representation, so there is no 32-bit budget to fight for. Numbers
// are always carried as an inline float64 -- the original's separate
// "immediate small integer" encoding existed purely to steal spare
// bits from the 32-bit word, a constraint this representation does
// not have, so tinyjs collapses Number to one case (a
// simplification).
//
// Heap-backed kinds (String, Symbol, BigInt, Object, and the
// exception marker's payload) carry a cpointer into the Context's
// Heap; the payload is never read without going through Heap.Decode,
// so Value itself never aliases a live Go pointer (spec §3.2: "a
// cpointer is not an owning handle").
type Value struct {
	kind Kind
	num  float64
	b    bool
	ref  cpointer
}

var (
	Undefined = Value{kind: KindUndefined}
	Null      = Value{kind: KindNull}
	True      = Value{kind: KindBoolean, b: true}
	False     = Value{kind: KindBoolean, b: false}
	Empty     = Value{kind: KindEmpty}
)

func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

func Int(n int) Value { return Value{kind: KindNumber, num: float64(n)} }

func stringValue(cp cpointer) Value { return Value{kind: KindString, ref: cp} }
func symbolValue(cp cpointer) Value { return Value{kind: KindSymbol, ref: cp} }
func bigintValue(cp cpointer) Value { return Value{kind: KindBigInt, ref: cp} }
func objectValue(cp cpointer) Value { return Value{kind: KindObject, ref: cp} }

// exceptionMarker builds the transient "error" tag; it has no callers
// (context.go's Throw returns a *RuntimeException error).
func exceptionMarker() Value { return Value{kind: kindException} }

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }
func (v Value) IsNull() bool      { return v.kind == KindNull }
func (v Value) IsNullish() bool   { return v.kind == KindUndefined || v.kind == KindNull }
func (v Value) IsEmpty() bool     { return v.kind == KindEmpty }
func (v Value) IsException() bool { return v.kind == kindException }
func (v Value) IsObject() bool    { return v.kind == KindObject }
func (v Value) IsString() bool    { return v.kind == KindString }
func (v Value) IsNumber() bool    { return v.kind == KindNumber }
func (v Value) IsBoolean() bool   { return v.kind == KindBoolean }

func (v Value) AsBool() bool     { internalAssert(v.kind == KindBoolean, "AsBool on non-boolean"); return v.b }
func (v Value) AsNumber() float64 {
	internalAssert(v.kind == KindNumber, "AsNumber on non-number")
	return v.num
}
func (v Value) ref_() cpointer { return v.ref }

// String renders a debug/host-facing representation. It does not
// implement the full ToString abstract operation (that lives in
// object.go/strtab.go as ctx.ToString, since stringifying an object
// may call a user-defined toString and therefore may throw); this is
// used only by error messages, the CLI, and tests.
func (v Value) String() string {
	switch v.kind {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindEmpty:
		return "<empty>"
	case KindBoolean:
		if v.b {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.num)
	case KindString:
		return fmt.Sprintf("string@%d", v.ref)
	case KindSymbol:
		return fmt.Sprintf("symbol@%d", v.ref)
	case KindBigInt:
		return fmt.Sprintf("bigint@%d", v.ref)
	case KindObject:
		return fmt.Sprintf("object@%d", v.ref)
	default:
		return "<exception>"
	}
}

// formatNumber implements the parts of ECMA-262's Number::toString
// the engine core needs for error messages and the `json_stringify`
// round-trip (spec §8): integral values print without a fraction,
// NaN/Infinity print their literal spelling.
func formatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	case n == 0:
		if math.Signbit(n) {
			return "0"
		}
		return "0"
	case n == math.Trunc(n) && math.Abs(n) < 1e21:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
}

// jsSymbol is the heap cell payload for KindSymbol values: a
// description string plus identity, per spec §3.1's "symbol" variant.
// Symbols are never interned (spec: each `Symbol(...)` call mints a
// fresh, never-equal value) so, unlike strtab.go's strings, there is
// no find-or-create table here -- every call to newSymbolValue
// allocates a distinct cell.
type jsSymbol struct {
	description string
}

func (ctx *Context) newSymbolValue(description string) Value {
	cp := ctx.heap.Alloc(heapKindSymbol, &jsSymbol{description: description})
	return symbolValue(cp)
}

func (ctx *Context) symbolDescription(cp cpointer) string {
	return ctx.heap.Decode(cp).(*jsSymbol).description
}

// jsBigInt is the heap cell payload for KindBigInt values. Only
// integers representable in 64 bits are supported (a
// simplification): the engine's target is a memory-
// constrained embedded core, not arbitrary-precision arithmetic, and
// spec.md's Non-goals already exclude full ECMAScript conformance for
// cases "the source itself approximates."
type jsBigInt struct {
	v int64
}

func (ctx *Context) newBigIntValue(n int64) Value {
	cp := ctx.heap.Alloc(heapKindBigInt, &jsBigInt{v: n})
	return bigintValue(cp)
}

func (ctx *Context) bigIntContent(cp cpointer) int64 {
	return ctx.heap.Decode(cp).(*jsBigInt).v
}

// sameValueZero implements the `SameValueZero` abstract operation
// used by Map/Set key comparison and Array.prototype.includes: like
// ===, except NaN equals NaN.
func sameValueZero(ctx *Context, a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindUndefined, KindNull, KindEmpty:
		return true
	case KindBoolean:
		return a.b == b.b
	case KindNumber:
		if math.IsNaN(a.num) && math.IsNaN(b.num) {
			return true
		}
		return a.num == b.num
	case KindString:
		return ctx.stringEquals(a.ref, b.ref)
	case KindSymbol, KindBigInt, KindObject:
		return a.ref == b.ref
	default:
		return false
	}
}
