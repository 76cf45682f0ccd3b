package tinyjs

import (
	"fmt"
	"strings"

	"github.com/rgoro/tinyjs/ascii"
)

// bytecode.go defines the compiled-code object the VM executes and
// its disassembler, re-themed from the teacher's `ascii` color
// package (originally used to pretty-print PEG grammar traces) to CBC
// instruction dumps.

// literalKind discriminates what a literal-pool slot holds, since the
// pool is a flat heterogeneous array (spec §7's "literal pool", the
// CBC format's actual constant table).
type literalKind byte

const (
	literalString literalKind = iota
	literalNumber
	literalBigInt
	literalRegExp
	literalFunctionTemplate
)

type literal struct {
	kind     literalKind
	str      string  // literalString (and the raw string backing literalBigInt/literalRegExp's extra field)
	num      float64 // literalNumber
	flags    string  // literalRegExp
	function *functionTemplate
}

// exceptionRange records one `try` block's protected byte range plus
// its catch/finally targets (byte offsets into the same code array),
// the representation frame.go's unwinder consults on every thrown
// exception (spec §7.4).
type exceptionRange struct {
	startPC, endPC int
	catchPC        int // -1 if no catch
	finallyPC      int // -1 if no finally
}

// functionTemplate is the compiled, not-yet-instantiated form of one
// function/program body: shared immutably across every closure
// created from the same source function (spec §7's "literal pool"
// entry for nested functions), with per-call state (captured
// environment, `this`) supplied at MakeFunction time by frame.go.
type functionTemplate struct {
	name        string
	paramCount  int
	localCount  int // total frame slots, including params
	isArrow     bool
	isGenerator bool
	isAsync     bool
	strict      bool

	code      []byte
	literals  []literal
	exceptions []exceptionRange

	// methods holds a class constructor template's non-constructor
	// members (spec §4.6): vm.go's opMakeClass walks this to attach
	// each method/getter/setter to the prototype (or the constructor
	// itself, for static members) once the class object is built.
	// Populated only on the functionTemplate compiled for a class's
	// constructor; nil on every other template.
	methods []classMethodInfo

	// localNames maps a frame slot index back to its source name, used
	// only for `arguments`/eval'd-scope reflection and the disassembler,
	// never by the hot dispatch loop.
	localNames []string

	sourceStart, sourceEnd Position
}

// classMethodInfo records one compiled class member beyond the
// constructor itself (spec §4.6): compileClassExpr appends one of
// these per method/getter/setter instead of folding it into the
// shared literal pool, since opMakeClass needs the member's name,
// kind, and static-ness to wire it up -- information a bare literal
// index can't carry.
type classMethodInfo struct {
	name     string
	kind     classMemberKind // classMemberMethod, classMemberGetter, or classMemberSetter
	isStatic bool
	template *functionTemplate
}

func (ft *functionTemplate) Disassemble() string {
	var b strings.Builder
	theme := ascii.DefaultTheme
	fmt.Fprintf(&b, "%s %s (%d params, %d locals)\n", theme.KeywordText("function"), theme.IdentifierText(ft.name), ft.paramCount, ft.localCount)
	pc := 0
	for pc < len(ft.code) {
		op := opcode(ft.code[pc])
		size := 1 + op.operandShape().size()
		fmt.Fprintf(&b, "  %04d  %s", pc, theme.OpcodeText(op.String()))
		if op.operandShape() != operandNone && pc+size <= len(ft.code) {
			fmt.Fprintf(&b, " %s", theme.OperandText(fmt.Sprint(decodeOperand(ft.code, pc, op))))
		}
		b.WriteByte('\n')
		pc += size
	}
	return b.String()
}

func decodeOperand(code []byte, pc int, op opcode) int {
	shape := op.operandShape()
	switch shape {
	case operandU8:
		return int(code[pc+1])
	case operandU16:
		return int(code[pc+1])<<8 | int(code[pc+2])
	case operandI16:
		v := int16(int(code[pc+1])<<8 | int(code[pc+2]))
		return int(v)
	case operandU8U8:
		return int(code[pc+1])<<8 | int(code[pc+2])
	}
	return 0
}
