package tinyjs

// instructions.go mirrors the teacher's `Instruction` interface
// (vm_instructions.go: `Name() string`, `SizeInBytes() int`,
// `SourceLocation() Range`) almost verbatim -- one interface that
// every emitted op satisfies, queried by the encoder for sizing and
// by the disassembler for display. Where the teacher had one struct
// type per PEG instruction (Match, Choice, Commit, Call, ...), this
// port collapses to a single generic struct since CBC's operand
// shapes are uniform (zero, one, or two small integers) rather than
// PEG's heterogeneous per-instruction payloads.
type Instruction interface {
	Name() string
	SizeInBytes() int
	SourceLocation() Position
}

// label is a not-yet-resolved jump target; the compiler emits a
// genericInstruction referencing a *label instead of a byte offset,
// and the encoder patches it once every instruction's final address
// is known (two-pass resolution, same structure as the teacher's own
// label-patching encoder).
type label struct {
	resolved bool
	offset   int // byte offset within the function's code, once resolved
}

func newLabel() *label { return &label{} }

type genericInstruction struct {
	op       opcode
	operandA int
	operandB int // only used by operandU8U8 (opPushTry's catch+finally targets)
	target   *label // only used by branch instructions; operandA is filled in by the encoder
	pos      Position
}

func (i *genericInstruction) Name() string           { return i.op.String() }
func (i *genericInstruction) SourceLocation() Position { return i.pos }

func (i *genericInstruction) SizeInBytes() int {
	return 1 + i.op.operandShape().size()
}

func isBranch(op opcode) bool {
	switch op {
	case opJump, opJumpIfFalse, opJumpIfTrue, opJumpIfNullish, opJumpIfTrueNoPop, opJumpIfFalseNoPop:
		return true
	}
	return false
}
