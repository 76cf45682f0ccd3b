package tinyjs

import "encoding/binary"

// encoder.go is a two-pass label-resolving encoder, structurally the
// same algorithm as the teacher's own `Encode` (vm_encoder.go): pass
// one walks the instruction list computing each instruction's final
// byte offset (fixed-point iteration isn't needed here because every
// CBC instruction has a static size -- unlike some PEG opcodes whose
// encoded width could itself depend on operand magnitude -- so one
// forward pass suffices); pass two re-walks, resolving each branch's
// *label into a signed displacement and appending the final bytes.
type encoder struct {
	instrs []*genericInstruction
}

func newEncoder() *encoder { return &encoder{} }

func (e *encoder) emit(i *genericInstruction) { e.instrs = append(e.instrs, i) }

func (e *encoder) here() *label {
	l := newLabel()
	// A label placed "here" (not attached to a branch) is resolved once
	// its position in the final offset pass is known; compiler.go calls
	// bindLabelAt/bindLabelHere to record the instruction index.
	return l
}

// encode runs both passes and returns the flat byte-code buffer plus
// the resolved byte offset of every instruction (used by the VM's
// exception-table lookup and the disassembler).
func (e *encoder) encode() (code []byte, offsets []int) {
	offsets = make([]int, len(e.instrs))
	pos := 0
	for idx, in := range e.instrs {
		offsets[idx] = pos
		pos += in.SizeInBytes()
	}
	for _, in := range e.instrs {
		if isBranch(in.op) && in.target != nil && in.target.resolved {
			in.operandA = in.target.offset
		}
	}
	code = make([]byte, 0, pos)
	for idx, in := range e.instrs {
		code = append(code, byte(in.op))
		switch in.op.operandShape() {
		case operandU8:
			code = append(code, byte(in.operandA))
		case operandU16:
			var buf [2]byte
			binary.BigEndian.PutUint16(buf[:], uint16(in.operandA))
			code = append(code, buf[:]...)
		case operandI16:
			disp := in.operandA - (offsets[idx] + in.SizeInBytes())
			var buf [2]byte
			binary.BigEndian.PutUint16(buf[:], uint16(int16(disp)))
			code = append(code, buf[:]...)
		case operandU8U8:
			code = append(code, byte(in.operandA), byte(in.operandB))
		}
	}
	return code, offsets
}

// bindLabelAt resolves l to the byte offset that instruction index
// idx will end up at; the compiler calls this once it knows which
// instruction a forward-declared label refers to (e.g. the end of an
// `if` consequent, the top of a `while` condition).
func (e *encoder) bindLabelAt(l *label, idx int) {
	pos := 0
	for i := 0; i < idx; i++ {
		pos += e.instrs[i].SizeInBytes()
	}
	l.offset = pos
	l.resolved = true
}

func (e *encoder) nextIndex() int { return len(e.instrs) }
