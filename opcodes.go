package tinyjs

// opcodes.go enumerates the CBC ("compact bytecode") instruction set
// the compiler emits and the VM dispatches. The naming and one-op-one-
// constant style follows the teacher's own instruction listing
// (langlang's vm_instructions.go defined one named constant per VM
// opcode, each carrying a fixed operand shape); the operand shapes
// themselves are generalized from a PEG matcher's op set (match/call/
// choice/commit) to ECMAScript's expression/statement bytecode needs.
type opcode byte

const (
	opNop opcode = iota

	// stack manipulation
	opPushUndefined
	opPushNull
	opPushTrue
	opPushFalse
	opPushEmpty
	opPushLiteral // operand: index into the code object's literal pool
	opDup
	opPop
	opSwap

	// bindings
	opGetLocal  // operand: frame slot index
	opSetLocal  // operand: frame slot index
	opGetGlobal // operand: literal-pool string index
	opSetGlobal
	opGetVar // operand: literal-pool string index; walks the lexEnv chain
	opSetVar
	opInitVar // like opSetVar but also clears the TDZ uninitialized flag
	opGetVarRef
	opDeleteVar

	// property access
	opGetProp    // stack: object, key -> value
	opSetProp    // stack: value, object, key -> value (pops key and object, stores, and leaves the original value as the assignment expression's result)
	opDeleteProp // stack: object, key -> bool
	opGetPropLiteral // operand: literal-pool string index; stack: object -> value (fast path, skips ToPropertyKey)
	opSetPropLiteral
	opGetSuperProp
	opSetSuperProp
	opGetPrivateField  // operand: literal-pool string index (the '#name'); stack: object -> value
	opSetPrivateField
	opInPrivateField // `#x in obj`

	// arithmetic / comparison (stack: a, b -> result)
	opAdd
	opSub
	opMul
	opDiv
	opMod
	opPow
	opNeg
	opPlus // unary '+'
	opNot
	opBitNot
	opBitAnd
	opBitOr
	opBitXor
	opShl
	opShr
	opUShr
	opEq
	opNotEq
	opStrictEq
	opStrictNotEq
	opLt
	opLte
	opGt
	opGte
	opInstanceOf
	opIn
	opTypeof
	opTypeofVar // operand: literal-pool string index; typeof of a possibly-undeclared name never throws
	opToBoolean
	opToNumber
	opToPropertyKey
	opInc
	opDec

	// control flow
	opJump        // operand: signed branch offset
	opJumpIfFalse // pops condition
	opJumpIfTrue
	opJumpIfNullish // for `??`/`?.` short-circuit: peeks, does not pop, branch consumes
	opJumpIfTrueNoPop
	opJumpIfFalseNoPop

	// functions / calls
	opMakeFunction // operand: index into the code object's function-template pool
	opMakeArrow
	opCall     // operand: argument count
	opCallEval // operand: argument count; call-site syntactically `eval(...)` (spec §4.6.3 direct eval) -- the VM treats it as direct eval only if the resolved callee is still the realm's intrinsic eval, else falls back to an ordinary call
	opCallSpread
	opNew
	opNewSpread
	opReturn
	opThrow
	opRest // gather remaining arguments into an array (rest parameter)

	// objects / arrays
	opNewObject
	opNewArray
	opArrayPush  // append TOS to the array beneath it, pop value, keep array
	opArraySpread
	opDefineProp  // stack: object, key, value -> object; operand: attribute flags
	opDefineGetter
	opDefineSetter
	opDefineMethod
	opCopyDataProperties // object spread `{...obj}`

	// iteration protocol
	opGetIterator
	opIteratorNext  // stack: iterator -> result; leaves [done, value] for the compiler's generated branch
	opIteratorClose

	// environments
	opPushScope // operand: 0=declarative 1=with(object on stack) 2=classPrivate
	opPopScope
	opPushFunctionEnv

	// exceptions
	opPushTry // operand: catch target offset, finally target offset (0 = none)
	opPopTry

	// generators / async
	opYield
	opYieldStar
	opAwait

	// classes
	opMakeClass // operand: index into the function-template pool for the constructor; consumes superclass+prototype construction from a compiler-emitted sequence

	// misc
	opThis
	opNewTarget
	opSuperCall
	opWith
	opLabel // debug-only marker; never reaches encode(), compiler.go resolves it to a branch target before emission
	opHalt
)

var opcodeNames = [...]string{
	"nop", "push.undefined", "push.null", "push.true", "push.false", "push.empty", "push.literal",
	"dup", "pop", "swap",
	"get.local", "set.local", "get.global", "set.global", "get.var", "set.var", "init.var",
	"get.var.ref", "delete.var",
	"get.prop", "set.prop", "delete.prop", "get.prop.lit", "set.prop.lit",
	"get.super.prop", "set.super.prop", "get.private", "set.private", "in.private",
	"add", "sub", "mul", "div", "mod", "pow", "neg", "plus", "not", "bitnot",
	"bitand", "bitor", "bitxor", "shl", "shr", "ushr",
	"eq", "neq", "seq", "sneq", "lt", "lte", "gt", "gte", "instanceof", "in",
	"typeof", "typeof.var", "to.boolean", "to.number", "to.propkey", "inc", "dec",
	"jump", "jump.if.false", "jump.if.true", "jump.if.nullish", "jump.if.true.nopop", "jump.if.false.nopop",
	"make.function", "make.arrow", "call", "call.eval", "call.spread", "new", "new.spread", "return", "throw", "rest",
	"new.object", "new.array", "array.push", "array.spread",
	"define.prop", "define.getter", "define.setter", "define.method", "copy.data.props",
	"get.iterator", "iterator.next", "iterator.close",
	"push.scope", "pop.scope", "push.function.env",
	"push.try", "pop.try",
	"yield", "yield.star", "await",
	"make.class",
	"this", "new.target", "super.call", "with", "label", "halt",
}

func (op opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return "unknown"
}

// operandShape describes how many operand bytes (beyond the 1-byte
// opcode itself) an instruction carries and how they should be
// interpreted; the encoder (encoder.go) uses this to size instructions
// during its two-pass branch-offset resolution, following the
// teacher's own `SizeInBytes` idiom (vm_instructions.go's Instruction
// interface method of the same name).
type operandShape byte

const (
	operandNone operandShape = iota
	operandU8
	operandU16
	operandI16 // signed branch offset
	operandU8U8
)

var opcodeOperandShape = map[opcode]operandShape{
	opGetIterator:    operandU8, // 0 = iterate values (for-of), 1 = enumerate own+inherited enumerable string keys (for-in)
	opPushLiteral:    operandU16,
	opGetLocal:       operandU8,
	opSetLocal:       operandU8,
	opGetGlobal:      operandU16,
	opSetGlobal:      operandU16,
	opGetVar:         operandU16,
	opSetVar:         operandU16,
	opInitVar:        operandU16,
	opGetVarRef:      operandU16,
	opDeleteVar:      operandU16,
	opGetPropLiteral: operandU16,
	opSetPropLiteral: operandU16,
	opGetPrivateField: operandU16,
	opSetPrivateField: operandU16,
	opInPrivateField:  operandU16,
	opTypeofVar:      operandU16,
	opJump:           operandI16,
	opJumpIfFalse:    operandI16,
	opJumpIfTrue:     operandI16,
	opJumpIfNullish:  operandI16,
	opJumpIfTrueNoPop:  operandI16,
	opJumpIfFalseNoPop: operandI16,
	opMakeFunction:   operandU16,
	opMakeArrow:      operandU16,
	opCall:           operandU8,
	opCallEval:       operandU8,
	opCallSpread:     operandU8,
	opNew:            operandU8,
	opNewSpread:      operandU8,
	opDefineProp:     operandU8,
	opPushScope:      operandU8,
	opPushTry:        operandU8U8,
	opMakeClass:      operandU16,
}

func (op opcode) operandShape() operandShape {
	if s, ok := opcodeOperandShape[op]; ok {
		return s
	}
	return operandNone
}

func (s operandShape) size() int {
	switch s {
	case operandNone:
		return 0
	case operandU8:
		return 1
	case operandU16, operandI16:
		return 2
	case operandU8U8:
		return 2
	default:
		return 0
	}
}
