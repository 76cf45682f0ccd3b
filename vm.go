package tinyjs

import "math"

// vm.go is the CBC dispatch loop plus the two call/construct entry
// points every abstract operation in the rest of the package already
// calls (object.go's accessor dispatch, context.go's ToPrimitive,
// microtask.go's promise reactions, ...): `Context.Call` and
// `Context.Construct`. Grounded on the teacher's own instruction-set
// switch (vm_instructions.go's single dispatch function over its PEG
// matcher ops), generalized from a handful of matcher primitives to
// the CBC set opcodes.go declares.

// Call invokes fnVal as a function (spec §4.8's [[Call]]), dispatching
// on the callee object's kind/aux the same way opNew's Construct below
// dispatches for `new`.
func (ctx *Context) Call(fnVal Value, this Value, args []Value) (Value, error) {
	if ctx.aborted {
		return Value{}, &AbortError{Reason: ctx.abortReason}
	}
	if !fnVal.IsObject() {
		return Value{}, ctx.ThrowTypeError("value is not a function")
	}
	o := ctx.heap.Decode(fnVal.ref_()).(*jsObject)
	switch o.kind {
	case objectKindFunction:
		fs := o.aux.(*functionState)
		callThis := this
		if fs.isArrow {
			callThis = fs.lexicalThis
		} else if callThis.IsUndefined() && !fs.template.strict {
			callThis = objectValue(ctx.realm.globalObj)
		}
		newTarget := Undefined
		if fs.isArrow {
			newTarget = fs.lexicalNewTarget
		}
		if fs.template.isGenerator || fs.template.isAsync {
			return ctx.startGeneratorCall(fs, callThis, newTarget, fnVal, args)
		}
		fr := newFrame(fs.template, fs.env, callThis, newTarget, fnVal)
		fr.bindArguments(ctx, args)
		return ctx.runFrame(fr)
	case objectKindBoundFunction:
		bs := o.aux.(*boundFunctionState)
		callArgs := append(append([]Value(nil), bs.boundArgs...), args...)
		return ctx.Call(bs.target, bs.boundThis, callArgs)
	case objectKindBuiltin:
		switch aux := o.aux.(type) {
		case *builtinFuncState:
			fn, ok := ctx.realm.routingTable[aux.id]
			if !ok {
				return Value{}, ctx.ThrowTypeError("unbound builtin " + aux.name)
			}
			return fn(ctx, this, args)
		case *closureFuncState:
			return aux.fn(ctx, this, args)
		case *ctorState, *errorCtorState, *promiseCtorState, *weakRefCtorState, *finalizationRegistryCtorState:
			return ctx.Construct(fnVal, args)
		default:
			return Value{}, ctx.ThrowTypeError("value is not callable")
		}
	default:
		return Value{}, ctx.ThrowTypeError("value is not callable")
	}
}

// evalInScope implements spec §4.6.3's "direct eval... generated
// bytecode is executed in the caller's environment": source is parsed
// as a standalone program (its own var/function hoisting scope, per
// ECMA-262) and run with the given lexical environment and `this`
// binding. Direct eval passes the calling frame's own env/this;
// indirect eval (builtinGlobalEval) passes the realm's global
// environment and global object, per spec §6.2's eval flavors.
func (ctx *Context) evalInScope(source string, env *lexEnv, this Value) (Value, error) {
	prog, info, errs := ParseProgram(source)
	if len(errs) > 0 {
		return Value{}, ctx.ThrowSyntaxError(errs[0].Error())
	}
	template := CompileProgram(prog, info)
	fr := newFrame(template, env, this, Undefined, Undefined)
	return ctx.runFrame(fr)
}

// Construct invokes fnVal via `new` (spec §4.8's [[Construct]]).
func (ctx *Context) Construct(fnVal Value, args []Value) (Value, error) {
	if ctx.aborted {
		return Value{}, &AbortError{Reason: ctx.abortReason}
	}
	if !fnVal.IsObject() {
		return Value{}, ctx.ThrowTypeError("value is not a constructor")
	}
	o := ctx.heap.Decode(fnVal.ref_()).(*jsObject)
	switch o.kind {
	case objectKindFunction:
		fs := o.aux.(*functionState)
		if fs.isArrow {
			return Value{}, ctx.ThrowTypeError("arrow functions are not constructors")
		}
		protoKey := stringPropKey(ctx.strings.FindOrCreate("prototype", true))
		protoVal, err := ctx.Get(fnVal, protoKey)
		if err != nil {
			return Value{}, err
		}
		proto := ctx.realm.objectPrototype
		if protoVal.IsObject() {
			proto = protoVal.ref_()
		}
		newObj := newOrdinaryObject(proto)
		cp := ctx.heap.Alloc(heapKindObject, newObj)
		newObjVal := objectValue(cp)
		fr := newFrame(fs.template, fs.env, newObjVal, fnVal, fnVal)
		fr.bindArguments(ctx, args)
		result, err := ctx.runFrame(fr)
		if err != nil {
			return Value{}, err
		}
		if result.IsObject() {
			return result, nil
		}
		return newObjVal, nil
	case objectKindBoundFunction:
		bs := o.aux.(*boundFunctionState)
		ctorArgs := append(append([]Value(nil), bs.boundArgs...), args...)
		return ctx.Construct(bs.target, ctorArgs)
	case objectKindBuiltin:
		switch aux := o.aux.(type) {
		case *ctorState:
			return constructGeneric(ctx, aux.kind, args)
		case *errorCtorState:
			return constructError(ctx, aux, args)
		case *promiseCtorState:
			if len(args) == 0 || !ctx.isCallable(args[0]) {
				return Value{}, ctx.ThrowTypeError("Promise resolver is not a function")
			}
			return newPromiseWithExecutor(ctx, args[0])
		case *weakRefCtorState:
			if len(args) == 0 {
				return Value{}, ctx.ThrowTypeError("WeakRef target must be an object")
			}
			return newWeakRefWithTarget(ctx, args[0])
		case *finalizationRegistryCtorState:
			if len(args) == 0 {
				return Value{}, ctx.ThrowTypeError("FinalizationRegistry callback must be callable")
			}
			return newFinalizationRegistryWithCallback(ctx, args[0])
		default:
			return Value{}, ctx.ThrowTypeError("not a constructor")
		}
	default:
		return Value{}, ctx.ThrowTypeError("not a constructor")
	}
}

func constructError(ctx *Context, es *errorCtorState, args []Value) (Value, error) {
	o := newOrdinaryObject(es.proto)
	o.kind = objectKindError
	cp := ctx.heap.Alloc(heapKindObject, o)
	if len(args) > 0 && !args[0].IsUndefined() {
		msgCP, err := ctx.ToString(args[0])
		if err != nil {
			return Value{}, err
		}
		msgKey := stringPropKey(ctx.strings.FindOrCreate("message", true))
		o.insertProperty(&property{key: msgKey, kind: propKindData, value: stringValue(msgCP), writable: true, enumerable: false, configurable: true})
	}
	return objectValue(cp), nil
}

// runFrame is the CBC dispatch loop: one iteration decodes one
// instruction, executes it against fr.stack, and advances fr.pc,
// exactly the teacher's fetch-decode-execute shape (vm_instructions.go)
// scaled from a handful of matcher opcodes to the arithmetic/object/
// control-flow set opcodes.go declares. Any opcode handler may set
// `err`; a non-nil err after the switch is handled uniformly by
// handleException, whether it came from an explicit opThrow or from a
// nested Call/Construct/Get/Set that itself failed.
func (ctx *Context) runFrame(fr *frame) (Value, error) {
	ctx.frames = append(ctx.frames, fr)
	defer func() { ctx.frames = ctx.frames[:len(ctx.frames)-1] }()

	code := fr.template.code
	for {
		if ctx.aborted {
			return Value{}, &AbortError{Reason: ctx.abortReason}
		}
		if ctx.haltEvery > 0 {
			ctx.haltOpcodes++
			if ctx.haltOpcodes >= ctx.haltEvery {
				ctx.haltOpcodes = 0
				if ctx.haltFn != nil && ctx.haltFn() {
					return Value{}, ctx.ThrowAbort(AbortReasonHalt, Value{})
				}
			}
		}
		if fr.pc >= len(code) {
			return Undefined, nil
		}
		startPC := fr.pc
		op := opcode(code[fr.pc])
		size := 1 + op.operandShape().size()
		operand := 0
		if op.operandShape() != operandNone {
			operand = decodeOperand(code, fr.pc, op)
		}
		next := fr.pc + size
		var err error

		switch op {
		case opNop, opLabel, opHalt:
			// no-op; opHalt is only meaningful to the embedding API's
			// host loop, which checks ctx.Aborted() itself.

		// --- stack manipulation ---
		case opPushUndefined:
			fr.push(Undefined)
		case opPushNull:
			fr.push(Null)
		case opPushTrue:
			fr.push(True)
		case opPushFalse:
			fr.push(False)
		case opPushEmpty:
			fr.push(Empty)
		case opPushLiteral:
			fr.push(ctx.literalValue(fr.template.literals[operand]))
		case opDup:
			fr.dup()
		case opPop:
			fr.pop()
		case opSwap:
			n := len(fr.stack)
			fr.stack[n-1], fr.stack[n-2] = fr.stack[n-2], fr.stack[n-1]

		// --- bindings ---
		case opGetLocal:
			fr.push(fr.localBindings[operand].value)
		case opSetLocal:
			fr.localBindings[operand].value = fr.peek()
		case opGetGlobal, opGetVar:
			name := fr.template.literals[operand].str
			var env *lexEnv
			env, err = ctx.resolveBinding(fr.env, name)
			if err == nil {
				if env == nil {
					err = ctx.ThrowReferenceError(name + " is not defined")
				} else {
					var v Value
					v, err = ctx.getBindingValue(env, name, fr.template.strict)
					if err == nil {
						fr.push(v)
					}
				}
			}
		case opSetGlobal, opSetVar:
			name := fr.template.literals[operand].str
			value := fr.peek()
			var env *lexEnv
			env, err = ctx.resolveBinding(fr.env, name)
			if err == nil {
				target := env
				if target == nil {
					target = ctx.globalEnv()
				}
				err = ctx.setMutableBinding(target, name, value, fr.template.strict)
			}
		case opInitVar:
			name := fr.template.literals[operand].str
			value := fr.peek()
			var env *lexEnv
			env, err = ctx.resolveBinding(fr.env, name)
			if err == nil {
				target := env
				if target == nil {
					target = ctx.globalEnv()
				}
				if ok, _ := ctx.hasBinding(target, name); !ok {
					target.createMutableBinding(name, false)
				}
				target.initializeBinding(name, value)
			}
		case opGetVarRef:
			name := fr.template.literals[operand].str
			env, e := ctx.resolveBinding(fr.env, name)
			if e != nil {
				err = e
			} else if env == nil {
				fr.push(Undefined)
			} else {
				var v Value
				v, err = ctx.getBindingValue(env, name, false)
				if err == nil {
					fr.push(v)
				}
			}
		case opDeleteVar:
			name := fr.template.literals[operand].str
			env, e := ctx.resolveBinding(fr.env, name)
			if e != nil {
				err = e
			} else if env == nil {
				fr.push(True)
			} else if b, ok := env.names[name]; ok && b.deletable {
				delete(env.names, name)
				fr.push(True)
			} else {
				fr.push(False)
			}
		case opTypeofVar:
			name := fr.template.literals[operand].str
			env, e := ctx.resolveBinding(fr.env, name)
			if e != nil || env == nil {
				fr.push(ctx.newStringResult("undefined"))
			} else {
				v, verr := ctx.getBindingValue(env, name, false)
				if verr != nil {
					fr.push(ctx.newStringResult("undefined"))
				} else {
					fr.push(ctx.newStringResult(ctx.typeofValue(v)))
				}
			}

		// --- property access ---
		case opGetProp:
			keyVal := fr.pop()
			objVal := fr.pop()
			var key propKey
			key, err = ctx.toPropertyKey(keyVal)
			if err == nil {
				var v Value
				v, err = ctx.Get(objVal, key)
				if err == nil {
					fr.push(v)
				}
			}
		case opGetPropLiteral:
			objVal := fr.pop()
			key := stringPropKey(ctx.literalStringCP(fr.template.literals[operand]))
			var v Value
			v, err = ctx.Get(objVal, key)
			if err == nil {
				fr.push(v)
			}
		case opSetProp:
			keyVal := fr.pop()
			objVal := fr.pop()
			value := fr.peek()
			var key propKey
			key, err = ctx.toPropertyKey(keyVal)
			if err == nil {
				_, err = ctx.Set(objVal, key, value)
			}
		case opSetPropLiteral:
			objVal := fr.pop()
			value := fr.peek()
			key := stringPropKey(ctx.literalStringCP(fr.template.literals[operand]))
			_, err = ctx.Set(objVal, key, value)
		case opDeleteProp:
			keyVal := fr.pop()
			objVal := fr.pop()
			if !objVal.IsObject() {
				fr.push(True)
			} else {
				var key propKey
				key, err = ctx.toPropertyKey(keyVal)
				if err == nil {
					o := ctx.heap.Decode(objVal.ref_()).(*jsObject)
					fr.push(Bool(ctx.ordinaryDelete(o, key)))
				}
			}
		case opGetSuperProp, opSetSuperProp, opGetPrivateField, opSetPrivateField, opInPrivateField:
			// Never emitted by compiler.go/compiler_expr.go (no case
			// reaches these); best-effort no-op so a corrupt or
			// hand-assembled code object doesn't crash the dispatch loop.
			switch op {
			case opGetSuperProp:
				fr.pop()
				fr.push(Undefined)
			case opSetSuperProp:
				fr.popN(2)
			case opGetPrivateField:
				fr.pop()
				fr.push(Undefined)
			case opSetPrivateField:
				fr.popN(2)
			case opInPrivateField:
				fr.pop()
				fr.push(False)
			}

		// --- arithmetic / comparison ---
		case opAdd:
			b := fr.pop()
			a := fr.pop()
			var v Value
			v, err = ctx.addValues(a, b)
			if err == nil {
				fr.push(v)
			}
		case opSub, opMul, opDiv, opMod, opPow:
			b := fr.pop()
			a := fr.pop()
			var an, bn float64
			an, err = ctx.ToNumber(a)
			if err == nil {
				bn, err = ctx.ToNumber(b)
			}
			if err == nil {
				fr.push(Number(arith(op, an, bn)))
			}
		case opNeg:
			v := fr.pop()
			var n float64
			n, err = ctx.ToNumber(v)
			if err == nil {
				fr.push(Number(-n))
			}
		case opPlus:
			v := fr.pop()
			var n float64
			n, err = ctx.ToNumber(v)
			if err == nil {
				fr.push(Number(n))
			}
		case opNot:
			v := fr.pop()
			fr.push(Bool(!ctx.ToBoolean(v)))
		case opBitNot:
			v := fr.pop()
			var n int32
			n, err = ctx.toInt32(v)
			if err == nil {
				fr.push(Number(float64(^n)))
			}
		case opBitAnd, opBitOr, opBitXor, opShl, opShr:
			b := fr.pop()
			a := fr.pop()
			var an int32
			an, err = ctx.toInt32(a)
			var bn int32
			if err == nil {
				bn, err = ctx.toInt32(b)
			}
			if err == nil {
				fr.push(Number(float64(intBitOp(op, an, bn))))
			}
		case opUShr:
			b := fr.pop()
			a := fr.pop()
			var au uint32
			au, err = ctx.toUint32(a)
			var bn int32
			if err == nil {
				bn, err = ctx.toInt32(b)
			}
			if err == nil {
				fr.push(Number(float64(au >> (uint32(bn) & 31))))
			}
		case opEq, opNotEq:
			b := fr.pop()
			a := fr.pop()
			var eq bool
			eq, err = ctx.looseEquals(a, b)
			if err == nil {
				fr.push(Bool(eq == (op == opEq)))
			}
		case opStrictEq, opStrictNotEq:
			b := fr.pop()
			a := fr.pop()
			eq := ctx.strictEquals(a, b)
			fr.push(Bool(eq == (op == opStrictEq)))
		case opLt, opLte, opGt, opGte:
			b := fr.pop()
			a := fr.pop()
			var v Value
			v, err = ctx.relationalCompare(op, a, b)
			if err == nil {
				fr.push(v)
			}
		case opInstanceOf:
			ctorVal := fr.pop()
			objVal := fr.pop()
			var ok bool
			ok, err = ctx.instanceOf(objVal, ctorVal)
			if err == nil {
				fr.push(Bool(ok))
			}
		case opIn:
			objVal := fr.pop()
			keyVal := fr.pop()
			if !objVal.IsObject() {
				err = ctx.ThrowTypeError("Cannot use 'in' operator to search for a property in a non-object")
			} else {
				var key propKey
				key, err = ctx.toPropertyKey(keyVal)
				if err == nil {
					var has bool
					has, err = ctx.hasProperty(objVal.ref_(), key)
					if err == nil {
						fr.push(Bool(has))
					}
				}
			}
		case opTypeof:
			v := fr.pop()
			fr.push(ctx.newStringResult(ctx.typeofValue(v)))
		case opToBoolean:
			v := fr.pop()
			fr.push(Bool(ctx.ToBoolean(v)))
		case opToNumber:
			v := fr.pop()
			var n float64
			n, err = ctx.ToNumber(v)
			if err == nil {
				fr.push(Number(n))
			}
		case opToPropertyKey:
			v := fr.pop()
			if v.Kind() == KindSymbol {
				fr.push(v)
			} else {
				var cp cpointer
				cp, err = ctx.ToString(v)
				if err == nil {
					fr.push(stringValue(cp))
				}
			}
		case opInc, opDec:
			v := fr.pop()
			n := v.AsNumber()
			if op == opInc {
				fr.push(Number(n + 1))
			} else {
				fr.push(Number(n - 1))
			}

		// --- control flow ---
		case opJump:
			next = startPC + size + operand
		case opJumpIfFalse:
			cond := fr.pop()
			if !ctx.ToBoolean(cond) {
				next = startPC + size + operand
			}
		case opJumpIfTrue:
			cond := fr.pop()
			if ctx.ToBoolean(cond) {
				next = startPC + size + operand
			}
		case opJumpIfNullish:
			// Mirrors compileLogical's &&/|| template for `??`: the
			// compiler always follows this branch with an unconditional
			// pop and the right-hand operand, so the branch must be
			// taken -- without popping -- precisely when the left value
			// needs no coalescing (is not nullish); falling through
			// (left is nullish) reaches the compiler's pop+right-operand
			// sequence instead.
			v := fr.peek()
			if !v.IsNullish() {
				next = startPC + size + operand
			}
		case opJumpIfTrueNoPop:
			v := fr.peek()
			if ctx.ToBoolean(v) {
				next = startPC + size + operand
			}
		case opJumpIfFalseNoPop:
			v := fr.peek()
			if !ctx.ToBoolean(v) {
				next = startPC + size + operand
			}

		// --- functions / calls ---
		case opMakeFunction:
			ft := fr.template.literals[operand].function
			fr.push(newFunctionObject(ctx, ft, fr.env, Undefined))
		case opMakeArrow:
			ft := fr.template.literals[operand].function
			fr.push(newArrowFunctionObject(ctx, ft, fr.env, fr.this, fr.newTarget))
		case opCall:
			args := fr.popN(operand)
			thisArg := fr.pop()
			fnVal := fr.pop()
			var v Value
			v, err = ctx.Call(fnVal, thisArg, args)
			if err == nil {
				fr.push(v)
			}
		case opCallEval:
			// Syntactic eval(...) call-site; only treated as spec
			// §4.6.3 direct eval if the callee hasn't been shadowed
			// away from the realm's actual intrinsic eval function.
			args := fr.popN(operand)
			thisArg := fr.pop()
			fnVal := fr.pop()
			var v Value
			switch {
			case fnVal.IsObject() && fnVal.ref_() == ctx.realm.evalFn && len(args) > 0 && args[0].IsString():
				v, err = ctx.evalInScope(ctx.stringContent(args[0].ref_()), fr.env, fr.this)
			case fnVal.IsObject() && fnVal.ref_() == ctx.realm.evalFn:
				// eval() with no args, or a non-string first argument,
				// is the identity function per spec (nothing to parse).
				if len(args) > 0 {
					v = args[0]
				} else {
					v = Undefined
				}
			default:
				v, err = ctx.Call(fnVal, thisArg, args)
			}
			if err == nil {
				fr.push(v)
			}
		case opCallSpread:
			argsArray := fr.pop()
			thisArg := fr.pop()
			fnVal := fr.pop()
			var args []Value
			args, err = ctx.iterableValues(argsArray)
			if err == nil {
				var v Value
				v, err = ctx.Call(fnVal, thisArg, args)
				if err == nil {
					fr.push(v)
				}
			}
		case opNew:
			args := fr.popN(operand)
			callee := fr.pop()
			var v Value
			v, err = ctx.Construct(callee, args)
			if err == nil {
				fr.push(v)
			}
		case opNewSpread:
			argsArray := fr.pop()
			callee := fr.pop()
			var args []Value
			args, err = ctx.iterableValues(argsArray)
			if err == nil {
				var v Value
				v, err = ctx.Construct(callee, args)
				if err == nil {
					fr.push(v)
				}
			}
		case opReturn:
			return fr.pop(), nil
		case opThrow:
			v := fr.pop()
			err = ctx.Throw(v)
		case opRest:
			// Never emitted (frame.go's bindArguments documents rest
			// parameters as a positional-binding simplification); leave
			// an empty array rather than crash if it's ever reached.
			fr.push(newArrayValue(ctx))

		// --- objects / arrays ---
		case opNewObject:
			o := newOrdinaryObject(ctx.realm.objectPrototype)
			cp := ctx.heap.Alloc(heapKindObject, o)
			fr.push(objectValue(cp))
		case opNewArray:
			fr.push(newArrayValue(ctx))
		case opArrayPush:
			v := fr.pop()
			arrVal := fr.peek()
			arr := ctx.heap.Decode(arrVal.ref_()).(*jsObject)
			_, err = ctx.arraySetIndex(arr, ctx.arrayLength(arr), v)
		case opArraySpread:
			v := fr.pop()
			arrVal := fr.peek()
			arr := ctx.heap.Decode(arrVal.ref_()).(*jsObject)
			var elems []Value
			elems, err = ctx.iterableValues(v)
			if err == nil {
				for _, el := range elems {
					ctx.arraySetIndex(arr, ctx.arrayLength(arr), el)
				}
			}
		case opDefineProp:
			value := fr.pop()
			keyVal := fr.pop()
			objVal := fr.peek()
			var key propKey
			key, err = ctx.toPropertyKey(keyVal)
			if err == nil {
				o := ctx.heap.Decode(objVal.ref_()).(*jsObject)
				if existing, ok := o.findOwnProperty(key); ok {
					existing.kind = propKindData
					existing.value = value
					existing.writable, existing.enumerable, existing.configurable = true, true, true
				} else if key.kind == propKeyIndex && o.kind == objectKindArray {
					ctx.arraySetIndex(o, key.index, value)
				} else {
					o.insertProperty(defaultDataProperty(key, value))
				}
			}
		case opDefineGetter, opDefineSetter:
			fnVal := fr.pop()
			keyVal := fr.pop()
			objVal := fr.peek()
			var key propKey
			key, err = ctx.toPropertyKey(keyVal)
			if err == nil {
				o := ctx.heap.Decode(objVal.ref_()).(*jsObject)
				p, ok := o.findOwnProperty(key)
				if !ok || p.kind != propKindAccessor {
					p = &property{key: key, kind: propKindAccessor, get: Undefined, set: Undefined, enumerable: true, configurable: true}
					o.insertProperty(p)
				}
				if op == opDefineGetter {
					p.get = fnVal
				} else {
					p.set = fnVal
				}
			}
		case opDefineMethod:
			fnVal := fr.pop()
			keyVal := fr.pop()
			objVal := fr.peek()
			var key propKey
			key, err = ctx.toPropertyKey(keyVal)
			if err == nil {
				o := ctx.heap.Decode(objVal.ref_()).(*jsObject)
				o.insertProperty(&property{key: key, kind: propKindData, value: fnVal, writable: true, enumerable: true, configurable: true})
			}
		case opCopyDataProperties:
			src := fr.pop()
			dst := fr.peek()
			if src.IsObject() {
				srcObj := ctx.heap.Decode(src.ref_()).(*jsObject)
				for _, key := range ctx.ordinaryEnumerableKeys(srcObj) {
					var v Value
					v, err = ctx.Get(src, key)
					if err != nil {
						break
					}
					_, err = ctx.Set(dst, key, v)
					if err != nil {
						break
					}
				}
			}

		// --- iteration protocol ---
		case opGetIterator:
			v := fr.pop()
			if operand == 1 {
				var keys []propKey
				keys, err = ctx.forInKeys(v)
				if err == nil {
					fr.push(newKeyIterator(ctx, keys))
				}
			} else {
				var vals []Value
				vals, err = ctx.iterableValues(v)
				if err == nil {
					fr.push(newValueIterator(ctx, vals))
				}
			}
		case opIteratorNext:
			iterVal := fr.peek()
			io := ctx.heap.Decode(iterVal.ref_()).(*jsObject)
			is := io.aux.(*iteratorState)
			if is.forIn {
				if is.idx < len(is.keys) {
					k := is.keys[is.idx]
					is.idx++
					fr.push(ctx.propKeyToValue(k))
					fr.push(False)
				} else {
					fr.push(Undefined)
					fr.push(True)
				}
			} else {
				if is.idx < len(is.values) {
					v := is.values[is.idx]
					is.idx++
					fr.push(v)
					fr.push(False)
				} else {
					fr.push(Undefined)
					fr.push(True)
				}
			}
		case opIteratorClose:
			// Never emitted; defensively drop the iterator if present.
			if len(fr.stack) > 0 {
				fr.pop()
			}

		// --- environments (never emitted: no block scoping, `with`,
		// or separate function-env push is compiled -- see compiler.go's
		// compileStatement switch, which has no `with` case at all) ---
		case opPushScope, opPopScope, opPushFunctionEnv:

		// --- exceptions (never emitted: compileTry uses the exception
		// table exclusively, see compiler.go's compileTry) ---
		case opPushTry, opPopTry:

		// --- generators / async ---
		case opYield:
			v := fr.pop()
			if fr.yieldFn == nil {
				err = ctx.ThrowSyntaxError("yield used outside a generator")
			} else {
				var sent Value
				sent, err = fr.yieldFn(ctx, v)
				if err == nil {
					fr.push(sent)
				}
			}
		case opYieldStar:
			delegate := fr.pop()
			if fr.yieldFn == nil {
				err = ctx.ThrowSyntaxError("yield used outside a generator")
			} else {
				var vals []Value
				vals, err = ctx.iterableValues(delegate)
				if err == nil {
					last := Undefined
					for _, v := range vals {
						last, err = fr.yieldFn(ctx, v)
						if err != nil {
							break
						}
					}
					if err == nil {
						fr.push(last)
					}
				}
			}
		case opAwait:
			v := fr.pop()
			if fr.awaitFn == nil {
				fr.push(v)
			} else {
				var result Value
				result, err = fr.awaitFn(ctx, v)
				if err == nil {
					fr.push(result)
				}
			}

		// --- classes ---
		case opMakeClass:
			superVal := fr.pop()
			var v Value
			v, err = ctx.makeClass(fr, fr.template.literals[operand].function, superVal)
			if err == nil {
				fr.push(v)
			}

		// --- misc ---
		case opThis:
			fr.push(fr.this)
		case opNewTarget:
			fr.push(fr.newTarget)
		case opSuperCall, opWith:
			// Never emitted (no super-constructor-call or `with` support
			// in the compiler); treat as a no-op rather than crash.

		default:
			err = ctx.ThrowTypeError("unsupported opcode in compiled code")
		}

		if err != nil {
			if handled, targetPC := ctx.handleException(fr, startPC, err); handled {
				fr.pc = targetPC
				continue
			}
			return Value{}, err
		}
		if ctx.heap.OutOfMemory() {
			return Value{}, ctx.ThrowAbort(AbortReasonOutOfMemory, Value{})
		}
		fr.pc = next
	}
}

// handleException searches fr.template.exceptions for the narrowest
// range containing the instruction at atPC (spec §7.4): if found, the
// frame's operand stack is discarded and replaced with just the
// thrown value, matching what compileTry's catch/finally handler code
// expects to find on entry. An AbortError always propagates regardless
// of any enclosing try (spec §4.6.4).
func (ctx *Context) handleException(fr *frame, atPC int, err error) (bool, int) {
	if _, ok := err.(*AbortError); ok {
		return false, 0
	}
	best := -1
	bestLen := -1
	for i, er := range fr.template.exceptions {
		if atPC >= er.startPC && atPC < er.endPC {
			length := er.endPC - er.startPC
			if bestLen == -1 || length < bestLen {
				bestLen = length
				best = i
			}
		}
	}
	if best == -1 {
		return false, 0
	}
	er := fr.template.exceptions[best]
	fr.stack = fr.stack[:0]
	fr.push(ctx.exceptionValue)
	ctx.ClearException()
	if er.catchPC != -1 {
		return true, er.catchPC
	}
	if er.finallyPC != -1 {
		return true, er.finallyPC
	}
	return false, 0
}

func (ctx *Context) literalValue(lit literal) Value {
	switch lit.kind {
	case literalString:
		return ctx.newStringResult(lit.str)
	case literalNumber:
		return Number(lit.num)
	case literalBigInt:
		return bigintValue(ctx.strings.FindOrCreate(lit.str, true))
	case literalRegExp:
		v, err := newRegExpValue(ctx, lit.str, lit.flags)
		if err != nil {
			return Undefined
		}
		return v
	case literalFunctionTemplate:
		return Undefined // function templates are only read via opMakeFunction/opMakeArrow/opMakeClass
	default:
		return Undefined
	}
}

func (ctx *Context) literalStringCP(lit literal) cpointer {
	return ctx.strings.FindOrCreate(lit.str, isASCII(lit.str))
}

func arith(op opcode, a, b float64) float64 {
	switch op {
	case opSub:
		return a - b
	case opMul:
		return a * b
	case opDiv:
		return a / b
	case opMod:
		return math.Mod(a, b)
	case opPow:
		return math.Pow(a, b)
	default:
		return math.NaN()
	}
}

func intBitOp(op opcode, a, b int32) int32 {
	switch op {
	case opBitAnd:
		return a & b
	case opBitOr:
		return a | b
	case opBitXor:
		return a ^ b
	case opShl:
		return a << (uint32(b) & 31)
	case opShr:
		return a >> (uint32(b) & 31)
	default:
		return 0
	}
}

func (ctx *Context) toInt32(v Value) (int32, error) {
	n, err := ctx.ToNumber(v)
	if err != nil {
		return 0, err
	}
	return float64ToInt32(n), nil
}

func (ctx *Context) toUint32(v Value) (uint32, error) {
	n, err := ctx.ToNumber(v)
	if err != nil {
		return 0, err
	}
	return float64ToUint32(n), nil
}

func float64ToInt32(n float64) int32 {
	u := float64ToUint32(n)
	if u >= 2147483648 {
		return int32(int64(u) - 4294967296)
	}
	return int32(u)
}

func float64ToUint32(n float64) uint32 {
	if math.IsNaN(n) || math.IsInf(n, 0) || n == 0 {
		return 0
	}
	n = math.Trunc(n)
	m := math.Mod(n, 4294967296)
	if m < 0 {
		m += 4294967296
	}
	return uint32(m)
}

// addValues implements the `+` operator's ToPrimitive-then-either-
// concat-or-add dispatch (spec §4.2); string concatenation builds a
// rope rather than eagerly flattening, matching strtab.go's lazy
// NewRope/flatten design.
func (ctx *Context) addValues(a, b Value) (Value, error) {
	ap, err := ctx.ToPrimitive(a, "default")
	if err != nil {
		return Value{}, err
	}
	bp, err := ctx.ToPrimitive(b, "default")
	if err != nil {
		return Value{}, err
	}
	if ap.Kind() == KindString || bp.Kind() == KindString {
		as, err := ctx.ToString(ap)
		if err != nil {
			return Value{}, err
		}
		bs, err := ctx.ToString(bp)
		if err != nil {
			return Value{}, err
		}
		return stringValue(ctx.strings.NewRope(as, bs)), nil
	}
	an, err := ctx.ToNumber(ap)
	if err != nil {
		return Value{}, err
	}
	bn, err := ctx.ToNumber(bp)
	if err != nil {
		return Value{}, err
	}
	return Number(an + bn), nil
}

func (ctx *Context) strictEquals(a, b Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case KindUndefined, KindNull:
		return true
	case KindBoolean:
		return a.AsBool() == b.AsBool()
	case KindNumber:
		return a.AsNumber() == b.AsNumber()
	case KindString:
		return ctx.stringEquals(a.ref_(), b.ref_())
	case KindSymbol, KindBigInt, KindObject:
		return a.ref_() == b.ref_()
	default:
		return false
	}
}

// looseEquals implements the abstract equality comparison `==` (spec
// §4.2), recursing through the boolean/object coercion steps.
func (ctx *Context) looseEquals(a, b Value) (bool, error) {
	if a.Kind() == b.Kind() {
		return ctx.strictEquals(a, b), nil
	}
	if a.IsNullish() && b.IsNullish() {
		return true, nil
	}
	if a.IsNullish() || b.IsNullish() {
		return false, nil
	}
	if a.Kind() == KindNumber && b.Kind() == KindString {
		bn, err := ctx.ToNumber(b)
		if err != nil {
			return false, err
		}
		return a.AsNumber() == bn, nil
	}
	if a.Kind() == KindString && b.Kind() == KindNumber {
		an, err := ctx.ToNumber(a)
		if err != nil {
			return false, err
		}
		return an == b.AsNumber(), nil
	}
	if a.Kind() == KindBoolean {
		an, err := ctx.ToNumber(a)
		if err != nil {
			return false, err
		}
		return ctx.looseEquals(Number(an), b)
	}
	if b.Kind() == KindBoolean {
		bn, err := ctx.ToNumber(b)
		if err != nil {
			return false, err
		}
		return ctx.looseEquals(a, Number(bn))
	}
	if a.Kind() == KindObject && (b.Kind() == KindNumber || b.Kind() == KindString || b.Kind() == KindSymbol || b.Kind() == KindBigInt) {
		ap, err := ctx.ToPrimitive(a, "default")
		if err != nil {
			return false, err
		}
		return ctx.looseEquals(ap, b)
	}
	if b.Kind() == KindObject && (a.Kind() == KindNumber || a.Kind() == KindString || a.Kind() == KindSymbol || a.Kind() == KindBigInt) {
		bp, err := ctx.ToPrimitive(b, "default")
		if err != nil {
			return false, err
		}
		return ctx.looseEquals(a, bp)
	}
	return false, nil
}

// relationalCompare implements `<`/`<=`/`>`/`>=` via the abstract
// relational comparison (spec §4.2): string operands compare
// lexicographically by UTF-16 code unit, everything else compares as
// numbers, and any NaN operand makes every relational operator false.
func (ctx *Context) relationalCompare(op opcode, a, b Value) (Value, error) {
	// a<b is computed directly; the other three operators are phrased
	// in terms of it: a>b is b<a, a<=b is !(b<a), a>=b is !(a<b).
	swap := op == opGt || op == opLte
	negate := op == opLte || op == opGte
	left, right := a, b
	if swap {
		left, right = b, a
	}
	lp, err := ctx.ToPrimitive(left, "number")
	if err != nil {
		return Value{}, err
	}
	rp, err := ctx.ToPrimitive(right, "number")
	if err != nil {
		return Value{}, err
	}
	var less, nan bool
	if lp.Kind() == KindString && rp.Kind() == KindString {
		less = ctx.stringContent(lp.ref_()) < ctx.stringContent(rp.ref_())
	} else {
		ln, err := ctx.ToNumber(lp)
		if err != nil {
			return Value{}, err
		}
		rn, err := ctx.ToNumber(rp)
		if err != nil {
			return Value{}, err
		}
		if math.IsNaN(ln) || math.IsNaN(rn) {
			nan = true
		} else {
			less = ln < rn
		}
	}
	if nan {
		return False, nil
	}
	if negate {
		return Bool(!less), nil
	}
	return Bool(less), nil
}

func (ctx *Context) typeofValue(v Value) string {
	switch v.Kind() {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "object"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSymbol:
		return "symbol"
	case KindBigInt:
		return "bigint"
	case KindObject:
		if ctx.isCallable(v) {
			return "function"
		}
		return "object"
	default:
		return "undefined"
	}
}

func (ctx *Context) instanceOf(obj, ctorVal Value) (bool, error) {
	if !ctorVal.IsObject() || !ctx.isCallable(ctorVal) {
		return false, ctx.ThrowTypeError("Right-hand side of 'instanceof' is not callable")
	}
	protoKey := stringPropKey(ctx.strings.FindOrCreate("prototype", true))
	protoVal, err := ctx.Get(ctorVal, protoKey)
	if err != nil {
		return false, err
	}
	if !protoVal.IsObject() {
		return false, ctx.ThrowTypeError("Function has non-object prototype in instanceof check")
	}
	if !obj.IsObject() {
		return false, nil
	}
	protoCP := protoVal.ref_()
	cur := ctx.heap.Decode(obj.ref_()).(*jsObject).proto
	for !cur.isNull() {
		if cur == protoCP {
			return true, nil
		}
		cur = ctx.heap.Decode(cur).(*jsObject).proto
	}
	return false, nil
}

// iterableValues materializes an iterable value's elements eagerly
// (spec.md's object model doesn't mandate a lazy Symbol.iterator
// protocol, and none of the compiled opcodes need one): arrays/
// arguments read their indexed elements, strings split into one Value
// per code point, Map/Set read their backing slices directly, used by
// opGetIterator (for-of), opArraySpread, and spread call/new argument
// gathering.
func (ctx *Context) iterableValues(v Value) ([]Value, error) {
	if v.IsString() {
		s := ctx.stringContent(v.ref_())
		var out []Value
		for _, r := range s {
			out = append(out, ctx.newStringResult(string(r)))
		}
		return out, nil
	}
	if !v.IsObject() {
		return nil, ctx.ThrowTypeError(v.Kind().String() + " is not iterable")
	}
	o := ctx.heap.Decode(v.ref_()).(*jsObject)
	switch o.kind {
	case objectKindArray:
		n := ctx.arrayLength(o)
		out := make([]Value, 0, n)
		for i := uint32(0); i < n; i++ {
			if el, ok := ctx.arrayGetIndex(o, i); ok {
				out = append(out, el)
				continue
			}
			el, err := ctx.Get(v, indexPropKey(i))
			if err != nil {
				return nil, err
			}
			out = append(out, el)
		}
		return out, nil
	case objectKindArguments:
		// Arguments objects never populate the fastArray/length fields
		// arrays use (newArgumentsObject installs a plain `length` data
		// property instead, frame.go) so length and elements are both
		// read through ordinary [[Get]].
		lengthKey := stringPropKey(ctx.strings.FindOrCreate("length", true))
		lengthVal, err := ctx.Get(v, lengthKey)
		if err != nil {
			return nil, err
		}
		n := uint32(lengthVal.AsNumber())
		out := make([]Value, 0, n)
		for i := uint32(0); i < n; i++ {
			el, err := ctx.Get(v, indexPropKey(i))
			if err != nil {
				return nil, err
			}
			out = append(out, el)
		}
		return out, nil
	case objectKindSet:
		ss := o.aux.(*setState)
		return append([]Value(nil), ss.values...), nil
	case objectKindMap:
		ms := o.aux.(*mapState)
		out := make([]Value, 0, len(ms.entries))
		for _, e := range ms.entries {
			pairVal := newArrayValue(ctx)
			pairObj := ctx.heap.Decode(pairVal.ref_()).(*jsObject)
			ctx.arraySetIndex(pairObj, 0, e.key)
			ctx.arraySetIndex(pairObj, 1, e.value)
			out = append(out, pairVal)
		}
		return out, nil
	case objectKindIterator:
		is := o.aux.(*iteratorState)
		if is.forIn {
			out := make([]Value, len(is.keys))
			for i, k := range is.keys {
				out[i] = ctx.propKeyToValue(k)
			}
			return out, nil
		}
		return append([]Value(nil), is.values...), nil
	default:
		return nil, ctx.ThrowTypeError("value is not iterable")
	}
}

// forInKeys collects the own-and-inherited enumerable string keys a
// for-in loop walks (spec §4.6.3), de-duplicating across the
// prototype chain by first occurrence.
func (ctx *Context) forInKeys(v Value) ([]propKey, error) {
	if !v.IsObject() {
		return nil, nil
	}
	seen := map[propKey]bool{}
	var out []propKey
	cur := v.ref_()
	for !cur.isNull() {
		o := ctx.heap.Decode(cur).(*jsObject)
		for _, k := range ctx.ordinaryEnumerableKeys(o) {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
		cur = o.proto
	}
	return out, nil
}

// iteratorState is the aux payload for objectKindIterator objects:
// the materialized element/key sequence plus a cursor, shared by
// opGetIterator/opIteratorNext.
type iteratorState struct {
	values []Value
	keys   []propKey
	forIn  bool
	idx    int
}

func newValueIterator(ctx *Context, values []Value) Value {
	o := newOrdinaryObject(ctx.realm.objectPrototype)
	o.kind = objectKindIterator
	o.aux = &iteratorState{values: values}
	cp := ctx.heap.Alloc(heapKindObject, o)
	return objectValue(cp)
}

func newKeyIterator(ctx *Context, keys []propKey) Value {
	o := newOrdinaryObject(ctx.realm.objectPrototype)
	o.kind = objectKindIterator
	o.aux = &iteratorState{keys: keys, forIn: true}
	cp := ctx.heap.Alloc(heapKindObject, o)
	return objectValue(cp)
}

// makeClass implements opMakeClass (spec §4.6): builds the constructor
// function object and a fresh prototype, chains both to the
// superclass when one was given (statics to the superclass
// constructor, instance members to its prototype), then walks the
// constructor template's method table attaching each member to the
// prototype or the constructor itself per its isStatic flag.
func (ctx *Context) makeClass(fr *frame, ctorTemplate *functionTemplate, superVal Value) (Value, error) {
	protoProto := ctx.realm.objectPrototype
	ctorProto := ctx.realm.functionPrototype
	if superVal.IsObject() {
		protoKey := stringPropKey(ctx.strings.FindOrCreate("prototype", true))
		superProtoVal, err := ctx.Get(superVal, protoKey)
		if err != nil {
			return Value{}, err
		}
		if superProtoVal.IsObject() {
			protoProto = superProtoVal.ref_()
		}
		ctorProto = superVal.ref_()
	} else if !superVal.IsUndefined() {
		return Value{}, ctx.ThrowTypeError("Class extends value is not a constructor")
	}

	protoObj := newOrdinaryObject(protoProto)
	protoCP := ctx.heap.Alloc(heapKindObject, protoObj)

	ctorObj := newOrdinaryObject(ctorProto)
	ctorObj.kind = objectKindFunction
	ctorObj.aux = &functionState{template: ctorTemplate, env: fr.env}
	ctorCP := ctx.heap.Alloc(heapKindObject, ctorObj)
	ctorVal := objectValue(ctorCP)

	protoPropKey := stringPropKey(ctx.strings.FindOrCreate("prototype", true))
	ctorObj.insertProperty(&property{key: protoPropKey, kind: propKindData, value: objectValue(protoCP), writable: false, enumerable: false, configurable: false})
	ctorKey := stringPropKey(ctx.strings.FindOrCreate("constructor", true))
	protoObj.insertProperty(&property{key: ctorKey, kind: propKindData, value: ctorVal, writable: true, enumerable: false, configurable: true})
	nameKey := stringPropKey(ctx.strings.FindOrCreate("name", true))
	ctorObj.insertProperty(&property{key: nameKey, kind: propKindData, value: ctx.newStringResult(ctorTemplate.name), writable: false, enumerable: false, configurable: true})
	lengthKey := stringPropKey(ctx.strings.FindOrCreate("length", true))
	ctorObj.insertProperty(&property{key: lengthKey, kind: propKindData, value: Int(ctorTemplate.paramCount), writable: false, enumerable: false, configurable: true})

	for _, m := range ctorTemplate.methods {
		fnVal := newFunctionObject(ctx, m.template, fr.env, Undefined)
		target := protoObj
		if m.isStatic {
			target = ctorObj
		}
		key := stringPropKey(ctx.strings.FindOrCreate(m.name, isASCII(m.name)))
		switch m.kind {
		case classMemberGetter, classMemberSetter:
			p, ok := target.findOwnProperty(key)
			if !ok || p.kind != propKindAccessor {
				p = &property{key: key, kind: propKindAccessor, get: Undefined, set: Undefined, enumerable: false, configurable: true}
				target.insertProperty(p)
			}
			if m.kind == classMemberGetter {
				p.get = fnVal
			} else {
				p.set = fnVal
			}
		default:
			target.insertProperty(&property{key: key, kind: propKindData, value: fnVal, writable: true, enumerable: false, configurable: true})
		}
	}

	return ctorVal, nil
}
