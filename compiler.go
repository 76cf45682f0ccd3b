package tinyjs

// compiler.go is the single-visitor-pass AST-to-CBC compiler: one
// type-switch walk per function body, emitting into an `encoder`
// (encoder.go) and accumulating a literal pool. This mirrors the
// teacher's code-generation visitors (gen_go.go et al. walked the
// same parsed grammar AST once per target), collapsed here to one
// Go-bytecode target instead of the teacher's multi-language
// generator family.

type localSlot struct {
	name    string
	boundary *label // unused; placeholder kept for future block-scope slot reuse
}

type funcCompiler struct {
	parent *funcCompiler
	enc    *encoder
	info   *scopeInfo

	literals    []literal
	literalIdx  map[string]int // dedups string literals only; numbers/functions always append

	locals    []string // slot index -> name
	localIdx  map[string]int
	tempCount int

	// breakTargets/continueTargets let nested loops/switch resolve
	// unlabeled and labeled break/continue by walking this stack
	// outward, the same structural idea as the teacher's frame-typed
	// explicit stack (vm_stack.go's frameType enum distinguished loop
	// frames from call frames for unwinding).
	loopStack []*loopContext

	// pendingLabel is set by compileLabeled just before dispatching into
	// a loop statement, and consumed by the next pushLoop call so
	// labeled break/continue can find the right loopContext without
	// threading a label parameter through every loop-compiling method.
	pendingLabel string

	// tryDepth is never updated: try blocks are recorded in
	// pendingExceptions below, and no opPushTry/opPopTry is emitted.
	tryDepth int

	// pendingExceptions accumulates instruction-index-based protected
	// ranges; finish() translates indices to byte offsets once the
	// encoder's final layout is known (spec §7.4's exception table,
	// the mechanism frame.go's unwinder consults instead of inline
	// jump sequences -- closer to how a real bytecode VM indexes catch
	// handlers than threading jumps through every statement).
	pendingExceptions []pendingException

	template *functionTemplate
}

type pendingException struct {
	startIdx, endIdx int
	catchIdx         int // -1 if none
	finallyIdx       int // -1 if none
}

type loopContext struct {
	label        string
	continueLbl  *label
	breakLbl     *label
}

func newFuncCompiler(parent *funcCompiler, info *scopeInfo) *funcCompiler {
	return &funcCompiler{
		parent:     parent,
		enc:        newEncoder(),
		info:       info,
		literalIdx: map[string]int{},
		localIdx:   map[string]int{},
	}
}

// CompileProgram compiles a parsed top-level script into a
// functionTemplate representing the global code (spec §7's "program"
// entry point, called by api.go's Parse, module.go's ParseModule and
// the direct-eval path).
func CompileProgram(prog *programNode, info *scopeInfo) *functionTemplate {
	fc := newFuncCompiler(nil, info)
	for _, name := range info.varNames {
		fc.declareLocal(name)
	}
	for _, name := range info.lexNames {
		fc.declareLocal(name)
	}
	for _, stmt := range prog.body {
		fc.compileStatement(stmt)
	}
	fc.enc.emit(&genericInstruction{op: opPushUndefined})
	fc.enc.emit(&genericInstruction{op: opReturn})
	return fc.finish("", 0, false, false, info.strict)
}

func (fc *funcCompiler) finish(name string, paramCount int, isGen, isAsync, strict bool) *functionTemplate {
	code, offsets := fc.enc.encode()
	toOffset := func(idx int) int {
		if idx < 0 {
			return -1
		}
		if idx >= len(offsets) {
			return len(code)
		}
		return offsets[idx]
	}
	exceptions := make([]exceptionRange, 0, len(fc.pendingExceptions))
	for _, pe := range fc.pendingExceptions {
		exceptions = append(exceptions, exceptionRange{
			startPC:   toOffset(pe.startIdx),
			endPC:     toOffset(pe.endIdx),
			catchPC:   toOffset(pe.catchIdx),
			finallyPC: toOffset(pe.finallyIdx),
		})
	}
	return &functionTemplate{
		name:        name,
		paramCount:  paramCount,
		localCount:  len(fc.locals),
		isGenerator: isGen,
		isAsync:     isAsync,
		strict:      strict,
		code:        code,
		literals:    fc.literals,
		exceptions:  exceptions,
		localNames:  fc.locals,
	}
}

func (fc *funcCompiler) declareLocal(name string) int {
	if idx, ok := fc.localIdx[name]; ok {
		return idx
	}
	idx := len(fc.locals)
	fc.locals = append(fc.locals, name)
	fc.localIdx[name] = idx
	return idx
}

// allocTemp reserves a fresh frame slot with a name no source
// identifier can spell, for compiler-internal bookkeeping (member
// update expressions, destructuring intermediates).
func (fc *funcCompiler) allocTemp() int {
	fc.tempCount++
	name := "%tmp" + string(rune('0'+fc.tempCount%10)) + "_" + string(rune('a'+fc.tempCount/10%26))
	return fc.declareLocal(name)
}

func (fc *funcCompiler) resolveLocal(name string) (int, bool) {
	idx, ok := fc.localIdx[name]
	return idx, ok
}

func (fc *funcCompiler) addStringLiteral(s string) int {
	if idx, ok := fc.literalIdx[s]; ok {
		return idx
	}
	idx := len(fc.literals)
	fc.literals = append(fc.literals, literal{kind: literalString, str: s})
	fc.literalIdx[s] = idx
	return idx
}

func (fc *funcCompiler) addNumberLiteral(n float64) int {
	idx := len(fc.literals)
	fc.literals = append(fc.literals, literal{kind: literalNumber, num: n})
	return idx
}

func (fc *funcCompiler) addFunctionLiteral(ft *functionTemplate) int {
	idx := len(fc.literals)
	fc.literals = append(fc.literals, literal{kind: literalFunctionTemplate, function: ft})
	return idx
}

func (fc *funcCompiler) emit(op opcode) *genericInstruction {
	in := &genericInstruction{op: op}
	fc.enc.emit(in)
	return in
}

func (fc *funcCompiler) emitOperand(op opcode, operand int) *genericInstruction {
	in := &genericInstruction{op: op, operandA: operand}
	fc.enc.emit(in)
	return in
}

func (fc *funcCompiler) emitBranch(op opcode) *genericInstruction {
	in := &genericInstruction{op: op, target: newLabel()}
	fc.enc.emit(in)
	return in
}

// patchHere resolves in's branch target to the instruction about to
// be emitted next (a forward jump landing "here").
func (fc *funcCompiler) patchHere(in *genericInstruction) {
	fc.enc.bindLabelAt(in.target, fc.enc.nextIndex())
}

func (fc *funcCompiler) bindLabelHere(l *label) {
	fc.enc.bindLabelAt(l, fc.enc.nextIndex())
}

// --- statements ---

func (fc *funcCompiler) compileStatement(n stmtNode) {
	switch s := n.(type) {
	case *exprStmtNode:
		fc.compileExpr(s.expr)
		fc.emit(opPop)
	case *blockStmtNode:
		for _, st := range s.body {
			fc.compileStatement(st)
		}
	case *emptyStmtNode, *debuggerStmtNode:
		// no-op
	case *varDeclNode:
		fc.compileVarDecl(s)
	case *functionDeclNode:
		fc.compileFunctionDecl(s)
	case *ifStmtNode:
		fc.compileIf(s)
	case *whileStmtNode:
		fc.compileWhile(s)
	case *doWhileStmtNode:
		fc.compileDoWhile(s)
	case *forStmtNode:
		fc.compileFor(s)
	case *forInOfStmtNode:
		fc.compileForInOf(s)
	case *returnStmtNode:
		if s.arg != nil {
			fc.compileExpr(s.arg)
		} else {
			fc.emit(opPushUndefined)
		}
		fc.emit(opReturn)
	case *throwStmtNode:
		fc.compileExpr(s.arg)
		fc.emit(opThrow)
	case *tryStmtNode:
		fc.compileTry(s)
	case *switchStmtNode:
		fc.compileSwitch(s)
	case *breakStmtNode:
		fc.compileBreak(s.label)
	case *continueStmtNode:
		fc.compileContinue(s.label)
	case *labeledStmtNode:
		fc.compileLabeled(s)
	case *classDeclNode:
		fc.compileClassDecl(s)
	}
}

func (fc *funcCompiler) compileVarDecl(s *varDeclNode) {
	for _, d := range s.decls {
		if d.init != nil {
			fc.compileExpr(d.init)
		} else if s.kind == "var" {
			continue // `var x;` with no initializer leaves the hoisted binding untouched
		} else {
			fc.emit(opPushUndefined)
		}
		fc.compileBindingAssign(d.target, s.kind != "var")
	}
}

// compileBindingAssign emits the store sequence for a binding target,
// assuming the value is on TOS, and consumes that value. Only
// identifier targets are stored: an object or array destructuring
// pattern pops the value without binding any of its names, and the
// default value of an assignment pattern is not applied here.
func (fc *funcCompiler) compileBindingAssign(p patternNode, initialize bool) {
	switch pt := p.(type) {
	case *identifierPatternNode:
		fc.storeIdentifier(pt.name_, initialize)
	case *assignPatternNode:
		// value already produced by caller; the default is not evaluated
		fc.compileBindingAssign(pt.target, initialize)
	default:
		// Object/array destructuring targets: the value is dropped and
		// no name is bound.
		fc.emit(opPop)
	}
}

func (fc *funcCompiler) storeIdentifier(name string, initialize bool) {
	if idx, ok := fc.resolveLocal(name); ok {
		fc.emitOperand(opSetLocal, idx)
		fc.emit(opPop)
		return
	}
	sidx := fc.addStringLiteral(name)
	if initialize {
		fc.emitOperand(opInitVar, sidx)
	} else {
		fc.emitOperand(opSetVar, sidx)
	}
	fc.emit(opPop)
}

func (fc *funcCompiler) compileFunctionDecl(s *functionDeclNode) {
	ft := fc.compileNestedFunction(s.fn, s.name)
	idx := fc.addFunctionLiteral(ft)
	fc.emitOperand(opMakeFunction, idx)
	fc.storeIdentifier(s.name, true)
}

func (fc *funcCompiler) compileClassDecl(s *classDeclNode) {
	fc.compileClassExpr(s)
	fc.storeIdentifier(s.name, true)
}

// compileClassExpr leaves the constructed class constructor function
// object on TOS (spec §4.6): it compiles each method as a nested
// function template, then emits opMakeClass to assemble the
// prototype chain and property definitions at run time (the
// assembly logic itself lives in vm.go's opMakeClass handler, which
// walks the constructor template's methods list).
func (fc *funcCompiler) compileClassExpr(decl *classDeclNode) {
	var ctorFn *functionNode
	for _, m := range decl.body {
		if !m.isStatic && m.kind == classMemberMethod {
			if id, ok := m.key.(*identifierNode); ok && id.name == "constructor" {
				ctorFn = m.fn
			}
		}
	}
	if ctorFn == nil {
		ctorFn = &functionNode{}
	}
	ctorTemplate := fc.compileNestedFunction(ctorFn, decl.name)
	ctorTemplate.isGenerator = false
	idx := fc.addFunctionLiteral(ctorTemplate)
	if decl.superClass != nil {
		fc.compileExpr(decl.superClass)
	} else {
		fc.emit(opPushUndefined)
	}
	fc.emitOperand(opMakeClass, idx)
	// Methods beyond the constructor are attached by the VM's
	// opMakeClass handler, which walks ctorTemplate.methods -- a
	// dedicated list kept separate from the literal pool since each
	// entry needs a name, kind, and static flag opMakeClass consults to
	// decide where to install it (prototype vs. the constructor itself).
	for _, m := range decl.body {
		if m.kind != classMemberMethod && m.kind != classMemberGetter && m.kind != classMemberSetter {
			continue
		}
		if id, ok := m.key.(*identifierNode); ok && id.name == "constructor" && !m.isStatic {
			continue
		}
		mt := fc.compileNestedFunction(m.fn, methodNameOf(m.key))
		ctorTemplate.methods = append(ctorTemplate.methods, classMethodInfo{
			name: methodNameOf(m.key), kind: m.kind, isStatic: m.isStatic, template: mt,
		})
	}
}

func methodNameOf(key exprNode) string {
	if id, ok := key.(*identifierNode); ok {
		return id.name
	}
	return ""
}

func (fc *funcCompiler) compileNestedFunction(fn *functionNode, name string) *functionTemplate {
	info := analyzeFunction(fn, fc.info.strict)
	child := newFuncCompiler(fc, info)
	for _, p := range fn.params {
		child.compileParam(p)
	}
	for _, v := range info.varNames {
		child.declareLocal(v)
	}
	for _, v := range info.lexNames {
		child.declareLocal(v)
	}
	if fn.isExprBody {
		child.compileExpr(fn.exprBody)
		child.emit(opReturn)
	} else {
		for _, stmt := range fn.body {
			child.compileStatement(stmt)
		}
		child.emit(opPushUndefined)
		child.emit(opReturn)
	}
	return child.finish(name, len(fn.params), fn.isGenerator, fn.isAsync, info.strict)
}

func (fc *funcCompiler) compileParam(p patternNode) {
	switch pt := p.(type) {
	case *identifierPatternNode:
		fc.declareLocal(pt.name_)
	case *assignPatternNode:
		fc.compileParam(pt.target)
	case *restPatternNode:
		fc.compileParam(pt.arg)
	default:
		// destructured params declare no local slot and bind none of
		// their names.
	}
}

func (fc *funcCompiler) compileIf(s *ifStmtNode) {
	fc.compileExpr(s.test)
	elseJump := fc.emitBranch(opJumpIfFalse)
	fc.compileStatement(s.cons)
	if s.alt != nil {
		endJump := fc.emitBranch(opJump)
		fc.patchHere(elseJump)
		fc.compileStatement(s.alt)
		fc.patchHere(endJump)
	} else {
		fc.patchHere(elseJump)
	}
}

func (fc *funcCompiler) pushLoop(label string) *loopContext {
	if label == "" && fc.pendingLabel != "" {
		label = fc.pendingLabel
	}
	fc.pendingLabel = ""
	lc := &loopContext{label: label, continueLbl: newLabel(), breakLbl: newLabel()}
	fc.loopStack = append(fc.loopStack, lc)
	return lc
}

func (fc *funcCompiler) popLoop() {
	fc.loopStack = fc.loopStack[:len(fc.loopStack)-1]
}

func (fc *funcCompiler) compileWhile(s *whileStmtNode) {
	lc := fc.pushLoop("")
	top := fc.enc.nextIndex()
	fc.bindLabelHere(lc.continueLbl)
	fc.compileExpr(s.test)
	exit := fc.emitBranch(opJumpIfFalse)
	fc.compileStatement(s.body)
	back := fc.emitBranch(opJump)
	fc.enc.bindLabelAt(back.target, top)
	fc.patchHere(exit)
	fc.bindLabelHere(lc.breakLbl)
	fc.popLoop()
}

func (fc *funcCompiler) compileDoWhile(s *doWhileStmtNode) {
	lc := fc.pushLoop("")
	top := fc.enc.nextIndex()
	fc.compileStatement(s.body)
	fc.bindLabelHere(lc.continueLbl)
	fc.compileExpr(s.test)
	back := fc.emitBranch(opJumpIfTrue)
	fc.enc.bindLabelAt(back.target, top)
	fc.bindLabelHere(lc.breakLbl)
	fc.popLoop()
}

func (fc *funcCompiler) compileFor(s *forStmtNode) {
	if s.init != nil {
		fc.compileStatement(s.init)
	}
	lc := fc.pushLoop("")
	top := fc.enc.nextIndex()
	var exit *genericInstruction
	if s.test != nil {
		fc.compileExpr(s.test)
		exit = fc.emitBranch(opJumpIfFalse)
	}
	fc.compileStatement(s.body)
	fc.bindLabelHere(lc.continueLbl)
	if s.update != nil {
		fc.compileExpr(s.update)
		fc.emit(opPop)
	}
	back := fc.emitBranch(opJump)
	fc.enc.bindLabelAt(back.target, top)
	if exit != nil {
		fc.patchHere(exit)
	}
	fc.bindLabelHere(lc.breakLbl)
	fc.popLoop()
}

// compileForInOf emits the shared iterator-protocol skeleton for both
// `for-in` and `for-of`. One opGetIterator serves both; its operand
// selects the iterator: 0 for `for-of` (the value's own iterator) and
// 1 for `for-in` (the enumerable-keys iterator).
func (fc *funcCompiler) compileForInOf(s *forInOfStmtNode) {
	fc.compileExpr(s.right)
	if s.isOf {
		fc.emitOperand(opGetIterator, 0)
	} else {
		fc.emitOperand(opGetIterator, 1)
	}
	lc := fc.pushLoop("")
	top := fc.enc.nextIndex()
	fc.bindLabelHere(lc.continueLbl)
	fc.emit(opIteratorNext)
	doneJump := fc.emitBranch(opJumpIfTrue) // TOS: done flag consumed, value left beneath
	fc.compileForOfBindingTarget(s.left)
	fc.compileStatement(s.body)
	back := fc.emitBranch(opJump)
	fc.enc.bindLabelAt(back.target, top)
	fc.patchHere(doneJump)
	// Natural exhaustion leaves [iterator, value] on the stack (only the
	// done flag was popped by the branch above); drop the value here,
	// then fall into the shared iterator pop below. A `break` inside the
	// body jumps straight to breakLbl with just [iterator] live, skipping
	// this value pop entirely.
	fc.emit(opPop)
	fc.bindLabelHere(lc.breakLbl)
	fc.emit(opPop) // drop the iterator
	fc.popLoop()
}

func (fc *funcCompiler) compileForOfBindingTarget(left stmtNode) {
	switch l := left.(type) {
	case *varDeclNode:
		fc.compileBindingAssign(l.decls[0].target, l.kind != "var")
	case *exprStmtNode:
		fc.compileAssignTarget(l.expr)
		fc.emit(opPop)
	}
}

// compileTry emits the protected block, then the catch/finally
// handlers out-of-line, and records their positions in the function's
// exception table (spec §7.4) instead of reachable fall-through code --
// the VM's unwinder (frame.go) jumps directly into the handler when an
// exception is thrown inside [startPC, endPC), so the handler body
// below is only ever entered that way, never by falling off the end
// of the protected block.
func (fc *funcCompiler) compileTry(s *tryStmtNode) {
	startIdx := fc.enc.nextIndex()
	fc.compileStatement(s.block)
	endIdx := fc.enc.nextIndex()
	skipHandlers := fc.emitBranch(opJump)

	catchIdx, finallyIdx := -1, -1
	var afterCatchJump *genericInstruction
	if s.handler != nil {
		catchIdx = fc.enc.nextIndex()
		if s.handler.param != nil {
			fc.compileBindingAssign(s.handler.param, true)
		} else {
			fc.emit(opPop)
		}
		fc.compileStatement(s.handler.body)
		if s.finalizer != nil {
			fc.compileStatement(s.finalizer)
		}
		// Skip the finally-only handler below and the tail finally run
		// at the normal-path landing site -- the catch path already ran
		// the finalizer once above.
		afterCatchJump = fc.emitBranch(opJump)
	}
	if s.finalizer != nil {
		finallyIdx = fc.enc.nextIndex()
		fc.compileStatement(s.finalizer)
		fc.emit(opThrow) // re-raise after running finally for the no-catch case
	}
	fc.patchHere(skipHandlers)
	if s.finalizer != nil {
		fc.compileStatement(s.finalizer)
	}
	if afterCatchJump != nil {
		fc.patchHere(afterCatchJump)
	}

	fc.pendingExceptions = append(fc.pendingExceptions, pendingException{
		startIdx: startIdx, endIdx: endIdx, catchIdx: catchIdx, finallyIdx: finallyIdx,
	})
}

func (fc *funcCompiler) compileSwitch(s *switchStmtNode) {
	fc.compileExpr(s.disc)
	lc := fc.pushLoop("")
	var caseJumps []*genericInstruction
	defaultIdx := -1
	for i, c := range s.cases {
		if c.test == nil {
			defaultIdx = i
			continue
		}
		fc.emit(opDup)
		fc.compileExpr(c.test)
		fc.emit(opStrictEq)
		j := fc.emitBranch(opJumpIfTrue)
		caseJumps = append(caseJumps, j)
	}
	fallthroughDefault := fc.emitBranch(opJump)
	bodyStarts := make([]int, len(s.cases))
	ji := 0
	for i, c := range s.cases {
		if c.test != nil {
			fc.patchHere(caseJumps[ji])
			ji++
		}
		if i == defaultIdx {
			fc.patchHere(fallthroughDefault)
		}
		bodyStarts[i] = fc.enc.nextIndex()
		for _, st := range c.body {
			fc.compileStatement(st)
		}
	}
	if defaultIdx == -1 {
		fc.patchHere(fallthroughDefault)
	}
	fc.emit(opPop) // discriminant
	fc.bindLabelHere(lc.breakLbl)
	fc.popLoop()
	_ = bodyStarts
}

func (fc *funcCompiler) compileBreak(label string) {
	for i := len(fc.loopStack) - 1; i >= 0; i-- {
		lc := fc.loopStack[i]
		if label == "" || lc.label == label {
			in := &genericInstruction{op: opJump, target: lc.breakLbl}
			fc.enc.emit(in)
			return
		}
	}
}

func (fc *funcCompiler) compileContinue(label string) {
	for i := len(fc.loopStack) - 1; i >= 0; i-- {
		lc := fc.loopStack[i]
		if label == "" || lc.label == label {
			in := &genericInstruction{op: opJump, target: lc.continueLbl}
			fc.enc.emit(in)
			return
		}
	}
}

func (fc *funcCompiler) compileLabeled(s *labeledStmtNode) {
	switch s.body.(type) {
	case *whileStmtNode, *doWhileStmtNode, *forStmtNode, *forInOfStmtNode:
		fc.pendingLabel = s.label
		fc.compileStatement(s.body)
	default:
		fc.compileStatement(s.body)
	}
}
