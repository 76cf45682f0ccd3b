package tinyjs

// scanner.go is the scope pre-pass spec §4.5 calls for: a walk over a
// parsed function/program body that decides, before the compiler
// emits a single instruction, which names are hoisted `var`s, which
// identifiers are free variables needing `arguments`/`eval`/`this`/
// `super`/`new.target` support machinery, and whether the body is
// strict. Doing this as a separate pass (rather than interleaved with
// parsing) follows the teacher's own two-pass structure: langlang's
// parser builds an AST first and a later stage (its codegen visitors)
// walks it again to resolve grammar references.

type scopeInfo struct {
	strict bool

	// varNames are `var`/function declarations hoisted to the nearest
	// function or program scope (spec §4.5's "hoisting").
	varNames []string
	// lexNames are `let`/`const`/class declarations, block-scoped and
	// TDZ-initialized at the point their declaration executes.
	lexNames []string
	// functionNames are hoisted function declarations, pre-initialized
	// to the function object itself (not TDZ) unlike plain `var`.
	functionNames []string

	usesArguments bool
	usesEval      bool
	usesThis      bool
	usesSuper     bool
	usesNewTarget bool

	// capturesOuter is created empty and never filled in or read;
	// closed-over names are reached through the lexEnv chain.
	capturesOuter map[string]bool
}

func newScopeInfo() *scopeInfo {
	return &scopeInfo{capturesOuter: map[string]bool{}}
}

func (s *scopeInfo) addVar(name string) {
	for _, n := range s.varNames {
		if n == name {
			return
		}
	}
	s.varNames = append(s.varNames, name)
}

func (s *scopeInfo) addLex(name string) { s.lexNames = append(s.lexNames, name) }

func (s *scopeInfo) addFunction(name string) {
	s.functionNames = append(s.functionNames, name)
	s.addVar(name)
}

// scopeWalker recurses the AST (ast.go) accumulating a scopeInfo per
// function boundary. It does not resolve bindings across boundaries
// itself -- that happens during compilation (compiler.go), which has
// the full chain of enclosing scopeInfos available.
type scopeWalker struct {
	strictMode bool
}

func analyzeProgram(prog *programNode, strict bool) *scopeInfo {
	w := &scopeWalker{strictMode: strict}
	info := newScopeInfo()
	info.strict = strict
	for _, stmt := range prog.body {
		if isDirectivePrologueUseStrict(stmt) {
			info.strict = true
			w.strictMode = true
		}
		w.walkStatement(stmt, info)
	}
	return info
}

func isDirectivePrologueUseStrict(n stmtNode) bool {
	es, ok := n.(*exprStmtNode)
	if !ok {
		return false
	}
	lit, ok := es.expr.(*stringLiteralNode)
	return ok && lit.raw == "use strict"
}

func analyzeFunction(fn *functionNode, outerStrict bool) *scopeInfo {
	w := &scopeWalker{strictMode: outerStrict}
	info := newScopeInfo()
	info.strict = outerStrict
	for _, p := range fn.params {
		w.walkPattern(p, info, true)
	}
	for _, stmt := range fn.body {
		if isDirectivePrologueUseStrict(stmt) {
			info.strict = true
			w.strictMode = true
		}
		w.walkStatement(stmt, info)
	}
	return info
}

func (w *scopeWalker) walkStatement(n stmtNode, info *scopeInfo) {
	switch s := n.(type) {
	case *varDeclNode:
		for _, d := range s.decls {
			if s.kind == "var" {
				w.walkPattern(d.target, info, false)
			} else {
				w.collectLexNames(d.target, info)
			}
			if d.init != nil {
				w.walkExpr(d.init, info)
			}
		}
	case *functionDeclNode:
		info.addFunction(s.name)
	case *classDeclNode:
		info.addLex(s.name)
	case *blockStmtNode:
		for _, st := range s.body {
			w.walkStatement(st, info)
		}
	case *ifStmtNode:
		w.walkExpr(s.test, info)
		w.walkStatement(s.cons, info)
		if s.alt != nil {
			w.walkStatement(s.alt, info)
		}
	case *forStmtNode:
		if s.init != nil {
			w.walkStatement(s.init, info)
		}
		if s.test != nil {
			w.walkExpr(s.test, info)
		}
		if s.update != nil {
			w.walkExpr(s.update, info)
		}
		w.walkStatement(s.body, info)
	case *forInOfStmtNode:
		w.walkStatement(s.left, info)
		w.walkExpr(s.right, info)
		w.walkStatement(s.body, info)
	case *whileStmtNode:
		w.walkExpr(s.test, info)
		w.walkStatement(s.body, info)
	case *doWhileStmtNode:
		w.walkStatement(s.body, info)
		w.walkExpr(s.test, info)
	case *tryStmtNode:
		w.walkStatement(s.block, info)
		if s.handler != nil {
			if s.handler.param != nil {
				w.walkPattern(s.handler.param, info, false)
			}
			w.walkStatement(s.handler.body, info)
		}
		if s.finalizer != nil {
			w.walkStatement(s.finalizer, info)
		}
	case *switchStmtNode:
		w.walkExpr(s.disc, info)
		for _, c := range s.cases {
			for _, st := range c.body {
				w.walkStatement(st, info)
			}
		}
	case *exprStmtNode:
		w.walkExpr(s.expr, info)
	case *returnStmtNode:
		if s.arg != nil {
			w.walkExpr(s.arg, info)
		}
	case *throwStmtNode:
		w.walkExpr(s.arg, info)
	case *labeledStmtNode:
		w.walkStatement(s.body, info)
	}
}

func (w *scopeWalker) walkPattern(p patternNode, info *scopeInfo, isParam bool) {
	switch pt := p.(type) {
	case *identifierPatternNode:
		info.addVar(pt.name_)
	case *objectPatternNode:
		for _, prop := range pt.props {
			w.walkPattern(prop.value, info, isParam)
		}
		if pt.restName != nil {
			w.walkPattern(pt.restName, info, isParam)
		}
	case *arrayPatternNode:
		for _, el := range pt.elements {
			if el != nil {
				w.walkPattern(el, info, isParam)
			}
		}
	case *restPatternNode:
		w.walkPattern(pt.arg, info, isParam)
	case *assignPatternNode:
		w.walkPattern(pt.target, info, isParam)
		w.walkExpr(pt.def, info)
	}
}

// collectLexNames mirrors walkPattern but records names as block-scoped
// (let/const/class) bindings instead of hoisted vars.
func (w *scopeWalker) collectLexNames(p patternNode, info *scopeInfo) {
	switch pt := p.(type) {
	case *identifierPatternNode:
		info.addLex(pt.name_)
	case *objectPatternNode:
		for _, prop := range pt.props {
			w.collectLexNames(prop.value, info)
		}
		if pt.restName != nil {
			w.collectLexNames(pt.restName, info)
		}
	case *arrayPatternNode:
		for _, el := range pt.elements {
			if el != nil {
				w.collectLexNames(el, info)
			}
		}
	case *restPatternNode:
		w.collectLexNames(pt.arg, info)
	case *assignPatternNode:
		w.collectLexNames(pt.target, info)
		w.walkExpr(pt.def, info)
	}
}

func (w *scopeWalker) walkExpr(n exprNode, info *scopeInfo) {
	if n == nil {
		return
	}
	switch e := n.(type) {
	case *identifierNode:
		if e.name == "arguments" {
			info.usesArguments = true
		}
		if e.name == "eval" {
			info.usesEval = true
		}
	case *thisExprNode:
		info.usesThis = true
	case *superExprNode:
		info.usesSuper = true
	case *newTargetNode:
		info.usesNewTarget = true
	case *binaryExprNode:
		w.walkExpr(e.left, info)
		w.walkExpr(e.right, info)
	case *logicalExprNode:
		w.walkExpr(e.left, info)
		w.walkExpr(e.right, info)
	case *unaryExprNode:
		w.walkExpr(e.arg, info)
	case *updateExprNode:
		w.walkExpr(e.arg, info)
	case *assignExprNode:
		w.walkExpr(e.target, info)
		w.walkExpr(e.value, info)
	case *conditionalExprNode:
		w.walkExpr(e.test, info)
		w.walkExpr(e.cons, info)
		w.walkExpr(e.alt, info)
	case *callExprNode:
		w.walkExpr(e.callee, info)
		for _, a := range e.args {
			w.walkExpr(a, info)
		}
	case *newExprNode:
		w.walkExpr(e.callee, info)
		for _, a := range e.args {
			w.walkExpr(a, info)
		}
	case *memberExprNode:
		w.walkExpr(e.object, info)
		if e.computed {
			w.walkExpr(e.property, info)
		}
	case *arrayLiteralNode:
		for _, el := range e.elements {
			w.walkExpr(el, info)
		}
	case *objectLiteralNode:
		for _, p := range e.props {
			w.walkExpr(p.value, info)
			if p.computed {
				w.walkExpr(p.key, info)
			}
		}
	case *sequenceExprNode:
		for _, sub := range e.exprs {
			w.walkExpr(sub, info)
		}
	case *templateLiteralNode:
		for _, sub := range e.exprs {
			w.walkExpr(sub, info)
		}
	case *taggedTemplateNode:
		w.walkExpr(e.tag, info)
		w.walkExpr(e.quasi, info)
	case *spreadElementNode:
		w.walkExpr(e.arg, info)
	case *yieldExprNode:
		if e.arg != nil {
			w.walkExpr(e.arg, info)
		}
	case *awaitExprNode:
		w.walkExpr(e.arg, info)
	case *functionExprNode, *arrowFunctionNode, *classExprNode:
		// Nested functions get their own scopeInfo via analyzeFunction;
		// the enclosing walk does not descend into their bodies.
	}
}
