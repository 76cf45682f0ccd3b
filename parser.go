package tinyjs

import "fmt"

// parser.go is a hand-rolled recursive-descent parser, precedence-
// climbing for binary/logical operators, matching the grammar shape
// the lexer's token stream exposes. Structurally this follows the
// teacher's own recursive-descent style for the handful of
// non-memoized productions in its grammar compiler (base_parser.go's
// `parseExpr`/`parsePrimary` shape), generalized from a PEG
// meta-grammar to ECMAScript's fixed grammar.
type parser struct {
	lex    *lexer
	cur    token
	prevEnd Position

	// regexAllowed tracks whether the next `/` should be scanned as a
	// regex literal or a division operator -- true right after an
	// operator/keyword/opening-bracket, false right after an
	// identifier/literal/closing-bracket (spec §4.4).
	regexAllowed bool

	inFunction  bool
	inGenerator bool
	inAsync     bool

	errs []*ParseError
}

func newParser(src string) *parser {
	p := &parser{lex: newLexer(src), regexAllowed: true}
	p.advance()
	return p
}

func (p *parser) advance() {
	p.prevEnd = p.cur.end
	if p.regexAllowed && p.lex.peekByte() == '/' {
		p.cur = p.lex.scanRegExpLiteral()
		p.cur.start = p.prevEnd
		p.cur.end = p.lex.pos()
	} else {
		p.cur = p.lex.next()
	}
	p.errs = append(p.errs, p.lex.errs...)
	p.lex.errs = nil
}

func (p *parser) errorf(format string, args ...any) {
	p.errs = append(p.errs, &ParseError{
		Message: fmt.Sprintf(format, args...),
		Kind:    "SyntaxError",
		Line:    p.cur.start.Line,
		Column:  p.cur.start.Column,
	})
}

func (p *parser) isPunct(s string) bool { return p.cur.kind == tokPunct && p.cur.lit == s }
func (p *parser) isKeyword(s string) bool {
	return p.cur.kind == tokKeyword && p.cur.lit == s
}
func (p *parser) isIdent(s string) bool {
	return p.cur.kind == tokIdentifier && p.cur.lit == s
}

func (p *parser) expectPunct(s string) {
	if !p.isPunct(s) {
		p.errorf("expected %q, got %q", s, p.cur.lit)
		return
	}
	p.afterOperand(false)
	p.advance()
}

// afterOperand sets regexAllowed for the *next* advance() based on
// whether the token just consumed ends an operand (division context)
// or not (regex-start context).
func (p *parser) afterOperand(isOperandEnd bool) {
	p.regexAllowed = !isOperandEnd
}

func (p *parser) consumePunct(s string) bool {
	if p.isPunct(s) {
		p.afterOperand(false)
		p.advance()
		return true
	}
	return false
}

// ParseProgram is the embedding entry point's front-end call
// (api.go's `Context.Eval`/`Parse`): scans and parses a full top-level
// script, returning either an AST or a ParseError (spec §4.4/§4.5
// together, the lexer+parser are a single "front end" black box to
// the rest of the engine).
func ParseProgram(src string) (*programNode, *scopeInfo, []*ParseError) {
	p := newParser(src)
	prog := &programNode{}
	for p.cur.kind != tokEOF {
		stmt := p.parseStatement()
		if stmt != nil {
			prog.body = append(prog.body, stmt)
		}
	}
	info := analyzeProgram(prog, false)
	return prog, info, p.errs
}

func (p *parser) semicolon() {
	if p.consumePunct(";") {
		return
	}
	if p.cur.kind == tokEOF || p.isPunct("}") || p.cur.precededByLineTerminator {
		return // ASI (spec §4.4)
	}
	p.errorf("expected ';'")
}

func (p *parser) parseStatement() stmtNode {
	switch {
	case p.isPunct("{"):
		return p.parseBlock()
	case p.isPunct(";"):
		p.advance()
		return &emptyStmtNode{}
	case p.isKeyword("var"), p.isKeyword("const"), p.isIdent("let") && p.letStartsDeclaration():
		return p.parseVarStatement()
	case p.isKeyword("function"):
		return p.parseFunctionDeclaration(false)
	case p.isIdent("async") && p.peekIsFunctionKeyword():
		p.advance()
		return p.parseFunctionDeclaration(true)
	case p.isKeyword("class"):
		return p.parseClassDeclaration()
	case p.isKeyword("if"):
		return p.parseIf()
	case p.isKeyword("for"):
		return p.parseFor()
	case p.isKeyword("while"):
		return p.parseWhile()
	case p.isKeyword("do"):
		return p.parseDoWhile()
	case p.isKeyword("try"):
		return p.parseTry()
	case p.isKeyword("switch"):
		return p.parseSwitch()
	case p.isKeyword("return"):
		return p.parseReturn()
	case p.isKeyword("throw"):
		return p.parseThrow()
	case p.isKeyword("break"):
		return p.parseBreakContinue(true)
	case p.isKeyword("continue"):
		return p.parseBreakContinue(false)
	case p.isKeyword("debugger"):
		p.advance()
		p.semicolon()
		return &debuggerStmtNode{}
	case p.cur.kind == tokIdentifier:
		return p.parseIdentifierLeadStatement()
	default:
		expr := p.parseExpression()
		p.semicolon()
		return &exprStmtNode{expr: expr}
	}
}

func (p *parser) letStartsDeclaration() bool {
	return true // the parser only invokes callers of letStartsDeclaration in statement-start position
}

func (p *parser) peekIsFunctionKeyword() bool {
	save := *p.lex
	t := p.lex.next()
	*p.lex = save
	return t.kind == tokKeyword && t.lit == "function"
}

// parseIdentifierLeadStatement handles the two statement forms that
// start with a plain identifier: a labeled statement (`foo:`) or an
// expression statement.
func (p *parser) parseIdentifierLeadStatement() stmtNode {
	name := p.cur.lit
	save := *p.lex
	savedCur := p.cur
	p.advance()
	if p.isPunct(":") {
		p.advance()
		body := p.parseStatement()
		return &labeledStmtNode{label: name, body: body}
	}
	*p.lex = save
	p.cur = savedCur
	expr := p.parseExpression()
	p.semicolon()
	return &exprStmtNode{expr: expr}
}

func (p *parser) parseBlock() *blockStmtNode {
	p.expectPunct("{")
	b := &blockStmtNode{}
	for !p.isPunct("}") && p.cur.kind != tokEOF {
		b.body = append(b.body, p.parseStatement())
	}
	p.expectPunct("}")
	return b
}

func (p *parser) parseVarStatement() stmtNode {
	kind := p.cur.lit
	p.advance()
	decl := &varDeclNode{kind: kind}
	for {
		target := p.parseBindingTarget()
		var init exprNode
		if p.consumePunct("=") {
			init = p.parseAssignExpr()
		}
		decl.decls = append(decl.decls, &varDeclarator{target: target, init: init})
		if !p.consumePunct(",") {
			break
		}
	}
	p.semicolon()
	return decl
}

func (p *parser) parseBindingTarget() patternNode {
	switch {
	case p.isPunct("["):
		return p.parseArrayPattern()
	case p.isPunct("{"):
		return p.parseObjectPattern()
	default:
		name := p.cur.lit
		p.advance()
		return &identifierPatternNode{name_: name}
	}
}

func (p *parser) parseArrayPattern() patternNode {
	p.expectPunct("[")
	pat := &arrayPatternNode{}
	for !p.isPunct("]") {
		if p.consumePunct(",") {
			pat.elements = append(pat.elements, nil)
			continue
		}
		if p.consumePunct("...") {
			pat.elements = append(pat.elements, &restPatternNode{arg: p.parseBindingTarget()})
			break
		}
		el := p.parseBindingTarget()
		if p.consumePunct("=") {
			el = &assignPatternNode{target: el, def: p.parseAssignExpr()}
		}
		pat.elements = append(pat.elements, el)
		if !p.consumePunct(",") {
			break
		}
	}
	p.expectPunct("]")
	return pat
}

func (p *parser) parseObjectPattern() patternNode {
	p.expectPunct("{")
	pat := &objectPatternNode{}
	for !p.isPunct("}") {
		if p.consumePunct("...") {
			pat.restName = p.parseBindingTarget()
			break
		}
		key := p.parsePropertyKeyExpr()
		var value patternNode
		shorthand := false
		if p.consumePunct(":") {
			value = p.parseBindingTarget()
		} else {
			shorthand = true
			if id, ok := key.(*identifierNode); ok {
				value = &identifierPatternNode{name_: id.name}
			}
		}
		if p.consumePunct("=") {
			value = &assignPatternNode{target: value, def: p.parseAssignExpr()}
		}
		pat.props = append(pat.props, &objPatternProp{key: key, value: value, shorthand: shorthand})
		if !p.consumePunct(",") {
			break
		}
	}
	p.expectPunct("}")
	return pat
}

func (p *parser) parsePropertyKeyExpr() exprNode {
	if p.isPunct("[") {
		p.advance()
		e := p.parseAssignExpr()
		p.expectPunct("]")
		return e
	}
	if p.cur.kind == tokString {
		s := &stringLiteralNode{raw: p.cur.lit, cooked: p.cur.cooked}
		p.advance()
		return s
	}
	if p.cur.kind == tokNumber {
		n := &numberLiteralNode{value: p.cur.numValue}
		p.advance()
		return n
	}
	name := p.cur.lit
	p.advance()
	return &identifierNode{name: name}
}

func (p *parser) parseFunctionDeclaration(isAsync bool) stmtNode {
	p.advance() // 'function'
	isGen := p.consumePunct("*")
	name := p.cur.lit
	p.advance()
	fn := p.parseFunctionRest(name, isAsync, isGen)
	return &functionDeclNode{name: name, fn: fn}
}

func (p *parser) parseFunctionRest(name string, isAsync, isGen bool) *functionNode {
	fn := &functionNode{name: name, isAsync: isAsync, isGenerator: isGen}
	savedGen, savedAsync, savedFn := p.inGenerator, p.inAsync, p.inFunction
	p.inGenerator, p.inAsync, p.inFunction = isGen, isAsync, true
	fn.params = p.parseParamList()
	body := p.parseBlock()
	fn.body = body.body
	p.inGenerator, p.inAsync, p.inFunction = savedGen, savedAsync, savedFn
	return fn
}

func (p *parser) parseParamList() []patternNode {
	p.expectPunct("(")
	var params []patternNode
	for !p.isPunct(")") {
		if p.consumePunct("...") {
			params = append(params, &restPatternNode{arg: p.parseBindingTarget()})
			break
		}
		target := p.parseBindingTarget()
		if p.consumePunct("=") {
			target = &assignPatternNode{target: target, def: p.parseAssignExpr()}
		}
		params = append(params, target)
		if !p.consumePunct(",") {
			break
		}
	}
	p.expectPunct(")")
	return params
}

func (p *parser) parseClassDeclaration() stmtNode {
	decl := p.parseClassTail()
	return decl
}

func (p *parser) parseClassTail() *classDeclNode {
	p.advance() // 'class'
	decl := &classDeclNode{}
	if p.cur.kind == tokIdentifier {
		decl.name = p.cur.lit
		p.advance()
	}
	if p.isKeyword("extends") || p.isIdent("extends") {
		p.advance()
		decl.superClass = p.parseLeftHandSideExpr()
	}
	p.expectPunct("{")
	for !p.isPunct("}") && p.cur.kind != tokEOF {
		if p.consumePunct(";") {
			continue
		}
		decl.body = append(decl.body, p.parseClassMember())
	}
	p.expectPunct("}")
	return decl
}

func (p *parser) parseClassMember() *classMember {
	m := &classMember{}
	if p.isIdent("static") {
		save := *p.lex
		savedCur := p.cur
		p.advance()
		if p.isPunct("{") {
			body := p.parseBlock()
			m.isStatic = true
			m.kind = classMemberStaticBlock
			m.staticBody = body.body
			return m
		}
		if p.isPunct("(") || p.isPunct("=") || p.isPunct(";") || p.cur.precededByLineTerminator {
			*p.lex = save
			p.cur = savedCur
		} else {
			m.isStatic = true
		}
	}
	isAsync, isGen := false, false
	if p.isIdent("async") {
		save := *p.lex
		savedCur := p.cur
		p.advance()
		if p.isPunct("(") || p.isPunct("=") {
			*p.lex = save
			p.cur = savedCur
		} else {
			isAsync = true
		}
	}
	if p.consumePunct("*") {
		isGen = true
	}
	if (p.isIdent("get") || p.isIdent("set")) && !isAsync && !isGen {
		kind := p.cur.lit
		save := *p.lex
		savedCur := p.cur
		p.advance()
		if p.isPunct("(") || p.isPunct("=") {
			*p.lex = save
			p.cur = savedCur
		} else {
			if kind == "get" {
				m.kind = classMemberGetter
			} else {
				m.kind = classMemberSetter
			}
			m.key, m.computed, m.isPrivate = p.parseClassKey()
			m.fn = p.parseFunctionRest("", false, false)
			return m
		}
	}
	m.key, m.computed, m.isPrivate = p.parseClassKey()
	if p.isPunct("(") {
		m.kind = classMemberMethod
		m.fn = p.parseFunctionRest("", isAsync, isGen)
		return m
	}
	m.kind = classMemberField
	if p.consumePunct("=") {
		m.value = p.parseAssignExpr()
	}
	p.semicolon()
	return m
}

func (p *parser) parseClassKey() (exprNode, bool, bool) {
	if p.cur.kind == tokPrivateIdentifier {
		name := p.cur.lit
		p.advance()
		return &identifierNode{name: name}, false, true
	}
	if p.isPunct("[") {
		p.advance()
		e := p.parseAssignExpr()
		p.expectPunct("]")
		return e, true, false
	}
	return p.parsePropertyKeyExpr(), false, false
}

func (p *parser) parseIf() stmtNode {
	p.advance()
	p.expectPunct("(")
	test := p.parseExpression()
	p.expectPunct(")")
	cons := p.parseStatement()
	var alt stmtNode
	if p.isKeyword("else") {
		p.advance()
		alt = p.parseStatement()
	}
	return &ifStmtNode{test: test, cons: cons, alt: alt}
}

func (p *parser) parseFor() stmtNode {
	p.advance()
	p.expectPunct("(")
	var init stmtNode
	if p.isPunct(";") {
		// no init
	} else if p.isKeyword("var") || p.isKeyword("const") || p.isIdent("let") {
		kind := p.cur.lit
		p.advance()
		target := p.parseBindingTarget()
		if p.isKeyword("in") || p.isIdent("of") {
			isOf := p.isIdent("of")
			p.advance()
			right := p.parseAssignExpr()
			p.expectPunct(")")
			body := p.parseStatement()
			decl := &varDeclNode{kind: kind, decls: []*varDeclarator{{target: target}}}
			return &forInOfStmtNode{isOf: isOf, left: decl, right: right, body: body}
		}
		decl := &varDeclNode{kind: kind}
		var firstInit exprNode
		if p.consumePunct("=") {
			firstInit = p.parseAssignExpr()
		}
		decl.decls = append(decl.decls, &varDeclarator{target: target, init: firstInit})
		for p.consumePunct(",") {
			t2 := p.parseBindingTarget()
			var i2 exprNode
			if p.consumePunct("=") {
				i2 = p.parseAssignExpr()
			}
			decl.decls = append(decl.decls, &varDeclarator{target: t2, init: i2})
		}
		init = decl
	} else {
		expr := p.parseExpression()
		if p.isKeyword("in") || p.isIdent("of") {
			isOf := p.isIdent("of")
			p.advance()
			right := p.parseAssignExpr()
			p.expectPunct(")")
			body := p.parseStatement()
			return &forInOfStmtNode{isOf: isOf, left: &exprStmtNode{expr: expr}, right: right, body: body}
		}
		init = &exprStmtNode{expr: expr}
	}
	p.expectPunct(";")
	var test exprNode
	if !p.isPunct(";") {
		test = p.parseExpression()
	}
	p.expectPunct(";")
	var update exprNode
	if !p.isPunct(")") {
		update = p.parseExpression()
	}
	p.expectPunct(")")
	body := p.parseStatement()
	return &forStmtNode{init: init, test: test, update: update, body: body}
}

func (p *parser) parseWhile() stmtNode {
	p.advance()
	p.expectPunct("(")
	test := p.parseExpression()
	p.expectPunct(")")
	body := p.parseStatement()
	return &whileStmtNode{test: test, body: body}
}

func (p *parser) parseDoWhile() stmtNode {
	p.advance()
	body := p.parseStatement()
	if !p.isKeyword("while") {
		p.errorf("expected 'while'")
	} else {
		p.advance()
	}
	p.expectPunct("(")
	test := p.parseExpression()
	p.expectPunct(")")
	p.consumePunct(";")
	return &doWhileStmtNode{body: body, test: test}
}

func (p *parser) parseTry() stmtNode {
	p.advance()
	block := p.parseBlock()
	t := &tryStmtNode{block: block}
	if p.isKeyword("catch") {
		p.advance()
		var param patternNode
		if p.consumePunct("(") {
			param = p.parseBindingTarget()
			p.expectPunct(")")
		}
		body := p.parseBlock()
		t.handler = &catchClauseNode{param: param, body: body}
	}
	if p.isKeyword("finally") {
		p.advance()
		t.finalizer = p.parseBlock()
	}
	return t
}

func (p *parser) parseSwitch() stmtNode {
	p.advance()
	p.expectPunct("(")
	disc := p.parseExpression()
	p.expectPunct(")")
	p.expectPunct("{")
	sw := &switchStmtNode{disc: disc}
	for !p.isPunct("}") && p.cur.kind != tokEOF {
		c := &switchCaseNode{}
		if p.isKeyword("case") {
			p.advance()
			c.test = p.parseExpression()
		} else if p.isKeyword("default") {
			p.advance()
		} else {
			p.errorf("expected 'case' or 'default'")
			break
		}
		p.expectPunct(":")
		for !p.isKeyword("case") && !p.isKeyword("default") && !p.isPunct("}") && p.cur.kind != tokEOF {
			c.body = append(c.body, p.parseStatement())
		}
		sw.cases = append(sw.cases, c)
	}
	p.expectPunct("}")
	return sw
}

func (p *parser) parseReturn() stmtNode {
	p.advance()
	var arg exprNode
	if !p.isPunct(";") && !p.isPunct("}") && p.cur.kind != tokEOF && !p.cur.precededByLineTerminator {
		arg = p.parseExpression()
	}
	p.semicolon()
	return &returnStmtNode{arg: arg}
}

func (p *parser) parseThrow() stmtNode {
	p.advance()
	if p.cur.precededByLineTerminator {
		p.errorf("illegal newline after throw")
	}
	arg := p.parseExpression()
	p.semicolon()
	return &throwStmtNode{arg: arg}
}

func (p *parser) parseBreakContinue(isBreak bool) stmtNode {
	p.advance()
	label := ""
	if p.cur.kind == tokIdentifier && !p.cur.precededByLineTerminator {
		label = p.cur.lit
		p.advance()
	}
	p.semicolon()
	if isBreak {
		return &breakStmtNode{label: label}
	}
	return &continueStmtNode{label: label}
}

// --- expressions, precedence-climbing ---

func (p *parser) parseExpression() exprNode {
	first := p.parseAssignExpr()
	if !p.isPunct(",") {
		return first
	}
	seq := &sequenceExprNode{exprs: []exprNode{first}}
	for p.consumePunct(",") {
		seq.exprs = append(seq.exprs, p.parseAssignExpr())
	}
	return seq
}

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"**=": true, "<<=": true, ">>=": true, ">>>=": true, "&=": true,
	"|=": true, "^=": true, "&&=": true, "||=": true, "??=": true,
}

func (p *parser) parseAssignExpr() exprNode {
	if p.isIdent("yield") && p.inGenerator {
		return p.parseYield()
	}
	if arrow := p.tryParseArrow(); arrow != nil {
		return arrow
	}
	left := p.parseConditional()
	if p.cur.kind == tokPunct && assignOps[p.cur.lit] {
		op := p.cur.lit
		p.advance()
		right := p.parseAssignExpr()
		return &assignExprNode{op: op, target: left, value: right}
	}
	return left
}

func (p *parser) parseYield() exprNode {
	p.advance()
	delegate := p.consumePunct("*")
	var arg exprNode
	if !p.cur.precededByLineTerminator && !p.isPunct(")") && !p.isPunct(";") && !p.isPunct("}") && !p.isPunct(",") && p.cur.kind != tokEOF {
		arg = p.parseAssignExpr()
	}
	return &yieldExprNode{arg: arg, delegate: delegate}
}

// tryParseArrow speculatively parses `(params) =>` or `ident =>`;
// returns nil (leaving parser state untouched) if the lookahead
// doesn't confirm an arrow function, since ECMAScript's grammar
// requires unbounded lookahead here (spec §4.5's "cover grammar").
func (p *parser) tryParseArrow() exprNode {
	isAsync := false
	save := *p.lex
	savedCur := p.cur
	if p.isIdent("async") && !p.cur.precededByLineTerminator {
		p.advance()
		if p.cur.precededByLineTerminator {
			*p.lex, p.cur = save, savedCur
			return nil
		}
		isAsync = true
	}
	if p.cur.kind == tokIdentifier {
		name := p.cur.lit
		save2 := *p.lex
		savedCur2 := p.cur
		p.advance()
		if p.isPunct("=>") && !p.cur.precededByLineTerminator {
			p.advance()
			return p.finishArrow([]patternNode{&identifierPatternNode{name_: name}}, isAsync)
		}
		*p.lex, p.cur = save2, savedCur2
	}
	if p.isPunct("(") {
		save3 := *p.lex
		savedCur3 := p.cur
		if params, ok := p.tryParseParenParamsArrow(); ok {
			return p.finishArrow(params, isAsync)
		}
		*p.lex, p.cur = save3, savedCur3
	}
	*p.lex, p.cur = save, savedCur
	return nil
}

// tryParseParenParamsArrow attempts to parse "(params) =>"; it
// restores no state itself -- callers snapshot before calling.
func (p *parser) tryParseParenParamsArrow() ([]patternNode, bool) {
	defer func() { recover() }() // a malformed paren group throws deep inside parseParamList; treat as "not an arrow"
	params := p.parseParamList()
	if p.isPunct("=>") && !p.cur.precededByLineTerminator {
		p.advance()
		return params, true
	}
	return nil, false
}

func (p *parser) finishArrow(params []patternNode, isAsync bool) exprNode {
	fn := &functionNode{isArrow: true, isAsync: isAsync, params: params}
	savedAsync, savedFn := p.inAsync, p.inFunction
	p.inAsync, p.inFunction = isAsync, true
	if p.isPunct("{") {
		body := p.parseBlock()
		fn.body = body.body
	} else {
		fn.isExprBody = true
		fn.exprBody = p.parseAssignExpr()
	}
	p.inAsync, p.inFunction = savedAsync, savedFn
	return &arrowFunctionNode{fn: fn}
}

func (p *parser) parseConditional() exprNode {
	test := p.parseNullish()
	if !p.consumePunct("?") {
		return test
	}
	cons := p.parseAssignExpr()
	p.expectPunct(":")
	alt := p.parseAssignExpr()
	return &conditionalExprNode{test: test, cons: cons, alt: alt}
}

func (p *parser) parseNullish() exprNode {
	left := p.parseLogicalOr()
	for p.isPunct("??") {
		p.advance()
		right := p.parseLogicalOr()
		left = &logicalExprNode{op: "??", left: left, right: right}
	}
	return left
}

func (p *parser) parseLogicalOr() exprNode {
	left := p.parseLogicalAnd()
	for p.isPunct("||") {
		p.advance()
		right := p.parseLogicalAnd()
		left = &logicalExprNode{op: "||", left: left, right: right}
	}
	return left
}

func (p *parser) parseLogicalAnd() exprNode {
	left := p.parseBinary(0)
	for p.isPunct("&&") {
		p.advance()
		right := p.parseBinary(0)
		left = &logicalExprNode{op: "&&", left: left, right: right}
	}
	return left
}

// binaryPrecedence follows ECMA-262 Table 78's operator precedence,
// lowest first; `in`/`instanceof` are treated as ordinary binary
// operators here (the `for (x in y)` ambiguity is resolved earlier,
// in parseFor, before expression parsing ever begins).
var binaryPrecedence = map[string]int{
	"|": 1, "^": 2, "&": 3,
	"==": 4, "!=": 4, "===": 4, "!==": 4,
	"<": 5, ">": 5, "<=": 5, ">=": 5, "in": 5, "instanceof": 5,
	"<<": 6, ">>": 6, ">>>": 6,
	"+": 7, "-": 7,
	"*": 8, "/": 8, "%": 8,
	"**": 9,
}

func (p *parser) parseBinary(minPrec int) exprNode {
	left := p.parseUnary()
	for {
		op, prec, ok := p.peekBinaryOp()
		if !ok || prec < minPrec {
			return left
		}
		p.advance()
		var right exprNode
		if op == "**" {
			right = p.parseBinary(prec) // right-associative
		} else {
			right = p.parseBinary(prec + 1)
		}
		left = &binaryExprNode{op: op, left: left, right: right}
	}
}

func (p *parser) peekBinaryOp() (string, int, bool) {
	if p.cur.kind == tokPunct {
		if prec, ok := binaryPrecedence[p.cur.lit]; ok {
			return p.cur.lit, prec, true
		}
	}
	if p.cur.kind == tokKeyword && (p.cur.lit == "in" || p.cur.lit == "instanceof") {
		return p.cur.lit, binaryPrecedence[p.cur.lit], true
	}
	return "", 0, false
}

var unaryOps = map[string]bool{
	"+": true, "-": true, "~": true, "!": true,
}

func (p *parser) parseUnary() exprNode {
	if p.cur.kind == tokPunct && unaryOps[p.cur.lit] {
		op := p.cur.lit
		p.advance()
		return &unaryExprNode{op: op, arg: p.parseUnary()}
	}
	if p.isKeyword("typeof") || p.isKeyword("void") || p.isKeyword("delete") {
		op := p.cur.lit
		p.advance()
		return &unaryExprNode{op: op, arg: p.parseUnary()}
	}
	if p.isIdent("await") && p.inAsync {
		p.advance()
		return &awaitExprNode{arg: p.parseUnary()}
	}
	if p.isPunct("++") || p.isPunct("--") {
		op := p.cur.lit
		p.advance()
		return &updateExprNode{op: op, arg: p.parseUnary(), prefix: true}
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() exprNode {
	expr := p.parseLeftHandSideExpr()
	if (p.isPunct("++") || p.isPunct("--")) && !p.cur.precededByLineTerminator {
		op := p.cur.lit
		p.advance()
		return &updateExprNode{op: op, arg: expr, prefix: false}
	}
	return expr
}

func (p *parser) parseLeftHandSideExpr() exprNode {
	var expr exprNode
	if p.isKeyword("new") {
		expr = p.parseNewExpr()
	} else {
		expr = p.parsePrimary()
	}
	return p.parseCallAndMemberTail(expr)
}

func (p *parser) parseNewExpr() exprNode {
	p.advance()
	if p.isPunct(".") {
		p.advance()
		if p.isIdent("target") {
			p.advance()
			return &newTargetNode{}
		}
		p.errorf("expected 'target' after 'new.'")
		return &newTargetNode{}
	}
	var callee exprNode
	if p.isKeyword("new") {
		callee = p.parseNewExpr()
	} else {
		callee = p.parsePrimary()
	}
	callee = p.parseMemberTailOnly(callee)
	var args []exprNode
	if p.isPunct("(") {
		args = p.parseArguments()
	}
	return &newExprNode{callee: callee, args: args}
}

func (p *parser) parseMemberTailOnly(expr exprNode) exprNode {
	for {
		switch {
		case p.isPunct("."):
			p.advance()
			name := p.parseIdentifierName()
			expr = &memberExprNode{object: expr, property: &identifierNode{name: name}}
		case p.isPunct("["):
			p.advance()
			prop := p.parseExpression()
			p.expectPunct("]")
			expr = &memberExprNode{object: expr, property: prop, computed: true}
		default:
			return expr
		}
	}
}

func (p *parser) parseIdentifierName() string {
	name := p.cur.lit
	p.advance()
	return name
}

func (p *parser) parseCallAndMemberTail(expr exprNode) exprNode {
	for {
		switch {
		case p.isPunct("."):
			p.advance()
			name := p.parseIdentifierName()
			expr = &memberExprNode{object: expr, property: &identifierNode{name: name}}
		case p.isPunct("?."):
			p.advance()
			if p.isPunct("(") {
				args := p.parseArguments()
				expr = &callExprNode{callee: expr, args: args, optional: true}
			} else if p.isPunct("[") {
				p.advance()
				prop := p.parseExpression()
				p.expectPunct("]")
				expr = &memberExprNode{object: expr, property: prop, computed: true, optional: true}
			} else {
				name := p.parseIdentifierName()
				expr = &memberExprNode{object: expr, property: &identifierNode{name: name}, optional: true}
			}
		case p.isPunct("["):
			p.advance()
			prop := p.parseExpression()
			p.expectPunct("]")
			expr = &memberExprNode{object: expr, property: prop, computed: true}
		case p.isPunct("("):
			args := p.parseArguments()
			expr = &callExprNode{callee: expr, args: args}
		case p.cur.kind == tokTemplateString:
			quasi := p.parseTemplateLiteral()
			expr = &taggedTemplateNode{tag: expr, quasi: quasi}
		default:
			return expr
		}
	}
}

func (p *parser) parseArguments() []exprNode {
	p.expectPunct("(")
	var args []exprNode
	for !p.isPunct(")") {
		if p.consumePunct("...") {
			args = append(args, &spreadElementNode{arg: p.parseAssignExpr()})
		} else {
			args = append(args, p.parseAssignExpr())
		}
		if !p.consumePunct(",") {
			break
		}
	}
	p.expectPunct(")")
	return args
}

func (p *parser) parsePrimary() exprNode {
	switch {
	case p.cur.kind == tokNumber:
		v := p.cur.numValue
		p.afterOperand(true)
		p.advance()
		return &numberLiteralNode{value: v}
	case p.cur.kind == tokBigIntLiteral:
		lit := p.cur.lit
		p.afterOperand(true)
		p.advance()
		return &bigintLiteralNode{raw: lit}
	case p.cur.kind == tokString:
		s := &stringLiteralNode{raw: p.cur.lit, cooked: p.cur.cooked}
		p.afterOperand(true)
		p.advance()
		return s
	case p.cur.kind == tokTemplateString:
		return p.parseTemplateLiteral()
	case p.cur.kind == tokRegExpLiteral:
		lit := p.cur.lit
		p.afterOperand(true)
		p.advance()
		pattern, flags := splitRegExpLiteral(lit)
		return &regexpLiteralNode{pattern: pattern, flags: flags}
	case p.isKeyword("this"):
		p.afterOperand(true)
		p.advance()
		return &thisExprNode{}
	case p.isKeyword("super"):
		p.afterOperand(true)
		p.advance()
		return &superExprNode{}
	case p.isKeyword("null"):
		p.afterOperand(true)
		p.advance()
		return &nullLiteralNode{}
	case p.isKeyword("true"):
		p.afterOperand(true)
		p.advance()
		return &booleanLiteralNode{value: true}
	case p.isKeyword("false"):
		p.afterOperand(true)
		p.advance()
		return &booleanLiteralNode{value: false}
	case p.isKeyword("function"):
		p.advance()
		isGen := p.consumePunct("*")
		name := ""
		if p.cur.kind == tokIdentifier {
			name = p.cur.lit
			p.advance()
		}
		fn := p.parseFunctionRest(name, false, isGen)
		return &functionExprNode{fn: fn}
	case p.isIdent("async") && p.peekIsFunctionKeyword():
		p.advance()
		p.advance()
		isGen := p.consumePunct("*")
		name := ""
		if p.cur.kind == tokIdentifier {
			name = p.cur.lit
			p.advance()
		}
		fn := p.parseFunctionRest(name, true, isGen)
		return &functionExprNode{fn: fn}
	case p.isKeyword("class"):
		decl := p.parseClassTail()
		return &classExprNode{decl: decl}
	case p.cur.kind == tokPrivateIdentifier:
		name := p.cur.lit
		p.advance()
		return &identifierNode{name: name}
	case p.cur.kind == tokIdentifier || p.cur.kind == tokKeyword:
		name := p.cur.lit
		p.afterOperand(true)
		p.advance()
		return &identifierNode{name: name}
	case p.isPunct("("):
		p.advance()
		e := p.parseExpression()
		p.expectPunct(")")
		p.afterOperand(true)
		return e
	case p.isPunct("["):
		return p.parseArrayLiteral()
	case p.isPunct("{"):
		return p.parseObjectLiteral()
	default:
		p.errorf("unexpected token %q", p.cur.lit)
		tok := p.cur
		p.advance()
		return &identifierNode{name: tok.lit}
	}
}

func splitRegExpLiteral(lit string) (string, string) {
	end := len(lit) - 1
	for end > 0 && lit[end] != '/' {
		end--
	}
	return lit[1:end], lit[end+1:]
}

func (p *parser) parseTemplateLiteral() *templateLiteralNode {
	tl := &templateLiteralNode{}
	t := p.lex.scanTemplateChunk()
	p.errs = append(p.errs, p.lex.errs...)
	p.lex.errs = nil
	tl.quasisCooked = append(tl.quasisCooked, t.cooked)
	tl.quasisRaw = append(tl.quasisRaw, t.lit)
	for t.numValue == 1 { // chunk ended in "${"
		p.advance()
		expr := p.parseExpression()
		tl.exprs = append(tl.exprs, expr)
		if !p.isPunct("}") {
			p.errorf("expected '}' to close template substitution")
		}
		t = p.lex.resumeTemplate()
		p.errs = append(p.errs, p.lex.errs...)
		p.lex.errs = nil
		tl.quasisCooked = append(tl.quasisCooked, t.cooked)
		tl.quasisRaw = append(tl.quasisRaw, t.lit)
	}
	p.afterOperand(true)
	p.advance()
	return tl
}

func (p *parser) parseArrayLiteral() exprNode {
	p.expectPunct("[")
	lit := &arrayLiteralNode{}
	for !p.isPunct("]") {
		if p.isPunct(",") {
			p.advance()
			lit.elements = append(lit.elements, nil)
			continue
		}
		if p.consumePunct("...") {
			lit.elements = append(lit.elements, &spreadElementNode{arg: p.parseAssignExpr()})
		} else {
			lit.elements = append(lit.elements, p.parseAssignExpr())
		}
		if !p.consumePunct(",") {
			break
		}
	}
	p.expectPunct("]")
	p.afterOperand(true)
	return lit
}

func (p *parser) parseObjectLiteral() exprNode {
	p.expectPunct("{")
	lit := &objectLiteralNode{}
	for !p.isPunct("}") {
		lit.props = append(lit.props, p.parseObjectProperty())
		if !p.consumePunct(",") {
			break
		}
	}
	p.expectPunct("}")
	p.afterOperand(true)
	return lit
}

func (p *parser) parseObjectProperty() *objLiteralProp {
	if p.consumePunct("...") {
		return &objLiteralProp{kind: objPropSpread, value: p.parseAssignExpr()}
	}
	isAsync, isGen := false, false
	if p.isIdent("async") {
		save, savedCur := *p.lex, p.cur
		p.advance()
		if p.isPunct(":") || p.isPunct(",") || p.isPunct("}") || p.isPunct("(") {
			*p.lex, p.cur = save, savedCur
		} else {
			isAsync = true
		}
	}
	if p.consumePunct("*") {
		isGen = true
	}
	if (p.isIdent("get") || p.isIdent("set")) && !isAsync && !isGen {
		kind := p.cur.lit
		save, savedCur := *p.lex, p.cur
		p.advance()
		if p.isPunct(":") || p.isPunct(",") || p.isPunct("}") || p.isPunct("(") {
			*p.lex, p.cur = save, savedCur
		} else {
			key := p.parsePropertyKeyExpr()
			fn := p.parseFunctionRest("", false, false)
			propKind := objPropGetter
			if kind == "set" {
				propKind = objPropSetter
			}
			return &objLiteralProp{kind: propKind, key: key, value: &functionExprNode{fn: fn}}
		}
	}
	computed := p.isPunct("[")
	key := p.parsePropertyKeyExpr()
	if p.isPunct("(") {
		fn := p.parseFunctionRest("", isAsync, isGen)
		return &objLiteralProp{kind: objPropMethod, key: key, computed: computed, value: &functionExprNode{fn: fn}}
	}
	if p.consumePunct(":") {
		return &objLiteralProp{kind: objPropInit, key: key, computed: computed, value: p.parseAssignExpr()}
	}
	// shorthand { x } or { x = default } (the latter only valid when
	// reparsed as a pattern; accepted here permissively)
	id, _ := key.(*identifierNode)
	var value exprNode = id
	if p.consumePunct("=") {
		value = &assignExprNode{op: "=", target: id, value: p.parseAssignExpr()}
	}
	return &objLiteralProp{kind: objPropInit, key: key, value: value, shorthand: true}
}
