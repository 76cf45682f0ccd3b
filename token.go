package tinyjs

// token.go defines the lexer's output alphabet (spec §4.4). The
// shape -- a small Kind enum plus source-location fields -- follows
// the teacher's own token representation (langlang's FormatToken /
// Range-carrying AST nodes), generalized from a PEG grammar's token
// stream to ECMAScript's fixed lexical grammar.

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdentifier
	tokPrivateIdentifier // #name
	tokKeyword
	tokNumber
	tokBigIntLiteral
	tokString
	tokTemplateString // one chunk of a template literal, cooked+raw
	tokRegExpLiteral
	tokPunct
	tokLineTerminatorSeen // not emitted as its own token; see token.precededByLineTerminator
)

// Position mirrors the teacher's `Range`/position-tracking idiom
// (langlang's pos.go), trimmed to what the compiler and error
// messages need: a byte offset plus 1-based line/column for
// diagnostics.
type Position struct {
	Offset int
	Line   int
	Column int
}

type token struct {
	kind tokenKind
	lit  string // raw source text (identifiers, punctuators, numbers-as-text)

	// cooked holds the post-escape-processing value for tokString and
	// tokTemplateString; raw (in lit) is kept alongside for tagged
	// templates, which need the unprocessed source text too (spec §4.4).
	cooked string

	numValue float64
	isBigInt bool

	// precededByLineTerminator feeds automatic semicolon insertion
	// (spec §4.4's ASI) and the restricted-production rules around
	// `return`/`throw`/`yield`/postfix `++`/`--`.
	precededByLineTerminator bool

	start, end Position
}

func (t token) String() string { return t.lit }

// keywords is the reserved-word set; context-dependent keywords
// (`yield`, `await`, `let`, `static`, `async`, `of`, `get`, `set`) are
// deliberately NOT in this table -- the parser, not the lexer, decides
// whether they're an identifier or a keyword use, since that depends
// on surrounding grammar context (spec §4.4).
var keywords = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true,
	"const": true, "continue": true, "debugger": true, "default": true,
	"delete": true, "do": true, "else": true, "export": true,
	"extends": true, "finally": true, "for": true, "function": true,
	"if": true, "import": true, "in": true, "instanceof": true,
	"new": true, "return": true, "super": true, "switch": true,
	"this": true, "throw": true, "try": true, "typeof": true, "var": true,
	"void": true, "while": true, "with": true, "null": true, "true": true,
	"false": true, "enum": true,
}

// strictReservedWords are identifiers usable as binding names in
// sloppy mode but reserved once strict mode is active (spec §4.4).
// Nothing in the lexer, scanner or parser reads this table, so strict
// code does not reject them.
var strictReservedWords = map[string]bool{
	"implements": true, "interface": true, "package": true,
	"private": true, "protected": true, "public": true,
	"yield": true, "let": true, "static": true,
}
