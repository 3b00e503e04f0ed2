// Package token defines the lexical token set produced by weft/lexer and
// consumed by weft/parser, grounded on devcmd's pkgs/lexer/token.go
// const-enum-plus-stringer style.
package token

import (
	"fmt"

	"github.com/aledsdavies/weft/span"
)

// Kind identifies what a Token is.
type Kind int

const (
	EOF Kind = iota
	ILLEGAL

	// identifiers and labels
	IDENT // foo, Foo, _foo
	LABEL // 'name

	// literals
	INT       // 10, 0x1F, 0o17, 0b101
	FLOAT     // 1.5, 1.5e10
	CHAR      // 'a'
	BYTE      // b'a'
	STRING    // "..."
	BYTESTR   // b"..."
	TMPL_OPEN  // ` that begins a template string
	TMPL_FRAG  // a literal fragment inside a template string
	TMPL_EXPR_OPEN  // ${ inside a template string
	TMPL_EXPR_CLOSE // } closing ${ inside a template string
	TMPL_CLOSE // ` that ends a template string

	// keywords
	KW_FN
	KW_LET
	KW_IF
	KW_ELSE
	KW_WHILE
	KW_LOOP
	KW_FOR
	KW_IN
	KW_MATCH
	KW_BREAK
	KW_CONTINUE
	KW_RETURN
	KW_YIELD
	KW_AWAIT
	KW_ASYNC
	KW_SELECT
	KW_TRUE
	KW_FALSE
	KW_STRUCT
	KW_ENUM
	KW_IMPL
	KW_USE
	KW_AS
	KW_IS
	KW_NOT
	KW_AND
	KW_OR
	KW_NONE
	KW_SOME
	KW_OK
	KW_ERR

	// delimiters
	LPAREN
	RPAREN
	LBRACE
	RBRACE
	LBRACKET
	RBRACKET
	HASH_LBRACE // #{ object literal open

	// punctuation
	COMMA
	DOT
	DOTDOT
	COLON
	COLONCOLON
	SEMI
	ARROW      // ->
	FATARROW   // =>
	QUESTION   // ?
	QUESTIONQUESTION // ??
	AT
	AMP // & (reserved, unsupported borrow expr per

	// operators
	PLUS
	MINUS
	STAR
	SLASH
	PERCENT
	BANG
	EQ       // =
	EQEQ     // ==
	NEQ      // !=
	LT
	LE
	GT
	GE
	PLUSEQ
	MINUSEQ
	STAREQ
	SLASHEQ
)

var names = map[Kind]string{
	EOF: "EOF", ILLEGAL: "ILLEGAL", IDENT: "ident", LABEL: "label",
	INT: "int", FLOAT: "float", CHAR: "char", BYTE: "byte", STRING: "string",
	BYTESTR: "bytestring", TMPL_OPEN: "`", TMPL_FRAG: "template-fragment",
	TMPL_EXPR_OPEN: "${", TMPL_EXPR_CLOSE: "}", TMPL_CLOSE: "`",
	KW_FN: "fn", KW_LET: "let", KW_IF: "if", KW_ELSE: "else", KW_WHILE: "while",
	KW_LOOP: "loop", KW_FOR: "for", KW_IN: "in", KW_MATCH: "match",
	KW_BREAK: "break", KW_CONTINUE: "continue", KW_RETURN: "return",
	KW_YIELD: "yield", KW_AWAIT: "await", KW_ASYNC: "async", KW_SELECT: "select",
	KW_TRUE: "true", KW_FALSE: "false", KW_STRUCT: "struct", KW_ENUM: "enum",
	KW_IMPL: "impl", KW_USE: "use", KW_AS: "as", KW_IS: "is", KW_NOT: "not",
	KW_AND: "and", KW_OR: "or", KW_NONE: "None", KW_SOME: "Some", KW_OK: "Ok",
	KW_ERR: "Err",
	LPAREN: "(", RPAREN: ")", LBRACE: "{", RBRACE: "}", LBRACKET: "[",
	RBRACKET: "]", HASH_LBRACE: "#{",
	COMMA: ",", DOT: ".", DOTDOT: "..", COLON: ":", COLONCOLON: "::",
	SEMI: ";", ARROW: "->", FATARROW: "=>", QUESTION: "?",
	QUESTIONQUESTION: "??", AT: "@", AMP: "&",
	PLUS: "+", MINUS: "-", STAR: "*", SLASH: "/", PERCENT: "%", BANG: "!",
	EQ: "=", EQEQ: "==", NEQ: "!=", LT: "<", LE: "<=", GT: ">", GE: ">=",
	PLUSEQ: "+=", MINUSEQ: "-=", STAREQ: "*=", SLASHEQ: "/=",
}

func (k Kind) String() string {
	if n, ok := names[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// keywords maps identifier text to its keyword Kind, used by the lexer
// after scanning an identifier run.
var keywords = map[string]Kind{
	"fn": KW_FN, "let": KW_LET, "if": KW_IF, "else": KW_ELSE, "while": KW_WHILE,
	"loop": KW_LOOP, "for": KW_FOR, "in": KW_IN, "match": KW_MATCH,
	"break": KW_BREAK, "continue": KW_CONTINUE, "return": KW_RETURN,
	"yield": KW_YIELD, "await": KW_AWAIT, "async": KW_ASYNC, "select": KW_SELECT,
	"true": KW_TRUE, "false": KW_FALSE, "struct": KW_STRUCT, "enum": KW_ENUM,
	"impl": KW_IMPL, "use": KW_USE, "as": KW_AS, "is": KW_IS, "not": KW_NOT,
	"and": KW_AND, "or": KW_OR, "None": KW_NONE, "Some": KW_SOME, "Ok": KW_OK,
	"Err": KW_ERR,
}

// Lookup returns the keyword Kind for ident, or (IDENT, false) if it is a
// plain identifier.
func Lookup(ident string) (Kind, bool) {
	k, ok := keywords[ident]
	return k, ok
}

// NumberKind discriminates the lexical form of a number literal; numeric
// value resolution itself is deferred to compilation.
type NumberKind int

const (
	NumDecimal NumberKind = iota
	NumHex
	NumOctal
	NumBinary
)

// Token is {kind, span} plus enough raw text to defer literal-value
// resolution to the compiler.
type Token struct {
	Kind Kind
	Span span.Span
	Text string     // raw lexeme, exactly as it appeared in source
	Num  NumberKind // meaningful only when Kind == INT or FLOAT
}

func (t Token) String() string {
	if t.Text != "" {
		return fmt.Sprintf("%s(%q)@%s", t.Kind, t.Text, t.Span)
	}
	return fmt.Sprintf("%s@%s", t.Kind, t.Span)
}
