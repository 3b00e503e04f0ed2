package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/weft/lexer"
	"github.com/aledsdavies/weft/span"
	"github.com/aledsdavies/weft/token"
)

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestTokenizeFnCall(t *testing.T) {
	src := span.New("t", "fn main(n) { n + 10 }")
	toks, diags := lexer.Tokenize(src)
	require.Empty(t, diags)
	assert.Equal(t, []token.Kind{
		token.KW_FN, token.IDENT, token.LPAREN, token.IDENT, token.RPAREN,
		token.LBRACE, token.IDENT, token.PLUS, token.INT, token.RBRACE, token.EOF,
	}, kinds(toks))
}

func TestTokenizeNumberRadixes(t *testing.T) {
	src := span.New("t", "0x1F 0o17 0b101 1.5 1.5e10")
	toks, diags := lexer.Tokenize(src)
	require.Empty(t, diags)
	require.Len(t, toks, 6) // 5 numbers + EOF
	assert.Equal(t, token.NumHex, toks[0].Num)
	assert.Equal(t, token.NumOctal, toks[1].Num)
	assert.Equal(t, token.NumBinary, toks[2].Num)
	assert.Equal(t, token.FLOAT, toks[3].Kind)
	assert.Equal(t, token.FLOAT, toks[4].Kind)
}

func TestTokenizeLabelVsChar(t *testing.T) {
	src := span.New("t", "'outer 'a' b'x'")
	toks, diags := lexer.Tokenize(src)
	require.Empty(t, diags)
	assert.Equal(t, token.LABEL, toks[0].Kind)
	assert.Equal(t, token.CHAR, toks[1].Kind)
	assert.Equal(t, token.BYTE, toks[2].Kind)
}

func TestTokenizeTemplateString(t *testing.T) {
	src := span.New("t", "`${1+2}-${\"k\"}`")
	toks, diags := lexer.Tokenize(src)
	require.Empty(t, diags)
	assert.Equal(t, []token.Kind{
		token.TMPL_OPEN,
		token.TMPL_FRAG,
		token.TMPL_EXPR_OPEN, token.INT, token.PLUS, token.INT, token.TMPL_EXPR_CLOSE,
		token.TMPL_FRAG,
		token.TMPL_EXPR_OPEN, token.STRING, token.TMPL_EXPR_CLOSE,
		token.TMPL_FRAG,
		token.TMPL_CLOSE,
		token.EOF,
	}, kinds(toks))
}

func TestTokenizeTemplateWithNestedBraceInExpr(t *testing.T) {
	src := span.New("t", "`${ #{a: 1}.a }`")
	toks, diags := lexer.Tokenize(src)
	require.Empty(t, diags)
	assert.Contains(t, kinds(toks), token.HASH_LBRACE)
	assert.Contains(t, kinds(toks), token.TMPL_EXPR_CLOSE)
}

func TestUnterminatedStringReportsDiagnostic(t *testing.T) {
	src := span.New("t", `"unterminated`)
	_, diags := lexer.Tokenize(src)
	require.Len(t, diags, 1)
}
