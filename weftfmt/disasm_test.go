package weftfmt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/weft/ast"
	"github.com/aledsdavies/weft/bytecode"
	"github.com/aledsdavies/weft/compiler"
	"github.com/aledsdavies/weft/weftfmt"
)

func TestFormatInstRendersArithmeticAdd(t *testing.T) {
	body := &ast.BlockExpr{Tail: &ast.BinaryExpr{
		Op:    ast.OpAdd,
		Left:  &ast.Ident{Name: "n"},
		Right: &ast.IntLit{Text: "10"},
	}}
	fn, errs, _ := compiler.CompileFunction([]string{"main"}, "main", 1, []ast.Param{{Name: "n"}}, body, false, false)
	require.Empty(t, errs)

	unit, err := bytecode.Link([]*bytecode.Function{fn}, fn.Hash)
	require.NoError(t, err)
	linked, ok := unit.Lookup(fn.Hash)
	require.True(t, ok)

	out := weftfmt.Function(linked)
	assert.Contains(t, out, "fn main(arity=1, locals=1, hash=")
	assert.Contains(t, out, "load.local 0")
	assert.Contains(t, out, "const.int 10")
	assert.Contains(t, out, "add")
	assert.Contains(t, out, "return")
}
