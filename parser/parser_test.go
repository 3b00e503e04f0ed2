package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/weft/ast"
	"github.com/aledsdavies/weft/lexer"
	"github.com/aledsdavies/weft/parser"
	"github.com/aledsdavies/weft/span"
)

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	toks, lexDiags := lexer.Tokenize(span.New("t", src))
	require.Empty(t, lexDiags)
	prog, errs := parser.ParseProgram(toks)
	require.Empty(t, errs)
	return prog
}

func TestParseSimpleFn(t *testing.T) {
	prog := parse(t, "fn add(a, b) { a + b }")
	require.Len(t, prog.Decls, 1)
	fn, ok := prog.Decls[0].(*ast.FnDecl)
	require.True(t, ok)
	assert.Equal(t, "add", fn.Name)
	require.Len(t, fn.Params, 2)
	assert.Equal(t, "a", fn.Params[0].Name)
	require.NotNil(t, fn.Body.Tail)
	bin, ok := fn.Body.Tail.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpAdd, bin.Op)
}

func TestParsePrecedenceOrAndComparison(t *testing.T) {
	prog := parse(t, "fn f() { a or b and c == d }")
	fn := prog.Decls[0].(*ast.FnDecl)
	top, ok := fn.Body.Tail.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpOr, top.Op)
	right, ok := top.Right.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpAnd, right.Op)
	inner, ok := right.Right.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpEq, inner.Op)
}

func TestParseCoalesceBindsTighterThanAdd(t *testing.T) {
	prog := parse(t, "fn f() { a + b ?? c }")
	fn := prog.Decls[0].(*ast.FnDecl)
	top, ok := fn.Body.Tail.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpAdd, top.Op)
	right, ok := top.Right.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpCoalesce, right.Op)
}

func TestParseAssignmentIsRightAssociativeOnLvalue(t *testing.T) {
	prog := parse(t, "fn f() { a.x = b[0] }")
	fn := prog.Decls[0].(*ast.FnDecl)
	assign, ok := fn.Body.Tail.(*ast.AssignExpr)
	require.True(t, ok)
	assert.Equal(t, ast.AssignSet, assign.Op)
	_, ok = assign.Target.(*ast.FieldExpr)
	assert.True(t, ok)
	_, ok = assign.Value.(*ast.IndexExpr)
	assert.True(t, ok)
}

func TestParseInvalidAssignTargetReportsError(t *testing.T) {
	toks, _ := lexer.Tokenize(span.New("t", "fn f() { 1 + 2 = 3 }"))
	_, errs := parser.ParseProgram(toks)
	require.NotEmpty(t, errs)
}

func TestParseIfElseChain(t *testing.T) {
	prog := parse(t, "fn f() { if a { 1 } else if b { 2 } else { 3 } }")
	fn := prog.Decls[0].(*ast.FnDecl)
	top, ok := fn.Body.Tail.(*ast.IfExpr)
	require.True(t, ok)
	elseIf, ok := top.Else.(*ast.IfExpr)
	require.True(t, ok)
	_, ok = elseIf.Else.(*ast.BlockExpr)
	assert.True(t, ok)
}

func TestParseMatchWithEnumAndOptionPatterns(t *testing.T) {
	prog := parse(t, `fn f(x) {
		match x {
			Some(v) => v,
			None => 0,
			Color::Red => 1,
			_ => 2,
		}
	}`)
	fn := prog.Decls[0].(*ast.FnDecl)
	m, ok := fn.Body.Tail.(*ast.MatchExpr)
	require.True(t, ok)
	require.Len(t, m.Arms, 4)
	opt, ok := m.Arms[0].Pattern.(*ast.OptionPattern)
	require.True(t, ok)
	assert.True(t, opt.Some)
	_, ok = m.Arms[1].Pattern.(*ast.OptionPattern)
	assert.True(t, ok)
	path, ok := m.Arms[2].Pattern.(*ast.PathPattern)
	require.True(t, ok)
	assert.Equal(t, []string{"Color", "Red"}, path.Segments)
	_, ok = m.Arms[3].Pattern.(*ast.WildcardPattern)
	assert.True(t, ok)
}

func TestParseForLoopOverVec(t *testing.T) {
	prog := parse(t, "fn f() { for x in [1, 2, 3] { x } }")
	fn := prog.Decls[0].(*ast.FnDecl)
	forExpr, ok := fn.Body.Tail.(*ast.ForExpr)
	require.True(t, ok)
	_, ok = forExpr.Iter.(*ast.VecExpr)
	assert.True(t, ok)
}

func TestParseLabeledLoopBreak(t *testing.T) {
	prog := parse(t, "fn f() { 'outer: loop { break 'outer 1 } }")
	fn := prog.Decls[0].(*ast.FnDecl)
	loop, ok := fn.Body.Tail.(*ast.LoopExpr)
	require.True(t, ok)
	assert.Equal(t, "outer", loop.Label)
}

func TestParseStructAndEnumDecl(t *testing.T) {
	prog := parse(t, `
		struct Point { x, y }
		enum Shape {
			Circle(Point),
			Unit,
		}
	`)
	require.Len(t, prog.Decls, 2)
	st := prog.Decls[0].(*ast.StructDecl)
	assert.Equal(t, ast.StructNamed, st.Body)
	assert.Equal(t, []string{"x", "y"}, st.Fields)
	en := prog.Decls[1].(*ast.EnumDecl)
	require.Len(t, en.Variants, 2)
	assert.Equal(t, ast.StructTuple, en.Variants[0].Body)
	assert.Equal(t, ast.StructUnit, en.Variants[1].Body)
}

func TestParseSelectExpr(t *testing.T) {
	prog := parse(t, `fn f() { select { v = fut() => v } }`)
	fn := prog.Decls[0].(*ast.FnDecl)
	sel, ok := fn.Body.Tail.(*ast.SelectExpr)
	require.True(t, ok)
	require.Len(t, sel.Arms, 1)
	assert.Equal(t, "v", sel.Arms[0].Binding)
}

func TestParseTemplateLit(t *testing.T) {
	prog := parse(t, "fn f() { `a${1}b` }")
	fn := prog.Decls[0].(*ast.FnDecl)
	tmpl, ok := fn.Body.Tail.(*ast.TemplateLit)
	require.True(t, ok)
	require.Len(t, tmpl.Exprs, 1)
	assert.Equal(t, []string{"a", "b"}, tmpl.Fragments)
}
