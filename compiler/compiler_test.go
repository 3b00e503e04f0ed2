package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/weft/ast"
	"github.com/aledsdavies/weft/compiler"
	"github.com/aledsdavies/weft/diag"
)

func block(exprs ...ast.Expr) *ast.BlockExpr {
	if len(exprs) == 0 {
		return &ast.BlockExpr{}
	}
	return &ast.BlockExpr{Stmts: exprs[:len(exprs)-1], Tail: exprs[len(exprs)-1]}
}

func TestCompileFunctionReturnsIntLiteral(t *testing.T) {
	body := block(&ast.IntLit{Text: "42"})
	fn, errs, _ := compiler.CompileFunction([]string{"main"}, "answer", 1, nil, body, false, false)
	require.Empty(t, errs)
	require.NoError(t, fn.Validate())
	assert.Equal(t, 0, fn.Arity)
	assert.True(t, fn.Asm.Len() > 0)
}

func TestCompileLetBindingAndReturn(t *testing.T) {
	body := block(
		&ast.LetExpr{Pattern: &ast.PathPattern{Segments: []string{"x"}}, Value: &ast.IntLit{Text: "1"}},
		&ast.Ident{Name: "x"},
	)
	fn, errs, _ := compiler.CompileFunction([]string{"main"}, "f", 2, nil, body, false, false)
	require.Empty(t, errs)
	require.NoError(t, fn.Validate())
}

func TestCompileIfElseBalancesStack(t *testing.T) {
	body := block(&ast.IfExpr{
		Cond: &ast.BoolLit{Value: true},
		Then: block(&ast.IntLit{Text: "1"}),
		Else: block(&ast.IntLit{Text: "2"}),
	})
	fn, errs, _ := compiler.CompileFunction([]string{"main"}, "f", 3, nil, body, false, false)
	require.Empty(t, errs)
	require.NoError(t, fn.Validate())
}

func TestCompileWhileLoopWithBreak(t *testing.T) {
	body := block(&ast.WhileExpr{
		Cond: &ast.BoolLit{Value: true},
		Body: block(&ast.BreakExpr{}),
	})
	fn, errs, _ := compiler.CompileFunction([]string{"main"}, "f", 4, nil, body, false, false)
	require.Empty(t, errs)
	require.NoError(t, fn.Validate())
}

func TestCompileForLoopOverVec(t *testing.T) {
	body := block(&ast.ForExpr{
		Binding: &ast.PathPattern{Segments: []string{"x"}},
		Iter:    &ast.VecExpr{Elems: []ast.Expr{&ast.IntLit{Text: "1"}}},
		Body:    block(&ast.Ident{Name: "x"}),
	})
	fn, errs, _ := compiler.CompileFunction([]string{"main"}, "f", 5, nil, body, false, false)
	require.Empty(t, errs)
	require.NoError(t, fn.Validate())
}

func TestCompileMatchWithWildcardFallthrough(t *testing.T) {
	body := block(&ast.MatchExpr{
		Subject: &ast.IntLit{Text: "1"},
		Arms: []ast.MatchArm{
			{Pattern: &ast.LiteralPattern{Value: &ast.IntLit{Text: "1"}}, Body: &ast.IntLit{Text: "10"}},
			{Pattern: &ast.WildcardPattern{}, Body: &ast.IntLit{Text: "0"}},
		},
	})
	fn, errs, _ := compiler.CompileFunction([]string{"main"}, "f", 6, nil, body, false, false)
	require.Empty(t, errs)
	require.NoError(t, fn.Validate())
}

func TestCompileClosureCapturesOuterLocal(t *testing.T) {
	body := block(
		&ast.LetExpr{Pattern: &ast.PathPattern{Segments: []string{"n"}}, Value: &ast.IntLit{Text: "5"}},
		&ast.ClosureExpr{Params: nil, Body: &ast.Ident{Name: "n"}},
	)
	fn, errs, _ := compiler.CompileFunction([]string{"main"}, "f", 7, nil, body, false, false)
	require.Empty(t, errs)
	require.NoError(t, fn.Validate())
}

func TestCompileAssignToUnknownLocalReportsError(t *testing.T) {
	body := block(&ast.AssignExpr{Op: ast.AssignSet, Target: &ast.Ident{Name: "missing"}, Value: &ast.IntLit{Text: "1"}})
	_, errs, _ := compiler.CompileFunction([]string{"main"}, "f", 8, nil, body, false, false)
	require.NotEmpty(t, errs)
}

func TestCompileTemplateLiteralConcatenates(t *testing.T) {
	body := block(&ast.TemplateLit{
		Fragments: []string{"hello ", "!"},
		Exprs:     []ast.Expr{&ast.Ident{Name: "x"}},
	})
	params := []ast.Param{{Name: "x"}}
	fn, errs, _ := compiler.CompileFunction([]string{"main"}, "f", 9, params, body, false, false)
	require.Empty(t, errs)
	require.NoError(t, fn.Validate())
}

func TestCompileBreakOutsideLoopIsError(t *testing.T) {
	body := block(&ast.BreakExpr{})
	_, errs, _ := compiler.CompileFunction([]string{"main"}, "f", 10, nil, body, false, false)
	require.NotEmpty(t, errs)
}

func TestCompileAsyncGeneratorFnIsError(t *testing.T) {
	body := block(&ast.YieldExpr{Value: &ast.IntLit{Text: "1"}})
	_, errs, _ := compiler.CompileFunction([]string{"main"}, "f", 11, nil, body, true, true)
	require.NotEmpty(t, errs)
	assert.Equal(t, diag.CompileMixedAwaitYield, errs[0].Kind)
}

func TestCompileLetTuplePatternWarnsMightPanic(t *testing.T) {
	body := block(&ast.LetExpr{
		Pattern: &ast.TuplePattern{Elems: []ast.Pattern{
			&ast.PathPattern{Segments: []string{"a"}},
			&ast.PathPattern{Segments: []string{"b"}},
		}},
		Value: &ast.VecExpr{},
	})
	_, errs, warnings := compiler.CompileFunction([]string{"main"}, "f", 12, nil, body, false, false)
	require.Empty(t, errs)
	require.Len(t, warnings, 1)
	assert.Equal(t, diag.WarnLetPatternMightPanic, warnings[0].Kind)
}

func TestCompileTemplateWithoutExpansionsWarns(t *testing.T) {
	body := block(&ast.TemplateLit{Fragments: []string{"hello"}})
	_, errs, warnings := compiler.CompileFunction([]string{"main"}, "f", 13, nil, body, false, false)
	require.Empty(t, errs)
	require.Len(t, warnings, 1)
	assert.Equal(t, diag.WarnTemplateWithoutExpansions, warnings[0].Kind)
}
