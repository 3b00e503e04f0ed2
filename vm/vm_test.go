package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/weft/ast"
	"github.com/aledsdavies/weft/bytecode"
	"github.com/aledsdavies/weft/compiler"
	"github.com/aledsdavies/weft/diag"
	"github.com/aledsdavies/weft/module"
	"github.com/aledsdavies/weft/value"
	"github.com/aledsdavies/weft/vm"
)

func block(exprs ...ast.Expr) *ast.BlockExpr {
	if len(exprs) == 0 {
		return &ast.BlockExpr{}
	}
	return &ast.BlockExpr{Stmts: exprs[:len(exprs)-1], Tail: exprs[len(exprs)-1]}
}

func ident(name string) *ast.Ident { return &ast.Ident{Name: name} }

func intLit(text string) *ast.IntLit { return &ast.IntLit{Text: text} }

// run compiles body as a single "main" function, links it against ctx
// (a fresh empty Context if nil), calls it with args and drives it to
// completion.
func run(t *testing.T, params []ast.Param, body *ast.BlockExpr, ctx *module.Context, args []value.Value) value.Value {
	t.Helper()
	if ctx == nil {
		ctx = module.NewContext()
	}
	fn, errs, _ := compiler.CompileFunction([]string{"main"}, "main", 1, params, body, false, false)
	require.Empty(t, errs)
	require.NoError(t, fn.Validate())
	unit, err := bytecode.Link([]*bytecode.Function{fn}, fn.Hash)
	require.NoError(t, err)
	require.Nil(t, bytecode.Resolve(unit, ctx))

	exec, err := vm.NewExecution(unit, ctx, vm.Options{}, fn.Hash, args)
	require.NoError(t, err)
	result, err := exec.Complete()
	require.NoError(t, err)
	return result
}

func TestAddsParamToConstant(t *testing.T) {
	body := block(&ast.BinaryExpr{Op: ast.OpAdd, Left: ident("n"), Right: intLit("10")})
	result := run(t, []ast.Param{{Name: "n"}}, body, nil, []value.Value{value.Integer(33)})
	assert.Equal(t, value.Integer(43), result)
}

func TestInstanceMethodDispatchesOnRuntimeType(t *testing.T) {
	intType := value.TypeOf(value.Integer(0))
	m := module.New("math").InstFn(intType, "divide_by_three", 1, func(args []value.Value) (value.Value, error) {
		i, err := value.IntoInteger(args[0])
		if err != nil {
			return nil, err
		}
		return value.Integer(int64(i) / 3), nil
	})
	ctx := module.NewContext()
	require.NoError(t, ctx.Install(m))

	body := block(&ast.CallExpr{Callee: &ast.FieldExpr{Target: ident("n"), Name: "divide_by_three"}})
	result := run(t, []ast.Param{{Name: "n"}}, body, ctx, []value.Value{value.Integer(33)})
	assert.Equal(t, value.Integer(11), result)
}

func TestForLoopSumsVec(t *testing.T) {
	body := block(
		&ast.LetExpr{Pattern: &ast.PathPattern{Segments: []string{"v"}}, Value: &ast.VecExpr{Elems: []ast.Expr{intLit("1"), intLit("2"), intLit("3")}}},
		&ast.LetExpr{Pattern: &ast.PathPattern{Segments: []string{"s"}}, Value: intLit("0")},
		&ast.ForExpr{
			Binding: &ast.PathPattern{Segments: []string{"x"}},
			Iter:    ident("v"),
			Body: block(&ast.AssignExpr{
				Op:     ast.AssignSet,
				Target: ident("s"),
				Value:  &ast.BinaryExpr{Op: ast.OpAdd, Left: ident("s"), Right: ident("x")},
			}),
		},
		ident("s"),
	)
	result := run(t, nil, body, nil, nil)
	assert.Equal(t, value.Integer(6), result)
}

func TestMatchDestructuresObject(t *testing.T) {
	body := block(&ast.MatchExpr{
		Subject: &ast.ObjectExpr{Fields: []ast.ObjectField{
			{Key: "a", Value: intLit("1")},
			{Key: "b", Value: intLit("2")},
		}},
		Arms: []ast.MatchArm{
			{
				Pattern: &ast.ObjectPattern{Fields: []ast.ObjectPatternField{{Key: "a"}, {Key: "b"}}},
				Body:    &ast.BinaryExpr{Op: ast.OpAdd, Left: ident("a"), Right: ident("b")},
			},
		},
	})
	result := run(t, nil, body, nil, nil)
	assert.Equal(t, value.Integer(3), result)
}

// preludeContext registers Ok/Err/Some/None as ordinary host functions,
// the construction-side counterpart to ast.ResultPattern/OptionPattern
// on the matching side: the compiler lowers `Ok(1)` as a plain call,
// so a Result/Option literal needs a registered constructor to resolve
// against, same as any other free function.
func preludeContext(t *testing.T) *module.Context {
	t.Helper()
	ctx := module.NewContext()
	prelude := module.New().
		Function("Ok", 1, func(args []value.Value) (value.Value, error) { return value.NewOk(args[0]), nil }).
		Function("Err", 1, func(args []value.Value) (value.Value, error) { return value.NewErr(args[0]), nil }).
		Function("Some", 1, func(args []value.Value) (value.Value, error) { return value.NewSome(args[0]), nil }).
		Function("None", 0, func(args []value.Value) (value.Value, error) { return value.NewNone(), nil })
	require.NoError(t, ctx.Install(prelude))
	return ctx
}

func TestTryUnwrapsOk(t *testing.T) {
	ctx := preludeContext(t)
	body := block(&ast.BinaryExpr{
		Op:   ast.OpAdd,
		Left: &ast.TryExpr{Value: &ast.CallExpr{Callee: ident("Ok"), Args: []ast.Expr{intLit("1")}}},
		Right: intLit("2"),
	})
	result := run(t, nil, body, ctx, nil)
	assert.Equal(t, value.Integer(3), result)
}

func TestTryPropagatesErr(t *testing.T) {
	ctx := preludeContext(t)
	body := block(&ast.BinaryExpr{
		Op:   ast.OpAdd,
		Left: &ast.TryExpr{Value: &ast.CallExpr{Callee: ident("Err"), Args: []ast.Expr{&ast.StringLit{Value: "x"}}}},
		Right: intLit("2"),
	})
	result := run(t, nil, body, ctx, nil)
	r, ok := result.(value.Result)
	require.True(t, ok)
	d := *r.Cell.Peek()
	assert.False(t, d.IsOk)
	assert.Equal(t, "x", d.Val.String())
}

func TestTemplateLiteralConcatenatesParts(t *testing.T) {
	body := block(&ast.TemplateLit{
		Fragments: []string{"", "-", ""},
		Exprs: []ast.Expr{
			&ast.BinaryExpr{Op: ast.OpAdd, Left: intLit("1"), Right: intLit("2")},
			&ast.StringLit{Value: "k"},
		},
	})
	result := run(t, nil, body, nil, nil)
	assert.Equal(t, "3-k", result.String())
}

func TestPanicOnTupleArityMismatch(t *testing.T) {
	body := block(&ast.LetExpr{
		Pattern: &ast.TuplePattern{Elems: []ast.Pattern{
			&ast.PathPattern{Segments: []string{"a"}},
			&ast.PathPattern{Segments: []string{"b"}},
		}},
		Value: &ast.VecExpr{Elems: []ast.Expr{intLit("1")}},
	})
	fn, errs, warnings := compiler.CompileFunction([]string{"main"}, "main", 1, nil, body, false, false)
	require.Empty(t, errs)
	require.Len(t, warnings, 1)
	assert.Equal(t, diag.WarnLetPatternMightPanic, warnings[0].Kind)
	unit, err := bytecode.Link([]*bytecode.Function{fn}, fn.Hash)
	require.NoError(t, err)
	ctx := module.NewContext()
	require.Nil(t, bytecode.Resolve(unit, ctx))
	exec, err := vm.NewExecution(unit, ctx, vm.Options{}, fn.Hash, nil)
	require.NoError(t, err)
	_, rerr := exec.Complete()
	require.Error(t, rerr)
}

func TestCallToUnregisteredHostFunctionFailsResolve(t *testing.T) {
	body := block(&ast.CallExpr{Callee: ident("nonexistent_host_fn")})
	fn, errs, _ := compiler.CompileFunction([]string{"main"}, "main", 1, nil, body, false, false)
	require.Empty(t, errs)
	unit, err := bytecode.Link([]*bytecode.Function{fn}, fn.Hash)
	require.NoError(t, err)
	linkErr := bytecode.Resolve(unit, module.NewContext())
	require.NotNil(t, linkErr)
	require.Len(t, linkErr.Errors, 1)
	assert.Equal(t, "nonexistent_host_fn", linkErr.Errors[0].MissingName)
}
