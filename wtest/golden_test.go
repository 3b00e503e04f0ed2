package wtest_test

import (
	"testing"

	"github.com/aledsdavies/weft/ast"
	"github.com/aledsdavies/weft/bytecode"
	"github.com/aledsdavies/weft/compiler"
	"github.com/aledsdavies/weft/weftfmt"
	"github.com/aledsdavies/weft/wtest"
)

func TestGoldenDiffMatchesDisassembly(t *testing.T) {
	body := &ast.BlockExpr{Tail: &ast.BinaryExpr{
		Op:    ast.OpAdd,
		Left:  &ast.IntLit{Text: "1"},
		Right: &ast.IntLit{Text: "2"},
	}}
	fn, errs, _ := compiler.CompileFunction([]string{"wtest"}, "main", 1, nil, body, false, false)
	if len(errs) != 0 {
		t.Fatalf("unexpected compile errors: %v", errs)
	}
	unit, err := bytecode.Link([]*bytecode.Function{fn}, fn.Hash)
	if err != nil {
		t.Fatalf("unexpected link error: %v", err)
	}
	linked, ok := unit.Lookup(fn.Hash)
	if !ok {
		t.Fatalf("entry function not found")
	}
	wtest.GoldenDiff(t, "add_two.disasm", weftfmt.Function(linked))
}
