// Package wtest is the test harness embedders use to assert against
// compiled and executed weft scripts, grounded on the teacher's
// testing/harness.go (a TestingT seam that accepts both *testing.T
// and any fatal/error/helper-shaped double) and testing/code_patterns.go
// (a small Matches/Description interface for composable assertions,
// there validating generated Go source text; here validating a
// script's resulting value.Value instead).
package wtest

import (
	"fmt"

	"github.com/aledsdavies/weft/bytecode"
	"github.com/aledsdavies/weft/compiler"
	"github.com/aledsdavies/weft/lexer"
	"github.com/aledsdavies/weft/module"
	"github.com/aledsdavies/weft/parser"
	"github.com/aledsdavies/weft/span"
	"github.com/aledsdavies/weft/value"
	"github.com/aledsdavies/weft/vm"
)

// TestingT is the minimal surface wtest needs from *testing.T, so
// helpers here work unmodified inside table-driven subtests and
// inside a Harness's own bookkeeping.
type TestingT interface {
	Fatalf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Helper()
}

// Compile lexes, parses, and compiles source (a whole program, which
// must declare `fn main`) into a linked, resolved Unit, failing t on
// any stage error. ctx supplies whatever host functions/types source
// references; pass module.NewContext() for a script with no host
// dependencies.
func Compile(t TestingT, source string, ctx *module.Context) (*bytecode.Unit, uint64) {
	t.Helper()
	src := span.New("wtest", source)
	toks, diags := lexer.Tokenize(src)
	if len(diags) > 0 {
		t.Fatalf("wtest: lex error: %s", diags[0].Message)
	}
	prog, errs := parser.ParseProgram(toks)
	if len(errs) > 0 {
		t.Fatalf("wtest: parse error: %s", errs[0].Error())
	}
	result := compiler.CompileProgram([]string{"wtest"}, prog)
	if len(result.Errors) > 0 {
		t.Fatalf("wtest: compile error: %s", result.Errors[0].Error())
	}
	if !result.HasEntry {
		t.Fatalf("wtest: source has no fn main()")
	}
	unit, err := bytecode.Link(result.Functions, result.EntryHash)
	if err != nil {
		t.Fatalf("wtest: link error: %v", err)
	}
	if linkErr := bytecode.Resolve(unit, ctx); linkErr != nil {
		t.Fatalf("wtest: resolve error: %v", linkErr)
	}
	return unit, result.EntryHash
}

// Run compiles source against ctx (module.NewContext() if nil) and
// drives main() to completion, failing t on any compile or runtime
// error and returning the produced value.
func Run(t TestingT, source string, ctx *module.Context, args []value.Value) value.Value {
	t.Helper()
	if ctx == nil {
		ctx = module.NewContext()
	}
	unit, entry := Compile(t, source, ctx)
	exec, err := vm.NewExecution(unit, ctx, vm.Options{}, entry, args)
	if err != nil {
		t.Fatalf("wtest: failed to start execution: %v", err)
	}
	result, err := exec.Complete()
	if err != nil {
		t.Fatalf("wtest: runtime error: %v", err)
	}
	return result
}

// RunErr is Run's counterpart for scripts expected to fail: it
// returns the error instead of failing t, and fails t instead if the
// script unexpectedly succeeds.
func RunErr(t TestingT, source string, ctx *module.Context, args []value.Value) error {
	t.Helper()
	if ctx == nil {
		ctx = module.NewContext()
	}
	unit, entry := Compile(t, source, ctx)
	exec, err := vm.NewExecution(unit, ctx, vm.Options{}, entry, args)
	if err != nil {
		return err
	}
	result, err := exec.Complete()
	if err == nil {
		t.Fatalf("wtest: expected runtime error, got result %s", result.String())
	}
	return err
}

// ValuePattern is a composable assertion over a value.Value, grounded
// on testing/code_patterns.go's CodePattern interface (there matching
// generated Go source text; here matching a runtime Value).
type ValuePattern interface {
	Matches(v value.Value) bool
	Description() string
}

// Assert fails t with both the pattern's description and the actual
// value if p doesn't match got.
func Assert(t TestingT, got value.Value, p ValuePattern) {
	t.Helper()
	if !p.Matches(got) {
		t.Errorf("wtest: expected %s, got %s", p.Description(), got.String())
	}
}

type intPattern struct{ want int64 }

func (p intPattern) Matches(v value.Value) bool {
	i, ok := v.(value.Integer)
	return ok && int64(i) == p.want
}
func (p intPattern) Description() string { return fmt.Sprintf("integer %d", p.want) }

// IsInt matches an Integer equal to want.
func IsInt(want int64) ValuePattern { return intPattern{want} }

type stringPattern struct{ want string }

func (p stringPattern) Matches(v value.Value) bool {
	s, err := value.AsString(v)
	return err == nil && s == p.want
}
func (p stringPattern) Description() string { return fmt.Sprintf("string %q", p.want) }

// IsString matches a String or StaticString equal to want.
func IsString(want string) ValuePattern { return stringPattern{want} }

type boolPattern struct{ want bool }

func (p boolPattern) Matches(v value.Value) bool {
	b, ok := v.(value.Bool)
	return ok && bool(b) == p.want
}
func (p boolPattern) Description() string { return fmt.Sprintf("bool %v", p.want) }

// IsBool matches a Bool equal to want.
func IsBool(want bool) ValuePattern { return boolPattern{want} }

type okPattern struct{ inner ValuePattern }

func (p okPattern) Matches(v value.Value) bool {
	r, ok := v.(value.Result)
	if !ok {
		return false
	}
	d := *r.Cell.Peek()
	return d.IsOk && (p.inner == nil || p.inner.Matches(d.Val))
}
func (p okPattern) Description() string {
	if p.inner == nil {
		return "Ok(_)"
	}
	return fmt.Sprintf("Ok(%s)", p.inner.Description())
}

// IsOk matches a Result in its Ok state, optionally requiring the
// wrapped value to match inner (pass nil to accept any Ok value).
func IsOk(inner ValuePattern) ValuePattern { return okPattern{inner} }

type errPattern struct{ inner ValuePattern }

func (p errPattern) Matches(v value.Value) bool {
	r, ok := v.(value.Result)
	if !ok {
		return false
	}
	d := *r.Cell.Peek()
	return !d.IsOk && (p.inner == nil || p.inner.Matches(d.Val))
}
func (p errPattern) Description() string {
	if p.inner == nil {
		return "Err(_)"
	}
	return fmt.Sprintf("Err(%s)", p.inner.Description())
}

// IsErr matches a Result in its Err state, optionally requiring the
// wrapped value to match inner.
func IsErr(inner ValuePattern) ValuePattern { return errPattern{inner} }
