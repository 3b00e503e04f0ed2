package wtest_test

import (
	"testing"

	"github.com/aledsdavies/weft/wtest"
)

func TestRunEvaluatesArithmetic(t *testing.T) {
	result := wtest.Run(t, "fn main() { 1 + 2 }", nil, nil)
	wtest.Assert(t, result, wtest.IsInt(3))
}

func TestRunEvaluatesString(t *testing.T) {
	result := wtest.Run(t, `fn main() { "hi" }`, nil, nil)
	wtest.Assert(t, result, wtest.IsString("hi"))
}

func TestRunErrFailsOnRuntimePanic(t *testing.T) {
	err := wtest.RunErr(t, "fn main() { let (a, b) = [1]; a }", nil, nil)
	if err == nil {
		t.Fatal("expected a runtime error for a tuple-arity mismatch")
	}
}

func TestHarnessRunsMultipleCasesAndReportsFailures(t *testing.T) {
	h := wtest.NewHarness(t)
	h.Add(wtest.Case{Name: "add", Source: "fn main() { 2 + 2 }", Want: []wtest.ValuePattern{wtest.IsInt(4)}})
	h.Add(wtest.Case{Name: "bool", Source: "fn main() { true }", Want: []wtest.ValuePattern{wtest.IsBool(true)}})
	report := h.Run()
	if report.Total != 2 || report.Passed != 2 {
		t.Fatalf("expected 2/2 passing, got %+v", report)
	}
}
