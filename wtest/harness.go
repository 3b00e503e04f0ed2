package wtest

import (
	"fmt"
	"testing"

	"github.com/aledsdavies/weft/module"
)

// Case is one table-driven script scenario, grounded on the teacher's
// testing/extensible_harness.go TestCase (there a decorator scenario
// of params/content/patterns; here a script plus the patterns its
// result must satisfy).
type Case struct {
	Name    string
	Source  string
	Ctx     *module.Context // nil uses a fresh empty Context
	Want    []ValuePattern
	WantErr bool
}

// Report summarizes a Harness run, mirroring the teacher's TestReport
// (there: decorator name, pass/fail counts, failure detail list).
type Report struct {
	Total  int
	Passed int
	Failed []Failure
}

// Failure names which case and which pattern didn't hold.
type Failure struct {
	Case   string
	Reason string
}

// Harness runs a batch of Cases and collects a Report instead of
// failing at the first mismatch, so a single test function can
// exercise many small scripts and still report every failure.
type Harness struct {
	t     *testing.T
	cases []Case
}

// NewHarness creates a Harness bound to t.
func NewHarness(t *testing.T) *Harness {
	return &Harness{t: t}
}

// Add registers case c to run when Run is called.
func (h *Harness) Add(c Case) *Harness {
	h.cases = append(h.cases, c)
	return h
}

// Run executes every registered case as its own subtest and returns a
// summary Report; it never calls t.Fatalf itself so one case's
// failure doesn't stop the others from running.
func (h *Harness) Run() Report {
	h.t.Helper()
	report := Report{Total: len(h.cases)}
	for _, c := range h.cases {
		ok := h.t.Run(c.Name, func(t *testing.T) {
			if c.WantErr {
				RunErr(t, c.Source, ctxOrDefault(c.Ctx), nil)
				return
			}
			result := Run(t, c.Source, ctxOrDefault(c.Ctx), nil)
			for _, p := range c.Want {
				Assert(t, result, p)
			}
		})
		if ok {
			report.Passed++
		} else {
			report.Failed = append(report.Failed, Failure{Case: c.Name, Reason: fmt.Sprintf("case %q failed", c.Name)})
		}
	}
	return report
}

func ctxOrDefault(ctx *module.Context) *module.Context {
	if ctx == nil {
		return module.NewContext()
	}
	return ctx
}
