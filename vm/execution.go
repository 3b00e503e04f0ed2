package vm

import (
	"github.com/aledsdavies/weft/bytecode"
	"github.com/aledsdavies/weft/module"
	"github.com/aledsdavies/weft/value"
)

// Execution wraps a VM for an embedder that just wants a result, not
// the individual suspension points — it drives run() in a loop,
// busy-polling any Await/Select it encounters, the same strategy
// callUnitFnSync uses for protocol-hook dispatch. Embedders that care
// about cooperative scheduling across many Executions should drive
// VM.run() themselves instead.
type Execution struct {
	vm *VM
}

// NewExecution links a fresh VM to run fnHash (looked up in unit) with
// args and returns the not-yet-stepped Execution.
func NewExecution(unit *bytecode.Unit, ctx *module.Context, opts Options, fnHash uint64, args []value.Value) (*Execution, error) {
	fn, ok := unit.Lookup(fnHash)
	if !ok {
		return nil, &lookupError{fnHash}
	}
	v := New(unit, ctx, opts)
	if err := v.Call(fn, args); err != nil {
		return nil, err
	}
	return &Execution{vm: v}, nil
}

type lookupError struct{ hash uint64 }

func (e *lookupError) Error() string { return "vm: no function linked for the given hash" }

// Complete drives the Execution to HaltCompleted, returning its result.
func (e *Execution) Complete() (value.Value, error) {
	return driveToCompletion(e.vm)
}

// Step runs until the next suspension point or completion, leaving
// Await/Select/Yield halts for the caller to resolve and resume itself
// (e.g. a real event loop rather than busy-polling).
func (e *Execution) Step() (*Halt, error) {
	return e.vm.run()
}

// Resume pushes a resolved value back onto the stack and continues
// after a Step() that returned HaltAwait or HaltYield.
func (e *Execution) Resume(val value.Value) {
	e.vm.push(val)
}

// ResumeSelect pushes a select winner's (value, index) pair back onto
// the stack and continues after a Step() that returned HaltSelect.
func (e *Execution) ResumeSelect(val value.Value, idx int) {
	e.vm.push(val)
	e.vm.push(value.Integer(int64(idx)))
}
