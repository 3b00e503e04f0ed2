// Package vm implements bytecode execution: a single-threaded stepping
// interpreter over a linked bytecode.Unit and a module.Context, grounded
// on runestick's Vm (crates/runestick/src/vm.rs: operand stack + call
// stack + instruction pointer, a `run()` stepping loop returning
// VmHalt on suspension). Coroutine control flow (async/generators) is
// modeled as an explicit state machine resumed by the embedder rather
// than platform goroutines, so every suspension point is visible at
// the Execution API rather than hidden inside a background fiber.
package vm

import (
	"fmt"

	"github.com/aledsdavies/weft/bytecode"
	"github.com/aledsdavies/weft/diag"
	"github.com/aledsdavies/weft/module"
	"github.com/aledsdavies/weft/value"
)

// Options configures a VM's embedder-tunable behavior.
type Options struct {
	// MemoizeInstanceFn caches the resolved (typeHash, name) -> hash
	// lookup for receiver-dispatched calls, avoiding recomputing
	// item.InstFnHash on every call through a monomorphic call site.
	MemoizeInstanceFn bool
	// DebugInfo attaches the failing instruction pointer to each
	// VmError, from which a renderer can look up the source span.
	DebugInfo bool
}

// frame is one call's activation record: its function, the instruction
// pointer within Insts, and the stack index its locals begin at.
type frame struct {
	fn   *bytecode.LinkedFunction
	ip   int
	base int
}

// VM is the execution state: a Unit pointer, a Context pointer, an
// operand stack, and a call-frame stack, matching §4.9's Vm layout.
type VM struct {
	unit    *bytecode.Unit
	ctx     *module.Context
	opts    Options
	stack   []value.Value
	frames  []frame
	instFns map[instKey]uint64 // memoized (typeHash,name) -> resolved hash, when Options.MemoizeInstanceFn
}

type instKey struct {
	typ  uint64
	name string
}

// New constructs a VM bound to unit and ctx. Both are treated as
// immutable and share-counted references the caller keeps owning; the
// VM never mutates either.
func New(unit *bytecode.Unit, ctx *module.Context, opts Options) *VM {
	v := &VM{unit: unit, ctx: ctx, opts: opts}
	if opts.MemoizeInstanceFn {
		v.instFns = make(map[instKey]uint64)
	}
	return v
}

func (v *VM) push(val value.Value) { v.stack = append(v.stack, val) }

func (v *VM) pop() value.Value {
	n := len(v.stack) - 1
	val := v.stack[n]
	v.stack = v.stack[:n]
	return val
}

func (v *VM) peek() value.Value { return v.stack[len(v.stack)-1] }

func (v *VM) popN(n int) []value.Value {
	start := len(v.stack) - n
	out := make([]value.Value, n)
	copy(out, v.stack[start:])
	v.stack = v.stack[:start]
	return out
}

func (v *VM) curFrame() *frame { return &v.frames[len(v.frames)-1] }

// vmErr builds a VmError, attaching the current instruction pointer
// when Options.DebugInfo is set.
func (v *VM) vmErr(kind diag.VmErrorKind, format string, args ...any) *diag.VmError {
	e := &diag.VmError{Kind: kind, Message: fmt.Sprintf(format, args...)}
	if v.opts.DebugInfo && len(v.frames) > 0 {
		return e.WithIP(v.curFrame().ip)
	}
	return e
}
