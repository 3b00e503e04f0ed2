package bytecode

import (
	"fmt"

	"github.com/aledsdavies/weft/span"
)

// Label is an opaque forward-reference handle returned by Assembly.NewLabel
// and resolved by Assembly.Label, mirroring the label-then-patch pattern
// compilers use to emit forward jumps: break/continue/if/match
// lowering all need to jump to code not yet emitted.
type Label int

// Assembly accumulates one function body's instructions plus its
// constant pools, grounded on rune's asm.push(Inst, span) call pattern
// (crates/rune/src/compile/expr_unary.rs) generalized to a full
// builder: every Push also records the originating span so the Unit
// keeps a debug-span table for runtime diagnostics.
type Assembly struct {
	insts  []Inst
	spans  []span.Span
	labels []int // labels[i] == -1 until resolved to an instruction offset
	// pending records, for each not-yet-resolved label, which
	// instruction indices have a placeholder jump target awaiting it.
	pending map[Label][]int

	strings []string
	strIdx  map[string]int
	keys    []string
	keyIdx  map[string]int
}

// NewAssembly returns an empty Assembly ready to receive Push calls.
func NewAssembly() *Assembly {
	return &Assembly{
		pending: make(map[Label][]int),
		strIdx:  make(map[string]int),
		keyIdx:  make(map[string]int),
	}
}

// Push appends inst at the current offset, tagged with sp for
// diagnostics, and returns that offset.
func (a *Assembly) Push(inst Inst, sp span.Span) int {
	a.insts = append(a.insts, inst)
	a.spans = append(a.spans, sp)
	return len(a.insts) - 1
}

// Len returns the number of instructions emitted so far; compilers use
// this to compute relative jump distances before labels are resolved.
func (a *Assembly) Len() int { return len(a.insts) }

// NewLabel allocates an unresolved jump target.
func (a *Assembly) NewLabel() Label {
	a.labels = append(a.labels, -1)
	return Label(len(a.labels) - 1)
}

// Here binds lbl to the instruction offset that will be emitted next,
// patching every jump already pushed against it.
func (a *Assembly) Here(lbl Label) {
	off := len(a.insts)
	a.labels[lbl] = off
	for _, idx := range a.pending[lbl] {
		a.insts[idx].A = off
	}
	delete(a.pending, lbl)
}

// PushJump emits a jump-family instruction targeting lbl. If lbl is
// already bound the target is filled in immediately; otherwise it's
// recorded in a.pending and patched when Here(lbl) runs.
func (a *Assembly) PushJump(op Op, lbl Label, sp span.Span) int {
	target := a.labels[lbl]
	idx := a.Push(Inst{Op: op, A: target}, sp)
	if target < 0 {
		a.pending[lbl] = append(a.pending[lbl], idx)
	}
	return idx
}

// StringConst interns s into the Assembly's static-string table,
// returning its index for use as an OpConstString operand.
func (a *Assembly) StringConst(s string) int {
	if i, ok := a.strIdx[s]; ok {
		return i
	}
	i := len(a.strings)
	a.strings = append(a.strings, s)
	a.strIdx[s] = i
	return i
}

// KeyConst appends an object-literal key to the key table and returns
// its index; each call takes a new slot, so consecutive calls form the
// contiguous key run an OpMakeObject/OpMakeStruct reads from operand B.
func (a *Assembly) KeyConst(k string) int {
	i := len(a.keys)
	a.keys = append(a.keys, k)
	a.keyIdx[k] = i
	return i
}

// unresolved reports every label that was referenced by PushJump but
// never bound via Here, which would otherwise silently leave a garbage
// -1 jump target in the finished instruction stream.
func (a *Assembly) unresolved() []Label {
	var out []Label
	for lbl, sites := range a.pending {
		if len(sites) > 0 {
			out = append(out, lbl)
		}
	}
	return out
}

// Function is one compiled function body plus its metadata, the unit
// produced by weft/compiler and consumed by the linker.
type Function struct {
	Name    string
	Hash    uint64
	Arity   int
	Locals  int // total local-variable slots this frame needs, arguments included
	Asm     *Assembly
	IsAsync bool
	IsGen   bool
}

// AssemblyError reports a builder-level inconsistency caught before
// linking (currently: a label referenced but never bound).
type AssemblyError struct {
	Function string
	Label    Label
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("function %q: label %d referenced but never bound", e.Function, e.Label)
}

// Validate checks f.Asm for unresolved labels.
func (f *Function) Validate() error {
	if u := f.Asm.unresolved(); len(u) > 0 {
		return &AssemblyError{Function: f.Name, Label: u[0]}
	}
	return nil
}
