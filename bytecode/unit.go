package bytecode

import "github.com/aledsdavies/weft/span"

// LinkedFunction is one Function's instructions plus constant pools,
// frozen into its final form inside a Unit. Each function keeps its
// own string/key pools rather than sharing one Unit-wide pool: it
// keeps linking a single-pass concatenation with no operand
// renumbering, at the cost of some duplicate strings across functions
// (negligible for typical script sizes).
type LinkedFunction struct {
	Name    string
	Hash    uint64
	Arity   int
	Locals  int
	IsAsync bool
	IsGen   bool

	Insts   []Inst
	Spans   []span.Span
	Strings []string
	Keys    []string
}

// Unit is a fully linked, loadable artifact: every function
// compiled from one source file (or merged from several via the module
// system's `use` resolution), addressable by item.Hash for OpCall.
type Unit struct {
	Functions map[uint64]*LinkedFunction
	// EntryHash names the function the VM starts from when Unit is run
	// as a script rather than invoked as a library (0 if none).
	EntryHash uint64
}

// Lookup returns the function registered under hash, if any.
func (u *Unit) Lookup(hash uint64) (*LinkedFunction, bool) {
	f, ok := u.Functions[hash]
	return f, ok
}
