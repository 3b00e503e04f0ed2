package bytecode

import (
	"fmt"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/aledsdavies/weft/diag"
	"github.com/aledsdavies/weft/item"
)

// Link freezes a set of compiled Functions into a Unit, failing if two
// functions share a hash (an item-path collision the hashing scheme is
// meant to make exceedingly unlikely, but a corrupt/hand-assembled
// input could still trigger it) or if any function has an unresolved
// jump label.
func Link(funcs []*Function, entry uint64) (*Unit, error) {
	u := &Unit{Functions: make(map[uint64]*LinkedFunction, len(funcs)), EntryHash: entry}
	for _, f := range funcs {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		if _, dup := u.Functions[f.Hash]; dup {
			return nil, fmt.Errorf("bytecode: duplicate function hash %x (%s)", f.Hash, f.Name)
		}
		u.Functions[f.Hash] = &LinkedFunction{
			Name: f.Name, Hash: f.Hash, Arity: f.Arity, Locals: f.Locals,
			IsAsync: f.IsAsync, IsGen: f.IsGen,
			Insts: f.Asm.insts, Spans: f.Asm.spans,
			Strings: f.Asm.strings, Keys: f.Asm.keys,
		}
	}
	return u, nil
}

// HashNamer resolves a hash to the name it was registered under, for
// both Unit functions and host-provided Context entries; weft/module's
// Context implements this so Resolve can validate OpCall targets
// against the full, combined namespace.
type HashNamer interface {
	NameOf(hash uint64) (string, bool)
	Names() []string
}

// unitNamer adapts a Unit to HashNamer so Resolve can be called with
// just a Unit when no host Context participates (e.g. a pure-library
// compile with no host bindings).
type unitNamer struct{ u *Unit }

func (n unitNamer) NameOf(hash uint64) (string, bool) {
	f, ok := n.u.Functions[hash]
	if !ok {
		return "", false
	}
	return f.Name, true
}

func (n unitNamer) Names() []string {
	names := make([]string, 0, len(n.u.Functions))
	for _, f := range n.u.Functions {
		names = append(names, f.Name)
	}
	return names
}

// Resolve walks every OpCall in u and checks its Hash resolves either
// within u itself or against ctx (a host Context); every miss becomes a
// LinkerError with spans from every call site and a fuzzy "did you
// mean" suggestion.
func Resolve(u *Unit, ctx HashNamer) *diag.LinkError {
	if ctx == nil {
		ctx = unitNamer{u}
	}
	missing := map[uint64]*diag.LinkerError{}
	var order []uint64
	allNames := allNamesOf(u, ctx)

	for _, fn := range u.Functions {
		for i, inst := range fn.Insts {
			if inst.Op != OpCall {
				continue
			}
			if inst.Flag {
				// Receiver-dispatched instance call: the real hash depends
				// on the argument's runtime type and is resolved by the VM
				// at call time, not statically here.
				continue
			}
			if _, ok := u.Functions[inst.Hash]; ok {
				continue
			}
			if _, ok := ctx.NameOf(inst.Hash); ok {
				continue
			}
			le, seen := missing[inst.Hash]
			if !seen {
				le = &diag.LinkerError{MissingHash: item.Hash(inst.Hash)}
				if s := fuzzy.RankFindNormalizedFold(inst.Str, allNames); len(s) > 0 {
					le.Suggestion = s[0].Target
				}
				le.MissingName = inst.Str
				missing[inst.Hash] = le
				order = append(order, inst.Hash)
			}
			le.Spans = append(le.Spans, fn.Spans[i])
		}
	}
	if len(missing) == 0 {
		return nil
	}
	out := &diag.LinkError{}
	for _, h := range order {
		out.Errors = append(out.Errors, missing[h])
	}
	return out
}

func allNamesOf(u *Unit, ctx HashNamer) []string {
	names := make([]string, 0, len(u.Functions))
	for _, f := range u.Functions {
		names = append(names, f.Name)
	}
	if ctx != nil {
		names = append(names, ctx.Names()...)
	}
	return names
}
