// Package weftfmt renders a linked bytecode.Unit as human-readable
// text, grounded on the teacher's core/planfmt/formatter package: a
// type-switch-driven textual walk (formatter.Format/FormatStep there,
// one case per planfmt.ExecutionNode kind) producing one line per node
// via strings.Builder, adapted here from an execution-plan tree to a
// flat bytecode.Inst stream, one line per instruction.
package weftfmt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aledsdavies/weft/bytecode"
)

// Unit renders every function in u, sorted by name for deterministic
// output (bytecode.Unit.Functions is a hash-keyed map), as a label, its
// disassembly, and a blank separator line.
func Unit(u *bytecode.Unit) string {
	fns := make([]*bytecode.LinkedFunction, 0, len(u.Functions))
	for _, fn := range u.Functions {
		fns = append(fns, fn)
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].Name < fns[j].Name })

	var b strings.Builder
	for _, fn := range fns {
		b.WriteString(Function(fn))
		b.WriteString("\n")
	}
	return b.String()
}

// Function renders one linked function: a header line naming it, then
// one "<ip>: <op> <operands>" line per instruction.
func Function(fn *bytecode.LinkedFunction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "fn %s(arity=%d, locals=%d, hash=%#x)%s:\n", fn.Name, fn.Arity, fn.Locals, fn.Hash, suffixFor(fn))
	for ip, inst := range fn.Insts {
		fmt.Fprintf(&b, "  %4d: %s\n", ip, FormatInst(inst, fn))
	}
	return b.String()
}

func suffixFor(fn *bytecode.LinkedFunction) string {
	switch {
	case fn.IsAsync:
		return " async"
	case fn.IsGen:
		return " gen"
	default:
		return ""
	}
}

// FormatInst renders a single instruction, resolving operand.A into the
// owning function's string/key tables where the opcode calls for it so
// the output is self-contained rather than requiring a side table.
func FormatInst(inst bytecode.Inst, fn *bytecode.LinkedFunction) string {
	name := inst.Op.String()
	switch inst.Op {
	case bytecode.OpConstInt:
		if inst.Str != "" {
			return fmt.Sprintf("%s %s", name, inst.Str)
		}
		return fmt.Sprintf("%s %d", name, inst.I)
	case bytecode.OpConstFloat:
		if inst.Str != "" {
			return fmt.Sprintf("%s %s", name, inst.Str)
		}
		return fmt.Sprintf("%s %g", name, inst.F)
	case bytecode.OpConstBool, bytecode.OpMakeOption, bytecode.OpMakeResult:
		return fmt.Sprintf("%s %v", name, inst.Flag)
	case bytecode.OpConstByte:
		return fmt.Sprintf("%s %d", name, inst.Byte)
	case bytecode.OpConstChar:
		return fmt.Sprintf("%s %q", name, inst.Char)
	case bytecode.OpConstString, bytecode.OpConstBytes:
		if inst.Str != "" {
			return fmt.Sprintf("%s %q", name, inst.Str)
		}
		if inst.A >= 0 && inst.A < len(fn.Strings) {
			return fmt.Sprintf("%s %q", name, fn.Strings[inst.A])
		}
		return fmt.Sprintf("%s #%d", name, inst.A)
	case bytecode.OpLoadLocal, bytecode.OpStoreLocal, bytecode.OpLoadUpvalue:
		return fmt.Sprintf("%s %d", name, inst.A)
	case bytecode.OpJump, bytecode.OpJumpIf, bytecode.OpJumpIfNot:
		return fmt.Sprintf("%s -> %d", name, inst.A)
	case bytecode.OpCall:
		if inst.Flag {
			return fmt.Sprintf("%s.inst %q argc=%d", name, inst.Str, inst.B)
		}
		return fmt.Sprintf("%s %q argc=%d", name, inst.Str, inst.B)
	case bytecode.OpCallFn:
		return fmt.Sprintf("%s argc=%d", name, inst.B)
	case bytecode.OpGetField, bytecode.OpSetField:
		return fmt.Sprintf("%s %q", name, inst.Str)
	case bytecode.OpMakeVec, bytecode.OpMakeTuple, bytecode.OpConcat:
		return fmt.Sprintf("%s %d", name, inst.A)
	case bytecode.OpMakeObject:
		return fmt.Sprintf("%s fields=%d keys=%s", name, inst.A, keySlice(fn, inst.B, inst.A))
	case bytecode.OpMakeStruct:
		return fmt.Sprintf("%s hash=%#x fields=%d%s", name, inst.Hash, inst.A, structKeys(fn, inst))
	case bytecode.OpMakeClosure:
		return fmt.Sprintf("%s hash=%#x captures=%d", name, inst.Hash, inst.B)
	case bytecode.OpAwait:
		if inst.A > 0 {
			return fmt.Sprintf("%s.select arms=%d", name, inst.A)
		}
		return name
	default:
		return name
	}
}

func keySlice(fn *bytecode.LinkedFunction, start, count int) string {
	if start < 0 || start+count > len(fn.Keys) {
		return "?"
	}
	return "[" + strings.Join(fn.Keys[start:start+count], ",") + "]"
}

func structKeys(fn *bytecode.LinkedFunction, inst bytecode.Inst) string {
	if !inst.Flag {
		return ""
	}
	return " keys=" + keySlice(fn, inst.B, inst.A)
}
