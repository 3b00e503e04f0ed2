package vm

import (
	"fmt"

	"github.com/aledsdavies/weft/bytecode"
	"github.com/aledsdavies/weft/diag"
	"github.com/aledsdavies/weft/item"
	"github.com/aledsdavies/weft/value"
)

// HaltKind identifies why run() returned control to its caller instead
// of stepping to the next instruction.
type HaltKind int

const (
	// HaltCompleted means the entry frame returned; Halt.Value holds the
	// result.
	HaltCompleted HaltKind = iota
	// HaltAwait means an `await` expression needs its Future polled;
	// Halt.Future holds it. Resume by pushing the resolved value and
	// calling run() again.
	HaltAwait
	// HaltYield means a `yield` expression produced a value; Halt.Value
	// holds it. Resume by pushing the value handed back into the
	// generator and calling run() again.
	HaltYield
	// HaltSelect means a `select` needs all of Halt.Futures polled in
	// order; the first ready one's (value, index) is pushed back before
	// resuming, per the tie-break-by-branch-index rule.
	HaltSelect
)

// Halt is what VM.run returns at every suspension point or completion,
// externalizing all control state (Await/Yield/Select) so resuming is
// just calling run() again rather than unwinding a hidden goroutine
// stack.
type Halt struct {
	Kind    HaltKind
	Value   value.Value
	Future  value.Future
	Futures []value.Future
}

// Call prepares a VM to execute fn with args and pushes the entry
// frame; Arity must match len(args) (closures fold their captures into
// args' leading slots before calling this, see execMakeClosure/OpCallFn).
func (v *VM) Call(fn *bytecode.LinkedFunction, args []value.Value) error {
	if len(args) != fn.Arity {
		return v.vmErr(diag.VmTypeMismatch, "%s expects %d args, got %d", fn.Name, fn.Arity, len(args))
	}
	v.pushFrame(fn, args)
	return nil
}

func (v *VM) pushFrame(fn *bytecode.LinkedFunction, args []value.Value) {
	base := len(v.stack)
	for _, a := range args {
		v.push(a)
	}
	for i := len(args); i < fn.Locals; i++ {
		v.push(value.Unit{})
	}
	v.frames = append(v.frames, frame{fn: fn, ip: 0, base: base})
}

// run steps the VM until it halts: on completion, on a suspension
// point, or on error. It is the only place frame.ip advances.
func (v *VM) run() (*Halt, error) {
	for {
		fr := v.curFrame()
		if fr.ip >= len(fr.fn.Insts) {
			return nil, v.vmErr(diag.VmStackOverflow, "%s fell off the end of its instructions", fr.fn.Name)
		}
		inst := fr.fn.Insts[fr.ip]
		fr.ip++

		switch inst.Op {
		case bytecode.OpJump:
			fr.ip = inst.A
		case bytecode.OpJumpIf:
			b, err := value.IntoBool(v.pop())
			if err != nil {
				return nil, v.vmErr(diag.VmTypeMismatch, "%s", err)
			}
			if bool(b) {
				fr.ip = inst.A
			}
		case bytecode.OpJumpIfNot:
			b, err := value.IntoBool(v.pop())
			if err != nil {
				return nil, v.vmErr(diag.VmTypeMismatch, "%s", err)
			}
			if !bool(b) {
				fr.ip = inst.A
			}

		case bytecode.OpReturn:
			if halt := v.doReturn(v.pop()); halt != nil {
				return halt, nil
			}
		case bytecode.OpReturnUnit:
			if halt := v.doReturn(value.Unit{}); halt != nil {
				return halt, nil
			}

		case bytecode.OpCall:
			if err := v.execCall(inst); err != nil {
				return nil, err
			}
		case bytecode.OpCallFn:
			if err := v.execCallFn(inst); err != nil {
				return nil, err
			}

		case bytecode.OpIterInit:
			if err := v.execIterInit(); err != nil {
				return nil, err
			}
		case bytecode.OpIterNext:
			if err := v.execIterNext(); err != nil {
				return nil, err
			}

		case bytecode.OpTry:
			halt, err := v.execTry()
			if err != nil {
				return nil, err
			}
			if halt != nil {
				return halt, nil
			}
		case bytecode.OpPanic:
			msg, err := value.AsString(v.pop())
			if err != nil {
				return nil, v.vmErr(diag.VmPanic, "panic with non-string message")
			}
			return nil, v.vmErr(diag.VmPanic, "%s", msg)

		case bytecode.OpAwait:
			// A==0 is a plain `await` (one future, not select-mode); A>=1
			// is compileSelect racing that many arm futures.
			if inst.A == 0 {
				f, err := intoFuture(v.pop())
				if err != nil {
					return nil, v.vmErr(diag.VmTypeMismatch, "%s", err)
				}
				return &Halt{Kind: HaltAwait, Future: f}, nil
			}
			return &Halt{Kind: HaltSelect, Futures: v.popFuturesFor(inst.A)}, nil
		case bytecode.OpYield:
			return &Halt{Kind: HaltYield, Value: v.pop()}, nil

		default:
			if err := v.exec1(inst); err != nil {
				return nil, err
			}
		}
	}
}

// popFuturesFor pops n stack slots as Futures for select-mode OpAwait.
func (v *VM) popFuturesFor(n int) []value.Future {
	vals := v.popN(n)
	out := make([]value.Future, len(vals))
	for i, val := range vals {
		if f, ok := val.(value.Future); ok {
			out[i] = f
		}
	}
	return out
}

func intoFuture(v value.Value) (value.Future, error) {
	f, ok := v.(value.Future)
	if !ok {
		return value.Future{}, fmt.Errorf("await requires a future, got %s", v.Kind())
	}
	return f, nil
}

func (v *VM) doReturn(val value.Value) *Halt {
	fr := v.frames[len(v.frames)-1]
	v.stack = v.stack[:fr.base]
	v.frames = v.frames[:len(v.frames)-1]
	if len(v.frames) == 0 {
		return &Halt{Kind: HaltCompleted, Value: val}
	}
	v.push(val)
	return nil
}

func (v *VM) execTry() (*Halt, error) {
	popped := v.pop()
	switch rv := popped.(type) {
	case value.Result:
		d := *rv.Cell.Peek()
		if d.IsOk {
			v.push(d.Val)
			return nil, nil
		}
		return v.doReturn(popped), nil
	case value.Option:
		p := *rv.Cell.Peek()
		if p != nil {
			v.push(*p)
			return nil, nil
		}
		return v.doReturn(popped), nil
	default:
		return nil, v.vmErr(diag.VmUnexpectedVariant, "`?` requires Result or Option, got %s", popped.Kind())
	}
}

// execCall dispatches a static OpCall: receiver-dispatched (Flag) calls
// resolve H_inst(type_of(recv), name) against the runtime type of the
// first popped argument; everything else uses inst.Hash as-is, looked
// up first against the linked Unit and falling back to the host
// Context.
func (v *VM) execCall(inst bytecode.Inst) error {
	args := v.popN(inst.B)
	hash := inst.Hash
	if inst.Flag {
		if len(args) == 0 {
			return v.vmErr(diag.VmTypeMismatch, "instance call with no receiver")
		}
		hash = v.resolveInstFn(value.TypeOf(args[0]), inst.Str)
	}
	if fn, ok := v.unit.Lookup(hash); ok {
		return v.callUnit(fn, args)
	}
	if hf, ok := v.ctx.Lookup(hash); ok {
		res, err := hf.Fn(args)
		if err != nil {
			return v.vmErr(diag.VmPanic, "%s", err)
		}
		v.push(res)
		return nil
	}
	return v.vmErr(diag.VmUnexpectedValueType, "unresolved call to %q", inst.Str)
}

func (v *VM) execCallFn(inst bytecode.Inst) error {
	args := v.popN(inst.B)
	callee := v.pop()
	cv, err := closureOf(callee)
	if err != nil {
		return v.vmErr(diag.VmTypeMismatch, "%s", err)
	}
	fn, ok := v.unit.Lookup(cv.FnHash)
	if !ok {
		return v.vmErr(diag.VmUnexpectedValueType, "closure references an unlinked function")
	}
	all := make([]value.Value, 0, len(cv.Captures)+len(args))
	all = append(all, cv.Captures...)
	all = append(all, args...)
	return v.callUnit(fn, all)
}

// callUnit invokes fn: async/generator functions get wrapped rather
// than run inline, so calling one never blocks the caller's frame on
// anything but an explicit await/resume.
func (v *VM) callUnit(fn *bytecode.LinkedFunction, args []value.Value) error {
	if fn.IsGen {
		v.push(value.NewGenerator(newVMGenerator(v.unit, v.ctx, v.opts, fn, args)))
		return nil
	}
	if fn.IsAsync {
		v.push(value.NewFuture(newVMFuture(v.unit, v.ctx, v.opts, fn, args)))
		return nil
	}
	if err := v.Call(fn, args); err != nil {
		return err
	}
	return nil
}

// callUnitFnSync runs fn to completion synchronously, driving any
// nested suspension points by busy-polling — used for protocol-hook
// dispatch (binary operators, field/index fallbacks), which are never
// themselves async.
func (v *VM) callUnitFnSync(fn *bytecode.LinkedFunction, args []value.Value) (value.Value, error) {
	sub := New(v.unit, v.ctx, v.opts)
	if err := sub.Call(fn, args); err != nil {
		return nil, err
	}
	return driveToCompletion(sub)
}

// driveToCompletion synchronously resolves every suspension a VM
// produces until it halts with HaltCompleted, the same busy-poll
// strategy Execution.Complete uses at the top level — there is no real
// async I/O in this runtime, so polling a pending Future is simply
// calling Poll again until it reports ready.
func driveToCompletion(sub *VM) (value.Value, error) {
	halt, err := sub.run()
	for {
		if err != nil {
			return nil, err
		}
		switch halt.Kind {
		case HaltCompleted:
			return halt.Value, nil
		case HaltAwait:
			val, perr := pollUntilReady(halt.Future)
			if perr != nil {
				return nil, perr
			}
			sub.push(val)
		case HaltSelect:
			val, idx, perr := pollSelect(halt.Futures)
			if perr != nil {
				return nil, perr
			}
			sub.push(val)
			sub.push(value.Integer(int64(idx)))
		case HaltYield:
			return nil, fmt.Errorf("yield outside a generator")
		}
		halt, err = sub.run()
	}
}

func pollUntilReady(f value.Future) (value.Value, error) {
	body := *f.Cell.Peek()
	for {
		v, ok, err := body.Poll()
		if err != nil {
			return nil, err
		}
		if ok {
			return v, nil
		}
	}
}

// pollSelect races every future in order, honoring "ties broken by
// branch index" by always scanning from index 0 each pass.
func pollSelect(futures []value.Future) (value.Value, int, error) {
	for {
		for i, f := range futures {
			body := *f.Cell.Peek()
			v, ok, err := body.Poll()
			if err != nil {
				return nil, 0, err
			}
			if ok {
				return v, i, nil
			}
		}
	}
}

// closureTypeHash identifies External values produced by OpMakeClosure,
// distinguishing them from host-registered External types sharing the
// same representation.
var closureTypeHash = item.TypeHash(item.New("vm", "Closure"))

// ClosureValue is the runtime representation of a closure: the linked
// function it targets plus its captured locals, copied in at
// construction time (capture-by-value, per weft/compiler's
// compileClosure).
type ClosureValue struct {
	FnHash   uint64
	Captures []value.Value
}

func closureOf(v value.Value) (*ClosureValue, error) {
	ext, ok := v.(value.External)
	if !ok {
		return nil, fmt.Errorf("expected a closure, got %s", v.Kind())
	}
	d := *ext.Cell.Peek()
	cv, ok := d.Data.(*ClosureValue)
	if !ok || d.TypeID != closureTypeHash {
		return nil, fmt.Errorf("expected a closure, got %s", v.Kind())
	}
	return cv, nil
}

// execMakeClosure builds a ClosureValue from the Unit-linked function
// named by inst.Hash (the compiler's A is a compile-time-only index
// into its own c.funcs and carries no meaning at this layer), popping
// inst.B captures in the left-to-right order compileClosure pushed them.
func (v *VM) execMakeClosure(inst bytecode.Inst) error {
	if _, ok := v.unit.Lookup(inst.Hash); !ok {
		return v.vmErr(diag.VmUnexpectedValueType, "make.closure references an unlinked function")
	}
	captures := v.popN(inst.B)
	cv := &ClosureValue{FnHash: inst.Hash, Captures: captures}
	v.push(value.NewExternal(closureTypeHash, cv))
	return nil
}
