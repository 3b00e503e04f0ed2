package vm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aledsdavies/weft/bytecode"
	"github.com/aledsdavies/weft/diag"
	"github.com/aledsdavies/weft/item"
	"github.com/aledsdavies/weft/value"
)

// parseIntLiteral resolves an OpConstInt's lexical text (radix prefix,
// underscores) to its i64 value, the deferred-to-runtime half of the
// "numeric value resolution is deferred to compilation" contract:
// weft/compiler leaves integer/float literal text untouched in Inst.Str,
// so the VM is where `0x2A`/`1_000` actually become a value.Integer.
func parseIntLiteral(s string) (int64, error) {
	return strconv.ParseInt(strings.ReplaceAll(s, "_", ""), 0, 64)
}

func parseFloatLiteral(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, "_", ""), 64)
}

// constString resolves an OpConstString/OpConstBytes operand: Str holds
// an inline literal when the compiler wrote one directly (e.g. the
// "no match arm matched" panic message), otherwise A indexes the
// current frame's interned string table.
func (v *VM) constString(inst bytecode.Inst) string {
	if inst.Str != "" {
		return inst.Str
	}
	return v.curFrame().fn.Strings[inst.A]
}

// exec1 dispatches every instruction that neither suspends (Await/
// Yield/Select) nor changes the frame stack (Call/CallFn/Return); those
// live in the main run() loop in exec.go. Returning a non-nil error
// unwinds the whole Execution.
func (v *VM) exec1(inst bytecode.Inst) error {
	switch inst.Op {
	case bytecode.OpConstUnit:
		v.push(value.Unit{})
	case bytecode.OpConstBool:
		v.push(value.Bool(inst.Flag))
	case bytecode.OpConstInt:
		if inst.Str != "" {
			n, err := parseIntLiteral(inst.Str)
			if err != nil {
				return v.vmErr(diag.VmTypeMismatch, "bad integer literal %q: %s", inst.Str, err)
			}
			v.push(value.Integer(n))
		} else {
			v.push(value.Integer(inst.I))
		}
	case bytecode.OpConstFloat:
		if inst.Str != "" {
			f, err := parseFloatLiteral(inst.Str)
			if err != nil {
				return v.vmErr(diag.VmTypeMismatch, "bad float literal %q: %s", inst.Str, err)
			}
			v.push(value.Float(f))
		} else {
			v.push(value.Float(inst.F))
		}
	case bytecode.OpConstByte:
		v.push(value.Byte(inst.Byte))
	case bytecode.OpConstChar:
		v.push(value.Char(inst.Char))
	case bytecode.OpConstString:
		v.push(value.NewString(v.constString(inst)))
	case bytecode.OpConstBytes:
		v.push(value.NewBytes([]byte(v.constString(inst))))
	case bytecode.OpLoadLocal:
		v.push(v.stack[v.curFrame().base+inst.A])
	case bytecode.OpStoreLocal:
		v.stack[v.curFrame().base+inst.A] = v.pop()
	case bytecode.OpLoadUpvalue:
		// Captures are copied into leading locals at closure-construction
		// time (see OpMakeClosure), so an upvalue load is just a local
		// load relative to the same frame base.
		v.push(v.stack[v.curFrame().base+inst.A])

	case bytecode.OpPop:
		v.pop()
	case bytecode.OpDup:
		v.push(v.peek())
	case bytecode.OpSwap:
		n := len(v.stack)
		v.stack[n-1], v.stack[n-2] = v.stack[n-2], v.stack[n-1]

	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpRem:
		return v.execBinaryArith(inst.Op)
	case bytecode.OpNeg:
		return v.execNeg()
	case bytecode.OpNot:
		b, err := value.IntoBool(v.pop())
		if err != nil {
			return v.vmErr(diag.VmTypeMismatch, "%s", err)
		}
		v.push(value.Bool(!bool(b)))
	case bytecode.OpEq:
		b := v.pop()
		a := v.pop()
		v.push(value.Bool(value.StructuralEqual(a, b)))
	case bytecode.OpNeq:
		b := v.pop()
		a := v.pop()
		v.push(value.Bool(!value.StructuralEqual(a, b)))
	case bytecode.OpLt, bytecode.OpLe, bytecode.OpGt, bytecode.OpGe:
		return v.execCompare(inst.Op)
	case bytecode.OpCoalesce:
		b := v.pop()
		a := v.pop()
		if opt, ok := a.(value.Option); ok {
			if p := *opt.Cell.Peek(); p != nil {
				v.push(*p)
			} else {
				v.push(b)
			}
			return nil
		}
		v.push(a)

	case bytecode.OpGetField:
		return v.execGetField(inst.Str)
	case bytecode.OpSetField:
		return v.execSetField(inst.Str)
	case bytecode.OpGetIndex:
		return v.execGetIndex()
	case bytecode.OpSetIndex:
		return v.execSetIndex()

	case bytecode.OpMakeVec:
		v.push(value.NewVec(v.popN(inst.A)))
	case bytecode.OpMakeTuple:
		v.push(value.NewTuple(v.popN(inst.A)))
	case bytecode.OpMakeObject:
		return v.execMakeObject(inst)
	case bytecode.OpMakeOption:
		if inst.Flag {
			v.push(value.NewSome(v.pop()))
		} else {
			v.push(value.NewNone())
		}
	case bytecode.OpMakeResult:
		if inst.Flag {
			v.push(value.NewOk(v.pop()))
		} else {
			v.push(value.NewErr(v.pop()))
		}
	case bytecode.OpMakeStruct:
		return v.execMakeStruct(inst)
	case bytecode.OpMakeClosure:
		return v.execMakeClosure(inst)

	case bytecode.OpTypeHash:
		v.push(value.Integer(int64(value.TypeOf(v.pop()))))
	case bytecode.OpOptionIsSome:
		opt, ok := v.peek().(value.Option)
		if !ok {
			return v.vmErr(diag.VmUnexpectedVariant, "expected option, got %s", v.peek().Kind())
		}
		v.push(value.Bool(*opt.Cell.Peek() != nil))
	case bytecode.OpOptionUnwrap:
		opt, ok := v.pop().(value.Option)
		if !ok {
			return v.vmErr(diag.VmUnexpectedVariant, "expected option")
		}
		p := *opt.Cell.Peek()
		if p == nil {
			return v.vmErr(diag.VmUnexpectedVariant, "unwrap of None")
		}
		v.push(*p)
	case bytecode.OpResultIsOk:
		r, ok := v.peek().(value.Result)
		if !ok {
			return v.vmErr(diag.VmUnexpectedVariant, "expected result, got %s", v.peek().Kind())
		}
		v.push(value.Bool((*r.Cell.Peek()).IsOk))
	case bytecode.OpResultUnwrap:
		r, ok := v.pop().(value.Result)
		if !ok {
			return v.vmErr(diag.VmUnexpectedVariant, "expected result")
		}
		v.push((*r.Cell.Peek()).Val)

	case bytecode.OpConcat:
		parts := v.popN(inst.A)
		var sb strings.Builder
		for _, p := range parts {
			sb.WriteString(p.String())
		}
		v.push(value.NewString(sb.String()))

	default:
		return v.vmErr(diag.VmUnexpectedValueType, "unhandled opcode %s", inst.Op)
	}
	return nil
}

func (v *VM) execNeg() error {
	switch n := v.pop().(type) {
	case value.Integer:
		v.push(value.Integer(-n))
	case value.Float:
		v.push(value.Float(-n))
	default:
		return v.vmErr(diag.VmTypeMismatch, "cannot negate %s", n.Kind())
	}
	return nil
}

func opProtocolName(op bytecode.Op) string {
	switch op {
	case bytecode.OpAdd:
		return "add"
	case bytecode.OpSub:
		return "sub"
	case bytecode.OpMul:
		return "mul"
	case bytecode.OpDiv:
		return "div"
	case bytecode.OpRem:
		return "rem"
	default:
		return ""
	}
}

// execBinaryArith handles the numeric fast paths (matching primitive
// pairs), string concatenation for `+`, and otherwise falls back to a
// protocol hook resolved the same way a receiver-dispatched instance
// call is: H_inst(type_of(a), opName) looked up against the Context.
func (v *VM) execBinaryArith(op bytecode.Op) error {
	b := v.pop()
	a := v.pop()
	if ai, ok := a.(value.Integer); ok {
		if bi, ok := b.(value.Integer); ok {
			return v.execIntArith(op, int64(ai), int64(bi))
		}
	}
	if af, ok := a.(value.Float); ok {
		if bf, ok := b.(value.Float); ok {
			return v.execFloatArith(op, float64(af), float64(bf))
		}
	}
	if op == bytecode.OpAdd {
		as, aok := asStringLike(a)
		bs, bok := asStringLike(b)
		if aok && bok {
			v.push(value.NewString(as + bs))
			return nil
		}
	}
	name := opProtocolName(op)
	res, err := v.callProtocolHook(a, name, []value.Value{a, b})
	if err != nil {
		return err
	}
	v.push(res)
	return nil
}

func asStringLike(v value.Value) (string, bool) {
	switch s := v.(type) {
	case value.StaticString:
		return s.S, true
	case value.String:
		return *s.Cell.Peek(), true
	default:
		return "", false
	}
}

func (v *VM) execIntArith(op bytecode.Op, a, b int64) error {
	switch op {
	case bytecode.OpAdd:
		r := a + b
		if (b > 0 && r < a) || (b < 0 && r > a) {
			return v.vmErr(diag.VmOverflow, "integer overflow: %d + %d", a, b)
		}
		v.push(value.Integer(r))
	case bytecode.OpSub:
		r := a - b
		if (b < 0 && r < a) || (b > 0 && r > a) {
			return v.vmErr(diag.VmOverflow, "integer overflow: %d - %d", a, b)
		}
		v.push(value.Integer(r))
	case bytecode.OpMul:
		if a != 0 && b != 0 {
			r := a * b
			if r/b != a {
				return v.vmErr(diag.VmOverflow, "integer overflow: %d * %d", a, b)
			}
			v.push(value.Integer(r))
		} else {
			v.push(value.Integer(0))
		}
	case bytecode.OpDiv:
		if b == 0 {
			return v.vmErr(diag.VmDivideByZero, "division by zero")
		}
		v.push(value.Integer(a / b))
	case bytecode.OpRem:
		if b == 0 {
			return v.vmErr(diag.VmDivideByZero, "division by zero")
		}
		v.push(value.Integer(a % b))
	}
	return nil
}

func (v *VM) execFloatArith(op bytecode.Op, a, b float64) error {
	switch op {
	case bytecode.OpAdd:
		v.push(value.Float(a + b))
	case bytecode.OpSub:
		v.push(value.Float(a - b))
	case bytecode.OpMul:
		v.push(value.Float(a * b))
	case bytecode.OpDiv:
		v.push(value.Float(a / b))
	case bytecode.OpRem:
		v.push(value.Float(mathMod(a, b)))
	}
	return nil
}

func mathMod(a, b float64) float64 {
	m := a - float64(int64(a/b))*b
	return m
}

func (v *VM) execCompare(op bytecode.Op) error {
	b := v.pop()
	a := v.pop()
	switch av := a.(type) {
	case value.Integer:
		bv, ok := b.(value.Integer)
		if !ok {
			return v.vmErr(diag.VmTypeMismatch, "cannot compare %s and %s", a.Kind(), b.Kind())
		}
		v.push(value.Bool(compareOrdered(op, int64(av), int64(bv))))
	case value.Float:
		bv, ok := b.(value.Float)
		if !ok {
			return v.vmErr(diag.VmTypeMismatch, "cannot compare %s and %s", a.Kind(), b.Kind())
		}
		v.push(value.Bool(compareOrdered(op, float64(av), float64(bv))))
	default:
		as, aok := asStringLike(a)
		bs, bok := asStringLike(b)
		if aok && bok {
			v.push(value.Bool(compareOrdered(op, as, bs)))
			return nil
		}
		return v.vmErr(diag.VmTypeMismatch, "cannot compare %s and %s", a.Kind(), b.Kind())
	}
	return nil
}

type ordered interface{ ~int64 | ~float64 | ~string }

func compareOrdered[T ordered](op bytecode.Op, a, b T) bool {
	switch op {
	case bytecode.OpLt:
		return a < b
	case bytecode.OpLe:
		return a <= b
	case bytecode.OpGt:
		return a > b
	case bytecode.OpGe:
		return a >= b
	}
	return false
}

// callProtocolHook resolves and invokes a Context instance function for
// recv's runtime type, the same H_inst lookup a Flag-set OpCall performs
// for `recv.method(...)` — used as the fallback path for binary
// operators and field/index access against host/struct values the VM
// has no built-in handling for.
func (v *VM) callProtocolHook(recv value.Value, name string, args []value.Value) (value.Value, error) {
	if name == "" {
		return nil, v.vmErr(diag.VmTypeMismatch, "no protocol hook for %s", recv.Kind())
	}
	hash := v.resolveInstFn(value.TypeOf(recv), name)
	if f, ok := v.unit.Lookup(hash); ok {
		return v.callUnitFnSync(f, args)
	}
	if hf, ok := v.ctx.Lookup(hash); ok {
		res, err := hf.Fn(args)
		if err != nil {
			return nil, v.vmErr(diag.VmPanic, "%s", err)
		}
		return res, nil
	}
	return nil, v.vmErr(diag.VmUnexpectedValueType, "no %q protocol for %s", name, recv.Kind())
}

// resolveInstFn computes H_inst(typ, name), memoizing when configured.
func (v *VM) resolveInstFn(typ item.Hash, name string) uint64 {
	if v.instFns == nil {
		return uint64(item.InstFnHash(typ, name))
	}
	key := instKey{typ: uint64(typ), name: name}
	if h, ok := v.instFns[key]; ok {
		return h
	}
	h := uint64(item.InstFnHash(typ, name))
	v.instFns[key] = h
	return h
}

func (v *VM) execGetField(name string) error {
	target := v.pop()
	switch t := target.(type) {
	case value.Object:
		m := *t.Cell.Peek()
		val, ok := m.Get(name)
		if !ok {
			return v.vmErr(diag.VmIndexOutOfBounds, "object has no field %q", name)
		}
		v.push(val)
	case value.TypedObject:
		d := *t.Cell.Peek()
		val, ok := d.Fields.Get(name)
		if !ok {
			return v.vmErr(diag.VmIndexOutOfBounds, "no field %q", name)
		}
		v.push(val)
	case value.TypedTuple:
		d := *t.Cell.Peek()
		idx, err := strconv.Atoi(name)
		if err != nil || idx < 0 || idx >= len(d.Fields) {
			return v.vmErr(diag.VmIndexOutOfBounds, "no field %q", name)
		}
		v.push(d.Fields[idx])
	default:
		res, err := v.callProtocolHook(target, "get_"+name, []value.Value{target})
		if err != nil {
			return err
		}
		v.push(res)
	}
	return nil
}

func (v *VM) execSetField(name string) error {
	val := v.pop()
	target := v.pop()
	switch t := target.(type) {
	case value.Object:
		m := *t.Cell.Peek()
		m.Set(name, val)
	case value.TypedObject:
		d := *t.Cell.Peek()
		d.Fields.Set(name, val)
	default:
		return v.vmErr(diag.VmTypeMismatch, "cannot set field %q on %s", name, target.Kind())
	}
	return nil
}

func (v *VM) execGetIndex() error {
	idx := v.pop()
	target := v.pop()
	switch t := target.(type) {
	case value.Vec:
		items := *t.Cell.Peek()
		i, err := indexOf(idx, len(items))
		if err != nil {
			return v.vmErr(diag.VmIndexOutOfBounds, "%s", err)
		}
		v.push(items[i])
	case value.Tuple:
		items := *t.Cell.Peek()
		i, err := indexOf(idx, len(items))
		if err != nil {
			return v.vmErr(diag.VmIndexOutOfBounds, "%s", err)
		}
		v.push(items[i])
	case value.TypedTuple:
		d := *t.Cell.Peek()
		i, err := indexOf(idx, len(d.Fields))
		if err != nil {
			return v.vmErr(diag.VmIndexOutOfBounds, "%s", err)
		}
		v.push(d.Fields[i])
	case value.Object:
		key, err := value.AsString(idx)
		if err != nil {
			return v.vmErr(diag.VmTypeMismatch, "object index must be a string")
		}
		m := *t.Cell.Peek()
		val, ok := m.Get(key)
		if !ok {
			return v.vmErr(diag.VmIndexOutOfBounds, "object has no key %q", key)
		}
		v.push(val)
	default:
		res, err := v.callProtocolHook(target, "index_get", []value.Value{target, idx})
		if err != nil {
			return err
		}
		v.push(res)
	}
	return nil
}

func indexOf(idx value.Value, n int) (int, error) {
	i, ok := idx.(value.Integer)
	if !ok {
		return 0, fmt.Errorf("index must be an integer, got %s", idx.Kind())
	}
	if int64(i) < 0 || int64(i) >= int64(n) {
		return 0, fmt.Errorf("index %d out of bounds (len %d)", int64(i), n)
	}
	return int(i), nil
}

func (v *VM) execSetIndex() error {
	val := v.pop()
	idx := v.pop()
	target := v.pop()
	switch t := target.(type) {
	case value.Vec:
		items := *t.Cell.Peek()
		i, err := indexOf(idx, len(items))
		if err != nil {
			return v.vmErr(diag.VmIndexOutOfBounds, "%s", err)
		}
		items[i] = val
	case value.Object:
		key, err := value.AsString(idx)
		if err != nil {
			return v.vmErr(diag.VmTypeMismatch, "object index must be a string")
		}
		m := *t.Cell.Peek()
		m.Set(key, val)
	default:
		_, err := v.callProtocolHook(target, "index_set", []value.Value{target, idx, val})
		return err
	}
	return nil
}

func (v *VM) execMakeObject(inst bytecode.Inst) error {
	fields := v.popN(inst.A)
	m := value.NewMap()
	keys := v.curFrame().fn.Keys
	for i, f := range fields {
		m.Set(keys[inst.B+i], f)
	}
	v.push(value.NewObject(m))
	return nil
}

func (v *VM) execMakeStruct(inst bytecode.Inst) error {
	fields := v.popN(inst.A)
	if !inst.Flag {
		v.push(value.NewTypedTuple(item.Hash(inst.Hash), fields))
		return nil
	}
	m := value.NewMap()
	keys := v.curFrame().fn.Keys
	for i, f := range fields {
		m.Set(keys[inst.B+i], f)
	}
	v.push(value.NewTypedObject(item.Hash(inst.Hash), m))
	return nil
}
