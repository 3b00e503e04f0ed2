package vm

import (
	"fmt"

	"github.com/aledsdavies/weft/bytecode"
	"github.com/aledsdavies/weft/diag"
	"github.com/aledsdavies/weft/item"
	"github.com/aledsdavies/weft/module"
	"github.com/aledsdavies/weft/value"
)

// iterTypeHash identifies the internal External wrapping an iterState,
// distinguishing OpIterInit's own handles from a host's into_iter
// result, which carries whatever type hash the host registered.
var iterTypeHash = item.TypeHash(item.New("vm", "Iterator"))

// iterState is resumed one element at a time by OpIterNext; the VM's
// own Vec/Tuple/Object/String handling implements it directly, and a
// host/struct type instead gets its "next" protocol hook invoked
// against whatever handle its "into_iter" hook returned (see
// execIterInit's default case).
type iterState interface {
	next() (value.Value, bool)
}

func wrapIter(it iterState) value.Value {
	return value.NewExternal(iterTypeHash, it)
}

type sliceIter struct {
	items []value.Value
	idx   int
}

func (it *sliceIter) next() (value.Value, bool) {
	if it.idx >= len(it.items) {
		return nil, false
	}
	v := it.items[it.idx]
	it.idx++
	return v, true
}

type objectIter struct {
	keys   []string
	m      *value.Map
	idx    int
}

func (it *objectIter) next() (value.Value, bool) {
	if it.idx >= len(it.keys) {
		return nil, false
	}
	k := it.keys[it.idx]
	it.idx++
	val, _ := it.m.Get(k)
	return value.NewTuple([]value.Value{value.StaticString{S: k}, val}), true
}

type stringIter struct {
	runes []rune
	idx   int
}

func (it *stringIter) next() (value.Value, bool) {
	if it.idx >= len(it.runes) {
		return nil, false
	}
	r := it.runes[it.idx]
	it.idx++
	return value.Char(r), true
}

// execIterInit pops the iterable and pushes an iterator handle. Core
// container kinds get a built-in iterState; anything else goes through
// the same type-hash-keyed protocol-hook mechanism a receiver-dispatched
// call uses, so a host or script-defined type implements iteration by
// registering "into_iter"/"next" instance functions.
func (v *VM) execIterInit() error {
	target := v.pop()
	switch t := target.(type) {
	case value.Vec:
		v.push(wrapIter(&sliceIter{items: append([]value.Value{}, (*t.Cell.Peek())...)}))
	case value.Tuple:
		v.push(wrapIter(&sliceIter{items: append([]value.Value{}, (*t.Cell.Peek())...)}))
	case value.Object:
		m := *t.Cell.Peek()
		v.push(wrapIter(&objectIter{keys: m.Keys(), m: m}))
	case value.StaticString:
		v.push(wrapIter(&stringIter{runes: []rune(t.S)}))
	case value.String:
		v.push(wrapIter(&stringIter{runes: []rune(*t.Cell.Peek())}))
	default:
		res, err := v.callProtocolHook(target, "into_iter", []value.Value{target})
		if err != nil {
			return err
		}
		v.push(res)
	}
	return nil
}

// execIterNext peeks the iterator handle (left on the stack for the
// next OpIterNext) and pushes Option<Value>.
func (v *VM) execIterNext() error {
	handle := v.peek()
	if ext, ok := handle.(value.External); ok {
		d := *ext.Cell.Peek()
		if d.TypeID == iterTypeHash {
			if it, ok := d.Data.(iterState); ok {
				val, more := it.next()
				if !more {
					v.push(value.NewNone())
					return nil
				}
				v.push(value.NewSome(val))
				return nil
			}
		}
	}
	res, err := v.callProtocolHook(handle, "next", []value.Value{handle})
	if err != nil {
		return err
	}
	if _, ok := res.(value.Option); !ok {
		return v.vmErr(diag.VmUnexpectedValueType, "host \"next\" hook must return an option")
	}
	v.push(res)
	return nil
}

// --- async functions: a called async fn runs in its own child VM,
// driven by Poll rather than executed inline on the caller's frame. ---

type vmFuture struct {
	sub      *VM
	callErr  error
}

func newVMFuture(unit *bytecode.Unit, ctx *module.Context, opts Options, fn *bytecode.LinkedFunction, args []value.Value) *vmFuture {
	sub := New(unit, ctx, opts)
	err := sub.Call(fn, args)
	return &vmFuture{sub: sub, callErr: err}
}

// Poll advances the wrapped VM one suspension at a time: a nested
// Await/Select is itself resolved by busy-polling its inner future(s)
// before resuming sub.run(), so only the OUTER Future's readiness is
// ever visible to the caller — an async fn awaiting another async fn
// doesn't need any special-casing here.
func (f *vmFuture) Poll() (value.Value, bool, error) {
	if f.callErr != nil {
		return nil, false, f.callErr
	}
	halt, err := f.sub.run()
	for {
		if err != nil {
			return nil, false, err
		}
		switch halt.Kind {
		case HaltCompleted:
			return halt.Value, true, nil
		case HaltAwait:
			val, perr := pollUntilReady(halt.Future)
			if perr != nil {
				return nil, false, perr
			}
			f.sub.push(val)
		case HaltSelect:
			val, idx, perr := pollSelect(halt.Futures)
			if perr != nil {
				return nil, false, perr
			}
			f.sub.push(val)
			f.sub.push(value.Integer(int64(idx)))
		case HaltYield:
			return nil, false, fmt.Errorf("yield inside an async function body")
		}
		halt, err = f.sub.run()
	}
}

// --- generators: Resume drives the child VM to its next yield (or
// completion), pushing the caller-supplied value back in as the
// previous yield-expression's result on every resumption after the
// first. ---

type vmGenerator struct {
	sub     *VM
	started bool
	callErr error
}

func newVMGenerator(unit *bytecode.Unit, ctx *module.Context, opts Options, fn *bytecode.LinkedFunction, args []value.Value) *vmGenerator {
	sub := New(unit, ctx, opts)
	err := sub.Call(fn, args)
	return &vmGenerator{sub: sub, callErr: err}
}

func (g *vmGenerator) Resume(input value.Value) (value.Value, bool, error) {
	if g.callErr != nil {
		return nil, false, g.callErr
	}
	if g.started {
		g.sub.push(input)
	}
	g.started = true
	halt, err := g.sub.run()
	if err != nil {
		return nil, false, err
	}
	switch halt.Kind {
	case HaltCompleted:
		return halt.Value, true, nil
	case HaltYield:
		return halt.Value, false, nil
	default:
		return nil, false, fmt.Errorf("await is not permitted inside a generator body")
	}
}
