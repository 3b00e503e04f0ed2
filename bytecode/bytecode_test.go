package bytecode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/weft/bytecode"
	"github.com/aledsdavies/weft/span"
)

func TestAssemblyLabelPatchesForwardJump(t *testing.T) {
	asm := bytecode.NewAssembly()
	sp := span.Span{}
	end := asm.NewLabel()
	asm.PushJump(bytecode.OpJumpIfNot, end, sp)
	asm.Push(bytecode.Inst{Op: bytecode.OpConstInt, I: 1}, sp)
	asm.Here(end)
	asm.Push(bytecode.Inst{Op: bytecode.OpReturnUnit}, sp)

	f := &bytecode.Function{Name: "f", Hash: 1, Asm: asm}
	require.NoError(t, f.Validate())
}

func TestAssemblyUnresolvedLabelFailsValidation(t *testing.T) {
	asm := bytecode.NewAssembly()
	lbl := asm.NewLabel()
	asm.PushJump(bytecode.OpJump, lbl, span.Span{})
	f := &bytecode.Function{Name: "f", Hash: 1, Asm: asm}
	require.Error(t, f.Validate())
}

func TestLinkDetectsDuplicateHash(t *testing.T) {
	a := &bytecode.Function{Name: "a", Hash: 7, Asm: bytecode.NewAssembly()}
	b := &bytecode.Function{Name: "b", Hash: 7, Asm: bytecode.NewAssembly()}
	_, err := bytecode.Link([]*bytecode.Function{a, b}, 0)
	require.Error(t, err)
}

func TestResolveReportsMissingCallTarget(t *testing.T) {
	asm := bytecode.NewAssembly()
	asm.Push(bytecode.Inst{Op: bytecode.OpCall, Hash: 999, Str: "unknown_fn"}, span.Span{})
	f := &bytecode.Function{Name: "main", Hash: 1, Asm: asm}
	u, err := bytecode.Link([]*bytecode.Function{f}, 1)
	require.NoError(t, err)

	linkErr := bytecode.Resolve(u, nil)
	require.NotNil(t, linkErr)
	require.Len(t, linkErr.Errors, 1)
	assert.Equal(t, "unknown_fn", linkErr.Errors[0].MissingName)
}

func TestResolveSucceedsForCrossFunctionCall(t *testing.T) {
	callerAsm := bytecode.NewAssembly()
	callerAsm.Push(bytecode.Inst{Op: bytecode.OpCall, Hash: 2, Str: "callee"}, span.Span{})
	caller := &bytecode.Function{Name: "caller", Hash: 1, Asm: callerAsm}
	callee := &bytecode.Function{Name: "callee", Hash: 2, Asm: bytecode.NewAssembly()}

	u, err := bytecode.Link([]*bytecode.Function{caller, callee}, 1)
	require.NoError(t, err)
	assert.Nil(t, bytecode.Resolve(u, nil))
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	asm := bytecode.NewAssembly()
	asm.Push(bytecode.Inst{Op: bytecode.OpConstInt, I: 42}, span.Span{Start: 0, End: 2})
	f := &bytecode.Function{Name: "main", Hash: 1, Arity: 0, Asm: asm}
	u, err := bytecode.Link([]*bytecode.Function{f}, 1)
	require.NoError(t, err)

	data, err := bytecode.Marshal(u)
	require.NoError(t, err)

	back, err := bytecode.Unmarshal(data)
	require.NoError(t, err)
	fn, ok := back.Lookup(1)
	require.True(t, ok)
	require.Len(t, fn.Insts, 1)
	assert.Equal(t, int64(42), fn.Insts[0].I)
}
