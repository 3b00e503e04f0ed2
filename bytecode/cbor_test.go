package bytecode_test

import (
	"testing"

	fxcbor "github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/weft/bytecode"
	"github.com/aledsdavies/weft/span"
)

func sampleUnit(t *testing.T) *bytecode.Unit {
	t.Helper()
	asm := bytecode.NewAssembly()
	sp := span.Span{Start: 0, End: 1}
	asm.Push(bytecode.Inst{Op: bytecode.OpConstInt, Str: "42"}, sp)
	asm.Push(bytecode.Inst{Op: bytecode.OpReturn}, sp)
	f := &bytecode.Function{Name: "main", Hash: 9, Arity: 0, Asm: asm}
	require.NoError(t, f.Validate())
	unit, err := bytecode.Link([]*bytecode.Function{f}, f.Hash)
	require.NoError(t, err)
	return unit
}

func TestMarshalUnmarshalRoundTrips(t *testing.T) {
	unit := sampleUnit(t)
	data, err := bytecode.Marshal(unit)
	require.NoError(t, err)

	decoded, err := bytecode.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, unit.EntryHash, decoded.EntryHash)

	fn, ok := decoded.Lookup(9)
	require.True(t, ok)
	assert.Equal(t, "main", fn.Name)
	assert.Equal(t, "42", fn.Insts[0].Str)
}

func TestUnmarshalRejectsUnknownFormatVersion(t *testing.T) {
	tampered, err := fxcbor.Marshal(struct {
		Version int `cbor:"1,keyasint"`
	}{Version: 999})
	require.NoError(t, err)

	_, err = bytecode.Unmarshal(tampered)
	assert.Error(t, err)
}
