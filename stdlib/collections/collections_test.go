package collections_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stdcollections "github.com/aledsdavies/weft/stdlib/collections"
	"github.com/aledsdavies/weft/item"
	"github.com/aledsdavies/weft/module"
	"github.com/aledsdavies/weft/value"
)

func call(t *testing.T, ctx *module.Context, name string, args ...value.Value) value.Value {
	t.Helper()
	hash := uint64(item.FnHash(item.New("collections", name)))
	hf, ok := ctx.Lookup(hash)
	require.True(t, ok, "function %q not installed", name)
	result, err := hf.Fn(args)
	require.NoError(t, err)
	return result
}

func TestLenOverVecAndObject(t *testing.T) {
	ctx := module.NewContext()
	require.NoError(t, ctx.Install(stdcollections.Module()))

	v := value.NewVec([]value.Value{value.Integer(1), value.Integer(2)})
	assert.Equal(t, value.Integer(2), call(t, ctx, "len", v))

	m := value.NewMap()
	m.Set("a", value.Integer(1))
	o := value.NewObject(m)
	assert.Equal(t, value.Integer(1), call(t, ctx, "len", o))
}

func TestPushAppendsInPlace(t *testing.T) {
	ctx := module.NewContext()
	require.NoError(t, ctx.Install(stdcollections.Module()))

	v := value.NewVec([]value.Value{value.Integer(1)})
	call(t, ctx, "push", v, value.Integer(2))
	assert.Equal(t, []value.Value{value.Integer(1), value.Integer(2)}, *v.Cell.Peek())
}

func TestKeysListsObjectFields(t *testing.T) {
	ctx := module.NewContext()
	require.NoError(t, ctx.Install(stdcollections.Module()))

	m := value.NewMap()
	m.Set("a", value.Integer(1))
	m.Set("b", value.Integer(2))
	keys := call(t, ctx, "keys", value.NewObject(m))
	vec, err := value.IntoVec(keys)
	require.NoError(t, err)
	assert.Len(t, *vec.Cell.Peek(), 2)
}
