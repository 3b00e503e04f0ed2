package uuidmod_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/weft/item"
	"github.com/aledsdavies/weft/module"
	stduuid "github.com/aledsdavies/weft/stdlib/uuidmod"
	"github.com/aledsdavies/weft/value"
)

func TestNewReturnsDistinctStrings(t *testing.T) {
	ctx := module.NewContext()
	require.NoError(t, ctx.Install(stduuid.Module()))

	hash := uint64(item.FnHash(item.New("uuid", "new")))
	hf, ok := ctx.Lookup(hash)
	require.True(t, ok)

	a, err := hf.Fn(nil)
	require.NoError(t, err)
	b, err := hf.Fn(nil)
	require.NoError(t, err)

	as, err := value.AsString(a)
	require.NoError(t, err)
	bs, err := value.AsString(b)
	require.NoError(t, err)
	assert.NotEqual(t, as, bs)
	assert.Len(t, as, 36)
}
