package hashmod_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/weft/item"
	"github.com/aledsdavies/weft/module"
	stdhash "github.com/aledsdavies/weft/stdlib/hashmod"
	"github.com/aledsdavies/weft/value"
)

func TestBlake2bAndSha3AreDeterministic(t *testing.T) {
	ctx := module.NewContext()
	require.NoError(t, ctx.Install(stdhash.Module()))

	for _, name := range []string{"blake2b", "sha3"} {
		hash := uint64(item.FnHash(item.New("hash", name)))
		hf, ok := ctx.Lookup(hash)
		require.True(t, ok)

		a, err := hf.Fn([]value.Value{value.StaticString{S: "weft"}})
		require.NoError(t, err)
		b, err := hf.Fn([]value.Value{value.StaticString{S: "weft"}})
		require.NoError(t, err)
		assert.Equal(t, a, b, "%s must be deterministic", name)

		bs, err := value.IntoBytes(a)
		require.NoError(t, err)
		assert.Equal(t, 32, len(*bs.Cell.Peek()))
	}
}
