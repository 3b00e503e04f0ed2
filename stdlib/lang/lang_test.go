package lang_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/weft/item"
	stdlang "github.com/aledsdavies/weft/stdlib/lang"
	"github.com/aledsdavies/weft/module"
	"github.com/aledsdavies/weft/value"
)

func TestPluralAndSingular(t *testing.T) {
	ctx := module.NewContext()
	require.NoError(t, ctx.Install(stdlang.Module()))

	pluralHash := uint64(item.FnHash(item.New("lang", "plural")))
	hf, ok := ctx.Lookup(pluralHash)
	require.True(t, ok)
	result, err := hf.Fn([]value.Value{value.StaticString{S: "cat"}})
	require.NoError(t, err)
	assert.Equal(t, "cats", result.String())

	singularHash := uint64(item.FnHash(item.New("lang", "singular")))
	hf, ok = ctx.Lookup(singularHash)
	require.True(t, ok)
	result, err = hf.Fn([]value.Value{value.StaticString{S: "cats"}})
	require.NoError(t, err)
	assert.Equal(t, "cat", result.String())
}
