package strings_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/weft/item"
	"github.com/aledsdavies/weft/module"
	stdstrings "github.com/aledsdavies/weft/stdlib/strings"
	"github.com/aledsdavies/weft/value"
)

func call(t *testing.T, ctx *module.Context, name string, args ...value.Value) value.Value {
	t.Helper()
	hash := uint64(item.FnHash(item.New("str", name)))
	hf, ok := ctx.Lookup(hash)
	require.True(t, ok, "function %q not installed", name)
	result, err := hf.Fn(args)
	require.NoError(t, err)
	return result
}

func TestUpperLowerTrim(t *testing.T) {
	ctx := module.NewContext()
	require.NoError(t, ctx.Install(stdstrings.Module()))

	assert.Equal(t, "HELLO", call(t, ctx, "upper", value.StaticString{S: "hello"}).String())
	assert.Equal(t, "hello", call(t, ctx, "lower", value.StaticString{S: "HELLO"}).String())
	assert.Equal(t, "hi", call(t, ctx, "trim", value.StaticString{S: "  hi  "}).String())
}

func TestContainsAndSplit(t *testing.T) {
	ctx := module.NewContext()
	require.NoError(t, ctx.Install(stdstrings.Module()))

	contains := call(t, ctx, "contains", value.StaticString{S: "hello"}, value.StaticString{S: "ell"})
	assert.Equal(t, value.Bool(true), contains)

	split := call(t, ctx, "split", value.StaticString{S: "a,b,c"}, value.StaticString{S: ","})
	vec, err := value.IntoVec(split)
	require.NoError(t, err)
	assert.Len(t, *vec.Cell.Peek(), 3)
}
