package jsonmod_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/weft/item"
	stdjson "github.com/aledsdavies/weft/stdlib/jsonmod"
	"github.com/aledsdavies/weft/module"
	"github.com/aledsdavies/weft/value"
)

func lookup(t *testing.T, ctx *module.Context, name string) *module.HostFunction {
	t.Helper()
	hash := uint64(item.FnHash(item.New("json", name)))
	hf, ok := ctx.Lookup(hash)
	require.True(t, ok, "function %q not installed", name)
	return hf
}

func TestFromStrDecodesObject(t *testing.T) {
	ctx := module.NewContext()
	require.NoError(t, ctx.Install(stdjson.Module()))

	result, err := lookup(t, ctx, "from_str").Fn([]value.Value{value.StaticString{S: `{"a":1,"b":[1,2,3]}`}})
	require.NoError(t, err)

	o, err := value.IntoObject(result)
	require.NoError(t, err)
	m := *o.Cell.Peek()
	a, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, value.Float(1), a)
}

func TestToStrRoundTripsThroughFromStr(t *testing.T) {
	ctx := module.NewContext()
	require.NoError(t, ctx.Install(stdjson.Module()))

	decoded, err := lookup(t, ctx, "from_str").Fn([]value.Value{value.StaticString{S: `{"x":"y"}`}})
	require.NoError(t, err)

	encoded, err := lookup(t, ctx, "to_str").Fn([]value.Value{decoded})
	require.NoError(t, err)
	s, err := value.AsString(encoded)
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":"y"}`, s)
}

func TestFromStrValidatedRejectsSchemaViolation(t *testing.T) {
	ctx := module.NewContext()
	require.NoError(t, ctx.Install(stdjson.Module()))

	schema := `{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`
	_, err := lookup(t, ctx, "from_str_validated").Fn([]value.Value{
		value.StaticString{S: schema},
		value.StaticString{S: `{"age":1}`},
	})
	assert.Error(t, err)

	result, err := lookup(t, ctx, "from_str_validated").Fn([]value.Value{
		value.StaticString{S: schema},
		value.StaticString{S: `{"name":"ok"}`},
	})
	require.NoError(t, err)
	assert.IsType(t, value.Object{}, result)
}
