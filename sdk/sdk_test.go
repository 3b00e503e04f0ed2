package sdk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/weft/sdk"
	"github.com/aledsdavies/weft/value"
)

func TestWrapConvertsArgsAndReturn(t *testing.T) {
	fn := sdk.Wrap(func(a, b int64) int64 { return a + b })
	result, err := fn([]value.Value{value.Integer(2), value.Integer(3)})
	require.NoError(t, err)
	assert.Equal(t, value.Integer(5), result)
}

func TestWrapPropagatesGoError(t *testing.T) {
	boom := assert.AnError
	fn := sdk.Wrap(func(a int64) (int64, error) { return 0, boom })
	_, err := fn([]value.Value{value.Integer(1)})
	assert.ErrorIs(t, err, boom)
}

func TestWrapWrongArityErrors(t *testing.T) {
	fn := sdk.Wrap(func(a int64) int64 { return a })
	_, err := fn(nil)
	assert.Error(t, err)
}
