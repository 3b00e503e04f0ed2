package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/weft/access"
)

func TestAccessSharedThenExclusiveConflicts(t *testing.T) {
	var a access.Access

	release1, err := a.Shared()
	require.NoError(t, err)
	assert.True(t, a.IsShared())

	_, err = a.Exclusive()
	assert.ErrorIs(t, err, access.ErrNotAccessibleExclusive)

	release2, err := a.Shared()
	require.NoError(t, err)

	release1()
	release2()
	assert.True(t, a.IsExclusive())
}

func TestAccessExclusiveExcludesEverything(t *testing.T) {
	var a access.Access

	release, err := a.Exclusive()
	require.NoError(t, err)

	_, err = a.Shared()
	assert.ErrorIs(t, err, access.ErrNotAccessibleShared)
	_, err = a.Exclusive()
	assert.ErrorIs(t, err, access.ErrNotAccessibleExclusive)

	release()
	assert.True(t, a.IsExclusive())
}

func TestCellBorrowConflicts(t *testing.T) {
	c := access.NewCell(42)

	mutGuard, err := c.BorrowExclusive()
	require.NoError(t, err)

	_, err = c.BorrowShared()
	assert.ErrorIs(t, err, access.ErrNotAccessibleShared)

	mutGuard.Release()

	ref, err := c.BorrowShared()
	require.NoError(t, err)
	assert.Equal(t, 42, *ref.Get())
	ref.Release()
}

func TestCellTakeRequiresSoleOwnerAndIdle(t *testing.T) {
	c := access.NewCell("hello")
	clone := c.Clone()

	_, err := c.Take()
	assert.ErrorIs(t, err, access.ErrNotOwned)

	clone.Release()
	v, err := c.Take()
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestCellReleaseInvokesOnFreeExactlyOnce(t *testing.T) {
	c := access.NewCell(1)
	calls := 0
	c.OnFree(func(*int) { calls++ })

	clone := c.Clone()
	c.Release()
	assert.Equal(t, 0, calls)
	clone.Release()
	assert.Equal(t, 1, calls)
}

func TestStrongRefHoldsItsOwnCount(t *testing.T) {
	c := access.NewCell("x")
	sr, err := c.StrongBorrowShared()
	require.NoError(t, err)
	assert.Equal(t, 2, c.StrongCount())
	sr.Release()
	assert.Equal(t, 1, c.StrongCount())
}
