package module_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/weft/module"
	"github.com/aledsdavies/weft/value"
)

func TestInstallRegistersFreeFunction(t *testing.T) {
	m := module.New("mymodule")
	m.Function("divide_by_three", 1, func(args []value.Value) (value.Value, error) {
		n := int64(args[0].(value.Integer))
		return value.Integer(n / 3), nil
	})

	ctx := module.NewContext()
	require.NoError(t, ctx.Install(m))
	require.Contains(t, ctx.Names(), "divide_by_three")
}

func TestInstallSameNameUnderDifferentPathsDoesNotConflict(t *testing.T) {
	a := module.New("a").Function("f", 0, func(args []value.Value) (value.Value, error) { return value.Unit{}, nil })
	b := module.New("b")
	b.Function("f", 0, func(args []value.Value) (value.Value, error) { return value.Unit{}, nil })

	ctx := module.NewContext()
	require.NoError(t, ctx.Install(a))
	// b registers a function under a different module path but if the
	// name happens to hash-collide across paths it would conflict; here
	// it won't, so this just exercises the independent-namespace path.
	require.NoError(t, ctx.Install(b))
}

func TestInstallSameModuleTwiceFails(t *testing.T) {
	m := module.New("dup")
	ctx := module.NewContext()
	require.NoError(t, ctx.Install(m))
	err := ctx.Install(m)
	require.Error(t, err)
}

func TestInstallInstFnModuleListsOneName(t *testing.T) {
	m := module.New("geo")
	ty := m.Type("Point", nil)
	m.InstFn(ty, "length", 1, func(args []value.Value) (value.Value, error) {
		return value.Float(0), nil
	})
	ctx := module.NewContext()
	require.NoError(t, ctx.Install(m))
	assert.Len(t, ctx.Names(), 1)
}

func TestCapabilityGateRejectsUnmetRequirement(t *testing.T) {
	m := module.New("advanced").RequireCapability(">=2.0.0")
	ctx := module.NewContext()
	err := ctx.Install(m)
	require.Error(t, err)
}

func TestCapabilityGateAcceptsDeclaredVersion(t *testing.T) {
	m := module.New("advanced").RequireCapability(">=1.0.0")
	ctx := module.NewContext()
	ctx.DeclareCapability("advanced", "v1.2.0")
	require.NoError(t, ctx.Install(m))
}

func TestNamesListsInstalledFunction(t *testing.T) {
	m := module.New("strlib")
	m.Function("upper", 1, func(args []value.Value) (value.Value, error) {
		return value.NewString("X"), nil
	})
	ctx := module.NewContext()
	require.NoError(t, ctx.Install(m))

	var found bool
	for _, name := range ctx.Names() {
		if name == "upper" {
			found = true
		}
	}
	assert.True(t, found)
}
