package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aledsdavies/weft/value"
)

func TestTypeOfPrimitivesAreStable(t *testing.T) {
	assert.Equal(t, value.TypeOf(value.Integer(1)), value.TypeOf(value.Integer(2)))
	assert.NotEqual(t, value.TypeOf(value.Integer(1)), value.TypeOf(value.Float(1)))
	assert.NotEqual(t, value.TypeOf(value.Bool(true)), value.TypeOf(value.Integer(1)))
}

func TestStructuralEqualVec(t *testing.T) {
	a := value.NewVec([]value.Value{value.Integer(1), value.Integer(2)})
	b := value.NewVec([]value.Value{value.Integer(1), value.Integer(2)})
	assert.True(t, value.StructuralEqual(a, b))
	assert.False(t, value.Equal(a, b)) // distinct cells: not reference-equal
}

func TestOptionNoneAndSome(t *testing.T) {
	none := value.NewNone()
	some := value.NewSome(value.Integer(3))
	assert.Equal(t, "None", none.String())
	assert.Equal(t, "Some(3)", some.String())
}

func TestResultString(t *testing.T) {
	ok := value.NewOk(value.Integer(1))
	err := value.NewErr(value.NewString("x"))
	assert.Equal(t, "Ok(1)", ok.String())
	assert.Equal(t, `Err(x)`, err.String())
}

func TestIntoCoercionMismatch(t *testing.T) {
	_, err := value.IntoString(value.Integer(1))
	assert.Error(t, err)
	var expErr *value.ExpectedError
	assert.ErrorAs(t, err, &expErr)
	assert.Equal(t, "string", expErr.Expected)
}

func TestObjectInsertionOrder(t *testing.T) {
	m := value.NewMap()
	m.Set("b", value.Integer(2))
	m.Set("a", value.Integer(1))
	assert.Equal(t, []string{"b", "a"}, m.Keys())
}
