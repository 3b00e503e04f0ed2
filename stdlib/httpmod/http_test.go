package httpmod_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/weft/item"
	stdhttp "github.com/aledsdavies/weft/stdlib/httpmod"
	"github.com/aledsdavies/weft/module"
	"github.com/aledsdavies/weft/value"
)

func TestGetPollsToCompletionAgainstRealServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ctx := module.NewContext()
	require.NoError(t, ctx.Install(stdhttp.Module()))

	hash := uint64(item.FnHash(item.New("http", "get")))
	hf, ok := ctx.Lookup(hash)
	require.True(t, ok)
	require.True(t, hf.Async)

	fv, err := hf.Fn([]value.Value{value.StaticString{S: srv.URL}})
	require.NoError(t, err)
	future, ok := fv.(value.Future)
	require.True(t, ok)

	body := *future.Cell.Peek()
	result, done, err := body.Poll()
	require.NoError(t, err)
	require.True(t, done)

	o, err := value.IntoObject(result)
	require.NoError(t, err)
	m := *o.Cell.Peek()
	status, ok := m.Get("status")
	require.True(t, ok)
	assert.Equal(t, value.Integer(http.StatusTeapot), status)
}
