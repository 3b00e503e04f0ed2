// Package httpmod is the optional HTTP host module: OUT of scope as a
// feature (no component in this runtime performs network IO on its
// own), but its SHAPE — a Module with an async function returning a
// Future — is grounded on original_source's runestick-http crate and
// exercises the async-function registration path end to end. A host
// that wants this module installs it explicitly; nothing in weft/vm
// or weft/compiler depends on it.
package httpmod

import (
	"io"
	"net/http"

	"github.com/aledsdavies/weft/module"
	"github.com/aledsdavies/weft/value"
)

// Module returns the "http" module, ready for Context.Install. Its one
// function, "get", performs a single net/http request and resolves
// immediately on the first Poll — a Future wrapping already-completed
// work, the simplest faithful implementation of the async-function
// contract without inventing a fake non-blocking transport.
func Module() *module.Module {
	return module.New("http").
		AsyncFunction("get", 1, func(args []value.Value) (value.Value, error) {
			url, err := value.AsString(args[0])
			if err != nil {
				return nil, err
			}
			return value.NewFuture(&getFuture{url: url}), nil
		})
}

type getFuture struct {
	url string
}

func (f *getFuture) Poll() (value.Value, bool, error) {
	resp, err := http.Get(f.url)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}
	m := value.NewMap()
	m.Set("status", value.Integer(int64(resp.StatusCode)))
	m.Set("body", value.NewString(string(body)))
	return value.NewObject(m), true, nil
}
