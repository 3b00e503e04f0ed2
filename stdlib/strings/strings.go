// Package strings is a free-function host module over Go's strings
// package: "str::upper"/"str::lower"/"str::trim"/"str::split"/
// "str::contains". No pack dependency covers ad hoc string
// transforms better than the standard library already does — this is
// the DESIGN.md-documented standard-library exception, not an
// oversight.
package strings

import (
	gostrings "strings"

	"github.com/aledsdavies/weft/module"
	"github.com/aledsdavies/weft/value"
)

// Module returns the "str" module, ready for Context.Install.
func Module() *module.Module {
	return module.New("str").
		Function("upper", 1, unary(gostrings.ToUpper)).
		Function("lower", 1, unary(gostrings.ToLower)).
		Function("trim", 1, unary(gostrings.TrimSpace)).
		Function("contains", 2, func(args []value.Value) (value.Value, error) {
			s, sep, err := pair(args)
			if err != nil {
				return nil, err
			}
			return value.Bool(gostrings.Contains(s, sep)), nil
		}).
		Function("split", 2, func(args []value.Value) (value.Value, error) {
			s, sep, err := pair(args)
			if err != nil {
				return nil, err
			}
			parts := gostrings.Split(s, sep)
			out := make([]value.Value, len(parts))
			for i, p := range parts {
				out[i] = value.StaticString{S: p}
			}
			return value.NewVec(out), nil
		})
}

func unary(fn func(string) string) module.HostFunc {
	return func(args []value.Value) (value.Value, error) {
		s, err := value.AsString(args[0])
		if err != nil {
			return nil, err
		}
		return value.StaticString{S: fn(s)}, nil
	}
}

func pair(args []value.Value) (string, string, error) {
	a, err := value.AsString(args[0])
	if err != nil {
		return "", "", err
	}
	b, err := value.AsString(args[1])
	if err != nil {
		return "", "", err
	}
	return a, b, nil
}
