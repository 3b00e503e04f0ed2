// Package lang provides a small free-function host module,
// "lang::plural"/"lang::singular", wired to
// github.com/gertd/go-pluralize — exercising the module.Function
// (plain free-function, no host type involved) registration path with
// a real third-party string-inflection dependency, as opposed to
// weft/stdlib/collections or weft/stdlib/strings which lean entirely
// on the standard library.
package lang

import (
	"github.com/gertd/go-pluralize"

	"github.com/aledsdavies/weft/module"
	"github.com/aledsdavies/weft/value"
)

// Module returns the "lang" module, ready for Context.Install.
func Module() *module.Module {
	client := pluralize.NewClient()
	return module.New("lang").
		Function("plural", 1, func(args []value.Value) (value.Value, error) {
			s, err := value.AsString(args[0])
			if err != nil {
				return nil, err
			}
			return value.StaticString{S: client.Plural(s)}, nil
		}).
		Function("singular", 1, func(args []value.Value) (value.Value, error) {
			s, err := value.AsString(args[0])
			if err != nil {
				return nil, err
			}
			return value.StaticString{S: client.Singular(s)}, nil
		}).
		Function("is_plural", 1, func(args []value.Value) (value.Value, error) {
			s, err := value.AsString(args[0])
			if err != nil {
				return nil, err
			}
			return value.Bool(client.IsPlural(s)), nil
		})
}
