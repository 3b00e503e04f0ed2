// Package uuidmod wires github.com/google/uuid into a single
// script-callable "uuid::new" host function returning a Value.String.
package uuidmod

import (
	"github.com/google/uuid"

	"github.com/aledsdavies/weft/module"
	"github.com/aledsdavies/weft/value"
)

// Module returns the "uuid" module, ready for Context.Install.
func Module() *module.Module {
	return module.New("uuid").
		Function("new", 0, func(args []value.Value) (value.Value, error) {
			return value.NewString(uuid.New().String()), nil
		})
}
