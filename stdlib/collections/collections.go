// Package collections is a free-function host module over
// weft/value's Vec/Object: "collections::len"/"push"/"keys". Plain
// container bookkeeping has no third-party counterpart in the pack,
// so this is another DESIGN.md-documented standard-library exception.
package collections

import (
	"github.com/aledsdavies/weft/module"
	"github.com/aledsdavies/weft/value"
)

// Module returns the "collections" module, ready for Context.Install.
func Module() *module.Module {
	return module.New("collections").
		Function("len", 1, func(args []value.Value) (value.Value, error) {
			switch t := args[0].(type) {
			case value.Vec:
				return value.Integer(int64(len(*t.Cell.Peek()))), nil
			case value.Object:
				return value.Integer(int64((*t.Cell.Peek()).Len())), nil
			default:
				return nil, &value.ExpectedError{Expected: "vec or object", Actual: args[0].Kind()}
			}
		}).
		Function("push", 2, func(args []value.Value) (value.Value, error) {
			v, err := value.IntoVec(args[0])
			if err != nil {
				return nil, err
			}
			cur := *v.Cell.Peek()
			*v.Cell.Peek() = append(cur, args[1])
			return v, nil
		}).
		Function("keys", 1, func(args []value.Value) (value.Value, error) {
			o, err := value.IntoObject(args[0])
			if err != nil {
				return nil, err
			}
			keys := (*o.Cell.Peek()).Keys()
			out := make([]value.Value, len(keys))
			for i, k := range keys {
				out[i] = value.StaticString{S: k}
			}
			return value.NewVec(out), nil
		})
}
