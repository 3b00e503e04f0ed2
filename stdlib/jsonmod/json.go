// Package jsonmod bridges script values and JSON, and wires
// github.com/santhosh-tekuri/jsonschema/v5 so a host can require
// incoming JSON to satisfy a schema before it ever becomes a script
// Value — "json::from_str_validated" compiles the schema on every call
// (there is no compilation cache) and validates before decoding.
package jsonmod

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/aledsdavies/weft/module"
	"github.com/aledsdavies/weft/value"
)

// Module returns the "json" module, ready for Context.Install.
func Module() *module.Module {
	return module.New("json").
		Function("from_str", 1, func(args []value.Value) (value.Value, error) {
			s, err := value.AsString(args[0])
			if err != nil {
				return nil, err
			}
			var decoded any
			if err := json.Unmarshal([]byte(s), &decoded); err != nil {
				return nil, fmt.Errorf("json::from_str: %w", err)
			}
			return fromGo(decoded), nil
		}).
		Function("to_str", 1, func(args []value.Value) (value.Value, error) {
			encoded, err := json.Marshal(toGo(args[0]))
			if err != nil {
				return nil, fmt.Errorf("json::to_str: %w", err)
			}
			return value.NewString(string(encoded)), nil
		}).
		Function("from_str_validated", 2, func(args []value.Value) (value.Value, error) {
			schemaSrc, err := value.AsString(args[0])
			if err != nil {
				return nil, err
			}
			body, err := value.AsString(args[1])
			if err != nil {
				return nil, err
			}
			compiled, err := compileSchema(schemaSrc)
			if err != nil {
				return nil, fmt.Errorf("json::from_str_validated: bad schema: %w", err)
			}
			var decoded any
			if err := json.Unmarshal([]byte(body), &decoded); err != nil {
				return nil, fmt.Errorf("json::from_str_validated: %w", err)
			}
			if err := compiled.Validate(decoded); err != nil {
				return nil, fmt.Errorf("json::from_str_validated: schema violation: %w", err)
			}
			return fromGo(decoded), nil
		})
}

func compileSchema(src string) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", bytes.NewReader([]byte(src))); err != nil {
		return nil, err
	}
	return c.Compile("schema.json")
}

// fromGo converts the shapes encoding/json.Unmarshal produces into
// this language's Value.
func fromGo(v any) value.Value {
	switch t := v.(type) {
	case nil:
		return value.NewNone()
	case bool:
		return value.Bool(t)
	case float64:
		return value.Float(t)
	case string:
		return value.StaticString{S: t}
	case []any:
		elems := make([]value.Value, len(t))
		for i, e := range t {
			elems[i] = fromGo(e)
		}
		return value.NewVec(elems)
	case map[string]any:
		m := value.NewMap()
		for k, e := range t {
			m.Set(k, fromGo(e))
		}
		return value.NewObject(m)
	default:
		return value.Unit{}
	}
}

// toGo converts a Value back into the plain any shapes
// encoding/json.Marshal knows how to serialize.
func toGo(v value.Value) any {
	switch t := v.(type) {
	case value.Unit:
		return nil
	case value.Bool:
		return bool(t)
	case value.Integer:
		return int64(t)
	case value.Float:
		return float64(t)
	case value.StaticString:
		return t.S
	case value.String:
		return *t.Cell.Peek()
	case value.Vec:
		items := *t.Cell.Peek()
		out := make([]any, len(items))
		for i, e := range items {
			out[i] = toGo(e)
		}
		return out
	case value.Object:
		m := *t.Cell.Peek()
		out := make(map[string]any, m.Len())
		for _, k := range m.Keys() {
			e, _ := m.Get(k)
			out[k] = toGo(e)
		}
		return out
	case value.Option:
		p := *t.Cell.Peek()
		if p == nil {
			return nil
		}
		return toGo(*p)
	default:
		return nil
	}
}
