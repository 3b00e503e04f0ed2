// Package sdk is a small host-facing façade over weft/module's
// registration API, grounded on runestick's FromValue/ToValue
// reflection traits (original_source/crates/st/src/reflection/mod.rs,
// exercised end to end by
// original_source/crates/rune-testing/examples/basic_add.rs and
// custom_instance_fn.rs: "i64::from_value(output)?"). Where runestick
// expresses the conversion as a trait a Rust type implements, Go has no
// equivalent ad hoc polymorphism, so this package uses reflection:
// Wrap takes an ordinary typed Go func and returns the module.HostFunc
// the VM actually calls, converting each argument in with FromValue and
// the return value out with IntoValue.
package sdk

import (
	"fmt"
	"reflect"

	"github.com/aledsdavies/weft/module"
	"github.com/aledsdavies/weft/value"
)

// FromValue converts a script Value into a Go value of type out,
// matching runestick's FromValue::from_value. out must be a pointer.
func FromValue(v value.Value, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr {
		return fmt.Errorf("sdk: FromValue target must be a pointer, got %T", out)
	}
	elem := rv.Elem()
	switch elem.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := value.IntoInteger(v)
		if err != nil {
			return err
		}
		elem.SetInt(int64(i))
	case reflect.Float32, reflect.Float64:
		f, err := value.IntoFloat(v)
		if err != nil {
			return err
		}
		elem.SetFloat(float64(f))
	case reflect.Bool:
		b, err := value.IntoBool(v)
		if err != nil {
			return err
		}
		elem.SetBool(bool(b))
	case reflect.String:
		s, err := value.AsString(v)
		if err != nil {
			return err
		}
		elem.SetString(s)
	default:
		if elem.Type() == reflect.TypeOf((*value.Value)(nil)).Elem() {
			elem.Set(reflect.ValueOf(v))
			return nil
		}
		return fmt.Errorf("sdk: unsupported FromValue target type %s", elem.Type())
	}
	return nil
}

// IntoValue converts a Go value into a script Value, matching
// runestick's ToValue::to_value.
func IntoValue(in any) (value.Value, error) {
	if v, ok := in.(value.Value); ok {
		return v, nil
	}
	rv := reflect.ValueOf(in)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return value.Integer(rv.Int()), nil
	case reflect.Float32, reflect.Float64:
		return value.Float(rv.Float()), nil
	case reflect.Bool:
		return value.Bool(rv.Bool()), nil
	case reflect.String:
		return value.StaticString{S: rv.String()}, nil
	default:
		return nil, fmt.Errorf("sdk: unsupported IntoValue source type %s", rv.Type())
	}
}

// Wrap reflects over fn (any func whose parameters and single return
// value are among the types FromValue/IntoValue support, optionally
// followed by a trailing error return) and produces the module.HostFunc
// a Module.Function/InstFn registration needs, converting the VM's flat
// []value.Value argument slice in and the Go return value out.
func Wrap(fn any) module.HostFunc {
	rv := reflect.ValueOf(fn)
	rt := rv.Type()
	if rt.Kind() != reflect.Func {
		panic(fmt.Sprintf("sdk.Wrap: expected a func, got %s", rt))
	}
	return func(args []value.Value) (value.Value, error) {
		if len(args) != rt.NumIn() {
			return nil, fmt.Errorf("sdk: %s expects %d args, got %d", rt, rt.NumIn(), len(args))
		}
		in := make([]reflect.Value, rt.NumIn())
		for i := 0; i < rt.NumIn(); i++ {
			argPtr := reflect.New(rt.In(i))
			if err := FromValue(args[i], argPtr.Interface()); err != nil {
				return nil, err
			}
			in[i] = argPtr.Elem()
		}
		out := rv.Call(in)
		return unpackResults(rt, out)
	}
}

func unpackResults(rt reflect.Type, out []reflect.Value) (value.Value, error) {
	numOut := rt.NumOut()
	if numOut == 0 {
		return value.Unit{}, nil
	}
	errType := reflect.TypeOf((*error)(nil)).Elem()
	last := out[numOut-1]
	if rt.Out(numOut-1).Implements(errType) {
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
		if numOut == 1 {
			return value.Unit{}, nil
		}
	}
	return IntoValue(out[0].Interface())
}
