// Package value implements the tagged Value model: a closed sum of
// primitives and shared heap entities. Following a "tagged variants for
// closed sets" design, Value is a Go interface implemented by one
// concrete type per variant, dispatched with type switches rather than
// a runtime type tree.
package value

import (
	"fmt"
	"strconv"

	"github.com/aledsdavies/weft/access"
	"github.com/aledsdavies/weft/item"
)

// Kind identifies which Value variant a value holds.
type Kind int

const (
	KindUnit Kind = iota
	KindBool
	KindByte
	KindChar
	KindInteger
	KindFloat
	KindType
	KindStaticString
	KindString
	KindBytes
	KindVec
	KindTuple
	KindObject
	KindOption
	KindResult
	KindTypedTuple
	KindTypedObject
	KindFuture
	KindGenerator
	KindStream
	KindExternal
)

var kindNames = [...]string{
	"unit", "bool", "byte", "char", "integer", "float", "type",
	"static-string", "string", "bytes", "vec", "tuple", "object",
	"option", "result", "typed-tuple", "typed-object", "future",
	"generator", "stream", "external",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is the dynamic value every VM slot, local, and Unit constant
// holds.
type Value interface {
	Kind() Kind
	String() string
}

// builtin type-hash cache, computed once: used by TypeOf for primitives.
var (
	hashUnit         = item.TypeHash(item.New("unit"))
	hashBool         = item.TypeHash(item.New("bool"))
	hashByte         = item.TypeHash(item.New("byte"))
	hashChar         = item.TypeHash(item.New("char"))
	hashInteger      = item.TypeHash(item.New("int"))
	hashFloat        = item.TypeHash(item.New("float"))
	hashType         = item.TypeHash(item.New("type"))
	hashString       = item.TypeHash(item.New("String"))
	hashBytes        = item.TypeHash(item.New("Bytes"))
	hashVec          = item.TypeHash(item.New("Vec"))
	hashTuple        = item.TypeHash(item.New("Tuple"))
	hashObject       = item.TypeHash(item.New("Object"))
	hashOption       = item.TypeHash(item.New("Option"))
	hashResult       = item.TypeHash(item.New("Result"))
	hashFuture       = item.TypeHash(item.New("Future"))
	hashGenerator    = item.TypeHash(item.New("Generator"))
	hashStream       = item.TypeHash(item.New("Stream"))
)

// TypeOf returns the type hash of v: structural for primitives and
// user-shaped values, the registered type hash for TypedTuple/TypedObject,
// and the external type id for External.
func TypeOf(v Value) item.Hash {
	switch t := v.(type) {
	case Unit:
		return hashUnit
	case Bool:
		return hashBool
	case Byte:
		return hashByte
	case Char:
		return hashChar
	case Integer:
		return hashInteger
	case Float:
		return hashFloat
	case TypeValue:
		return hashType
	case StaticString:
		return hashString
	case String:
		return hashString
	case Bytes:
		return hashBytes
	case Vec:
		return hashVec
	case Tuple:
		return hashTuple
	case Object:
		return hashObject
	case Option:
		return hashOption
	case Result:
		return hashResult
	case TypedTuple:
		return t.Cell.Peek().Ty
	case TypedObject:
		return t.Cell.Peek().Ty
	case Future:
		return hashFuture
	case Generator:
		return hashGenerator
	case Stream:
		return hashStream
	case External:
		return t.Cell.Peek().TypeID
	default:
		return 0
	}
}

// --- primitives ---

type Unit struct{}

func (Unit) Kind() Kind      { return KindUnit }
func (Unit) String() string  { return "()" }

type Bool bool

func (Bool) Kind() Kind { return KindBool }
func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

type Byte byte

func (Byte) Kind() Kind     { return KindByte }
func (b Byte) String() string { return fmt.Sprintf("b'%d'", byte(b)) }

type Char rune

func (Char) Kind() Kind       { return KindChar }
func (c Char) String() string { return strconv.QuoteRune(rune(c)) }

type Integer int64

func (Integer) Kind() Kind       { return KindInteger }
func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }

type Float float64

func (Float) Kind() Kind       { return KindFloat }
func (f Float) String() string { return strconv.FormatFloat(float64(f), 'g', -1, 64) }

// TypeValue reifies a type hash as a first-class Value, e.g. for `is`
// pattern matching against a type name.
type TypeValue struct{ Hash item.Hash }

func (TypeValue) Kind() Kind       { return KindType }
func (t TypeValue) String() string { return fmt.Sprintf("type(%x)", uint64(t.Hash)) }

// StaticString is an interned string literal, compared by identity of its
// backing Go string header is not meaningful in Go, so equality for
// StaticString falls back to value equality — interning here exists to
// mirror the Unit's static string table, not to change
// comparison semantics.
type StaticString struct{ S string }

func (StaticString) Kind() Kind       { return KindStaticString }
func (s StaticString) String() string { return s.S }

// --- shareables: heap cells with reference-counted, borrow-checked access ---

type String struct{ Cell *access.Cell[string] }

func NewString(s string) String { return String{Cell: access.NewCell(s)} }
func (String) Kind() Kind       { return KindString }
func (s String) String() string { return *s.Cell.Peek() }

type Bytes struct{ Cell *access.Cell[[]byte] }

func NewBytes(b []byte) Bytes { return Bytes{Cell: access.NewCell(b)} }
func (Bytes) Kind() Kind        { return KindBytes }
func (b Bytes) String() string  { return fmt.Sprintf("%x", *b.Cell.Peek()) }

type Vec struct{ Cell *access.Cell[[]Value] }

func NewVec(v []Value) Vec { return Vec{Cell: access.NewCell(v)} }
func (Vec) Kind() Kind      { return KindVec }
func (v Vec) String() string {
	items := *v.Cell.Peek()
	out := "["
	for i, it := range items {
		if i > 0 {
			out += ", "
		}
		out += it.String()
	}
	return out + "]"
}

type Tuple struct{ Cell *access.Cell[[]Value] }

func NewTuple(v []Value) Tuple { return Tuple{Cell: access.NewCell(v)} }
func (Tuple) Kind() Kind        { return KindTuple }
func (t Tuple) String() string {
	items := *t.Cell.Peek()
	out := "("
	for i, it := range items {
		if i > 0 {
			out += ", "
		}
		out += it.String()
	}
	return out + ")"
}

// Map is an insertion-ordered string-keyed map, backing both the
// untyped Object value and TypedObject's field storage. Preserving
// insertion order matches object-literal and template-rendering
// expectations ("fields print in the order they were written") without
// requiring a separate ordering side-channel.
type Map struct {
	keys   []string
	values map[string]Value
}

func NewMap() *Map { return &Map{values: make(map[string]Value)} }

func (m *Map) Set(key string, v Value) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *Map) Keys() []string { return m.keys }

func (m *Map) Len() int { return len(m.keys) }

type Object struct{ Cell *access.Cell[*Map] }

func NewObject(m *Map) Object { return Object{Cell: access.NewCell(m)} }
func (Object) Kind() Kind     { return KindObject }
func (o Object) String() string {
	m := *o.Cell.Peek()
	out := "#{"
	for i, k := range m.Keys() {
		if i > 0 {
			out += ", "
		}
		v, _ := m.Get(k)
		out += k + ": " + v.String()
	}
	return out + "}"
}

type Option struct{ Cell *access.Cell[*Value] }

func NewSome(v Value) Option { return Option{Cell: access.NewCell(&v)} }
func NewNone() Option        { return Option{Cell: access.NewCell[*Value](nil)} }
func (Option) Kind() Kind     { return KindOption }
func (o Option) String() string {
	p := *o.Cell.Peek()
	if p == nil {
		return "None"
	}
	return "Some(" + (*p).String() + ")"
}

// ResultData is the payload of a Result value: exactly one of Ok/Err is
// meaningful, selected by the IsOk flag.
type ResultData struct {
	IsOk bool
	Val  Value
}

type Result struct{ Cell *access.Cell[ResultData] }

func NewOk(v Value) Result  { return Result{Cell: access.NewCell(ResultData{IsOk: true, Val: v})} }
func NewErr(v Value) Result { return Result{Cell: access.NewCell(ResultData{IsOk: false, Val: v})} }
func (Result) Kind() Kind   { return KindResult }
func (r Result) String() string {
	d := *r.Cell.Peek()
	if d.IsOk {
		return "Ok(" + d.Val.String() + ")"
	}
	return "Err(" + d.Val.String() + ")"
}

// TypedTupleData is the payload of a struct-shaped tuple value.
type TypedTupleData struct {
	Ty     item.Hash
	Fields []Value
}

type TypedTuple struct{ Cell *access.Cell[TypedTupleData] }

func NewTypedTuple(ty item.Hash, fields []Value) TypedTuple {
	return TypedTuple{Cell: access.NewCell(TypedTupleData{Ty: ty, Fields: fields})}
}
func (TypedTuple) Kind() Kind { return KindTypedTuple }
func (t TypedTuple) String() string {
	d := *t.Cell.Peek()
	return fmt.Sprintf("TypedTuple(%x, %d fields)", uint64(d.Ty), len(d.Fields))
}

// TypedObjectData is the payload of a struct-shaped object value.
type TypedObjectData struct {
	Ty     item.Hash
	Fields *Map
}

type TypedObject struct{ Cell *access.Cell[TypedObjectData] }

func NewTypedObject(ty item.Hash, fields *Map) TypedObject {
	return TypedObject{Cell: access.NewCell(TypedObjectData{Ty: ty, Fields: fields})}
}
func (TypedObject) Kind() Kind { return KindTypedObject }
func (t TypedObject) String() string {
	d := *t.Cell.Peek()
	return fmt.Sprintf("TypedObject(%x, %d fields)", uint64(d.Ty), d.Fields.Len())
}

// FutureBody is implemented by the VM package's future/generator
// continuations; defined here (not imported from vm) to avoid an import
// cycle, since vm depends heavily on value.
type FutureBody interface {
	// Poll advances the future. ok=true means v is the final result.
	Poll() (v Value, ok bool, err error)
}

type Future struct{ Cell *access.Cell[FutureBody] }

func NewFuture(b FutureBody) Future { return Future{Cell: access.NewCell(b)} }
func (Future) Kind() Kind           { return KindFuture }
func (Future) String() string       { return "Future" }

// GeneratorBody is implemented by the VM package's generator frames.
type GeneratorBody interface {
	// Resume drives the generator until the next yield or completion.
	Resume(input Value) (v Value, done bool, err error)
}

type Generator struct{ Cell *access.Cell[GeneratorBody] }

func NewGenerator(b GeneratorBody) Generator { return Generator{Cell: access.NewCell(b)} }
func (Generator) Kind() Kind                 { return KindGenerator }
func (Generator) String() string             { return "Generator" }

// StreamBody is an async iterator: a Generator additionally awaited at
// each step. Implemented by vm.
type StreamBody interface {
	Next() (v Value, done bool, err error)
}

type Stream struct{ Cell *access.Cell[StreamBody] }

func NewStream(b StreamBody) Stream { return Stream{Cell: access.NewCell(b)} }
func (Stream) Kind() Kind           { return KindStream }
func (Stream) String() string      { return "Stream" }

// ExternalData wraps a host-opaque value: a type id plus the owned Go
// value, standing in for runestick's Any{TypeId, owned pointer}.
type ExternalData struct {
	TypeID item.Hash
	Data   any
}

type External struct{ Cell *access.Cell[ExternalData] }

func NewExternal(typeID item.Hash, data any) External {
	return External{Cell: access.NewCell(ExternalData{TypeID: typeID, Data: data})}
}
func (External) Kind() Kind { return KindExternal }
func (e External) String() string {
	d := *e.Cell.Peek()
	return fmt.Sprintf("External(%x)", uint64(d.TypeID))
}
