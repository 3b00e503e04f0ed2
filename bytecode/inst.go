// Package bytecode defines the instruction set, per-function Assembly
// builder, and linked Unit consumed by weft/vm, grounded on
// rune/runestick's Inst enum (crates/rune/src/compile/expr_unary.rs:
// "self.asm.push(Inst::Not, span)") reshaped into Go's closed-enum-plus-
// struct idiom, matching devcmd's token.go/ir/types.go style of
// int-backed constant enums with a String() method.
package bytecode

import "fmt"

// Op identifies what an Inst does; operand fields are interpreted
// according to Op.
type Op int

const (
	// literals and loads
	OpConstUnit Op = iota
	OpConstBool
	OpConstInt
	OpConstFloat
	OpConstByte
	OpConstChar
	OpConstString // operand Str when non-empty, else operand A indexes the function's Strings table
	OpConstBytes
	OpLoadLocal // operand A is a frame-relative slot index
	OpStoreLocal
	OpLoadUpvalue

	// stack management
	OpPop
	OpDup
	OpSwap

	// arithmetic / comparison (operate on the top one or two stack slots)
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpNeg
	OpNot
	OpEq
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
	OpCoalesce // `??` over the top two slots: pops fallback b, then left operand a; Some(x) yields x, None yields b

	// control flow
	OpJump    // unconditional, operand A is a resolved instruction offset
	OpJumpIf  // pop condition; jump if truthy
	OpJumpIfNot

	// calls
	OpCall     // operand Hash is the callee item.Hash (Str its name); operand B is argc
	OpCallFn   // call a Value on the stack (closure/fn pointer); operand B is argc
	OpReturn
	OpReturnUnit

	// field / index access
	OpGetField // operand Str is the field/key name
	OpSetField
	OpGetIndex
	OpSetIndex

	// construction
	OpMakeVec    // operand A is element count
	OpMakeTuple  // operand A is element count
	OpMakeObject // operand A is field count; keys come from the Unit's key table via operand B..B+A
	OpMakeOption // operand Flag: true => Some(pop 1), false => None(pop 0)
	OpMakeResult // operand Flag: true => Ok(pop 1), false => Err(pop 1)
	// OpMakeStruct builds a TypedTuple or TypedObject: operand Hash names
	// the registered type, operand A is field count. When Flag is false
	// the A values on the stack become a TypedTuple's positional fields;
	// when Flag is true they are named fields, taken in order from the
	// Unit's key table starting at operand B (mirroring OpMakeObject).
	OpMakeStruct
	OpMakeClosure // operand Hash names the closure's function in the Unit; captures popped per operand B

	// iteration protocol
	OpIterInit // pop iterable, push an internal iterator handle
	OpIterNext // peek iterator handle; push Option<Value>

	// pattern-matching support
	OpTypeHash     // pop value, push its runtime type hash as Integer (for variant-tag comparison)
	OpOptionIsSome // peek Option, push Bool tag without consuming it
	OpOptionUnwrap // pop Option, push its inner value (Some only; guarded by a prior OpOptionIsSome check)
	OpResultIsOk   // peek Result, push Bool tag without consuming it
	OpResultUnwrap // pop Result, push its inner value regardless of Ok/Err

	// async / generator suspension points
	OpAwait
	OpYield

	// templates
	OpConcat // operand A is the number of stack values to concatenate into a string

	// errors
	OpTry   // postfix `?`: unwrap Ok/Some or early-return Err/None
	OpPanic // raise a VmError with the string on TOS as message

	OpNumOps
)

var opNames = map[Op]string{
	OpConstUnit: "const.unit", OpConstBool: "const.bool", OpConstInt: "const.int",
	OpConstFloat: "const.float", OpConstByte: "const.byte", OpConstChar: "const.char",
	OpConstString: "const.string", OpConstBytes: "const.bytes",
	OpLoadLocal: "load.local", OpStoreLocal: "store.local", OpLoadUpvalue: "load.upvalue",
	OpPop: "pop", OpDup: "dup", OpSwap: "swap",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpRem: "rem",
	OpNeg: "neg", OpNot: "not", OpEq: "eq", OpNeq: "neq",
	OpLt: "lt", OpLe: "le", OpGt: "gt", OpGe: "ge", OpCoalesce: "coalesce",
	OpJump: "jump", OpJumpIf: "jump.if", OpJumpIfNot: "jump.ifnot",
	OpCall: "call", OpCallFn: "call.fn", OpReturn: "return", OpReturnUnit: "return.unit",
	OpGetField: "get.field", OpSetField: "set.field", OpGetIndex: "get.index", OpSetIndex: "set.index",
	OpMakeVec: "make.vec", OpMakeTuple: "make.tuple", OpMakeObject: "make.object",
	OpMakeOption: "make.option", OpMakeResult: "make.result", OpMakeStruct: "make.struct",
	OpMakeClosure: "make.closure",
	OpIterInit:    "iter.init", OpIterNext: "iter.next",
	OpTypeHash: "type.hash", OpOptionIsSome: "option.issome", OpOptionUnwrap: "option.unwrap",
	OpResultIsOk: "result.isok", OpResultUnwrap: "result.unwrap",
	OpAwait: "await", OpYield: "yield",
	OpConcat: "concat",
	OpTry:    "try", OpPanic: "panic",
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Inst is one instruction. Not every field is meaningful for every Op;
// which ones are is documented on the Op constant above. Flattening to
// one struct (rather than a Go interface per opcode) keeps the hot
// dispatch loop in weft/vm a single type switch over Op with no
// interface-dispatch overhead, and keeps the instruction stream
// trivially CBOR-encodable as a slice of fixed-shape records.
type Inst struct {
	Op   Op
	A    int      // count / slot index / jump target / function index
	B    int      // secondary count (argc, key-table start, capture count)
	I    int64    // integer constant
	F    float64  // float constant
	Byte byte     // byte constant
	Char rune     // char constant
	Str  string   // string constant / field name / object key run marker
	Flag bool     // boolean constant / Some-vs-None / Ok-vs-Err discriminant
	Hash uint64   // item.Hash for OpCall / OpMakeStruct, as a plain uint64 so Inst has no import cycle on item
}
