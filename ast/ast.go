// Package ast defines the syntax tree produced by weft/parser and
// consumed by weft/compiler: one node type per syntactic form, each
// carrying its source span, grounded on devcmd's core/ast node-per-form
// layout but adapted to this language's expression-oriented grammar
// instead of devcmd's shell-command grammar.
package ast

import "github.com/aledsdavies/weft/span"

// Node is implemented by every AST node.
type Node interface {
	Span() span.Span
}

// Expr is any expression-position node: let/if/while/match/block are
// all grouped as expressions since this is an expression-oriented
// language where an if/match/block yields a value.
type Expr interface {
	Node
	exprNode()
}

// Pattern is any pattern-position node.
type Pattern interface {
	Node
	patternNode()
}

// Decl is a top-level or block-level declaration.
type Decl interface {
	Node
	declNode()
}

// Base embeds a Span in every concrete node so they don't each repeat the
// accessor.
type Base struct{ Sp span.Span }

func (b Base) Span() span.Span { return b.Sp }

// Program is the root of a parsed source file.
type Program struct {
	Base
	Decls []Decl
}

// --- declarations ---

type UseDecl struct {
	Base
	Path  []string
	Alias string // "" if no `as` clause
}

func (*UseDecl) declNode() {}

type Param struct {
	Base
	Name string
}

type FnDecl struct {
	Base
	Name    string
	Params  []Param
	Body    *BlockExpr
	Async   bool
	HasYield bool // set by the parser's lightweight scan; compiler treats Generator vs Future per
}

func (*FnDecl) declNode() {}

// StructBody distinguishes the three shapes a struct/variant body can
// take, grounded on rune/src/ast/decl.rs.
type StructBody int

const (
	StructUnit StructBody = iota // struct Foo;
	StructTuple                  // struct Foo(A, B);
	StructNamed                  // struct Foo { a, b }
)

type StructDecl struct {
	Base
	Name   string
	Body   StructBody
	Fields []string // field names; empty for StructUnit, positional (ignored) for StructTuple
	Arity  int       // number of tuple fields, for StructTuple
}

func (*StructDecl) declNode() {}

type EnumVariant struct {
	Base
	Name   string
	Body   StructBody
	Fields []string
	Arity  int
}

type EnumDecl struct {
	Base
	Name     string
	Variants []EnumVariant
}

func (*EnumDecl) declNode() {}

type ImplDecl struct {
	Base
	TypeName string
	Methods  []*FnDecl
}

func (*ImplDecl) declNode() {}

// --- literals ---

type UnitLit struct{ Base }

func (*UnitLit) exprNode() {}

type BoolLit struct {
	Base
	Value bool
}

func (*BoolLit) exprNode() {}

type IntLit struct {
	Base
	Text string // raw lexeme; compiler resolves radix/sign
}

func (*IntLit) exprNode() {}

type FloatLit struct {
	Base
	Text string
}

func (*FloatLit) exprNode() {}

type CharLit struct {
	Base
	Value rune
}

func (*CharLit) exprNode() {}

type ByteLit struct {
	Base
	Value byte
}

func (*ByteLit) exprNode() {}

type StringLit struct {
	Base
	Value string // quotes removed and escapes resolved by Go's string-literal rules; a literal using an escape outside them (\0, \', \u{…}) keeps its text between the quotes unresolved
}

func (*StringLit) exprNode() {}

type ByteStringLit struct {
	Base
	Value []byte
}

func (*ByteStringLit) exprNode() {}

// TemplateLit is a `...${...}...` literal: alternating literal fragments
// and embedded expressions, lowered by the compiler to repeated string
// concatenation.
type TemplateLit struct {
	Base
	Fragments []string
	Exprs     []Expr // len(Exprs) == len(Fragments)-1
}

func (*TemplateLit) exprNode() {}

// --- paths, vars ---

type Ident struct {
	Base
	Name string
}

func (*Ident) exprNode() {}

// Path is a qualified reference, e.g. `std::vec::new` or an enum variant
// `Color::Red`.
type Path struct {
	Base
	Segments []string
}

func (*Path) exprNode() {}

// --- compound expressions ---

type BlockExpr struct {
	Base
	Stmts []Expr
	// Tail, if non-nil, is the final expression whose value the block
	// yields; if nil the block yields Unit.
	Tail Expr
}

func (*BlockExpr) exprNode() {}

type LetExpr struct {
	Base
	Pattern Pattern
	Value   Expr
}

func (*LetExpr) exprNode() {}

// AssignExpr covers `=`, `+=`, `-=`, `*=`, `/=`; restricts the
// target to an l-value expression (Ident/Field/Index), checked by the
// parser.
type AssignOp int

const (
	AssignSet AssignOp = iota
	AssignAdd
	AssignSub
	AssignMul
	AssignDiv
)

type AssignExpr struct {
	Base
	Op     AssignOp
	Target Expr
	Value  Expr
}

func (*AssignExpr) exprNode() {}

type IfExpr struct {
	Base
	Cond Expr
	Then *BlockExpr
	Else Expr // *BlockExpr or *IfExpr (else-if chain) or nil
}

func (*IfExpr) exprNode() {}

type WhileExpr struct {
	Base
	Label string // "" if unlabeled
	Cond  Expr
	Body  *BlockExpr
}

func (*WhileExpr) exprNode() {}

type LoopExpr struct {
	Base
	Label string
	Body  *BlockExpr
}

func (*LoopExpr) exprNode() {}

type ForExpr struct {
	Base
	Label   string
	Binding Pattern
	Iter    Expr
	Body    *BlockExpr
}

func (*ForExpr) exprNode() {}

type MatchArm struct {
	Base
	Pattern Pattern
	Guard   Expr // nil if no guard
	Body    Expr
}

type MatchExpr struct {
	Base
	Subject Expr
	Arms    []MatchArm
}

func (*MatchExpr) exprNode() {}

type BreakExpr struct {
	Base
	Label string
	Value Expr // nil if no value
}

func (*BreakExpr) exprNode() {}

type ContinueExpr struct {
	Base
	Label string
}

func (*ContinueExpr) exprNode() {}

type ReturnExpr struct {
	Base
	Value Expr // nil if bare `return`
}

func (*ReturnExpr) exprNode() {}

type YieldExpr struct {
	Base
	Value Expr // nil if bare `yield`
}

func (*YieldExpr) exprNode() {}

type AwaitExpr struct {
	Base
	Value Expr
}

func (*AwaitExpr) exprNode() {}

// TryExpr is the postfix `?` operator.
type TryExpr struct {
	Base
	Value Expr
}

func (*TryExpr) exprNode() {}

type CallExpr struct {
	Base
	Callee Expr
	Args   []Expr
}

func (*CallExpr) exprNode() {}

type IndexExpr struct {
	Base
	Target Expr
	Index  Expr
}

func (*IndexExpr) exprNode() {}

type FieldExpr struct {
	Base
	Target Expr
	Name   string
}

func (*FieldExpr) exprNode() {}

type BinaryOp int

const (
	OpOr BinaryOp = iota
	OpAnd
	OpIs
	OpIsNot
	OpEq
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpCoalesce // ??
)

type BinaryExpr struct {
	Base
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}

type UnaryOp int

const (
	OpNeg UnaryOp = iota // -x
	OpNot                // !x
)

type UnaryExpr struct {
	Base
	Op      UnaryOp
	Operand Expr
}

func (*UnaryExpr) exprNode() {}

type ClosureExpr struct {
	Base
	Params []Param
	Body   Expr // BlockExpr or a bare expression
	Async  bool
}

func (*ClosureExpr) exprNode() {}

type SelectArm struct {
	Base
	Binding string // bound name for the resolved value, "" to discard
	Future  Expr
	Body    Expr
}

type SelectExpr struct {
	Base
	Arms []SelectArm
}

func (*SelectExpr) exprNode() {}

type VecExpr struct {
	Base
	Elems []Expr
}

func (*VecExpr) exprNode() {}

type TupleExpr struct {
	Base
	Elems []Expr
}

func (*TupleExpr) exprNode() {}

type ObjectField struct {
	Base
	Key   string
	Value Expr // nil for shorthand `#{a}` meaning `#{a: a}`
}

type ObjectExpr struct {
	Base
	Fields []ObjectField
}

func (*ObjectExpr) exprNode() {}

// --- patterns ---

type WildcardPattern struct{ Base }

func (*WildcardPattern) patternNode() {}

// PathPattern binds a variable (a single-segment path) or matches an
// enum-variant/type path (multi-segment, or single-segment starting with
// an uppercase letter by convention — disambiguated by the compiler
// against the Context).
type PathPattern struct {
	Base
	Segments []string
}

func (*PathPattern) patternNode() {}

type LiteralPattern struct {
	Base
	Value Expr // one of the literal Expr types
}

func (*LiteralPattern) patternNode() {}

type TuplePattern struct {
	Base
	Path  []string // "" path means a bare tuple pattern, non-empty names an enum/struct tuple variant
	Elems []Pattern
}

func (*TuplePattern) patternNode() {}

type VecPattern struct {
	Base
	Elems []Pattern
	Rest  bool // trailing `..` — matches remaining elements without binding
}

func (*VecPattern) patternNode() {}

type ObjectPatternField struct {
	Base
	Key     string
	Binding Pattern // nil for shorthand `#{a}` meaning bind `a`
}

type ObjectPattern struct {
	Base
	Path   []string
	Fields []ObjectPatternField
	Rest   bool // trailing `..`
}

func (*ObjectPattern) patternNode() {}

// OptionPattern / ResultPattern match Some/None and Ok/Err directly,
// since they are common enough sum types to warrant dedicated syntax
// (`Some(x)`, `None`, `Ok(x)`, `Err(e)`) without forcing every match
// against an Option/Result through a generic enum-tuple pattern.
type OptionPattern struct {
	Base
	Some  bool
	Inner Pattern // nil when Some == false
}

func (*OptionPattern) patternNode() {}

type ResultPattern struct {
	Base
	Ok    bool
	Inner Pattern
}

func (*ResultPattern) patternNode() {}

// NewProgram constructs a Program node.
func NewProgram(sp span.Span, decls []Decl) *Program {
	return &Program{Base: Base{Sp: sp}, Decls: decls}
}
