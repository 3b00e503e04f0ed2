// Package compiler lowers weft/ast into weft/bytecode Functions,
// grounded on rune's per-form `impl Compile<(&ast::ExprX, Needs)>
// for Compiler` style (crates/rune/src/compile/expr_unary.rs) collapsed
// into Go methods on a single Compiler type, since Go has no trait-impl-
// per-(type,context) dispatch — a type switch in compileExpr plays the
// role rune's per-file impl blocks play.
package compiler

import (
	"fmt"

	"github.com/aledsdavies/weft/ast"
	"github.com/aledsdavies/weft/bytecode"
	"github.com/aledsdavies/weft/diag"
	"github.com/aledsdavies/weft/item"
	"github.com/aledsdavies/weft/span"
)

// Needs records whether the surrounding context consumes an
// expression's value or only its side effects; when false the compiler
// emits a trailing Pop so the operand stack stays balanced (rune:
// "if !needs.value() { self.asm.push(Inst::Pop, span) }").
type Needs bool

const (
	NeedsValue Needs = true
	NeedsNone  Needs = false
)

// scope tracks local-variable slot assignment within one lexical block;
// scopes nest via Compiler.scopes, a plain slice used as a stack.
type scope struct {
	names map[string]int
}

// loopCtx tracks the break/continue targets and optional label of one
// enclosing loop, so `break`/`continue`/`break 'label` can resolve the
// right jump target through arbitrary nesting.
type loopCtx struct {
	label         string
	breakLabel    bytecode.Label
	continueLbl   bytecode.Label
	breakSlot     int // local slot break's value is stored into, or -1 if the loop is unused as an expression
	extraExitPops int // additional stack slots (e.g. a for-loop's iterator handle) break must discard before jumping out
}

// Compiler lowers one function body at a time into an *bytecode.Assembly.
// A fresh Compiler (with its own funcs list, appended to the parent's
// once it is done) is used per fn/closure so each gets its own
// local-slot numbering.
type Compiler struct {
	asm      *bytecode.Assembly
	scopes   []scope
	nextSlot int
	loops    []loopCtx
	modPath  []string // enclosing module path, for hashing unqualified names
	errs     []*diag.CompileError
	bag      diag.Bag
	funcs    []*bytecode.Function // accumulates nested closures compiled along the way
}

// New returns a Compiler for a function whose qualified path is
// modPath (used to hash unqualified calls within it).
func New(modPath []string) *Compiler {
	c := &Compiler{asm: bytecode.NewAssembly(), modPath: modPath, nextSlot: 0}
	c.pushScope()
	return c
}

func (c *Compiler) errorf(kind diag.CompileErrorKind, sp span.Span, format string, args ...any) {
	c.errs = append(c.errs, &diag.CompileError{Kind: kind, Span: sp, Message: fmt.Sprintf(format, args...)})
}

func (c *Compiler) pushScope() { c.scopes = append(c.scopes, scope{names: make(map[string]int)}) }

func (c *Compiler) popScope() { c.scopes = c.scopes[:len(c.scopes)-1] }

func (c *Compiler) declareLocal(name string) int {
	slot := c.nextSlot
	c.nextSlot++
	c.scopes[len(c.scopes)-1].names[name] = slot
	return slot
}

func (c *Compiler) resolveLocal(name string) (int, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if slot, ok := c.scopes[i].names[name]; ok {
			return slot, true
		}
	}
	return 0, false
}

// hashOf computes the item.Hash for an unqualified name resolved against
// the enclosing module path, or a qualified path's own segments if it
// has more than one. Free functions and types share the hashed-path
// namespace (item.FnHash), so both are reached through this one entry
// point.
func (c *Compiler) hashOf(segments []string) uint64 {
	if len(segments) > 1 {
		return uint64(item.FnHash(item.New(segments...)))
	}
	full := append(append([]string{}, c.modPath...), segments[0])
	return uint64(item.FnHash(item.New(full...)))
}

// CompileFunction lowers one fn/closure body into a linkable
// bytecode.Function. name/hash/arity describe the function's identity
// in the linked Unit; params are declared as the first
// locals in slot order.
func CompileFunction(modPath []string, name string, hash uint64, params []ast.Param, body *ast.BlockExpr, async, isGen bool) (*bytecode.Function, []*diag.CompileError, []diag.Warning) {
	c := New(modPath)
	checkMixedAwaitYield(c, async, isGen, body.Span())
	for _, p := range params {
		c.declareLocal(p.Name)
	}
	c.compileBlock(body, NeedsValue)
	c.asm.Push(bytecode.Inst{Op: bytecode.OpReturn}, body.Span())
	fn := &bytecode.Function{Name: name, Hash: hash, Arity: len(params), Locals: c.nextSlot, Asm: c.asm, IsAsync: async, IsGen: isGen}
	return fn, c.errs, c.bag.Warnings
}

// checkMixedAwaitYield rejects a function declared both async and a
// generator: `await` suspends on a Future, `yield` suspends on a
// caller-driven Resume, and callUnit only checks one of the two
// protocols (IsGen first), so a function with both would silently run
// as a plain generator and its awaits would never actually suspend.
func checkMixedAwaitYield(c *Compiler, async, isGen bool, sp span.Span) {
	if async && isGen {
		c.errorf(diag.CompileMixedAwaitYield, sp, "fn cannot mix await and yield in the same body")
	}
}

// compileBlock lowers a BlockExpr's statements (each discarding its
// value) followed by its tail (consuming needs), pushing Unit if there
// is no tail and the caller needs a value.
func (c *Compiler) compileBlock(b *ast.BlockExpr, needs Needs) {
	c.pushScope()
	defer c.popScope()
	for _, s := range b.Stmts {
		c.compileExpr(s, NeedsNone)
	}
	if b.Tail != nil {
		c.compileExpr(b.Tail, needs)
		return
	}
	if needs == NeedsValue {
		c.asm.Push(bytecode.Inst{Op: bytecode.OpConstUnit}, b.Span())
	}
}

// compileExpr is the single dispatch point standing in for rune's
// per-type Compile<(&ast::ExprX, Needs)> impls.
func (c *Compiler) compileExpr(e ast.Expr, needs Needs) {
	switch n := e.(type) {
	case *ast.UnitLit:
		c.emitIf(needs, bytecode.Inst{Op: bytecode.OpConstUnit}, n.Span())
	case *ast.BoolLit:
		c.emitIf(needs, bytecode.Inst{Op: bytecode.OpConstBool, Flag: n.Value}, n.Span())
	case *ast.IntLit:
		c.emitIf(needs, bytecode.Inst{Op: bytecode.OpConstInt, Str: n.Text}, n.Span())
	case *ast.FloatLit:
		c.emitIf(needs, bytecode.Inst{Op: bytecode.OpConstFloat, Str: n.Text}, n.Span())
	case *ast.CharLit:
		c.emitIf(needs, bytecode.Inst{Op: bytecode.OpConstChar, Char: n.Value}, n.Span())
	case *ast.ByteLit:
		c.emitIf(needs, bytecode.Inst{Op: bytecode.OpConstByte, Byte: n.Value}, n.Span())
	case *ast.StringLit:
		idx := c.asm.StringConst(n.Value)
		c.emitIf(needs, bytecode.Inst{Op: bytecode.OpConstString, A: idx}, n.Span())
	case *ast.ByteStringLit:
		idx := c.asm.StringConst(string(n.Value))
		c.emitIf(needs, bytecode.Inst{Op: bytecode.OpConstBytes, A: idx}, n.Span())
	case *ast.TemplateLit:
		c.compileTemplate(n, needs)
	case *ast.Ident:
		c.compileIdent(n, needs)
	case *ast.Path:
		c.compilePathRef(n, needs)
	case *ast.BlockExpr:
		c.compileBlock(n, needs)
	case *ast.LetExpr:
		c.compileLet(n)
		if needs == NeedsValue {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpConstUnit}, n.Span())
		}
	case *ast.AssignExpr:
		c.compileAssign(n, needs)
	case *ast.IfExpr:
		c.compileIf(n, needs)
	case *ast.WhileExpr:
		c.compileWhile(n, needs)
	case *ast.LoopExpr:
		c.compileLoop(n, needs)
	case *ast.ForExpr:
		c.compileFor(n, needs)
	case *ast.MatchExpr:
		c.compileMatch(n, needs)
	case *ast.BreakExpr:
		c.compileBreak(n)
	case *ast.ContinueExpr:
		c.compileContinue(n)
	case *ast.ReturnExpr:
		c.compileReturn(n)
	case *ast.YieldExpr:
		if n.Value != nil {
			c.compileExpr(n.Value, NeedsValue)
		} else {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpConstUnit}, n.Span())
		}
		c.asm.Push(bytecode.Inst{Op: bytecode.OpYield}, n.Span())
		if needs == NeedsNone {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, n.Span())
		}
	case *ast.AwaitExpr:
		c.compileExpr(n.Value, NeedsValue)
		c.asm.Push(bytecode.Inst{Op: bytecode.OpAwait}, n.Span())
		if needs == NeedsNone {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, n.Span())
		}
	case *ast.TryExpr:
		c.compileExpr(n.Value, NeedsValue)
		c.asm.Push(bytecode.Inst{Op: bytecode.OpTry}, n.Span())
		if needs == NeedsNone {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, n.Span())
		}
	case *ast.CallExpr:
		c.compileCall(n, needs)
	case *ast.IndexExpr:
		c.compileExpr(n.Target, NeedsValue)
		c.compileExpr(n.Index, NeedsValue)
		c.emitIf(needs, bytecode.Inst{Op: bytecode.OpGetIndex}, n.Span())
	case *ast.FieldExpr:
		c.compileExpr(n.Target, NeedsValue)
		c.emitIf(needs, bytecode.Inst{Op: bytecode.OpGetField, Str: n.Name}, n.Span())
	case *ast.BinaryExpr:
		c.compileBinary(n, needs)
	case *ast.UnaryExpr:
		c.compileExpr(n.Operand, NeedsValue)
		op := bytecode.OpNeg
		if n.Op == ast.OpNot {
			op = bytecode.OpNot
		}
		c.emitIf(needs, bytecode.Inst{Op: op}, n.Span())
	case *ast.ClosureExpr:
		c.compileClosure(n, needs)
	case *ast.SelectExpr:
		c.compileSelect(n, needs)
	case *ast.VecExpr:
		for _, el := range n.Elems {
			c.compileExpr(el, NeedsValue)
		}
		c.emitIf(needs, bytecode.Inst{Op: bytecode.OpMakeVec, A: len(n.Elems)}, n.Span())
	case *ast.TupleExpr:
		for _, el := range n.Elems {
			c.compileExpr(el, NeedsValue)
		}
		c.emitIf(needs, bytecode.Inst{Op: bytecode.OpMakeTuple, A: len(n.Elems)}, n.Span())
	case *ast.ObjectExpr:
		c.compileObject(n, needs)
	default:
		c.errorf(diag.CompileUnsupportedForm, e.Span(), "unsupported expression form %T", e)
	}
}

// emitIf pushes inst and, only when the value is actually needed,
// leaves it on the stack; otherwise the instruction still runs (for its
// side effects, if any) but its result is popped.
func (c *Compiler) emitIf(needs Needs, inst bytecode.Inst, sp span.Span) {
	c.asm.Push(inst, sp)
	if needs == NeedsNone {
		c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, sp)
	}
}

func (c *Compiler) compileIdent(n *ast.Ident, needs Needs) {
	if slot, ok := c.resolveLocal(n.Name); ok {
		c.emitIf(needs, bytecode.Inst{Op: bytecode.OpLoadLocal, A: slot}, n.Span())
		return
	}
	// Not a local: treat as a zero-arg call to a module-level function.
	// Bare identifiers that aren't locals resolve through the
	// Context/module namespace.
	hash := c.hashOf([]string{n.Name})
	c.emitIf(needs, bytecode.Inst{Op: bytecode.OpCall, Hash: hash, Str: n.Name, B: 0}, n.Span())
}

func (c *Compiler) compilePathRef(n *ast.Path, needs Needs) {
	hash := c.hashOf(n.Segments)
	name := n.Segments[len(n.Segments)-1]
	c.emitIf(needs, bytecode.Inst{Op: bytecode.OpCall, Hash: hash, Str: name, B: 0}, n.Span())
}

func (c *Compiler) compileLet(n *ast.LetExpr) {
	c.compileExpr(n.Value, NeedsValue)
	if refutableInLetPosition(n.Pattern) {
		c.bag.Warn(diag.Warning{Kind: diag.WarnLetPatternMightPanic, Span: n.Pattern.Span(), Context: n.Span(), HasCtx: true})
	}
	c.bindPattern(n.Pattern)
}

// refutableInLetPosition reports whether pat destructures by shape
// (tuple arity, object field presence) rather than simply naming a
// value — such a pattern compiles fine but panics at runtime if the
// bound value doesn't actually have that shape, e.g. `let (a, b) = [1]`.
func refutableInLetPosition(pat ast.Pattern) bool {
	switch pat.(type) {
	case *ast.TuplePattern, *ast.ObjectPattern:
		return true
	default:
		return false
	}
}

// bindPattern destructures the value currently on top of the stack
// according to pat, declaring any names it binds for an irrefutable
// let-pattern.
func (c *Compiler) bindPattern(pat ast.Pattern) {
	switch p := pat.(type) {
	case *ast.WildcardPattern:
		c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, p.Span())
	case *ast.PathPattern:
		if len(p.Segments) == 1 {
			slot := c.declareLocal(p.Segments[0])
			c.asm.Push(bytecode.Inst{Op: bytecode.OpStoreLocal, A: slot}, p.Span())
			return
		}
		c.errorf(diag.CompileBadPattern, p.Span(), "cannot bind a multi-segment path in let position")
	case *ast.TuplePattern:
		for i, el := range p.Elems {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpDup}, p.Span())
			c.asm.Push(bytecode.Inst{Op: bytecode.OpConstInt, I: int64(i)}, p.Span())
			c.asm.Push(bytecode.Inst{Op: bytecode.OpGetIndex}, p.Span())
			c.bindPattern(el)
		}
		c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, p.Span())
	case *ast.ObjectPattern:
		for _, f := range p.Fields {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpDup}, p.Span())
			c.asm.Push(bytecode.Inst{Op: bytecode.OpGetField, Str: f.Key}, p.Span())
			if f.Binding != nil {
				c.bindPattern(f.Binding)
			} else {
				slot := c.declareLocal(f.Key)
				c.asm.Push(bytecode.Inst{Op: bytecode.OpStoreLocal, A: slot}, p.Span())
			}
		}
		c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, p.Span())
	default:
		c.errorf(diag.CompileBadPattern, pat.Span(), "unsupported binding pattern %T", pat)
	}
}

func (c *Compiler) compileAssign(n *ast.AssignExpr, needs Needs) {
	switch target := n.Target.(type) {
	case *ast.Ident:
		slot, ok := c.resolveLocal(target.Name)
		if !ok {
			c.errorf(diag.CompileUnknownName, target.Span(), "assignment to unknown local %q", target.Name)
			return
		}
		c.compileCompoundRHS(n, func() { c.asm.Push(bytecode.Inst{Op: bytecode.OpLoadLocal, A: slot}, n.Span()) })
		c.asm.Push(bytecode.Inst{Op: bytecode.OpStoreLocal, A: slot}, n.Span())
		if needs == NeedsValue {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpLoadLocal, A: slot}, n.Span())
		}
	case *ast.FieldExpr:
		c.compileExpr(target.Target, NeedsValue)
		c.compileCompoundRHS(n, func() {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpDup}, n.Span())
			c.asm.Push(bytecode.Inst{Op: bytecode.OpGetField, Str: target.Name}, n.Span())
		})
		c.asm.Push(bytecode.Inst{Op: bytecode.OpSetField, Str: target.Name}, n.Span())
		if needs == NeedsValue {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpConstUnit}, n.Span())
		}
	case *ast.IndexExpr:
		c.compileExpr(target.Target, NeedsValue)
		c.compileExpr(target.Index, NeedsValue)
		c.compileCompoundRHS(n, func() {
			c.compileExpr(target.Target, NeedsValue)
			c.compileExpr(target.Index, NeedsValue)
			c.asm.Push(bytecode.Inst{Op: bytecode.OpGetIndex}, n.Span())
		})
		c.asm.Push(bytecode.Inst{Op: bytecode.OpSetIndex}, n.Span())
		if needs == NeedsValue {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpConstUnit}, n.Span())
		}
	default:
		c.errorf(diag.CompileInvalidAssignTarget, n.Span(), "unsupported assignment target %T", target)
	}
}

// compileCompoundRHS emits the right-hand side for a `=`/`+=`/-=/*=/ /=
// assignment; for compound forms it first re-reads the current value
// (via reread, which must leave exactly one copy on the stack) and
// combines it with the new value using the matching binary op.
func (c *Compiler) compileCompoundRHS(n *ast.AssignExpr, reread func()) {
	if n.Op == ast.AssignSet {
		c.compileExpr(n.Value, NeedsValue)
		return
	}
	reread()
	c.compileExpr(n.Value, NeedsValue)
	var op bytecode.Op
	switch n.Op {
	case ast.AssignAdd:
		op = bytecode.OpAdd
	case ast.AssignSub:
		op = bytecode.OpSub
	case ast.AssignMul:
		op = bytecode.OpMul
	case ast.AssignDiv:
		op = bytecode.OpDiv
	}
	c.asm.Push(bytecode.Inst{Op: op}, n.Span())
}

func (c *Compiler) compileIf(n *ast.IfExpr, needs Needs) {
	c.compileExpr(n.Cond, NeedsValue)
	elseLbl := c.asm.NewLabel()
	endLbl := c.asm.NewLabel()
	c.asm.PushJump(bytecode.OpJumpIfNot, elseLbl, n.Span())
	c.compileBlock(n.Then, needs)
	c.asm.PushJump(bytecode.OpJump, endLbl, n.Span())
	c.asm.Here(elseLbl)
	switch els := n.Else.(type) {
	case nil:
		if needs == NeedsValue {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpConstUnit}, n.Span())
		}
	case *ast.BlockExpr:
		c.compileBlock(els, needs)
	default:
		c.compileExpr(n.Else, needs)
	}
	c.asm.Here(endLbl)
}

func (c *Compiler) compileWhile(n *ast.WhileExpr, needs Needs) {
	startLbl := c.asm.NewLabel()
	endLbl := c.asm.NewLabel()
	c.asm.Here(startLbl)
	c.compileExpr(n.Cond, NeedsValue)
	c.asm.PushJump(bytecode.OpJumpIfNot, endLbl, n.Span())
	c.loops = append(c.loops, loopCtx{label: n.Label, breakLabel: endLbl, continueLbl: startLbl, breakSlot: -1})
	c.compileBlock(n.Body, NeedsNone)
	c.loops = c.loops[:len(c.loops)-1]
	c.asm.PushJump(bytecode.OpJump, startLbl, n.Span())
	c.asm.Here(endLbl)
	if needs == NeedsValue {
		c.asm.Push(bytecode.Inst{Op: bytecode.OpConstUnit}, n.Span())
	}
}

func (c *Compiler) compileLoop(n *ast.LoopExpr, needs Needs) {
	startLbl := c.asm.NewLabel()
	endLbl := c.asm.NewLabel()
	breakSlot := -1
	if needs == NeedsValue {
		breakSlot = c.declareLocal("")
		c.asm.Push(bytecode.Inst{Op: bytecode.OpConstUnit}, n.Span())
		c.asm.Push(bytecode.Inst{Op: bytecode.OpStoreLocal, A: breakSlot}, n.Span())
	}
	c.asm.Here(startLbl)
	c.loops = append(c.loops, loopCtx{label: n.Label, breakLabel: endLbl, continueLbl: startLbl, breakSlot: breakSlot})
	c.compileBlock(n.Body, NeedsNone)
	c.loops = c.loops[:len(c.loops)-1]
	c.asm.PushJump(bytecode.OpJump, startLbl, n.Span())
	c.asm.Here(endLbl)
	if needs == NeedsValue {
		c.asm.Push(bytecode.Inst{Op: bytecode.OpLoadLocal, A: breakSlot}, n.Span())
	}
}

// compileFor lowers `for pat in iter { body }` onto the iteration
// protocol (OpIterInit/OpIterNext), matching description of
// for-loops as sugar over that protocol rather than a distinct opcode.
func (c *Compiler) compileFor(n *ast.ForExpr, needs Needs) {
	c.compileExpr(n.Iter, NeedsValue)
	c.asm.Push(bytecode.Inst{Op: bytecode.OpIterInit}, n.Span())
	startLbl := c.asm.NewLabel()
	endLbl := c.asm.NewLabel()
	c.asm.Here(startLbl)
	c.asm.Push(bytecode.Inst{Op: bytecode.OpIterNext}, n.Span())
	// OpIterNext pushes Option<Value>; OpOptionIsSome tests it without
	// popping: None ends the loop, Some(v) continues with v on the stack.
	c.asm.Push(bytecode.Inst{Op: bytecode.OpOptionIsSome}, n.Span())
	noneLbl := c.asm.NewLabel()
	c.asm.PushJump(bytecode.OpJumpIfNot, noneLbl, n.Span())
	// Some path: unwrap Option<Value> to Value before binding the loop variable.
	c.asm.Push(bytecode.Inst{Op: bytecode.OpOptionUnwrap}, n.Span())
	c.pushScope()
	c.bindPattern(n.Binding)
	c.loops = append(c.loops, loopCtx{label: n.Label, breakLabel: endLbl, continueLbl: startLbl, breakSlot: -1, extraExitPops: 1})
	c.compileBlock(n.Body, NeedsNone)
	c.loops = c.loops[:len(c.loops)-1]
	c.popScope()
	c.asm.PushJump(bytecode.OpJump, startLbl, n.Span())
	c.asm.Here(noneLbl)
	// None path: drop the leftover Option and the iterator handle beneath it.
	c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, n.Span())
	c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, n.Span())
	c.asm.Here(endLbl)
	if needs == NeedsValue {
		c.asm.Push(bytecode.Inst{Op: bytecode.OpConstUnit}, n.Span())
	}
}

func (c *Compiler) findLoop(label string) (loopCtx, bool) {
	if label == "" {
		if len(c.loops) == 0 {
			return loopCtx{}, false
		}
		return c.loops[len(c.loops)-1], true
	}
	for i := len(c.loops) - 1; i >= 0; i-- {
		if c.loops[i].label == label {
			return c.loops[i], true
		}
	}
	return loopCtx{}, false
}

func (c *Compiler) compileBreak(n *ast.BreakExpr) {
	lc, ok := c.findLoop(n.Label)
	if !ok {
		c.errorf(diag.CompileUnsupportedForm, n.Span(), "break outside of a loop")
		return
	}
	if n.Value != nil {
		c.compileExpr(n.Value, NeedsValue)
		if lc.breakSlot >= 0 {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpStoreLocal, A: lc.breakSlot}, n.Span())
		} else {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, n.Span())
		}
	}
	for i := 0; i < lc.extraExitPops; i++ {
		c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, n.Span())
	}
	c.asm.PushJump(bytecode.OpJump, lc.breakLabel, n.Span())
}

func (c *Compiler) compileContinue(n *ast.ContinueExpr) {
	lc, ok := c.findLoop(n.Label)
	if !ok {
		c.errorf(diag.CompileUnsupportedForm, n.Span(), "continue outside of a loop")
		return
	}
	c.asm.PushJump(bytecode.OpJump, lc.continueLbl, n.Span())
}

func (c *Compiler) compileReturn(n *ast.ReturnExpr) {
	if n.Value != nil {
		c.compileExpr(n.Value, NeedsValue)
		c.asm.Push(bytecode.Inst{Op: bytecode.OpReturn}, n.Span())
		return
	}
	c.asm.Push(bytecode.Inst{Op: bytecode.OpReturnUnit}, n.Span())
}

func (c *Compiler) compileCall(n *ast.CallExpr, needs Needs) {
	switch callee := n.Callee.(type) {
	case *ast.Ident:
		if slot, ok := c.resolveLocal(callee.Name); ok {
			// Calling a local (a closure value): push it, then args, then
			// OpCallFn.
			c.asm.Push(bytecode.Inst{Op: bytecode.OpLoadLocal, A: slot}, callee.Span())
			for _, a := range n.Args {
				c.compileExpr(a, NeedsValue)
			}
			c.emitIf(needs, bytecode.Inst{Op: bytecode.OpCallFn, B: len(n.Args)}, n.Span())
			return
		}
		for _, a := range n.Args {
			c.compileExpr(a, NeedsValue)
		}
		hash := c.hashOf([]string{callee.Name})
		c.emitIf(needs, bytecode.Inst{Op: bytecode.OpCall, Hash: hash, Str: callee.Name, B: len(n.Args)}, n.Span())
	case *ast.Path:
		for _, a := range n.Args {
			c.compileExpr(a, NeedsValue)
		}
		hash := c.hashOf(callee.Segments)
		name := callee.Segments[len(callee.Segments)-1]
		c.emitIf(needs, bytecode.Inst{Op: bytecode.OpCall, Hash: hash, Str: name, B: len(n.Args)}, n.Span())
	case *ast.FieldExpr:
		// `recv.method(args)` lowers to an instance-function call: push
		// the receiver, then args, then OpCall with Flag set so the VM
		// knows to compute H_inst(type_of(recv), name) against the
		// receiver's runtime type rather than resolve Hash directly — the
		// static type isn't known until then, so the linker's Resolve
		// pass skips Flag-set calls rather than treating them as
		// unresolved.
		c.compileExpr(callee.Target, NeedsValue)
		for _, a := range n.Args {
			c.compileExpr(a, NeedsValue)
		}
		c.emitIf(needs, bytecode.Inst{Op: bytecode.OpCall, Str: callee.Name, B: len(n.Args) + 1, Flag: true}, n.Span())
	default:
		c.compileExpr(n.Callee, NeedsValue)
		for _, a := range n.Args {
			c.compileExpr(a, NeedsValue)
		}
		c.emitIf(needs, bytecode.Inst{Op: bytecode.OpCallFn, B: len(n.Args)}, n.Span())
	}
}

func (c *Compiler) compileBinary(n *ast.BinaryExpr, needs Needs) {
	// `and`/`or` and `??` short-circuit and so cannot lower to a plain
	// binary opcode; everything else evaluates both sides eagerly.
	switch n.Op {
	case ast.OpAnd:
		c.compileExpr(n.Left, NeedsValue)
		c.asm.Push(bytecode.Inst{Op: bytecode.OpDup}, n.Span())
		endLbl := c.asm.NewLabel()
		c.asm.PushJump(bytecode.OpJumpIfNot, endLbl, n.Span())
		c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, n.Span())
		c.compileExpr(n.Right, NeedsValue)
		c.asm.Here(endLbl)
		if needs == NeedsNone {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, n.Span())
		}
		return
	case ast.OpOr:
		c.compileExpr(n.Left, NeedsValue)
		c.asm.Push(bytecode.Inst{Op: bytecode.OpDup}, n.Span())
		endLbl := c.asm.NewLabel()
		c.asm.PushJump(bytecode.OpJumpIf, endLbl, n.Span())
		c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, n.Span())
		c.compileExpr(n.Right, NeedsValue)
		c.asm.Here(endLbl)
		if needs == NeedsNone {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, n.Span())
		}
		return
	case ast.OpCoalesce:
		c.compileExpr(n.Left, NeedsValue)
		c.asm.Push(bytecode.Inst{Op: bytecode.OpOptionIsSome}, n.Span())
		noneLbl := c.asm.NewLabel()
		endLbl := c.asm.NewLabel()
		c.asm.PushJump(bytecode.OpJumpIfNot, noneLbl, n.Span())
		c.asm.Push(bytecode.Inst{Op: bytecode.OpOptionUnwrap}, n.Span())
		c.asm.PushJump(bytecode.OpJump, endLbl, n.Span())
		c.asm.Here(noneLbl)
		c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, n.Span())
		c.compileExpr(n.Right, NeedsValue)
		c.asm.Here(endLbl)
		if needs == NeedsNone {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, n.Span())
		}
		return
	}
	c.compileExpr(n.Left, NeedsValue)
	c.compileExpr(n.Right, NeedsValue)
	op, ok := binaryOp(n.Op)
	if !ok {
		c.errorf(diag.CompileUnsupportedForm, n.Span(), "unsupported binary operator")
		return
	}
	c.emitIf(needs, bytecode.Inst{Op: op}, n.Span())
}

func binaryOp(op ast.BinaryOp) (bytecode.Op, bool) {
	switch op {
	case ast.OpEq:
		return bytecode.OpEq, true
	case ast.OpNeq:
		return bytecode.OpNeq, true
	case ast.OpLt:
		return bytecode.OpLt, true
	case ast.OpLe:
		return bytecode.OpLe, true
	case ast.OpGt:
		return bytecode.OpGt, true
	case ast.OpGe:
		return bytecode.OpGe, true
	case ast.OpAdd:
		return bytecode.OpAdd, true
	case ast.OpSub:
		return bytecode.OpSub, true
	case ast.OpMul:
		return bytecode.OpMul, true
	case ast.OpDiv:
		return bytecode.OpDiv, true
	case ast.OpRem:
		return bytecode.OpRem, true
	case ast.OpIs:
		return bytecode.OpEq, true // `is` compares the two operand values; the VM's Eq has no type-identity special case
	case ast.OpIsNot:
		return bytecode.OpNeq, true
	}
	return 0, false
}

func (c *Compiler) compileTemplate(n *ast.TemplateLit, needs Needs) {
	count := 0
	for i, frag := range n.Fragments {
		if frag != "" {
			idx := c.asm.StringConst(frag)
			c.asm.Push(bytecode.Inst{Op: bytecode.OpConstString, A: idx}, n.Span())
			count++
		}
		if i < len(n.Exprs) {
			c.compileExpr(n.Exprs[i], NeedsValue)
			count++
		}
	}
	if len(n.Exprs) == 0 {
		c.bag.Warn(diag.Warning{Kind: diag.WarnTemplateWithoutExpansions, Span: n.Span()})
	}
	if count == 0 {
		idx := c.asm.StringConst("")
		c.asm.Push(bytecode.Inst{Op: bytecode.OpConstString, A: idx}, n.Span())
		count = 1
	}
	c.emitIf(needs, bytecode.Inst{Op: bytecode.OpConcat, A: count}, n.Span())
}

func (c *Compiler) compileObject(n *ast.ObjectExpr, needs Needs) {
	start := -1
	for _, f := range n.Fields {
		idx := c.asm.KeyConst(f.Key)
		if start < 0 {
			start = idx
		}
		if f.Value != nil {
			c.compileExpr(f.Value, NeedsValue)
		} else {
			// shorthand `#{a}` means `#{a: a}`
			c.compileIdent(&ast.Ident{Base: f.Base, Name: f.Key}, NeedsValue)
		}
	}
	c.emitIf(needs, bytecode.Inst{Op: bytecode.OpMakeObject, A: len(n.Fields), B: start}, n.Span())
}

// compileClosure lowers a closure body as its own Function, appended to
// c.funcs for the caller (compiler.CompileProgram) to link alongside
// every top-level fn; OpMakeClosure then names it by its Hash, which
// the VM looks up in the linked Unit (operand A, its position in
// c.funcs, is not read at run time). Closures compile to their own
// function plus a capture list.
func (c *Compiler) compileClosure(n *ast.ClosureExpr, needs Needs) {
	sub := New(c.modPath)
	// Captures: any free variable resolved against the enclosing
	// compiler's scopes is loaded before the closure body runs and
	// declared as a leading local in the closure's own frame, the
	// simplest correct capture-by-value strategy.
	var captures []string
	for _, name := range freeVars(n) {
		slot, ok := c.resolveLocal(name)
		if !ok {
			continue
		}
		c.asm.Push(bytecode.Inst{Op: bytecode.OpLoadLocal, A: slot}, n.Span())
		sub.declareLocal(name)
		captures = append(captures, name)
	}
	for _, p := range n.Params {
		sub.declareLocal(p.Name)
	}
	switch body := n.Body.(type) {
	case *ast.BlockExpr:
		sub.compileBlock(body, NeedsValue)
	default:
		sub.compileExpr(body, NeedsValue)
	}
	sub.asm.Push(bytecode.Inst{Op: bytecode.OpReturn}, n.Span())
	idx := len(c.funcs)
	hash := uint64(item.FnHash(item.New(append(append([]string{}, c.modPath...), fmt.Sprintf("$closure%d", idx))...)))
	fn := &bytecode.Function{Name: fmt.Sprintf("closure#%d", idx), Hash: hash, Arity: len(captures) + len(n.Params), Locals: sub.nextSlot, Asm: sub.asm, IsAsync: n.Async}
	c.funcs = append(c.funcs, fn)
	c.funcs = append(c.funcs, sub.funcs...)
	c.errs = append(c.errs, sub.errs...)
	c.bag.Warnings = append(c.bag.Warnings, sub.bag.Warnings...)
	c.emitIf(needs, bytecode.Inst{Op: bytecode.OpMakeClosure, A: idx, B: len(captures), Hash: hash}, n.Span())
}

// freeVars does a shallow scan for bare identifiers referenced in a
// closure body, other than its own parameters, in first-use order;
// compileClosure captures only those that resolve to an enclosing
// local. The walk descends into blocks, binary and unary expressions,
// calls, field and index access, if, and let values only: an
// identifier used solely inside any other form (loops, match,
// assignments, vec/tuple/object/template literals, return, try, await,
// yield, nested closures) is not found and so is not captured.
func freeVars(n *ast.ClosureExpr) []string {
	seen := map[string]bool{}
	var out []string
	params := map[string]bool{}
	for _, p := range n.Params {
		params[p.Name] = true
	}
	var walk func(e ast.Expr)
	walk = func(e ast.Expr) {
		switch x := e.(type) {
		case nil:
			return
		case *ast.Ident:
			if !params[x.Name] && !seen[x.Name] {
				seen[x.Name] = true
				out = append(out, x.Name)
			}
		case *ast.BlockExpr:
			for _, s := range x.Stmts {
				walk(s)
			}
			walk(x.Tail)
		case *ast.BinaryExpr:
			walk(x.Left)
			walk(x.Right)
		case *ast.UnaryExpr:
			walk(x.Operand)
		case *ast.CallExpr:
			walk(x.Callee)
			for _, a := range x.Args {
				walk(a)
			}
		case *ast.FieldExpr:
			walk(x.Target)
		case *ast.IndexExpr:
			walk(x.Target)
			walk(x.Index)
		case *ast.IfExpr:
			walk(x.Cond)
			walk(x.Then)
			walk(x.Else)
		case *ast.LetExpr:
			walk(x.Value)
		}
	}
	switch b := n.Body.(type) {
	case *ast.BlockExpr:
		walk(b)
	default:
		walk(n.Body)
	}
	return out
}

// compileSelect lowers `select { b = fut => body, ... }` by pushing
// every arm's future and issuing one select-mode OpAwait, which races
// them and leaves the winner's (value, index) pair on the stack; the
// compiler then emits a chain of index comparisons that runs the
// matching arm's body with the value bound.
func (c *Compiler) compileSelect(n *ast.SelectExpr, needs Needs) {
	for _, arm := range n.Arms {
		c.compileExpr(arm.Future, NeedsValue)
	}
	// Select-mode OpAwait races all n.Arms futures and leaves the winner
	// on the stack as a (value, index) pair, value below index, so the
	// per-arm dispatch below can compare the index while still leaving
	// the value reachable for the matched arm's binding.
	c.asm.Push(bytecode.Inst{Op: bytecode.OpAwait, A: len(n.Arms)}, n.Span())
	endLbl := c.asm.NewLabel()
	for i, arm := range n.Arms {
		nextLbl := c.asm.NewLabel()
		c.asm.Push(bytecode.Inst{Op: bytecode.OpDup}, arm.Span())
		c.asm.Push(bytecode.Inst{Op: bytecode.OpConstInt, I: int64(i)}, arm.Span())
		c.asm.Push(bytecode.Inst{Op: bytecode.OpEq}, arm.Span())
		c.asm.PushJump(bytecode.OpJumpIfNot, nextLbl, arm.Span())
		c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, arm.Span()) // drop the index
		c.pushScope()
		if arm.Binding != "" {
			slot := c.declareLocal(arm.Binding)
			c.asm.Push(bytecode.Inst{Op: bytecode.OpStoreLocal, A: slot}, arm.Span())
		} else {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, arm.Span())
		}
		c.compileExpr(arm.Body, needs)
		c.popScope()
		c.asm.PushJump(bytecode.OpJump, endLbl, arm.Span())
		c.asm.Here(nextLbl)
	}
	// No arm's index matched: every branch above only discards its own
	// dup of the index, so (value, index) are both still live here.
	c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, n.Span())
	c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, n.Span())
	c.asm.Push(bytecode.Inst{Op: bytecode.OpConstString, Str: "no select arm matched"}, n.Span())
	c.asm.Push(bytecode.Inst{Op: bytecode.OpPanic}, n.Span())
	c.asm.Here(endLbl)
}

func (c *Compiler) compileMatch(n *ast.MatchExpr, needs Needs) {
	c.compileExpr(n.Subject, NeedsValue)
	endLbl := c.asm.NewLabel()
	for _, arm := range n.Arms {
		nextLbl := c.asm.NewLabel()
		c.asm.Push(bytecode.Inst{Op: bytecode.OpDup}, arm.Span())
		c.pushScope()
		consumed := c.compilePatternTest(arm.Pattern, nextLbl)
		if arm.Guard != nil {
			c.compileExpr(arm.Guard, NeedsValue)
			c.asm.PushJump(bytecode.OpJumpIfNot, nextLbl, arm.Span())
		}
		if !consumed {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, arm.Span())
		}
		// Matched: drop the original subject too before running the body.
		c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, arm.Span())
		c.compileExpr(arm.Body, needs)
		c.popScope()
		c.asm.PushJump(bytecode.OpJump, endLbl, arm.Span())
		c.asm.Here(nextLbl)
		// Reached either by the pattern test failing or by a guard
		// rejecting the match. For a refutable pattern the subject's
		// duplicate is still on the stack at this point (consumed ==
		// false) and needs discarding; an irrefutable pattern already
		// consumed it at bind time, before the guard ever ran, so there
		// is nothing left to clean up here.
		if !consumed {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, arm.Span())
		}
	}
	// Exhaustiveness is a semantic property the compiler doesn't prove
	// here; an unmatched value panics at runtime instead of failing to
	// compile.
	c.asm.Push(bytecode.Inst{Op: bytecode.OpConstString, Str: "no match arm matched"}, n.Span())
	c.asm.Push(bytecode.Inst{Op: bytecode.OpPanic}, n.Span())
	c.asm.Here(endLbl)
}

// compilePatternTest emits code that, given the match subject
// duplicated on top of the stack, tests and/or binds against it without
// ever consuming that duplicate directly (tests operate on a further
// Dup of it), then either falls through or jumps to failLbl. Both
// outcomes leave the original duplicate untouched EXCEPT when the
// pattern is irrefutable and binds the whole value (Wildcard, a
// single-segment PathPattern) — those consume it via Pop/OpStoreLocal
// and report true so the caller skips its own cleanup Pop.
func (c *Compiler) compilePatternTest(pat ast.Pattern, failLbl bytecode.Label) bool {
	switch p := pat.(type) {
	case *ast.WildcardPattern:
		c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, p.Span())
		return true
	case *ast.PathPattern:
		if len(p.Segments) == 1 {
			slot := c.declareLocal(p.Segments[0])
			c.asm.Push(bytecode.Inst{Op: bytecode.OpStoreLocal, A: slot}, p.Span())
			return true
		}
		// Multi-segment: an enum-variant/type-path match, compared by
		// hash equality against a copy of the subject's dynamic type tag
		// so the original duplicate survives on both branches.
		c.emitTagCheck(c.hashOf(p.Segments), p.Span(), failLbl)
		return false
	case *ast.LiteralPattern:
		c.asm.Push(bytecode.Inst{Op: bytecode.OpDup}, p.Span())
		c.compileExpr(p.Value, NeedsValue)
		c.asm.Push(bytecode.Inst{Op: bytecode.OpEq}, p.Span())
		c.asm.PushJump(bytecode.OpJumpIfNot, failLbl, p.Span())
		return false
	case *ast.OptionPattern:
		c.asm.Push(bytecode.Inst{Op: bytecode.OpOptionIsSome}, p.Span())
		if !p.Some {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpNot}, p.Span())
		}
		c.asm.PushJump(bytecode.OpJumpIfNot, failLbl, p.Span())
		if p.Inner != nil {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpDup}, p.Span())
			c.asm.Push(bytecode.Inst{Op: bytecode.OpOptionUnwrap}, p.Span())
			if inner := c.compilePatternTest(p.Inner, failLbl); !inner {
				c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, p.Span())
			}
		}
		return false
	case *ast.ResultPattern:
		c.asm.Push(bytecode.Inst{Op: bytecode.OpResultIsOk}, p.Span())
		if !p.Ok {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpNot}, p.Span())
		}
		c.asm.PushJump(bytecode.OpJumpIfNot, failLbl, p.Span())
		if p.Inner != nil {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpDup}, p.Span())
			c.asm.Push(bytecode.Inst{Op: bytecode.OpResultUnwrap}, p.Span())
			if inner := c.compilePatternTest(p.Inner, failLbl); !inner {
				c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, p.Span())
			}
		}
		return false
	case *ast.TuplePattern:
		if len(p.Path) > 0 {
			c.emitTagCheck(c.hashOf(p.Path), p.Span(), failLbl)
		}
		for i, el := range p.Elems {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpDup}, p.Span())
			c.asm.Push(bytecode.Inst{Op: bytecode.OpConstInt, I: int64(i)}, p.Span())
			c.asm.Push(bytecode.Inst{Op: bytecode.OpGetIndex}, p.Span())
			if ok := c.compilePatternTest(el, failLbl); !ok {
				c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, p.Span())
			}
		}
		return false
	case *ast.ObjectPattern:
		if len(p.Path) > 0 {
			c.emitTagCheck(c.hashOf(p.Path), p.Span(), failLbl)
		}
		for _, f := range p.Fields {
			c.asm.Push(bytecode.Inst{Op: bytecode.OpDup}, p.Span())
			c.asm.Push(bytecode.Inst{Op: bytecode.OpGetField, Str: f.Key}, p.Span())
			if f.Binding != nil {
				if ok := c.compilePatternTest(f.Binding, failLbl); !ok {
					c.asm.Push(bytecode.Inst{Op: bytecode.OpPop}, p.Span())
				}
			} else {
				slot := c.declareLocal(f.Key)
				c.asm.Push(bytecode.Inst{Op: bytecode.OpStoreLocal, A: slot}, p.Span())
			}
		}
		return false
	default:
		c.errorf(diag.CompileBadPattern, pat.Span(), "unsupported match pattern %T", pat)
		return false
	}
}

// emitTagCheck compares the runtime type hash of a duplicate of the
// value on top of the stack against want, jumping to failLbl on
// mismatch. The original value is left untouched on both branches.
func (c *Compiler) emitTagCheck(want uint64, sp span.Span, failLbl bytecode.Label) {
	c.asm.Push(bytecode.Inst{Op: bytecode.OpDup}, sp)
	c.asm.Push(bytecode.Inst{Op: bytecode.OpTypeHash}, sp)
	c.asm.Push(bytecode.Inst{Op: bytecode.OpConstInt, I: int64(want)}, sp)
	c.asm.Push(bytecode.Inst{Op: bytecode.OpEq}, sp)
	c.asm.PushJump(bytecode.OpJumpIfNot, failLbl, sp)
}

// Errors returns every CompileError accumulated so far, including from
// nested closures compiled along the way.
func (c *Compiler) Errors() []*diag.CompileError { return c.errs }

// Functions returns every nested closure Function compiled so far (the
// top-level function itself is returned separately by CompileFunction).
func (c *Compiler) Functions() []*bytecode.Function { return c.funcs }

// Warnings returns every non-fatal Warning accumulated so far, including
// from nested closures compiled along the way.
func (c *Compiler) Warnings() []diag.Warning { return c.bag.Warnings }
