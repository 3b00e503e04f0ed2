package compiler

import (
	"github.com/aledsdavies/weft/ast"
	"github.com/aledsdavies/weft/bytecode"
	"github.com/aledsdavies/weft/diag"
	"github.com/aledsdavies/weft/item"
	"github.com/aledsdavies/weft/span"
)

// ProgramResult is everything CompileProgram produces from one source
// file's top-level declarations: every function ready for
// bytecode.Link (fn/impl-method bodies, their nested closures, and a
// synthesized constructor per struct/enum-variant), the entry point's
// hash if a `main` function was declared, every CompileError
// accumulated along the way, and every non-fatal Warning.
type ProgramResult struct {
	Functions []*bytecode.Function
	EntryHash uint64
	HasEntry  bool
	Errors    []*diag.CompileError
	Warnings  []diag.Warning
}

// CompileProgram lowers every declaration in prog, grounded on the
// same per-declaration walk rune's Compiler::compile does over a
// crate's item tree before handing everything to the linker.
// Struct/enum declarations have no body to run; they instead get a
// synthesized constructor function so `Foo(1, 2)` or `Color::Red`
// compile to an ordinary OpCall, the same as any other callable.
func CompileProgram(modPath []string, prog *ast.Program) *ProgramResult {
	out := &ProgramResult{}
	for _, d := range prog.Decls {
		switch decl := d.(type) {
		case *ast.UseDecl:
			// Cross-unit name resolution happens when the caller installs
			// modules into a Context; nothing to lower here.
		case *ast.FnDecl:
			hash := uint64(item.FnHash(item.New(qualify(modPath, decl.Name)...)))
			fn, nested, errs, warns := compileDecl(modPath, decl.Name, hash, decl.Params, decl.Body, decl.Async, decl.HasYield)
			out.Functions = append(out.Functions, fn)
			out.Functions = append(out.Functions, nested...)
			out.Errors = append(out.Errors, errs...)
			out.Warnings = append(out.Warnings, warns...)
			if decl.Name == "main" {
				out.EntryHash = hash
				out.HasEntry = true
			}
		case *ast.ImplDecl:
			typeHash := item.TypeHash(item.New(qualify(modPath, decl.TypeName)...))
			for _, m := range decl.Methods {
				hash := uint64(item.InstFnHash(typeHash, m.Name))
				fn, nested, errs, warns := compileDecl(modPath, m.Name, hash, m.Params, m.Body, m.Async, m.HasYield)
				out.Functions = append(out.Functions, fn)
				out.Functions = append(out.Functions, nested...)
				out.Errors = append(out.Errors, errs...)
				out.Warnings = append(out.Warnings, warns...)
			}
		case *ast.StructDecl:
			hash := uint64(item.TypeHash(item.New(qualify(modPath, decl.Name)...)))
			out.Functions = append(out.Functions, constructorFunc(decl.Name, hash, decl.Body, decl.Fields, decl.Arity))
		case *ast.EnumDecl:
			for _, v := range decl.Variants {
				// Variant paths are matched unqualified by module path
				// (e.g. `Color::Red`), mirroring how compilePatternTest's
				// multi-segment case hashes a path literally rather than
				// prefixing it with the enclosing module.
				hash := uint64(item.TypeHash(item.New(decl.Name, v.Name)))
				out.Functions = append(out.Functions, constructorFunc(v.Name, hash, v.Body, v.Fields, v.Arity))
			}
		}
	}
	return out
}

// compileDecl lowers one fn/impl-method body the same way CompileFunction
// does, but also surfaces the nested closures the body's Compiler
// accumulated along the way — CompileFunction's return throws those
// away, which is fine for its direct callers (compiler_test.go's
// single-function scenarios) but would silently drop every closure a
// program-level function declares.
func compileDecl(modPath []string, name string, hash uint64, params []ast.Param, body *ast.BlockExpr, async, isGen bool) (*bytecode.Function, []*bytecode.Function, []*diag.CompileError, []diag.Warning) {
	c := New(modPath)
	checkMixedAwaitYield(c, async, isGen, body.Span())
	for _, p := range params {
		c.declareLocal(p.Name)
	}
	c.compileBlock(body, NeedsValue)
	c.asm.Push(bytecode.Inst{Op: bytecode.OpReturn}, body.Span())
	fn := &bytecode.Function{Name: name, Hash: hash, Arity: len(params), Locals: c.nextSlot, Asm: c.asm, IsAsync: async, IsGen: isGen}
	return fn, c.Functions(), c.Errors(), c.Warnings()
}

func qualify(modPath []string, name string) []string {
	full := make([]string, 0, len(modPath)+1)
	full = append(full, modPath...)
	return append(full, name)
}

// constructorFunc builds the synthesized body for one struct/enum-variant:
// an N-arg function taking its fields positionally (in declaration order
// for both tuple and named shapes) and emitting a single OpMakeStruct.
func constructorFunc(name string, hash uint64, body ast.StructBody, fields []string, arity int) *bytecode.Function {
	asm := bytecode.NewAssembly()
	sp := span.Span{}
	n := arity
	named := body == ast.StructNamed
	if named {
		n = len(fields)
	}
	keyStart := 0
	if named {
		for i, f := range fields {
			idx := asm.KeyConst(f)
			if i == 0 {
				keyStart = idx
			}
		}
	}
	for i := 0; i < n; i++ {
		asm.Push(bytecode.Inst{Op: bytecode.OpLoadLocal, A: i}, sp)
	}
	asm.Push(bytecode.Inst{Op: bytecode.OpMakeStruct, Hash: hash, A: n, B: keyStart, Flag: named}, sp)
	asm.Push(bytecode.Inst{Op: bytecode.OpReturn}, sp)
	return &bytecode.Function{Name: name, Hash: hash, Arity: n, Locals: n, Asm: asm}
}
