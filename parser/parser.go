// Package parser implements a recursive-descent parser with two-token
// lookahead over weft/token, producing weft/ast nodes, in the same
// recursive-descent structure and error-reporting style as devcmd's
// pkgs/parser, adapted from devcmd's shell-command grammar to this
// expression-oriented language's grammar.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aledsdavies/weft/ast"
	"github.com/aledsdavies/weft/diag"
	"github.com/aledsdavies/weft/span"
	"github.com/aledsdavies/weft/token"
)

// Parser holds the token stream and cursor; it never backtracks, using
// peek/peek2 lookahead and occasional parse-time disambiguation instead
// (e.g. label-vs-block after a loop keyword).
type Parser struct {
	toks   []token.Token
	pos    int
	errs   []*diag.ParseError
}

// New returns a Parser over an already-lexed token stream.
func New(toks []token.Token) *Parser {
	return &Parser{toks: toks}
}

// ParseProgram parses a complete source file into an *ast.Program. Parse
// errors are collected and returned alongside whatever partial tree was
// recovered; callers should treat a non-empty error slice as fatal for
// compilation.
func ParseProgram(toks []token.Token) (*ast.Program, []*diag.ParseError) {
	p := New(toks)
	start := p.here()
	var decls []ast.Decl
	for !p.at(token.EOF) {
		d := p.parseDecl()
		if d != nil {
			decls = append(decls, d)
		} else {
			p.recoverToDeclBoundary()
		}
	}
	end := p.here()
	return ast.NewProgram(span.Join(start, end), decls), p.errs
}

// --- cursor helpers ---

func (p *Parser) peek() token.Token {
	if p.pos >= len(p.toks) {
		return p.toks[len(p.toks)-1] // EOF sentinel
	}
	return p.toks[p.pos]
}

func (p *Parser) peek2() token.Token {
	if p.pos+1 >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+1]
}

func (p *Parser) here() span.Span { return p.peek().Span }

func (p *Parser) at(k token.Kind) bool { return p.peek().Kind == k }

func (p *Parser) advance() token.Token {
	t := p.peek()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) accept(k token.Kind) (token.Token, bool) {
	if p.at(k) {
		return p.advance(), true
	}
	return token.Token{}, false
}

func (p *Parser) expect(k token.Kind) token.Token {
	if p.at(k) {
		return p.advance()
	}
	got := p.peek()
	p.errorf(diag.ParseExpectedToken, got.Span, "expected %s, found %s", k, got.Kind)
	return got
}

func (p *Parser) errorf(kind diag.ParseErrorKind, sp span.Span, format string, args ...any) {
	p.errs = append(p.errs, &diag.ParseError{Kind: kind, Span: sp, Message: fmt.Sprintf(format, args...)})
}

// recoverToDeclBoundary advances past tokens until the next token that
// plausibly begins a new declaration or statement, so one parse error
// doesn't cascade into the rest of the file.
func (p *Parser) recoverToDeclBoundary() {
	for !p.at(token.EOF) {
		switch p.peek().Kind {
		case token.KW_FN, token.KW_STRUCT, token.KW_ENUM, token.KW_IMPL, token.KW_USE, token.SEMI:
			if p.at(token.SEMI) {
				p.advance()
			}
			return
		}
		p.advance()
	}
}

// --- declarations ---

func (p *Parser) parseDecl() ast.Decl {
	switch p.peek().Kind {
	case token.KW_USE:
		return p.parseUseDecl()
	case token.KW_ASYNC:
		fallthrough
	case token.KW_FN:
		return p.parseFnDecl()
	case token.KW_STRUCT:
		return p.parseStructDecl()
	case token.KW_ENUM:
		return p.parseEnumDecl()
	case token.KW_IMPL:
		return p.parseImplDecl()
	default:
		got := p.peek()
		p.errorf(diag.ParseUnexpectedToken, got.Span, "expected a declaration, found %s", got.Kind)
		return nil
	}
}

func (p *Parser) parseUseDecl() ast.Decl {
	start := p.here()
	p.expect(token.KW_USE)
	segs := []string{p.expect(token.IDENT).Text}
	for {
		if _, ok := p.accept(token.COLONCOLON); !ok {
			break
		}
		segs = append(segs, p.expect(token.IDENT).Text)
	}
	alias := ""
	if _, ok := p.accept(token.KW_AS); ok {
		alias = p.expect(token.IDENT).Text
	}
	end := p.here()
	p.accept(token.SEMI)
	return &ast.UseDecl{Base: ast.Base{Sp: span.Join(start, end)}, Path: segs, Alias: alias}
}

func (p *Parser) parseFnDecl() *ast.FnDecl {
	start := p.here()
	async := false
	if _, ok := p.accept(token.KW_ASYNC); ok {
		async = true
	}
	p.expect(token.KW_FN)
	name := p.expect(token.IDENT).Text
	params := p.parseParamList()
	body := p.parseBlock()
	hasYield := blockContainsYield(body)
	return &ast.FnDecl{
		Base: ast.Base{Sp: span.Join(start, body.Span())}, Name: name,
		Params: params, Body: body, Async: async, HasYield: hasYield,
	}
}

func (p *Parser) parseParamList() []ast.Param {
	p.expect(token.LPAREN)
	var params []ast.Param
	for !p.at(token.RPAREN) && !p.at(token.EOF) {
		t := p.expect(token.IDENT)
		params = append(params, ast.Param{Base: ast.Base{Sp: t.Span}, Name: t.Text})
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	p.expect(token.RPAREN)
	return params
}

// blockContainsYield does a shallow scan (not descending into nested
// fn/closure bodies) to decide Generator vs plain Future lowering. The
// result is stored on the FnDecl as HasYield, which the compiler reads
// as is rather than scanning the body again.
func blockContainsYield(b *ast.BlockExpr) bool {
	found := false
	var walk func(e ast.Expr)
	walk = func(e ast.Expr) {
		if found || e == nil {
			return
		}
		switch n := e.(type) {
		case *ast.YieldExpr:
			found = true
		case *ast.BlockExpr:
			for _, s := range n.Stmts {
				walk(s)
			}
			walk(n.Tail)
		case *ast.IfExpr:
			walk(n.Cond)
			walk(n.Then)
			walk(n.Else)
		case *ast.WhileExpr:
			walk(n.Cond)
			walk(n.Body)
		case *ast.LoopExpr:
			walk(n.Body)
		case *ast.ForExpr:
			walk(n.Iter)
			walk(n.Body)
		case *ast.MatchExpr:
			walk(n.Subject)
			for _, a := range n.Arms {
				walk(a.Body)
			}
		case *ast.LetExpr:
			walk(n.Value)
		case *ast.AssignExpr:
			walk(n.Value)
		case *ast.BinaryExpr:
			walk(n.Left)
			walk(n.Right)
		case *ast.UnaryExpr:
			walk(n.Operand)
		case *ast.CallExpr:
			walk(n.Callee)
			for _, a := range n.Args {
				walk(a)
			}
		case *ast.TryExpr:
			walk(n.Value)
		case *ast.AwaitExpr:
			walk(n.Value)
		case *ast.ReturnExpr:
			walk(n.Value)
		case *ast.FieldExpr:
			walk(n.Target)
		case *ast.IndexExpr:
			walk(n.Target)
			walk(n.Index)
		}
	}
	for _, s := range b.Stmts {
		walk(s)
	}
	walk(b.Tail)
	return found
}

func (p *Parser) parseStructDecl() *ast.StructDecl {
	start := p.here()
	p.expect(token.KW_STRUCT)
	name := p.expect(token.IDENT).Text
	body, fields, arity, end := p.parseStructBody()
	return &ast.StructDecl{Base: ast.Base{Sp: span.Join(start, end)}, Name: name, Body: body, Fields: fields, Arity: arity}
}

// parseStructBody handles the three shapes `struct Foo;`, `struct
// Foo(A, B);`, and `struct Foo { a, b }` shared by structs and enum
// variants.
func (p *Parser) parseStructBody() (ast.StructBody, []string, int, span.Span) {
	switch p.peek().Kind {
	case token.SEMI:
		end := p.here()
		p.advance()
		return ast.StructUnit, nil, 0, end
	case token.LPAREN:
		p.advance()
		arity := 0
		for !p.at(token.RPAREN) && !p.at(token.EOF) {
			p.expect(token.IDENT) // positional type name, arity only matters downstream
			arity++
			if _, ok := p.accept(token.COMMA); !ok {
				break
			}
		}
		end := p.expect(token.RPAREN).Span
		p.accept(token.SEMI)
		return ast.StructTuple, nil, arity, end
	case token.LBRACE:
		p.advance()
		var fields []string
		for !p.at(token.RBRACE) && !p.at(token.EOF) {
			fields = append(fields, p.expect(token.IDENT).Text)
			if _, ok := p.accept(token.COMMA); !ok {
				break
			}
		}
		end := p.expect(token.RBRACE).Span
		return ast.StructNamed, fields, 0, end
	default:
		got := p.peek()
		p.errorf(diag.ParseUnexpectedToken, got.Span, "expected struct body, found %s", got.Kind)
		return ast.StructUnit, nil, 0, got.Span
	}
}

func (p *Parser) parseEnumDecl() *ast.EnumDecl {
	start := p.here()
	p.expect(token.KW_ENUM)
	name := p.expect(token.IDENT).Text
	p.expect(token.LBRACE)
	var variants []ast.EnumVariant
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		vstart := p.here()
		vname := p.expect(token.IDENT).Text
		body := ast.StructUnit
		var fields []string
		arity := 0
		vend := vstart
		switch p.peek().Kind {
		case token.LPAREN, token.LBRACE:
			body, fields, arity, vend = p.parseStructBody()
		default:
			vend = p.toks[p.pos-1].Span
		}
		variants = append(variants, ast.EnumVariant{
			Base: ast.Base{Sp: span.Join(vstart, vend)}, Name: vname,
			Body: body, Fields: fields, Arity: arity,
		})
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	end := p.expect(token.RBRACE).Span
	return &ast.EnumDecl{Base: ast.Base{Sp: span.Join(start, end)}, Name: name, Variants: variants}
}

func (p *Parser) parseImplDecl() *ast.ImplDecl {
	start := p.here()
	p.expect(token.KW_IMPL)
	name := p.expect(token.IDENT).Text
	p.expect(token.LBRACE)
	var methods []*ast.FnDecl
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		methods = append(methods, p.parseFnDecl())
	}
	end := p.expect(token.RBRACE).Span
	return &ast.ImplDecl{Base: ast.Base{Sp: span.Join(start, end)}, TypeName: name, Methods: methods}
}

// --- blocks and statements ---

// parseBlock parses `{ stmt; stmt; tail }`. Every statement-position
// expression is parsed as a full expression; an expression immediately
// followed by `}` (no semicolon) becomes the block's tail value,
// otherwise it's a discarded statement — blocks are expression-oriented,
// with the tail yielding the block's value.
func (p *Parser) parseBlock() *ast.BlockExpr {
	start := p.expect(token.LBRACE).Span
	var stmts []ast.Expr
	var tail ast.Expr
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		e := p.parseExpr()
		if _, ok := p.accept(token.SEMI); ok {
			stmts = append(stmts, e)
			continue
		}
		if p.at(token.RBRACE) {
			tail = e
			break
		}
		// No semicolon but more tokens follow and they aren't `}`: still
		// record it as a statement (block-like expressions such as
		// if/match/while commonly omit the trailing `;`).
		stmts = append(stmts, e)
	}
	end := p.expect(token.RBRACE).Span
	return &ast.BlockExpr{Base: ast.Base{Sp: span.Join(start, end)}, Stmts: stmts, Tail: tail}
}

// --- expressions ---

// binLevel maps an operator token to its BinaryOp and precedence level:
// or(1) < and(2) < is/is not(3) < ==/!=(4) < relational(5)
// < +/-(6) < */%(7) < ??(8) < postfix(9, handled separately).
func binLevel(k token.Kind) (ast.BinaryOp, int, bool) {
	switch k {
	case token.KW_OR:
		return ast.OpOr, 1, true
	case token.KW_AND:
		return ast.OpAnd, 2, true
	case token.EQEQ:
		return ast.OpEq, 4, true
	case token.NEQ:
		return ast.OpNeq, 4, true
	case token.LT:
		return ast.OpLt, 5, true
	case token.LE:
		return ast.OpLe, 5, true
	case token.GT:
		return ast.OpGt, 5, true
	case token.GE:
		return ast.OpGe, 5, true
	case token.PLUS:
		return ast.OpAdd, 6, true
	case token.MINUS:
		return ast.OpSub, 6, true
	case token.STAR:
		return ast.OpMul, 7, true
	case token.SLASH:
		return ast.OpDiv, 7, true
	case token.PERCENT:
		return ast.OpRem, 7, true
	case token.QUESTIONQUESTION:
		return ast.OpCoalesce, 8, true
	}
	return 0, 0, false
}

func (p *Parser) parseExpr() ast.Expr { return p.parseAssign() }

// parseAssign handles `=`, `+=`, `-=`, `*=`, `/=`, right-associative and
// restricted to l-value targets.
func (p *Parser) parseAssign() ast.Expr {
	left := p.parseBinary(1)
	var op ast.AssignOp
	switch p.peek().Kind {
	case token.EQ:
		op = ast.AssignSet
	case token.PLUSEQ:
		op = ast.AssignAdd
	case token.MINUSEQ:
		op = ast.AssignSub
	case token.STAREQ:
		op = ast.AssignMul
	case token.SLASHEQ:
		op = ast.AssignDiv
	default:
		return left
	}
	opTok := p.advance()
	if !isLvalue(left) {
		p.errorf(diag.ParseInvalidAssignTarget, left.Span(), "left-hand side of %s is not assignable", opTok.Kind)
	}
	value := p.parseAssign()
	return &ast.AssignExpr{Base: ast.Base{Sp: span.Join(left.Span(), value.Span())}, Op: op, Target: left, Value: value}
}

func isLvalue(e ast.Expr) bool {
	switch e.(type) {
	case *ast.Ident, *ast.FieldExpr, *ast.IndexExpr:
		return true
	default:
		return false
	}
}

// parseBinary implements precedence climbing for `is`/`is not` plus the
// table-driven binLevel operators; `is`/`is not` is handled outside the
// table because `is not` spans two tokens.
func (p *Parser) parseBinary(minLevel int) ast.Expr {
	left := p.parseIsLevel(minLevel)
	for {
		op, level, ok := binLevel(p.peek().Kind)
		if !ok || level < minLevel {
			break
		}
		p.advance()
		right := p.parseBinaryOperand(level)
		left = &ast.BinaryExpr{Base: ast.Base{Sp: span.Join(left.Span(), right.Span())}, Op: op, Left: left, Right: right}
	}
	return left
}

// parseBinaryOperand parses the right operand of a binary operator at
// the given level, recursing through the is/and/or levels too so a
// right operand like `a + (b or c)`'s sub-expression `b` still finds
// tighter operators below it.
func (p *Parser) parseBinaryOperand(level int) ast.Expr {
	return p.parseBinary(level + 1)
}

// parseIsLevel sits at precedence 3 (`is`/`is not`), below ==/!= (4).
func (p *Parser) parseIsLevel(minLevel int) ast.Expr {
	if minLevel > 3 {
		return p.parseEqLevel(minLevel)
	}
	left := p.parseEqLevel(4)
	for p.at(token.KW_IS) {
		p.advance()
		isNot := false
		if _, ok := p.accept(token.KW_NOT); ok {
			isNot = true
		}
		right := p.parseEqLevel(4)
		op := ast.OpIs
		if isNot {
			op = ast.OpIsNot
		}
		left = &ast.BinaryExpr{Base: ast.Base{Sp: span.Join(left.Span(), right.Span())}, Op: op, Left: left, Right: right}
	}
	return left
}

// parseEqLevel parses levels 4-8 (==/!= down through ??) via the
// table-driven climbing loop, bottoming out at unary/postfix.
func (p *Parser) parseEqLevel(minLevel int) ast.Expr {
	left := p.parseUnary()
	for {
		op, level, ok := binLevel(p.peek().Kind)
		if !ok || level < minLevel || level < 4 {
			break
		}
		p.advance()
		right := p.parseEqLevel(level + 1)
		left = &ast.BinaryExpr{Base: ast.Base{Sp: span.Join(left.Span(), right.Span())}, Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() ast.Expr {
	switch p.peek().Kind {
	case token.MINUS:
		t := p.advance()
		operand := p.parseUnary()
		return &ast.UnaryExpr{Base: ast.Base{Sp: span.Join(t.Span, operand.Span())}, Op: ast.OpNeg, Operand: operand}
	case token.BANG:
		t := p.advance()
		operand := p.parseUnary()
		return &ast.UnaryExpr{Base: ast.Base{Sp: span.Join(t.Span, operand.Span())}, Op: ast.OpNot, Operand: operand}
	case token.KW_AWAIT:
		t := p.advance()
		operand := p.parseUnary()
		return &ast.AwaitExpr{Base: ast.Base{Sp: span.Join(t.Span, operand.Span())}, Value: operand}
	default:
		return p.parsePostfix()
	}
}

// parsePostfix handles call/index/field/try, the tightest-binding forms.
func (p *Parser) parsePostfix() ast.Expr {
	e := p.parsePrimary()
	for {
		switch p.peek().Kind {
		case token.LPAREN:
			p.advance()
			var args []ast.Expr
			for !p.at(token.RPAREN) && !p.at(token.EOF) {
				args = append(args, p.parseExpr())
				if _, ok := p.accept(token.COMMA); !ok {
					break
				}
			}
			end := p.expect(token.RPAREN).Span
			e = &ast.CallExpr{Base: ast.Base{Sp: span.Join(e.Span(), end)}, Callee: e, Args: args}
		case token.LBRACKET:
			p.advance()
			idx := p.parseExpr()
			end := p.expect(token.RBRACKET).Span
			e = &ast.IndexExpr{Base: ast.Base{Sp: span.Join(e.Span(), end)}, Target: e, Index: idx}
		case token.DOT:
			p.advance()
			name := p.expect(token.IDENT)
			e = &ast.FieldExpr{Base: ast.Base{Sp: span.Join(e.Span(), name.Span)}, Target: e, Name: name.Text}
		case token.QUESTION:
			t := p.advance()
			e = &ast.TryExpr{Base: ast.Base{Sp: span.Join(e.Span(), t.Span)}, Value: e}
		default:
			return e
		}
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	t := p.peek()
	switch t.Kind {
	case token.LPAREN:
		p.advance()
		if _, ok := p.accept(token.RPAREN); ok {
			return &ast.UnitLit{Base: ast.Base{Sp: span.Join(t.Span, p.toks[p.pos-1].Span)}}
		}
		first := p.parseExpr()
		if _, ok := p.accept(token.COMMA); ok {
			elems := []ast.Expr{first}
			for !p.at(token.RPAREN) && !p.at(token.EOF) {
				elems = append(elems, p.parseExpr())
				if _, ok := p.accept(token.COMMA); !ok {
					break
				}
			}
			end := p.expect(token.RPAREN).Span
			return &ast.TupleExpr{Base: ast.Base{Sp: span.Join(t.Span, end)}, Elems: elems}
		}
		end := p.expect(token.RPAREN).Span
		return withParenSpan(first, span.Join(t.Span, end))
	case token.LBRACKET:
		return p.parseVecExpr()
	case token.HASH_LBRACE:
		return p.parseObjectExpr()
	case token.LBRACE:
		return p.parseBlock()
	case token.KW_LET:
		return p.parseLetExpr()
	case token.KW_IF:
		return p.parseIfExpr()
	case token.KW_WHILE:
		return p.parseWhileExpr("")
	case token.KW_LOOP:
		return p.parseLoopExpr("")
	case token.KW_FOR:
		return p.parseForExpr("")
	case token.LABEL:
		return p.parseLabeledLoop()
	case token.KW_MATCH:
		return p.parseMatchExpr()
	case token.KW_SELECT:
		return p.parseSelectExpr()
	case token.KW_BREAK:
		return p.parseBreakExpr()
	case token.KW_CONTINUE:
		p.advance()
		label := ""
		if l, ok := p.accept(token.LABEL); ok {
			label = l.Text
		}
		return &ast.ContinueExpr{Base: ast.Base{Sp: t.Span}, Label: label}
	case token.KW_RETURN:
		p.advance()
		var val ast.Expr
		if p.canStartExpr() {
			val = p.parseExpr()
		}
		sp := t.Span
		if val != nil {
			sp = span.Join(t.Span, val.Span())
		}
		return &ast.ReturnExpr{Base: ast.Base{Sp: sp}, Value: val}
	case token.KW_YIELD:
		p.advance()
		var val ast.Expr
		if p.canStartExpr() {
			val = p.parseExpr()
		}
		sp := t.Span
		if val != nil {
			sp = span.Join(t.Span, val.Span())
		}
		return &ast.YieldExpr{Base: ast.Base{Sp: sp}, Value: val}
	case token.KW_ASYNC:
		return p.parseClosureOrAsync()
	case token.BANG:
		// handled in parseUnary; reaching here means a stray `!`
		p.errorf(diag.ParseUnexpectedToken, t.Span, "unexpected %s", t.Kind)
		p.advance()
		return &ast.UnitLit{Base: ast.Base{Sp: t.Span}}
	case token.KW_TRUE:
		p.advance()
		return &ast.BoolLit{Base: ast.Base{Sp: t.Span}, Value: true}
	case token.KW_FALSE:
		p.advance()
		return &ast.BoolLit{Base: ast.Base{Sp: t.Span}, Value: false}
	case token.KW_NONE:
		p.advance()
		return &ast.Path{Base: ast.Base{Sp: t.Span}, Segments: []string{"None"}}
	case token.KW_SOME, token.KW_OK, token.KW_ERR:
		return p.parseWrappedCall()
	case token.INT:
		p.advance()
		return &ast.IntLit{Base: ast.Base{Sp: t.Span}, Text: t.Text}
	case token.FLOAT:
		p.advance()
		return &ast.FloatLit{Base: ast.Base{Sp: t.Span}, Text: t.Text}
	case token.CHAR:
		p.advance()
		r := rune(0)
		if s, err := strconv.Unquote(t.Text); err == nil {
			r = []rune(s)[0]
		}
		return &ast.CharLit{Base: ast.Base{Sp: t.Span}, Value: r}
	case token.BYTE:
		p.advance()
		var b byte
		if s, err := strconv.Unquote(strings.TrimPrefix(t.Text, "b")); err == nil {
			b = byte([]rune(s)[0])
		}
		return &ast.ByteLit{Base: ast.Base{Sp: t.Span}, Value: b}
	case token.STRING:
		p.advance()
		s, err := strconv.Unquote(t.Text)
		if err != nil {
			s = strings.Trim(t.Text, `"`)
		}
		return &ast.StringLit{Base: ast.Base{Sp: t.Span}, Value: s}
	case token.BYTESTR:
		p.advance()
		return &ast.ByteStringLit{Base: ast.Base{Sp: t.Span}, Value: []byte(t.Text)}
	case token.TMPL_OPEN:
		return p.parseTemplateLit()
	case token.IDENT:
		return p.parseIdentOrPath()
	case token.KW_FN:
		return p.parseFnExprAsClosureLike()
	default:
		p.errorf(diag.ParseUnexpectedToken, t.Span, "unexpected %s in expression", t.Kind)
		p.advance()
		return &ast.UnitLit{Base: ast.Base{Sp: t.Span}}
	}
}

// withParenSpan widens a parenthesized inner expression's reported span
// to cover the parens, without changing its node identity.
func withParenSpan(e ast.Expr, sp span.Span) ast.Expr {
	switch n := e.(type) {
	case *ast.BinaryExpr:
		n.Sp = sp
	case *ast.UnaryExpr:
		n.Sp = sp
	case *ast.CallExpr:
		n.Sp = sp
	}
	return e
}

func (p *Parser) canStartExpr() bool {
	switch p.peek().Kind {
	case token.SEMI, token.RBRACE, token.EOF, token.COMMA, token.RPAREN, token.RBRACKET:
		return false
	default:
		return true
	}
}

func (p *Parser) parseIdentOrPath() ast.Expr {
	start := p.advance()
	segs := []string{start.Text}
	for p.at(token.COLONCOLON) {
		p.advance()
		segs = append(segs, p.expect(token.IDENT).Text)
	}
	if len(segs) == 1 {
		return &ast.Ident{Base: ast.Base{Sp: start.Span}, Name: segs[0]}
	}
	return &ast.Path{Base: ast.Base{Sp: span.Join(start.Span, p.toks[p.pos-1].Span)}, Segments: segs}
}

// parseWrappedCall parses `Some(expr)`/`None`/`Ok(expr)`/`Err(expr)` as
// ordinary call expressions against a Path callee; the compiler treats
// them like any other call, so the constructors resolve against host
// functions of those names.
func (p *Parser) parseWrappedCall() ast.Expr {
	t := p.advance()
	name := t.Kind.String()
	path := &ast.Path{Base: ast.Base{Sp: t.Span}, Segments: []string{name}}
	if !p.at(token.LPAREN) {
		return path
	}
	p.advance()
	var args []ast.Expr
	if !p.at(token.RPAREN) {
		args = append(args, p.parseExpr())
	}
	end := p.expect(token.RPAREN).Span
	return &ast.CallExpr{Base: ast.Base{Sp: span.Join(t.Span, end)}, Callee: path, Args: args}
}

func (p *Parser) parseVecExpr() ast.Expr {
	start := p.expect(token.LBRACKET).Span
	var elems []ast.Expr
	for !p.at(token.RBRACKET) && !p.at(token.EOF) {
		elems = append(elems, p.parseExpr())
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	end := p.expect(token.RBRACKET).Span
	return &ast.VecExpr{Base: ast.Base{Sp: span.Join(start, end)}, Elems: elems}
}

func (p *Parser) parseObjectExpr() ast.Expr {
	start := p.expect(token.HASH_LBRACE).Span
	var fields []ast.ObjectField
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		kt := p.expect(token.IDENT)
		var val ast.Expr
		if _, ok := p.accept(token.COLON); ok {
			val = p.parseExpr()
		}
		fields = append(fields, ast.ObjectField{Base: ast.Base{Sp: kt.Span}, Key: kt.Text, Value: val})
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	end := p.expect(token.RBRACE).Span
	return &ast.ObjectExpr{Base: ast.Base{Sp: span.Join(start, end)}, Fields: fields}
}

func (p *Parser) parseLetExpr() ast.Expr {
	start := p.expect(token.KW_LET).Span
	pat := p.parsePattern()
	p.expect(token.EQ)
	val := p.parseExpr()
	return &ast.LetExpr{Base: ast.Base{Sp: span.Join(start, val.Span())}, Pattern: pat, Value: val}
}

func (p *Parser) parseIfExpr() ast.Expr {
	start := p.expect(token.KW_IF).Span
	cond := p.parseExpr()
	then := p.parseBlock()
	end := then.Span()
	var els ast.Expr
	if _, ok := p.accept(token.KW_ELSE); ok {
		if p.at(token.KW_IF) {
			els = p.parseIfExpr()
		} else {
			els = p.parseBlock()
		}
		end = els.Span()
	}
	return &ast.IfExpr{Base: ast.Base{Sp: span.Join(start, end)}, Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseWhileExpr(label string) ast.Expr {
	start := p.expect(token.KW_WHILE).Span
	cond := p.parseExpr()
	body := p.parseBlock()
	return &ast.WhileExpr{Base: ast.Base{Sp: span.Join(start, body.Span())}, Label: label, Cond: cond, Body: body}
}

func (p *Parser) parseLoopExpr(label string) ast.Expr {
	start := p.expect(token.KW_LOOP).Span
	body := p.parseBlock()
	return &ast.LoopExpr{Base: ast.Base{Sp: span.Join(start, body.Span())}, Label: label, Body: body}
}

func (p *Parser) parseForExpr(label string) ast.Expr {
	start := p.expect(token.KW_FOR).Span
	binding := p.parsePattern()
	p.expect(token.KW_IN)
	iter := p.parseExpr()
	body := p.parseBlock()
	return &ast.ForExpr{Base: ast.Base{Sp: span.Join(start, body.Span())}, Label: label, Binding: binding, Iter: iter, Body: body}
}

// parseLabeledLoop handles `'label: while/loop/for ...`.
func (p *Parser) parseLabeledLoop() ast.Expr {
	lbl := p.advance()
	p.expect(token.COLON)
	switch p.peek().Kind {
	case token.KW_WHILE:
		return p.parseWhileExpr(lbl.Text)
	case token.KW_LOOP:
		return p.parseLoopExpr(lbl.Text)
	case token.KW_FOR:
		return p.parseForExpr(lbl.Text)
	default:
		got := p.peek()
		p.errorf(diag.ParseUnexpectedToken, got.Span, "expected a loop after label, found %s", got.Kind)
		return &ast.UnitLit{Base: ast.Base{Sp: lbl.Span}}
	}
}

func (p *Parser) parseMatchExpr() ast.Expr {
	start := p.expect(token.KW_MATCH).Span
	subject := p.parseExpr()
	p.expect(token.LBRACE)
	var arms []ast.MatchArm
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		astart := p.here()
		pat := p.parsePattern()
		var guard ast.Expr
		if _, ok := p.accept(token.KW_IF); ok {
			guard = p.parseExpr()
		}
		p.expect(token.FATARROW)
		body := p.parseExpr()
		arms = append(arms, ast.MatchArm{Base: ast.Base{Sp: span.Join(astart, body.Span())}, Pattern: pat, Guard: guard, Body: body})
		if _, ok := p.accept(token.COMMA); !ok {
			if !p.at(token.RBRACE) {
				break
			}
		}
	}
	end := p.expect(token.RBRACE).Span
	return &ast.MatchExpr{Base: ast.Base{Sp: span.Join(start, end)}, Subject: subject, Arms: arms}
}

func (p *Parser) parseSelectExpr() ast.Expr {
	start := p.expect(token.KW_SELECT).Span
	p.expect(token.LBRACE)
	var arms []ast.SelectArm
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		astart := p.here()
		binding := ""
		if p.at(token.IDENT) && p.peek2().Kind == token.EQ {
			binding = p.advance().Text
			p.advance() // '='
		}
		future := p.parseExpr()
		p.expect(token.FATARROW)
		body := p.parseExpr()
		arms = append(arms, ast.SelectArm{Base: ast.Base{Sp: span.Join(astart, body.Span())}, Binding: binding, Future: future, Body: body})
		if _, ok := p.accept(token.COMMA); !ok {
			if !p.at(token.RBRACE) {
				break
			}
		}
	}
	end := p.expect(token.RBRACE).Span
	return &ast.SelectExpr{Base: ast.Base{Sp: span.Join(start, end)}, Arms: arms}
}

func (p *Parser) parseBreakExpr() ast.Expr {
	start := p.advance().Span
	label := ""
	if l, ok := p.accept(token.LABEL); ok {
		label = l.Text
	}
	var val ast.Expr
	if p.canStartExpr() {
		val = p.parseExpr()
	}
	end := start
	if val != nil {
		end = val.Span()
	}
	return &ast.BreakExpr{Base: ast.Base{Sp: span.Join(start, end)}, Label: label, Value: val}
}

// parseClosureOrAsync handles `async fn`-as-statement-expr is not a
// thing here; `async` only prefixes closures in expression position
// (async fn declarations are handled in parseFnDecl).
func (p *Parser) parseClosureOrAsync() ast.Expr {
	start := p.advance().Span // 'async'
	p.expect(token.KW_FN)
	return p.finishClosure(start, true)
}

// parseFnExprAsClosureLike handles a bare `fn(...) { ... }` used in
// expression position (e.g. passed as a callback argument).
func (p *Parser) parseFnExprAsClosureLike() ast.Expr {
	start := p.here()
	p.advance() // 'fn'
	return p.finishClosure(start, false)
}

func (p *Parser) finishClosure(start span.Span, async bool) ast.Expr {
	params := p.parseParamList()
	body := p.parseBlock()
	return &ast.ClosureExpr{Base: ast.Base{Sp: span.Join(start, body.Span())}, Params: params, Body: body, Async: async}
}

// parseTemplateLit consumes the TMPL_OPEN ... TMPL_CLOSE token run
// produced by the lexer's triple-scan state machine, recursively
// parsing each TMPL_EXPR_OPEN..TMPL_EXPR_CLOSE span as a full
// expression.
func (p *Parser) parseTemplateLit() ast.Expr {
	start := p.expect(token.TMPL_OPEN).Span
	var frags []string
	var exprs []ast.Expr
	for {
		frag, _ := p.accept(token.TMPL_FRAG)
		frags = append(frags, frag.Text)
		if _, ok := p.accept(token.TMPL_EXPR_OPEN); ok {
			exprs = append(exprs, p.parseExpr())
			p.expect(token.TMPL_EXPR_CLOSE)
			continue
		}
		break
	}
	end := p.expect(token.TMPL_CLOSE).Span
	return &ast.TemplateLit{Base: ast.Base{Sp: span.Join(start, end)}, Fragments: frags, Exprs: exprs}
}

// --- patterns ---

func (p *Parser) parsePattern() ast.Pattern {
	t := p.peek()
	switch t.Kind {
	case token.IDENT:
		if t.Text == "_" {
			p.advance()
			return &ast.WildcardPattern{Base: ast.Base{Sp: t.Span}}
		}
		return p.parsePathOrStructuredPattern()
	case token.KW_NONE:
		p.advance()
		return &ast.OptionPattern{Base: ast.Base{Sp: t.Span}, Some: false}
	case token.KW_SOME:
		p.advance()
		return p.parseWrapPattern(t, true, false)
	case token.KW_OK:
		p.advance()
		return p.parseWrapPattern(t, false, true)
	case token.KW_ERR:
		p.advance()
		return p.parseWrapPattern(t, false, false)
	case token.LPAREN:
		return p.parseTuplePattern(p.here(), nil)
	case token.LBRACKET:
		return p.parseVecPattern()
	case token.HASH_LBRACE:
		return p.parseObjectPattern(p.here(), nil)
	case token.INT, token.FLOAT, token.STRING, token.CHAR, token.BYTE, token.KW_TRUE, token.KW_FALSE:
		e := p.parsePrimary()
		return &ast.LiteralPattern{Base: ast.Base{Sp: e.Span()}, Value: e}
	case token.MINUS:
		e := p.parseUnary()
		return &ast.LiteralPattern{Base: ast.Base{Sp: e.Span()}, Value: e}
	default:
		p.errorf(diag.ParseUnexpectedToken, t.Span, "unexpected %s in pattern", t.Kind)
		p.advance()
		return &ast.WildcardPattern{Base: ast.Base{Sp: t.Span}}
	}
}

func (p *Parser) parseWrapPattern(t token.Token, isOption, isOk bool) ast.Pattern {
	var inner ast.Pattern
	if _, ok := p.accept(token.LPAREN); ok {
		inner = p.parsePattern()
		p.expect(token.RPAREN)
	}
	end := t.Span
	if inner != nil {
		end = inner.Span()
	}
	if isOption {
		return &ast.OptionPattern{Base: ast.Base{Sp: span.Join(t.Span, end)}, Some: true, Inner: inner}
	}
	return &ast.ResultPattern{Base: ast.Base{Sp: span.Join(t.Span, end)}, Ok: isOk, Inner: inner}
}

// parsePathOrStructuredPattern parses an identifier/path pattern, then
// checks whether it's immediately followed by `(`, `{`, or `::` to
// become a tuple/object/enum-variant pattern instead of a plain binding.
func (p *Parser) parsePathOrStructuredPattern() ast.Pattern {
	start := p.advance()
	segs := []string{start.Text}
	for p.at(token.COLONCOLON) {
		p.advance()
		segs = append(segs, p.expect(token.IDENT).Text)
	}
	switch p.peek().Kind {
	case token.LPAREN:
		return p.parseTuplePattern(start.Span, segs)
	case token.LBRACE:
		return p.parseNamedObjectPattern(start.Span, segs)
	default:
		end := start.Span
		if len(segs) > 1 {
			end = p.toks[p.pos-1].Span
		}
		return &ast.PathPattern{Base: ast.Base{Sp: span.Join(start.Span, end)}, Segments: segs}
	}
}

func (p *Parser) parseTuplePattern(start span.Span, path []string) ast.Pattern {
	if len(path) == 0 {
		start = p.here()
	}
	p.expect(token.LPAREN)
	var elems []ast.Pattern
	for !p.at(token.RPAREN) && !p.at(token.EOF) {
		elems = append(elems, p.parsePattern())
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	end := p.expect(token.RPAREN).Span
	return &ast.TuplePattern{Base: ast.Base{Sp: span.Join(start, end)}, Path: path, Elems: elems}
}

func (p *Parser) parseVecPattern() ast.Pattern {
	start := p.expect(token.LBRACKET).Span
	var elems []ast.Pattern
	rest := false
	for !p.at(token.RBRACKET) && !p.at(token.EOF) {
		if _, ok := p.accept(token.DOTDOT); ok {
			rest = true
			break
		}
		elems = append(elems, p.parsePattern())
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	end := p.expect(token.RBRACKET).Span
	return &ast.VecPattern{Base: ast.Base{Sp: span.Join(start, end)}, Elems: elems, Rest: rest}
}

func (p *Parser) parseObjectPattern(start span.Span, path []string) ast.Pattern {
	p.expect(token.HASH_LBRACE)
	fields, rest, end := p.parseObjectPatternFieldsUntil(token.RBRACE)
	return &ast.ObjectPattern{Base: ast.Base{Sp: span.Join(start, end)}, Path: path, Fields: fields, Rest: rest}
}

func (p *Parser) parseNamedObjectPattern(start span.Span, path []string) ast.Pattern {
	p.expect(token.LBRACE)
	fields, rest, end := p.parseObjectPatternFieldsUntil(token.RBRACE)
	return &ast.ObjectPattern{Base: ast.Base{Sp: span.Join(start, end)}, Path: path, Fields: fields, Rest: rest}
}

func (p *Parser) parseObjectPatternFieldsUntil(closer token.Kind) ([]ast.ObjectPatternField, bool, span.Span) {
	var fields []ast.ObjectPatternField
	rest := false
	for !p.at(closer) && !p.at(token.EOF) {
		if _, ok := p.accept(token.DOTDOT); ok {
			rest = true
			break
		}
		kt := p.expect(token.IDENT)
		var binding ast.Pattern
		if _, ok := p.accept(token.COLON); ok {
			binding = p.parsePattern()
		}
		fields = append(fields, ast.ObjectPatternField{Base: ast.Base{Sp: kt.Span}, Key: kt.Text, Binding: binding})
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	end := p.expect(closer).Span
	return fields, rest, end
}
