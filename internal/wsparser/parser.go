// Package wsparser implements a recursive-descent parser for the Wsrb
// dialect.
package wsparser

import (
	"strconv"

	"wsrb/internal/wsast"
	"wsrb/internal/wserr"
	"wsrb/internal/wslexer"
)

var ioBuiltins = map[string]wsast.IOKind{
	"put_as_number": wsast.IOPutNumber,
	"put_as_char":   wsast.IOPutChar,
	"get_as_number": wsast.IOGetNumber,
	"get_as_char":   wsast.IOGetChar,
}

// Parser consumes a token slice and builds a Wsrb AST.
type Parser struct {
	tokens  []wslexer.Token
	current int
	file    string
}

func NewParser(tokens []wslexer.Token, file string) *Parser {
	return &Parser{tokens: tokens, file: file}
}

// Parse returns the top-level statement list, or a *wserr.Error on the
// first syntax problem encountered.
func (p *Parser) Parse() (stmts []wsast.Stmt, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*wserr.Error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()
	for !p.isAtEnd() {
		stmts = append(stmts, p.topLevelStmt())
		p.skipSemicolons()
	}
	return stmts, nil
}

func (p *Parser) topLevelStmt() wsast.Stmt {
	switch {
	case p.check(wslexer.TokenDef):
		return p.defStmt("")
	case p.check(wslexer.TokenClass):
		return p.classStmt()
	default:
		return p.exprStmt()
	}
}

func (p *Parser) classStmt() wsast.Stmt {
	tok := p.advance() // 'class'
	name := p.consume(wslexer.TokenIdent, "expected class name").Lexeme
	p.skipSemicolons()
	var methods []*wsast.DefStmt
	for !p.check(wslexer.TokenEnd) && !p.isAtEnd() {
		if p.check(wslexer.TokenClass) {
			p.errorAt(p.peek(), "nested class definitions are not supported")
		}
		if !p.check(wslexer.TokenDef) {
			p.errorAt(p.peek(), "expected method definition inside class body")
		}
		d := p.defStmt(name)
		methods = append(methods, d.(*wsast.DefStmt))
		p.skipSemicolons()
	}
	p.consume(wslexer.TokenEnd, "expected 'end' to close class")
	return &wsast.ClassStmt{Name: name, Methods: methods, Line: tok.Line, Col: tok.Column}
}

func (p *Parser) defStmt(class string) wsast.Stmt {
	tok := p.advance() // 'def'
	name := p.methodName()
	var params []string
	p.consume(wslexer.TokenLParen, "expected '(' after method name")
	if !p.check(wslexer.TokenRParen) {
		for {
			params = append(params, p.consume(wslexer.TokenIdent, "expected parameter name").Lexeme)
			if !p.match(wslexer.TokenComma) {
				break
			}
		}
	}
	p.consume(wslexer.TokenRParen, "expected ')' after parameter list")
	p.skipSemicolons()
	body := p.blockUntil(wslexer.TokenEnd)
	p.consume(wslexer.TokenEnd, "expected 'end' to close method")
	return &wsast.DefStmt{Name: name, Params: params, Body: body, Class: class, Line: tok.Line, Col: tok.Column}
}

// methodName accepts ordinary identifiers as well as the operator-like
// method names `[]` and `[]=` used when reopening Array/Hash.
func (p *Parser) methodName() string {
	if p.check(wslexer.TokenLBracket) {
		p.advance()
		p.consume(wslexer.TokenRBracket, "expected ']' in method name")
		if p.match(wslexer.TokenEqual) {
			return "[]="
		}
		return "[]"
	}
	return p.consume(wslexer.TokenIdent, "expected method name").Lexeme
}

func (p *Parser) exprStmt() wsast.Stmt {
	e := p.assignmentOrExpr()
	// A trailing if/unless is a modifier only on the statement's own line;
	// on a later line it starts the next statement.
	if p.peek().Line != p.previous().Line {
		return &wsast.ExprStmt{Expr: e}
	}
	if p.match(wslexer.TokenIf) {
		e = applyModifier(e, p.expression(), false)
	} else if p.match(wslexer.TokenUnless) {
		e = applyModifier(e, p.expression(), true)
	}
	return &wsast.ExprStmt{Expr: e}
}

// applyModifier attaches a trailing if/unless to a statement. On an
// assignment the modifier wraps the right-hand side, so `x = 100 if false`
// binds NIL rather than leaving x untouched.
func applyModifier(e wsast.Expr, cond wsast.Expr, unless bool) wsast.Expr {
	if assign, ok := e.(*wsast.AssignExpr); ok {
		assign.Value = &wsast.IfExpr{Cond: cond, Unless: unless, Then: wrapBlock(assign.Value)}
		return assign
	}
	return &wsast.IfExpr{Cond: cond, Unless: unless, Then: wrapBlock(e)}
}

func wrapBlock(e wsast.Expr) *wsast.BlockExpr {
	return &wsast.BlockExpr{Stmts: []wsast.Stmt{&wsast.ExprStmt{Expr: e}}}
}

// blockUntil parses statements until a token of the given type (not
// consumed) or EOF, honoring the if/unless statement-modifier and
// `;`-separated sequencing.
func (p *Parser) blockUntil(terminators ...wslexer.TokenType) *wsast.BlockExpr {
	var stmts []wsast.Stmt
	for !p.isAtEnd() && !p.checkAny(terminators...) {
		stmts = append(stmts, p.exprStmt())
		p.skipSemicolons()
	}
	return &wsast.BlockExpr{Stmts: stmts}
}

func (p *Parser) skipSemicolons() {
	for p.match(wslexer.TokenSemicolon) {
	}
}

// --- expressions ---

func (p *Parser) assignmentOrExpr() wsast.Expr {
	e := p.expression()
	if p.match(wslexer.TokenEqual) {
		value := p.assignmentOrExpr()
		switch target := e.(type) {
		case *wsast.VarExpr:
			return &wsast.AssignExpr{Name: target.Name, Value: value, Line: target.Line, Col: target.Col}
		case *wsast.IndexExpr:
			return &wsast.IndexSetExpr{Object: target.Object, Index: target.Index, Value: value, Line: target.Line, Col: target.Col}
		default:
			p.errorAt(p.previous(), "invalid assignment target")
		}
	}
	return e
}

func (p *Parser) expression() wsast.Expr { return p.comparison() }

func (p *Parser) comparison() wsast.Expr {
	left := p.additive()
	for p.checkAny(wslexer.TokenDoubleEq, wslexer.TokenNotEq, wslexer.TokenLT, wslexer.TokenGT,
		wslexer.TokenLE, wslexer.TokenGE, wslexer.TokenSpaceship) {
		op := p.advance()
		right := p.additive()
		left = &wsast.BinaryExpr{Left: left, Operator: string(op.Type), Right: right, Line: op.Line, Col: op.Column}
	}
	return left
}

func (p *Parser) additive() wsast.Expr {
	left := p.multiplicative()
	for p.checkAny(wslexer.TokenPlus, wslexer.TokenMinus) {
		op := p.advance()
		right := p.multiplicative()
		left = &wsast.BinaryExpr{Left: left, Operator: string(op.Type), Right: right, Line: op.Line, Col: op.Column}
	}
	return left
}

func (p *Parser) multiplicative() wsast.Expr {
	left := p.unary()
	for p.checkAny(wslexer.TokenStar, wslexer.TokenSlash, wslexer.TokenPercent) {
		op := p.advance()
		right := p.unary()
		left = &wsast.BinaryExpr{Left: left, Operator: string(op.Type), Right: right, Line: op.Line, Col: op.Column}
	}
	return left
}

func (p *Parser) unary() wsast.Expr {
	if p.match(wslexer.TokenNot) {
		return &wsast.UnaryExpr{Operator: "!", Operand: p.unary()}
	}
	if p.match(wslexer.TokenMinus) {
		return &wsast.BinaryExpr{Left: &wsast.IntLit{Value: 0}, Operator: "-", Right: p.unary()}
	}
	return p.postfix()
}

func (p *Parser) postfix() wsast.Expr {
	e := p.primary()
	for {
		switch {
		case p.match(wslexer.TokenDot):
			e = p.methodCall(e)
		case p.check(wslexer.TokenLBracket):
			tok := p.advance()
			idx := p.expression()
			p.consume(wslexer.TokenRBracket, "expected ']' after index")
			e = &wsast.IndexExpr{Object: e, Index: idx, Line: tok.Line, Col: tok.Column}
		default:
			return e
		}
	}
}

func (p *Parser) methodCall(receiver wsast.Expr) wsast.Expr {
	nameTok := p.consume(wslexer.TokenIdent, "expected method name after '.'")
	name := nameTok.Lexeme
	if name == "is_a?" {
		p.consume(wslexer.TokenLParen, "expected '(' after is_a?")
		classTok := p.consume(wslexer.TokenIdent, "expected class name")
		p.consume(wslexer.TokenRParen, "expected ')' after class name")
		return &wsast.IsAExpr{Object: receiver, ClassName: classTok.Lexeme, Line: nameTok.Line, Col: nameTok.Column}
	}
	var args []wsast.Expr
	if p.match(wslexer.TokenLParen) {
		if !p.check(wslexer.TokenRParen) {
			args = p.argList()
		}
		p.consume(wslexer.TokenRParen, "expected ')' after arguments")
	}
	return &wsast.CallExpr{Receiver: receiver, ExplicitReceiver: true, Name: name, Args: args, Line: nameTok.Line, Col: nameTok.Column}
}

func (p *Parser) argList() []wsast.Expr {
	var args []wsast.Expr
	args = append(args, p.assignmentOrExpr())
	for p.match(wslexer.TokenComma) {
		args = append(args, p.assignmentOrExpr())
	}
	return args
}

func (p *Parser) primary() wsast.Expr {
	tok := p.peek()
	switch tok.Type {
	case wslexer.TokenInt:
		p.advance()
		n, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			p.errorAt(tok, "invalid integer literal %q", tok.Lexeme)
		}
		return &wsast.IntLit{Value: n, Line: tok.Line, Col: tok.Column}
	case wslexer.TokenString:
		p.advance()
		runes := []rune(tok.Lexeme)
		if len(runes) != 1 {
			p.errorAt(tok, "string literal must be exactly one character, got %d", len(runes))
		}
		return &wsast.CharLit{Value: runes[0], Line: tok.Line, Col: tok.Column}
	case wslexer.TokenTrue:
		p.advance()
		return &wsast.BoolLit{Value: true}
	case wslexer.TokenFalse:
		p.advance()
		return &wsast.BoolLit{Value: false}
	case wslexer.TokenNil:
		p.advance()
		return &wsast.NilLit{}
	case wslexer.TokenSelf:
		p.advance()
		return &wsast.SelfExpr{}
	case wslexer.TokenExit:
		p.advance()
		return &wsast.ExitExpr{}
	case wslexer.TokenRaise:
		p.advance()
		msgTok := p.consume(wslexer.TokenString, "expected string message after raise")
		return &wsast.RaiseExpr{Message: msgTok.Lexeme, Line: tok.Line, Col: tok.Column}
	case wslexer.TokenLParen:
		p.advance()
		e := p.assignmentOrExpr()
		p.consume(wslexer.TokenRParen, "expected ')' after expression")
		return e
	case wslexer.TokenLBracket:
		return p.arrayLit()
	case wslexer.TokenLBrace:
		return p.hashLit()
	case wslexer.TokenIf:
		return p.ifExpr(false)
	case wslexer.TokenUnless:
		return p.ifExpr(true)
	case wslexer.TokenWhile:
		return p.whileExpr()
	case wslexer.TokenCase:
		return p.caseExpr()
	case wslexer.TokenIdent:
		return p.identExpr()
	}
	p.errorAt(tok, "unexpected token %s", tok.Type)
	return nil
}

func (p *Parser) identExpr() wsast.Expr {
	tok := p.advance()
	name := tok.Lexeme
	if kind, ok := ioBuiltins[name]; ok {
		return p.ioExpr(kind, tok)
	}
	if p.check(wslexer.TokenLParen) {
		p.advance()
		var args []wsast.Expr
		if !p.check(wslexer.TokenRParen) {
			args = p.argList()
		}
		p.consume(wslexer.TokenRParen, "expected ')' after arguments")
		return &wsast.CallExpr{Name: name, Args: args, Line: tok.Line, Col: tok.Column}
	}
	return &wsast.VarExpr{Name: name, Line: tok.Line, Col: tok.Column}
}

// ioExpr parses the four I/O built-ins, which take a single argument with
// no required parentheses: `put_as_number 3 + 2`, `get_as_number x`.
func (p *Parser) ioExpr(kind wsast.IOKind, tok wslexer.Token) wsast.Expr {
	hadParen := p.match(wslexer.TokenLParen)
	var arg wsast.Expr
	if kind == wsast.IOGetNumber || kind == wsast.IOGetChar {
		nameTok := p.consume(wslexer.TokenIdent, "expected variable name after %s", kind)
		arg = &wsast.VarExpr{Name: nameTok.Lexeme, Line: nameTok.Line, Col: nameTok.Column}
	} else {
		arg = p.assignmentOrExpr()
	}
	if hadParen {
		p.consume(wslexer.TokenRParen, "expected ')' after %s argument", kind)
	}
	return &wsast.IOExpr{Kind: kind, Arg: arg, Line: tok.Line, Col: tok.Column}
}

func (p *Parser) arrayLit() wsast.Expr {
	p.advance() // '['
	var elems []wsast.Expr
	if !p.check(wslexer.TokenRBracket) {
		elems = append(elems, p.assignmentOrExpr())
		for p.match(wslexer.TokenComma) {
			elems = append(elems, p.assignmentOrExpr())
		}
	}
	p.consume(wslexer.TokenRBracket, "expected ']' to close array literal")
	return &wsast.ArrayLit{Elements: elems}
}

func (p *Parser) hashLit() wsast.Expr {
	p.advance() // '{'
	var keys, values []wsast.Expr
	if !p.check(wslexer.TokenRBrace) {
		k, v := p.hashPair()
		keys = append(keys, k)
		values = append(values, v)
		for p.match(wslexer.TokenComma) {
			k, v := p.hashPair()
			keys = append(keys, k)
			values = append(values, v)
		}
	}
	p.consume(wslexer.TokenRBrace, "expected '}' to close hash literal")
	return &wsast.HashLit{Keys: keys, Values: values}
}

func (p *Parser) hashPair() (wsast.Expr, wsast.Expr) {
	k := p.assignmentOrExpr()
	p.consume(wslexer.TokenArrow, "expected '=>' in hash literal")
	v := p.assignmentOrExpr()
	return k, v
}

func (p *Parser) ifExpr(unless bool) wsast.Expr {
	p.advance() // 'if'/'unless'
	cond := p.expression()
	p.match(wslexer.TokenThen)
	p.skipSemicolons()
	thenBlock := p.blockUntil(wslexer.TokenElse, wslexer.TokenEnd)
	var elseBlock *wsast.BlockExpr
	if p.match(wslexer.TokenElse) {
		p.skipSemicolons()
		elseBlock = p.blockUntil(wslexer.TokenEnd)
	}
	p.consume(wslexer.TokenEnd, "expected 'end' to close if")
	return &wsast.IfExpr{Cond: cond, Unless: unless, Then: thenBlock, Else: elseBlock}
}

func (p *Parser) whileExpr() wsast.Expr {
	p.advance() // 'while'
	cond := p.expression()
	p.skipSemicolons()
	body := p.blockUntil(wslexer.TokenEnd)
	p.consume(wslexer.TokenEnd, "expected 'end' to close while")
	return &wsast.WhileExpr{Cond: cond, Body: body}
}

func (p *Parser) caseExpr() wsast.Expr {
	p.advance() // 'case'
	subject := p.expression()
	p.skipSemicolons()
	var whens []wsast.WhenClause
	for p.match(wslexer.TokenWhen) {
		var patterns []wsast.Expr
		patterns = append(patterns, p.assignmentOrExpr())
		for p.match(wslexer.TokenComma) {
			patterns = append(patterns, p.assignmentOrExpr())
		}
		p.match(wslexer.TokenThen)
		p.skipSemicolons()
		body := p.blockUntil(wslexer.TokenWhen, wslexer.TokenElse, wslexer.TokenEnd)
		whens = append(whens, wsast.WhenClause{Patterns: patterns, Body: body})
	}
	var elseBlock *wsast.BlockExpr
	if p.match(wslexer.TokenElse) {
		p.skipSemicolons()
		elseBlock = p.blockUntil(wslexer.TokenEnd)
	}
	p.consume(wslexer.TokenEnd, "expected 'end' to close case")
	return &wsast.CaseExpr{Subject: subject, Whens: whens, Else: elseBlock}
}

// --- token helpers ---

func (p *Parser) check(t wslexer.TokenType) bool {
	return !p.isAtEnd() && p.peek().Type == t
}

func (p *Parser) checkAny(ts ...wslexer.TokenType) bool {
	for _, t := range ts {
		if p.check(t) {
			return true
		}
	}
	return false
}

func (p *Parser) match(t wslexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(t wslexer.TokenType, format string, args ...interface{}) wslexer.Token {
	if p.check(t) {
		return p.advance()
	}
	p.errorAt(p.peek(), format, args...)
	return wslexer.Token{}
}

func (p *Parser) advance() wslexer.Token {
	tok := p.peek()
	if !p.isAtEnd() {
		p.current++
	}
	return tok
}

func (p *Parser) previous() wslexer.Token {
	if p.current == 0 {
		return p.tokens[0]
	}
	return p.tokens[p.current-1]
}

func (p *Parser) peek() wslexer.Token { return p.tokens[p.current] }

func (p *Parser) isAtEnd() bool { return p.peek().Type == wslexer.TokenEOF }

func (p *Parser) errorAt(tok wslexer.Token, format string, args ...interface{}) {
	panic(wserr.NewParseError(p.file, tok.Line, tok.Column, format, args...))
}
