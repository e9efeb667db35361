// Package parser implements a recursive descent parser for the expression
// language.
//
// Precedence, tightest first:
//
//	1: not ~ ()
//	2: *   /
//	3: +   -
//	4: <   <=
//	5: =
//	6: and
//	7: or
//	8: if-then-else, fn
//
// Function application binds by juxtaposition: "f 2" applies f to 2.
package parser

import (
	"fmt"
	"strconv"

	"github.com/expc-lang/expc/pkg/ast"
	"github.com/expc-lang/expc/pkg/lexer"
)

// Parser parses source code into an expression tree
type Parser struct {
	l         *lexer.Lexer
	curToken  lexer.Token
	peekToken lexer.Token
	errors    []string
}

// New creates a new Parser for the given lexer
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// Errors returns the list of parsing errors
func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, fmt.Sprintf("line %d, col %d: %s",
		p.curToken.Line, p.curToken.Column, msg))
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) expect(t lexer.TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf("expected %s, got %s", t, p.curToken.Type))
	return false
}

// Parse parses a complete expression and returns it, or an error
// summarizing what went wrong.
func (p *Parser) Parse() (ast.Expr, error) {
	e := p.parseExp()
	if e == nil || len(p.errors) > 0 {
		if len(p.errors) > 0 {
			return nil, fmt.Errorf("syntax error: %s", p.errors[0])
		}
		return nil, fmt.Errorf("syntax error: empty input")
	}
	if !p.curTokenIs(lexer.TokenEOF) {
		return nil, fmt.Errorf("syntax error: line %d, col %d: unexpected %s after expression",
			p.curToken.Line, p.curToken.Column, p.curToken.Type)
	}
	return e, nil
}

func (p *Parser) parseExp() ast.Expr {
	if p.curTokenIs(lexer.TokenFn) {
		return p.parseFn()
	}
	return p.parseIfThenElse()
}

func (p *Parser) parseFn() ast.Expr {
	p.expect(lexer.TokenFn)
	param := p.curToken.Literal
	if !p.expect(lexer.TokenIdent) {
		return nil
	}
	if !p.expect(lexer.TokenArrow) {
		return nil
	}
	body := p.parseExp()
	if body == nil {
		return nil
	}
	return ast.Fn{Param: param, Body: body}
}

func (p *Parser) parseIfThenElse() ast.Expr {
	if !p.curTokenIs(lexer.TokenIf) {
		return p.parseOr()
	}
	p.expect(lexer.TokenIf)
	cond := p.parseExp()
	if cond == nil || !p.expect(lexer.TokenThen) {
		return nil
	}
	thenExp := p.parseExp()
	if thenExp == nil || !p.expect(lexer.TokenElse) {
		return nil
	}
	elseExp := p.parseExp()
	if elseExp == nil {
		return nil
	}
	return ast.If{Cond: cond, Then: thenExp, Else: elseExp}
}

func (p *Parser) parseOr() ast.Expr {
	left := p.parseAnd()
	for left != nil && p.curTokenIs(lexer.TokenOr) {
		p.nextToken()
		right := p.parseAnd()
		if right == nil {
			return nil
		}
		left = ast.Or{Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() ast.Expr {
	left := p.parseComparison()
	for left != nil && p.curTokenIs(lexer.TokenAnd) {
		p.nextToken()
		right := p.parseComparison()
		if right == nil {
			return nil
		}
		left = ast.And{Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseComparison() ast.Expr {
	left := p.parseAddSub()
	for left != nil {
		var mk func(l, r ast.Expr) ast.Expr
		switch p.curToken.Type {
		case lexer.TokenEq:
			mk = func(l, r ast.Expr) ast.Expr { return ast.Eql{Left: l, Right: r} }
		case lexer.TokenLe:
			mk = func(l, r ast.Expr) ast.Expr { return ast.Leq{Left: l, Right: r} }
		case lexer.TokenLt:
			mk = func(l, r ast.Expr) ast.Expr { return ast.Lth{Left: l, Right: r} }
		default:
			return left
		}
		p.nextToken()
		right := p.parseAddSub()
		if right == nil {
			return nil
		}
		left = mk(left, right)
	}
	return left
}

func (p *Parser) parseAddSub() ast.Expr {
	left := p.parseMulDiv()
	for left != nil {
		var mk func(l, r ast.Expr) ast.Expr
		switch p.curToken.Type {
		case lexer.TokenPlus:
			mk = func(l, r ast.Expr) ast.Expr { return ast.Add{Left: l, Right: r} }
		case lexer.TokenMinus:
			mk = func(l, r ast.Expr) ast.Expr { return ast.Sub{Left: l, Right: r} }
		default:
			return left
		}
		p.nextToken()
		right := p.parseMulDiv()
		if right == nil {
			return nil
		}
		left = mk(left, right)
	}
	return left
}

func (p *Parser) parseMulDiv() ast.Expr {
	left := p.parseUnary()
	for left != nil {
		var mk func(l, r ast.Expr) ast.Expr
		switch p.curToken.Type {
		case lexer.TokenStar:
			mk = func(l, r ast.Expr) ast.Expr { return ast.Mul{Left: l, Right: r} }
		case lexer.TokenSlash:
			mk = func(l, r ast.Expr) ast.Expr { return ast.Div{Left: l, Right: r} }
		default:
			return left
		}
		p.nextToken()
		right := p.parseUnary()
		if right == nil {
			return nil
		}
		left = mk(left, right)
	}
	return left
}

func (p *Parser) parseUnary() ast.Expr {
	switch p.curToken.Type {
	case lexer.TokenNot:
		p.nextToken()
		e := p.parseUnary()
		if e == nil {
			return nil
		}
		return ast.Not{Exp: e}
	case lexer.TokenTilde:
		p.nextToken()
		e := p.parseUnary()
		if e == nil {
			return nil
		}
		return ast.Neg{Exp: e}
	}
	return p.parseLet()
}

func (p *Parser) parseLet() ast.Expr {
	if !p.curTokenIs(lexer.TokenLet) {
		return p.parseValue()
	}
	p.expect(lexer.TokenLet)
	name := p.curToken.Literal
	if !p.expect(lexer.TokenIdent) {
		return nil
	}
	if !p.expect(lexer.TokenAssign) {
		return nil
	}
	bind := p.parseExp()
	if bind == nil || !p.expect(lexer.TokenIn) {
		return nil
	}
	body := p.parseExp()
	if body == nil || !p.expect(lexer.TokenEnd) {
		return nil
	}
	return ast.Let{Name: name, Bind: bind, Body: body}
}

// parseValue handles atoms and function application by juxtaposition:
// a sequence of adjacent atoms folds left into nested applications.
func (p *Parser) parseValue() ast.Expr {
	exp := p.parseValueToken()
	for exp != nil && p.startsValueToken() {
		arg := p.parseValueToken()
		if arg == nil {
			return nil
		}
		exp = ast.App{Fn: exp, Arg: arg}
	}
	return exp
}

func (p *Parser) startsValueToken() bool {
	switch p.curToken.Type {
	case lexer.TokenIdent, lexer.TokenLParen, lexer.TokenInt, lexer.TokenTrue, lexer.TokenFalse:
		return true
	}
	return false
}

func (p *Parser) parseValueToken() ast.Expr {
	switch p.curToken.Type {
	case lexer.TokenIdent:
		name := p.curToken.Literal
		p.nextToken()
		return ast.Var{Name: name}
	case lexer.TokenLParen:
		p.nextToken()
		exp := p.parseExp()
		if exp == nil || !p.expect(lexer.TokenRParen) {
			return nil
		}
		return exp
	case lexer.TokenInt:
		value, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
		if err != nil {
			p.addError(fmt.Sprintf("invalid number %q", p.curToken.Literal))
			return nil
		}
		p.nextToken()
		return ast.Num{Value: value}
	case lexer.TokenTrue, lexer.TokenFalse:
		value := p.curTokenIs(lexer.TokenTrue)
		p.nextToken()
		return ast.Bln{Value: value}
	}
	p.addError(fmt.Sprintf("unexpected %s", p.curToken.Type))
	return nil
}
