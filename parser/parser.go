// Package parser builds the expression AST (spec §4.4) from a token
// stream, implementing the precedence grammar given in spec §6 as a
// recursive-descent parser — the same structural approach the teacher
// uses for ARM operand lists, one level per precedence tier instead of
// one switch per addressing mode.
package parser

import (
	"fmt"

	"github.com/forte-labs/policy-compiler/ast"
	"github.com/forte-labs/policy-compiler/lexer"
)

// Parser consumes a fixed token slice produced by the lexer.
type Parser struct {
	tokens []lexer.Token
	pos    int
}

// New creates a Parser over a token slice.
func New(tokens []lexer.Token) *Parser {
	return &Parser{tokens: tokens}
}

// ParseCondition parses a full condition string (spec §4.4); TRU:/TRUM
// assignment statements are not part of this grammar.
func ParseCondition(src string) (ast.Expr, error) {
	return parseFrom(src, (*Parser).parseOr)
}

// ParseEffectExpression parses an effect string already known not to be a
// revert/emit effect (spec §4.6 "otherwise, parse as an expression"). A
// TRU:/TRUM assignment statement is permitted only as the entire
// expression, not nested inside a boolean combination (spec §4.4's
// grammar defines no such nesting); anything else falls through to the
// plain condition grammar, allowing a bare boolean expression effect.
func ParseEffectExpression(src string) (ast.Expr, error) {
	return parseFrom(src, func(p *Parser) (ast.Expr, error) {
		if p.cur().Type == lexer.TokenTrackerUpdate {
			return p.parseTrackerUpdate()
		}
		return p.parseOr()
	})
}

func parseFrom(src string, top func(*Parser) (ast.Expr, error)) (ast.Expr, error) {
	tokens := lexer.New(src).TokenizeAll()
	p := New(tokens)
	expr, err := top(p)
	if err != nil {
		return nil, err
	}
	// The lexer ends the stream early with an EOF token carrying the text
	// of a stray character ('!' or an unknown rune); only a bare EOF is a
	// clean end of input.
	if tok := p.cur(); tok.Type != lexer.TokenEOF || tok.Literal != "" {
		return nil, fmt.Errorf("unexpected token %s after end of expression", tok)
	}
	return expr, nil
}

func (p *Parser) cur() lexer.Token {
	return p.tokens[p.pos]
}

func (p *Parser) advance() lexer.Token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(tt lexer.TokenType) (lexer.Token, error) {
	if p.cur().Type != tt {
		return lexer.Token{}, fmt.Errorf("expected %s but found %s", tt, p.cur())
	}
	return p.advance(), nil
}

// parseOr implements `or_expr := and_expr ("OR" and_expr)*`.
func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == lexer.TokenOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: "OR", L: left, R: right}
	}
	return left, nil
}

// parseAnd implements `and_expr := not_expr ("AND" not_expr)*`.
func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == lexer.TokenAnd {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: "AND", L: left, R: right}
	}
	return left, nil
}

// parseNot implements `not_expr := "NOT" not_expr | cmp`.
func (p *Parser) parseNot() (ast.Expr, error) {
	if p.cur().Type == lexer.TokenNot {
		p.advance()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: "NOT", X: x}, nil
	}
	return p.parseCmp()
}

// parseTrackerUpdate implements `TRU:name op= rhs` and
// `TRU:name(key) op= rhs` (spec §4.4, §4.6).
func (p *Parser) parseTrackerUpdate() (ast.Expr, error) {
	nameTok := p.advance() // TRU:name
	target := &ast.Ident{Namespace: ast.TrackerUpdateRef, Name: nameTok.Literal}

	var key ast.Expr
	if p.cur().Type == lexer.TokenLParen {
		p.advance()
		k, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenRParen); err != nil {
			return nil, err
		}
		key = k
	}

	opTok := p.cur()
	if !opTok.IsAssignOp() {
		return nil, fmt.Errorf("expected an assignment operator after TRU:%s, found %s", nameTok.Literal, opTok)
	}
	p.advance()

	rhs, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	return &ast.TrackerUpdate{Target: target, Key: key, Op: opTok.Literal, RHS: rhs}, nil
}

// parseCmp implements `cmp := add (cmpop add)?` — comparisons do not chain.
func (p *Parser) parseCmp() (ast.Expr, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	switch p.cur().Type {
	case lexer.TokenEq, lexer.TokenNeq, lexer.TokenLt, lexer.TokenLte, lexer.TokenGt, lexer.TokenGte:
		op := p.advance()
		right, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		return &ast.Binary{Op: op.Literal, L: left, R: right}, nil
	default:
		return left, nil
	}
}

// parseAdd implements `add := mul (("+"|"-") mul)*`.
func (p *Parser) parseAdd() (ast.Expr, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == lexer.TokenPlus || p.cur().Type == lexer.TokenMinus {
		op := p.advance()
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: op.Literal, L: left, R: right}
	}
	return left, nil
}

// parseMul implements `mul := atom (("*"|"/") atom)*`.
func (p *Parser) parseMul() (ast.Expr, error) {
	left, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == lexer.TokenStar || p.cur().Type == lexer.TokenSlash {
		op := p.advance()
		right, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: op.Literal, L: left, R: right}
	}
	return left, nil
}

// parseAtom implements
// `atom := literal | identifier | prefixed | identifier "(" expr ")" | "(" expr ")"`.
func (p *Parser) parseAtom() (ast.Expr, error) {
	tok := p.cur()
	switch tok.Type {
	case lexer.TokenInteger:
		p.advance()
		return &ast.Literal{Type: ast.UINT256, Raw: tok.Literal}, nil

	case lexer.TokenHexAddress:
		p.advance()
		return &ast.Literal{Type: ast.ADDRESS, Raw: tok.Literal}, nil

	case lexer.TokenBool:
		p.advance()
		return &ast.Literal{Type: ast.BOOL, Raw: tok.Literal}, nil

	case lexer.TokenIdent:
		p.advance()
		return &ast.Ident{Namespace: ast.Unprefixed, Name: tok.Literal}, nil

	case lexer.TokenTracker:
		p.advance()
		id := &ast.Ident{Namespace: ast.TrackerRef, Name: tok.Literal}
		if p.cur().Type == lexer.TokenLParen {
			return p.parseMappedIndex(id)
		}
		return id, nil

	case lexer.TokenForeignCall:
		p.advance()
		return &ast.Ident{Namespace: ast.ForeignCallRef, Name: tok.Literal}, nil

	case lexer.TokenGlobal:
		p.advance()
		return &ast.Ident{Namespace: ast.GlobalRef, Name: tok.Literal}, nil

	case lexer.TokenLParen:
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenRParen); err != nil {
			return nil, err
		}
		return inner, nil

	default:
		return nil, fmt.Errorf("unexpected token %s", tok)
	}
}

// parseMappedIndex implements the `identifier "(" expr ")"` atom form for a
// tracker reference, yielding a MappedIndex node (spec §4.4).
func (p *Parser) parseMappedIndex(tracker *ast.Ident) (ast.Expr, error) {
	p.advance() // "("
	key, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return nil, err
	}
	return &ast.MappedIndex{Tracker: tracker, Key: key}, nil
}
