package filter

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/lanternsearch/lantern/internal/document"
	apperrors "github.com/lanternsearch/lantern/pkg/errors"
)

// Parse turns a filter string into an expression tree. Syntax errors and
// expressions nested beyond maxDepth are rejected synchronously, before any
// index access. An empty input yields a nil tree.
//
//	genre = horror AND (rating > 8 OR director = "Jordan Peele")
//	release_date 100 TO 200
//	tags IN [thriller, "slow burn"] AND NOT overview IS EMPTY
func Parse(input string, maxDepth int) (Node, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	lx := &lexer{input: input}
	tokens, err := lx.run()
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens, maxDepth: maxDepth}
	node, err := p.parseOr(0)
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, apperrors.InvalidFilter("unexpected %q at position %d", p.peek().text, p.peek().pos)
	}
	return node, nil
}

type tokenKind int

const (
	tkWord tokenKind = iota
	tkString
	tkOperator // = != > >= < <=
	tkLParen
	tkRParen
	tkLBracket
	tkRBracket
	tkComma
	tkEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) run() ([]token, error) {
	var tokens []token
	for l.pos < len(l.input) {
		r := l.input[l.pos]
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			l.pos++
		case r == '(':
			tokens = append(tokens, token{tkLParen, "(", l.pos})
			l.pos++
		case r == ')':
			tokens = append(tokens, token{tkRParen, ")", l.pos})
			l.pos++
		case r == '[':
			tokens = append(tokens, token{tkLBracket, "[", l.pos})
			l.pos++
		case r == ']':
			tokens = append(tokens, token{tkRBracket, "]", l.pos})
			l.pos++
		case r == ',':
			tokens = append(tokens, token{tkComma, ",", l.pos})
			l.pos++
		case r == '"' || r == '\'':
			s, err := l.quoted(rune(r))
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, s)
		case r == '=':
			tokens = append(tokens, token{tkOperator, "=", l.pos})
			l.pos++
		case r == '!':
			if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
				tokens = append(tokens, token{tkOperator, "!=", l.pos})
				l.pos += 2
			} else {
				return nil, apperrors.InvalidFilter("unexpected '!' at position %d", l.pos)
			}
		case r == '>' || r == '<':
			op := string(r)
			if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
				op += "="
				l.pos++
			}
			tokens = append(tokens, token{tkOperator, op, l.pos})
			l.pos++
		default:
			tokens = append(tokens, l.word())
		}
	}
	tokens = append(tokens, token{tkEOF, "", l.pos})
	return tokens, nil
}

func (l *lexer) quoted(quote rune) (token, error) {
	start := l.pos
	l.pos++ // opening quote
	var b strings.Builder
	for l.pos < len(l.input) {
		r := rune(l.input[l.pos])
		if r == '\\' && l.pos+1 < len(l.input) {
			b.WriteByte(l.input[l.pos+1])
			l.pos += 2
			continue
		}
		if r == quote {
			l.pos++
			return token{tkString, b.String(), start}, nil
		}
		b.WriteByte(l.input[l.pos])
		l.pos++
	}
	return token{}, apperrors.InvalidFilter("unterminated string starting at position %d", start)
}

func (l *lexer) word() token {
	start := l.pos
	for l.pos < len(l.input) {
		r := rune(l.input[l.pos])
		if unicode.IsSpace(r) || strings.ContainsRune("()[],=!<>\"'", r) {
			break
		}
		l.pos++
	}
	return token{tkWord, l.input[start:l.pos], start}
}

type parser struct {
	tokens   []token
	pos      int
	maxDepth int
}

func (p *parser) peek() token { return p.tokens[p.pos] }
func (p *parser) advance() token {
	t := p.tokens[p.pos]
	if t.kind != tkEOF {
		p.pos++
	}
	return t
}
func (p *parser) atEnd() bool { return p.peek().kind == tkEOF }

func (p *parser) wordIs(keyword string) bool {
	t := p.peek()
	return t.kind == tkWord && strings.EqualFold(t.text, keyword)
}

func (p *parser) checkDepth(depth int) error {
	if depth > p.maxDepth {
		return apperrors.Newf(apperrors.ErrFilterTooDeep, 400,
			"filter exceeds maximum nesting depth of %d", p.maxDepth)
	}
	return nil
}

// parseOr handles the loosest binding: AND binds tighter than OR, so OR is
// the outermost production.
func (p *parser) parseOr(depth int) (Node, error) {
	if err := p.checkDepth(depth); err != nil {
		return nil, err
	}
	left, err := p.parseAnd(depth + 1)
	if err != nil {
		return nil, err
	}
	children := []Node{left}
	for p.wordIs("OR") {
		p.advance()
		right, err := p.parseAnd(depth + 1)
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return left, nil
	}
	return &Or{Children: children}, nil
}

func (p *parser) parseAnd(depth int) (Node, error) {
	if err := p.checkDepth(depth); err != nil {
		return nil, err
	}
	left, err := p.parseUnary(depth + 1)
	if err != nil {
		return nil, err
	}
	children := []Node{left}
	for p.wordIs("AND") {
		p.advance()
		right, err := p.parseUnary(depth + 1)
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return left, nil
	}
	return &And{Children: children}, nil
}

func (p *parser) parseUnary(depth int) (Node, error) {
	if err := p.checkDepth(depth); err != nil {
		return nil, err
	}
	if p.wordIs("NOT") {
		// NOT before a condition keyword (NOT EXISTS etc.) is handled
		// inside parseCondition; NOT before a parenthesis or a whole
		// condition negates the subexpression.
		p.advance()
		child, err := p.parseUnary(depth + 1)
		if err != nil {
			return nil, err
		}
		return &Not{Child: child}, nil
	}
	if p.peek().kind == tkLParen {
		p.advance()
		inner, err := p.parseOr(depth + 1)
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tkRParen {
			return nil, apperrors.InvalidFilter("expected ')' at position %d", p.peek().pos)
		}
		p.advance()
		return inner, nil
	}
	return p.parseCondition()
}

func (p *parser) parseCondition() (Node, error) {
	t := p.advance()
	if t.kind != tkWord && t.kind != tkString {
		return nil, apperrors.InvalidFilter("expected attribute at position %d, got %q", t.pos, t.text)
	}
	attr := t.text

	next := p.peek()
	switch {
	case next.kind == tkOperator:
		p.advance()
		op, ok := comparisonOp(next.text)
		if !ok {
			return nil, apperrors.InvalidFilter("unknown operator %q at position %d", next.text, next.pos)
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return &Condition{Attr: attr, Op: op, Values: []document.Value{v}}, nil
	case next.kind == tkWord:
		return p.parseKeywordCondition(attr)
	default:
		// "attr low TO high" range form starts with a value token.
		return p.parseRangeOrError(attr)
	}
}

func comparisonOp(text string) (Op, bool) {
	switch text {
	case "=":
		return OpEq, true
	case "!=":
		return OpNeq, true
	case ">":
		return OpGt, true
	case ">=":
		return OpGte, true
	case "<":
		return OpLt, true
	case "<=":
		return OpLte, true
	default:
		return 0, false
	}
}

func (p *parser) parseKeywordCondition(attr string) (Node, error) {
	negated := false
	if p.wordIs("NOT") {
		negated = true
		p.advance()
	}
	switch {
	case p.wordIs("EXISTS"):
		p.advance()
		return &Condition{Attr: attr, Op: pickOp(negated, OpExists, OpNotExists)}, nil
	case p.wordIs("IS"):
		p.advance()
		if p.wordIs("NOT") {
			negated = !negated
			p.advance()
		}
		switch {
		case p.wordIs("NULL"):
			p.advance()
			return &Condition{Attr: attr, Op: pickOp(negated, OpIsNull, OpIsNotNull)}, nil
		case p.wordIs("EMPTY"):
			p.advance()
			return &Condition{Attr: attr, Op: pickOp(negated, OpIsEmpty, OpIsNotEmpty)}, nil
		default:
			return nil, apperrors.InvalidFilter("expected NULL or EMPTY at position %d", p.peek().pos)
		}
	case p.wordIs("IN"):
		p.advance()
		values, err := p.parseValueList()
		if err != nil {
			return nil, err
		}
		return &Condition{Attr: attr, Op: pickOp(negated, OpIn, OpNotIn), Values: values}, nil
	case p.wordIs("CONTAINS"):
		p.advance()
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return &Condition{Attr: attr, Op: pickOp(negated, OpContains, OpNotContains), Values: []document.Value{v}}, nil
	case p.wordIs("STARTS"):
		p.advance()
		if !p.wordIs("WITH") {
			return nil, apperrors.InvalidFilter("expected WITH at position %d", p.peek().pos)
		}
		p.advance()
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return &Condition{Attr: attr, Op: pickOp(negated, OpStartsWith, OpNotStartsWith), Values: []document.Value{v}}, nil
	default:
		if negated {
			return nil, apperrors.InvalidFilter("expected condition keyword after NOT at position %d", p.peek().pos)
		}
		return p.parseRangeOrError(attr)
	}
}

// parseRangeOrError parses the "attr low TO high" range form.
func (p *parser) parseRangeOrError(attr string) (Node, error) {
	low, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if !p.wordIs("TO") {
		return nil, apperrors.InvalidFilter("expected operator after attribute %q at position %d", attr, p.peek().pos)
	}
	p.advance()
	high, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return &Condition{Attr: attr, Op: OpTo, Values: []document.Value{low, high}}, nil
}

func pickOp(negated bool, plain, neg Op) Op {
	if negated {
		return neg
	}
	return plain
}

func (p *parser) parseValue() (document.Value, error) {
	t := p.advance()
	switch t.kind {
	case tkString:
		return document.String(t.text), nil
	case tkWord:
		return wordValue(t.text), nil
	default:
		return document.Value{}, apperrors.InvalidFilter("expected value at position %d, got %q", t.pos, t.text)
	}
}

func (p *parser) parseValueList() ([]document.Value, error) {
	if p.peek().kind != tkLBracket {
		return nil, apperrors.InvalidFilter("expected '[' at position %d", p.peek().pos)
	}
	p.advance()
	var values []document.Value
	for p.peek().kind != tkRBracket {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if p.peek().kind == tkComma {
			p.advance()
			continue
		}
		if p.peek().kind != tkRBracket {
			return nil, apperrors.InvalidFilter("expected ',' or ']' at position %d", p.peek().pos)
		}
	}
	p.advance()
	return values, nil
}

// wordValue interprets a bare word operand: numbers become numeric values,
// true/false/null their typed equivalents, anything else a string.
func wordValue(text string) document.Value {
	switch strings.ToLower(text) {
	case "true":
		return document.Bool(true)
	case "false":
		return document.Bool(false)
	case "null":
		return document.Null()
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return document.Number(f)
	}
	return document.String(text)
}
