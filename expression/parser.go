package expression

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/viant/parsly"
)

// Resolver supplies variable values to the evaluator. Unknown variables
// resolve to nil so that conditions can probe undefined paths; resolution
// errors (unknown job id, ambiguous reference) still propagate.
type Resolver interface {
	LookupValue(name string) (interface{}, error)
}

// parser evaluates an expression while descending its grammar. Precedence,
// low to high: ternary, ||, &&, equality, relational, additive,
// multiplicative, unary, primary.
type parser struct {
	cursor   *parsly.Cursor
	resolver Resolver
}

// Evaluate parses and evaluates a single expression (the inner text of a
// ${{ }} fragment).
func Evaluate(expr string, resolver Resolver) (interface{}, error) {
	p := &parser{cursor: parsly.NewCursor("", []byte(expr), 0), resolver: resolver}
	value, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	p.cursor.MatchOne(whitespaceToken)
	if p.cursor.Pos < p.cursor.InputSize {
		return nil, fmt.Errorf("unexpected input at offset %d in expression %q", p.cursor.Pos, expr)
	}
	return value, nil
}

func (p *parser) match(candidates ...*parsly.Token) *parsly.TokenMatch {
	return p.cursor.MatchAfterOptional(whitespaceToken, candidates...)
}

func (p *parser) parseTernary() (interface{}, error) {
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if matched := p.match(questionToken); matched.Code != questionCode {
		return cond, nil
	}
	whenTrue, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if matched := p.match(colonToken); matched.Code != colonCode {
		return nil, p.cursor.NewError(colonToken)
	}
	whenFalse, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if Truthy(cond) {
		return whenTrue, nil
	}
	return whenFalse, nil
}

func (p *parser) parseOr() (interface{}, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if matched := p.match(orToken); matched.Code != orCode {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Truthy(left) || Truthy(right)
	}
}

func (p *parser) parseAnd() (interface{}, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for {
		if matched := p.match(andToken); matched.Code != andCode {
			return left, nil
		}
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = Truthy(left) && Truthy(right)
	}
}

func (p *parser) parseEquality() (interface{}, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for {
		matched := p.match(eqToken, neToken)
		if matched.Code != eqCode && matched.Code != neCode {
			return left, nil
		}
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		equal := valuesEqual(left, right)
		if matched.Code == eqCode {
			left = equal
		} else {
			left = !equal
		}
	}
}

func (p *parser) parseRelational() (interface{}, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		matched := p.match(leToken, geToken, ltToken, gtToken)
		switch matched.Code {
		case leCode, geCode, ltCode, gtCode:
		default:
			return left, nil
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		cmp, err := compareValues(left, right)
		if err != nil {
			return nil, err
		}
		switch matched.Code {
		case ltCode:
			left = cmp < 0
		case gtCode:
			left = cmp > 0
		case leCode:
			left = cmp <= 0
		case geCode:
			left = cmp >= 0
		}
	}
}

func (p *parser) parseAdditive() (interface{}, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		matched := p.match(plusToken, minusToken)
		if matched.Code != plusCode && matched.Code != minusCode {
			return left, nil
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		if matched.Code == plusCode {
			left = addValues(left, right)
		} else {
			left, err = arithmetic(left, right, '-')
			if err != nil {
				return nil, err
			}
		}
	}
}

func (p *parser) parseMultiplicative() (interface{}, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		matched := p.match(mulToken, divToken, modToken)
		var op byte
		switch matched.Code {
		case mulCode:
			op = '*'
		case divCode:
			op = '/'
		case modCode:
			op = '%'
		default:
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left, err = arithmetic(left, right, op)
		if err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseUnary() (interface{}, error) {
	matched := p.match(minusToken, notToken)
	switch matched.Code {
	case minusCode:
		value, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return arithmetic(0, value, '-')
	case notCode:
		value, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return !Truthy(value), nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (interface{}, error) {
	matched := p.match(numberToken, stringToken, variableToken, openParenToken)
	switch matched.Code {
	case numberCode:
		text := matched.Text(p.cursor)
		if strings.Contains(text, ".") {
			value, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, err
			}
			return value, nil
		}
		value, err := strconv.Atoi(text)
		if err != nil {
			return nil, err
		}
		return value, nil
	case stringCode:
		return unquote(matched.Text(p.cursor)), nil
	case variableCode:
		name := matched.Text(p.cursor)
		switch name {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return p.resolver.LookupValue(name)
	case openParenCode:
		value, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if matched := p.match(closeParenToken); matched.Code != closeParenCode {
			return nil, p.cursor.NewError(closeParenToken)
		}
		return value, nil
	}
	return nil, p.cursor.NewError(numberToken, stringToken, variableToken, openParenToken)
}

func unquote(text string) string {
	if len(text) < 2 {
		return text
	}
	inner := text[1 : len(text)-1]
	if !strings.Contains(inner, "\\") {
		return inner
	}
	var b strings.Builder
	for i := 0; i < len(inner); i++ {
		if inner[i] != '\\' || i+1 == len(inner) {
			b.WriteByte(inner[i])
			continue
		}
		i++
		switch inner[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		default:
			b.WriteByte(inner[i])
		}
	}
	return b.String()
}

// numeric reports v as a float with an integer marker. SafeString is never
// numeric: secret material stays textual.
func numeric(v interface{}) (value float64, isInt bool, ok bool) {
	switch actual := v.(type) {
	case int:
		return float64(actual), true, true
	case int64:
		return float64(actual), true, true
	case float64:
		return actual, false, true
	}
	return 0, false, false
}

// addValues implements +: arithmetic on two numbers, string concatenation
// otherwise. Concatenation keeps the redacted rendering intact when either
// operand carries secret material.
func addValues(a, b interface{}) interface{} {
	av, ai, aok := numeric(a)
	bv, bi, bok := numeric(b)
	if aok && bok {
		if ai && bi {
			return int(av) + int(bv)
		}
		return av + bv
	}
	if IsSafe(a) || IsSafe(b) {
		return SafeString{
			Value:    Stringify(a) + Stringify(b),
			Redacted: Redact(a) + Redact(b),
		}
	}
	return Stringify(a) + Stringify(b)
}

func arithmetic(a, b interface{}, op byte) (interface{}, error) {
	av, ai, aok := numeric(a)
	bv, bi, bok := numeric(b)
	if !aok || !bok {
		return nil, fmt.Errorf("operator %q requires numeric operands, got %T and %T", string(op), a, b)
	}
	bothInt := ai && bi
	switch op {
	case '-':
		if bothInt {
			return int(av) - int(bv), nil
		}
		return av - bv, nil
	case '*':
		if bothInt {
			return int(av) * int(bv), nil
		}
		return av * bv, nil
	case '/':
		if bv == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		if bothInt && int(av)%int(bv) == 0 {
			return int(av) / int(bv), nil
		}
		return av / bv, nil
	case '%':
		if bv == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		if bothInt {
			return int(av) % int(bv), nil
		}
		return math.Mod(av, bv), nil
	}
	return nil, fmt.Errorf("unsupported operator %q", string(op))
}

func valuesEqual(a, b interface{}) bool {
	if av, _, aok := numeric(a); aok {
		if bv, _, bok := numeric(b); bok {
			return av == bv
		}
		return false
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ab == bb
	}
	as, aok := stringValue(a)
	bs, bok := stringValue(b)
	if aok && bok {
		return as == bs
	}
	return a == b
}

func compareValues(a, b interface{}) (int, error) {
	if av, _, aok := numeric(a); aok {
		if bv, _, bok := numeric(b); bok {
			switch {
			case av < bv:
				return -1, nil
			case av > bv:
				return 1, nil
			}
			return 0, nil
		}
	}
	as, aok := stringValue(a)
	bs, bok := stringValue(b)
	if aok && bok {
		return strings.Compare(as, bs), nil
	}
	return 0, fmt.Errorf("cannot order values of type %T and %T", a, b)
}

func stringValue(v interface{}) (string, bool) {
	switch actual := v.(type) {
	case string:
		return actual, true
	case SafeString:
		return actual.Value, true
	}
	return "", false
}

// Truthy coerces a value into a condition result: nil, false, zero and the
// empty or "false" string are all false.
func Truthy(v interface{}) bool {
	switch actual := v.(type) {
	case nil:
		return false
	case bool:
		return actual
	case string:
		return actual != "" && actual != "false"
	case SafeString:
		return actual.Value != "" && actual.Value != "false"
	}
	if value, _, ok := numeric(v); ok {
		return value != 0
	}
	return true
}

// Stringify renders a value for interpolation into surrounding text.
func Stringify(v interface{}) string {
	switch actual := v.(type) {
	case nil:
		return ""
	case string:
		return actual
	case SafeString:
		return actual.Value
	case bool:
		return strconv.FormatBool(actual)
	case int:
		return strconv.Itoa(actual)
	case int64:
		return strconv.FormatInt(actual, 10)
	case float64:
		return strconv.FormatFloat(actual, 'f', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}
