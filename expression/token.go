package expression

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes
const (
	whitespaceCode = iota
	numberCode
	variableCode
	stringCode
	questionCode
	colonCode
	orCode
	andCode
	eqCode
	neCode
	leCode
	geCode
	ltCode
	gtCode
	plusCode
	minusCode
	mulCode
	divCode
	modCode
	notCode
	openParenCode
	closeParenCode
)

var (
	whitespaceToken = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	numberToken     = parsly.NewToken(numberCode, "Number", &numberMatcher{})
	variableToken   = parsly.NewToken(variableCode, "Variable", &variableMatcher{})
	stringToken     = parsly.NewToken(stringCode, "String", &stringMatcher{})

	questionToken   = parsly.NewToken(questionCode, "?", matcher.NewByte('?'))
	colonToken      = parsly.NewToken(colonCode, ":", matcher.NewByte(':'))
	orToken         = parsly.NewToken(orCode, "||", matcher.NewFragment("||"))
	andToken        = parsly.NewToken(andCode, "&&", matcher.NewFragment("&&"))
	eqToken         = parsly.NewToken(eqCode, "==", matcher.NewFragment("=="))
	neToken         = parsly.NewToken(neCode, "!=", matcher.NewFragment("!="))
	leToken         = parsly.NewToken(leCode, "<=", matcher.NewFragment("<="))
	geToken         = parsly.NewToken(geCode, ">=", matcher.NewFragment(">="))
	ltToken         = parsly.NewToken(ltCode, "<", matcher.NewByte('<'))
	gtToken         = parsly.NewToken(gtCode, ">", matcher.NewByte('>'))
	plusToken       = parsly.NewToken(plusCode, "+", matcher.NewByte('+'))
	minusToken      = parsly.NewToken(minusCode, "-", matcher.NewByte('-'))
	mulToken        = parsly.NewToken(mulCode, "*", matcher.NewByte('*'))
	divToken        = parsly.NewToken(divCode, "/", matcher.NewByte('/'))
	modToken        = parsly.NewToken(modCode, "%", matcher.NewByte('%'))
	notToken        = parsly.NewToken(notCode, "!", matcher.NewByte('!'))
	openParenToken  = parsly.NewToken(openParenCode, "(", matcher.NewByte('('))
	closeParenToken = parsly.NewToken(closeParenCode, ")", matcher.NewByte(')'))
)

// numberMatcher matches integer and decimal literals: [0-9]+(\.[0-9]+)?
type numberMatcher struct{}

func (m *numberMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	matched := 0
	for i := pos; i < size && isDigit(input[i]); i++ {
		matched++
	}
	if matched == 0 {
		return 0
	}
	// optional mantissa
	i := pos + matched
	if i+1 < size && input[i] == '.' && isDigit(input[i+1]) {
		matched++
		for j := i + 1; j < size && isDigit(input[j]); j++ {
			matched++
		}
	}
	return matched
}

// variableMatcher matches dotted variable paths: [a-zA-Z_.][a-zA-Z0-9_.]*
// A leading dot selects node-relative members such as .stdout.
type variableMatcher struct{}

func (m *variableMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}
	if !isLetter(input[pos]) && input[pos] != '_' && input[pos] != '.' {
		return 0
	}
	matched := 1
	for i := pos + 1; i < size; i++ {
		if isLetter(input[i]) || isDigit(input[i]) || input[i] == '_' || input[i] == '.' {
			matched++
			continue
		}
		break
	}
	return matched
}

// stringMatcher matches single or double quoted literals with backslash
// escapes.
type stringMatcher struct{}

func (m *stringMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}
	quote := input[pos]
	if quote != '"' && quote != '\'' {
		return 0
	}
	for i := pos + 1; i < size; i++ {
		switch input[i] {
		case '\\':
			i++
		case quote:
			return i - pos + 1
		}
	}
	return 0
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
