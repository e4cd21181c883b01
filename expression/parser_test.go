package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type mapResolver map[string]interface{}

func (m mapResolver) LookupValue(name string) (interface{}, error) {
	return m[name], nil
}

func TestEvaluate(t *testing.T) {
	resolver := mapResolver{
		"x":          5,
		"name":       "world",
		"var.flag":   true,
		"pi":         3.5,
		"env.HOME":   "/home/test",
		"job.secret": NewSafeString("hunter2"),
	}

	var testCases = []struct {
		description string
		expr        string
		expect      interface{}
	}{
		{description: "integer literal", expr: "42", expect: 42},
		{description: "float literal", expr: "4.5", expect: 4.5},
		{description: "single quoted string", expr: "'hello'", expect: "hello"},
		{description: "double quoted string", expr: `"hello"`, expect: "hello"},
		{description: "true literal", expr: "true", expect: true},
		{description: "false literal", expr: "false", expect: false},
		{description: "addition", expr: "1 + 2", expect: 3},
		{description: "precedence multiply first", expr: "2 + 3 * 4", expect: 14},
		{description: "precedence with parens", expr: "(2 + 3) * 4", expect: 20},
		{description: "exact integer division", expr: "10 / 2", expect: 5},
		{description: "inexact division yields float", expr: "10 / 4", expect: 2.5},
		{description: "modulo", expr: "7 % 3", expect: 1},
		{description: "mixed int float addition", expr: "1 + 0.5", expect: 1.5},
		{description: "unary minus", expr: "-x", expect: -5},
		{description: "unary not", expr: "!true", expect: false},
		{description: "string concatenation", expr: "'foo' + 'bar'", expect: "foobar"},
		{description: "string and number concatenation", expr: "'v' + 2", expect: "v2"},
		{description: "variable lookup", expr: "x", expect: 5},
		{description: "dotted variable lookup", expr: "env.HOME", expect: "/home/test"},
		{description: "unknown variable is nil", expr: "missing", expect: nil},
		{description: "equality", expr: "1 == 1", expect: true},
		{description: "numeric equality across kinds", expr: "1 == 1.0", expect: true},
		{description: "inequality", expr: "1 != 2", expect: true},
		{description: "less than", expr: "1 < 2", expect: true},
		{description: "less or equal", expr: "2 <= 2", expect: true},
		{description: "greater than", expr: "x > 10", expect: false},
		{description: "greater or equal", expr: "x >= 5", expect: true},
		{description: "string ordering", expr: "'abc' < 'abd'", expect: true},
		{description: "and short form", expr: "true && false", expect: false},
		{description: "or short form", expr: "false || true", expect: true},
		{description: "logic on comparisons", expr: "x > 1 && x < 10", expect: true},
		{description: "ternary true branch", expr: "x > 1 ? 'big' : 'small'", expect: "big"},
		{description: "ternary false branch", expr: "x > 10 ? 'big' : 'small'", expect: "small"},
		{description: "nested ternary", expr: "x > 10 ? 'a' : x > 1 ? 'b' : 'c'", expect: "b"},
		{description: "float arithmetic", expr: "pi * 2", expect: 7.0},
	}

	for _, testCase := range testCases {
		actual, err := Evaluate(testCase.expr, resolver)
		if !assert.Nil(t, err, testCase.description) {
			continue
		}
		assert.EqualValues(t, testCase.expect, actual, testCase.description)
	}
}

func TestEvaluate_Errors(t *testing.T) {
	resolver := mapResolver{}

	var testCases = []struct {
		description string
		expr        string
	}{
		{description: "division by zero", expr: "1 / 0"},
		{description: "modulo by zero", expr: "1 % 0"},
		{description: "trailing garbage", expr: "1 + 2 3"},
		{description: "unterminated paren", expr: "(1 + 2"},
		{description: "missing ternary colon", expr: "true ? 1"},
		{description: "ordering incompatible types", expr: "true < 1"},
	}
	for _, testCase := range testCases {
		_, err := Evaluate(testCase.expr, resolver)
		assert.NotNil(t, err, testCase.description)
	}
}

func TestEvaluate_SafeString(t *testing.T) {
	resolver := mapResolver{"secret": NewSafeString("hunter2")}

	actual, err := Evaluate("'a' + secret", resolver)
	assert.Nil(t, err)
	safe, ok := actual.(SafeString)
	if assert.True(t, ok) {
		assert.Equal(t, "ahunter2", safe.Value)
		assert.Equal(t, "a"+Mask, safe.Redacted)
	}

	// secret material never participates in arithmetic
	_, err = Evaluate("secret - 1", resolver)
	assert.NotNil(t, err)
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(false))
	assert.False(t, Truthy(0))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy("false"))
	assert.True(t, Truthy("0"))
	assert.True(t, Truthy(1))
	assert.True(t, Truthy("yes"))
	assert.True(t, Truthy(NewSafeString("x")))
	assert.False(t, Truthy(NewSafeString("")))
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, "42", Stringify(42))
	assert.Equal(t, "2.5", Stringify(2.5))
	assert.Equal(t, "plain", Stringify("plain"))
	assert.Equal(t, "real", Stringify(NewSafeString("real")))
}
