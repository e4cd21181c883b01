package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpand(t *testing.T) {
	resolver := mapResolver{
		"name":   "world",
		"count":  3,
		"secret": NewSafeString("hunter2"),
	}

	var testCases = []struct {
		description string
		value       string
		expect      interface{}
	}{
		{description: "no fragment passes through", value: "plain text", expect: "plain text"},
		{description: "whole fragment keeps type", value: "${{ count }}", expect: 3},
		{description: "interpolation into text", value: "hello ${{ name }}!", expect: "hello world!"},
		{description: "multiple fragments", value: "${{ name }}-${{ count }}", expect: "world-3"},
		{description: "expression inside fragment", value: "total: ${{ count * 2 }}", expect: "total: 6"},
		{description: "escaped opener stays literal", value: "cost $${{ name }}", expect: "cost ${{ name }}"},
		{description: "unterminated fragment stays literal", value: "broken ${{ name", expect: "broken ${{ name"},
	}
	for _, testCase := range testCases {
		actual, err := Expand(testCase.value, resolver)
		if !assert.Nil(t, err, testCase.description) {
			continue
		}
		assert.EqualValues(t, testCase.expect, actual, testCase.description)
	}
}

func TestExpand_SafeString(t *testing.T) {
	resolver := mapResolver{"secret": NewSafeString("hunter2")}

	actual, err := Expand("a${{ secret }}", resolver)
	assert.Nil(t, err)
	safe, ok := actual.(SafeString)
	if assert.True(t, ok) {
		assert.Equal(t, "ahunter2", safe.Value)
		assert.Equal(t, "a"+Mask, safe.Redacted)
	}
}

func TestExpand_EvaluationError(t *testing.T) {
	_, err := Expand("${{ 1 / 0 }}", mapResolver{})
	assert.NotNil(t, err)
}

func TestHasFragment(t *testing.T) {
	assert.True(t, HasFragment("${{ x }}"))
	assert.True(t, HasFragment("text ${{ x"))
	assert.False(t, HasFragment("plain"))
}
