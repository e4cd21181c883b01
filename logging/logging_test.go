package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecorate(t *testing.T) {
	assert.Equal(t, "  > one", Decorate("one", "  > "))
	assert.Equal(t, "  > one\n  > two", Decorate("one\ntwo", "  > "))
	assert.Equal(t, "", Decorate("", "  > "))
}

func TestInit(t *testing.T) {
	assert.Nil(t, Init("debug"))
	assert.NotNil(t, Init("not-a-level"))
}
