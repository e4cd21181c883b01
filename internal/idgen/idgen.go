package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a new globally unique identifier as string. It is implemented
// as a thin wrapper so tests can stub it.

var NewFunc = func() string { return uuid.New().String() }

func New() string { return NewFunc() }

// NewHex returns a compact identifier safe for use in file names.
func NewHex() string { return strings.ReplaceAll(New(), "-", "") }
