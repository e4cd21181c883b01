package expression

// SafeString carries two renderings of the same value: the real one, used
// when building commands, and a redacted one, used for anything written to
// logs. Values resolved from secrets arrive as SafeString and every string
// operation that touches one must keep both renderings in sync.
type SafeString struct {
	Value    string
	Redacted string
}

// NewSafeString returns a SafeString with the canonical redacted rendering.
func NewSafeString(value string) SafeString {
	return SafeString{Value: value, Redacted: Mask}
}

// Mask is the rendering used in place of secret material.
const Mask = "********"

func (s SafeString) String() string { return s.Value }

// Redact returns the log-safe rendering of v. Plain values render as
// themselves.
func Redact(v interface{}) string {
	if s, ok := v.(SafeString); ok {
		return s.Redacted
	}
	return Stringify(v)
}

// IsSafe reports whether v carries secret material.
func IsSafe(v interface{}) bool {
	_, ok := v.(SafeString)
	return ok
}
