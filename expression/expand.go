package expression

import (
	"fmt"
	"strings"
)

const (
	opener = "${{"
	closer = "}}"
)

// MaxDepth bounds re-expansion of values that themselves expand to text
// containing further ${{ }} fragments.
const MaxDepth = 5

// ExpandError reports that expanding a value exceeded MaxDepth. It guards
// against accidental self-reference and is distinct from evaluation errors.
type ExpandError struct {
	Value string
}

func (e *ExpandError) Error() string {
	return fmt.Sprintf("expansion depth exceeded while expanding %q", e.Value)
}

// Expand substitutes every ${{ expr }} fragment in value, concatenating the
// results with the literal segments in order. When the whole string is a
// single fragment the typed evaluation result is returned instead of its
// string rendering. A doubled dollar ($${{) escapes interpolation for that
// occurrence.
func Expand(value string, resolver Resolver) (interface{}, error) {
	if !strings.Contains(value, opener) {
		return value, nil
	}

	var parts []interface{}
	rest := value
	for {
		idx := strings.Index(rest, opener)
		if idx < 0 {
			if rest != "" {
				parts = append(parts, rest)
			}
			break
		}
		// $${{ is an escaped opener: emit the fragment verbatim minus one $.
		if idx > 0 && rest[idx-1] == '$' {
			end := strings.Index(rest[idx:], closer)
			if end < 0 {
				parts = append(parts, rest)
				break
			}
			parts = append(parts, rest[:idx-1]+rest[idx:idx+end+len(closer)])
			rest = rest[idx+end+len(closer):]
			continue
		}
		if idx > 0 {
			parts = append(parts, rest[:idx])
		}
		end := strings.Index(rest[idx:], closer)
		if end < 0 {
			// unterminated fragment stays literal
			parts = append(parts, rest[idx:])
			break
		}
		inner := rest[idx+len(opener) : idx+end]
		result, err := Evaluate(strings.TrimSpace(inner), resolver)
		if err != nil {
			return nil, err
		}
		parts = append(parts, result)
		rest = rest[idx+end+len(closer):]
	}

	if len(parts) == 1 {
		return parts[0], nil
	}
	return join(parts), nil
}

// join concatenates expanded parts, keeping the redacted rendering intact
// when any part carries secret material.
func join(parts []interface{}) interface{} {
	safe := false
	for _, part := range parts {
		if IsSafe(part) {
			safe = true
			break
		}
	}
	var value, redacted strings.Builder
	for _, part := range parts {
		value.WriteString(Stringify(part))
		if safe {
			redacted.WriteString(Redact(part))
		}
	}
	if safe {
		return SafeString{Value: value.String(), Redacted: redacted.String()}
	}
	return value.String()
}

// HasFragment reports whether value still contains an interpolation opener.
func HasFragment(value string) bool {
	return strings.Contains(value, opener)
}
