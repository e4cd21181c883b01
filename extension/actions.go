// Package extension holds the action registry and the input decoding
// helpers shared by the built-in actions.
package extension

import (
	"sync"

	"github.com/viant/structology/conv"

	"github.com/bluish-run/bluish/expression"
	"github.com/bluish-run/bluish/node"
)

// Actions is a thread-safe registry of step actions keyed by identifier.
type Actions struct {
	actions map[string]node.Action
	mux     sync.RWMutex
}

// Lookup returns an action by name, nil when unknown. The empty name
// resolves the built-in run action.
func (s *Actions) Lookup(name string) node.Action {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.actions[name]
}

// Register registers an action under its name, replacing a previous
// registration.
func (s *Actions) Register(action node.Action) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.actions[action.Name()] = action
}

// Names returns the registered action names.
func (s *Actions) Names() []string {
	s.mux.RLock()
	defer s.mux.RUnlock()
	names := make([]string, 0, len(s.actions))
	for name := range s.actions {
		names = append(names, name)
	}
	return names
}

// NewActions creates a registry preloaded with the given actions.
func NewActions(actions ...node.Action) *Actions {
	ret := &Actions{actions: make(map[string]node.Action)}
	for _, action := range actions {
		if action != nil {
			ret.Register(action)
		}
	}
	return ret
}

// DecodeInputs converts a step's effective inputs into a typed input
// struct, coercing scalar kinds where needed. Redacted values are unwrapped
// to their real content; redaction only applies to logging.
func DecodeInputs(step *node.Step, target interface{}) error {
	expanded, err := step.Expand(step.Inputs())
	if err != nil {
		return err
	}
	inputs, _ := expanded.(map[string]interface{})
	plain := make(map[string]interface{}, len(inputs))
	for k, v := range inputs {
		if safe, ok := v.(expression.SafeString); ok {
			plain[k] = safe.Value
			continue
		}
		plain[k] = v
	}
	options := conv.DefaultOptions()
	options.ClonePointerData = true
	options.IgnoreUnmapped = true
	options.AccessUnexported = true
	converter := conv.NewConverter(options)
	return converter.Convert(plain, target)
}

// StringList normalizes an input that accepts either a scalar or a list of
// scalars into a string slice.
func StringList(value interface{}) []string {
	switch actual := value.(type) {
	case nil:
		return nil
	case string:
		if actual == "" {
			return nil
		}
		return []string{actual}
	case []string:
		return actual
	case []interface{}:
		result := make([]string, 0, len(actual))
		for _, item := range actual {
			result = append(result, expression.Stringify(item))
		}
		return result
	}
	return []string{expression.Stringify(value)}
}
