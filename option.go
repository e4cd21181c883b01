package bluish

import (
	"github.com/bluish-run/bluish/extension"
	"github.com/bluish-run/bluish/node"
	"github.com/bluish-run/bluish/service/loader"
)

// Option customises a Service.
type Option func(*Service)

// WithActions replaces the action registry.
func WithActions(actions *extension.Actions) Option {
	return func(s *Service) {
		s.actions = actions
	}
}

// WithAction registers an extra action on top of the built-in catalog.
func WithAction(action node.Action) Option {
	return func(s *Service) {
		s.actions.Register(action)
	}
}

// WithLoader replaces the workflow loader.
func WithLoader(l *loader.Service) Option {
	return func(s *Service) {
		s.loader = l
	}
}
