// Package loader resolves and parses workflow documents.
package loader

import (
	"context"
	"fmt"
	"os"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/bluish-run/bluish/model"
)

// DefaultName is the workflow file looked up when none is given.
const DefaultName = "bluish"

// Service loads workflow definitions from the local filesystem or any URL
// scheme the storage layer understands.
type Service struct {
	fs afs.Service
}

// New creates a loader.
func New() *Service {
	return &Service{fs: afs.New()}
}

// Locate resolves a workflow name to a file path, probing <name>.yaml and
// .bluish/<name>.yaml. An empty name resolves the default workflow.
func (s *Service) Locate(name string) (string, error) {
	if name == "" {
		name = DefaultName
	}
	candidates := []string{
		name + ".yaml",
		".bluish/" + name + ".yaml",
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no workflow file found for %q", name)
}

// Load reads and parses the workflow document at URL.
func (s *Service) Load(ctx context.Context, URL string) (*model.WorkflowDef, error) {
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow %s: %w", URL, err)
	}
	return Parse(data)
}

// LoadByName locates a workflow by name and loads it.
func (s *Service) LoadByName(ctx context.Context, name string) (*model.WorkflowDef, error) {
	location, err := s.Locate(name)
	if err != nil {
		return nil, err
	}
	return s.Load(ctx, location)
}

// Parse decodes a workflow document and validates its structure.
func Parse(data []byte) (*model.WorkflowDef, error) {
	def := &model.WorkflowDef{}
	if err := yaml.Unmarshal(data, def); err != nil {
		return nil, fmt.Errorf("failed to parse workflow: %w", err)
	}
	if err := def.Normalize(); err != nil {
		return nil, err
	}
	return def, nil
}
