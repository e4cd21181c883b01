package model

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/bluish-run/bluish/internal/yml"
)

// JobList preserves the declaration order of the jobs mapping; iteration and
// default dispatch order follow it.
type JobList []*JobDef

// UnmarshalYAML decodes the jobs mapping, keeping key order and assigning
// each job its mapping key as id.
func (l *JobList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("jobs must be a mapping")
	}
	return (*yml.Node)(node).Pairs(func(key string, value *yml.Node) error {
		job := &JobDef{}
		if err := (*yaml.Node)(value).Decode(job); err != nil {
			return fmt.Errorf("job %s: %w", key, err)
		}
		job.ID = key
		*l = append(*l, job)
		return nil
	})
}

// Axis is one matrix dimension.
type Axis struct {
	Key    string
	Values []interface{}
}

// Matrix is an ordered list of axes; the cartesian product of their values
// produces the dispatch variants of a node. Axis declaration order is
// preserved and the product iterates the last axis fastest.
type Matrix []Axis

// UnmarshalYAML decodes the matrix mapping in declaration order.
func (m *Matrix) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("matrix must be a mapping of axes")
	}
	return (*yml.Node)(node).Pairs(func(key string, value *yml.Node) error {
		raw := value.Interface()
		values, ok := raw.([]interface{})
		if !ok {
			return fmt.Errorf("matrix axis %s must be a sequence", key)
		}
		*m = append(*m, Axis{Key: key, Values: values})
		return nil
	})
}

// Condition is a dispatch gate: either a boolean literal or a string
// expression evaluated at dispatch time.
type Condition struct {
	IsBool bool
	Bool   bool
	Expr   string
}

// UnmarshalYAML accepts a bare bool or an expression string.
func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("condition must be a bool or a string")
	}
	if node.Tag == "!!bool" {
		c.IsBool = true
		return node.Decode(&c.Bool)
	}
	return node.Decode(&c.Expr)
}

// RunsOn is an unresolved host specification: a bare address expression or a
// mapping with extra host options.
type RunsOn struct {
	Host         string   `yaml:"host"`
	IdentityFile string   `yaml:"identity_file"`
	DockerArgs   []string `yaml:"docker_args"`
}

// UnmarshalYAML accepts a scalar address or a mapping.
func (r *RunsOn) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&r.Host)
	}
	type runsOn RunsOn
	return node.Decode((*runsOn)(r))
}
