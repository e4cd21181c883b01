// Package node implements the execution tree of a workflow: a Workflow node
// owning Job nodes, each owning an ordered list of Step nodes. Nodes share a
// scoped view of environment variables, user variables, secrets and inputs
// layered over the parent chain, and the dispatcher in this package walks
// the job dependency graph, expands matrix variants and drives execution.
package node

import (
	"context"
	"fmt"

	"github.com/bluish-run/bluish/expression"
	"github.com/bluish-run/bluish/logging"
	"github.com/bluish-run/bluish/model"
	"github.com/bluish-run/bluish/process"
)

// Status is the dispatch state of a node. Finished and Skipped are terminal
// for a single dispatch pass.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusFinished
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusRunning:
		return "RUNNING"
	case StatusFinished:
		return "FINISHED"
	case StatusSkipped:
		return "SKIPPED"
	}
	return "UNKNOWN"
}

// Kind discriminates the node types of the tree.
type Kind int

const (
	KindWorkflow Kind = iota
	KindJob
	KindStep
)

// Action executes a step and returns its process result. The empty name
// identifies the built-in run action.
type Action interface {
	Name() string
	Execute(ctx context.Context, step *Step) (process.Result, error)
}

// Registry resolves an action by its identifier. It is injected at workflow
// construction so that the set of available actions is explicit rather than
// assembled through import side effects.
type Registry interface {
	Lookup(name string) Action
}

// SensitiveInputsProvider lets an action declare input names whose values
// must never be logged unredacted.
type SensitiveInputsProvider interface {
	SensitiveInputs() []string
}

// Node is the shared part of Workflow, Job and Step. Parent pointers go
// strictly upward; the tree owns its children.
type Node struct {
	self   interface{}
	parent *Node
	kind   Kind
	def    model.Definition

	id        string
	ifCond    *model.Condition
	matrixDef model.Matrix

	defEnv     map[string]interface{}
	defVar     map[string]interface{}
	defSecrets map[string]string
	defWith    map[string]interface{}

	overrides       map[string]interface{}
	status          Status
	result          process.Result
	env             map[string]interface{}
	vars            map[string]interface{}
	secrets         map[string]interface{}
	inputs          map[string]interface{}
	outputs         map[string]interface{}
	matrix          map[string]interface{}
	sensitiveInputs map[string]bool
}

func (n *Node) init(self interface{}, parent *Node, kind Kind, def model.Definition) {
	n.self = self
	n.parent = parent
	n.kind = kind
	n.def = def
	n.reset()
}

// reset restores the node to its pre-dispatch state; a job dispatched under
// a matrix resets before every combination.
func (n *Node) reset() {
	n.overrides = map[string]interface{}{}
	n.env = copyValues(n.defEnv)
	n.vars = copyValues(n.defVar)
	n.secrets = map[string]interface{}{}
	for k, v := range n.defSecrets {
		n.secrets[k] = v
	}
	n.inputs = map[string]interface{}{}
	n.outputs = map[string]interface{}{}
	n.matrix = map[string]interface{}{}
	n.sensitiveInputs = map[string]bool{"password": true, "token": true}
	n.result = process.Result{}
	n.status = StatusPending
}

func copyValues(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// ID returns the node identifier (job/step id, workflow name).
func (n *Node) ID() string { return n.id }

// Status returns the node dispatch status.
func (n *Node) Status() Status { return n.status }

// Result returns the last process result recorded on this node.
func (n *Node) Result() process.Result { return n.result }

// Outputs returns the node's own output map.
func (n *Node) Outputs() map[string]interface{} { return n.outputs }

// Matrix returns the node's current matrix binding.
func (n *Node) Matrix() map[string]interface{} { return n.matrix }

// MarkSensitiveInput registers an input name for redaction.
func (n *Node) MarkSensitiveInput(name string) { n.sensitiveInputs[name] = true }

// SetAttr overrides an attribute for this node, shadowing the parsed
// definition until cleared.
func (n *Node) SetAttr(name string, value interface{}) { n.overrides[name] = value }

// ClearAttr removes a node-level attribute override.
func (n *Node) ClearAttr(name string) { delete(n.overrides, name) }

// GetAttr returns a node attribute: overrides first, then the parsed
// definition. String values are expression-expanded.
func (n *Node) GetAttr(name string, defaultValue interface{}) (interface{}, error) {
	if value, ok := n.overrides[name]; ok {
		return n.expandValue(value, 1)
	}
	if value, ok := n.def.Attr(name); ok {
		return n.expandValue(value, 1)
	}
	return defaultValue, nil
}

// GetInheritedAttr resolves an attribute through the parent chain: node
// overrides first, then the raw definition, walking upwards until a node
// declares it. The found value is expression-expanded in this node's scope.
// Attributes such as shell, working_directory or echo_commands cascade from
// workflow to job to step this way.
func (n *Node) GetInheritedAttr(name string, defaultValue interface{}) (interface{}, error) {
	result := defaultValue
	for ctx := n; ctx != nil; ctx = ctx.parent {
		if value, ok := ctx.overrides[name]; ok {
			result = value
			break
		}
		if value, ok := ctx.def.Attr(name); ok {
			result = value
			break
		}
	}
	return n.expandValue(result, 1)
}

// InheritedFlag is GetInheritedAttr for boolean attributes.
func (n *Node) InheritedFlag(name string, defaultValue bool) bool {
	value, err := n.GetInheritedAttr(name, defaultValue)
	if err != nil {
		return defaultValue
	}
	if flag, ok := value.(bool); ok {
		return flag
	}
	return expression.Truthy(value)
}

// MergedEnv returns the environment visible at this node: the env blocks of
// the parent chain overlaid by this node's own, innermost last.
func (n *Node) MergedEnv() map[string]interface{} {
	merged := map[string]interface{}{}
	var chain []*Node
	for ctx := n; ctx != nil; ctx = ctx.parent {
		chain = append(chain, ctx)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].env {
			merged[k] = v
		}
	}
	return merged
}

// ancestor walks up to the nearest node of the given kind.
func (n *Node) ancestor(kind Kind) *Node {
	for ctx := n; ctx != nil; ctx = ctx.parent {
		if ctx.kind == kind {
			return ctx
		}
	}
	return nil
}

func (n *Node) workflowNode() (*Workflow, error) {
	if ctx := n.ancestor(KindWorkflow); ctx != nil {
		return ctx.self.(*Workflow), nil
	}
	return nil, fmt.Errorf("no workflow in scope")
}

func (n *Node) jobNode() (*Job, error) {
	if ctx := n.ancestor(KindJob); ctx != nil {
		return ctx.self.(*Job), nil
	}
	return nil, fmt.Errorf("no job in scope")
}

func (n *Node) stepNode() (*Step, error) {
	if n.kind == KindStep {
		return n.self.(*Step), nil
	}
	return nil, fmt.Errorf("no step in scope")
}

// canDispatch evaluates the node's condition: absent means true, a boolean
// literal stands for itself and a string is expanded as an expression (bare
// conditions are wrapped in ${{ }} first) and coerced to boolean.
func (n *Node) canDispatch() (bool, error) {
	if n.ifCond == nil {
		return true, nil
	}
	if n.ifCond.IsBool {
		return n.ifCond.Bool, nil
	}
	condition := n.ifCond.Expr
	logging.Debugf("Testing %s", condition)
	if !expression.HasFragment(condition) {
		condition = "${{ " + condition + " }}"
	}
	value, err := n.Expand(condition)
	if err != nil {
		return false, err
	}
	return expression.Truthy(value), nil
}

// logValues logs a header and a set of key/value pairs, expanding values and
// redacting sensitive ones.
func (n *Node) logValues(header string, values map[string]interface{}, keys []string) {
	if len(values) == 0 {
		return
	}
	logging.Infof("%s:", header)
	for _, k := range keys {
		value, err := n.Expand(values[k])
		if err != nil {
			value = values[k]
		}
		if n.sensitiveInputs[k] {
			logging.Infof("  %s: %s", k, expression.Mask)
			continue
		}
		logging.Infof("  %s: %s", k, expression.Redact(value))
	}
}
