package node

import (
	"fmt"
	"strings"

	"github.com/bluish-run/bluish/expression"
)

// valueScope adapts a node to expression.Resolver while threading the
// re-expansion depth: a resolved value that itself contains ${{ }} is
// expanded at depth+1 until expression.MaxDepth.
type valueScope struct {
	node  *Node
	depth int
}

func (s valueScope) LookupValue(name string) (interface{}, error) {
	return s.node.getValue(name, s.depth)
}

// Expand resolves every ${{ }} fragment in value against this node's scope.
// Strings are interpolated, maps and slices are expanded recursively and
// all other types pass through unchanged.
func (n *Node) Expand(value interface{}) (interface{}, error) {
	return n.expandValue(value, 1)
}

// ExpandString is Expand for string results; SafeString values are
// unwrapped to their real content.
func (n *Node) ExpandString(value string) (string, error) {
	expanded, err := n.Expand(value)
	if err != nil {
		return "", err
	}
	return expression.Stringify(expanded), nil
}

func (n *Node) expandValue(value interface{}, depth int) (interface{}, error) {
	switch actual := value.(type) {
	case string:
		if !expression.HasFragment(actual) {
			return actual, nil
		}
		if depth > expression.MaxDepth {
			return nil, &expression.ExpandError{Value: actual}
		}
		return expression.Expand(actual, valueScope{node: n, depth: depth})
	case map[string]interface{}:
		result := make(map[string]interface{}, len(actual))
		for k, v := range actual {
			expanded, err := n.expandValue(v, depth)
			if err != nil {
				return nil, err
			}
			result[k] = expanded
		}
		return result, nil
	case []interface{}:
		result := make([]interface{}, len(actual))
		for i, v := range actual {
			expanded, err := n.expandValue(v, depth)
			if err != nil {
				return nil, err
			}
			result[i] = expanded
		}
		return result, nil
	}
	return value, nil
}

// prepareValue post-processes a resolved value: strings that still contain
// fragments are re-expanded one level deeper.
func (n *Node) prepareValue(value interface{}, depth int) (interface{}, error) {
	if actual, ok := value.(string); ok && expression.HasFragment(actual) {
		return n.expandValue(actual, depth+1)
	}
	return value, nil
}

// GetValue resolves a dotted variable path in this node's scope.
func (n *Node) GetValue(name string) (interface{}, error) {
	return n.getValue(name, 1)
}

func (n *Node) getValue(name string, depth int) (interface{}, error) {
	root, rest, dotted := strings.Cut(name, ".")
	if !dotted {
		// A bare name may be either a member of this node or a user
		// variable; resolving to both at once is ambiguous.
		member, err := n.getValue("."+name, depth)
		if err != nil {
			return nil, err
		}
		variable, err := n.getValue("var."+name, depth)
		if err != nil {
			return nil, err
		}
		if member != nil && variable != nil {
			return nil, fmt.Errorf("ambiguous variable name: %s", name)
		}
		if member != nil {
			return member, nil
		}
		return variable, nil
	}

	switch root {
	case "":
		switch rest {
		case "stdout":
			return n.prepareValue(strings.TrimSpace(n.result.Stdout), depth)
		case "stderr":
			return n.prepareValue(strings.TrimSpace(n.result.Stderr), depth)
		case "returncode":
			return n.result.ReturnCode, nil
		}
		return nil, nil

	case "workflow":
		workflow, err := n.workflowNode()
		if err != nil {
			return nil, err
		}
		return workflow.getValue(rest, depth)

	case "job":
		job, err := n.jobNode()
		if err != nil {
			return nil, err
		}
		return job.getValue(rest, depth)

	case "step":
		step, err := n.stepNode()
		if err != nil {
			return nil, err
		}
		return step.getValue(rest, depth)

	case "env":
		for ctx := n; ctx != nil; ctx = ctx.parent {
			if value, ok := ctx.env[rest]; ok {
				return n.prepareValue(value, depth)
			}
			if ctx.parent == nil && ctx.kind == KindWorkflow {
				if value, ok := ctx.self.(*Workflow).sysEnv[rest]; ok {
					return n.prepareValue(value, depth)
				}
			}
		}
		return nil, nil

	case "var":
		for ctx := n; ctx != nil; ctx = ctx.parent {
			if value, ok := ctx.vars[rest]; ok {
				return n.prepareValue(value, depth)
			}
		}
		return nil, nil

	case "secrets":
		for ctx := n; ctx != nil; ctx = ctx.parent {
			value, ok := ctx.secrets[rest]
			if !ok {
				continue
			}
			prepared, err := n.prepareValue(value, depth)
			if err != nil {
				return nil, err
			}
			if safe, ok := prepared.(expression.SafeString); ok {
				return safe, nil
			}
			return expression.NewSafeString(expression.Stringify(prepared)), nil
		}
		return nil, nil

	case "matrix":
		if value, ok := n.matrix[rest]; ok {
			return n.prepareValue(value, depth)
		}
		if n.parent != nil {
			return n.parent.getValue(name, depth)
		}
		return nil, nil

	case "jobs":
		jobID, member, _ := strings.Cut(rest, ".")
		workflow, err := n.workflowNode()
		if err != nil {
			return nil, err
		}
		job := workflow.Job(jobID)
		if job == nil {
			return nil, fmt.Errorf("job not found: %s", jobID)
		}
		return job.getValue(member, depth)

	case "steps":
		stepID, member, _ := strings.Cut(rest, ".")
		job, err := n.jobNode()
		if err != nil {
			return nil, err
		}
		step := job.Step(stepID)
		if step == nil {
			return nil, fmt.Errorf("step not found: %s", stepID)
		}
		return step.getValue(member, depth)

	case "inputs":
		value, ok := n.lookupInput(rest)
		if !ok {
			return nil, nil
		}
		prepared, err := n.prepareValue(value, depth)
		if err != nil {
			return nil, err
		}
		if n.isSensitiveInput(rest) {
			if _, ok := prepared.(expression.SafeString); !ok {
				return expression.NewSafeString(expression.Stringify(prepared)), nil
			}
		}
		return prepared, nil

	case "outputs":
		if value, ok := n.outputs[rest]; ok {
			return n.prepareValue(value, depth)
		}
		return nil, nil
	}

	return nil, nil
}

// lookupInput resolves an input name against this node's own inputs, its
// definition's with block and then the parent chain.
func (n *Node) lookupInput(name string) (interface{}, bool) {
	for ctx := n; ctx != nil; ctx = ctx.parent {
		if value, ok := ctx.inputs[name]; ok {
			return value, true
		}
		if value, ok := ctx.defWith[name]; ok {
			return value, true
		}
	}
	return nil, false
}

func (n *Node) isSensitiveInput(name string) bool {
	for ctx := n; ctx != nil; ctx = ctx.parent {
		if ctx.sensitiveInputs[name] {
			return true
		}
	}
	return false
}

// SetValue writes a dotted variable path in this node's scope. Targets
// without an explicit root or with an unknown root are rejected; env and
// var writes always land in this node's own map, shadowing any ancestor
// declaration of the same key from here downwards.
func (n *Node) SetValue(name string, value interface{}) error {
	expandedName, err := n.ExpandString(name)
	if err != nil {
		return err
	}
	root, rest, dotted := strings.Cut(expandedName, ".")
	if !dotted || rest == "" {
		return fmt.Errorf("invalid variable name: %s", name)
	}

	switch root {
	case "workflow":
		workflow, err := n.workflowNode()
		if err != nil {
			return err
		}
		return workflow.SetValue(rest, value)

	case "job":
		job, err := n.jobNode()
		if err != nil {
			return err
		}
		return job.SetValue(rest, value)

	case "step":
		step, err := n.stepNode()
		if err != nil {
			return err
		}
		return step.SetValue(rest, value)

	case "jobs":
		jobID, member, _ := strings.Cut(rest, ".")
		workflow, err := n.workflowNode()
		if err != nil {
			return err
		}
		job := workflow.Job(jobID)
		if job == nil {
			return fmt.Errorf("job not found: %s", jobID)
		}
		return job.SetValue(member, value)

	case "steps":
		stepID, member, _ := strings.Cut(rest, ".")
		job, err := n.jobNode()
		if err != nil {
			return err
		}
		step := job.Step(stepID)
		if step == nil {
			return fmt.Errorf("step not found: %s", stepID)
		}
		return step.SetValue(member, value)

	case "env":
		n.env[rest] = value
		return nil

	case "var":
		n.vars[rest] = value
		return nil

	case "inputs":
		n.inputs[rest] = value
		return nil

	case "outputs":
		n.outputs[rest] = value
		return nil
	}

	return fmt.Errorf("invalid variable name: %s", name)
}
