// Package core implements the built-in actions: running shell commands,
// expanding templates and moving files between the local machine and the
// job host.
package core

import (
	"context"
	"sort"

	"github.com/bluish-run/bluish/expression"
	"github.com/bluish-run/bluish/logging"
	"github.com/bluish-run/bluish/node"
	"github.com/bluish-run/bluish/process"
)

// Run executes the step's run block in the job scope. It registers under
// the empty name so that steps without uses resolve to it.
type Run struct{}

// NewRun creates the shell run action.
func NewRun() *Run { return &Run{} }

// Name returns the action identifier.
func (a *Run) Name() string { return "" }

// Execute expands and runs the step's command, streaming output according
// to the inherited echo flags.
func (a *Run) Execute(ctx context.Context, step *node.Step) (process.Result, error) {
	env := step.MergedEnv()
	if len(env) > 0 {
		keys := make([]string, 0, len(env))
		for k := range env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		logging.Infof("env:")
		for _, k := range keys {
			value, err := step.Expand(env[k])
			if err != nil {
				return process.Result{}, err
			}
			env[k] = value
			logging.Infof("  %s: %s", k, expression.Redact(value))
		}
	}

	command := step.Definition().Run
	if command == "" {
		return process.Result{}, nil
	}
	// expand through Expand, not ExpandString, so a command touching
	// secret material keeps its redacted rendering for the echo below
	expanded, err := step.Expand(command)
	if err != nil {
		return process.Result{}, err
	}
	if step.InheritedFlag("echo_commands", true) {
		logging.Infof("%s", expression.Redact(expanded))
	}
	echoOutput := step.InheritedFlag("echo_output", true)
	return step.Job().Exec(ctx, expression.Stringify(expanded), &step.Node, env, "", echoOutput)
}
