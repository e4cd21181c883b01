package docker

import (
	"context"
	"fmt"

	"github.com/bluish-run/bluish/expression"
	"github.com/bluish-run/bluish/extension"
	"github.com/bluish-run/bluish/logging"
	"github.com/bluish-run/bluish/node"
	"github.com/bluish-run/bluish/process"
)

// Login authenticates against a docker registry.
type Login struct{}

// NewLogin creates the registry login action.
func NewLogin() *Login { return &Login{} }

// Name returns the action identifier.
func (a *Login) Name() string { return "docker/login" }

// SensitiveInputs marks the password for redaction.
func (a *Login) SensitiveInputs() []string { return []string{"password"} }

type loginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Registry string `json:"registry"`
}

// Execute runs docker login, logging the command with the password masked.
func (a *Login) Execute(ctx context.Context, step *node.Step) (process.Result, error) {
	var input loginInput
	if err := extension.DecodeInputs(step, &input); err != nil {
		return process.Result{}, err
	}
	command := fmt.Sprintf("docker login --username '%s' --password '%s' %s", input.Username, input.Password, input.Registry)
	if step.InheritedFlag("echo_commands", true) {
		logging.Infof("Docker login:\n -> docker login --username '%s' --password %s %s", input.Username, expression.Mask, input.Registry)
	}
	result, err := step.Job().Exec(ctx, command, &step.Node, nil, "", true)
	if err != nil {
		return process.Result{}, err
	}
	if result.Failed() {
		logging.Errorf("Login failed: %s", result.Error())
	}
	return result, nil
}

// Logout drops the registry session.
type Logout struct{}

// NewLogout creates the registry logout action.
func NewLogout() *Logout { return &Logout{} }

// Name returns the action identifier.
func (a *Logout) Name() string { return "docker/logout" }

// Execute runs docker logout.
func (a *Logout) Execute(ctx context.Context, step *node.Step) (process.Result, error) {
	if step.InheritedFlag("echo_commands", true) {
		logging.Infof("Logging out of Docker...")
	}
	return step.Job().Exec(ctx, "docker logout", &step.Node, nil, "", false)
}
