// Package macos implements actions specific to macOS hosts.
package macos

import (
	"context"
	"strings"

	"github.com/bluish-run/bluish/extension"
	"github.com/bluish-run/bluish/logging"
	"github.com/bluish-run/bluish/node"
	"github.com/bluish-run/bluish/process"
)

// InstallPackages installs packages through homebrew; a cask: prefix on a
// package name selects a cask install.
type InstallPackages struct{}

// NewInstallPackages creates the package installation action.
func NewInstallPackages() *InstallPackages { return &InstallPackages{} }

// Name returns the action identifier.
func (a *InstallPackages) Name() string { return "macos/install-packages" }

type installInput struct {
	Packages interface{} `json:"packages"`
}

// Execute installs the requested packages on the job host.
func (a *InstallPackages) Execute(ctx context.Context, step *node.Step) (process.Result, error) {
	var input installInput
	if err := extension.DecodeInputs(step, &input); err != nil {
		return process.Result{}, err
	}
	packages := extension.StringList(input.Packages)
	logging.Infof("Installing packages %s...", strings.Join(packages, " "))

	result, err := process.InstallPackage(step.Job().RunsOnHost(), packages, "macos")
	if err != nil {
		return process.Result{}, err
	}
	if result.Failed() {
		logging.Errorf("Failed to install packages %s\n%s", strings.Join(packages, " "), result.Error())
	}
	return result, nil
}
