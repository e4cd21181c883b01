// Package git implements the repository checkout action.
package git

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/bluish-run/bluish/extension"
	"github.com/bluish-run/bluish/logging"
	"github.com/bluish-run/bluish/node"
	"github.com/bluish-run/bluish/process"
)

// Checkout clones a repository into the job working directory and retargets
// the job's working_directory to the clone.
type Checkout struct{}

// NewCheckout creates the checkout action.
func NewCheckout() *Checkout { return &Checkout{} }

// Name returns the action identifier.
func (a *Checkout) Name() string { return "git/checkout" }

// SensitiveInputs marks credentials for redaction.
func (a *Checkout) SensitiveInputs() []string { return []string{"ssh_key_file", "password"} }

type checkoutInput struct {
	Repository string `json:"repository"`
	Depth      int    `json:"depth"`
	Branch     string `json:"branch"`
	SSHKeyFile string `json:"ssh_key_file"`
}

// Execute installs git and ssh when missing, clones the repository and
// points the job working directory at the clone.
func (a *Checkout) Execute(ctx context.Context, step *node.Step) (process.Result, error) {
	var input checkoutInput
	if err := extension.DecodeInputs(step, &input); err != nil {
		return process.Result{}, err
	}
	if input.Repository == "" {
		return process.Result{}, fmt.Errorf("git/checkout requires a repository input")
	}
	repoName := path.Base(strings.TrimSuffix(input.Repository, "/"))

	result, err := a.prepareEnvironment(ctx, step)
	if err != nil || result.Failed() {
		return result, err
	}

	depth := input.Depth
	if depth == 0 {
		depth = 1
	}
	options := fmt.Sprintf("--depth %d", depth)
	if input.Branch != "" {
		options += " --branch " + input.Branch
	}

	logging.Infof("Cloning repository: %s...", input.Repository)
	cloneResult, err := a.runGitCommand(ctx, step, input.SSHKeyFile, fmt.Sprintf("git clone %s %s ./%s", input.Repository, options, repoName))
	if err != nil {
		return process.Result{}, err
	}
	if cloneResult.Failed() {
		logging.Errorf("Failed to clone repository: %s", cloneResult.Error())
		return cloneResult, nil
	}

	logging.Infof("Setting working directory to: %s...", repoName)
	wd, err := step.GetInheritedAttr("working_directory", ".")
	if err != nil {
		return process.Result{}, err
	}
	step.Job().SetAttr("working_directory", fmt.Sprintf("%v/%s", wd, repoName))
	return cloneResult, nil
}

// runGitCommand runs a git command, routing ssh through the given key file
// when one is configured.
func (a *Checkout) runGitCommand(ctx context.Context, step *node.Step, keyFile, command string) (process.Result, error) {
	var preamble string
	if keyFile != "" {
		preamble = fmt.Sprintf("export GIT_SSH_COMMAND='ssh -i %s -o IdentitiesOnly=yes -o StrictHostKeychecking=no';", keyFile)
	}
	return step.Job().Exec(ctx, preamble+" "+command, &step.Node, nil, "", false)
}

// prepareEnvironment installs git and the ssh client on the job host when
// they are not already present.
func (a *Checkout) prepareEnvironment(ctx context.Context, step *node.Step) (process.Result, error) {
	required := map[string]string{
		"git":            "git",
		"openssh-client": "ssh",
	}
	job := step.Job()
	var missing []string
	for pkg, binary := range required {
		result, err := job.Exec(ctx, "which "+binary, &step.Node, nil, "", false)
		if err != nil {
			return process.Result{}, err
		}
		if result.Failed() {
			missing = append(missing, pkg)
		}
	}
	if len(missing) == 0 {
		return process.Result{}, nil
	}
	logging.Infof("Installing missing packages: %v...", missing)
	result, err := process.InstallPackage(job.RunsOnHost(), missing, "auto")
	if err != nil {
		return process.Result{}, err
	}
	if result.Failed() {
		logging.Errorf("Failed to install required packages. Error: %s", result.Error())
	}
	return result, nil
}
