package bluish

import (
	"context"
	"fmt"

	"github.com/bluish-run/bluish/extension"
	"github.com/bluish-run/bluish/model"
	"github.com/bluish-run/bluish/node"
	"github.com/bluish-run/bluish/process"
	"github.com/bluish-run/bluish/service/action/core"
	"github.com/bluish-run/bluish/service/action/docker"
	"github.com/bluish-run/bluish/service/action/git"
	"github.com/bluish-run/bluish/service/action/linux"
	"github.com/bluish-run/bluish/service/action/macos"
	"github.com/bluish-run/bluish/service/loader"
)

// Version is the engine version reported by the CLI.
const Version = "0.9.0"

// Service is the workflow engine facade.
type Service struct {
	loader  *loader.Service
	actions *extension.Actions
}

// New creates a service with the built-in action catalog; options may extend
// or replace it.
func New(options ...Option) *Service {
	s := &Service{
		loader:  loader.New(),
		actions: DefaultActions(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// DefaultActions returns a registry with the built-in action catalog. The
// shell run action registers under the empty name so steps without uses
// resolve to it.
func DefaultActions() *extension.Actions {
	return extension.NewActions(
		core.NewRun(),
		core.NewExpandTemplate(),
		core.NewUploadFile(),
		core.NewDownloadFile(),
		docker.NewLogin(),
		docker.NewLogout(),
		docker.NewBuild(),
		docker.NewGetPid(),
		docker.NewRun(),
		docker.NewStop(),
		docker.NewExec(),
		docker.NewCreateNetwork(),
		git.NewCheckout(),
		linux.NewInstallPackages(),
		macos.NewInstallPackages(),
	)
}

// Actions returns the action registry.
func (s *Service) Actions() *extension.Actions { return s.actions }

// LoadWorkflow locates a workflow by name and builds its execution tree.
func (s *Service) LoadWorkflow(ctx context.Context, name string) (*node.Workflow, error) {
	def, err := s.loader.LoadByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.NewWorkflow(def)
}

// LoadWorkflowURL loads a workflow document from a URL and builds its
// execution tree.
func (s *Service) LoadWorkflowURL(ctx context.Context, URL string) (*node.Workflow, error) {
	def, err := s.loader.Load(ctx, URL)
	if err != nil {
		return nil, err
	}
	return s.NewWorkflow(def)
}

// NewWorkflow builds the execution tree for an already parsed definition.
func (s *Service) NewWorkflow(def *model.WorkflowDef) (*node.Workflow, error) {
	return node.NewWorkflow(def, s.actions)
}

// RunJob loads a workflow, applies inputs and dispatches one job.
func (s *Service) RunJob(ctx context.Context, name, jobID string, noDeps bool, inputs map[string]string) (process.Result, error) {
	workflow, err := s.LoadWorkflow(ctx, name)
	if err != nil {
		return process.Result{}, err
	}
	if err := workflow.SetInputs(inputs); err != nil {
		return process.Result{}, err
	}
	job := workflow.Job(jobID)
	if job == nil {
		return process.Result{}, fmt.Errorf("job not found: %s", jobID)
	}
	return workflow.DispatchJob(ctx, job, noDeps)
}
