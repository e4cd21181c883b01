package docker

import (
	"context"
	"fmt"
	"strings"

	"github.com/bluish-run/bluish/extension"
	"github.com/bluish-run/bluish/logging"
	"github.com/bluish-run/bluish/node"
	"github.com/bluish-run/bluish/process"
)

// Build builds an image from a dockerfile.
type Build struct{}

// NewBuild creates the image build action.
func NewBuild() *Build { return &Build{} }

// Name returns the action identifier.
func (a *Build) Name() string { return "docker/build" }

type buildInput struct {
	Dockerfile string      `json:"dockerfile"`
	Tags       interface{} `json:"tags"`
	Context    string      `json:"context"`
}

// Execute runs docker build with the given tags against the build context,
// defaulting to the inherited working directory.
func (a *Build) Execute(ctx context.Context, step *node.Step) (process.Result, error) {
	var input buildInput
	if err := extension.DecodeInputs(step, &input); err != nil {
		return process.Result{}, err
	}
	if input.Dockerfile == "" {
		input.Dockerfile = "Dockerfile"
	}
	buildContext := input.Context
	if buildContext == "" {
		value, err := step.GetInheritedAttr("working_directory", ".")
		if err != nil {
			return process.Result{}, err
		}
		buildContext = fmt.Sprintf("%v", value)
	}
	options := fmt.Sprintf("-f '%s'", input.Dockerfile)
	options += buildListOpt("-t", extension.StringList(input.Tags))

	command := fmt.Sprintf("docker build %s %s", options, buildContext)
	if step.InheritedFlag("echo_commands", true) {
		logging.Infof("Building image:\n -> %s", command)
	}
	result, err := step.Job().Exec(ctx, command, &step.Node, nil, "", true)
	if err != nil {
		return process.Result{}, err
	}
	if result.Failed() {
		logging.Errorf("Failed to build image: %s", result.Error())
	}
	return result, nil
}

// GetPid resolves a container name to its id.
type GetPid struct{}

// NewGetPid creates the container id lookup action.
func NewGetPid() *GetPid { return &GetPid{} }

// Name returns the action identifier.
func (a *GetPid) Name() string { return "docker/get-pid" }

// Execute returns the container id for the given name as stdout.
func (a *GetPid) Execute(ctx context.Context, step *node.Step) (process.Result, error) {
	name, err := step.Input("name")
	if err != nil {
		return process.Result{}, err
	}
	result, err := ps(ctx, step, fmt.Sprintf("%v", name), "")
	if err != nil {
		return process.Result{}, err
	}
	id := strings.TrimSpace(result.Stdout)
	if result.Failed() || !isValidID(id) {
		logging.Errorf("Failed to get container id for %v: %s", name, result.Error())
		if result.Failed() {
			return result, nil
		}
		return process.Result{ReturnCode: 1, Stdout: result.Stdout, Stderr: result.Stderr}, nil
	}
	return process.Result{Stdout: id}, nil
}

// Run starts a detached container.
type Run struct{}

// NewRun creates the container run action.
func NewRun() *Run { return &Run{} }

// Name returns the action identifier.
func (a *Run) Name() string { return "docker/run" }

type runInput struct {
	Image         string      `json:"image"`
	ContainerName string      `json:"name"`
	FailIfRunning *bool       `json:"fail_if_running"`
	Ports         interface{} `json:"ports"`
	Volumes       interface{} `json:"volumes"`
	Env           interface{} `json:"env"`
	EnvFile       interface{} `json:"env_file"`
	Network       string      `json:"network"`
	Label         string      `json:"label"`
	Pull          string      `json:"pull"`
	User          string      `json:"user"`
	Remove        bool        `json:"remove"`
	Quiet         bool        `json:"quiet"`
}

// Execute starts the container detached and returns its id as stdout. A
// container already running under the same name fails the step unless
// fail_if_running is false.
func (a *Run) Execute(ctx context.Context, step *node.Step) (process.Result, error) {
	var input runInput
	if err := extension.DecodeInputs(step, &input); err != nil {
		return process.Result{}, err
	}

	logging.Infof("Running container with image %s and name %s...", input.Image, input.ContainerName)
	psResult, err := ps(ctx, step, input.ContainerName, "")
	if err != nil {
		return process.Result{}, err
	}
	if psResult.Failed() {
		logging.Errorf("Failed to check if container with name %s is already running: %s", input.ContainerName, psResult.Error())
		return psResult, nil
	}
	if id := strings.TrimSpace(psResult.Stdout); isValidID(id) {
		msg := fmt.Sprintf("Container with name %s is already running with id %s.", input.ContainerName, id)
		if input.FailIfRunning == nil || *input.FailIfRunning {
			logging.Errorf("%s", msg)
			return process.Result{ReturnCode: 1, Stdout: id}, nil
		}
		logging.Warnf("%s", msg)
		return process.Result{Stdout: id}, nil
	}

	options := fmt.Sprintf("--name %s --detach", input.ContainerName)
	options += buildListOpt("-p", extension.StringList(input.Ports))
	options += buildListOpt("-v", extension.StringList(input.Volumes))
	options += buildListOpt("-e", extension.StringList(input.Env))
	options += buildListOpt("--env-file", extension.StringList(input.EnvFile))
	options += buildFlag("--rm", input.Remove)
	options += buildOpt("--network", input.Network)
	options += buildOpt("--label", input.Label)
	options += buildOpt("--pull", input.Pull)
	options += buildOpt("--user", input.User)
	options += buildFlag("--quiet", input.Quiet)

	runResult, err := step.Job().Exec(ctx, fmt.Sprintf("docker run %s %s", options, input.Image), &step.Node, nil, "", false)
	if err != nil {
		return process.Result{}, err
	}
	if runResult.Failed() {
		logging.Errorf("Failed to start container with image %s: %s", input.Image, runResult.Error())
		return runResult, nil
	}
	id := strings.TrimSpace(runResult.Stdout)
	if !isValidID(id) {
		logging.Errorf("Failed to get container id for %s: %s", input.ContainerName, id)
		return process.Result{ReturnCode: 1, Stdout: runResult.Stdout, Stderr: runResult.Stderr}, nil
	}
	logging.Infof("Container started with id %s.", id)
	return process.Result{Stdout: id}, nil
}

// Stop stops and optionally removes a container resolved by name or id.
type Stop struct{}

// NewStop creates the container stop action.
func NewStop() *Stop { return &Stop{} }

// Name returns the action identifier.
func (a *Stop) Name() string { return "docker/stop" }

type stopInput struct {
	ContainerName  string `json:"name"`
	Pid            string `json:"pid"`
	Signal         string `json:"signal"`
	Time           string `json:"time"`
	Remove         bool   `json:"remove"`
	FailIfNotFound *bool  `json:"fail_if_not_found"`
}

// Execute stops the container, removing it afterwards when remove is set.
func (a *Stop) Execute(ctx context.Context, step *node.Step) (process.Result, error) {
	var input stopInput
	if err := extension.DecodeInputs(step, &input); err != nil {
		return process.Result{}, err
	}
	target := targetDesc(input.ContainerName, input.Pid)
	stopContainer := true

	logging.Infof("Stopping container with %s...", target)
	psResult, err := ps(ctx, step, input.ContainerName, input.Pid)
	if err != nil {
		return process.Result{}, err
	}
	if psResult.Failed() {
		msg := fmt.Sprintf("Can't find a container with %s.", target)
		if input.FailIfNotFound == nil || *input.FailIfNotFound {
			logging.Errorf("%s", msg)
			return psResult, nil
		}
		logging.Warnf("%s", msg)
		stopContainer = false
		if !input.Remove {
			return process.Result{}, nil
		}
	}

	id := strings.TrimSpace(psResult.Stdout)
	if !isValidID(id) {
		logging.Errorf("Failed to verify container id for container with %s: %s", target, id)
		return process.Result{ReturnCode: 1, Stdout: psResult.Stdout, Stderr: psResult.Stderr}, nil
	}
	if input.ContainerName != "" {
		logging.Infof("Container found with id %s.", id)
	}

	options := buildOpt("--signal", input.Signal) + buildOpt("--time", input.Time)
	if stopContainer {
		stopResult, err := step.Job().Exec(ctx, fmt.Sprintf("docker container stop%s %s", options, id), &step.Node, nil, "", false)
		if err != nil {
			return process.Result{}, err
		}
		if stopResult.Failed() {
			logging.Errorf("Failed to stop container with %s: %s", target, stopResult.Error())
			return stopResult, nil
		}
	}
	if input.Remove {
		rmResult, err := step.Job().Exec(ctx, fmt.Sprintf("docker container rm %s", id), &step.Node, nil, "", false)
		if err != nil {
			return process.Result{}, err
		}
		if rmResult.Failed() {
			logging.Errorf("Failed to remove container with %s: %s", target, rmResult.Error())
			return rmResult, nil
		}
	}
	return process.Result{Stdout: id}, nil
}

// Exec runs command lines inside a running container.
type Exec struct{}

// NewExec creates the container exec action.
func NewExec() *Exec { return &Exec{} }

// Name returns the action identifier.
func (a *Exec) Name() string { return "docker/exec" }

type execInput struct {
	ContainerName string      `json:"name"`
	Pid           string      `json:"pid"`
	Run           string      `json:"run"`
	Env           interface{} `json:"env"`
	EnvFile       interface{} `json:"env_file"`
	Workdir       string      `json:"workdir"`
}

// Execute runs each line of the run block through docker exec, joining
// backslash continuations, and concatenates their stdout.
func (a *Exec) Execute(ctx context.Context, step *node.Step) (process.Result, error) {
	var input execInput
	if err := extension.DecodeInputs(step, &input); err != nil {
		return process.Result{}, err
	}
	target := targetDesc(input.ContainerName, input.Pid)

	psResult, err := ps(ctx, step, input.ContainerName, input.Pid)
	if err != nil {
		return process.Result{}, err
	}
	if psResult.Failed() {
		logging.Errorf("Can't find a running container with %s: %s", target, psResult.Error())
		return psResult, nil
	}
	id := strings.TrimSpace(psResult.Stdout)
	if !isValidID(id) {
		logging.Errorf("Failed to verify container id for container with %s: %s", target, id)
		return process.Result{ReturnCode: 1, Stdout: psResult.Stdout, Stderr: psResult.Stderr}, nil
	}

	options := buildListOpt("-e", extension.StringList(input.Env))
	options += buildListOpt("--env-file", extension.StringList(input.EnvFile))
	options += buildOpt("--workdir", input.Workdir)

	echoCommands := step.InheritedFlag("echo_commands", true)
	echoOutput := step.InheritedFlag("echo_output", false)

	var output strings.Builder
	lines := strings.Split(input.Run, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		for strings.HasSuffix(line, "\\") && i+1 < len(lines) {
			i++
			line = strings.TrimSuffix(line, "\\") + strings.TrimSpace(lines[i])
		}
		if line == "" {
			continue
		}
		if echoCommands {
			logging.Infof("%s", line)
		}
		result, err := step.Job().Exec(ctx, fmt.Sprintf("docker exec%s %s %s", options, id, line), &step.Node, nil, "", false)
		if err != nil {
			return process.Result{}, err
		}
		output.WriteString(result.Stdout)
		if echoOutput {
			logging.Infof("%s", logging.Decorate(result.Stdout, "  > "))
		}
		if result.Failed() {
			if echoOutput {
				logging.Errorf("%s", logging.Decorate(result.Error(), " ** "))
			}
			return process.Result{ReturnCode: result.ReturnCode, Stdout: output.String(), Stderr: result.Stderr}, nil
		}
	}
	return process.Result{Stdout: output.String()}, nil
}

// CreateNetwork creates an attachable docker network.
type CreateNetwork struct{}

// NewCreateNetwork creates the network creation action.
func NewCreateNetwork() *CreateNetwork { return &CreateNetwork{} }

// Name returns the action identifier.
func (a *CreateNetwork) Name() string { return "docker/create-network" }

type createNetworkInput struct {
	NetworkName  string `json:"name"`
	FailIfExists *bool  `json:"fail_if_exists"`
	Label        string `json:"label"`
	Ingress      bool   `json:"ingress"`
	Internal     bool   `json:"internal"`
}

// Execute creates the network unless it already exists, returning its id
// as stdout.
func (a *CreateNetwork) Execute(ctx context.Context, step *node.Step) (process.Result, error) {
	var input createNetworkInput
	if err := extension.DecodeInputs(step, &input); err != nil {
		return process.Result{}, err
	}
	job := step.Job()

	logging.Infof("Creating network %s...", input.NetworkName)
	logging.Debugf("Checking if network %s already exists...", input.NetworkName)
	lsResult, err := job.Exec(ctx, fmt.Sprintf("docker network ls -f name=%s --quiet", input.NetworkName), &step.Node, nil, "", false)
	if err != nil {
		return process.Result{}, err
	}
	if lsResult.Failed() {
		logging.Errorf("Failed to list networks: %s", lsResult.Error())
		return lsResult, nil
	}

	networkID := strings.TrimSpace(lsResult.Stdout)
	if networkID != "" {
		msg := fmt.Sprintf("Network %s already exists with id %s.", input.NetworkName, networkID)
		if input.FailIfExists == nil || *input.FailIfExists {
			logging.Errorf("%s", msg)
			return process.Result{ReturnCode: 1}, nil
		}
		logging.Warnf("%s", msg)
		return process.Result{Stdout: networkID}, nil
	}

	options := "--attachable"
	options += buildOpt("--label", input.Label)
	options += buildFlag("--ingress", input.Ingress)
	options += buildFlag("--internal", input.Internal)

	createResult, err := job.Exec(ctx, fmt.Sprintf("docker network create %s %s", options, input.NetworkName), &step.Node, nil, "", false)
	if err != nil {
		return process.Result{}, err
	}
	if createResult.Failed() {
		logging.Errorf("Failed to create network %s: %s", input.NetworkName, createResult.Error())
		return createResult, nil
	}
	networkID = strings.TrimSpace(createResult.Stdout)
	if !isValidID(networkID) {
		logging.Errorf("Failed to get network id for %s: %s", input.NetworkName, networkID)
		return process.Result{ReturnCode: 1, Stdout: createResult.Stdout, Stderr: createResult.Stderr}, nil
	}
	logging.Infof("Network %s created with id %s.", input.NetworkName, networkID)
	return process.Result{Stdout: networkID}, nil
}
