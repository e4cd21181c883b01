package node

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/bluish-run/bluish/expression"
	"github.com/bluish-run/bluish/internal/idgen"
	"github.com/bluish-run/bluish/logging"
	"github.com/bluish-run/bluish/model"
	"github.com/bluish-run/bluish/process"
	"github.com/bluish-run/bluish/tracing"
)

// outputEnvVar names the file where commands write their KEY=VALUE outputs.
const outputEnvVar = "BLUISH_OUTPUT"

// Job is a workflow job node: an ordered list of steps dispatched on a
// shared host scope.
type Job struct {
	Node
	def      *model.JobDef
	workflow *Workflow
	steps    []*Step
}

// NewJob builds a job node and its steps, validating that every step's
// action is known to the workflow registry.
func NewJob(workflow *Workflow, def *model.JobDef) (*Job, error) {
	j := &Job{def: def, workflow: workflow}
	j.id = def.ID
	j.ifCond = def.If
	j.matrixDef = def.Matrix
	j.defEnv = def.Env
	j.defVar = def.Var
	j.defSecrets = def.Secrets
	j.defWith = def.With
	j.init(j, &workflow.Node, KindJob, def)
	if err := j.buildSteps(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Job) buildSteps() error {
	j.steps = nil
	for _, stepDef := range j.def.Steps {
		step, err := NewStep(j, stepDef)
		if err != nil {
			return err
		}
		j.steps = append(j.steps, step)
	}
	return nil
}

// Definition returns the parsed job definition.
func (j *Job) Definition() *model.JobDef { return j.def }

// Workflow returns the owning workflow.
func (j *Job) Workflow() *Workflow { return j.workflow }

// Steps returns the job steps in declaration order.
func (j *Job) Steps() []*Step { return j.steps }

// Step returns the step with the given id, nil when unknown.
func (j *Job) Step(id string) *Step {
	for _, step := range j.steps {
		if step.id == id {
			return step
		}
	}
	return nil
}

// Reset restores the job and rebuilds its steps for a fresh dispatch, as
// happens once per matrix combination.
func (j *Job) Reset() {
	j.reset()
	_ = j.buildSteps()
}

func (j *Job) dispatch(ctx context.Context) (result process.Result, err error) {
	ctx, span := tracing.StartSpan(ctx, "job")
	span.WithAttributes(map[string]string{"job.id": j.id})
	defer func() { tracing.EndSpan(span, err) }()

	j.status = StatusRunning
	logging.Infof("** Run job '%s'", j.def.DisplayName())
	if len(j.matrix) > 0 {
		keys := make([]string, 0, len(j.matrix))
		for k := range j.matrix {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		j.logValues("matrix", j.matrix, keys)
	}

	can, err := j.canDispatch()
	if err != nil {
		return process.Result{}, err
	}
	if !can {
		j.status = StatusSkipped
		logging.Infof("Job '%s' skipped", j.id)
		return process.Result{}, nil
	}
	defer func() {
		if j.status == StatusRunning {
			j.status = StatusFinished
		}
	}()

	for _, step := range j.steps {
		result, err := step.dispatch(ctx)
		if err != nil {
			return process.Result{}, err
		}
		if step.status == StatusSkipped {
			continue
		}
		j.result = result
		if result.Failed() && !step.def.ContinueOnError {
			logging.Errorf("Step failed with code %d", result.ReturnCode)
			break
		}
	}
	return j.result, nil
}

// Exec runs a command in this job's host scope and harvests its declared
// outputs. The command is expanded against scope, prefixed with the given
// environment assignments and piped base64-encoded into the scope's shell
// interpreter. A fresh capture file is exported as BLUISH_OUTPUT; after the
// run its KEY=VALUE lines are stored as outputs on scope.
func (j *Job) Exec(ctx context.Context, command string, scope *Node, env map[string]interface{}, shell string, stream bool) (process.Result, error) {
	expanded, err := scope.ExpandString(command)
	if err != nil {
		return process.Result{}, err
	}
	command = strings.TrimSpace(expanded)
	if expression.HasFragment(command) {
		return process.Result{}, fmt.Errorf("command contains unexpanded variables: %s", command)
	}

	host := j.RunsOnHost()
	if scope.InheritedFlag("is_sensitive", false) {
		stream = false
	}

	captureFile := "/tmp/" + idgen.NewHex()
	if result := process.Run("touch "+captureFile, host, nil, nil); result.Failed() {
		logging.Errorf("Failed to create output file %s", captureFile)
		return result, nil
	}

	if env == nil {
		env = map[string]interface{}{}
	}
	if _, taken := env[outputEnvVar]; taken {
		logging.Warnf("Overwriting reserved variable %s", outputEnvVar)
	}
	env[outputEnvVar] = captureFile
	command = envPrefix(env) + command

	if shell == "" {
		value, err := scope.GetInheritedAttr("shell", process.DefaultShell)
		if err != nil {
			return process.Result{}, err
		}
		shell = expression.Stringify(value)
	}
	interpreter, ok := process.Shells[shell]
	if !ok {
		interpreter = shell
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(command))
	command = fmt.Sprintf("echo %s | base64 -di - | %s", encoded, interpreter)

	workingDirValue, err := scope.GetInheritedAttr("working_directory", nil)
	if err != nil {
		return process.Result{}, err
	}
	if workingDirValue != nil {
		workingDir := expression.Stringify(workingDirValue)
		command = fmt.Sprintf("mkdir -p %s && cd %s && %s", workingDir, workingDir, command)
	}

	var stdoutSink, stderrSink process.Sink
	if stream {
		stdoutSink = func(line string) { logging.Infof("%s", logging.Decorate(line, "  > ")) }
		stderrSink = func(line string) { logging.Errorf("%s", logging.Decorate(line, " ** ")) }
	}
	runResult := process.Run(command, host, stdoutSink, stderrSink)

	captured := process.Run("cat "+captureFile, host, nil, nil)
	if captured.Failed() {
		logging.Errorf("Failed to read output file %s", captureFile)
		return captured, nil
	}
	for _, line := range strings.Split(captured.Stdout, "\n") {
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			logging.Warnf("Ignoring malformed output line: %s", line)
			continue
		}
		scope.outputs[key] = value
	}
	return runResult, nil
}

// envPrefix renders environment assignments as a shell preamble in
// deterministic key order.
func envPrefix(env map[string]interface{}) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%q; ", k, expression.Stringify(env[k]))
	}
	return b.String()
}

// ReadFile returns the contents of a file on this job's host, transported
// base64-encoded to survive binary content.
func (j *Job) ReadFile(ctx context.Context, scope *Node, path string) ([]byte, error) {
	result, err := j.Exec(ctx, fmt.Sprintf("base64 -i '%s'", path), scope, nil, "", false)
	if err != nil {
		return nil, err
	}
	if result.Failed() {
		return nil, fmt.Errorf("failed to read file %s: %s", path, result.Error())
	}
	// base64 wraps its output; undo the line breaks before decoding
	encoded := strings.ReplaceAll(strings.TrimSpace(result.Stdout), "\n", "")
	return base64.StdEncoding.DecodeString(encoded)
}

// WriteFile writes content to a file on this job's host.
func (j *Job) WriteFile(ctx context.Context, scope *Node, path string, content []byte) error {
	encoded := base64.StdEncoding.EncodeToString(content)
	result, err := j.Exec(ctx, fmt.Sprintf("echo %s | base64 -di - > '%s'", encoded, path), scope, nil, "", false)
	if err != nil {
		return err
	}
	if result.Failed() {
		return fmt.Errorf("failed to write file %s: %s", path, result.Error())
	}
	return nil
}
