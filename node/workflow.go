package node

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/subosito/gotenv"

	"github.com/bluish-run/bluish/expression"
	"github.com/bluish-run/bluish/logging"
	"github.com/bluish-run/bluish/model"
	"github.com/bluish-run/bluish/process"
	"github.com/bluish-run/bluish/tracing"
)

const (
	defaultSecretsFile = ".secrets"
	defaultEnvFile     = ".env"
)

// Workflow is the root execution node. It owns the job nodes, the process
// environment snapshot and the action registry used to resolve step actions.
type Workflow struct {
	Node
	def     *model.WorkflowDef
	actions Registry
	jobs    []*Job
	jobByID map[string]*Job
	sysEnv  map[string]string
}

// NewWorkflow builds the execution tree for a parsed workflow definition.
// Secrets and dotenv files referenced by the definition are read here;
// a missing file is not an error.
func NewWorkflow(def *model.WorkflowDef, actions Registry) (*Workflow, error) {
	if err := def.Normalize(); err != nil {
		return nil, err
	}
	w := &Workflow{
		def:     def,
		actions: actions,
		jobByID: map[string]*Job{},
		sysEnv:  map[string]string{},
	}
	w.defEnv = def.Env
	w.defVar = def.Var
	w.defSecrets = mergeSecrets(def)
	w.matrixDef = def.Matrix
	w.id = def.Name
	w.init(w, nil, KindWorkflow, def)

	for _, pair := range os.Environ() {
		if k, v, ok := strings.Cut(pair, "="); ok {
			w.sysEnv[k] = v
		}
	}
	envFile := def.EnvFile
	if envFile == "" {
		envFile = defaultEnvFile
	}
	if env, err := gotenv.Read(envFile); err == nil {
		for k, v := range env {
			w.sysEnv[k] = v
		}
	}

	for _, jobDef := range def.Jobs {
		job, err := NewJob(w, jobDef)
		if err != nil {
			return nil, err
		}
		w.jobs = append(w.jobs, job)
		w.jobByID[job.id] = job
	}
	return w, nil
}

func mergeSecrets(def *model.WorkflowDef) map[string]string {
	secrets := map[string]string{}
	file := def.SecretsFile
	if file == "" {
		file = defaultSecretsFile
	}
	if env, err := gotenv.Read(file); err == nil {
		for k, v := range env {
			secrets[k] = v
		}
	}
	for k, v := range def.Secrets {
		secrets[k] = v
	}
	return secrets
}

// Definition returns the parsed workflow definition.
func (w *Workflow) Definition() *model.WorkflowDef { return w.def }

// Jobs returns the workflow jobs in declaration order.
func (w *Workflow) Jobs() []*Job { return w.jobs }

// Job returns the job with the given id, nil when unknown.
func (w *Workflow) Job(id string) *Job { return w.jobByID[id] }

// Actions returns the action registry.
func (w *Workflow) Actions() Registry { return w.actions }

// SetInputs validates the given values against the declared workflow inputs,
// applies defaults, and marks sensitive inputs for redaction. Unknown keys
// and missing required inputs are errors.
func (w *Workflow) SetInputs(values map[string]string) error {
	declared := map[string]*model.InputDef{}
	for _, input := range w.def.Inputs {
		declared[input.Name] = input
	}
	for name := range values {
		if _, ok := declared[name]; !ok {
			return fmt.Errorf("unknown input: %s", name)
		}
	}
	for name, input := range declared {
		if input.Sensitive {
			w.sensitiveInputs[name] = true
		}
		if value, ok := values[name]; ok {
			w.inputs[name] = value
			continue
		}
		if input.Default != nil {
			expanded, err := w.Expand(input.Default)
			if err != nil {
				return err
			}
			w.inputs[name] = expanded
			continue
		}
		if input.Required {
			return fmt.Errorf("missing required input: %s", name)
		}
	}
	return nil
}

// Dispatch runs every job of the workflow in declaration order, following
// dependencies. The workflow result is the result of the last job that ran;
// a failing job without continue_on_error stops the run.
func (w *Workflow) Dispatch(ctx context.Context) (result process.Result, err error) {
	ctx, span := tracing.StartSpan(ctx, "workflow")
	span.WithAttributes(map[string]string{"workflow.name": w.id})
	defer func() { tracing.EndSpan(span, err) }()

	w.status = StatusRunning
	defer func() {
		if w.status == StatusRunning {
			w.status = StatusFinished
		}
	}()

	for _, job := range w.jobs {
		result, err := w.DispatchJob(ctx, job, false)
		if err != nil {
			return process.Result{}, err
		}
		w.result = result
		if result.Failed() && !job.def.ContinueOnError {
			logging.Errorf("Workflow failed")
			return result, nil
		}
	}
	return w.result, nil
}

// DispatchJob runs a single job, first dispatching its transitive
// dependencies unless noDeps is set. Finished jobs are not re-run.
func (w *Workflow) DispatchJob(ctx context.Context, job *Job, noDeps bool) (process.Result, error) {
	return w.dispatchJob(ctx, job, noDeps, map[string]bool{})
}

func (w *Workflow) dispatchJob(ctx context.Context, job *Job, noDeps bool, visited map[string]bool) (process.Result, error) {
	if visited[job.id] {
		return process.Result{}, &CircularDependencyError{JobID: job.id}
	}

	// A finished job short-circuits without joining the visited set, so a
	// diamond-shaped dependency graph does not read as a cycle.
	switch job.status {
	case StatusFinished:
		logging.Infof("Job %s already dispatched and finished", job.id)
		return job.result, nil
	case StatusSkipped:
		logging.Infof("Re-running skipped job %s", job.id)
	}
	visited[job.id] = true

	if !noDeps {
		for _, depID := range job.def.DependsOn {
			dep := w.jobByID[depID]
			result, err := w.dispatchJob(ctx, dep, false, visited)
			if err != nil {
				return process.Result{}, err
			}
			if result.Failed() {
				logging.Errorf("Dependency %s failed", depID)
				return result, nil
			}
		}
	}

	executed := map[string]bool{}
	workflowMatrices, err := w.generateMatrices()
	if err != nil {
		return process.Result{}, err
	}
	for _, workflowMatrix := range workflowMatrices {
		w.matrix = workflowMatrix
		result, err := w.runJobVariants(ctx, job, workflowMatrix, executed)
		if err != nil || result.Failed() {
			return result, err
		}
	}
	return process.Result{}, nil
}

// runJobVariants dispatches the job once per job matrix combination under a
// fixed workflow matrix, holding the workflow-level host for the duration.
func (w *Workflow) runJobVariants(ctx context.Context, job *Job, workflowMatrix map[string]interface{}, executed map[string]bool) (process.Result, error) {
	release, err := w.prepareHost()
	if err != nil {
		return process.Result{}, err
	}
	defer release()

	jobMatrices, err := job.generateMatrices()
	if err != nil {
		return process.Result{}, err
	}
	for _, jobMatrix := range jobMatrices {
		combined := copyValues(workflowMatrix)
		for k, v := range jobMatrix {
			combined[k] = v
		}
		if len(combined) > 0 {
			key := matrixKey(combined)
			if executed[key] {
				logging.Infof("Skipping already executed matrix variant: %s", key)
				continue
			}
			executed[key] = true
		}
		result, err := w.runJobVariant(ctx, job, combined)
		if err != nil || result.Failed() {
			return result, err
		}
	}
	return process.Result{}, nil
}

func (w *Workflow) runJobVariant(ctx context.Context, job *Job, matrix map[string]interface{}) (process.Result, error) {
	job.Reset()
	job.matrix = matrix
	release, err := job.prepareHost()
	if err != nil {
		return process.Result{}, err
	}
	defer release()
	return job.dispatch(ctx)
}

// generateMatrices expands the node's matrix declaration into the ordered
// list of combinations: axes vary in declaration order with the last axis
// varying fastest. A node without a matrix yields a single empty binding.
func (n *Node) generateMatrices() ([]map[string]interface{}, error) {
	if len(n.matrixDef) == 0 {
		return []map[string]interface{}{{}}, nil
	}
	combinations := []map[string]interface{}{{}}
	for _, axis := range n.matrixDef {
		var next []map[string]interface{}
		for _, combination := range combinations {
			for _, value := range axis.Values {
				expanded, err := n.Expand(value)
				if err != nil {
					return nil, err
				}
				variant := copyValues(combination)
				variant[axis.Key] = expanded
				next = append(next, variant)
			}
		}
		combinations = next
	}
	return combinations, nil
}

// matrixKey builds an order-insensitive identity for a matrix combination,
// used to de-duplicate variants across the workflow/job matrix product.
func matrixKey(matrix map[string]interface{}) string {
	pairs := make([]string, 0, len(matrix))
	for k, v := range matrix {
		pairs = append(pairs, k+":"+expression.Stringify(v))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "-")
}
