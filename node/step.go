package node

import (
	"context"
	"fmt"
	"sort"

	"github.com/bluish-run/bluish/logging"
	"github.com/bluish-run/bluish/model"
	"github.com/bluish-run/bluish/process"
	"github.com/bluish-run/bluish/tracing"
)

// Step is a single unit of work inside a job, bound to one action.
type Step struct {
	Node
	def    *model.StepDef
	job    *Job
	action Action
}

// NewStep builds a step node, resolving its action against the workflow
// registry. An empty uses selects the built-in run action.
func NewStep(job *Job, def *model.StepDef) (*Step, error) {
	s := &Step{def: def, job: job}
	s.id = def.ID
	s.ifCond = def.If
	s.defEnv = def.Env
	s.defVar = def.Var
	s.defSecrets = def.Secrets
	s.defWith = def.With
	s.init(s, &job.Node, KindStep, def)
	s.action = job.workflow.actions.Lookup(def.Uses)
	if s.action == nil {
		return nil, fmt.Errorf("unknown action: %s", def.Uses)
	}
	return s, nil
}

// Definition returns the parsed step definition.
func (s *Step) Definition() *model.StepDef { return s.def }

// Job returns the owning job.
func (s *Step) Job() *Job { return s.job }

// Workflow returns the owning workflow.
func (s *Step) Workflow() *Workflow { return s.job.workflow }

// Inputs returns the step's effective inputs: the with blocks of the parent
// chain overlaid by this step's own, innermost last.
func (s *Step) Inputs() map[string]interface{} {
	merged := map[string]interface{}{}
	var chain []*Node
	for ctx := &s.Node; ctx != nil; ctx = ctx.parent {
		chain = append(chain, ctx)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].defWith {
			merged[k] = v
		}
		for k, v := range chain[i].inputs {
			merged[k] = v
		}
	}
	return merged
}

// Input resolves one input through the inputs namespace, with sensitive
// values wrapped for redaction.
func (s *Step) Input(name string) (interface{}, error) {
	return s.GetValue("inputs." + name)
}

func (s *Step) dispatch(ctx context.Context) (result process.Result, err error) {
	ctx, span := tracing.StartSpan(ctx, "step")
	span.WithAttributes(map[string]string{"step.id": s.id, "step.uses": s.def.Uses})
	defer func() { tracing.EndSpan(span, err) }()

	logging.Infof("* Run step '%s'", s.def.DisplayName())

	can, err := s.canDispatch()
	if err != nil {
		return process.Result{}, err
	}
	if !can {
		s.status = StatusSkipped
		logging.Infof(" >>> Skipped")
		return process.Result{}, nil
	}
	s.status = StatusRunning
	defer func() {
		if s.status == StatusRunning {
			s.status = StatusFinished
		}
	}()

	if s.def.Uses != "" {
		logging.Infof("Running %s", s.def.Uses)
	}
	if provider, ok := s.action.(SensitiveInputsProvider); ok {
		for _, name := range provider.SensitiveInputs() {
			s.sensitiveInputs[name] = true
		}
	}
	if err := s.prepareInputs(); err != nil {
		return process.Result{}, err
	}

	result, err = s.action.Execute(ctx, s)
	if err != nil {
		return process.Result{}, err
	}
	s.result = result

	if err := s.applySet(); err != nil {
		return process.Result{}, err
	}
	return result, nil
}

// prepareInputs expands this step's with block into its own input layer and
// logs the effective values with sensitive ones redacted.
func (s *Step) prepareInputs() error {
	if len(s.def.With) == 0 {
		return nil
	}
	keys := make([]string, 0, len(s.def.With))
	for k := range s.def.With {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		expanded, err := s.Expand(s.def.With[k])
		if err != nil {
			return err
		}
		s.inputs[k] = expanded
	}
	s.logValues("with", s.inputs, keys)
	return nil
}

// applySet writes the step's set block after execution, in deterministic
// key order, so results such as .stdout can be captured into variables.
func (s *Step) applySet() error {
	if len(s.def.Set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(s.def.Set))
	for k := range s.def.Set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		expanded, err := s.Expand(s.def.Set[k])
		if err != nil {
			return err
		}
		logging.Debugf("Setting %s", k)
		if err := s.SetValue(k, expanded); err != nil {
			return err
		}
	}
	return nil
}
