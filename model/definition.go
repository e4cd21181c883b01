// Package model defines the typed configuration tree parsed from a workflow
// document: a workflow definition owning job definitions, each owning an
// ordered list of step definitions.
package model

import "fmt"

// Definition exposes raw (unexpanded) attributes by name so that the node
// layer can cascade attributes such as shell or working_directory through
// the parent chain without knowing the concrete definition kind.
type Definition interface {
	Attr(name string) (interface{}, bool)
}

// WorkflowDef is the root of a parsed workflow document.
type WorkflowDef struct {
	Name             string                 `yaml:"name"`
	Inputs           []*InputDef            `yaml:"inputs"`
	Env              map[string]interface{} `yaml:"env"`
	Var              map[string]interface{} `yaml:"var"`
	Secrets          map[string]string      `yaml:"secrets"`
	SecretsFile      string                 `yaml:"secrets_file"`
	EnvFile          string                 `yaml:"env_file"`
	RunsOn           *RunsOn                `yaml:"runs_on"`
	Matrix           Matrix                 `yaml:"matrix"`
	Shell            string                 `yaml:"shell"`
	WorkingDirectory string                 `yaml:"working_directory"`
	EchoCommands     *bool                  `yaml:"echo_commands"`
	EchoOutput       *bool                  `yaml:"echo_output"`
	Jobs             JobList                `yaml:"jobs"`
}

// JobDef describes one job. ID is the key under the jobs mapping.
type JobDef struct {
	ID               string                 `yaml:"-"`
	Name             string                 `yaml:"name"`
	Env              map[string]interface{} `yaml:"env"`
	Var              map[string]interface{} `yaml:"var"`
	Secrets          map[string]string      `yaml:"secrets"`
	RunsOn           *RunsOn                `yaml:"runs_on"`
	DependsOn        []string               `yaml:"depends_on"`
	Matrix           Matrix                 `yaml:"matrix"`
	ContinueOnError  bool                   `yaml:"continue_on_error"`
	If               *Condition             `yaml:"if"`
	With             map[string]interface{} `yaml:"with"`
	Shell            string                 `yaml:"shell"`
	WorkingDirectory string                 `yaml:"working_directory"`
	EchoCommands     *bool                  `yaml:"echo_commands"`
	EchoOutput       *bool                  `yaml:"echo_output"`
	IsSensitive      bool                   `yaml:"is_sensitive"`
	Steps            []*StepDef             `yaml:"steps"`
}

// StepDef describes one step. An empty Uses selects the built-in run action.
type StepDef struct {
	ID               string                 `yaml:"id"`
	Name             string                 `yaml:"name"`
	Uses             string                 `yaml:"uses"`
	Run              string                 `yaml:"run"`
	If               *Condition             `yaml:"if"`
	With             map[string]interface{} `yaml:"with"`
	Set              map[string]interface{} `yaml:"set"`
	Env              map[string]interface{} `yaml:"env"`
	Var              map[string]interface{} `yaml:"var"`
	Secrets          map[string]string      `yaml:"secrets"`
	Shell            string                 `yaml:"shell"`
	WorkingDirectory string                 `yaml:"working_directory"`
	ContinueOnError  bool                   `yaml:"continue_on_error"`
	EchoCommands     *bool                  `yaml:"echo_commands"`
	EchoOutput       *bool                  `yaml:"echo_output"`
	IsSensitive      bool                   `yaml:"is_sensitive"`
}

// InputDef declares a workflow input parameter.
type InputDef struct {
	Name      string      `yaml:"name"`
	Default   interface{} `yaml:"default"`
	Required  bool        `yaml:"required"`
	Sensitive bool        `yaml:"sensitive"`
}

// Attr implements Definition.
func (d *WorkflowDef) Attr(name string) (interface{}, bool) {
	switch name {
	case "name":
		return d.Name, d.Name != ""
	case "shell":
		return d.Shell, d.Shell != ""
	case "working_directory":
		return d.WorkingDirectory, d.WorkingDirectory != ""
	case "echo_commands":
		return boolAttr(d.EchoCommands)
	case "echo_output":
		return boolAttr(d.EchoOutput)
	case "runs_on":
		return d.RunsOn, d.RunsOn != nil
	case "secrets_file":
		return d.SecretsFile, d.SecretsFile != ""
	case "env_file":
		return d.EnvFile, d.EnvFile != ""
	}
	return nil, false
}

// Attr implements Definition.
func (d *JobDef) Attr(name string) (interface{}, bool) {
	switch name {
	case "id":
		return d.ID, true
	case "name":
		return d.Name, d.Name != ""
	case "shell":
		return d.Shell, d.Shell != ""
	case "working_directory":
		return d.WorkingDirectory, d.WorkingDirectory != ""
	case "echo_commands":
		return boolAttr(d.EchoCommands)
	case "echo_output":
		return boolAttr(d.EchoOutput)
	case "runs_on":
		return d.RunsOn, d.RunsOn != nil
	case "is_sensitive":
		return d.IsSensitive, d.IsSensitive
	case "continue_on_error":
		return d.ContinueOnError, true
	}
	return nil, false
}

// Attr implements Definition.
func (d *StepDef) Attr(name string) (interface{}, bool) {
	switch name {
	case "id":
		return d.ID, true
	case "name":
		return d.Name, d.Name != ""
	case "uses":
		return d.Uses, d.Uses != ""
	case "run":
		return d.Run, d.Run != ""
	case "shell":
		return d.Shell, d.Shell != ""
	case "working_directory":
		return d.WorkingDirectory, d.WorkingDirectory != ""
	case "echo_commands":
		return boolAttr(d.EchoCommands)
	case "echo_output":
		return boolAttr(d.EchoOutput)
	case "is_sensitive":
		return d.IsSensitive, d.IsSensitive
	case "continue_on_error":
		return d.ContinueOnError, true
	}
	return nil, false
}

func boolAttr(value *bool) (interface{}, bool) {
	if value == nil {
		return nil, false
	}
	return *value, true
}

// DisplayName returns the human-facing name of a job.
func (d *JobDef) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// DisplayName returns the human-facing name of a step: the explicit name,
// the action identifier, the first command line, or the id.
func (d *StepDef) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	if d.Uses != "" {
		return d.Uses
	}
	if d.Run != "" {
		for i := 0; i < len(d.Run); i++ {
			if d.Run[i] == '\n' {
				return d.Run[:i]
			}
		}
		return d.Run
	}
	return d.ID
}

// Job returns the job with the given id.
func (d *WorkflowDef) Job(id string) *JobDef {
	for _, job := range d.Jobs {
		if job.ID == id {
			return job
		}
	}
	return nil
}

// Normalize assigns default step ids (step_1, step_2, …) and validates
// structural properties: unique step ids per job and dependency references
// to existing jobs.
func (d *WorkflowDef) Normalize() error {
	known := map[string]bool{}
	for _, job := range d.Jobs {
		if known[job.ID] {
			return fmt.Errorf("duplicate job id %s", job.ID)
		}
		known[job.ID] = true
	}
	for _, job := range d.Jobs {
		for _, dep := range job.DependsOn {
			if !known[dep] {
				return fmt.Errorf("job %s depends on unknown job %s", job.ID, dep)
			}
		}
		seen := map[string]bool{}
		for i, step := range job.Steps {
			if step.ID == "" {
				step.ID = fmt.Sprintf("step_%d", i+1)
			}
			if seen[step.ID] {
				return fmt.Errorf("job %s has duplicate step id %s", job.ID, step.ID)
			}
			seen[step.ID] = true
		}
	}
	return nil
}
