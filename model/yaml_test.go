package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestWorkflowDef_Unmarshal(t *testing.T) {
	document := `
name: test workflow
env:
  GREETING: hello
var:
  count: 3
secrets:
  TOKEN: abc
shell: bash
jobs:
  zeta:
    name: Zeta job
    steps:
      - run: echo zeta
  alpha:
    depends_on:
      - zeta
    steps:
      - id: greet
        run: echo hi
        continue_on_error: true
  mid:
    steps:
      - uses: linux/install-packages
        with:
          packages:
            - git
`
	def := &WorkflowDef{}
	err := yaml.Unmarshal([]byte(document), def)
	if !assert.Nil(t, err) {
		return
	}
	assert.Equal(t, "test workflow", def.Name)
	assert.Equal(t, "bash", def.Shell)
	assert.Equal(t, "hello", def.Env["GREETING"])
	assert.EqualValues(t, 3, def.Var["count"])
	assert.Equal(t, "abc", def.Secrets["TOKEN"])

	// declaration order survives the mapping decode
	if assert.Equal(t, 3, len(def.Jobs)) {
		assert.Equal(t, "zeta", def.Jobs[0].ID)
		assert.Equal(t, "alpha", def.Jobs[1].ID)
		assert.Equal(t, "mid", def.Jobs[2].ID)
	}
	assert.Equal(t, []string{"zeta"}, def.Jobs[1].DependsOn)
	assert.Equal(t, "greet", def.Jobs[1].Steps[0].ID)
	assert.True(t, def.Jobs[1].Steps[0].ContinueOnError)
	assert.Equal(t, "linux/install-packages", def.Jobs[2].Steps[0].Uses)
}

func TestMatrix_Unmarshal(t *testing.T) {
	document := `
zebra:
  - a
  - b
apple:
  - 1
  - 2
`
	var matrix Matrix
	err := yaml.Unmarshal([]byte(document), &matrix)
	if !assert.Nil(t, err) {
		return
	}
	if assert.Equal(t, 2, len(matrix)) {
		assert.Equal(t, "zebra", matrix[0].Key)
		assert.Equal(t, []interface{}{"a", "b"}, matrix[0].Values)
		assert.Equal(t, "apple", matrix[1].Key)
		assert.Equal(t, []interface{}{1, 2}, matrix[1].Values)
	}
}

func TestMatrix_RejectsScalarAxis(t *testing.T) {
	var matrix Matrix
	err := yaml.Unmarshal([]byte("os: linux"), &matrix)
	assert.NotNil(t, err)
}

func TestCondition_Unmarshal(t *testing.T) {
	var testCases = []struct {
		description string
		document    string
		expect      Condition
	}{
		{description: "boolean literal", document: "false", expect: Condition{IsBool: true, Bool: false}},
		{description: "true literal", document: "true", expect: Condition{IsBool: true, Bool: true}},
		{description: "expression string", document: `"x > 1"`, expect: Condition{Expr: "x > 1"}},
	}
	for _, testCase := range testCases {
		var cond Condition
		err := yaml.Unmarshal([]byte(testCase.document), &cond)
		if !assert.Nil(t, err, testCase.description) {
			continue
		}
		assert.Equal(t, testCase.expect, cond, testCase.description)
	}
}

func TestRunsOn_Unmarshal(t *testing.T) {
	var scalar RunsOn
	err := yaml.Unmarshal([]byte(`docker://alpine:latest`), &scalar)
	assert.Nil(t, err)
	assert.Equal(t, "docker://alpine:latest", scalar.Host)

	var mapping RunsOn
	err = yaml.Unmarshal([]byte("host: ssh://user@example.com\nidentity_file: key.pem"), &mapping)
	assert.Nil(t, err)
	assert.Equal(t, "ssh://user@example.com", mapping.Host)
	assert.Equal(t, "key.pem", mapping.IdentityFile)
}

func TestWorkflowDef_Normalize(t *testing.T) {
	def := &WorkflowDef{
		Jobs: JobList{
			{ID: "build", Steps: []*StepDef{{Run: "echo 1"}, {Run: "echo 2"}}},
			{ID: "deploy", DependsOn: []string{"build"}},
		},
	}
	err := def.Normalize()
	assert.Nil(t, err)
	assert.Equal(t, "step_1", def.Jobs[0].Steps[0].ID)
	assert.Equal(t, "step_2", def.Jobs[0].Steps[1].ID)

	dup := &WorkflowDef{Jobs: JobList{{ID: "a"}, {ID: "a"}}}
	assert.NotNil(t, dup.Normalize())

	unknownDep := &WorkflowDef{Jobs: JobList{{ID: "a", DependsOn: []string{"missing"}}}}
	assert.NotNil(t, unknownDep.Normalize())

	dupStep := &WorkflowDef{Jobs: JobList{{ID: "a", Steps: []*StepDef{{ID: "s"}, {ID: "s"}}}}}
	assert.NotNil(t, dupStep.Normalize())
}

func TestStepDef_DisplayName(t *testing.T) {
	assert.Equal(t, "named", (&StepDef{Name: "named", Uses: "x"}).DisplayName())
	assert.Equal(t, "git/checkout", (&StepDef{Uses: "git/checkout"}).DisplayName())
	assert.Equal(t, "echo first", (&StepDef{Run: "echo first\necho second"}).DisplayName())
	assert.Equal(t, "step_1", (&StepDef{ID: "step_1"}).DisplayName())
}
