package node

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bluish-run/bluish/process"
)

// recordingRegistry resolves every step to an action that appends the
// owning job id to order.
func recordingRegistry(order *[]string) fakeRegistry {
	return fakeRegistry{
		"": &fakeAction{fn: func(ctx context.Context, step *Step) (process.Result, error) {
			*order = append(*order, step.Job().ID())
			return process.Result{}, nil
		}},
	}
}

func TestWorkflow_DispatchFollowsDependencies(t *testing.T) {
	var order []string
	workflow := newTestWorkflow(t, `
jobs:
  deploy:
    depends_on:
      - test
    steps:
      - run: x
  test:
    depends_on:
      - build
    steps:
      - run: x
  build:
    steps:
      - run: x
`, recordingRegistry(&order))

	result, err := workflow.Dispatch(context.Background())
	assert.Nil(t, err)
	assert.False(t, result.Failed())

	// dependencies run first and finished jobs never run twice
	assert.Equal(t, []string{"build", "test", "deploy"}, order)
	for _, job := range workflow.Jobs() {
		assert.Equal(t, StatusFinished, job.Status(), job.ID())
	}
}

func TestWorkflow_DispatchJobNoDeps(t *testing.T) {
	var order []string
	workflow := newTestWorkflow(t, `
jobs:
  build:
    steps:
      - run: x
  deploy:
    depends_on:
      - build
    steps:
      - run: x
`, recordingRegistry(&order))

	_, err := workflow.DispatchJob(context.Background(), workflow.Job("deploy"), true)
	assert.Nil(t, err)
	assert.Equal(t, []string{"deploy"}, order)
	assert.Equal(t, StatusPending, workflow.Job("build").Status())
}

func TestWorkflow_CircularDependency(t *testing.T) {
	var order []string
	workflow := newTestWorkflow(t, `
jobs:
  a:
    depends_on:
      - b
    steps:
      - run: x
  b:
    depends_on:
      - a
    steps:
      - run: x
`, recordingRegistry(&order))

	_, err := workflow.Dispatch(context.Background())
	if assert.NotNil(t, err) {
		_, ok := err.(*CircularDependencyError)
		assert.True(t, ok)
	}
	assert.Empty(t, order)
}

func TestWorkflow_SharedFinishedDependencyIsNotACycle(t *testing.T) {
	var order []string
	workflow := newTestWorkflow(t, `
jobs:
  x:
    steps:
      - run: x
  a:
    depends_on:
      - x
      - d
    steps:
      - run: x
  d:
    depends_on:
      - x
    steps:
      - run: x
`, recordingRegistry(&order))

	result, err := workflow.Dispatch(context.Background())
	assert.Nil(t, err)
	assert.False(t, result.Failed())

	// x is a diamond dependency: finished once, shared by a and d
	assert.Equal(t, []string{"x", "d", "a"}, order)
	for _, job := range workflow.Jobs() {
		assert.Equal(t, StatusFinished, job.Status(), job.ID())
	}
}

func TestWorkflow_FailedDependencyStopsDependents(t *testing.T) {
	registry := fakeRegistry{
		"": &fakeAction{fn: func(ctx context.Context, step *Step) (process.Result, error) {
			if step.Job().ID() == "build" {
				return process.Result{ReturnCode: 1, Stderr: "boom"}, nil
			}
			return process.Result{}, nil
		}},
	}
	workflow := newTestWorkflow(t, `
jobs:
  build:
    steps:
      - run: x
  deploy:
    depends_on:
      - build
    steps:
      - run: x
`, registry)

	result, err := workflow.Dispatch(context.Background())
	assert.Nil(t, err)
	assert.True(t, result.Failed())

	assert.Equal(t, StatusFinished, workflow.Job("build").Status())
	// the dependent job was never reached
	assert.Equal(t, StatusPending, workflow.Job("deploy").Status())
}

func TestJob_IfFalseSkips(t *testing.T) {
	var order []string
	workflow := newTestWorkflow(t, `
jobs:
  build:
    if: false
    steps:
      - run: x
  deploy:
    depends_on:
      - build
    steps:
      - run: x
`, recordingRegistry(&order))

	result, err := workflow.Dispatch(context.Background())
	assert.Nil(t, err)
	assert.False(t, result.Failed())
	assert.Equal(t, StatusSkipped, workflow.Job("build").Status())
	assert.Equal(t, []string{"deploy"}, order)
}

func TestJob_IfExpression(t *testing.T) {
	var order []string
	workflow := newTestWorkflow(t, `
var:
  enabled: false
jobs:
  build:
    if: var.enabled
    steps:
      - run: x
`, recordingRegistry(&order))

	_, err := workflow.Dispatch(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, StatusSkipped, workflow.Job("build").Status())
	assert.Empty(t, order)
}

func TestStep_IfFalseSkips(t *testing.T) {
	var order []string
	registry := fakeRegistry{
		"": &fakeAction{fn: func(ctx context.Context, step *Step) (process.Result, error) {
			order = append(order, step.ID())
			return process.Result{}, nil
		}},
	}
	workflow := newTestWorkflow(t, `
jobs:
  build:
    steps:
      - id: skipped
        if: false
        run: x
      - id: executed
        run: x
`, registry)

	result, err := workflow.Dispatch(context.Background())
	assert.Nil(t, err)
	assert.False(t, result.Failed())
	assert.Equal(t, []string{"executed"}, order)

	job := workflow.Job("build")
	assert.Equal(t, StatusSkipped, job.Step("skipped").Status())
	assert.Equal(t, StatusFinished, job.Step("executed").Status())
}

func TestStep_ContinueOnError(t *testing.T) {
	registry := fakeRegistry{
		"": &fakeAction{fn: func(ctx context.Context, step *Step) (process.Result, error) {
			if step.ID() == "failing" {
				return process.Result{ReturnCode: 1}, nil
			}
			return process.Result{}, nil
		}},
	}
	workflow := newTestWorkflow(t, `
jobs:
  build:
    steps:
      - id: failing
        run: x
        continue_on_error: true
      - id: next
        run: x
`, registry)

	result, err := workflow.Dispatch(context.Background())
	assert.Nil(t, err)
	assert.False(t, result.Failed())
	assert.Equal(t, StatusFinished, workflow.Job("build").Step("next").Status())
}

func TestWorkflow_MatrixOrderAndValues(t *testing.T) {
	var seen []string
	registry := fakeRegistry{
		"": &fakeAction{fn: func(ctx context.Context, step *Step) (process.Result, error) {
			os, _ := step.GetValue("matrix.os")
			version, _ := step.GetValue("matrix.version")
			seen = append(seen, fmt.Sprintf("%v/%v", os, version))
			return process.Result{}, nil
		}},
	}
	workflow := newTestWorkflow(t, `
jobs:
  build:
    matrix:
      os:
        - a
        - b
      version:
        - 1
        - 2
    steps:
      - run: x
`, registry)

	_, err := workflow.Dispatch(context.Background())
	assert.Nil(t, err)

	// axes vary in declaration order, last axis fastest
	assert.Equal(t, []string{"a/1", "a/2", "b/1", "b/2"}, seen)
}

func TestWorkflow_MatrixDeduplicatesVariants(t *testing.T) {
	var count int
	registry := fakeRegistry{
		"": &fakeAction{fn: func(ctx context.Context, step *Step) (process.Result, error) {
			count++
			return process.Result{}, nil
		}},
	}
	workflow := newTestWorkflow(t, `
matrix:
  os:
    - linux
    - windows
jobs:
  build:
    matrix:
      os:
        - linux
    steps:
      - run: x
`, registry)

	_, err := workflow.Dispatch(context.Background())
	assert.Nil(t, err)

	// the job axis overrides the workflow axis, collapsing both workflow
	// variants into the same combination
	assert.Equal(t, 1, count)
}

func TestWorkflow_DispatchJobMemoizesFinished(t *testing.T) {
	var order []string
	workflow := newTestWorkflow(t, `
jobs:
  build:
    steps:
      - run: x
`, recordingRegistry(&order))

	job := workflow.Job("build")
	_, err := workflow.DispatchJob(context.Background(), job, false)
	assert.Nil(t, err)
	_, err = workflow.DispatchJob(context.Background(), job, false)
	assert.Nil(t, err)
	assert.Equal(t, []string{"build"}, order)
}

func TestJob_ExecCapturesOutputs(t *testing.T) {
	workflow := newTestWorkflow(t, `
jobs:
  build:
    steps:
      - id: produce
        run: echo version=1.2.3 >> "$BLUISH_OUTPUT"
`, shellRegistry())

	result, err := workflow.Dispatch(context.Background())
	assert.Nil(t, err)
	assert.False(t, result.Failed())

	value, err := workflow.GetValue("jobs.build.steps.produce.outputs.version")
	assert.Nil(t, err)
	assert.Equal(t, "1.2.3", value)
}

func TestJob_ExecReturnsStdout(t *testing.T) {
	workflow := newTestWorkflow(t, `
jobs:
  build:
    steps:
      - run: echo hi
`, shellRegistry())

	result, err := workflow.Dispatch(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, "hi", result.Stdout)
	assert.Equal(t, 0, result.ReturnCode)
}

func TestStep_SetCapturesResult(t *testing.T) {
	workflow := newTestWorkflow(t, `
jobs:
  build:
    steps:
      - run: echo hello
        set:
          job.var.greeting: ${{ .stdout }}
`, shellRegistry())

	_, err := workflow.Dispatch(context.Background())
	assert.Nil(t, err)

	value, err := workflow.Job("build").GetValue("var.greeting")
	assert.Nil(t, err)
	assert.Equal(t, "hello", value)
}

func TestJob_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	workflow := newTestWorkflow(t, fmt.Sprintf(`
jobs:
  build:
    working_directory: %s
    steps:
      - run: pwd
`, dir), shellRegistry())

	result, err := workflow.Dispatch(context.Background())
	assert.Nil(t, err)
	assert.Contains(t, result.Stdout, dir)
}

func TestJob_ReadWriteFile(t *testing.T) {
	workflow := newTestWorkflow(t, `
jobs:
  build:
    steps:
      - run: echo hi
`, shellRegistry())

	job := workflow.Job("build")
	path := t.TempDir() + "/payload.txt"
	content := []byte("line one\nline two\n")

	err := job.WriteFile(context.Background(), &job.Node, path, content)
	assert.Nil(t, err)

	actual, err := job.ReadFile(context.Background(), &job.Node, path)
	assert.Nil(t, err)
	assert.Equal(t, content, actual)
}
