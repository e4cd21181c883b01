package bluish_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bluish-run/bluish"
	"github.com/bluish-run/bluish/expression"
	"github.com/bluish-run/bluish/logging"
	"github.com/bluish-run/bluish/node"
	"github.com/bluish-run/bluish/service/loader"
)

func newWorkflow(t *testing.T, document string) *node.Workflow {
	t.Helper()
	def, err := loader.Parse([]byte(document))
	if err != nil {
		t.Fatalf("failed to parse workflow: %v", err)
	}
	workflow, err := bluish.New().NewWorkflow(def)
	if err != nil {
		t.Fatalf("failed to build workflow: %v", err)
	}
	return workflow
}

func TestService_RunShellStep(t *testing.T) {
	workflow := newWorkflow(t, `
jobs:
  hello:
    steps:
      - run: echo hi
`)
	result, err := workflow.Dispatch(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, 0, result.ReturnCode)
	assert.Equal(t, "hi", result.Stdout)
}

func TestService_VariableInterpolation(t *testing.T) {
	workflow := newWorkflow(t, `
var:
  who: world
jobs:
  greet:
    steps:
      - run: echo hello ${{ var.who }}
`)
	result, err := workflow.Dispatch(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, "hello world", result.Stdout)
}

func TestService_EnvReachesCommand(t *testing.T) {
	workflow := newWorkflow(t, `
env:
  GREETING: bonjour
jobs:
  greet:
    steps:
      - run: echo "${{ env.GREETING }}"
`)
	result, err := workflow.Dispatch(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, "bonjour", result.Stdout)
}

func TestService_SecretsNeverLoggedUnredacted(t *testing.T) {
	recorder, recorded := observer.New(zapcore.DebugLevel)
	previous := logging.SetLogger(zap.New(recorder).Sugar())
	defer logging.SetLogger(previous)

	workflow := newWorkflow(t, `
echo_output: false
secrets:
  TOKEN: hunter2
jobs:
  leak:
    steps:
      - run: echo ${{ secrets.TOKEN }}
`)
	result, err := workflow.Dispatch(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, "hunter2", result.Stdout)

	masked := false
	for _, entry := range recorded.All() {
		assert.NotContains(t, entry.Message, "hunter2")
		if strings.Contains(entry.Message, "echo "+expression.Mask) {
			masked = true
		}
	}
	assert.True(t, masked, "command echo should use the masked rendering")
}

func TestService_OutputsFlowBetweenJobs(t *testing.T) {
	workflow := newWorkflow(t, `
jobs:
  produce:
    steps:
      - id: emit
        run: echo version=2.0 >> "$BLUISH_OUTPUT"
  consume:
    depends_on:
      - produce
    steps:
      - run: echo got ${{ jobs.produce.steps.emit.outputs.version }}
`)
	result, err := workflow.DispatchJob(context.Background(), workflow.Job("consume"), false)
	assert.Nil(t, err)
	assert.Equal(t, "got 2.0", result.Stdout)
}

func TestService_ExpandTemplateAction(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "rendered.txt")

	workflow := newWorkflow(t, `
var:
  release: 1.4.0
jobs:
  render:
    steps:
      - uses: core/expand-template
        with:
          input: "release ${{ var.release }}"
          output_file: `+ output + `
`)
	result, err := workflow.Dispatch(context.Background())
	assert.Nil(t, err)
	assert.False(t, result.Failed())
	assert.Equal(t, "release 1.4.0", result.Stdout)

	content, err := os.ReadFile(output)
	assert.Nil(t, err)
	assert.Equal(t, "release 1.4.0", string(content))
}

func TestService_UploadDownloadActions(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.txt")
	remote := filepath.Join(dir, "remote.txt")
	fetched := filepath.Join(dir, "fetched.txt")
	if err := os.WriteFile(source, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	workflow := newWorkflow(t, `
jobs:
  transfer:
    steps:
      - uses: core/upload-file
        with:
          source_file: `+source+`
          destination_file: `+remote+`
      - uses: core/download-file
        with:
          source_file: `+remote+`
          destination_file: `+fetched+`
`)
	result, err := workflow.Dispatch(context.Background())
	assert.Nil(t, err)
	assert.False(t, result.Failed())

	content, err := os.ReadFile(fetched)
	assert.Nil(t, err)
	assert.Equal(t, "payload", string(content))
}

func TestService_RunJobByName(t *testing.T) {
	dir := t.TempDir()
	previous, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(previous) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	document := `
inputs:
  - name: label
    default: none
jobs:
  tag:
    steps:
      - run: echo label is ${{ inputs.label }}
`
	if err := os.WriteFile("release.yaml", []byte(document), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := bluish.New().RunJob(context.Background(), "release", "tag", false, map[string]string{"label": "beta"})
	assert.Nil(t, err)
	assert.Equal(t, "label is beta", result.Stdout)

	_, err = bluish.New().RunJob(context.Background(), "release", "missing", false, nil)
	assert.NotNil(t, err)
}

func TestDefaultActions_Catalog(t *testing.T) {
	actions := bluish.DefaultActions()
	for _, name := range []string{
		"",
		"core/expand-template",
		"core/upload-file",
		"core/download-file",
		"docker/login",
		"docker/logout",
		"docker/build",
		"docker/get-pid",
		"docker/run",
		"docker/stop",
		"docker/exec",
		"docker/create-network",
		"git/checkout",
		"linux/install-packages",
		"macos/install-packages",
	} {
		assert.NotNil(t, actions.Lookup(name), name)
	}
}
