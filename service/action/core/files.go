package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bluish-run/bluish/extension"
	"github.com/bluish-run/bluish/logging"
	"github.com/bluish-run/bluish/node"
	"github.com/bluish-run/bluish/process"
)

// ExpandTemplate renders a template through expression expansion and
// optionally writes the result to a file on the job host.
type ExpandTemplate struct{}

// NewExpandTemplate creates the template expansion action.
func NewExpandTemplate() *ExpandTemplate { return &ExpandTemplate{} }

// Name returns the action identifier.
func (a *ExpandTemplate) Name() string { return "core/expand-template" }

type expandTemplateInput struct {
	Input      string `json:"input"`
	InputFile  string `json:"input_file"`
	OutputFile string `json:"output_file"`
	Chmod      string `json:"chmod"`
}

// Execute reads the template from input or input_file, expands it in the
// step scope and returns the expanded content as stdout.
func (a *ExpandTemplate) Execute(ctx context.Context, step *node.Step) (process.Result, error) {
	var input expandTemplateInput
	if err := extension.DecodeInputs(step, &input); err != nil {
		return process.Result{}, err
	}
	job := step.Job()

	content := input.Input
	if input.InputFile != "" {
		logging.Infof("Reading template file: %s...", input.InputFile)
		raw, err := job.ReadFile(ctx, &step.Node, input.InputFile)
		if err != nil {
			return process.Result{}, err
		}
		content = string(raw)
	}
	expanded, err := step.ExpandString(content)
	if err != nil {
		return process.Result{}, err
	}

	if input.OutputFile != "" {
		logging.Infof("Writing expanded content to: %s...", input.OutputFile)
		if err := job.WriteFile(ctx, &step.Node, input.OutputFile, []byte(expanded)); err != nil {
			return process.Result{}, err
		}
		if input.Chmod != "" {
			logging.Infof("Setting permissions to %s on %s...", input.Chmod, input.OutputFile)
			result, err := job.Exec(ctx, fmt.Sprintf("chmod %s %s", input.Chmod, input.OutputFile), &step.Node, nil, "", false)
			if err != nil {
				return process.Result{}, err
			}
			if result.Failed() {
				return result, nil
			}
		}
	}
	return process.Result{Stdout: expanded}, nil
}

// UploadFile copies a local file to the job host.
type UploadFile struct{}

// NewUploadFile creates the upload action.
func NewUploadFile() *UploadFile { return &UploadFile{} }

// Name returns the action identifier.
func (a *UploadFile) Name() string { return "core/upload-file" }

type transferInput struct {
	SourceFile      string `json:"source_file"`
	DestinationFile string `json:"destination_file"`
	Chmod           string `json:"chmod"`
}

// Execute reads source_file locally and writes it to destination_file on
// the job host, applying chmod when given.
func (a *UploadFile) Execute(ctx context.Context, step *node.Step) (process.Result, error) {
	var input transferInput
	if err := extension.DecodeInputs(step, &input); err != nil {
		return process.Result{}, err
	}
	source := expandUser(input.SourceFile)
	logging.Infof("Reading file: %s...", source)
	contents, err := os.ReadFile(source)
	if err != nil {
		logging.Errorf("Failed to read file: %v", err)
		return process.Result{ReturnCode: 1, Stderr: err.Error()}, nil
	}
	logging.Infof(" - Read %d bytes.", len(contents))

	job := step.Job()
	logging.Infof("Writing file to: %s...", input.DestinationFile)
	if err := job.WriteFile(ctx, &step.Node, input.DestinationFile, contents); err != nil {
		logging.Errorf("Failed to write file: %v", err)
		return process.Result{ReturnCode: 1, Stderr: err.Error()}, nil
	}

	if input.Chmod != "" {
		logging.Infof("Setting permissions to %s on %s...", input.Chmod, input.DestinationFile)
		result, err := job.Exec(ctx, fmt.Sprintf("chmod %s %s", input.Chmod, input.DestinationFile), &step.Node, nil, "", false)
		if err != nil {
			return process.Result{}, err
		}
		if result.Failed() {
			logging.Errorf("Failed to set permissions: %s", result.Stderr)
			return result, nil
		}
	}
	return process.Result{}, nil
}

// DownloadFile copies a file from the job host to the local machine.
type DownloadFile struct{}

// NewDownloadFile creates the download action.
func NewDownloadFile() *DownloadFile { return &DownloadFile{} }

// Name returns the action identifier.
func (a *DownloadFile) Name() string { return "core/download-file" }

// Execute reads source_file on the job host and writes it to
// destination_file locally.
func (a *DownloadFile) Execute(ctx context.Context, step *node.Step) (process.Result, error) {
	var input transferInput
	if err := extension.DecodeInputs(step, &input); err != nil {
		return process.Result{}, err
	}
	logging.Infof("Reading file: %s...", input.SourceFile)
	contents, err := step.Job().ReadFile(ctx, &step.Node, input.SourceFile)
	if err != nil {
		logging.Errorf("Failed to read file: %v", err)
		return process.Result{ReturnCode: 1, Stderr: err.Error()}, nil
	}
	logging.Infof(" - Read %d bytes.", len(contents))

	if input.DestinationFile != "" {
		logging.Infof("Writing file to: %s...", input.DestinationFile)
		if err := os.WriteFile(expandUser(input.DestinationFile), contents, 0o644); err != nil {
			logging.Errorf("Failed to write file: %v", err)
			return process.Result{ReturnCode: 1, Stderr: err.Error()}, nil
		}
		if input.Chmod != "" {
			mode, err := parseMode(input.Chmod)
			if err != nil {
				logging.Errorf("Failed to set permissions: %v", err)
				return process.Result{ReturnCode: 1, Stderr: err.Error()}, nil
			}
			if err := os.Chmod(input.DestinationFile, mode); err != nil {
				logging.Errorf("Failed to set permissions: %v", err)
				return process.Result{ReturnCode: 1, Stderr: err.Error()}, nil
			}
		}
	}
	return process.Result{}, nil
}

func expandUser(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func parseMode(value string) (os.FileMode, error) {
	var mode uint32
	if _, err := fmt.Sscanf(value, "%o", &mode); err != nil {
		return 0, fmt.Errorf("invalid file mode %q", value)
	}
	return os.FileMode(mode), nil
}
