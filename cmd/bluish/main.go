package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bluish-run/bluish"
	"github.com/bluish-run/bluish/logging"
	"github.com/bluish-run/bluish/node"
	"github.com/bluish-run/bluish/tracing"
)

var (
	flagFile     string
	flagLogLevel string
	flagTrace    string
	flagNoDeps   bool
	flagInputs   []string
)

// exitError carries a job's exit code up to main so that logs are flushed
// before the process terminates.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	root := &cobra.Command{
		Use:           "bluish",
		Short:         "A CI/CD pipeline runner that executes workflows locally or on remote hosts",
		Version:       bluish.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.Init(flagLogLevel); err != nil {
				return err
			}
			if flagTrace != "" {
				return tracing.Init("bluish", bluish.Version, flagTrace)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&flagFile, "file", "f", "", "workflow file or name (defaults to bluish.yaml or .bluish/bluish.yaml)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagTrace, "trace", "", "write execution spans to the given file")

	runCmd := &cobra.Command{
		Use:   "run JOB_ID",
		Short: "Run a job and its dependencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd.Context(), args[0])
		},
	}
	runCmd.Flags().BoolVar(&flagNoDeps, "no-deps", false, "don't run job dependencies")
	runCmd.Flags().StringArrayVar(&flagInputs, "input", nil, "workflow input as name=value (repeatable)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the jobs of the workflow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listJobs(cmd.Context())
		},
	}

	root.AddCommand(runCmd, listCmd)
	err := root.Execute()
	logging.Sync()
	if err == nil {
		return
	}
	var exit *exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func loadWorkflow(ctx context.Context) (*node.Workflow, error) {
	service := bluish.New()
	if strings.HasSuffix(flagFile, ".yaml") || strings.HasSuffix(flagFile, ".yml") {
		return service.LoadWorkflowURL(ctx, flagFile)
	}
	return service.LoadWorkflow(ctx, flagFile)
}

func runJob(ctx context.Context, jobID string) error {
	// A file:job_id argument selects a workflow by name in one shot.
	if name, id, found := strings.Cut(jobID, ":"); found {
		flagFile, jobID = name, id
	}
	workflow, err := loadWorkflow(ctx)
	if err != nil {
		return err
	}

	inputs := map[string]string{}
	for _, pair := range flagInputs {
		name, value, found := strings.Cut(pair, "=")
		if !found {
			return fmt.Errorf("invalid input %q, expected name=value", pair)
		}
		inputs[name] = value
	}
	if err := workflow.SetInputs(inputs); err != nil {
		return err
	}

	job := workflow.Job(jobID)
	if job == nil {
		return fmt.Errorf("job not found: %s", jobID)
	}
	result, err := workflow.DispatchJob(ctx, job, flagNoDeps)
	if err != nil {
		return err
	}
	if result.Failed() {
		logging.Errorf("Job failed with code %d", result.ReturnCode)
		return &exitError{code: result.ReturnCode}
	}
	logging.Infof("Job completed successfully.")
	return nil
}

func listJobs(ctx context.Context) error {
	workflow, err := loadWorkflow(ctx)
	if err != nil {
		return err
	}
	jobs := workflow.Jobs()
	if len(jobs) == 0 {
		return fmt.Errorf("no jobs found in workflow file")
	}
	width := len("ID")
	for _, job := range jobs {
		if len(job.ID()) > width {
			width = len(job.ID())
		}
	}
	fmt.Printf("%-*s  NAME\n", width, "ID")
	for _, job := range jobs {
		fmt.Printf("%-*s  %s\n", width, job.ID(), job.Definition().Name)
	}
	return nil
}
