// Package bluish provides a declarative pipeline runner.
//
// Pipelines are YAML workflows made of jobs and steps.  Jobs declare
// dependencies on one another and are dispatched in dependency order; steps
// run shell commands or built-in actions (docker, git, file transfer,
// package installation) on a local, ssh or docker host.  Values flow
// between nodes through ${{ }} expressions resolved against scoped
// variables, environment, secrets, inputs and captured outputs.
//
// End-users typically interact with the engine via the Service façade
// exposed by the root package:
//
//	srv := bluish.New()
//	wf, _ := srv.LoadWorkflow(ctx, "pipeline")
//	result, _ := srv.RunJob(ctx, "pipeline", "build", false, nil)
//
// The bluish command under cmd/bluish wraps the same façade for shell use.
// For more details see the individual sub-packages.
package bluish
