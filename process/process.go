// Package process runs shell commands against an execution target: the
// local machine, an SSH remote or a running Docker container. Remote targets
// are reached by wrapping the command into the matching client invocation
// and running it through the local shell.
package process

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// Shells maps a shell selector to its interpreter invocation.
var Shells = map[string]string{
	"bash":   "bash -euo pipefail",
	"sh":     "sh -eu",
	"python": "python3 -qsIEB",
}

// DefaultShell is used when no shell attribute cascades down to a step.
const DefaultShell = "sh"

// Result is the outcome of a command execution.
type Result struct {
	Stdout     string
	Stderr     string
	ReturnCode int
}

// Failed reports a non-zero exit.
func (r Result) Failed() bool { return r.ReturnCode != 0 }

// Error returns best-effort diagnostic text for a failed command.
func (r Result) Error() string {
	if r.Stderr != "" {
		return r.Stderr
	}
	return r.Stdout
}

// Sink receives a single output line as it is produced.
type Sink func(line string)

// escapeCommand protects backslashes and dollar signs so that the command
// survives the sh -c / ssh wrapping without local expansion.
func escapeCommand(command string) string {
	command = strings.ReplaceAll(command, `\`, `\\\\`)
	return strings.ReplaceAll(command, "$", `\$`)
}

// Run executes command against host and returns its captured output. Stdout
// is streamed line by line into stdoutSink while both streams are buffered
// for the returned result. Stderr is delivered to stderrSink only after a
// failed run, mirroring the capture semantics of a remote invocation.
func Run(command string, host *Host, stdoutSink, stderrSink Sink) Result {
	command = escapeCommand(command)

	if host != nil {
		switch host.Scheme {
		case SchemeSSH:
			opts := ""
			if host.IdentityFile != "" {
				opts = fmt.Sprintf("-i %s ", host.IdentityFile)
			}
			command = fmt.Sprintf("ssh %s%s -- '%s'", opts, host.Target, command)
		case SchemeDocker:
			command = fmt.Sprintf("docker exec -i %s sh -euc '%s'", host.Target, command)
		}
	}

	result := spawn(command, stdoutSink)
	if result.Failed() && result.Stderr != "" && stderrSink != nil {
		stderrSink(result.Stderr)
	}
	return result
}

// spawn runs command through the local shell, streaming stdout line by line.
func spawn(command string, stdoutSink Sink) Result {
	cmd := exec.Command("sh", "-c", command)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Result{Stderr: err.Error(), ReturnCode: 1}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return Result{Stderr: err.Error(), ReturnCode: 1}
	}
	if err := cmd.Start(); err != nil {
		return Result{Stderr: err.Error(), ReturnCode: 1}
	}

	var stdout, stderr strings.Builder
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdoutPipe)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			stdout.WriteString(line)
			stdout.WriteString("\n")
			if stdoutSink != nil {
				stdoutSink(line)
			}
		}
	}()
	go func() {
		defer wg.Done()
		data, _ := io.ReadAll(stderrPipe)
		stderr.Write(data)
	}()
	wg.Wait()

	returnCode := 0
	if err := cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			returnCode = exitErr.ExitCode()
		} else {
			return Result{Stdout: trimTrailing(stdout.String()), Stderr: err.Error(), ReturnCode: 1}
		}
	}
	return Result{
		Stdout:     trimTrailing(stdout.String()),
		Stderr:     trimTrailing(stderr.String()),
		ReturnCode: returnCode,
	}
}

func trimTrailing(s string) string {
	return strings.TrimRight(s, "\n")
}
