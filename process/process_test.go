package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeCommand(t *testing.T) {
	var testCases = []struct {
		description string
		command     string
		expect      string
	}{
		{description: "plain command untouched", command: "echo hi", expect: "echo hi"},
		{description: "dollar escaped", command: "echo $HOME", expect: `echo \$HOME`},
		{description: "backslash escaped", command: `printf a\b`, expect: `printf a\\\\b`},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expect, escapeCommand(testCase.command), testCase.description)
	}
}

func TestRun_Local(t *testing.T) {
	result := Run("echo hi", nil, nil, nil)
	assert.Equal(t, 0, result.ReturnCode)
	assert.Equal(t, "hi", result.Stdout)
	assert.False(t, result.Failed())
}

func TestRun_Failure(t *testing.T) {
	var errLines []string
	result := Run("echo oops >&2; exit 3", nil, nil, func(line string) {
		errLines = append(errLines, line)
	})
	assert.Equal(t, 3, result.ReturnCode)
	assert.True(t, result.Failed())
	assert.Equal(t, "oops", result.Stderr)
	assert.Equal(t, "oops", result.Error())
	assert.Equal(t, []string{"oops"}, errLines)
}

func TestRun_StreamsStdout(t *testing.T) {
	var lines []string
	result := Run("echo a; echo b", nil, func(line string) {
		lines = append(lines, line)
	}, nil)
	assert.Equal(t, 0, result.ReturnCode)
	assert.Equal(t, []string{"a", "b"}, lines)
	assert.Equal(t, "a\nb", result.Stdout)
}

func TestResult_Error(t *testing.T) {
	assert.Equal(t, "err", Result{Stdout: "out", Stderr: "err"}.Error())
	assert.Equal(t, "out", Result{Stdout: "out"}.Error())
}

func TestShells(t *testing.T) {
	assert.Equal(t, "bash -euo pipefail", Shells["bash"])
	assert.Equal(t, "sh -eu", Shells["sh"])
	assert.Equal(t, "python3 -qsIEB", Shells["python"])
	assert.Equal(t, "sh", DefaultShell)
}

func TestPrepareHost(t *testing.T) {
	host, err := PrepareHost(nil)
	assert.Nil(t, err)
	assert.Nil(t, host)
	assert.Equal(t, "local", host.String())

	host, err = PrepareHost(&Options{Host: "ssh://user@example.com", IdentityFile: "key.pem"})
	assert.Nil(t, err)
	if assert.NotNil(t, host) {
		assert.Equal(t, SchemeSSH, host.Scheme)
		assert.Equal(t, "user@example.com", host.Target)
		assert.Equal(t, "key.pem", host.IdentityFile)
		assert.Equal(t, "ssh://user@example.com", host.String())
	}

	_, err = PrepareHost(&Options{Host: "ftp://nope"})
	assert.NotNil(t, err)
}
