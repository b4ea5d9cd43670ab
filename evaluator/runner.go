package evaluator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrRunnerNotFound is returned before spawning when the script runner binary is missing.
var ErrRunnerNotFound = errors.New("script runner not found")

// Runner executes a standalone module script and returns what it printed.
type Runner interface {
	// Check verifies the runner can be started.
	Check() error
	// Run executes script with dir as working directory.
	Run(ctx context.Context, dir string, script string) (stdout []byte, stderr []byte, err error)
}

// ProcessRunner runs scripts through an external binary invoked as
// "<Command> <Args...> -e <script>".
type ProcessRunner struct {
	Command string
	Args    []string
}

// NewProcessRunner builds a runner from a command line such as
// ["node_modules/.bin/tsx"] or ["node", "--input-type=module"].
func NewProcessRunner(commandLine []string) *ProcessRunner {
	if len(commandLine) == 0 {
		return &ProcessRunner{}
	}
	return &ProcessRunner{Command: commandLine[0], Args: append([]string(nil), commandLine[1:]...)}
}

func (r *ProcessRunner) Check() error {
	if r.Command == "" {
		return fmt.Errorf("%w: no command configured", ErrRunnerNotFound)
	}
	if strings.ContainsAny(r.Command, `/\`) {
		info, err := os.Stat(r.Command)
		if err != nil || info.IsDir() {
			return fmt.Errorf("%w: %q is required to evaluate macro expressions", ErrRunnerNotFound, r.Command)
		}
		return nil
	}
	if _, err := exec.LookPath(r.Command); err != nil {
		return fmt.Errorf("%w: %q is required to evaluate macro expressions", ErrRunnerNotFound, r.Command)
	}
	return nil
}

func (r *ProcessRunner) Run(ctx context.Context, dir string, script string) ([]byte, []byte, error) {
	args := append(append([]string(nil), r.Args...), "-e", script)
	cmd := exec.CommandContext(ctx, r.Command, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// ProcessError carries the diagnostics of a failed evaluation run.
type ProcessError struct {
	File   string
	Stderr string
	Err    error
}

func (e *ProcessError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("evaluating macro in %s: %s", e.File, msg)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}
