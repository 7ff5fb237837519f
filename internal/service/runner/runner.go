// Package runner executes stored file contents in a time-bounded child
// process and captures its output. Isolation is wall-clock only; the
// temporary artifact is removed on every exit path.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/config"
)

// ErrUnsupportedFileType rejects execution requests before any process is
// spawned.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// listenCall matches an express-style listen invocation so concurrent runs
// do not fight over host ports.
var listenCall = regexp.MustCompile(`app\.listen\([^)]*\)`)

// Result carries the captured streams of one run. A non-zero exit or a
// timeout is not a protocol failure: Success is false and the caller
// decides how to surface it.
type Result struct {
	Output  string `json:"output"`
	Error   string `json:"error"`
	Success bool   `json:"-"`
}

// Runner spawns bounded script executions.
type Runner struct {
	cfg config.RunnerConfig
}

// New returns a Runner bounded by the given configuration.
func New(cfg config.RunnerConfig) *Runner {
	return &Runner{cfg: cfg}
}

// CheckPath verifies the target path ends in a permitted extension.
func (r *Runner) CheckPath(path string) error {
	for _, ext := range r.cfg.AllowedExtensions {
		if strings.HasSuffix(path, ext) {
			return nil
		}
	}
	return fmt.Errorf("%w: only %s files can be run", ErrUnsupportedFileType, strings.Join(r.cfg.AllowedExtensions, ", "))
}

// Run materializes the contents to a uniquely named temporary artifact,
// executes it with a hard wall-clock timeout and returns whatever output
// was captured. The artifact is removed unconditionally, including on
// timeout and spawn failure.
func (r *Runner) Run(ctx context.Context, contents string) Result {
	code := listenCall.ReplaceAllString(contents, fmt.Sprintf("app.listen(%d)", r.cfg.FixedPort))

	tmp, err := os.CreateTemp("", "run_*.cjs")
	if err != nil {
		return Result{Error: fmt.Sprintf("failed to stage script: %v", err)}
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.WriteString(code); err != nil {
		tmp.Close()
		return Result{Error: fmt.Sprintf("failed to stage script: %v", err)}
	}
	if err := tmp.Close(); err != nil {
		return Result{Error: fmt.Sprintf("failed to stage script: %v", err)}
	}

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, r.cfg.Command, path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		log.Printf("[runner] run killed after %s", r.cfg.Timeout)
		return Result{
			Output:  stdout.String(),
			Error:   fmt.Sprintf("execution timed out after %s", r.cfg.Timeout),
			Success: false,
		}
	}

	if runErr != nil {
		diagnostic := stderr.String()
		if diagnostic == "" {
			diagnostic = runErr.Error()
		}
		return Result{Output: stdout.String(), Error: diagnostic, Success: false}
	}

	return Result{Output: stdout.String(), Error: stderr.String(), Success: true}
}
