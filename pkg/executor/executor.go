package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrEmptyOutput is returned when a JSON program prints nothing on stdout.
var ErrEmptyOutput = errors.New("empty output")

type implExecutor struct {
	timeout time.Duration
	dir     string
}

// Option configures an Executor.
type Option func(*implExecutor)

// WithTimeout bounds every command. Zero means no limit beyond the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(e *implExecutor) { e.timeout = d }
}

// WithDir sets the working directory of every command.
func WithDir(dir string) Option {
	return func(e *implExecutor) { e.dir = dir }
}

// New creates a new Executor instance.
func New(opts ...Option) Executor {
	e := &implExecutor{}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute runs an external command with the given arguments.
func (e *implExecutor) Execute(ctx context.Context, name string, args ...string) (string, error) {
	stdout, err := e.run(ctx, nil, name, args...)
	if err != nil {
		return "", err
	}
	return stdout, nil
}

// RunJSON runs a command speaking the JSON-over-stdin protocol.
func (e *implExecutor) RunJSON(ctx context.Context, req any, resp any, name string, args ...string) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	stdout, err := e.run(ctx, body, name, args...)
	if err != nil {
		return err
	}
	line := LastLine(stdout)
	if line == "" {
		return fmt.Errorf("command '%s': %w", name, ErrEmptyOutput)
	}
	if err := json.Unmarshal([]byte(line), resp); err != nil {
		return fmt.Errorf("command '%s' returned invalid JSON: %w", name, err)
	}
	return nil
}

func (e *implExecutor) run(ctx context.Context, stdin []byte, name string, args ...string) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = e.dir
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// stderr carries the script's own diagnostics
		stderrStr := strings.TrimSpace(stderr.String())
		if stderrStr != "" {
			return "", fmt.Errorf("command '%s' failed: %w\nstderr: %s", name, err, stderrStr)
		}
		return "", fmt.Errorf("command '%s' failed: %w", name, err)
	}
	return stdout.String(), nil
}

// LastLine returns the last non-empty line of s, trimmed.
func LastLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
