package executor

import "context"

// Executor runs external programs.
type Executor interface {
	// Execute runs name with args and returns stdout.
	Execute(ctx context.Context, name string, args ...string) (string, error)
	// RunJSON writes req as JSON to the program's stdin and decodes the last non-empty
	// stdout line into resp.
	RunJSON(ctx context.Context, req any, resp any, name string, args ...string) error
}
