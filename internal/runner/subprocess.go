package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/obrasoft/bc3gest/internal/budget"
)

// Subprocess invokes an external bc3parse binary: file bytes on stdin, the
// result envelope on stdout, diagnostics on stderr. Cancelling the context
// kills the worker process, so a runaway parse cannot outlive its caller.
//
// Exit status 1 is reserved for "parse failed but answered correctly":
// the envelope still arrives and its error is surfaced as a ParseError.
// Any other non-zero status is an infrastructure failure.
type Subprocess struct {
	Path string
	Args []string
	Log  *slog.Logger
}

// ParseError is a controlled parse failure reported by the worker.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string { return e.Message }

func (r *Subprocess) Run(ctx context.Context, data []byte) (*budget.Node, []string, error) {
	cmd := exec.CommandContext(ctx, r.Path, r.Args...)
	// A grandchild inheriting the output pipes would keep Wait blocked
	// long after the kill; abandon the pipes shortly after cancellation.
	cmd.WaitDelay = 3 * time.Second
	cmd.Stdin = bytes.NewReader(data)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if r.Log != nil && stderr.Len() > 0 {
		r.Log.Warn("parser stderr", "output", strings.TrimSpace(stderr.String()))
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, nil, fmt.Errorf("parser aborted: %w", ctxErr)
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, nil, fmt.Errorf("start parser %q: %w", r.Path, runErr)
		}
		if code := exitErr.ExitCode(); code != 1 {
			return nil, nil, fmt.Errorf("parser exited with status %d: %s", code, strings.TrimSpace(stderr.String()))
		}
		// Status 1: controlled failure, the envelope explains it.
	}

	var env Envelope
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &env); err != nil {
		return nil, nil, fmt.Errorf("decode parser output: %w", err)
	}
	if !env.Success {
		msg := "parse failed"
		if env.Error != nil {
			msg = *env.Error
		}
		return nil, nil, &ParseError{Message: msg}
	}
	if env.Data == nil {
		return nil, nil, fmt.Errorf("parser reported success without a tree")
	}
	return env.Data, nil, nil
}
