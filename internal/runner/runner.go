// Package runner is the invocation boundary around the BC3 core: it runs a
// parse either in-process or as an out-of-process worker, and owns the
// timeout/abort policy the core itself deliberately does not have.
package runner

import (
	"context"
	"errors"

	"github.com/obrasoft/bc3gest/internal/bc3"
	"github.com/obrasoft/bc3gest/internal/budget"
)

// Runner executes one parse over raw BC3 bytes. An aborted or failed parse
// returns no partial tree, ever.
type Runner interface {
	Run(ctx context.Context, data []byte) (*budget.Node, []string, error)
}

// Envelope is the wire shape produced by the parse boundary: exactly one
// of Data or Error is set.
type Envelope struct {
	Success bool         `json:"success"`
	Error   *string      `json:"error"`
	Data    *budget.Node `json:"data"`
}

// NewEnvelope wraps a parse outcome.
func NewEnvelope(tree *budget.Node, err error) Envelope {
	if err != nil {
		msg := err.Error()
		return Envelope{Success: false, Error: &msg}
	}
	return Envelope{Success: true, Data: tree}
}

// InProcess runs the core parser directly on the caller's goroutine.
type InProcess struct {
	Encoding string
}

func (r *InProcess) Run(ctx context.Context, data []byte) (*budget.Node, []string, error) {
	res, err := bc3.Parse(ctx, data, bc3.Options{Encoding: r.Encoding})
	if err != nil {
		return nil, nil, err
	}
	return res.Tree, res.Warnings, nil
}

// IsControlled reports whether err is a controlled parse failure (the
// file was bad) as opposed to an infrastructure failure of the boundary
// itself. Controlled failures answer the request; infrastructure failures
// are the caller's problem to retry or alert on.
func IsControlled(err error) bool {
	if err == nil {
		return false
	}
	var (
		pe  *ParseError
		mr  *bc3.MalformedRecordError
		enc *bc3.EncodingError
		iq  *bc3.InvalidQuantityError
		cyc *bc3.CyclicDecompositionError
	)
	return errors.As(err, &pe) ||
		errors.As(err, &mr) ||
		errors.As(err, &enc) ||
		errors.As(err, &iq) ||
		errors.As(err, &cyc) ||
		errors.Is(err, bc3.ErrNoRoot)
}
