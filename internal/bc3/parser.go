package bc3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/obrasoft/bc3gest/internal/budget"
)

// Options configures one parse call. Configuration is passed by value into
// every call; the parser holds no process-wide state, so concurrent parses
// need no coordination.
type Options struct {
	// Encoding is the charset assumed when the file does not declare one
	// in its ~V header. Empty means ISO 8859-1.
	Encoding string
}

// Result is a successful parse: the resolved budget tree plus any
// non-fatal warnings (unknown references, duplicate-field conflicts).
type Result struct {
	Tree     *budget.Node
	Warnings []string
}

// Parse turns a raw BC3 byte stream into a priced, pruned, renumbered
// budget tree. It is all-or-nothing: any fatal error means no tree.
func Parse(ctx context.Context, data []byte, opts Options) (*Result, error) {
	text, err := decodeInput(data, opts.Encoding)
	if err != nil {
		return nil, err
	}

	concepts := NewConceptTable()
	graph := NewDecompositionGraph()
	meas := NewMeasurementTable()

	tok := NewTokenizer(strings.NewReader(text))
	count := 0
	for {
		rec, err := tok.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch rec.Type {
		case "C":
			concepts.ApplyConcept(rec)
		case "T":
			concepts.ApplyText(rec)
		case "D":
			graph.Apply(rec)
		case "M":
			if err := meas.Apply(rec); err != nil {
				return nil, err
			}
		default:
			// Header, coefficient and the other record families carry
			// nothing the budget tree needs.
		}

		count++
		if count%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("parse aborted: %w", err)
			}
		}
	}

	var warnings []string
	warnings = append(warnings, concepts.Warnings()...)

	a, rootID, err := assemble(graph, concepts, func(w string) {
		warnings = append(warnings, w)
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse aborted: %w", err)
	}

	resolve(a, rootID, concepts, meas)

	tree := toBudget(a, rootID, concepts)
	Prune(tree)
	Renumber(tree)

	return &Result{Tree: tree, Warnings: warnings}, nil
}
