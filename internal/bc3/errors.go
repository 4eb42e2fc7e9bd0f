package bc3

import (
	"fmt"
	"strings"
)

// MalformedRecordError is a line-level syntax violation. It aborts the
// whole parse.
type MalformedRecordError struct {
	Line   int
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record on line %d: %s", e.Line, e.Reason)
}

// EncodingError means the declared or configured charset cannot decode the
// byte stream.
type EncodingError struct {
	Charset string
	Reason  string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding %q: %s", e.Charset, e.Reason)
}

// InvalidQuantityError means a measurement carried a non-numeric quantity
// or dimension. The file is rejected rather than coercing to zero, since a
// misparsed quantity would silently propagate into priced totals.
type InvalidQuantityError struct {
	Code  string
	Value string
	Line  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %q for concept %q on line %d", e.Value, e.Code, e.Line)
}

// CyclicDecompositionError names the code sequence that closes a cycle in
// the decomposition graph. Fatal: unfolding the graph would recurse
// without bound.
type CyclicDecompositionError struct {
	Cycle []string
}

func (e *CyclicDecompositionError) Error() string {
	return fmt.Sprintf("cyclic decomposition: %s", strings.Join(e.Cycle, " -> "))
}
