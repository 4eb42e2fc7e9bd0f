package bc3

import (
	"fmt"

	"github.com/obrasoft/bc3gest/internal/budget"
)

// Renumber assigns clean decimal codes to the (already pruned) tree: the
// root is "0", each level gets 1-based two-digit indices in surviving
// sibling order, joined with dots: the third child of the second chapter
// becomes "02.03". Original source codes stay on the nodes untouched, and
// so do quantities, prices and the tree shape: this is purely a
// presentation re-indexing.
func Renumber(root *budget.Node) {
	if root == nil {
		return
	}
	root.CodigoDecimal = "0"
	for i, child := range root.Hijos {
		renumber(child, fmt.Sprintf("%02d", i+1))
	}
}

func renumber(n *budget.Node, code string) {
	n.CodigoDecimal = code
	for i, child := range n.Hijos {
		renumber(child, fmt.Sprintf("%s.%02d", code, i+1))
	}
}
