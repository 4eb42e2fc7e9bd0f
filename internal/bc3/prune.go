package bc3

import (
	"github.com/obrasoft/bc3gest/internal/budget"
)

// Prune drops items that carry no measured quantity. Structural nodes
// (root, chapters, subchapters) are never removed: one left childless is
// retained with quantity, price and amount zeroed, so the chapter skeleton
// of the budget stays visible. A composite item whose components are all
// pruned goes with them. Internal prices are re-rolled over the surviving
// children and amounts recomputed, which makes pruning a fixed point:
// running it again changes nothing.
func Prune(root *budget.Node) *budget.Node {
	if root == nil {
		return nil
	}
	hadChildren := len(root.Hijos) > 0

	kept := root.Hijos[:0]
	for _, child := range root.Hijos {
		if pruneNode(child) {
			kept = append(kept, child)
		}
	}
	root.Hijos = kept

	if hadChildren {
		if len(root.Hijos) == 0 {
			root.Cantidad = 0
			root.Precio = 0
		} else {
			root.Precio = rollup(root.Hijos)
		}
	}
	root.Importe = root.Cantidad * root.Precio
	return root
}

// pruneNode reports whether n survives, filtering its children in place.
// Items live and die by their quantity; structural nodes survive always
// and are zeroed when emptied.
func pruneNode(n *budget.Node) bool {
	if len(n.Hijos) == 0 {
		if n.Naturaleza == budget.KindItem {
			return n.Cantidad != 0
		}
		// A structural node emptied by an earlier prune stays as is.
		return true
	}

	kept := n.Hijos[:0]
	for _, child := range n.Hijos {
		if pruneNode(child) {
			kept = append(kept, child)
		}
	}
	n.Hijos = kept

	if len(n.Hijos) == 0 {
		if n.Naturaleza == budget.KindItem {
			return false
		}
		n.Cantidad = 0
		n.Precio = 0
		n.Importe = 0
		return true
	}
	n.Precio = rollup(n.Hijos)
	n.Importe = n.Cantidad * n.Precio
	return true
}

func rollup(children []*budget.Node) float64 {
	var price float64
	for _, c := range children {
		price += c.Precio * c.Factor
	}
	return price
}
