package bc3

import (
	"github.com/obrasoft/bc3gest/internal/budget"
)

// resolve computes quantity, price and amount for every node, bottom-up.
//
// A leaf takes its measured quantity (0 when nothing was measured) and the
// concept's declared unit price (0 when absent). An internal node's price
// is the weighted sum of its children's prices, the domain rule being that
// a chapter's unit price rolls up from its components. Its quantity is its
// own measurement when one exists, else the structural 1 of a node that
// only hosts a rollup. Amount is quantity times price at every node.
func resolve(a *arena, id int, concepts *ConceptTable, meas *MeasurementTable) {
	n := &a.nodes[id]

	for _, child := range n.children {
		resolve(a, child, concepts, meas)
	}

	if len(n.children) == 0 {
		if q, ok := meas.Quantity(n.code); ok {
			n.quantity = q
		}
		if c := concepts.Get(n.code); c != nil {
			n.price = c.Price
		}
	} else {
		var price float64
		for _, child := range n.children {
			c := &a.nodes[child]
			price += c.price * c.factor
		}
		n.price = price
		if q, ok := meas.Quantity(n.code); ok {
			n.quantity = q
		} else {
			n.quantity = 1
		}
	}

	n.amount = n.quantity * n.price
}

// toBudget converts the resolved arena subtree into the externally visible
// tree, attaching concept metadata. From here on the concept, graph and
// measurement tables are no longer needed.
func toBudget(a *arena, id int, concepts *ConceptTable) *budget.Node {
	n := &a.nodes[id]

	out := &budget.Node{
		Codigo:     n.code,
		Naturaleza: n.kind,
		Cantidad:   n.quantity,
		Precio:     n.price,
		Importe:    n.amount,
		Factor:     n.factor,
		Hijos:      make([]*budget.Node, 0, len(n.children)),
	}
	if c := concepts.Get(n.code); c != nil {
		out.Unidad = c.Unit
		out.Resumen = c.Summary
		out.DescripcionLarga = c.Description
	}
	for _, child := range n.children {
		out.Hijos = append(out.Hijos, toBudget(a, child, concepts))
	}
	return out
}
