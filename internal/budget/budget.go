package budget

// Kind is the structural nature of a node ("naturaleza").
type Kind int

const (
	KindRoot       Kind = 0
	KindChapter    Kind = 1
	KindSubchapter Kind = 2
	KindItem       Kind = 3
)

// Node is one entry of the resolved budget tree. Field names follow the
// wire contract consumed downstream; Factor is the decomposition edge
// coefficient the node was instantiated with (1 for the root) and never
// serialized.
type Node struct {
	CodigoDecimal    string  `json:"codigo_decimal"`
	Codigo           string  `json:"codigo"`
	Naturaleza       Kind    `json:"naturaleza"`
	Unidad           string  `json:"unidad"`
	Resumen          string  `json:"resumen"`
	DescripcionLarga string  `json:"descripcion_larga"`
	Cantidad         float64 `json:"cantidad"`
	Precio           float64 `json:"precio"`
	Importe          float64 `json:"importe"`
	Hijos            []*Node `json:"hijos"`

	Factor float64 `json:"-"`
}

// Walk visits n and every descendant in pre-order.
func Walk(n *Node, fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Hijos {
		Walk(c, fn)
	}
}

// Count returns the number of nodes in the tree rooted at n.
func Count(n *Node) int {
	total := 0
	Walk(n, func(*Node) { total++ })
	return total
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool { return len(n.Hijos) == 0 }
