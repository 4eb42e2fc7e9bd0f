package bc3

import (
	"strconv"
	"strings"
)

// Edge is one parent→child decomposition with its quantity factor and unit
// yield. Empty factors mean 1 in the source format; an explicit 0 is kept
// (an alternate or optional component) and only drops out at price
// resolution.
type Edge struct {
	Child  string
	Factor float64
	Yield  float64
}

// Coefficient is the multiplier applied to the child when rolling up
// quantity and price.
func (e Edge) Coefficient() float64 { return e.Factor * e.Yield }

// DecompositionGraph is the parent→children adjacency accumulated from ~D
// records. Forward references are fine here: a parent may name children
// defined anywhere else in the file, or nowhere at all; that only
// surfaces at assembly.
type DecompositionGraph struct {
	edges map[string][]Edge
	order []string
}

func NewDecompositionGraph() *DecompositionGraph {
	return &DecompositionGraph{edges: make(map[string][]Edge)}
}

// Apply consumes a ~D record: ~D|PARENT|CHILD\FACTOR\YIELD\CHILD\...|
// The child block may span several physical lines. A later record for the
// same parent replaces the earlier edge list.
func (g *DecompositionGraph) Apply(rec *Record) {
	parent := strings.TrimSpace(rec.Field(0))
	if parent == "" || len(rec.Fields) < 2 {
		return
	}
	// Separators inside the block were field-split by the tokenizer; put
	// them back so the block is parsed as one unit.
	block := strings.Join(rec.Fields[1:], "|")

	var children []Edge
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		line = strings.Trim(line, "\\|")
		if line == "" {
			continue
		}
		segs := strings.Split(line, "\\")
		for i := 0; i < len(segs); {
			child := strings.TrimSpace(segs[i])
			if child == "" {
				i++
				continue
			}
			factor := parseFactor(seg(segs, i+1))
			yield := parseFactor(seg(segs, i+2))
			children = append(children, Edge{Child: child, Factor: factor, Yield: yield})
			i += 3
		}
	}
	if len(children) == 0 {
		return
	}

	if _, seen := g.edges[parent]; !seen {
		g.order = append(g.order, parent)
	}
	g.edges[parent] = children
}

// Children returns the ordered edges of parent.
func (g *DecompositionGraph) Children(parent string) []Edge {
	return g.edges[parent]
}

// Parents returns parent codes in first-appearance order.
func (g *DecompositionGraph) Parents() []string { return g.order }

// Roots returns the parent codes that never appear as a child, in
// first-appearance order.
func (g *DecompositionGraph) Roots() []string {
	isChild := make(map[string]bool)
	for _, edges := range g.edges {
		for _, e := range edges {
			isChild[e.Child] = true
		}
	}
	var roots []string
	for _, p := range g.order {
		if !isChild[p] {
			roots = append(roots, p)
		}
	}
	return roots
}

func seg(segs []string, i int) string {
	if i >= len(segs) {
		return ""
	}
	return segs[i]
}

// parseFactor maps the empty field to the format's implicit 1 and keeps an
// explicit 0. An unparseable factor contributes nothing.
func parseFactor(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
