package bc3

import (
	"errors"
	"fmt"

	"github.com/obrasoft/bc3gest/internal/budget"
)

// The decomposition graph is a DAG over codes: shared sub-items may be
// referenced from several parents. Assembly unfolds it into a strict tree,
// instantiating one node per (parent, child) traversal occurrence instead
// of deduplicating. Nodes live in an index-based arena; no node is
// referenced from more than one parent after unfolding, so integer ids are
// all the ownership needed.

type arenaNode struct {
	code     string
	kind     budget.Kind
	depth    int
	factor   float64
	children []int

	quantity float64
	price    float64
	amount   float64
}

type arena struct {
	nodes []arenaNode
}

func (a *arena) add(n arenaNode) int {
	a.nodes = append(a.nodes, n)
	return len(a.nodes) - 1
}

// ErrNoRoot means the decomposition graph yields no starting concept: the
// file has no ~D records at all, or every parent is also somebody's child.
var ErrNoRoot = errors.New("no root concept in decomposition graph")

// assemble walks the decomposition graph depth-first from its root(s) and
// returns the arena plus the root node id. More than one qualifying root
// yields a synthetic top node of kind root; a graph where every parent is
// also somebody's child has no root and necessarily contains a cycle,
// which is reported as such.
func assemble(g *DecompositionGraph, concepts *ConceptTable, warn func(string)) (*arena, int, error) {
	parents := g.Parents()
	if len(parents) == 0 {
		return nil, 0, fmt.Errorf("no decomposition records: %w", ErrNoRoot)
	}

	roots := g.Roots()
	if len(roots) == 0 {
		// Every node of a cycle has children and is therefore a parent, so
		// probing each parent must close the cycle eventually, even when it
		// lives in a component the first parent never reaches.
		for _, p := range parents {
			w := &walker{g: g, concepts: concepts, arena: &arena{}, onPath: map[string]int{}}
			if _, err := w.build(p, 1, 1); err != nil {
				return nil, 0, err
			}
		}
		return nil, 0, fmt.Errorf("every decomposition parent is also a child: %w", ErrNoRoot)
	}

	w := &walker{g: g, concepts: concepts, arena: &arena{}, onPath: map[string]int{}, warn: warn}

	if len(roots) == 1 {
		rootID, err := w.build(roots[0], 0, 1)
		if err != nil {
			return nil, 0, err
		}
		return w.arena, rootID, nil
	}

	// Several top-level codes: wrap them in a synthetic root so the caller
	// always receives a single tree.
	top := w.arena.add(arenaNode{kind: budget.KindRoot, factor: 1})
	for _, r := range roots {
		id, err := w.build(r, 1, 1)
		if err != nil {
			return nil, 0, err
		}
		w.arena.nodes[top].children = append(w.arena.nodes[top].children, id)
	}
	return w.arena, top, nil
}

type walker struct {
	g        *DecompositionGraph
	concepts *ConceptTable
	arena    *arena
	onPath   map[string]int
	path     []string
	warn     func(string)
}

// build instantiates the subtree rooted at code. The active ancestor path
// is tracked so a code reappearing on its own path fails the parse instead
// of recursing without bound.
func (w *walker) build(code string, depth int, factor float64) (int, error) {
	if start, on := w.onPath[code]; on {
		cycle := append(append([]string{}, w.path[start:]...), code)
		return 0, &CyclicDecompositionError{Cycle: cycle}
	}
	w.onPath[code] = len(w.path)
	w.path = append(w.path, code)
	defer func() {
		w.path = w.path[:len(w.path)-1]
		delete(w.onPath, code)
	}()

	edges := w.g.Children(code)

	if len(edges) == 0 && w.concepts.Get(code) == nil && w.warn != nil {
		w.warn(fmt.Sprintf("concept %q is referenced in a decomposition but never defined", code))
	}

	id := w.arena.add(arenaNode{
		code:   code,
		kind:   kindFor(depth, len(edges) > 0),
		depth:  depth,
		factor: factor,
	})
	for _, e := range edges {
		childID, err := w.build(e.Child, depth+1, e.Coefficient())
		if err != nil {
			return 0, err
		}
		w.arena.nodes[id].children = append(w.arena.nodes[id].children, childID)
	}
	return id, nil
}

// kindFor classifies by decomposition depth: 0 root, 1 chapter, 2
// subchapter, 3+ item. A leaf is an item regardless of depth.
func kindFor(depth int, hasChildren bool) budget.Kind {
	switch {
	case depth == 0:
		return budget.KindRoot
	case !hasChildren:
		return budget.KindItem
	case depth == 1:
		return budget.KindChapter
	case depth == 2:
		return budget.KindSubchapter
	default:
		return budget.KindItem
	}
}
