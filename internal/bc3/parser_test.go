package bc3

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/obrasoft/bc3gest/internal/budget"
)

// sampleBudget is a minimal but complete file: a root decomposed into two
// chapters, each holding one measured item.
const sampleBudget = `~V|EJEMPLO|FIEBDC-3/2016|bc3gest||ANSI|
~C|OBRA##||Presupuesto de ejemplo|||
~C|CAP1#||Movimiento de tierras|||
~C|CAP2#||Cimentacion|||
~C|IT1|m3|Excavacion en zanja|100||
~C|IT2|m2|Hormigon de limpieza|50||
~T|IT1|Excavacion en zanja con medios mecanicos.|
~D|OBRA##|CAP1#\1\1\CAP2#\1\1|
~D|CAP1#|IT1\1\1|
~D|CAP2#|IT2\1\1|
~M|CAP1#\IT1|1|2|
~M|CAP2#\IT2|1|2|
`

func mustParse(t *testing.T, src string) *Result {
	t.Helper()
	res, err := Parse(context.Background(), []byte(src), Options{})
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return res
}

func TestParseResolvedTree(t *testing.T) {
	res := mustParse(t, sampleBudget)
	root := res.Tree

	if root.Codigo != "OBRA##" || root.Naturaleza != budget.KindRoot {
		t.Fatalf("unexpected root: codigo=%q naturaleza=%d", root.Codigo, root.Naturaleza)
	}
	if root.CodigoDecimal != "0" {
		t.Errorf("expected root decimal code 0, got %q", root.CodigoDecimal)
	}
	if root.Resumen != "Presupuesto de ejemplo" {
		t.Errorf("unexpected root summary %q", root.Resumen)
	}
	// Root price rolls up from the chapters.
	if root.Precio != 150 || root.Cantidad != 1 || root.Importe != 150 {
		t.Errorf("unexpected root totals: cantidad=%v precio=%v importe=%v",
			root.Cantidad, root.Precio, root.Importe)
	}

	if len(root.Hijos) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(root.Hijos))
	}
	cap1, cap2 := root.Hijos[0], root.Hijos[1]
	if cap1.Codigo != "CAP1#" || cap1.CodigoDecimal != "01" || cap1.Naturaleza != budget.KindChapter {
		t.Errorf("unexpected first chapter: %+v", cap1)
	}
	if cap2.Codigo != "CAP2#" || cap2.CodigoDecimal != "02" {
		t.Errorf("unexpected second chapter: %+v", cap2)
	}
	if cap1.Precio != 100 || cap1.Cantidad != 1 || cap1.Importe != 100 {
		t.Errorf("unexpected chapter totals: cantidad=%v precio=%v importe=%v",
			cap1.Cantidad, cap1.Precio, cap1.Importe)
	}

	if len(cap1.Hijos) != 1 {
		t.Fatalf("expected 1 item under CAP1#, got %d", len(cap1.Hijos))
	}
	it1 := cap1.Hijos[0]
	if it1.Codigo != "IT1" || it1.CodigoDecimal != "01.01" || it1.Naturaleza != budget.KindItem {
		t.Errorf("unexpected item: %+v", it1)
	}
	if it1.Cantidad != 2 || it1.Precio != 100 || it1.Importe != 200 {
		t.Errorf("unexpected item totals: cantidad=%v precio=%v importe=%v",
			it1.Cantidad, it1.Precio, it1.Importe)
	}
	if it1.Unidad != "m3" || !strings.Contains(it1.DescripcionLarga, "medios mecanicos") {
		t.Errorf("expected concept metadata attached, got unidad=%q descripcion=%q",
			it1.Unidad, it1.DescripcionLarga)
	}

	if len(res.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", res.Warnings)
	}
}

func TestParseAmountInvariant(t *testing.T) {
	res := mustParse(t, sampleBudget)
	budget.Walk(res.Tree, func(n *budget.Node) {
		if n.Importe != n.Cantidad*n.Precio {
			t.Errorf("node %q: importe %v != cantidad %v * precio %v",
				n.Codigo, n.Importe, n.Cantidad, n.Precio)
		}
	})
}

func TestParseUnmeasuredItemPruned(t *testing.T) {
	src := `~C|OBRA##||Obra vacia|||
~C|IT1|ud|Partida sin medir|75||
~D|OBRA##|IT1\1\1|
`
	res := mustParse(t, src)
	root := res.Tree

	if len(root.Hijos) != 0 {
		t.Fatalf("expected the unmeasured item pruned, got %d children", len(root.Hijos))
	}
	// The root itself survives, zeroed.
	if root.Codigo != "OBRA##" || root.Cantidad != 0 || root.Precio != 0 || root.Importe != 0 {
		t.Errorf("expected zeroed root, got %+v", root)
	}
	if root.CodigoDecimal != "0" {
		t.Errorf("expected root still renumbered, got %q", root.CodigoDecimal)
	}
}

func TestParseUndefinedChildIsWarning(t *testing.T) {
	src := `~C|OBRA##||Obra|||
~D|OBRA##|FANTASMA\1\1|
~M|OBRA##\FANTASMA|1|3|
`
	res := mustParse(t, src)
	root := res.Tree

	if len(root.Hijos) != 1 {
		t.Fatalf("expected the undefined child kept, got %d children", len(root.Hijos))
	}
	ghost := root.Hijos[0]
	if ghost.Codigo != "FANTASMA" || ghost.Naturaleza != budget.KindItem {
		t.Errorf("unexpected degenerate item: %+v", ghost)
	}
	if ghost.Cantidad != 3 || ghost.Precio != 0 || ghost.Resumen != "" {
		t.Errorf("expected measured but unpriced item, got %+v", ghost)
	}

	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "FANTASMA") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a warning naming FANTASMA, got %v", res.Warnings)
	}
}

func TestParseEmptiedChapterRetained(t *testing.T) {
	src := `~C|OBRA##||Obra|||
~C|CAP1#||Capitulo sin medicion|||
~C|CAP2#||Capitulo medido|||
~C|IT1|ud|Partida sin medir|75||
~C|IT2|ud|Partida medida|10||
~D|OBRA##|CAP1#\1\1\CAP2#\1\1|
~D|CAP1#|IT1\1\1|
~D|CAP2#|IT2\1\1|
~M|CAP2#\IT2|1|2|
`
	res := mustParse(t, src)
	root := res.Tree

	if len(root.Hijos) != 2 {
		t.Fatalf("expected both chapters under the root, got %d", len(root.Hijos))
	}
	cap1 := root.Hijos[0]
	if cap1.Codigo != "CAP1#" || cap1.Naturaleza != budget.KindChapter {
		t.Fatalf("unexpected first chapter: %+v", cap1)
	}
	// The chapter lost its only item but stays, zeroed.
	if len(cap1.Hijos) != 0 || cap1.Cantidad != 0 || cap1.Precio != 0 || cap1.Importe != 0 {
		t.Errorf("expected retained zeroed chapter, got %+v", cap1)
	}
	if cap1.CodigoDecimal != "01" || root.Hijos[1].CodigoDecimal != "02" {
		t.Errorf("expected both chapters renumbered, got %q and %q",
			cap1.CodigoDecimal, root.Hijos[1].CodigoDecimal)
	}
	if root.Precio != 10 || root.Importe != 10 {
		t.Errorf("expected root rolled up over survivors only, got precio=%v importe=%v",
			root.Precio, root.Importe)
	}
}

func TestParseHierarchyConservation(t *testing.T) {
	// IT3 carries no measurement, so its edge disappears with it; every
	// surviving node's children must match the surviving decomposition
	// edges of its code, in declared order.
	src := `~C|OBRA##||Obra|||
~C|CAP1#||c1|||
~C|CAP2#||c2|||
~C|IT1|ud|a|10||
~C|IT2|ud|b|20||
~C|IT3|ud|c|30||
~D|OBRA##|CAP1#\1\1\CAP2#\1\1|
~D|CAP1#|IT1\1\1\IT3\1\1|
~D|CAP2#|IT2\1\1|
~M|CAP1#\IT1|1|2|
~M|CAP2#\IT2|1|1|
`
	res := mustParse(t, src)

	children := make(map[string][]string)
	budget.Walk(res.Tree, func(n *budget.Node) {
		if len(n.Hijos) == 0 {
			return
		}
		var codes []string
		for _, c := range n.Hijos {
			codes = append(codes, c.Codigo)
		}
		children[n.Codigo] = codes
	})

	want := map[string][]string{
		"OBRA##": {"CAP1#", "CAP2#"},
		"CAP1#":  {"IT1"},
		"CAP2#":  {"IT2"},
	}
	if !reflect.DeepEqual(children, want) {
		t.Errorf("tree edges diverge from surviving decomposition edges:\ngot  %v\nwant %v", children, want)
	}

	if got := budget.Count(res.Tree); got != 5 {
		t.Errorf("expected 5 surviving nodes, got %d", got)
	}
}

func TestParseMalformedRecordReportsLine(t *testing.T) {
	src := `~C|OBRA##||Obra|||
~D|OBRA##|IT1\1\1|
~M sin separador
`
	_, err := Parse(context.Background(), []byte(src), Options{})

	var mr *MalformedRecordError
	if !errors.As(err, &mr) {
		t.Fatalf("expected MalformedRecordError, got %v", err)
	}
	if mr.Line != 3 {
		t.Errorf("expected error on line 3, got %d", mr.Line)
	}
}

func TestParseCycleIsFatal(t *testing.T) {
	src := `~C|A||a|||
~D|A|B\1\1|
~D|B|A\1\1|
`
	_, err := Parse(context.Background(), []byte(src), Options{})

	var cyc *CyclicDecompositionError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected CyclicDecompositionError, got %v", err)
	}
	if want := []string{"A", "B", "A"}; !reflect.DeepEqual(cyc.Cycle, want) {
		t.Errorf("expected cycle %v, got %v", want, cyc.Cycle)
	}
}

func TestParseSelfCycleIsFatal(t *testing.T) {
	src := `~D|OBRA##|A\1\1|
~D|A|A\1\1|
`
	_, err := Parse(context.Background(), []byte(src), Options{})

	var cyc *CyclicDecompositionError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected CyclicDecompositionError, got %v", err)
	}
}

func TestParseCycleInDisjointComponent(t *testing.T) {
	// The first parent's subtree is acyclic; the cycle lives in a
	// component only reachable from a later parent. A rootless graph must
	// still report the cycle, not just the missing root.
	src := `~C|A||a|||
~D|A|X\1\1|
~D|C|A\1\1\D\1\1|
~D|D|C\1\1|
~M|A\X|1|1|
`
	_, err := Parse(context.Background(), []byte(src), Options{})

	var cyc *CyclicDecompositionError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected CyclicDecompositionError, got %v", err)
	}
	if want := []string{"C", "D", "C"}; !reflect.DeepEqual(cyc.Cycle, want) {
		t.Errorf("expected cycle %v, got %v", want, cyc.Cycle)
	}
}

func TestParseNoDecompositionIsFatal(t *testing.T) {
	src := "~C|P1|ud|Solo un concepto|5||\n"
	_, err := Parse(context.Background(), []byte(src), Options{})
	if !errors.Is(err, ErrNoRoot) {
		t.Fatalf("expected ErrNoRoot, got %v", err)
	}
}

func TestParseMultipleRootsGetSyntheticTop(t *testing.T) {
	src := `~C|R1||Uno|||
~C|R2||Dos|||
~C|P1|ud|pa|10||
~C|P2|ud|pb|20||
~D|R1|P1\1\1|
~D|R2|P2\1\1|
~M|R1\P1|1|1|
~M|R2\P2|1|1|
`
	res := mustParse(t, src)
	root := res.Tree

	if root.Codigo != "" || root.Naturaleza != budget.KindRoot {
		t.Fatalf("expected synthetic root, got codigo=%q naturaleza=%d", root.Codigo, root.Naturaleza)
	}
	if len(root.Hijos) != 2 {
		t.Fatalf("expected both top codes under the synthetic root, got %d", len(root.Hijos))
	}
	if root.Hijos[0].Codigo != "R1" || root.Hijos[1].Codigo != "R2" {
		t.Errorf("unexpected top codes: %q, %q", root.Hijos[0].Codigo, root.Hijos[1].Codigo)
	}
	if root.Hijos[0].Naturaleza != budget.KindChapter {
		t.Errorf("expected top codes classified as chapters, got %d", root.Hijos[0].Naturaleza)
	}
	if root.Precio != 30 || root.Importe != 30 {
		t.Errorf("expected rollup over both trees, got precio=%v importe=%v", root.Precio, root.Importe)
	}
	if root.CodigoDecimal != "0" || root.Hijos[0].CodigoDecimal != "01" {
		t.Errorf("unexpected renumbering: %q, %q", root.CodigoDecimal, root.Hijos[0].CodigoDecimal)
	}
}

func TestParseSharedConceptInstantiatedPerParent(t *testing.T) {
	src := `~C|OBRA##||Obra|||
~C|CAP1#||c1|||
~C|CAP2#||c2|||
~C|COMUN|ud|compartida|10||
~D|OBRA##|CAP1#\1\1\CAP2#\1\1|
~D|CAP1#|COMUN\1\1|
~D|CAP2#|COMUN\1\1|
~M|CAP1#\COMUN|1|2|
`
	res := mustParse(t, src)
	root := res.Tree

	if got := budget.Count(root); got != 5 {
		t.Fatalf("expected 5 nodes after unfolding, got %d", got)
	}
	instances := 0
	budget.Walk(root, func(n *budget.Node) {
		if n.Codigo == "COMUN" {
			instances++
			if n.Cantidad != 2 || n.Precio != 10 {
				t.Errorf("unexpected shared item instance: %+v", n)
			}
		}
	})
	if instances != 2 {
		t.Errorf("expected the shared item under both chapters, got %d", instances)
	}
	if root.Precio != 20 {
		t.Errorf("expected root price 20, got %v", root.Precio)
	}
}

func TestParseHonorsDeclaredCharset(t *testing.T) {
	src := "~V|x|FIEBDC-3/2016|||ANSI|\n" +
		"~C|OBRA##||Obra|||\n" +
		"~C|IT1|ud|Precio en \x80|10||\n" +
		"~D|OBRA##|IT1\\1\\1|\n" +
		"~M|OBRA##\\IT1|1|1|\n"

	res := mustParse(t, src)
	if got := res.Tree.Hijos[0].Resumen; !strings.Contains(got, "€") {
		t.Errorf("expected cp1252-decoded summary, got %q", got)
	}
}

func TestParseCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Parse(ctx, []byte(sampleBudget), Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
