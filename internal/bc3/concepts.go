package bc3

import (
	"fmt"
	"strconv"
	"strings"
)

// Concept is the per-code metadata accumulated from ~C and ~T records.
// Entities of this kind live only for the duration of one parse; once the
// budget tree is assembled they are discarded.
type Concept struct {
	Code        string
	Unit        string
	Summary     string
	Description string
	Price       float64
	Date        string
}

// ConceptTable maps concept codes to their metadata with last-write-wins
// semantics per field group: ~C records own unit/summary/price/date, ~T
// records own the long description.
type ConceptTable struct {
	entries  map[string]*Concept
	warnings []string
}

func NewConceptTable() *ConceptTable {
	return &ConceptTable{entries: make(map[string]*Concept)}
}

// ApplyConcept upserts metadata from a ~C record:
// ~C|CODE|UNIT|SUMMARY|PRICE|DATE|TYPE|
// A unit conflict between two records for the same code is logged and the
// later record wins; values are never averaged.
func (t *ConceptTable) ApplyConcept(rec *Record) {
	code := strings.TrimSpace(rec.Field(0))
	if code == "" {
		return
	}

	c := t.entries[code]
	if c == nil {
		c = &Concept{Code: code}
		t.entries[code] = c
	}

	unit := strings.TrimSpace(rec.Field(1))
	if c.Unit != "" && unit != "" && c.Unit != unit {
		t.warnings = append(t.warnings,
			fmt.Sprintf("concept %q redefined with unit %q (was %q); keeping the later record", code, unit, c.Unit))
	}

	c.Unit = unit
	c.Summary = rec.Field(2)
	c.Price = parseConceptPrice(rec)
	c.Date = strings.TrimSpace(rec.Field(4))
}

// ApplyText sets the long description from a ~T record: ~T|CODE|TEXT|
// Unescaped separators inside the text are put back, matching how emitters
// in the wild write free text.
func (t *ConceptTable) ApplyText(rec *Record) {
	code := strings.TrimSpace(rec.Field(0))
	if code == "" || len(rec.Fields) < 2 {
		return
	}
	c := t.entries[code]
	if c == nil {
		c = &Concept{Code: code}
		t.entries[code] = c
	}
	c.Description = strings.TrimSpace(strings.Join(rec.Fields[1:], "|"))
}

// Get returns the concept for code, or nil.
func (t *ConceptTable) Get(code string) *Concept {
	return t.entries[code]
}

// Len returns the number of known concepts.
func (t *ConceptTable) Len() int { return len(t.entries) }

// Warnings returns accumulated non-fatal conflicts.
func (t *ConceptTable) Warnings() []string { return t.warnings }

// parseConceptPrice reads the unit price. The published layout puts it in
// field 3, but files exist that carry it two fields later (the original
// consumer read it there); accept both. A '\'-separated multi-price list
// contributes its first entry. A price that does not parse counts as 0: a
// concept may be purely decomposed and carry no own price.
func parseConceptPrice(rec *Record) float64 {
	if v, ok := parsePriceField(rec.Field(3)); ok {
		return v
	}
	if v, ok := parsePriceField(rec.Field(5)); ok {
		return v
	}
	return 0
}

func parsePriceField(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\\'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
