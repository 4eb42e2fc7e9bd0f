package bc3

import (
	"strconv"
	"strings"
)

// MeasurementTable sums measured quantities per concept code from ~M
// records.
type MeasurementTable struct {
	totals map[string]float64
}

func NewMeasurementTable() *MeasurementTable {
	return &MeasurementTable{totals: make(map[string]float64)}
}

// Apply consumes a ~M record:
// ~M|PARENT\CHILD|POSITION|TOTAL|TYPE\COMMENT\UNITS\LENGTH\WIDTH\HEIGHT\...|
// The quantity is the sum of the dimension lines (product of the non-empty
// dimensions per line) when lines are present, otherwise the declared
// total. A non-numeric total or dimension rejects the whole file: a
// quantity silently coerced to zero would propagate into priced totals.
func (t *MeasurementTable) Apply(rec *Record) error {
	code := activeCode(rec.Field(0))
	if code == "" {
		return nil
	}

	qty, ok, err := sumDimensionLines(code, rec.Field(3), rec.Line)
	if err != nil {
		return err
	}
	if !ok {
		raw := strings.TrimSpace(rec.Field(2))
		if raw == "" {
			return nil
		}
		qty, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return &InvalidQuantityError{Code: code, Value: raw, Line: rec.Line}
		}
	}

	t.totals[code] += qty
	return nil
}

// Quantity returns the summed quantity for code and whether any
// measurement named it.
func (t *MeasurementTable) Quantity(code string) (float64, bool) {
	q, ok := t.totals[code]
	return q, ok
}

// activeCode picks the measured concept out of the PARENT\CHILD path: the
// last non-empty segment.
func activeCode(path string) string {
	segs := strings.Split(strings.TrimSpace(path), "\\")
	for i := len(segs) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(segs[i]); s != "" {
			return s
		}
	}
	return ""
}

// sumDimensionLines evaluates the measurement-line block. Lines come in
// groups of six subfields (type, comment, units, length, width, height);
// empty dimensions count as 1, a line with no dimensions at all is
// skipped. Returns ok=false when the block holds no usable line.
func sumDimensionLines(code, block string, line int) (float64, bool, error) {
	// Only the tail is trimmed: a leading '\' is an empty first subfield
	// and shifts the group alignment.
	block = strings.TrimRight(strings.TrimSpace(block), "\\|")
	if block == "" {
		return 0, false, nil
	}
	segs := strings.Split(block, "\\")

	var total float64
	any := false
	for i := 0; i < len(segs); i += 6 {
		product := 1.0
		found := false
		for d := 2; d < 6; d++ {
			v := ""
			if i+d < len(segs) {
				v = strings.TrimSpace(segs[i+d])
			}
			if v == "" {
				continue
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return 0, false, &InvalidQuantityError{Code: code, Value: v, Line: line}
			}
			product *= f
			found = true
		}
		if found {
			total += product
			any = true
		}
	}
	return total, any, nil
}
