package tabular

import (
	"errors"
	"fmt"
	"sort"
)

// ErrMixedGenes is returned when a pivot input spans more than one
// gene. A matrix artifact accumulates exactly one gene row per call,
// so mixed input means the caller grouped records incorrectly.
var ErrMixedGenes = errors.New("pivot input spans multiple genes")

// Pivot builds matrix rows: one row per gene, one column per group,
// each cell the mean of the value field over that gene's records in
// the group. Records with a null or absent group are skipped; null
// values are ignored by the mean; a group whose values are all null
// yields a null cell.
type Pivot struct {
	KeyColumn  string // leading artifact column, e.g. "Gene"
	GeneField  string
	GroupField string
	ValueField string
}

// Build reduces records, all belonging to one gene, to a single row.
//
// The returned schema is the key column followed by this call's groups
// in sorted order. Sorting only decides how groups enter an artifact
// that has never seen them; once a group column exists its position is
// fixed, and the store appends later newcomers on the right. Groups
// the artifact knows but this call lacks are backfilled with null at
// append time.
//
// Empty input returns the bare key-column schema and a nil row: the
// caller ensures the artifact shell exists and appends nothing.
func (p Pivot) Build(records []Record) (*Schema, Row, error) {
	if len(records) == 0 {
		return NewSchema(p.KeyColumn), nil, nil
	}

	gene := ""
	sums := make(map[string]float64)
	counts := make(map[string]int)
	seen := make(map[string]bool)

	for i, rec := range records {
		g, ok := rec.Text(p.GeneField)
		if !ok || g == "" {
			return nil, nil, fmt.Errorf("record %d: missing gene field %q", i, p.GeneField)
		}
		if gene == "" {
			gene = g
		} else if g != gene {
			return nil, nil, fmt.Errorf("%w: %q and %q", ErrMixedGenes, gene, g)
		}

		group, ok := rec.Text(p.GroupField)
		if !ok || group == "" {
			continue
		}
		seen[group] = true

		v, ok := rec.Field(p.ValueField)
		if !ok || v == nil {
			continue
		}
		f, ok := Number(v)
		if !ok {
			return nil, nil, fmt.Errorf("record %d: field %q is not numeric", i, p.ValueField)
		}
		sums[group] += f
		counts[group]++
	}

	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	schema := NewSchema(append([]string{p.KeyColumn}, groups...)...)
	row := make(Row, 0, len(groups)+1)
	row = append(row, gene)
	for _, g := range groups {
		if counts[g] == 0 {
			row = append(row, nil)
			continue
		}
		row = append(row, sums[g]/float64(counts[g]))
	}
	return schema, row, nil
}
