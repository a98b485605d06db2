package artifact

import (
	"fmt"

	"github.com/basket/biofetch/internal/tabular"
)

// Store is the accumulation surface every handler writes through. A
// store owns read-reconcile-write for named artifacts and assumes it
// is the only writer for a given name; concurrent processes on the
// same path are unsupported.
//
// Ensure creates an absent artifact as a shell (header, zero rows) and
// returns the current column schema either way. Append merges: the
// final schema is the existing columns in their existing order
// followed by new columns in the order rowSchema gives them, existing
// rows are backfilled with null for columns they predate, and the new
// rows land after them aligned to the final schema. Appending zero
// rows still migrates the schema when rowSchema introduces columns.
type Store interface {
	Ensure(name string, initial *tabular.Schema) (*tabular.Schema, error)
	Append(name string, rowSchema *tabular.Schema, rows []tabular.Row) error
}

// reconcile merges rowSchema into the existing schema and builds the
// complete encoded grid ready to write: existing rows first, padded
// with the null encoding for any column they predate, then the new
// rows aligned to the final column order.
func reconcile(existing *tabular.Schema, existingRows [][]string, rowSchema *tabular.Schema, rows []tabular.Row) (*tabular.Schema, [][]string, error) {
	final := existing.Clone()
	final.Union(rowSchema)
	cols := final.Columns()

	grid := make([][]string, 0, len(existingRows)+len(rows))
	for _, r := range existingRows {
		out := make([]string, len(cols))
		copy(out, r)
		grid = append(grid, out)
	}
	for i, row := range rows {
		if len(row) != rowSchema.Len() {
			return nil, nil, fmt.Errorf("row %d has %d cells, want %d", i, len(row), rowSchema.Len())
		}
		out := make([]string, len(cols))
		for j, col := range cols {
			if k := rowSchema.Index(col); k >= 0 {
				out[j] = tabular.Encode(row[k])
			}
		}
		grid = append(grid, out)
	}
	return final, grid, nil
}

// padRows brings every raw row up to the header width. Both surfaces
// can hand back short rows (trailing empty cells), and downstream code
// wants cell-aligned input.
func padRows(rows [][]string, width int) [][]string {
	for i, r := range rows {
		if len(r) < width {
			padded := make([]string, width)
			copy(padded, r)
			rows[i] = padded
		} else if len(r) > width {
			rows[i] = r[:width]
		}
	}
	return rows
}
