// Package tabular holds the row and column model shared by every
// dataset handler: nullable cell values, append-only column schemas,
// and the two row builders (flat transform, matrix pivot) that turn
// fetched records into artifact rows.
package tabular

import (
	"fmt"
	"strconv"
)

// Kind declares the scalar type a mapped column carries. It selects
// the fill-in used when a source field is absent from a record.
type Kind int

const (
	KindString Kind = iota
	KindFloat
	KindInt
	KindBool
)

// Value is one cell: string, float64, int64, int, bool, or nil for null.
type Value = any

// Zero returns the fill-in for an absent source field.
func (k Kind) Zero() Value {
	switch k {
	case KindFloat:
		return float64(0)
	case KindInt:
		return int64(0)
	case KindBool:
		return false
	default:
		return ""
	}
}

// Row is one artifact row, cell-aligned to some Schema.
type Row []Value

// Encode renders a cell for the CSV surface. Null is the empty string;
// everything else round-trips through its canonical text form.
func Encode(v Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Decode reads a cell back from its CSV text. The empty string decodes
// to null; anything else stays text. Existing artifact cells are
// carried through a rewrite in this encoded form, so a cell written as
// 15.5 re-encodes byte for byte.
func Decode(s string) Value {
	if s == "" {
		return nil
	}
	return s
}

// Number reports v as a float64 when it holds a numeric scalar.
func Number(v Value) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	}
	return 0, false
}
