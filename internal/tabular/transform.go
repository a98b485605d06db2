package tabular

// Mapping declares one output column of a flat artifact: the column
// name, the record field it reads, and the scalar kind the column
// carries.
type Mapping struct {
	Column string
	Field  string
	Kind   Kind
}

// Transform builds one row per record using the ordered mapping.
// Cell rules, applied per column:
//   - field present, non-null: the value passes through unchanged
//   - field present, null: false for KindBool, otherwise null
//   - field absent: the kind's zero fill (empty string, 0, false)
//
// The returned schema always lists every mapped column in mapping
// order, even when records is empty. Transform never mutates records.
func Transform(records []Record, mappings []Mapping) (*Schema, []Row) {
	cols := make([]string, len(mappings))
	for i, m := range mappings {
		cols[i] = m.Column
	}
	schema := NewSchema(cols...)

	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		row := make(Row, len(mappings))
		for i, m := range mappings {
			row[i] = mapCell(rec, m)
		}
		rows = append(rows, row)
	}
	return schema, rows
}

func mapCell(rec Record, m Mapping) Value {
	v, ok := rec.Field(m.Field)
	if !ok {
		return m.Kind.Zero()
	}
	if v == nil {
		if m.Kind == KindBool {
			return false
		}
		return nil
	}
	return v
}
