package tabular

// Schema is an ordered set of column names. Order is append-only:
// a column keeps the position it first appeared at for the life of the
// artifact, and later columns always enter on the right. That rule is
// what lets an artifact grow columns across runs without disturbing
// rows already on disk.
type Schema struct {
	cols  []string
	index map[string]int
}

// NewSchema builds a schema from cols in order, dropping duplicates.
func NewSchema(cols ...string) *Schema {
	s := &Schema{index: make(map[string]int, len(cols))}
	s.Append(cols...)
	return s
}

func (s *Schema) Len() int { return len(s.cols) }

// Columns returns the column names in order. The slice is a copy.
func (s *Schema) Columns() []string {
	out := make([]string, len(s.cols))
	copy(out, s.cols)
	return out
}

func (s *Schema) Has(col string) bool {
	_, ok := s.index[col]
	return ok
}

// Index returns the position of col, or -1 when absent.
func (s *Schema) Index(col string) int {
	i, ok := s.index[col]
	if !ok {
		return -1
	}
	return i
}

// Append adds the given columns on the right, skipping ones already
// present, and returns the names actually added.
func (s *Schema) Append(cols ...string) []string {
	var added []string
	for _, c := range cols {
		if _, ok := s.index[c]; ok {
			continue
		}
		s.index[c] = len(s.cols)
		s.cols = append(s.cols, c)
		added = append(added, c)
	}
	return added
}

// Union appends every column of other not already present, preserving
// other's relative order, and returns the names added.
func (s *Schema) Union(other *Schema) []string {
	if other == nil {
		return nil
	}
	return s.Append(other.cols...)
}

func (s *Schema) Clone() *Schema {
	return NewSchema(s.cols...)
}

// Equal reports whether both schemas hold the same columns in the same
// order.
func (s *Schema) Equal(other *Schema) bool {
	if other == nil || len(s.cols) != len(other.cols) {
		return false
	}
	for i, c := range s.cols {
		if other.cols[i] != c {
			return false
		}
	}
	return true
}
