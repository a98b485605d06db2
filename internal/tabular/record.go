package tabular

// Record is one unit fetched from the service: a flat bag of named
// fields. The fetch layer flattens nested payloads before records get
// here, so field lookup never has to walk a structure.
type Record struct {
	fields map[string]Value
}

// NewRecord copies fields into a Record.
func NewRecord(fields map[string]Value) Record {
	m := make(map[string]Value, len(fields))
	for k, v := range fields {
		m[k] = v
	}
	return Record{fields: m}
}

// Field returns the named field and whether it was present at all.
// A present field may still hold nil.
func (r Record) Field(name string) (Value, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// Text returns the named field as a string when it is a present,
// non-null string.
func (r Record) Text(name string) (string, bool) {
	v, ok := r.fields[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (r Record) Len() int { return len(r.fields) }
