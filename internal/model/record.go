package model

// Field is one named value, kept in column order.
type Field struct {
	Name  string `json:"name" bson:"name"`
	Value any    `json:"value" bson:"value"`
}

type Fields []Field

// Get returns the value of the first field called name.
func (fs Fields) Get(name string) (any, bool) {
	for _, f := range fs {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Names lists field names in order.
func (fs Fields) Names() []string {
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Name
	}
	return names
}

// Record is one decoded spreadsheet row keyed by internal field name.
// Row is the 1-based row number in the source sheet; the header is row 1.
type Record struct {
	Row    int
	fields Fields
	index  map[string]int
}

func NewRecord(row int) *Record {
	return &Record{Row: row, index: make(map[string]int)}
}

// Set adds a field or overwrites an existing one in place.
func (r *Record) Set(name string, value any) {
	if r.index == nil {
		r.index = make(map[string]int)
	}
	if i, ok := r.index[name]; ok {
		r.fields[i].Value = value
		return
	}
	r.index[name] = len(r.fields)
	r.fields = append(r.fields, Field{Name: name, Value: value})
}

func (r *Record) Get(name string) (any, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.fields[i].Value, true
}

func (r *Record) Len() int { return len(r.fields) }

// Fields returns a copy of the record's fields in column order.
func (r *Record) Fields() Fields {
	out := make(Fields, len(r.fields))
	copy(out, r.fields)
	return out
}
