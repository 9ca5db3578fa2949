package metadata

// Record is a resolved metadata record. Every field is either a non-empty
// normalized string or absent. A Record is a value: copies are independent
// and nothing mutates it after Resolve or NewRecord returns.
type Record struct {
	values   [fieldCount]string
	origins  [fieldCount]string
	warnings []error
}

// NewRecord builds a record from raw values, normalizing each one. Values
// that normalize to nothing are left absent and reported as warnings.
func NewRecord(values map[Field]string) Record {
	var r Record
	for _, f := range AllFields() {
		raw, ok := values[f]
		if !ok {
			continue
		}
		v, err := Normalize(f, raw)
		if err != nil {
			r.warnings = append(r.warnings, warn(f, "input", err))
			continue
		}
		if v != "" {
			r.values[f] = v
			r.origins[f] = "input"
		}
	}
	return r
}

// Get returns the value of f and whether it is present.
func (r Record) Get(f Field) (string, bool) {
	if !f.valid() {
		return "", false
	}
	v := r.values[f]
	return v, v != ""
}

// Value returns the value of f, or "" when absent.
func (r Record) Value(f Field) string {
	v, _ := r.Get(f)
	return v
}

// Origin names the strategy that produced f, e.g. "header:Date".
func (r Record) Origin(f Field) string {
	if !f.valid() {
		return ""
	}
	return r.origins[f]
}

// Each calls fn for every present field in output order.
func (r Record) Each(fn func(f Field, value string)) {
	for i, v := range r.values {
		if v != "" {
			fn(Field(i), v)
		}
	}
}

// Len returns the number of present fields.
func (r Record) Len() int {
	n := 0
	for _, v := range r.values {
		if v != "" {
			n++
		}
	}
	return n
}

// Fields returns a copy of the present fields keyed by field name.
func (r Record) Fields() map[string]string {
	out := make(map[string]string, r.Len())
	r.Each(func(f Field, v string) {
		out[f.String()] = v
	})
	return out
}

// Warnings returns the parse warnings collected while resolving.
func (r Record) Warnings() []error {
	if len(r.warnings) == 0 {
		return nil
	}
	out := make([]error, len(r.warnings))
	copy(out, r.warnings)
	return out
}
