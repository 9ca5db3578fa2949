package metadata

// Field identifies one entry of a resolved record.
type Field int

// Record fields, in output order.
const (
	Title Field = iota
	Author
	Subject
	Keywords
	CreationDate
	ModDate
	Creator
	Producer
	SourceURL
	SourceFile
	Description
	Language
	Publisher
	Identifier

	fieldCount
)

var fieldSpecs = [fieldCount]struct {
	name    string
	infoKey string
}{
	Title:        {"title", "Title"},
	Author:       {"author", "Author"},
	Subject:      {"subject", "Subject"},
	Keywords:     {"keywords", "Keywords"},
	CreationDate: {"creation_date", "CreationDate"},
	ModDate:      {"mod_date", "ModDate"},
	Creator:      {"creator", "Creator"},
	Producer:     {"producer", "Producer"},
	SourceURL:    {"source_url", "SourceURL"},
	SourceFile:   {"source_file", "SourceFile"},
	Description:  {"description", "Description"},
	Language:     {"language", "Language"},
	Publisher:    {"publisher", "Publisher"},
	Identifier:   {"identifier", "Identifier"},
}

// AllFields returns every field in output order.
func AllFields() []Field {
	out := make([]Field, fieldCount)
	for i := range out {
		out[i] = Field(i)
	}
	return out
}

// String returns the snake_case field name.
func (f Field) String() string {
	if !f.valid() {
		return "unknown"
	}
	return fieldSpecs[f].name
}

// InfoKey returns the PDF Info dictionary key for f. The sidecar uses
// the same keys so both sinks share one mapping.
func (f Field) InfoKey() string {
	if !f.valid() {
		return ""
	}
	return fieldSpecs[f].infoKey
}

// IsDate reports whether f holds a timestamp.
func (f Field) IsDate() bool {
	return f == CreationDate || f == ModDate
}

func (f Field) valid() bool {
	return f >= 0 && f < fieldCount
}

// FieldByInfoKey maps an Info dictionary key back to its field.
func FieldByInfoKey(key string) (Field, bool) {
	for i, spec := range fieldSpecs {
		if spec.infoKey == key {
			return Field(i), true
		}
	}
	return 0, false
}

// FieldByName maps a snake_case field name to its field.
func FieldByName(name string) (Field, bool) {
	for i, spec := range fieldSpecs {
		if spec.name == name {
			return Field(i), true
		}
	}
	return 0, false
}
