// Package sidecar serializes a resolved metadata record as the JSON file
// that sits next to each PDF.
package sidecar

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/keenmouse/mht2pdf/internal/fileutil"
	"github.com/keenmouse/mht2pdf/internal/metadata"
)

// ErrInvalidSidecar indicates a sidecar file that is not a JSON object of
// string values.
var ErrInvalidSidecar = errors.New("invalid sidecar")

const filePerm = 0o644

// Marshal renders rec as a JSON object keyed by the same names the PDF
// Info dictionary uses. Keys follow record field order and absent fields
// are omitted.
func Marshal(rec metadata.Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")

	var err error
	first := true
	rec.Each(func(f metadata.Field, v string) {
		if err != nil {
			return
		}
		if !first {
			buf.WriteString(",")
		}
		first = false
		buf.WriteString("\n  ")
		if err = encodeString(&buf, f.InfoKey()); err != nil {
			return
		}
		buf.WriteString(": ")
		err = encodeString(&buf, v)
	})
	if err != nil {
		return nil, fmt.Errorf("encoding sidecar: %w", err)
	}

	if !first {
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// encodeString writes s as a JSON string without HTML escaping.
func encodeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// Write marshals rec and replaces path atomically.
func Write(path string, rec metadata.Record) error {
	data, err := Marshal(rec)
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, data, filePerm)
}

// Read parses a sidecar back into a record. Unknown keys are ignored.
func Read(path string) (metadata.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return metadata.Record{}, err
	}
	return Unmarshal(data)
}

// Unmarshal parses sidecar bytes into a record.
func Unmarshal(data []byte) (metadata.Record, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return metadata.Record{}, fmt.Errorf("%w: %v", ErrInvalidSidecar, err)
	}
	values := make(map[metadata.Field]string, len(raw))
	for k, v := range raw {
		if f, ok := metadata.FieldByInfoKey(k); ok {
			values[f] = v
		}
	}
	return metadata.NewRecord(values), nil
}
