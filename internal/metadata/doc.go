// Package metadata resolves the bibliographic record of an archived page.
//
// A Record has a fixed set of fields. Each field is resolved independently
// by walking an ordered chain of strategies: in-document metadata first,
// then envelope headers, then filesystem and configuration fallbacks. The
// first candidate that survives normalization wins; candidates that fail
// to normalize are recorded as warnings and skipped.
//
// The same Record feeds every output encoding. Field.InfoKey is the single
// name mapping shared by the PDF Info dictionary and the JSON sidecar.
package metadata
