package mhtml

import (
	"bytes"
	"io"
	"mime"
	"net/textproto"
	"sort"
	"strings"

	"golang.org/x/net/html/charset"
)

// HeaderSet is a read-only, case-insensitive view of envelope headers.
// Values have RFC 2047 encoded words decoded. Unknown headers are kept.
type HeaderSet struct {
	h textproto.MIMEHeader
}

// NewHeaderSet copies h into a HeaderSet.
func NewHeaderSet(h map[string][]string) HeaderSet {
	out := make(textproto.MIMEHeader, len(h))
	for k, vs := range h {
		key := textproto.CanonicalMIMEHeaderKey(k)
		out[key] = append(out[key], vs...)
	}
	return HeaderSet{h: out}
}

// Get returns the first value of name, or "".
func (s HeaderSet) Get(name string) string {
	return s.h.Get(name)
}

// Values returns a copy of every value of name.
func (s HeaderSet) Values(name string) []string {
	vs := s.h.Values(name)
	if len(vs) == 0 {
		return nil
	}
	out := make([]string, len(vs))
	copy(out, vs)
	return out
}

// Names returns the canonical header names, sorted.
func (s HeaderSet) Names() []string {
	names := make([]string, 0, len(s.h))
	for k := range s.h {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of distinct headers.
func (s HeaderSet) Len() int {
	return len(s.h)
}

var wordDecoder = &mime.WordDecoder{
	CharsetReader: func(label string, input io.Reader) (io.Reader, error) {
		return charset.NewReaderLabel(label, input)
	},
}

// decodeWords decodes RFC 2047 encoded words, returning s unchanged when
// decoding fails.
func decodeWords(s string) string {
	if !strings.Contains(s, "=?") {
		return s
	}
	decoded, err := wordDecoder.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}

// splitHeaderBlock returns the header block and the body. The block ends
// at the first empty line; LF and CRLF line endings are both accepted.
func splitHeaderBlock(raw []byte) (block, body []byte) {
	crlf := bytes.Index(raw, []byte("\r\n\r\n"))
	lf := bytes.Index(raw, []byte("\n\n"))
	switch {
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return raw[:crlf], raw[crlf+4:]
	case lf >= 0:
		return raw[:lf], raw[lf+2:]
	default:
		return raw, nil
	}
}

// parseHeaderBlock reads "Name: value" lines with folding. Once a header
// has been accepted, lines that are not headers are skipped so a garbled
// line degrades to a partial set. It reports how many header lines were
// accepted.
func parseHeaderBlock(block []byte) (textproto.MIMEHeader, int) {
	h := make(textproto.MIMEHeader)
	lines := strings.Split(strings.ReplaceAll(string(block), "\r\n", "\n"), "\n")

	var key string
	var value strings.Builder
	accepted := 0

	flush := func() {
		if key == "" {
			return
		}
		h.Add(key, decodeWords(strings.TrimSpace(value.String())))
		key = ""
		value.Reset()
	}

	for _, line := range lines {
		if line == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && key != "" {
			value.WriteByte(' ')
			value.WriteString(strings.TrimSpace(line))
			continue
		}
		flush()

		name, val, ok := strings.Cut(line, ":")
		if !ok || !validHeaderName(name) {
			if accepted == 0 {
				// Not an envelope at all, e.g. a bare HTML file.
				return h, 0
			}
			continue
		}
		key = textproto.CanonicalMIMEHeaderKey(name)
		value.WriteString(val)
		accepted++
	}
	flush()
	return h, accepted
}

func validHeaderName(name string) bool {
	if name == "" || len(name) > 128 {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= ' ' || c >= 0x7f {
			return false
		}
	}
	return true
}
