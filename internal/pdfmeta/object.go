package pdfmeta

import (
	"bytes"
	"fmt"
	"strconv"
	"unicode/utf16"
)

// PDF object model. Only what metadata editing needs is represented:
// numbers keep their source text, strings their raw bytes.
type (
	pdfName    string
	pdfString  []byte
	pdfNumber  string
	pdfBool    bool
	pdfNull    struct{}
	pdfKeyword string
	pdfArray   []any
)

type pdfRef struct {
	num, gen int
}

// pdfDict keeps key order so rewritten dictionaries stay recognizable.
type pdfDict struct {
	keys []pdfName
	vals map[pdfName]any
}

type pdfStream struct {
	dict *pdfDict
	data []byte
}

func newDict() *pdfDict {
	return &pdfDict{vals: make(map[pdfName]any)}
}

func (d *pdfDict) get(k pdfName) any {
	if d == nil {
		return nil
	}
	return d.vals[k]
}

func (d *pdfDict) set(k pdfName, v any) {
	if _, ok := d.vals[k]; !ok {
		d.keys = append(d.keys, k)
	}
	d.vals[k] = v
}

func (d *pdfDict) name(k pdfName) pdfName {
	n, _ := d.get(k).(pdfName)
	return n
}

func (d *pdfDict) integer(k pdfName) (int64, bool) {
	n, ok := d.get(k).(pdfNumber)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(string(n), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (d *pdfDict) clone() *pdfDict {
	out := newDict()
	for _, k := range d.keys {
		out.set(k, d.vals[k])
	}
	return out
}

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

func writeObject(buf *bytes.Buffer, obj any) {
	switch v := obj.(type) {
	case pdfName:
		writeName(buf, v)
	case pdfString:
		writeString(buf, v)
	case pdfNumber:
		buf.WriteString(string(v))
	case pdfBool:
		buf.WriteString(strconv.FormatBool(bool(v)))
	case pdfNull, nil:
		buf.WriteString("null")
	case pdfKeyword:
		buf.WriteString(string(v))
	case pdfRef:
		fmt.Fprintf(buf, "%d %d R", v.num, v.gen)
	case pdfArray:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(' ')
			}
			writeObject(buf, item)
		}
		buf.WriteByte(']')
	case *pdfDict:
		buf.WriteString("<<")
		for _, k := range v.keys {
			writeName(buf, k)
			buf.WriteByte(' ')
			writeObject(buf, v.vals[k])
			buf.WriteByte('\n')
		}
		buf.WriteString(">>")
	}
}

func writeName(buf *bytes.Buffer, n pdfName) {
	buf.WriteByte('/')
	for i := 0; i < len(n); i++ {
		c := n[i]
		if c < '!' || c > '~' || c == '#' || isDelimiter(c) {
			fmt.Fprintf(buf, "#%02X", c)
			continue
		}
		buf.WriteByte(c)
	}
}

// writeString emits printable ASCII as a literal string and anything else
// as a hex string, which round-trips arbitrary bytes.
func writeString(buf *bytes.Buffer, s pdfString) {
	if !printableASCII(s) {
		buf.WriteByte('<')
		fmt.Fprintf(buf, "%X", []byte(s))
		buf.WriteByte('>')
		return
	}
	buf.WriteByte('(')
	for _, c := range []byte(s) {
		if c == '(' || c == ')' || c == '\\' {
			buf.WriteByte('\\')
		}
		buf.WriteByte(c)
	}
	buf.WriteByte(')')
}

func printableASCII(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Text strings
// ---------------------------------------------------------------------------

// textString encodes s as a PDF text string: plain bytes when printable
// ASCII, otherwise UTF-16BE with a byte order mark.
func textString(s string) pdfString {
	if printableASCII([]byte(s)) {
		return pdfString(s)
	}
	units := utf16.Encode([]rune(s))
	out := make([]byte, 2, 2+2*len(units))
	out[0], out[1] = 0xFE, 0xFF
	for _, u := range units {
		out = append(out, byte(u>>8), byte(u))
	}
	return out
}

// decodeText decodes a PDF text string. Strings without a byte order mark
// are PDFDocEncoding, read here as Latin-1.
func decodeText(b []byte) string {
	switch {
	case len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF:
		b = b[2:]
		units := make([]uint16, 0, len(b)/2)
		for i := 0; i+1 < len(b); i += 2 {
			units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(units))
	case len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF:
		return string(b[3:])
	default:
		runes := make([]rune, len(b))
		for i, c := range b {
			runes[i] = rune(c)
		}
		return string(runes)
	}
}
