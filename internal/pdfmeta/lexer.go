package pdfmeta

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// maxNesting bounds array and dictionary depth.
const maxNesting = 64

var errSyntax = errors.New("syntax error")

type lexer struct {
	buf []byte
	pos int
}

func isWhite(c byte) bool {
	return c == 0 || c == '\t' || c == '\n' || c == '\f' || c == '\r' || c == ' '
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.buf) {
		c := l.buf[l.pos]
		switch {
		case isWhite(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.buf) && l.buf[l.pos] != '\n' && l.buf[l.pos] != '\r' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *lexer) peek(off int) byte {
	if l.pos+off >= len(l.buf) {
		return 0
	}
	return l.buf[l.pos+off]
}

func (l *lexer) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", errSyntax, l.pos, fmt.Sprintf(format, args...))
}

// readRegular reads a run of regular characters: a number or keyword.
func (l *lexer) readRegular() []byte {
	start := l.pos
	for l.pos < len(l.buf) && !isWhite(l.buf[l.pos]) && !isDelimiter(l.buf[l.pos]) {
		l.pos++
	}
	return l.buf[start:l.pos]
}

// readKeyword skips whitespace and reads the next regular token.
func (l *lexer) readKeyword() string {
	l.skipSpace()
	return string(l.readRegular())
}

func (l *lexer) readInt() (int64, error) {
	word := l.readKeyword()
	v, err := strconv.ParseInt(word, 10, 64)
	if err != nil {
		return 0, l.errorf("expected integer, got %q", word)
	}
	return v, nil
}

func (l *lexer) readObject() (any, error) {
	return l.readObjectDepth(0)
}

func (l *lexer) readObjectDepth(depth int) (any, error) {
	if depth > maxNesting {
		return nil, l.errorf("nesting deeper than %d", maxNesting)
	}
	l.skipSpace()
	if l.pos >= len(l.buf) {
		return nil, l.errorf("unexpected end of data")
	}

	switch c := l.buf[l.pos]; c {
	case '/':
		l.pos++
		return l.readName(), nil
	case '(':
		l.pos++
		return l.readLiteral()
	case '<':
		if l.peek(1) == '<' {
			l.pos += 2
			return l.readDict(depth)
		}
		l.pos++
		return l.readHex()
	case '[':
		l.pos++
		return l.readArray(depth)
	case ')', '>', ']', '{', '}':
		return nil, l.errorf("unexpected %q", c)
	}

	word := l.readRegular()
	switch string(word) {
	case "":
		return nil, l.errorf("unexpected byte %q", l.buf[l.pos])
	case "true":
		return pdfBool(true), nil
	case "false":
		return pdfBool(false), nil
	case "null":
		return pdfNull{}, nil
	}
	if !isNumeric(word) {
		return pdfKeyword(word), nil
	}
	if ref, ok := l.tryRef(word); ok {
		return ref, nil
	}
	return pdfNumber(word), nil
}

// tryRef checks whether the integer just read starts "num gen R".
func (l *lexer) tryRef(first []byte) (pdfRef, bool) {
	num, err := strconv.Atoi(string(first))
	if err != nil {
		return pdfRef{}, false
	}
	save := l.pos
	l.skipSpace()
	genWord := l.readRegular()
	gen, err := strconv.Atoi(string(genWord))
	if err == nil {
		l.skipSpace()
		if l.peek(0) == 'R' && (l.pos+1 >= len(l.buf) || isWhite(l.peek(1)) || isDelimiter(l.peek(1))) {
			l.pos++
			return pdfRef{num: num, gen: gen}, true
		}
	}
	l.pos = save
	return pdfRef{}, false
}

func isNumeric(word []byte) bool {
	if len(word) == 0 {
		return false
	}
	digits := 0
	for i, c := range word {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case (c == '+' || c == '-') && i == 0:
		case c == '.':
		default:
			return false
		}
	}
	return digits > 0
}

func (l *lexer) readName() pdfName {
	raw := l.readRegular()
	if bytes.IndexByte(raw, '#') < 0 {
		return pdfName(raw)
	}
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '#' && i+2 < len(raw) {
			if v, err := strconv.ParseUint(string(raw[i+1:i+3]), 16, 8); err == nil {
				out = append(out, byte(v))
				i += 2
				continue
			}
		}
		out = append(out, raw[i])
	}
	return pdfName(out)
}

func (l *lexer) readLiteral() (pdfString, error) {
	var out []byte
	depth := 1
	for l.pos < len(l.buf) {
		c := l.buf[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return out, nil
			}
		case '\r':
			// Bare CR and CRLF both read as LF.
			if l.peek(0) == '\n' {
				l.pos++
			}
			out = append(out, '\n')
			continue
		case '\\':
			if l.pos >= len(l.buf) {
				return nil, l.errorf("unterminated string")
			}
			e := l.buf[l.pos]
			l.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if l.peek(0) == '\n' {
					l.pos++
				}
			case '\n':
			case '0', '1', '2', '3', '4', '5', '6', '7':
				v := int(e - '0')
				for n := 0; n < 2 && l.pos < len(l.buf) && l.buf[l.pos] >= '0' && l.buf[l.pos] <= '7'; n++ {
					v = v*8 + int(l.buf[l.pos]-'0')
					l.pos++
				}
				out = append(out, byte(v))
			default:
				out = append(out, e)
			}
			continue
		}
		out = append(out, c)
	}
	return nil, l.errorf("unterminated string")
}

func (l *lexer) readHex() (pdfString, error) {
	var out []byte
	var hi byte
	half := false
	for l.pos < len(l.buf) {
		c := l.buf[l.pos]
		l.pos++
		if c == '>' {
			if half {
				out = append(out, hi<<4)
			}
			return out, nil
		}
		if isWhite(c) {
			continue
		}
		v, ok := hexValue(c)
		if !ok {
			return nil, l.errorf("invalid hex digit %q", c)
		}
		if half {
			out = append(out, hi<<4|v)
		} else {
			hi = v
		}
		half = !half
	}
	return nil, l.errorf("unterminated hex string")
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func (l *lexer) readArray(depth int) (pdfArray, error) {
	var out pdfArray
	for {
		l.skipSpace()
		if l.pos >= len(l.buf) {
			return nil, l.errorf("unterminated array")
		}
		if l.buf[l.pos] == ']' {
			l.pos++
			return out, nil
		}
		obj, err := l.readObjectDepth(depth + 1)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
}

func (l *lexer) readDict(depth int) (*pdfDict, error) {
	d := newDict()
	for {
		l.skipSpace()
		if l.pos >= len(l.buf) {
			return nil, l.errorf("unterminated dictionary")
		}
		if l.buf[l.pos] == '>' && l.peek(1) == '>' {
			l.pos += 2
			return d, nil
		}
		if l.buf[l.pos] != '/' {
			return nil, l.errorf("dictionary key is not a name")
		}
		l.pos++
		key := l.readName()
		val, err := l.readObjectDepth(depth + 1)
		if err != nil {
			return nil, err
		}
		d.set(key, val)
	}
}
