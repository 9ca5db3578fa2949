// Package mhtml parses MHT/MHTML web archives: the envelope headers and
// the HTML payload they wrap.
package mhtml

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	"github.com/keenmouse/mht2pdf/internal/dateutil"
)

// ErrMalformedEnvelope indicates that no header could be read from the
// archive. Parse still returns a usable Document alongside it.
var ErrMalformedEnvelope = errors.New("malformed MHT envelope")

// MaxPartSize bounds how much of a single MIME part is read.
const MaxPartSize = 64 << 20

// Document is a parsed archive.
type Document struct {
	// Headers are the top-level envelope headers.
	Headers HeaderSet
	// MIMEType is the top-level media type, e.g. "multipart/related".
	MIMEType string
	// HTML is the decoded, UTF-8 HTML payload.
	HTML string
	// PartURL is the Content-Location of the HTML part, if any.
	PartURL string
	// ContentSHA256 is the hex SHA-256 of the raw archive bytes.
	ContentSHA256 string
}

// CapturedAt returns the archive's capture time from its Date header.
func (d *Document) CapturedAt() (time.Time, bool) {
	v := d.Headers.Get("Date")
	if v == "" {
		return time.Time{}, false
	}
	t, err := dateutil.Parse(v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Parse reads the envelope headers of raw and locates its HTML payload.
// When no header can be read it returns ErrMalformedEnvelope together with
// a Document whose HTML is the whole input, so callers can still resolve
// metadata from the content.
func Parse(raw []byte) (*Document, error) {
	sum := sha256.Sum256(raw)
	doc := &Document{
		Headers:       HeaderSet{h: textproto.MIMEHeader{}},
		ContentSHA256: hex.EncodeToString(sum[:]),
	}

	block, body := splitHeaderBlock(raw)
	headers, n := parseHeaderBlock(block)
	if n == 0 {
		doc.HTML = toUTF8(raw, "")
		return doc, fmt.Errorf("%w: no header lines", ErrMalformedEnvelope)
	}
	doc.Headers = HeaderSet{h: headers}

	mediaType, params, err := mime.ParseMediaType(headers.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}
	doc.MIMEType = mediaType

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		boundary := params["boundary"]
		if boundary == "" {
			boundary = sniffBoundary(body)
		}
		if html, url, ok := findHTMLPart(body, boundary); ok {
			doc.HTML, doc.PartURL = html, url
			return doc, nil
		}
	case mediaType == "text/html":
		decoded := decodeTransfer(body, headers.Get("Content-Transfer-Encoding"))
		doc.HTML = toUTF8(decoded, headers.Get("Content-Type"))
		doc.PartURL = headers.Get("Content-Location")
		return doc, nil
	}

	doc.HTML = toUTF8(raw, "")
	return doc, nil
}

// findHTMLPart returns the first text/html part of a multipart body.
func findHTMLPart(body []byte, boundary string) (html, location string, ok bool) {
	if boundary == "" {
		return "", "", false
	}
	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := mr.NextRawPart()
		if err != nil {
			return "", "", false
		}
		contentType := part.Header.Get("Content-Type")
		mediaType, _, _ := mime.ParseMediaType(contentType)
		if mediaType != "text/html" {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(part, MaxPartSize))
		if err != nil {
			return "", "", false
		}
		decoded := decodeTransfer(data, part.Header.Get("Content-Transfer-Encoding"))
		return toUTF8(decoded, contentType), part.Header.Get("Content-Location"), true
	}
}

// sniffBoundary recovers a boundary from the first delimiter line when the
// Content-Type header omits it.
func sniffBoundary(body []byte) string {
	for _, line := range strings.SplitN(string(body), "\n", 64) {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "--") && len(line) > 2 {
			return strings.TrimSuffix(line[2:], "--")
		}
	}
	return ""
}

// decodeTransfer undoes a Content-Transfer-Encoding. Undecodable data is
// returned as is.
func decodeTransfer(data []byte, encoding string) []byte {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		out, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(data)))
		if err != nil && len(out) == 0 {
			return data
		}
		return out
	case "base64":
		compact := strings.Map(func(r rune) rune {
			if r == '\r' || r == '\n' || r == ' ' || r == '\t' {
				return -1
			}
			return r
		}, string(data))
		out, err := base64.StdEncoding.DecodeString(compact)
		if err != nil {
			return data
		}
		return out
	default:
		return data
	}
}

// toUTF8 converts HTML bytes to UTF-8 using the charset from contentType,
// or the one declared in the document when contentType has none.
func toUTF8(data []byte, contentType string) string {
	if _, params, err := mime.ParseMediaType(contentType); (err != nil || params["charset"] == "") && utf8.Valid(data) {
		// Sniffing only looks at the first KiB and would pick windows-1252
		// for documents that start out as plain ASCII.
		return string(data)
	}
	r, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		return string(data)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return string(data)
	}
	return string(out)
}
