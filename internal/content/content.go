// Package content extracts bibliographic metadata embedded in an HTML
// document: JSON-LD structured data, meta tags, the canonical link, the
// readability heuristics and the plain <title>.
package content

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/keenmouse/mht2pdf/internal/dateutil"
	"github.com/keenmouse/mht2pdf/internal/metadata"
)

// Sub-sources, strongest first.
const (
	SourceJSONLD      = "jsonld"
	SourceMeta        = "meta"
	SourceCanonical   = "canonical"
	SourceReadability = "readability"
	SourceTitle       = "title"
	SourceHTML        = "html"
)

var sourceRank = map[string]int{
	SourceJSONLD:      0,
	SourceMeta:        1,
	SourceCanonical:   2,
	SourceReadability: 3,
	SourceTitle:       4,
	SourceHTML:        4,
}

// MaxTextLength caps the readable text kept for language detection, in runes.
const MaxTextLength = 10000

// placeholderURL is handed to readability, which resolves relative links
// against a page URL; extracted metadata does not depend on it.
var placeholderURL = &url.URL{Scheme: "https", Host: "localhost", Path: "/"}

// Candidate is one in-document value and the sub-source it came from.
type Candidate struct {
	Value  string
	Source string
}

// Metadata holds the strongest candidate per field. It is immutable once
// Extract returns.
type Metadata struct {
	fields map[metadata.Field]Candidate
	text   string
}

// Get returns the candidate for f.
func (m Metadata) Get(f metadata.Field) (Candidate, bool) {
	c, ok := m.fields[f]
	return c, ok
}

// Lookup implements metadata.ContentLookup.
func (m Metadata) Lookup(f metadata.Field) (value, source string, ok bool) {
	c, ok := m.fields[f]
	return c.Value, c.Source, ok
}

// Len returns the number of fields with a candidate.
func (m Metadata) Len() int {
	return len(m.fields)
}

// Text returns the visible text of the document body.
func (m Metadata) Text() string {
	return m.text
}

// Extract parses html leniently and collects metadata candidates. It never
// fails: absent signals leave fields absent.
func Extract(html string) Metadata {
	m := Metadata{fields: make(map[metadata.Field]Candidate)}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return m
	}

	extractJSONLD(doc, m.offer)
	extractMeta(doc, m.offer)
	extractCanonical(doc, m.offer)
	extractReadability(html, m.offer)
	extractTitle(doc, m.offer)

	m.text = readableText(doc)
	return m
}

// offer records value for f unless a stronger or earlier candidate from
// an equally ranked source is already present.
func (m Metadata) offer(f metadata.Field, value, source string) {
	value = metadata.CleanText(value)
	if value == "" {
		return
	}
	if cur, ok := m.fields[f]; ok && sourceRank[cur.Source] <= sourceRank[source] {
		return
	}
	m.fields[f] = Candidate{Value: value, Source: source}
}

type offerFunc func(f metadata.Field, value, source string)

func extractCanonical(doc *goquery.Document, offer offerFunc) {
	doc.Find("link[rel]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		for _, r := range strings.Fields(strings.ToLower(rel)) {
			if r == "canonical" {
				href, _ := s.Attr("href")
				offer(metadata.SourceURL, href, SourceCanonical)
				return false
			}
		}
		return true
	})
}

func extractReadability(html string, offer offerFunc) {
	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(html), placeholderURL)
	if err != nil {
		return
	}
	offer(metadata.Title, article.Title, SourceReadability)
	offer(metadata.Author, article.Byline, SourceReadability)
	offer(metadata.Description, article.Excerpt, SourceReadability)
	offer(metadata.Publisher, article.SiteName, SourceReadability)
	if article.PublishedTime != nil && !article.PublishedTime.IsZero() {
		offer(metadata.CreationDate, dateutil.Format(*article.PublishedTime), SourceReadability)
	}
}

func extractTitle(doc *goquery.Document, offer offerFunc) {
	offer(metadata.Title, doc.Find("title").First().Text(), SourceTitle)
	if lang, ok := doc.Find("html").First().Attr("lang"); ok {
		offer(metadata.Language, lang, SourceHTML)
	}
}

func readableText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, template").Remove()
	text := strings.Join(strings.Fields(body.Text()), " ")
	if r := []rune(text); len(r) > MaxTextLength {
		text = string(r[:MaxTextLength])
	}
	return text
}
