package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/keenmouse/mht2pdf/internal/metadata"
)

// metaNames lists, per field, the meta keys consulted in preference order.
// Keys match the name, property, itemprop or http-equiv attribute,
// case-insensitively.
var metaNames = []struct {
	field metadata.Field
	keys  []string
}{
	{metadata.Title, []string{"og:title", "twitter:title", "title", "dc.title"}},
	{metadata.Author, []string{"author", "article:author", "parsely-author", "byline", "dc.creator"}},
	{metadata.CreationDate, []string{"article:published_time", "pubdate", "publishdate", "date", "og:published_time", "dc.date"}},
	{metadata.ModDate, []string{"article:modified_time", "og:updated_time"}},
	{metadata.Description, []string{"description", "og:description", "twitter:description"}},
	{metadata.Publisher, []string{"article:publisher", "publisher", "og:site_name"}},
	{metadata.Language, []string{"og:locale", "content-language", "dc.language"}},
	{metadata.Identifier, []string{"citation_doi", "dc.identifier"}},
	{metadata.Subject, []string{"subject", "dc.subject"}},
	{metadata.SourceURL, []string{"og:url"}},
	{metadata.Creator, []string{"generator"}},
}

// keywordNames are merged rather than ranked: every article:tag counts.
var keywordNames = []string{"keywords", "news_keywords", "article:tag"}

func extractMeta(doc *goquery.Document, offer offerFunc) {
	values := collectMeta(doc)

	for _, entry := range metaNames {
		for _, key := range entry.keys {
			if vs := values[key]; len(vs) > 0 {
				offer(entry.field, vs[0], SourceMeta)
				break
			}
		}
	}

	var keywords []string
	for _, key := range keywordNames {
		keywords = append(keywords, values[key]...)
	}
	if len(keywords) > 0 {
		offer(metadata.Keywords, strings.Join(metadata.SplitKeywords(strings.Join(keywords, ",")), ", "), SourceMeta)
	}
}

// collectMeta maps lowercased meta keys to their non-empty content values
// in document order.
func collectMeta(doc *goquery.Document) map[string][]string {
	values := make(map[string][]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content, ok := s.Attr("content")
		if !ok || strings.TrimSpace(content) == "" {
			return
		}
		for _, attr := range []string{"name", "property", "itemprop", "http-equiv"} {
			key, ok := s.Attr(attr)
			if !ok {
				continue
			}
			key = strings.ToLower(strings.TrimSpace(key))
			if key != "" {
				values[key] = append(values[key], content)
			}
		}
	})
	return values
}
