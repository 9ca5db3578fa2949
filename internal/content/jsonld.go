package content

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/keenmouse/mht2pdf/internal/metadata"
)

// articleTypes are schema.org types describing the page itself. Objects of
// these types are consulted first, then untyped objects.
var articleTypes = map[string]bool{
	"article":              true,
	"newsarticle":          true,
	"blogposting":          true,
	"reportagenewsarticle": true,
	"scholarlyarticle":     true,
	"techarticle":          true,
	"report":               true,
	"webpage":              true,
	"legislation":          true,
	"courtcase":            true,
}

// siteTypes describe the surrounding site or a fragment of the page.
// Nodes of these types never supply page metadata.
var siteTypes = map[string]bool{
	"website":               true,
	"organization":          true,
	"newsmediaorganization": true,
	"person":                true,
	"breadcrumblist":        true,
	"listitem":              true,
	"sitenavigationelement": true,
	"searchaction":          true,
	"imageobject":           true,
	"wpheader":              true,
	"wpfooter":              true,
	"wpsidebar":             true,
}

// jsonldProps lists, per field, the properties read in preference order
// and how their values are flattened to text.
var jsonldProps = []struct {
	field metadata.Field
	keys  []string
	text  func(any) string
}{
	{metadata.Title, []string{"headline", "name"}, firstText},
	{metadata.Author, []string{"author", "creator"}, joinNames},
	{metadata.CreationDate, []string{"datePublished", "dateCreated"}, firstText},
	{metadata.ModDate, []string{"dateModified"}, firstText},
	{metadata.Description, []string{"description", "abstract"}, firstText},
	{metadata.Keywords, []string{"keywords"}, joinNames},
	{metadata.Publisher, []string{"publisher"}, firstText},
	{metadata.Language, []string{"inLanguage"}, firstText},
	{metadata.SourceURL, []string{"url"}, firstText},
	{metadata.Identifier, []string{"identifier", "doi"}, firstText},
	{metadata.Subject, []string{"articleSection", "about"}, joinNames},
}

// extractJSONLD reads every ld+json script. Article-typed nodes are
// consulted first, then untyped ones; other typed nodes (VideoObject,
// Product, ...) only when the page has neither.
func extractJSONLD(doc *goquery.Document, offer offerFunc) {
	var primary, untyped, other []map[string]any
	doc.Find("script[type]").Each(func(_ int, s *goquery.Selection) {
		typ, _ := s.Attr("type")
		if !strings.Contains(strings.ToLower(typ), "ld+json") {
			return
		}
		var v any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &v); err != nil {
			return
		}
		for _, obj := range flattenNodes(v) {
			switch {
			case hasType(obj, articleTypes):
				primary = append(primary, obj)
			case obj["@type"] == nil:
				untyped = append(untyped, obj)
			case !hasType(obj, siteTypes):
				other = append(other, obj)
			}
		}
	})

	nodes := append(primary, untyped...)
	if len(nodes) == 0 {
		nodes = other
	}
	for _, prop := range jsonldProps {
		for _, obj := range nodes {
			if v := firstProp(obj, prop.keys, prop.text); v != "" {
				offer(prop.field, v, SourceJSONLD)
				break
			}
		}
	}
}

// flattenNodes returns every object of a JSON-LD document, expanding
// top-level arrays and @graph containers.
func flattenNodes(v any) []map[string]any {
	switch t := v.(type) {
	case []any:
		var out []map[string]any
		for _, item := range t {
			out = append(out, flattenNodes(item)...)
		}
		return out
	case map[string]any:
		out := []map[string]any{t}
		if graph, ok := t["@graph"]; ok {
			out = append(out, flattenNodes(graph)...)
		}
		return out
	default:
		return nil
	}
}

func hasType(obj map[string]any, types map[string]bool) bool {
	switch t := obj["@type"].(type) {
	case string:
		return types[strings.ToLower(t)]
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && types[strings.ToLower(s)] {
				return true
			}
		}
	}
	return false
}

func firstProp(obj map[string]any, keys []string, text func(any) string) string {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			if s := strings.TrimSpace(text(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

// firstText flattens a JSON-LD value to a single string: strings as is,
// objects by their name or value, lists by their first usable entry.
func firstText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		for _, k := range []string{"name", "@value", "value", "url", "@id"} {
			if s := firstText(t[k]); s != "" {
				return s
			}
		}
	case []any:
		for _, item := range t {
			if s := firstText(item); s != "" {
				return s
			}
		}
	}
	return ""
}

// joinNames flattens a value that may list several entries, dropping
// duplicates and joining with ", ".
func joinNames(v any) string {
	var items []any
	if list, ok := v.([]any); ok {
		items = list
	} else {
		items = []any{v}
	}

	seen := make(map[string]bool, len(items))
	names := make([]string, 0, len(items))
	for _, item := range items {
		s := strings.TrimSpace(firstText(item))
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		names = append(names, s)
	}
	return strings.Join(names, ", ")
}
