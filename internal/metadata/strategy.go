package metadata

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/keenmouse/mht2pdf/internal/dateutil"
)

// Strategy produces one raw candidate for a field. resolved holds the
// fields evaluated so far. An empty value is a miss. origin labels the
// hit for provenance; when empty the strategy name is used.
type Strategy struct {
	Name   string
	Lookup func(in Input, resolved Record) (value, origin string)
}

// ContentStrategy reads f from the extracted document metadata.
func ContentStrategy(f Field) Strategy {
	return Strategy{
		Name: "content",
		Lookup: func(in Input, _ Record) (string, string) {
			if in.Content == nil {
				return "", ""
			}
			v, src, ok := in.Content.Lookup(f)
			if !ok {
				return "", ""
			}
			return v, "content:" + src
		},
	}
}

// HeaderStrategy reads the named envelope header.
func HeaderStrategy(name string) Strategy {
	return Strategy{
		Name: "header:" + name,
		Lookup: func(in Input, _ Record) (string, string) {
			if in.Headers == nil {
				return "", ""
			}
			return in.Headers.Get(name), ""
		},
	}
}

// authorHeaderStrategy reads From, ignoring the placeholder browsers write
// when saving a page ("<Saved by Windows Internet Explorer 11>").
func authorHeaderStrategy() Strategy {
	s := HeaderStrategy("From")
	lookup := s.Lookup
	s.Lookup = func(in Input, rec Record) (string, string) {
		v, origin := lookup(in, rec)
		if strings.Contains(strings.ToLower(v), "saved by") {
			return "", ""
		}
		return v, origin
	}
	return s
}

// FieldStrategy copies an already resolved field.
func FieldStrategy(from Field) Strategy {
	return Strategy{
		Name: "field:" + from.String(),
		Lookup: func(_ Input, rec Record) (string, string) {
			return rec.Value(from), ""
		},
	}
}

// ValueStrategy always yields v.
func ValueStrategy(name, v string) Strategy {
	return Strategy{
		Name: name,
		Lookup: func(Input, Record) (string, string) {
			return v, ""
		},
	}
}

func partURLStrategy() Strategy {
	return Strategy{
		Name: "part:Content-Location",
		Lookup: func(in Input, _ Record) (string, string) {
			return in.PartURL, ""
		},
	}
}

func sourceFileStrategy() Strategy {
	return Strategy{
		Name: "source:path",
		Lookup: func(in Input, _ Record) (string, string) {
			return CleanSourcePath(in.SourcePath), ""
		},
	}
}

func fileStemStrategy() Strategy {
	return Strategy{
		Name: "fallback:file-stem",
		Lookup: func(in Input, _ Record) (string, string) {
			return FileStem(in.SourcePath), ""
		},
	}
}

func fileTimeStrategy(name string, pick func(Input) time.Time) Strategy {
	return Strategy{
		Name: name,
		Lookup: func(in Input, _ Record) (string, string) {
			t := pick(in)
			if t.IsZero() {
				return "", ""
			}
			return dateutil.Format(t), ""
		},
	}
}

func digestStrategy() Strategy {
	return Strategy{
		Name: "fallback:content-sha256",
		Lookup: func(in Input, _ Record) (string, string) {
			if in.ContentSHA256 == "" {
				return "", ""
			}
			return "urn:sha256:" + in.ContentSHA256, ""
		},
	}
}

func (r *Resolver) detectStrategy() Strategy {
	return Strategy{
		Name: "fallback:detected",
		Lookup: func(in Input, _ Record) (string, string) {
			if r.detect == nil || in.Text == "" {
				return "", ""
			}
			return r.detect(in.Text), ""
		},
	}
}

func (r *Resolver) configStrategy(pick func(*Resolver) string) Strategy {
	return Strategy{
		Name: "config",
		Lookup: func(Input, Record) (string, string) {
			return pick(r), ""
		},
	}
}

func defaultChains(r *Resolver) [fieldCount][]Strategy {
	var c [fieldCount][]Strategy

	c[SourceFile] = []Strategy{sourceFileStrategy()}
	c[SourceURL] = []Strategy{
		ContentStrategy(SourceURL),
		partURLStrategy(),
		HeaderStrategy("Snapshot-Content-Location"),
		HeaderStrategy("Content-Location"),
		HeaderStrategy("X-Original-URL"),
		HeaderStrategy("X-Source-URL"),
	}
	c[Title] = []Strategy{
		ContentStrategy(Title),
		HeaderStrategy("Subject"),
		fileStemStrategy(),
	}
	c[Author] = []Strategy{
		ContentStrategy(Author),
		authorHeaderStrategy(),
	}
	c[Description] = []Strategy{ContentStrategy(Description)}
	c[Subject] = []Strategy{
		ContentStrategy(Subject),
		FieldStrategy(Description),
	}
	c[Keywords] = []Strategy{ContentStrategy(Keywords)}
	c[CreationDate] = []Strategy{
		ContentStrategy(CreationDate),
		HeaderStrategy("Date"),
		HeaderStrategy("X-MSFileLastModified"),
		fileTimeStrategy("fallback:file-created", func(in Input) time.Time { return in.Created }),
	}
	c[ModDate] = []Strategy{
		ContentStrategy(ModDate),
		HeaderStrategy("Last-Modified"),
		HeaderStrategy("X-MSFileLastModified"),
		fileTimeStrategy("fallback:file-modified", func(in Input) time.Time { return in.Modified }),
	}
	c[Language] = []Strategy{
		ContentStrategy(Language),
		HeaderStrategy("Content-Language"),
		r.detectStrategy(),
	}
	c[Publisher] = []Strategy{ContentStrategy(Publisher)}
	c[Identifier] = []Strategy{
		ContentStrategy(Identifier),
		FieldStrategy(SourceURL),
		digestStrategy(),
	}
	c[Creator] = []Strategy{
		ContentStrategy(Creator),
		r.configStrategy(func(r *Resolver) string { return r.creator }),
	}
	c[Producer] = []Strategy{
		r.configStrategy(func(r *Resolver) string { return r.producer }),
	}
	return c
}

// CleanSourcePath trims whitespace and stray line breaks from a path and
// returns it cleaned with forward slashes.
func CleanSourcePath(p string) string {
	p = strings.NewReplacer("\r", "", "\n", "").Replace(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	return filepath.ToSlash(filepath.Clean(p))
}

// FileStem returns the URL-decoded base name of p without its extension.
func FileStem(p string) string {
	base := path.Base(strings.ReplaceAll(CleanSourcePath(p), `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	if decoded, err := url.PathUnescape(base); err == nil {
		base = decoded
	}
	return base
}
