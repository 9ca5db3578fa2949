package metadata

import (
	"errors"
	"fmt"
	"time"
)

// ErrParseWarning marks a candidate that was found but could not be
// normalized. The field falls through to its next strategy.
var ErrParseWarning = errors.New("metadata parse warning")

// Defaults for the tool-identifying fields.
const (
	DefaultCreator  = "mht2pdf metadata pipeline"
	DefaultProducer = "mht2pdf"
)

// HeaderLookup gives case-insensitive access to envelope headers.
type HeaderLookup interface {
	Get(name string) string
}

// ContentLookup gives access to metadata extracted from the HTML payload.
// source names the in-document sub-source, e.g. "jsonld" or "meta".
type ContentLookup interface {
	Lookup(f Field) (value, source string, ok bool)
}

// Input is everything the resolver may draw on for one source file.
type Input struct {
	// SourcePath is the path of the archive as given to the converter.
	SourcePath string
	// Headers and Content may be nil.
	Headers HeaderLookup
	Content ContentLookup
	// PartURL is the Content-Location of the HTML part, if any.
	PartURL string
	// ContentSHA256 is the hex digest of the raw archive bytes.
	ContentSHA256 string
	// Text is the readable text used for language detection.
	Text string
	// Created and Modified are the file's timestamps; zero when unknown.
	Created  time.Time
	Modified time.Time
}

// Resolver merges header, content and filesystem candidates into a Record.
type Resolver struct {
	creator  string
	producer string
	detect   func(text string) string
	chains   [fieldCount][]Strategy
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCreator sets the creator used when no document value exists.
func WithCreator(s string) Option {
	return func(r *Resolver) {
		r.creator = s
	}
}

// WithProducer sets the producer recorded on every output.
func WithProducer(s string) Option {
	return func(r *Resolver) {
		r.producer = s
	}
}

// WithLanguageDetector sets the function used as the last language
// fallback. It returns a language code or "".
func WithLanguageDetector(fn func(text string) string) Option {
	return func(r *Resolver) {
		r.detect = fn
	}
}

// WithChain replaces the strategy chain of f.
func WithChain(f Field, chain ...Strategy) Option {
	return func(r *Resolver) {
		if f.valid() {
			r.chains[f] = chain
		}
	}
}

// NewResolver creates a Resolver with the default strategy chains.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		creator:  DefaultCreator,
		producer: DefaultProducer,
	}
	r.chains = defaultChains(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// resolveOrder lists fields so that fallbacks reading other resolved
// fields run after them.
var resolveOrder = [fieldCount]Field{
	SourceFile, SourceURL, Title, Author, Description, Subject, Keywords,
	CreationDate, ModDate, Language, Publisher, Identifier, Creator, Producer,
}

// Resolve evaluates each field's chain in order and stops at the first
// strategy yielding a non-empty normalized value.
func (r *Resolver) Resolve(in Input) Record {
	var rec Record
	for _, f := range resolveOrder {
		for _, s := range r.chains[f] {
			raw, origin := s.Lookup(in, rec)
			if raw == "" {
				continue
			}
			if origin == "" {
				origin = s.Name
			}
			v, err := Normalize(f, raw)
			if err != nil {
				rec.warnings = append(rec.warnings, warn(f, origin, err))
				continue
			}
			if v == "" {
				continue
			}
			rec.values[f] = v
			rec.origins[f] = origin
			break
		}
	}
	return rec
}

// Chain returns the strategy names of f in evaluation order.
func (r *Resolver) Chain(f Field) []string {
	if !f.valid() {
		return nil
	}
	names := make([]string, len(r.chains[f]))
	for i, s := range r.chains[f] {
		names[i] = s.Name
	}
	return names
}

func warn(f Field, origin string, err error) error {
	return fmt.Errorf("%w: %s from %s: %v", ErrParseWarning, f, origin, err)
}
