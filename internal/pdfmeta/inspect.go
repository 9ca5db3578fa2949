package pdfmeta

import (
	"fmt"

	"github.com/keenmouse/mht2pdf/internal/dateutil"
	"github.com/keenmouse/mht2pdf/internal/metadata"
)

// Report is the metadata found in the newest revision of a PDF.
type Report struct {
	// Info holds the decoded Info dictionary text strings by key. Dates
	// keep their PDF syntax.
	Info map[string]string `json:"info"`
	// XMP holds the record fields read from the XMP packet, keyed like
	// Info. Dates are canonical.
	XMP map[string]string `json:"xmp"`
	// XMPPacket is the raw packet, empty when the catalog has none.
	XMPPacket string `json:"-"`
	// Updates counts the cross-reference sections in the chain.
	Updates int `json:"updates"`
}

// Inspect reads the Info dictionary and XMP packet the trailer and
// catalog currently point at.
func Inspect(pdf []byte) (*Report, error) {
	d, err := load(pdf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedFailure, err)
	}
	r := &Report{
		Info:    make(map[string]string),
		XMP:     make(map[string]string),
		Updates: d.sections,
	}

	infoObj, err := d.deref(d.trailer.get("Info"))
	if err != nil {
		return nil, fmt.Errorf("%w: reading Info: %v", ErrEmbedFailure, err)
	}
	if info, ok := infoObj.(*pdfDict); ok {
		for _, k := range info.keys {
			v, err := d.deref(info.vals[k])
			if err != nil {
				continue
			}
			if s, ok := v.(pdfString); ok {
				r.Info[string(k)] = decodeText(s)
			}
		}
	}

	_, catalog, err := d.catalog()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedFailure, err)
	}
	mdObj, err := d.deref(catalog.get("Metadata"))
	if err != nil {
		return nil, fmt.Errorf("%w: reading XMP: %v", ErrEmbedFailure, err)
	}
	s, ok := mdObj.(*pdfStream)
	if !ok {
		return r, nil
	}
	packet, err := d.decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding XMP: %v", ErrEmbedFailure, err)
	}
	r.XMPPacket = string(packet)

	fields, err := parseXMP(packet)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing XMP: %v", ErrEmbedFailure, err)
	}
	for f, v := range fields {
		if f.IsDate() {
			if c, err := dateutil.Normalize(v); err == nil {
				v = c
			}
		}
		r.XMP[f.InfoKey()] = v
	}
	return r, nil
}

// InfoFields returns the Info entries that belong to record fields with
// dates converted to canonical form, for comparison with a sidecar.
func (r *Report) InfoFields() map[string]string {
	out := make(map[string]string)
	for k, v := range r.Info {
		f, ok := metadata.FieldByInfoKey(k)
		if !ok {
			continue
		}
		if f.IsDate() {
			t, err := dateutil.ParsePDF(v)
			if err != nil {
				continue
			}
			v = dateutil.Format(t)
		}
		out[k] = v
	}
	return out
}
