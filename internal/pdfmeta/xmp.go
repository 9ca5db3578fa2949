package pdfmeta

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/keenmouse/mht2pdf/internal/metadata"
)

// XMP namespaces.
const (
	nsRDF = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	nsDC  = "http://purl.org/dc/elements/1.1/"
	nsXMP = "http://ns.adobe.com/xap/1.0/"
	nsPDF = "http://ns.adobe.com/pdf/1.3/"
	nsMHT = "https://github.com/keenmouse/mht2pdf/ns/1.0/"
)

type xmpKind int

const (
	xmpSimple xmpKind = iota
	xmpAlt
	xmpSeq
	xmpBag
)

// xmpProp maps a record field to one XMP property. A field may appear
// under several properties; primary marks the one read back.
type xmpProp struct {
	field   metadata.Field
	prefix  string
	ns      string
	local   string
	kind    xmpKind
	primary bool
}

var xmpProps = []xmpProp{
	{metadata.Title, "dc", nsDC, "title", xmpAlt, true},
	{metadata.Author, "dc", nsDC, "creator", xmpSeq, true},
	{metadata.Description, "dc", nsDC, "description", xmpAlt, true},
	{metadata.Keywords, "dc", nsDC, "subject", xmpBag, false},
	{metadata.CreationDate, "dc", nsDC, "date", xmpSeq, false},
	{metadata.Language, "dc", nsDC, "language", xmpBag, true},
	{metadata.Publisher, "dc", nsDC, "publisher", xmpBag, true},
	{metadata.Identifier, "dc", nsDC, "identifier", xmpSimple, true},
	{metadata.CreationDate, "xmp", nsXMP, "CreateDate", xmpSimple, true},
	{metadata.ModDate, "xmp", nsXMP, "ModifyDate", xmpSimple, true},
	{metadata.Creator, "xmp", nsXMP, "CreatorTool", xmpSimple, true},
	{metadata.Keywords, "pdf", nsPDF, "Keywords", xmpSimple, true},
	{metadata.Producer, "pdf", nsPDF, "Producer", xmpSimple, true},
	{metadata.Subject, "mht", nsMHT, "Subject", xmpSimple, true},
	{metadata.SourceURL, "mht", nsMHT, "SourceURL", xmpSimple, true},
	{metadata.SourceFile, "mht", nsMHT, "SourceFile", xmpSimple, true},
}

const (
	packetHeader = "<?xpacket begin=\"\uFEFF\" id=\"W5M0MpCehiHzreSzNTczkc9d\"?>\n"
	packetFooter = "<?xpacket end=\"w\"?>"
)

// buildXMP renders rec as an XMP packet.
func buildXMP(rec metadata.Record) []byte {
	var b bytes.Buffer
	b.WriteString(packetHeader)
	b.WriteString("<x:xmpmeta xmlns:x=\"adobe:ns:meta/\">\n")
	b.WriteString(" <rdf:RDF xmlns:rdf=\"" + nsRDF + "\">\n")
	b.WriteString("  <rdf:Description rdf:about=\"\"\n")
	b.WriteString("    xmlns:dc=\"" + nsDC + "\"\n")
	b.WriteString("    xmlns:xmp=\"" + nsXMP + "\"\n")
	b.WriteString("    xmlns:pdf=\"" + nsPDF + "\"\n")
	b.WriteString("    xmlns:mht=\"" + nsMHT + "\">\n")

	for _, p := range xmpProps {
		v, ok := rec.Get(p.field)
		if !ok {
			continue
		}
		tag := p.prefix + ":" + p.local
		switch p.kind {
		case xmpSimple:
			b.WriteString("   <" + tag + ">")
			escape(&b, v)
			b.WriteString("</" + tag + ">\n")
		case xmpAlt:
			b.WriteString("   <" + tag + "><rdf:Alt>\n")
			b.WriteString("    <rdf:li xml:lang=\"x-default\">")
			escape(&b, v)
			b.WriteString("</rdf:li>\n")
			b.WriteString("   </rdf:Alt></" + tag + ">\n")
		case xmpSeq, xmpBag:
			container := "rdf:Seq"
			if p.kind == xmpBag {
				container = "rdf:Bag"
			}
			b.WriteString("   <" + tag + "><" + container + ">\n")
			for _, item := range listItems(p.field, v) {
				b.WriteString("    <rdf:li>")
				escape(&b, item)
				b.WriteString("</rdf:li>\n")
			}
			b.WriteString("   </" + container + "></" + tag + ">\n")
		}
	}

	b.WriteString("  </rdf:Description>\n")
	b.WriteString(" </rdf:RDF>\n")
	b.WriteString("</x:xmpmeta>\n")
	b.WriteString(packetFooter)
	return b.Bytes()
}

// listItems splits list-valued fields. Author stays a single entry since
// names may themselves contain commas.
func listItems(f metadata.Field, v string) []string {
	if f == metadata.Keywords {
		return metadata.SplitKeywords(v)
	}
	return []string{v}
}

func escape(b *bytes.Buffer, s string) {
	// Writes to a bytes.Buffer cannot fail.
	_ = xml.EscapeText(b, []byte(s))
}

// parseXMP reads the primary property of every field back from a packet.
// List values are joined with ", ".
func parseXMP(packet []byte) (map[metadata.Field]string, error) {
	byName := make(map[xml.Name]xmpProp)
	for _, p := range xmpProps {
		if p.primary {
			byName[xml.Name{Space: p.ns, Local: p.local}] = p
		}
	}

	dec := xml.NewDecoder(bytes.NewReader(packet))
	out := make(map[metadata.Field]string)
	var (
		stack []xml.Name
		text  strings.Builder
		items = make(map[xml.Name][]string)
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name)
			text.Reset()
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			name := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if name.Space == nsRDF && name.Local == "li" && len(stack) >= 2 {
				prop := stack[len(stack)-2]
				items[prop] = append(items[prop], strings.TrimSpace(text.String()))
				text.Reset()
				continue
			}
			p, ok := byName[name]
			if !ok {
				continue
			}
			if list, ok := items[name]; ok {
				out[p.field] = strings.Join(list, ", ")
			} else if v := strings.TrimSpace(text.String()); v != "" {
				out[p.field] = v
			}
			text.Reset()
		}
	}
	return out, nil
}
