package pdfmeta

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"maps"
	"strings"
	"testing"

	"github.com/keenmouse/mht2pdf/internal/metadata"
)

// Notes:
// - Fixtures are generated in code so offsets are always exact.
// - classicPDF uses a plain xref table; streamPDF keeps the catalog in a
//   compressed object stream and indexes it with a predicted xref stream.

const pageContent = "BT /F1 12 Tf 72 720 Td (Hello) Tj ET"

func classicPDF(t *testing.T) []byte {
	t.Helper()

	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(pageContent), pageContent),
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R /ID [<0A0B0C> <0A0B0C>] >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return b.Bytes()
}

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()

	var b bytes.Buffer
	zw := zlib.NewWriter(&b)
	if _, err := zw.Write(data); err != nil {
		t.Fatalf("deflate: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("deflate: %v", err)
	}
	return b.Bytes()
}

func streamPDF(t *testing.T) []byte {
	t.Helper()

	catalog := "<< /Type /Catalog /Pages 2 0 R >>"
	pages := "<< /Type /Pages /Kids [3 0 R] /Count 1 >>"
	header := fmt.Sprintf("1 0 2 %d", len(catalog)+1)
	objStm := header + " " + catalog + "\n" + pages
	objStmData := deflate(t, []byte(objStm))

	var b bytes.Buffer
	b.WriteString("%PDF-1.5\n")
	offsets := map[int]int{}

	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>\nendobj\n")
	offsets[4] = b.Len()
	fmt.Fprintf(&b, "4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(pageContent), pageContent)
	offsets[5] = b.Len()
	fmt.Fprintf(&b, "5 0 obj\n<< /Type /ObjStm /N 2 /First %d /Filter /FlateDecode /Length %d >>\nstream\n", len(header)+1, len(objStmData))
	b.Write(objStmData)
	b.WriteString("\nendstream\nendobj\n")
	offsets[6] = b.Len()

	// Rows are [type, offset(3), field3(1)] encoded with the PNG Up filter.
	rows := [][]byte{
		{0, 0, 0, 0, 0},
		{2, 0, 0, 5, 0},
		{2, 0, 0, 5, 1},
		be3(1, offsets[3]),
		be3(1, offsets[4]),
		be3(1, offsets[5]),
		be3(1, offsets[6]),
	}
	var raw []byte
	prev := make([]byte, 5)
	for _, row := range rows {
		raw = append(raw, 2)
		for i := range row {
			raw = append(raw, row[i]-prev[i])
		}
		prev = row
	}
	xrefData := deflate(t, raw)

	fmt.Fprintf(&b, "6 0 obj\n<< /Type /XRef /Size 7 /W [1 3 1] /Root 1 0 R /ID [<01> <01>] "+
		"/Filter /FlateDecode /DecodeParms << /Predictor 12 /Columns 5 >> /Length %d >>\nstream\n", len(xrefData))
	b.Write(xrefData)
	fmt.Fprintf(&b, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", offsets[6])
	return b.Bytes()
}

func be3(typ byte, off int) []byte {
	return []byte{typ, byte(off >> 16), byte(off >> 8), byte(off), 0}
}

func sampleRecord() metadata.Record {
	return metadata.NewRecord(map[metadata.Field]string{
		metadata.Title:        "Ünïcode & <Tags> in a Title",
		metadata.Author:       "Jane Doe",
		metadata.Subject:      "Archived article",
		metadata.Keywords:     "go, pdf, metadata",
		metadata.CreationDate: "2024-01-02T03:04:05Z",
		metadata.ModDate:      "2024-02-03T04:05:06Z",
		metadata.Creator:      "mht2pdf metadata pipeline",
		metadata.Producer:     "mht2pdf",
		metadata.SourceURL:    "https://example.com/a?b=1&c=2",
		metadata.SourceFile:   "dir/page.mht",
		metadata.Description:  "A description (with parens)",
		metadata.Language:     "en",
		metadata.Publisher:    "Example Press",
		metadata.Identifier:   "urn:sha256:abc123",
	})
}

func byInfoKey(rec metadata.Record) map[string]string {
	out := make(map[string]string)
	rec.Each(func(f metadata.Field, v string) {
		out[f.InfoKey()] = v
	})
	return out
}

// ---------------------------------------------------------------------------
// TestEmbed - Incremental updates
// ---------------------------------------------------------------------------

func TestEmbed_CrossConsistency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pdf     func(*testing.T) []byte
		xrefStm bool
	}{
		{"classic xref table", classicPDF, false},
		{"xref stream with object stream catalog", streamPDF, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			orig := tt.pdf(t)
			rec := sampleRecord()
			out, err := Embed(orig, rec)
			if err != nil {
				t.Fatalf("Embed() unexpected error: %v", err)
			}
			if !bytes.HasPrefix(out, orig) {
				t.Fatal("original bytes were modified")
			}
			update := string(out[len(orig):])
			if got := strings.Contains(update, "/Type /XRef"); got != tt.xrefStm {
				t.Errorf("update uses xref stream = %v, want %v", got, tt.xrefStm)
			}
			if !strings.Contains(update, "/Prev") {
				t.Error("update is not chained with /Prev")
			}
			if !strings.Contains(update, "/ID") {
				t.Error("update dropped /ID")
			}

			r, err := Inspect(out)
			if err != nil {
				t.Fatalf("Inspect() unexpected error: %v", err)
			}
			want := byInfoKey(rec)
			if got := r.InfoFields(); !maps.Equal(got, want) {
				t.Errorf("Info = %v, want %v", got, want)
			}
			if !maps.Equal(r.XMP, want) {
				t.Errorf("XMP = %v, want %v", r.XMP, want)
			}
			if r.Updates != 2 {
				t.Errorf("Updates = %d, want 2", r.Updates)
			}
		})
	}
}

func TestEmbed_InfoDateSyntax(t *testing.T) {
	t.Parallel()

	out, err := Embed(classicPDF(t), sampleRecord())
	if err != nil {
		t.Fatalf("Embed() unexpected error: %v", err)
	}
	r, err := Inspect(out)
	if err != nil {
		t.Fatalf("Inspect() unexpected error: %v", err)
	}
	if got, want := r.Info["CreationDate"], "D:20240102030405+00'00'"; got != want {
		t.Errorf("CreationDate = %q, want %q", got, want)
	}
	if !strings.Contains(r.XMPPacket, "<xmp:CreateDate>2024-01-02T03:04:05Z</xmp:CreateDate>") {
		t.Error("XMP packet lacks xmp:CreateDate")
	}
	if !strings.Contains(r.XMPPacket, "&lt;Tags&gt;") {
		t.Error("XMP packet does not escape markup in values")
	}
}

func TestEmbed_AbsentFieldsAreOmitted(t *testing.T) {
	t.Parallel()

	rec := metadata.NewRecord(map[metadata.Field]string{metadata.Title: "Only a title"})
	out, err := Embed(classicPDF(t), rec)
	if err != nil {
		t.Fatalf("Embed() unexpected error: %v", err)
	}
	r, err := Inspect(out)
	if err != nil {
		t.Fatalf("Inspect() unexpected error: %v", err)
	}
	want := map[string]string{"Title": "Only a title"}
	if !maps.Equal(r.Info, want) {
		t.Errorf("Info = %v, want %v", r.Info, want)
	}
	if !maps.Equal(r.XMP, want) {
		t.Errorf("XMP = %v, want %v", r.XMP, want)
	}
}

func TestEmbed_Twice(t *testing.T) {
	t.Parallel()

	orig := classicPDF(t)
	first, err := Embed(orig, sampleRecord())
	if err != nil {
		t.Fatalf("first Embed() unexpected error: %v", err)
	}
	rec := metadata.NewRecord(map[metadata.Field]string{
		metadata.Title:  "Second Title",
		metadata.Author: "Someone Else",
	})
	second, err := Embed(first, rec)
	if err != nil {
		t.Fatalf("second Embed() unexpected error: %v", err)
	}
	if !bytes.HasPrefix(second, first) {
		t.Fatal("second update modified earlier bytes")
	}

	r, err := Inspect(second)
	if err != nil {
		t.Fatalf("Inspect() unexpected error: %v", err)
	}
	if want := byInfoKey(rec); !maps.Equal(r.InfoFields(), want) {
		t.Errorf("Info = %v, want newest record %v", r.InfoFields(), want)
	}
	if r.Updates != 3 {
		t.Errorf("Updates = %d, want 3", r.Updates)
	}
}

func TestEmbed_RepairsBrokenXRef(t *testing.T) {
	t.Parallel()

	orig := classicPDF(t)
	i := bytes.LastIndex(orig, []byte("startxref\n"))
	broken := append(append([]byte{}, orig[:i]...), []byte("startxref\n999999\n%%EOF\n")...)

	out, err := Embed(broken, sampleRecord())
	if err != nil {
		t.Fatalf("Embed() unexpected error: %v", err)
	}
	update := string(out[len(broken):])
	if strings.Contains(update, "/Prev") {
		t.Error("repaired update should not chain to a broken section")
	}
	r, err := Inspect(out)
	if err != nil {
		t.Fatalf("Inspect() unexpected error: %v", err)
	}
	if r.Info["Title"] != sampleRecord().Value(metadata.Title) {
		t.Errorf("Title = %q after repair", r.Info["Title"])
	}
}

func TestEmbed_AppendsNewlineWhenMissing(t *testing.T) {
	t.Parallel()

	orig := bytes.TrimRight(classicPDF(t), "\n")
	out, err := Embed(orig, sampleRecord())
	if err != nil {
		t.Fatalf("Embed() unexpected error: %v", err)
	}
	if out[len(orig)] != '\n' {
		t.Error("update does not start on a new line")
	}
}

func TestEmbed_Errors(t *testing.T) {
	t.Parallel()

	encrypted := bytes.Replace(classicPDF(t), []byte("/Root 1 0 R"), []byte("/Root 1 0 R /Encrypt 9 0 R"), 1)

	tests := []struct {
		name string
		pdf  []byte
	}{
		{"empty", nil},
		{"not a pdf", []byte("<html><body>nope</body></html>")},
		{"header only", []byte("%PDF-1.7\n")},
		{"no catalog", []byte("%PDF-1.4\n1 0 obj\n<< /Type /Pages >>\nendobj\n")},
		{"encrypted", encrypted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Embed(tt.pdf, sampleRecord())
			if !errors.Is(err, ErrEmbedFailure) {
				t.Errorf("Embed() error = %v, want ErrEmbedFailure", err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Object syntax
// ---------------------------------------------------------------------------

func TestTextString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		hex   bool
	}{
		{"ascii", "Plain (title)", false},
		{"latin", "Ünïcode", true},
		{"astral", "emoji 😀", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := textString(tt.input)
			var buf bytes.Buffer
			writeString(&buf, s)
			if got := buf.Bytes()[0] == '<'; got != tt.hex {
				t.Errorf("hex encoding = %v, want %v (%s)", got, tt.hex, buf.String())
			}

			l := &lexer{buf: buf.Bytes()}
			obj, err := l.readObject()
			if err != nil {
				t.Fatalf("readObject() unexpected error: %v", err)
			}
			if got := decodeText(obj.(pdfString)); got != tt.input {
				t.Errorf("round trip = %q, want %q", got, tt.input)
			}
		})
	}
}

func TestLexer_Objects(t *testing.T) {
	t.Parallel()

	l := &lexer{buf: []byte(`<< /Name#20Space (a\(b\)\n\101 (nested)) /Hex <48 65 6C6C 6F> ` +
		`/Arr [1 -2.5 3 0 R true null] % comment
/Ref 12 0 R >>`)}
	obj, err := l.readObject()
	if err != nil {
		t.Fatalf("readObject() unexpected error: %v", err)
	}
	d, ok := obj.(*pdfDict)
	if !ok {
		t.Fatalf("readObject() = %T, want dictionary", obj)
	}

	if got := string(d.get("Name Space").(pdfString)); got != "a(b)\nA (nested)" {
		t.Errorf("literal string = %q", got)
	}
	if got := string(d.get("Hex").(pdfString)); got != "Hello" {
		t.Errorf("hex string = %q", got)
	}
	arr := d.get("Arr").(pdfArray)
	if len(arr) != 5 {
		t.Fatalf("array length = %d, want 5 (%v)", len(arr), arr)
	}
	if arr[1] != pdfNumber("-2.5") {
		t.Errorf("arr[1] = %v", arr[1])
	}
	if arr[2] != (pdfRef{num: 3}) {
		t.Errorf("arr[2] = %v, want reference", arr[2])
	}
	if d.get("Ref") != (pdfRef{num: 12}) {
		t.Errorf("Ref = %v", d.get("Ref"))
	}
}

func TestLexer_NestingLimit(t *testing.T) {
	t.Parallel()

	l := &lexer{buf: []byte(strings.Repeat("[", maxNesting+2) + strings.Repeat("]", maxNesting+2))}
	if _, err := l.readObject(); !errors.Is(err, errSyntax) {
		t.Errorf("readObject() error = %v, want syntax error", err)
	}
}
