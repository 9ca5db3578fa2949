// Package pdfmeta writes a resolved metadata record into an existing PDF
// as an incremental update and reads it back.
//
// The original bytes are never modified: the update appends a new Info
// dictionary, an XMP metadata stream, a copy of the document catalog that
// points at the stream, and a cross-reference section chained to the
// previous one with /Prev. Page content is untouched.
package pdfmeta

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/keenmouse/mht2pdf/internal/dateutil"
	"github.com/keenmouse/mht2pdf/internal/metadata"
)

// ErrEmbedFailure indicates the PDF could not be updated.
var ErrEmbedFailure = errors.New("metadata embedding failed")

// headerWindow is how far into the file the %PDF- marker may appear.
const headerWindow = 1024

// Embed returns pdf with rec appended as Info dictionary and XMP packet.
func Embed(pdf []byte, rec metadata.Record) ([]byte, error) {
	if !bytes.Contains(pdf[:min(len(pdf), headerWindow)], []byte("%PDF-")) {
		return nil, fmt.Errorf("%w: missing %%PDF- header", ErrEmbedFailure)
	}
	d, err := load(pdf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedFailure, err)
	}
	if d.trailer.get("Encrypt") != nil {
		return nil, fmt.Errorf("%w: encrypted documents are not supported", ErrEmbedFailure)
	}
	rootRef, catalog, err := d.catalog()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedFailure, err)
	}

	info, err := infoDict(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedFailure, err)
	}

	size := d.size()
	infoRef := pdfRef{num: size}
	xmpRef := pdfRef{num: size + 1}

	w := &updateWriter{}
	w.Write(pdf)
	if last := pdf[len(pdf)-1]; last != '\n' && last != '\r' {
		w.WriteByte('\n')
	}

	w.object(infoRef, info)

	packet := buildXMP(rec)
	xmpDict := newDict()
	xmpDict.set("Type", pdfName("Metadata"))
	xmpDict.set("Subtype", pdfName("XML"))
	w.stream(xmpRef, xmpDict, packet)

	cat := catalog.clone()
	cat.set("Metadata", xmpRef)
	w.object(rootRef, cat)

	trailer := newDict()
	trailer.set("Root", rootRef)
	trailer.set("Info", infoRef)
	if !d.repaired {
		trailer.set("Prev", pdfNumber(fmt.Sprint(d.startXRef)))
	}
	if id := d.trailer.get("ID"); id != nil {
		trailer.set("ID", id)
	}

	if d.xrefStream && !d.repaired {
		w.xrefStream(size+2, trailer)
	} else {
		trailer.set("Size", pdfNumber(fmt.Sprint(size+2)))
		w.xrefTable(trailer)
	}
	return w.Bytes(), nil
}

// infoDict maps every present record field to its Info key. Dates use PDF
// date syntax for the same instant.
func infoDict(rec metadata.Record) (*pdfDict, error) {
	info := newDict()
	var err error
	rec.Each(func(f metadata.Field, v string) {
		if err != nil {
			return
		}
		if f.IsDate() {
			v, err = dateutil.CanonicalToPDF(v)
			if err != nil {
				err = fmt.Errorf("%s: %w", f, err)
				return
			}
		}
		info.set(pdfName(f.InfoKey()), textString(v))
	})
	return info, err
}

// ---------------------------------------------------------------------------
// Update writer
// ---------------------------------------------------------------------------

type updateWriter struct {
	bytes.Buffer
	offsets map[int]int64
	gens    map[int]int
}

func (w *updateWriter) begin(ref pdfRef) {
	if w.offsets == nil {
		w.offsets = make(map[int]int64)
		w.gens = make(map[int]int)
	}
	w.offsets[ref.num] = int64(w.Len())
	w.gens[ref.num] = ref.gen
	fmt.Fprintf(w, "%d %d obj\n", ref.num, ref.gen)
}

func (w *updateWriter) object(ref pdfRef, obj any) {
	w.begin(ref)
	writeObject(&w.Buffer, obj)
	w.WriteString("\nendobj\n")
}

func (w *updateWriter) stream(ref pdfRef, dict *pdfDict, data []byte) {
	dict = dict.clone()
	dict.set("Length", pdfNumber(fmt.Sprint(len(data))))
	w.begin(ref)
	writeObject(&w.Buffer, dict)
	w.WriteString("\nstream\n")
	w.Write(data)
	w.WriteString("\nendstream\nendobj\n")
}

// subsections groups the written object numbers into contiguous runs.
func (w *updateWriter) subsections() [][]int {
	nums := make([]int, 0, len(w.offsets))
	for num := range w.offsets {
		nums = append(nums, num)
	}
	slices.Sort(nums)

	var out [][]int
	for _, num := range nums {
		if n := len(out); n > 0 && out[n-1][len(out[n-1])-1]+1 == num {
			out[n-1] = append(out[n-1], num)
			continue
		}
		out = append(out, []int{num})
	}
	return out
}

func (w *updateWriter) xrefTable(trailer *pdfDict) {
	start := w.Len()
	w.WriteString("xref\n")
	for _, run := range w.subsections() {
		fmt.Fprintf(w, "%d %d\n", run[0], len(run))
		for _, num := range run {
			fmt.Fprintf(w, "%010d %05d n \n", w.offsets[num], w.gens[num])
		}
	}
	w.WriteString("trailer\n")
	writeObject(&w.Buffer, trailer)
	fmt.Fprintf(w, "\nstartxref\n%d\n%%%%EOF\n", start)
}

// xrefStream writes an uncompressed cross-reference stream as object num.
func (w *updateWriter) xrefStream(num int, trailer *pdfDict) {
	start := int64(w.Len())
	w.offsets[num] = start
	w.gens[num] = 0

	offWidth := 4
	for _, off := range w.offsets {
		if off >= 1<<32 {
			offWidth = 8
		}
	}

	var index pdfArray
	var rows []byte
	for _, run := range w.subsections() {
		index = append(index, pdfNumber(fmt.Sprint(run[0])), pdfNumber(fmt.Sprint(len(run))))
		for _, n := range run {
			rows = append(rows, 1)
			rows = appendBE(rows, uint64(w.offsets[n]), offWidth)
			rows = appendBE(rows, uint64(w.gens[n]), 2)
		}
	}

	dict := newDict()
	dict.set("Type", pdfName("XRef"))
	dict.set("Size", pdfNumber(fmt.Sprint(num+1)))
	dict.set("W", pdfArray{pdfNumber("1"), pdfNumber(fmt.Sprint(offWidth)), pdfNumber("2")})
	dict.set("Index", index)
	for _, k := range trailer.keys {
		dict.set(k, trailer.vals[k])
	}
	dict.set("Length", pdfNumber(fmt.Sprint(len(rows))))

	fmt.Fprintf(w, "%d 0 obj\n", num)
	writeObject(&w.Buffer, dict)
	w.WriteString("\nstream\n")
	w.Write(rows)
	fmt.Fprintf(w, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", start)
}

func appendBE(b []byte, v uint64, width int) []byte {
	for i := width - 1; i >= 0; i-- {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}
