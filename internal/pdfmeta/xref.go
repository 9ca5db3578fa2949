package pdfmeta

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
)

type entryKind uint8

const (
	entryFree entryKind = iota
	entryOffset
	entryCompressed
)

// xrefEntry locates one object. For compressed objects offset holds the
// object stream number and gen the index inside it.
type xrefEntry struct {
	kind   entryKind
	offset int64
	gen    int
}

type objectStream struct {
	data  []byte
	first int64
	nums  []int
	offs  []int64
}

// document is a read-only view of a PDF: its merged cross-reference
// entries (newest section wins) and its newest trailer.
type document struct {
	buf        []byte
	entries    map[int]xrefEntry
	trailer    *pdfDict
	startXRef  int64
	xrefStream bool
	repaired   bool
	sections   int
	objStms    map[int]*objectStream
	resolving  map[int]bool
}

func newDocument(buf []byte) *document {
	return &document{
		buf:       buf,
		entries:   make(map[int]xrefEntry),
		objStms:   make(map[int]*objectStream),
		resolving: make(map[int]bool),
	}
}

// load reads the cross-reference chain of buf. When the chain is missing
// or broken, objects are located by scanning the file instead.
func load(buf []byte) (*document, error) {
	d := newDocument(buf)
	off, err := findStartXRef(buf)
	if err == nil {
		d.startXRef = off
		err = d.readSections(off)
	}
	if err == nil {
		_, _, err = d.catalog()
	}
	if err != nil {
		d = newDocument(buf)
		if rerr := d.repair(); rerr != nil {
			return nil, fmt.Errorf("%v; scanning for objects: %w", err, rerr)
		}
	}
	return d, nil
}

func findStartXRef(buf []byte) (int64, error) {
	i := bytes.LastIndex(buf, []byte("startxref"))
	if i < 0 {
		return 0, errors.New("startxref not found")
	}
	l := &lexer{buf: buf, pos: i + len("startxref")}
	off, err := l.readInt()
	if err != nil {
		return 0, fmt.Errorf("reading startxref: %w", err)
	}
	if off <= 0 || off >= int64(len(buf)) {
		return 0, fmt.Errorf("startxref offset %d out of range", off)
	}
	return off, nil
}

func (d *document) readSections(start int64) error {
	seen := make(map[int64]bool)
	for off := start; !seen[off]; {
		seen[off] = true
		entries, trailer, isStream, err := d.readSection(off)
		if err != nil {
			return err
		}
		if d.trailer == nil {
			d.trailer = trailer
			d.xrefStream = isStream
		}
		d.sections++
		for num, e := range entries {
			if _, ok := d.entries[num]; !ok {
				d.entries[num] = e
			}
		}

		prev, ok := trailer.integer("Prev")
		if !ok {
			return nil
		}
		off = prev
	}
	return nil
}

func (d *document) readSection(off int64) (map[int]xrefEntry, *pdfDict, bool, error) {
	if off < 0 || off >= int64(len(d.buf)) {
		return nil, nil, false, fmt.Errorf("xref offset %d out of range", off)
	}
	l := &lexer{buf: d.buf, pos: int(off)}
	l.skipSpace()
	if !bytes.HasPrefix(d.buf[l.pos:], []byte("xref")) {
		entries, trailer, err := d.readXRefStream(off)
		return entries, trailer, true, err
	}

	entries, trailer, err := d.readClassic(l)
	if err != nil {
		return nil, nil, false, err
	}
	// Hybrid files list compressed objects in a side stream.
	if x, ok := trailer.integer("XRefStm"); ok {
		if extra, _, err := d.readXRefStream(x); err == nil {
			for num, e := range extra {
				if cur, ok := entries[num]; !ok || cur.kind == entryFree {
					entries[num] = e
				}
			}
		}
	}
	return entries, trailer, false, nil
}

func (d *document) readClassic(l *lexer) (map[int]xrefEntry, *pdfDict, error) {
	l.pos += len("xref")
	entries := make(map[int]xrefEntry)
	for {
		word := l.readKeyword()
		if word == "trailer" {
			obj, err := l.readObject()
			if err != nil {
				return nil, nil, fmt.Errorf("reading trailer: %w", err)
			}
			trailer, ok := obj.(*pdfDict)
			if !ok {
				return nil, nil, errors.New("trailer is not a dictionary")
			}
			return entries, trailer, nil
		}

		start, err := strconv.Atoi(word)
		if err != nil {
			return nil, nil, l.errorf("expected xref subsection, got %q", word)
		}
		count, err := l.readInt()
		if err != nil || count < 0 || count > int64(len(d.buf)) {
			return nil, nil, l.errorf("invalid xref subsection size")
		}
		for i := 0; i < int(count); i++ {
			offWord, genWord, typ := l.readKeyword(), l.readKeyword(), l.readKeyword()
			o, err1 := strconv.ParseInt(offWord, 10, 64)
			g, err2 := strconv.Atoi(genWord)
			if err1 != nil || err2 != nil {
				return nil, nil, l.errorf("malformed xref entry")
			}
			switch typ {
			case "n":
				entries[start+i] = xrefEntry{kind: entryOffset, offset: o, gen: g}
			case "f":
				entries[start+i] = xrefEntry{kind: entryFree}
			default:
				return nil, nil, l.errorf("malformed xref entry type %q", typ)
			}
		}
	}
}

func (d *document) readXRefStream(off int64) (map[int]xrefEntry, *pdfDict, error) {
	_, obj, err := d.readIndirect(off)
	if err != nil {
		return nil, nil, err
	}
	s, ok := obj.(*pdfStream)
	if !ok || s.dict.name("Type") != "XRef" {
		return nil, nil, fmt.Errorf("object at offset %d is not a cross-reference stream", off)
	}
	data, err := d.decode(s)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding xref stream: %w", err)
	}

	w, ok := intArray(s.dict.get("W"))
	if !ok || len(w) != 3 {
		return nil, nil, errors.New("xref stream has no valid /W")
	}
	for _, n := range w {
		if n < 0 || n > 8 {
			return nil, nil, fmt.Errorf("xref stream field width %d unsupported", n)
		}
	}
	size, _ := s.dict.integer("Size")
	index := []int64{0, size}
	if v, ok := intArray(s.dict.get("Index")); ok && len(v)%2 == 0 {
		index = v
	}

	rowLen := int(w[0] + w[1] + w[2])
	entries := make(map[int]xrefEntry)
	pos := 0
	for i := 0; i < len(index); i += 2 {
		start, count := index[i], index[i+1]
		for j := int64(0); j < count; j++ {
			if pos+rowLen > len(data) {
				return nil, nil, errors.New("xref stream truncated")
			}
			row := data[pos : pos+rowLen]
			pos += rowLen

			typ := int64(1)
			if w[0] > 0 {
				typ = beInt(row[:w[0]])
			}
			f2 := beInt(row[w[0] : w[0]+w[1]])
			f3 := beInt(row[w[0]+w[1]:])
			num := int(start + j)
			switch typ {
			case 0:
				entries[num] = xrefEntry{kind: entryFree}
			case 1:
				entries[num] = xrefEntry{kind: entryOffset, offset: f2, gen: int(f3)}
			case 2:
				entries[num] = xrefEntry{kind: entryCompressed, offset: f2, gen: int(f3)}
			}
		}
	}
	return entries, s.dict, nil
}

func beInt(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

func intArray(v any) ([]int64, bool) {
	arr, ok := v.(pdfArray)
	if !ok {
		return nil, false
	}
	out := make([]int64, len(arr))
	for i, item := range arr {
		n, ok := item.(pdfNumber)
		if !ok {
			return nil, false
		}
		x, err := strconv.ParseInt(string(n), 10, 64)
		if err != nil {
			return nil, false
		}
		out[i] = x
	}
	return out, true
}

// ---------------------------------------------------------------------------
// Objects
// ---------------------------------------------------------------------------

// readIndirect parses "num gen obj ..." at off, including stream data.
func (d *document) readIndirect(off int64) (pdfRef, any, error) {
	if off < 0 || off >= int64(len(d.buf)) {
		return pdfRef{}, nil, fmt.Errorf("object offset %d out of range", off)
	}
	l := &lexer{buf: d.buf, pos: int(off)}
	num, err := l.readInt()
	if err != nil {
		return pdfRef{}, nil, err
	}
	gen, err := l.readInt()
	if err != nil {
		return pdfRef{}, nil, err
	}
	if kw := l.readKeyword(); kw != "obj" {
		return pdfRef{}, nil, l.errorf("expected obj, got %q", kw)
	}
	ref := pdfRef{num: int(num), gen: int(gen)}

	obj, err := l.readObject()
	if err != nil {
		return pdfRef{}, nil, fmt.Errorf("object %d: %w", num, err)
	}
	dict, ok := obj.(*pdfDict)
	if !ok {
		return ref, obj, nil
	}
	save := l.pos
	if l.readKeyword() != "stream" {
		l.pos = save
		return ref, dict, nil
	}
	data, err := d.streamData(l, dict)
	if err != nil {
		return pdfRef{}, nil, fmt.Errorf("object %d: %w", num, err)
	}
	return ref, &pdfStream{dict: dict, data: data}, nil
}

func (d *document) streamData(l *lexer, dict *pdfDict) ([]byte, error) {
	if l.peek(0) == '\r' {
		l.pos++
	}
	if l.peek(0) == '\n' {
		l.pos++
	}
	start := l.pos

	if n, ok := d.streamLength(dict); ok && n >= 0 && start+n <= len(d.buf) {
		end := start + n
		t := &lexer{buf: d.buf, pos: end}
		if t.readKeyword() == "endstream" {
			return d.buf[start:end], nil
		}
	}

	// Wrong or missing /Length: trust the endstream keyword.
	i := bytes.Index(d.buf[start:], []byte("endstream"))
	if i < 0 {
		return nil, errors.New("unterminated stream")
	}
	end := start + i
	if end > start && d.buf[end-1] == '\n' {
		end--
	}
	if end > start && d.buf[end-1] == '\r' {
		end--
	}
	return d.buf[start:end], nil
}

func (d *document) streamLength(dict *pdfDict) (int, bool) {
	v := dict.get("Length")
	if ref, ok := v.(pdfRef); ok {
		obj, err := d.resolve(ref)
		if err != nil {
			return 0, false
		}
		v = obj
	}
	n, ok := v.(pdfNumber)
	if !ok {
		return 0, false
	}
	x, err := strconv.Atoi(string(n))
	return x, err == nil
}

// resolve returns the object ref points to. Unknown and free objects are
// null.
func (d *document) resolve(ref pdfRef) (any, error) {
	if d.resolving[ref.num] {
		return nil, fmt.Errorf("object %d refers to itself", ref.num)
	}
	d.resolving[ref.num] = true
	defer delete(d.resolving, ref.num)

	e, ok := d.entries[ref.num]
	if !ok {
		return pdfNull{}, nil
	}
	switch e.kind {
	case entryOffset:
		got, obj, err := d.readIndirect(e.offset)
		if err != nil {
			return nil, err
		}
		if got.num != ref.num {
			return nil, fmt.Errorf("xref entry for object %d points at object %d", ref.num, got.num)
		}
		return obj, nil
	case entryCompressed:
		return d.compressed(int(e.offset), e.gen, ref.num)
	}
	return pdfNull{}, nil
}

// deref follows references until a direct object is reached.
func (d *document) deref(v any) (any, error) {
	for range maxNesting {
		ref, ok := v.(pdfRef)
		if !ok {
			return v, nil
		}
		obj, err := d.resolve(ref)
		if err != nil {
			return nil, err
		}
		v = obj
	}
	return nil, errors.New("reference chain too long")
}

func (d *document) catalog() (pdfRef, *pdfDict, error) {
	ref, ok := d.trailer.get("Root").(pdfRef)
	if !ok {
		return pdfRef{}, nil, errors.New("trailer has no /Root reference")
	}
	obj, err := d.resolve(ref)
	if err != nil {
		return pdfRef{}, nil, fmt.Errorf("reading catalog: %w", err)
	}
	dict, ok := obj.(*pdfDict)
	if !ok {
		return pdfRef{}, nil, fmt.Errorf("catalog object %d is not a dictionary", ref.num)
	}
	return ref, dict, nil
}

// size is the first object number free for new objects.
func (d *document) size() int {
	n, _ := d.trailer.integer("Size")
	for num := range d.entries {
		if int64(num)+1 > n {
			n = int64(num) + 1
		}
	}
	return int(n)
}

// ---------------------------------------------------------------------------
// Object streams
// ---------------------------------------------------------------------------

func (d *document) compressed(stmNum, index, num int) (any, error) {
	stm, err := d.objectStream(stmNum)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(stm.nums) || stm.nums[index] != num {
		index = slices.Index(stm.nums, num)
		if index < 0 {
			return nil, fmt.Errorf("object %d not found in object stream %d", num, stmNum)
		}
	}
	l := &lexer{buf: stm.data, pos: int(stm.first + stm.offs[index])}
	if l.pos >= len(stm.data) {
		return nil, fmt.Errorf("object %d offset outside object stream %d", num, stmNum)
	}
	return l.readObject()
}

func (d *document) objectStream(num int) (*objectStream, error) {
	if stm, ok := d.objStms[num]; ok {
		return stm, nil
	}
	obj, err := d.resolve(pdfRef{num: num})
	if err != nil {
		return nil, err
	}
	s, ok := obj.(*pdfStream)
	if !ok || s.dict.name("Type") != "ObjStm" {
		return nil, fmt.Errorf("object %d is not an object stream", num)
	}
	data, err := d.decode(s)
	if err != nil {
		return nil, fmt.Errorf("decoding object stream %d: %w", num, err)
	}
	n, _ := s.dict.integer("N")
	first, _ := s.dict.integer("First")
	if n < 0 || first < 0 || first > int64(len(data)) {
		return nil, fmt.Errorf("object stream %d has an invalid header", num)
	}

	stm := &objectStream{data: data, first: first}
	l := &lexer{buf: data[:first]}
	for range n {
		objNum, err := l.readInt()
		if err != nil {
			return nil, fmt.Errorf("object stream %d header: %w", num, err)
		}
		off, err := l.readInt()
		if err != nil {
			return nil, fmt.Errorf("object stream %d header: %w", num, err)
		}
		stm.nums = append(stm.nums, int(objNum))
		stm.offs = append(stm.offs, off)
	}
	d.objStms[num] = stm
	return stm, nil
}

// ---------------------------------------------------------------------------
// Stream filters
// ---------------------------------------------------------------------------

func (d *document) decode(s *pdfStream) ([]byte, error) {
	filterObj, err := d.deref(s.dict.get("Filter"))
	if err != nil {
		return nil, err
	}
	parmsObj, err := d.deref(s.dict.get("DecodeParms"))
	if err != nil {
		return nil, err
	}

	var filters []pdfName
	var parms []*pdfDict
	switch f := filterObj.(type) {
	case pdfName:
		filters = []pdfName{f}
		p, _ := parmsObj.(*pdfDict)
		parms = []*pdfDict{p}
	case pdfArray:
		pa, _ := parmsObj.(pdfArray)
		for i, item := range f {
			name, _ := item.(pdfName)
			filters = append(filters, name)
			var p *pdfDict
			if i < len(pa) {
				p, _ = pa[i].(*pdfDict)
			}
			parms = append(parms, p)
		}
	}

	data := s.data
	for i, f := range filters {
		switch f {
		case "FlateDecode", "Fl":
			r, err := zlib.NewReader(bytes.NewReader(data))
			if err != nil {
				return nil, err
			}
			out, err := io.ReadAll(r)
			if err != nil && len(out) == 0 {
				return nil, err
			}
			data, err = unpredict(out, parms[i])
			if err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unsupported stream filter /%s", f)
		}
	}
	return data, nil
}

// unpredict reverses PNG predictors applied before compression.
func unpredict(data []byte, parms *pdfDict) ([]byte, error) {
	pred, ok := parms.integer("Predictor")
	if !ok || pred <= 1 {
		return data, nil
	}
	if pred < 10 {
		return nil, fmt.Errorf("unsupported predictor %d", pred)
	}
	cols := intOr(parms, "Columns", 1)
	colors := intOr(parms, "Colors", 1)
	bpc := intOr(parms, "BitsPerComponent", 8)
	bpp := max(1, colors*bpc/8)
	rowLen := (colors*bpc*cols + 7) / 8

	out := make([]byte, 0, len(data))
	prev := make([]byte, rowLen)
	for len(data) > 0 {
		if len(data) < rowLen+1 {
			return nil, errors.New("predicted data truncated")
		}
		typ := data[0]
		row := append([]byte(nil), data[1:rowLen+1]...)
		data = data[rowLen+1:]

		switch typ {
		case 0:
		case 1:
			for i := bpp; i < rowLen; i++ {
				row[i] += row[i-bpp]
			}
		case 2:
			for i := range row {
				row[i] += prev[i]
			}
		case 3:
			for i := range row {
				var left byte
				if i >= bpp {
					left = row[i-bpp]
				}
				row[i] += byte((int(left) + int(prev[i])) / 2)
			}
		case 4:
			for i := range row {
				var left, upLeft byte
				if i >= bpp {
					left, upLeft = row[i-bpp], prev[i-bpp]
				}
				row[i] += paeth(left, prev[i], upLeft)
			}
		default:
			return nil, fmt.Errorf("invalid PNG row filter %d", typ)
		}
		out = append(out, row...)
		prev = row
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func intOr(d *pdfDict, k pdfName, def int) int {
	if v, ok := d.integer(k); ok && v > 0 {
		return int(v)
	}
	return def
}

// ---------------------------------------------------------------------------
// Repair
// ---------------------------------------------------------------------------

var objHeader = regexp.MustCompile(`(\d{1,10})[\s\x00]+(\d{1,5})[\s\x00]+obj\b`)

// repair rebuilds the object table by scanning for "num gen obj" headers
// and synthesizes a trailer when none survives.
func (d *document) repair() error {
	d.repaired = true
	for _, m := range objHeader.FindAllSubmatchIndex(d.buf, -1) {
		if m[0] > 0 && d.buf[m[0]-1] >= '0' && d.buf[m[0]-1] <= '9' {
			continue
		}
		num, err1 := strconv.Atoi(string(d.buf[m[2]:m[3]]))
		gen, err2 := strconv.Atoi(string(d.buf[m[4]:m[5]]))
		if err1 != nil || err2 != nil {
			continue
		}
		d.entries[num] = xrefEntry{kind: entryOffset, offset: int64(m[0]), gen: gen}
	}
	if len(d.entries) == 0 {
		return errors.New("no objects found")
	}

	if i := bytes.LastIndex(d.buf, []byte("trailer")); i >= 0 {
		l := &lexer{buf: d.buf, pos: i + len("trailer")}
		if obj, err := l.readObject(); err == nil {
			if t, ok := obj.(*pdfDict); ok {
				if _, ok := t.get("Root").(pdfRef); ok {
					d.trailer = t
				}
			}
		}
	}

	nums := make([]int, 0, len(d.entries))
	for num := range d.entries {
		nums = append(nums, num)
	}
	slices.Sort(nums)

	var xrefTrailer *pdfDict
	var xrefAt int64 = -1
	for _, num := range nums {
		e := d.entries[num]
		_, obj, err := d.readIndirect(e.offset)
		if err != nil {
			continue
		}
		s, ok := obj.(*pdfStream)
		if !ok {
			continue
		}
		switch s.dict.name("Type") {
		case "ObjStm":
			d.indexObjectStream(num)
		case "XRef":
			if _, ok := s.dict.get("Root").(pdfRef); ok && e.offset > xrefAt {
				xrefTrailer, xrefAt = s.dict, e.offset
			}
		}
	}

	if d.trailer == nil && xrefTrailer != nil {
		t := newDict()
		for _, k := range []pdfName{"Root", "Info", "ID"} {
			if v := xrefTrailer.get(k); v != nil {
				t.set(k, v)
			}
		}
		d.trailer = t
	}
	if d.trailer == nil {
		ref, ok := d.findCatalog()
		if !ok {
			return errors.New("document catalog not found")
		}
		d.trailer = newDict()
		d.trailer.set("Root", ref)
	}
	_, _, err := d.catalog()
	return err
}

func (d *document) indexObjectStream(num int) {
	stm, err := d.objectStream(num)
	if err != nil {
		return
	}
	for i, n := range stm.nums {
		if _, ok := d.entries[n]; !ok {
			d.entries[n] = xrefEntry{kind: entryCompressed, offset: int64(num), gen: i}
		}
	}
}

func (d *document) findCatalog() (pdfRef, bool) {
	nums := make([]int, 0, len(d.entries))
	for num := range d.entries {
		nums = append(nums, num)
	}
	slices.Sort(nums)
	for _, num := range slices.Backward(nums) {
		obj, err := d.resolve(pdfRef{num: num})
		if err != nil {
			continue
		}
		if dict, ok := obj.(*pdfDict); ok && dict.name("Type") == "Catalog" {
			ref := pdfRef{num: num}
			if e := d.entries[num]; e.kind == entryOffset {
				ref.gen = e.gen
			}
			return ref, true
		}
	}
	return pdfRef{}, false
}
