package archive

import (
	"fmt"
	"unicode/utf8"
)

// GeneralNameFields are the GEN8 fields holding string pointers.
var GeneralNameFields = []int{1, 2, 10, 25}

// General is the GEN8 header section, a flat array of u32 fields.
type General struct {
	chunk  Chunk
	Fields []uint32

	// Names holds the text of every name field that resolves to a string.
	Names map[int]string
}

func (s *General) Chunk() Chunk { return s.chunk }

// Span is an entry of a list section. Size runs to the next entry, or to
// the section end for the last one.
type Span struct {
	Offset int64
	Size   int64
}

func spans(c Chunk, offsets []uint32) []Span {
	out := make([]Span, len(offsets))
	for i, off := range offsets {
		end := c.End()
		if i+1 < len(offsets) {
			end = int64(offsets[i+1])
		}
		out[i] = Span{Offset: int64(off), Size: end - int64(off)}
	}
	return out
}

const (
	backgroundFields = 5
	pageFields       = 11
)

type Background struct {
	Span
	Fields [backgroundFields]uint32
	Name   string
}

type BackgroundTable struct {
	chunk   Chunk
	Entries []Background
}

func (s *BackgroundTable) Chunk() Chunk { return s.chunk }

// PageRecord is a raw TPAG record. The first four fields are the frame
// rect and the last one is the texture page id.
type PageRecord struct {
	Span
	Fields [pageFields]uint16
}

type PageTable struct {
	chunk   Chunk
	Entries []PageRecord

	listed map[int64]bool
}

func (s *PageTable) Chunk() Chunk { return s.chunk }

// Lists reports whether off is one of the records of the table.
func (s *PageTable) Lists(off int64) bool {
	return s.listed[off]
}

// AudioEntry is an embedded sound file. Offset points at the file data,
// right after its u32 size field.
type AudioEntry struct {
	Offset int64
	Size   int64
	Magic  string
}

type AudioTable struct {
	chunk   Chunk
	Entries []AudioEntry
}

func (s *AudioTable) Chunk() Chunk { return s.chunk }

type ObjectTable struct {
	chunk   Chunk
	Entries []Span
}

func (s *ObjectTable) Chunk() Chunk { return s.chunk }

func (a *Archive) parseGeneral(c Chunk) (*General, error) {
	fields, err := a.U32sAt(c.PayloadOffset, int(c.PayloadSize/4))
	if err != nil {
		return nil, err
	}

	g := &General{chunk: c, Fields: fields, Names: map[int]string{}}
	for _, i := range GeneralNameFields {
		if i >= len(fields) {
			continue
		}
		// Fields of older versions may not hold a pointer at all.
		if s, err := a.StringAt(fields[i]); err == nil {
			g.Names[i] = s
		}
	}
	return g, nil
}

func (a *Archive) parseBackgroundTable(c Chunk) (*BackgroundTable, error) {
	offsets, err := a.offsetTable(c)
	if err != nil {
		return nil, err
	}

	t := &BackgroundTable{chunk: c, Entries: make([]Background, len(offsets))}
	for i, sp := range spans(c, offsets) {
		if !c.Contains(sp.Offset, backgroundFields*4) {
			return nil, formatErrorf(OutOfRange, sp.Offset, "BGND record %d lies outside section", i)
		}
		fields, err := a.U32sAt(sp.Offset, backgroundFields)
		if err != nil {
			return nil, err
		}
		name, err := a.StringAt(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%w while resolving name of BGND record %d", err, i)
		}

		e := Background{Span: sp, Name: name}
		copy(e.Fields[:], fields)
		t.Entries[i] = e
	}
	return t, nil
}

func (a *Archive) parsePageTable(c Chunk) (*PageTable, error) {
	offsets, err := a.offsetTable(c)
	if err != nil {
		return nil, err
	}

	t := &PageTable{chunk: c, Entries: make([]PageRecord, len(offsets)), listed: make(map[int64]bool, len(offsets))}
	for i, sp := range spans(c, offsets) {
		if !c.Contains(sp.Offset, pageFields*2) {
			return nil, formatErrorf(OutOfRange, sp.Offset, "TPAG record %d lies outside section", i)
		}

		e := PageRecord{Span: sp}
		for j := range e.Fields {
			if e.Fields[j], err = a.U16At(sp.Offset + int64(j)*2); err != nil {
				return nil, err
			}
		}
		t.Entries[i] = e
		t.listed[sp.Offset] = true
	}
	return t, nil
}

func (a *Archive) parseAudioTable(c Chunk) (*AudioTable, error) {
	offsets, err := a.offsetTable(c)
	if err != nil {
		return nil, err
	}

	t := &AudioTable{chunk: c, Entries: make([]AudioEntry, len(offsets))}
	for i, off := range offsets {
		offset := int64(off)
		if !c.Contains(offset, 4) {
			return nil, formatErrorf(OutOfRange, offset, "illegal AUDO offset for entry %d", i)
		}
		size, err := a.U32At(offset)
		if err != nil {
			return nil, err
		}
		if !c.Contains(offset+4, int64(size)) {
			return nil, formatErrorf(OutOfRange, offset, "sound %d of %d bytes overflows AUDO section", i, size)
		}

		magic, err := a.ReadAt(offset+4, min(4, int64(size)))
		if err != nil {
			return nil, err
		}
		t.Entries[i] = AudioEntry{Offset: offset + 4, Size: int64(size), Magic: string(magic)}
	}
	return t, nil
}

func (a *Archive) parseObjectTable(c Chunk) (*ObjectTable, error) {
	offsets, err := a.offsetTable(c)
	if err != nil {
		return nil, err
	}
	return &ObjectTable{chunk: c, Entries: spans(c, offsets)}, nil
}

// Preview returns the first line of the text, cut to n runes. An ellipsis
// marks anything left out.
func (e StringEntry) Preview(n int) string {
	line := e.Text
	more := false
	for i, r := range line {
		if r == '\n' {
			line, more = line[:i], true
			break
		}
	}
	if utf8.RuneCountInString(line) > n {
		cut := 0
		for i := 0; i < n; i++ {
			_, size := utf8.DecodeRuneInString(line[cut:])
			cut += size
		}
		line, more = line[:cut], true
	}
	if more {
		line += "…"
	}
	return line
}
