package archive

import (
	"fmt"
)

// Section is the typed view of a chunk, selected by its tag.
type Section interface {
	Chunk() Chunk
}

// SpriteTable lists absolute offsets of sprite records. Records themselves
// are decoded by package sprites.
type SpriteTable struct {
	chunk   Chunk
	Offsets []uint32
}

func (s *SpriteTable) Chunk() Chunk { return s.chunk }

// TextureEntry describes one embedded texture page image.
type TextureEntry struct {
	Index       int
	InfoOffset  int64
	Unknown1    uint32
	Unknown2    uint32
	ImageOffset int64
	ImageSize   int64
	Width       int
	Height      int
}

type TextureTable struct {
	chunk   Chunk
	Entries []TextureEntry
}

func (s *TextureTable) Chunk() Chunk { return s.chunk }

// StringEntry is one string of the string table. Pointer is the value other
// records use to refer to it.
type StringEntry struct {
	Index   int
	Offset  int64
	Pointer uint32
	Text    string
}

type StringTable struct {
	chunk   Chunk
	Entries []StringEntry
}

func (s *StringTable) Chunk() Chunk { return s.chunk }

// ByPointer maps string pointers to their text.
func (s *StringTable) ByPointer() map[uint32]string {
	m := make(map[uint32]string, len(s.Entries))
	for _, e := range s.Entries {
		m[e.Pointer] = e.Text
	}
	return m
}

// Opaque is any chunk without a dedicated decoder. Children is non-nil when
// the payload is itself a sequence of chunks.
type Opaque struct {
	chunk    Chunk
	Children []Chunk
}

func (s *Opaque) Chunk() Chunk { return s.chunk }

// ParseSection decodes c according to its tag.
func (a *Archive) ParseSection(c Chunk) (Section, error) {
	switch c.Tag {
	case TagSprites:
		return a.parseSpriteTable(c)
	case TagTextures:
		return a.parseTextureTable(c)
	case TagStrings:
		return a.parseStringTable(c)
	case TagGeneral:
		return a.parseGeneral(c)
	case TagBackgrounds:
		return a.parseBackgroundTable(c)
	case TagPages:
		return a.parsePageTable(c)
	case TagAudio:
		return a.parseAudioTable(c)
	case TagObjects:
		return a.parseObjectTable(c)
	case TagForm:
		children, err := a.Children(c)
		if err != nil {
			return nil, err
		}
		return &Opaque{chunk: c, Children: children}, nil
	}
	return &Opaque{chunk: c, Children: a.nested(c)}, nil
}

// offsetTable reads the count-prefixed u32 offset array that starts every
// list section.
func (a *Archive) offsetTable(c Chunk) ([]uint32, error) {
	if !c.Contains(c.PayloadOffset, 4) {
		return nil, formatErrorf(Truncated, c.PayloadOffset, "%s section too small for entry count", c.Tag)
	}
	count, err := a.U32At(c.PayloadOffset)
	if err != nil {
		return nil, err
	}
	if !c.Contains(c.PayloadOffset+4, int64(count)*4) {
		return nil, formatErrorf(OutOfRange, c.PayloadOffset, "%s offset table of %d entries overflows section", c.Tag, count)
	}
	return a.U32sAt(c.PayloadOffset+4, int(count))
}

func (a *Archive) parseSpriteTable(c Chunk) (*SpriteTable, error) {
	offsets, err := a.offsetTable(c)
	if err != nil {
		return nil, err
	}
	return &SpriteTable{chunk: c, Offsets: offsets}, nil
}

func (a *Archive) parseTextureTable(c Chunk) (*TextureTable, error) {
	offsets, err := a.offsetTable(c)
	if err != nil {
		return nil, err
	}

	t := &TextureTable{chunk: c, Entries: make([]TextureEntry, len(offsets))}
	for i, off := range offsets {
		infoOffset := int64(off)
		if !c.Contains(infoOffset, 12) {
			return nil, formatErrorf(OutOfRange, infoOffset, "illegal TXTR info offset for entry %d", i)
		}
		info, err := a.U32sAt(infoOffset, 3)
		if err != nil {
			return nil, err
		}

		imageOffset := int64(info[2])
		if imageOffset < c.PayloadOffset || imageOffset > c.End() {
			return nil, formatErrorf(OutOfRange, imageOffset, "illegal TXTR data offset for entry %d", i)
		}

		pi, err := ReadPNGInfo(a.data[imageOffset:c.End()])
		if err != nil {
			return nil, formatErrorf(OutOfRange, imageOffset, "PNG of entry %d overflows TXTR section end: %s", i, err)
		}

		t.Entries[i] = TextureEntry{
			Index:       i,
			InfoOffset:  infoOffset,
			Unknown1:    info[0],
			Unknown2:    info[1],
			ImageOffset: imageOffset,
			ImageSize:   pi.Size,
			Width:       pi.Width,
			Height:      pi.Height,
		}
	}
	return t, nil
}

func (a *Archive) parseStringTable(c Chunk) (*StringTable, error) {
	offsets, err := a.offsetTable(c)
	if err != nil {
		return nil, err
	}

	t := &StringTable{chunk: c, Entries: make([]StringEntry, len(offsets))}
	for i, off := range offsets {
		offset := int64(off)
		if !c.Contains(offset, 4) {
			return nil, formatErrorf(OutOfRange, offset, "illegal STRG offset for entry %d", i)
		}
		n, err := a.U32At(offset)
		if err != nil {
			return nil, err
		}
		if !c.Contains(offset+4, int64(n)) {
			return nil, formatErrorf(OutOfRange, offset, "string %d of %d bytes overflows STRG section", i, n)
		}
		text, err := a.StringAt(uint32(offset + 4))
		if err != nil {
			return nil, err
		}
		t.Entries[i] = StringEntry{Index: i, Offset: offset, Pointer: uint32(offset + 4), Text: text}
	}
	return t, nil
}

// Textures returns every texture page of the archive. Page ids are global
// indices across all TXTR sections, in archive order.
func (a *Archive) Textures() ([]TextureEntry, error) {
	sections, err := a.SectionsByTag(TagTextures)
	if err != nil {
		return nil, err
	}
	var entries []TextureEntry
	for _, c := range sections {
		t, err := a.parseTextureTable(c)
		if err != nil {
			return nil, err
		}
		for _, e := range t.Entries {
			e.Index = len(entries)
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// TextureData returns the embedded image bytes of a texture entry.
func (a *Archive) TextureData(e TextureEntry) ([]byte, error) {
	return a.ReadAt(e.ImageOffset, e.ImageSize)
}

// Strings returns the concatenation of all STRG sections.
func (a *Archive) Strings() ([]StringEntry, error) {
	sections, err := a.SectionsByTag(TagStrings)
	if err != nil {
		return nil, err
	}
	var entries []StringEntry
	for _, c := range sections {
		t, err := a.parseStringTable(c)
		if err != nil {
			return nil, fmt.Errorf("%w while reading string table", err)
		}
		for _, e := range t.Entries {
			e.Index = len(entries)
			entries = append(entries, e)
		}
	}
	return entries, nil
}
