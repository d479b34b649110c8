package archive

import (
	"encoding/binary"
	"fmt"
)

// Tag is a four byte chunk magic.
type Tag [4]byte

func (t Tag) String() string {
	return string(t[:])
}

func (t Tag) isAlnum() bool {
	for _, c := range t {
		if !('0' <= c && c <= '9' || 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z') {
			return false
		}
	}
	return true
}

var (
	TagForm        = Tag{'F', 'O', 'R', 'M'}
	TagGeneral     = Tag{'G', 'E', 'N', '8'}
	TagSprites     = Tag{'S', 'P', 'R', 'T'}
	TagBackgrounds = Tag{'B', 'G', 'N', 'D'}
	TagPages       = Tag{'T', 'P', 'A', 'G'}
	TagStrings     = Tag{'S', 'T', 'R', 'G'}
	TagTextures    = Tag{'T', 'X', 'T', 'R'}
	TagAudio       = Tag{'A', 'U', 'D', 'O'}
	TagObjects     = Tag{'O', 'B', 'J', 'T'}
)

// Chunk is a tagged region of the archive.
type Chunk struct {
	Tag           Tag
	Offset        int64
	PayloadOffset int64
	PayloadSize   int64
}

// End is the offset one past the last payload byte.
func (c Chunk) End() int64 {
	return c.PayloadOffset + c.PayloadSize
}

// Size includes the 8 byte header.
func (c Chunk) Size() int64 {
	return c.End() - c.Offset
}

// Contains reports whether [off, off+n) lies inside the payload.
func (c Chunk) Contains(off, n int64) bool {
	return off >= c.PayloadOffset && n >= 0 && off+n <= c.End()
}

func (c Chunk) String() string {
	return fmt.Sprintf("%s@0x%08x+%d", c.Tag, c.Offset, c.PayloadSize)
}

// NextChunk reads the chunk header at cursor. The chunk must end at or
// before end, the end of the enclosing region.
func (a *Archive) NextChunk(cursor, end int64) (Chunk, error) {
	if end > a.Len() {
		return Chunk{}, formatErrorf(OutOfRange, cursor, "region end %d past archive end %d", end, a.Len())
	}
	if cursor+headerSize > end {
		return Chunk{}, formatErrorf(Truncated, cursor, "chunk header needs %d bytes, region has %d", headerSize, end-cursor)
	}

	var c Chunk
	copy(c.Tag[:], a.data[cursor:cursor+4])
	c.Offset = cursor
	c.PayloadOffset = cursor + headerSize
	c.PayloadSize = int64(binary.LittleEndian.Uint32(a.data[cursor+4 : cursor+8]))

	if c.End() > end {
		return Chunk{}, formatErrorf(OutOfRange, cursor, "%s chunk overflows enclosing region: payload end = %d, region end = %d", c.Tag, c.End(), end)
	}
	return c, nil
}

// Children reads the sequence of chunks filling parent's payload.
func (a *Archive) Children(parent Chunk) ([]Chunk, error) {
	var chunks []Chunk
	cursor := parent.PayloadOffset
	for cursor < parent.End() {
		c, err := a.NextChunk(cursor, parent.End())
		if err != nil {
			return nil, fmt.Errorf("%w while reading children of %s", err, parent.Tag)
		}
		chunks = append(chunks, c)
		cursor = c.End()
	}
	return chunks, nil
}

// Sections returns the top level chunks of the FORM container.
func (a *Archive) Sections() ([]Chunk, error) {
	return a.Children(a.root)
}

// SectionsByTag returns the top level chunks with the given tag, in order.
func (a *Archive) SectionsByTag(tag Tag) ([]Chunk, error) {
	sections, err := a.Sections()
	if err != nil {
		return nil, err
	}
	var out []Chunk
	for _, c := range sections {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out, nil
}

// nested returns the chunks inside c if its payload is exactly a sequence
// of alphanumeric-tagged chunks, and nil otherwise.
func (a *Archive) nested(c Chunk) []Chunk {
	var chunks []Chunk
	cursor := c.PayloadOffset
	for cursor < c.End() {
		child, err := a.NextChunk(cursor, c.End())
		if err != nil || !child.Tag.isAlnum() {
			return nil
		}
		chunks = append(chunks, child)
		cursor = child.End()
	}
	return chunks
}
