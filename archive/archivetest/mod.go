// Package archivetest synthesizes small archives for tests.
package archivetest

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/png"
)

type Frame struct {
	X, Y, Width, Height int
	Page                int
}

type Sprite struct {
	Name   string
	Frames []Frame
}

// RawChunk is written verbatim ahead of the generated sections.
type RawChunk struct {
	Tag     string
	Payload []byte
}

type Builder struct {
	Extra   []RawChunk
	Sprites []Sprite
	Pages   []image.Image
	Strings []string
}

// Layout records where the builder placed things, so tests can corrupt
// specific fields.
type Layout struct {
	SpriteSection  int64
	SpriteRecords  []int64
	FrameRecords   [][]int64
	NamePointers   map[string]uint32
	StringPointers []uint32
	TextureSection int64
	PageImages     []int64
	PagePNGs       [][]byte
}

type writer struct {
	buf bytes.Buffer
}

func (w *writer) pos() int64 {
	return int64(w.buf.Len())
}

func (w *writer) u32(v uint32) {
	binary.Write(&w.buf, binary.LittleEndian, v)
}

func (w *writer) u16(v uint16) {
	binary.Write(&w.buf, binary.LittleEndian, v)
}

func (w *writer) chunk(tag string, body func()) int64 {
	start := w.pos()
	w.buf.WriteString(tag)
	w.u32(0)
	body()
	binary.LittleEndian.PutUint32(w.buf.Bytes()[start+4:], uint32(w.pos()-start-8))
	return start + 8
}

// Build returns the archive bytes and the placement of its records.
func (b *Builder) Build() ([]byte, *Layout) {
	l := &Layout{NamePointers: map[string]uint32{}}
	w := &writer{}

	var strs []string
	seen := map[string]bool{}
	for _, s := range b.Sprites {
		if !seen[s.Name] {
			seen[s.Name] = true
			strs = append(strs, s.Name)
		}
	}
	strs = append(strs, b.Strings...)

	w.chunk("FORM", func() {
		for _, raw := range b.Extra {
			w.chunk(raw.Tag, func() {
				w.buf.Write(raw.Payload)
			})
		}

		w.chunk("STRG", func() {
			w.u32(uint32(len(strs)))
			off := w.pos() + 4*int64(len(strs))
			for _, s := range strs {
				w.u32(uint32(off))
				ptr := uint32(off + 4)
				if _, ok := l.NamePointers[s]; !ok {
					l.NamePointers[s] = ptr
				}
				l.StringPointers = append(l.StringPointers, ptr)
				off += 4 + int64(len(s)) + 1
			}
			for _, s := range strs {
				w.u32(uint32(len(s)))
				w.buf.WriteString(s)
				w.buf.WriteByte(0)
			}
		})
		l.StringPointers = l.StringPointers[len(l.StringPointers)-len(b.Strings):]

		var frames []Frame
		for _, s := range b.Sprites {
			frames = append(frames, s.Frames...)
		}
		var frameOffsets []int64
		w.chunk("TPAG", func() {
			w.u32(uint32(len(frames)))
			off := w.pos() + 4*int64(len(frames))
			for range frames {
				w.u32(uint32(off))
				frameOffsets = append(frameOffsets, off)
				off += 22
			}
			for _, f := range frames {
				w.u16(uint16(f.X))
				w.u16(uint16(f.Y))
				w.u16(uint16(f.Width))
				w.u16(uint16(f.Height))
				w.u16(0)
				w.u16(0)
				w.u16(uint16(f.Width))
				w.u16(uint16(f.Height))
				w.u16(uint16(f.Width))
				w.u16(uint16(f.Height))
				w.u16(uint16(f.Page))
			}
		})

		l.SpriteSection = w.chunk("SPRT", func() {
			w.u32(uint32(len(b.Sprites)))
			off := w.pos() + 4*int64(len(b.Sprites))
			for _, s := range b.Sprites {
				w.u32(uint32(off))
				l.SpriteRecords = append(l.SpriteRecords, off)
				off += 80 + 4*int64(len(s.Frames))
			}
			next := 0
			for _, s := range b.Sprites {
				var fields [20]uint32
				fields[0] = l.NamePointers[s.Name]
				fields[19] = uint32(len(s.Frames))
				for _, v := range fields {
					w.u32(v)
				}
				var recs []int64
				for range s.Frames {
					w.u32(uint32(frameOffsets[next]))
					recs = append(recs, frameOffsets[next])
					next++
				}
				l.FrameRecords = append(l.FrameRecords, recs)
			}
		})

		for _, img := range b.Pages {
			var buf bytes.Buffer
			if err := png.Encode(&buf, img); err != nil {
				panic(err)
			}
			l.PagePNGs = append(l.PagePNGs, buf.Bytes())
		}

		l.TextureSection = w.chunk("TXTR", func() {
			w.u32(uint32(len(b.Pages)))
			info := w.pos() + 4*int64(len(b.Pages))
			for range b.Pages {
				w.u32(uint32(info))
				info += 12
			}
			off := info
			for _, data := range l.PagePNGs {
				w.u32(1)
				w.u32(0)
				w.u32(uint32(off))
				l.PageImages = append(l.PageImages, off)
				off += int64(len(data))
			}
			for _, data := range l.PagePNGs {
				w.buf.Write(data)
			}
		})
	})

	return w.buf.Bytes(), l
}

// SolidPage returns a w×h opaque page filled with c.
func SolidPage(w, h int, c [4]uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		copy(img.Pix[i:i+4], c[:])
	}
	return img
}
