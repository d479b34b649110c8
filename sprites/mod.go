// Package sprites correlates sprite records with the texture pages their
// frames are packed onto.
package sprites

import (
	"encoding/binary"
	"fmt"
	"image"
	"sort"

	"github.com/nbarena/gmpatch/archive"
)

const (
	recordFields = 20
	recordSize   = recordFields * 4

	frameFields = 11
	frameSize   = frameFields * 2
)

// Key identifies one frame of one sprite.
type Key struct {
	Sprite string
	Frame  int
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.Sprite, k.Frame)
}

// FrameRect is where a frame sits on its texture page.
type FrameRect struct {
	Frame  int
	Offset int64
	X      int
	Y      int
	Width  int
	Height int
	PageID int
}

func (r FrameRect) Bounds() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r FrameRect) Size() image.Point {
	return image.Pt(r.Width, r.Height)
}

type Placement struct {
	Key Key
	FrameRect
}

type Record struct {
	Name   string
	Offset int64
	Frames []FrameRect
}

type Index struct {
	Sprites []*Record

	// ByPage lists placements per texture page in archive order.
	ByPage map[int][]Placement
	ByKey  map[Key]Placement

	// Required names sprites that must end up with visible content.
	Required map[string]bool
}

// Pages returns the ids of every page holding at least one frame, ascending.
func (idx *Index) Pages() []int {
	ids := make([]int, 0, len(idx.ByPage))
	for id := range idx.ByPage {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (idx *Index) IsRequired(name string) bool {
	return idx.Required[name]
}

// Lookup returns the placement of k. The first record wins when a name is
// reused.
func (idx *Index) Lookup(k Key) (Placement, bool) {
	p, ok := idx.ByKey[k]
	return p, ok
}

// Unlisted returns the frames whose record is not an entry of pages, in
// archive order.
func (idx *Index) Unlisted(pages *archive.PageTable) []Placement {
	var out []Placement
	for _, rec := range idx.Sprites {
		for _, f := range rec.Frames {
			if !pages.Lists(f.Offset) {
				out = append(out, Placement{Key: Key{rec.Name, f.Frame}, FrameRect: f})
			}
		}
	}
	return out
}

func (idx *Index) add(rec *Record) {
	idx.Sprites = append(idx.Sprites, rec)
	for _, f := range rec.Frames {
		p := Placement{Key: Key{rec.Name, f.Frame}, FrameRect: f}
		idx.ByPage[f.PageID] = append(idx.ByPage[f.PageID], p)
		if _, ok := idx.ByKey[p.Key]; !ok {
			idx.ByKey[p.Key] = p
		}
	}
}

// reader carries the state of one ReadIndex call.
type reader struct {
	a *archive.Archive

	// region bounds every record and frame pointer.
	region archive.Chunk

	// names memoizes string pointer resolution.
	names map[uint32]string
}

func (r *reader) outOfRange(off int64, format string, args ...interface{}) error {
	return &archive.FormatError{Kind: archive.OutOfRange, Offset: off, Msg: fmt.Sprintf(format, args...)}
}

func (r *reader) name(ptr uint32) (string, error) {
	if s, ok := r.names[ptr]; ok {
		return s, nil
	}
	s, err := r.a.StringAt(ptr)
	if err != nil {
		return "", fmt.Errorf("%w while resolving name pointer 0x%08x", err, ptr)
	}
	r.names[ptr] = s
	return s, nil
}

func (r *reader) frame(off int64, i int) (FrameRect, error) {
	if !r.region.Contains(off, frameSize) {
		return FrameRect{}, r.outOfRange(off, "frame record lies outside %s payload", r.region.Tag)
	}
	b, err := r.a.ReadAt(off, frameSize)
	if err != nil {
		return FrameRect{}, err
	}

	field := func(n int) int {
		return int(binary.LittleEndian.Uint16(b[n*2:]))
	}
	return FrameRect{
		Frame:  i,
		Offset: off,
		X:      field(0),
		Y:      field(1),
		Width:  field(2),
		Height: field(3),
		PageID: field(frameFields - 1),
	}, nil
}

func (r *reader) record(off int64) (*Record, error) {
	if !r.region.Contains(off, recordSize) {
		return nil, r.outOfRange(off, "sprite record lies outside %s payload", r.region.Tag)
	}
	fields, err := r.a.U32sAt(off, recordFields)
	if err != nil {
		return nil, err
	}

	name, err := r.name(fields[0])
	if err != nil {
		return nil, err
	}

	n := int64(fields[recordFields-1])
	framesAt := off + recordSize
	if !r.region.Contains(framesAt, n*4) {
		return nil, r.outOfRange(framesAt, "%d frame pointers of %s overflow %s payload", n, name, r.region.Tag)
	}
	ptrs, err := r.a.U32sAt(framesAt, int(n))
	if err != nil {
		return nil, err
	}

	rec := &Record{Name: name, Offset: off, Frames: make([]FrameRect, len(ptrs))}
	for i, ptr := range ptrs {
		f, err := r.frame(int64(ptr), i)
		if err != nil {
			return nil, fmt.Errorf("%w while reading frame %d of %s", err, i, name)
		}
		rec.Frames[i] = f
	}
	return rec, nil
}

// ReadIndex reads every sprite table of a. required is the allow-list of
// sprite names that must have content.
func ReadIndex(a *archive.Archive, required []string) (*Index, error) {
	idx := &Index{
		ByPage:   map[int][]Placement{},
		ByKey:    map[Key]Placement{},
		Required: make(map[string]bool, len(required)),
	}
	for _, name := range required {
		idx.Required[name] = true
	}

	sections, err := a.SectionsByTag(archive.TagSprites)
	if err != nil {
		return nil, err
	}

	r := &reader{a: a, region: a.Root(), names: map[uint32]string{}}
	for _, c := range sections {
		s, err := a.ParseSection(c)
		if err != nil {
			return nil, fmt.Errorf("%w while reading sprite table", err)
		}
		tbl := s.(*archive.SpriteTable)

		for i, off := range tbl.Offsets {
			rec, err := r.record(int64(off))
			if err != nil {
				return nil, fmt.Errorf("%w while reading sprite %d", err, i)
			}
			idx.add(rec)
		}
	}
	return idx, nil
}
