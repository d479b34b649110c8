// Package patch turns composed texture pages into the declarative table a
// runtime patcher applies to the unmodified archive.
package patch

import (
	"fmt"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/nbarena/gmpatch/compress"
	"github.com/nbarena/gmpatch/sprites"
)

type Kind uint8

const (
	KindSprite Kind = iota + 1
	KindString
	KindTexture
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindSprite:
		return "SPRT"
	case KindString:
		return "STRG"
	case KindTexture:
		return "TXTR"
	case KindEnd:
		return "END"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

type Frame struct {
	_      struct{} `cbor:",toarray"`
	Frame  int
	X      int
	Y      int
	Width  int
	Height int
	PageID int
}

// SpriteEntry moves every frame of one sprite that lives on a replaced
// page to its rect on the new page.
type SpriteEntry struct {
	Name   string  `cbor:"1,keyasint"`
	Frames []Frame `cbor:"2,keyasint"`
}

type StringEntry struct {
	Index int    `cbor:"1,keyasint"`
	Old   string `cbor:"2,keyasint"`
	New   string `cbor:"3,keyasint"`
}

// TextureEntry replaces a texture page with the image stored in Blob.
type TextureEntry struct {
	PageID      int          `cbor:"1,keyasint"`
	Blob        string       `cbor:"2,keyasint"`
	Compression compress.Tag `cbor:"3,keyasint"`
	StoredSize  int          `cbor:"4,keyasint"`
	Size        int          `cbor:"5,keyasint"`
	Width       int          `cbor:"6,keyasint"`
	Height      int          `cbor:"7,keyasint"`
	Digest      [32]byte     `cbor:"8,keyasint"`
}

// Entry holds exactly the member selected by Kind.
type Entry struct {
	Kind    Kind          `cbor:"1,keyasint"`
	Sprite  *SpriteEntry  `cbor:"2,keyasint,omitempty"`
	String  *StringEntry  `cbor:"3,keyasint,omitempty"`
	Texture *TextureEntry `cbor:"4,keyasint,omitempty"`
}

type Table struct {
	Entries []Entry `cbor:"1,keyasint"`
}

// Texture is a composed page ready for output.
type Texture struct {
	ID     int
	Width  int
	Height int
	PNG    []byte
}

// Blob is a file referenced by a texture entry.
type Blob struct {
	Name string
	Data []byte
}

func BlobName(id int, t compress.Tag) string {
	return fmt.Sprintf("txtr_%05d.png%s", id, t.Ext())
}

// Build orders the table: sprites by name, strings as given, textures by
// page id, then the end marker.
func Build(idx *sprites.Index, textures []Texture, strs []StringEntry, compression compress.Tag) (*Table, []Blob, error) {
	replaced := make(map[int]bool, len(textures))
	for _, t := range textures {
		if replaced[t.ID] {
			return nil, nil, fmt.Errorf("texture page %d supplied twice", t.ID)
		}
		replaced[t.ID] = true
	}

	frames := map[string][]Frame{}
	for id := range replaced {
		for _, p := range idx.ByPage[id] {
			frames[p.Key.Sprite] = append(frames[p.Key.Sprite], Frame{
				Frame:  p.Frame,
				X:      p.X,
				Y:      p.Y,
				Width:  p.Width,
				Height: p.Height,
				PageID: p.PageID,
			})
		}
	}

	names := make([]string, 0, len(frames))
	for name := range frames {
		names = append(names, name)
	}
	sort.Strings(names)

	t := &Table{}
	for _, name := range names {
		fs := frames[name]
		sort.SliceStable(fs, func(i, j int) bool {
			if fs[i].Frame != fs[j].Frame {
				return fs[i].Frame < fs[j].Frame
			}
			return fs[i].PageID < fs[j].PageID
		})
		t.Entries = append(t.Entries, Entry{Kind: KindSprite, Sprite: &SpriteEntry{Name: name, Frames: fs}})
	}

	for i := range strs {
		s := strs[i]
		t.Entries = append(t.Entries, Entry{Kind: KindString, String: &s})
	}

	sorted := append([]Texture(nil), textures...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var blobs []Blob
	for _, tex := range sorted {
		data, used, err := compress.CompressOrStore(tex.PNG, compression)
		if err != nil {
			return nil, nil, fmt.Errorf("%w while compressing page %d", err, tex.ID)
		}
		name := BlobName(tex.ID, used)
		blobs = append(blobs, Blob{Name: name, Data: data})
		t.Entries = append(t.Entries, Entry{Kind: KindTexture, Texture: &TextureEntry{
			PageID:      tex.ID,
			Blob:        name,
			Compression: used,
			StoredSize:  len(data),
			Size:        len(tex.PNG),
			Width:       tex.Width,
			Height:      tex.Height,
			Digest:      blake3.Sum256(tex.PNG),
		}})
	}

	t.Entries = append(t.Entries, Entry{Kind: KindEnd})
	return t, blobs, nil
}

// Textures returns the texture entries of t in table order.
func (t *Table) Textures() []*TextureEntry {
	var out []*TextureEntry
	for _, e := range t.Entries {
		if e.Kind == KindTexture {
			out = append(out, e.Texture)
		}
	}
	return out
}
