package archive

import (
	"encoding/binary"
	"fmt"
)

// WalkFunc is called for every chunk, parents before children.
type WalkFunc func(depth int, c Chunk, s Section) error

// Walk visits the root and every chunk below it. Opaque chunks are only
// descended into when their payload nests further chunks.
func (a *Archive) Walk(fn WalkFunc) error {
	return a.walk(0, a.root, fn)
}

func (a *Archive) walk(depth int, c Chunk, fn WalkFunc) error {
	s, err := a.ParseSection(c)
	if err != nil {
		return err
	}
	if err := fn(depth, c, s); err != nil {
		return err
	}
	if o, ok := s.(*Opaque); ok {
		for _, child := range o.Children {
			if err := a.walk(depth+1, child, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// StringRef is a u32 somewhere in the archive whose value equals a string
// pointer.
type StringRef struct {
	Section Tag
	Offset  int64
	Pointer uint32
	Text    string
}

var scanSkip = map[Tag]bool{
	TagStrings:  true,
	TagAudio:    true,
	TagTextures: true,
}

// ScanStringRefs finds every 4 byte window outside string, audio and
// texture data that holds a known string pointer.
func (a *Archive) ScanStringRefs() ([]StringRef, error) {
	sections, err := a.SectionsByTag(TagStrings)
	if err != nil {
		return nil, err
	}
	tbl := map[uint32]string{}
	for _, c := range sections {
		st, err := a.parseStringTable(c)
		if err != nil {
			return nil, fmt.Errorf("%w while reading string table", err)
		}
		for ptr, text := range st.ByPointer() {
			tbl[ptr] = text
		}
	}

	var refs []StringRef
	err = a.Walk(func(depth int, c Chunk, s Section) error {
		if depth == 0 || scanSkip[c.Tag] {
			return nil
		}
		if o, ok := s.(*Opaque); ok && o.Children != nil {
			return nil
		}
		data := a.data[c.PayloadOffset:c.End()]
		for i := 0; i+4 <= len(data); i++ {
			v := binary.LittleEndian.Uint32(data[i:])
			if text, ok := tbl[v]; ok {
				refs = append(refs, StringRef{Section: c.Tag, Offset: c.PayloadOffset + int64(i), Pointer: v, Text: text})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}
