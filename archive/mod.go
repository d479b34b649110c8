// Package archive reads GameMaker data archives: a FORM container of
// tagged, length-prefixed chunks, little-endian throughout.
package archive

import (
	"bytes"
	"encoding/binary"
	"os"
)

const headerSize = 8

// Archive is a read-only view over a complete archive image.
type Archive struct {
	data []byte
	root Chunk
}

// Open validates the root container and returns the archive. The declared
// FORM size plus its header must match len(data) exactly.
func Open(data []byte) (*Archive, error) {
	if len(data) < headerSize {
		return nil, formatErrorf(Truncated, 0, "archive is %d bytes, need at least %d", len(data), headerSize)
	}

	var tag Tag
	copy(tag[:], data[:4])
	if tag != TagForm {
		return nil, formatErrorf(BadMagic, 0, "illegal file magic: %q", tag[:])
	}

	size := int64(binary.LittleEndian.Uint32(data[4:8]))
	expected := size + headerSize
	actual := int64(len(data))
	if expected < actual {
		return nil, formatErrorf(SizeUnderflow, 4, "file size = %d, read size = %d", actual, expected)
	}
	if expected > actual {
		return nil, formatErrorf(SizeOverflow, 4, "file size = %d, read size = %d", actual, expected)
	}

	return &Archive{
		data: data,
		root: Chunk{Tag: tag, Offset: 0, PayloadOffset: headerSize, PayloadSize: size},
	}, nil
}

// OpenFile reads the whole file at path and opens it.
func OpenFile(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Open(data)
}

func (a *Archive) Len() int64 {
	return int64(len(a.data))
}

// Root is the FORM chunk spanning the whole archive.
func (a *Archive) Root() Chunk {
	return a.root
}

// ReadAt returns the n bytes at off. The returned slice aliases the archive
// and must not be modified.
func (a *Archive) ReadAt(off, n int64) ([]byte, error) {
	if off < 0 || n < 0 || off > int64(len(a.data)) || n > int64(len(a.data))-off {
		return nil, formatErrorf(OutOfRange, off, "read of %d bytes exceeds archive size %d", n, len(a.data))
	}
	return a.data[off : off+n : off+n], nil
}

func (a *Archive) U32At(off int64) (uint32, error) {
	b, err := a.ReadAt(off, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (a *Archive) U16At(off int64) (uint16, error) {
	b, err := a.ReadAt(off, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// U32sAt reads n consecutive little-endian u32 values.
func (a *Archive) U32sAt(off int64, n int) ([]uint32, error) {
	b, err := a.ReadAt(off, int64(n)*4)
	if err != nil {
		return nil, err
	}
	vals := make([]uint32, n)
	for i := range vals {
		vals[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return vals, nil
}

// StringAt resolves a string pointer. Pointers refer to the first text byte,
// which sits right after a u32 length field. Trailing NULs are stripped.
func (a *Archive) StringAt(ptr uint32) (string, error) {
	if ptr < 4 {
		return "", formatErrorf(OutOfRange, int64(ptr), "string pointer below minimum of 4")
	}
	n, err := a.U32At(int64(ptr) - 4)
	if err != nil {
		return "", err
	}
	b, err := a.ReadAt(int64(ptr), int64(n))
	if err != nil {
		return "", err
	}
	return string(bytes.TrimRight(b, "\x00")), nil
}
