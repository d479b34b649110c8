package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/nbarena/pngchunks"
)

// PNGInfo is what the embedded image's own header says about it.
type PNGInfo struct {
	Size   int64
	Width  int
	Height int
}

const pngSignatureSize = 8

// ReadPNGInfo walks the PNG chunk stream at the start of b up to and
// including IEND. Bytes after IEND are not inspected.
func ReadPNGInfo(b []byte) (PNGInfo, error) {
	var info PNGInfo

	r, err := pngchunks.NewReader(bytes.NewReader(b))
	if err != nil {
		return info, fmt.Errorf("%w while reading PNG signature", err)
	}

	info.Size = pngSignatureSize
	seenHeader := false
	for {
		chunk, err := r.NextChunk()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return info, errors.New("PNG ends before IEND")
			}
			return info, err
		}

		length := int64(chunk.Length())
		typ := chunk.Type()

		if typ == "IHDR" {
			var hdr [8]byte
			if _, err := io.ReadFull(chunk, hdr[:]); err != nil {
				return info, fmt.Errorf("%w while reading IHDR", err)
			}
			info.Width = int(binary.BigEndian.Uint32(hdr[0:4]))
			info.Height = int(binary.BigEndian.Uint32(hdr[4:8]))
			seenHeader = true
		}

		if err := chunk.Close(); err != nil {
			return info, fmt.Errorf("%w while skipping %s chunk", err, typ)
		}

		// length + type + data + crc
		info.Size += 12 + length
		if info.Size > int64(len(b)) {
			return info, fmt.Errorf("%s chunk ends at %d, only %d bytes available", typ, info.Size, len(b))
		}

		if typ == "IEND" {
			break
		}
	}

	if !seenHeader {
		return info, errors.New("PNG has no IHDR chunk")
	}
	return info, nil
}
