// Package compress wraps the blob compression codecs of the patch output.
package compress

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Tag identifies a codec. Values are written into the patch table.
type Tag uint8

const (
	None Tag = 0
	LZ4  Tag = 1
	Zstd Tag = 2
)

func (t Tag) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

func Parse(name string) (Tag, error) {
	switch name {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	}
	return 0, fmt.Errorf("unknown compression: %q", name)
}

// Ext is appended to blob file names.
func (t Tag) Ext() string {
	switch t {
	case LZ4:
		return ".lz4"
	case Zstd:
		return ".zst"
	}
	return ""
}

// ErrIncompressible is returned when the encoded form is not smaller.
var ErrIncompressible = errors.New("data is incompressible")

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic("compress: zstd encoder: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder: " + err.Error())
	}
}

// Compress encodes data with t.
func Compress(data []byte, t Tag) ([]byte, error) {
	switch t {
	case None:
		return data, nil

	case LZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, fmt.Errorf("%w while compressing lz4 block", err)
		}
		if n == 0 || n >= len(data) {
			return nil, ErrIncompressible
		}
		return dst[:n], nil

	case Zstd:
		out := zstdEncoder.EncodeAll(data, nil)
		if len(out) >= len(data) {
			return nil, ErrIncompressible
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported compression: %s", t)
}

// CompressOrStore tries t and falls back to None when it does not help.
func CompressOrStore(data []byte, t Tag) ([]byte, Tag, error) {
	out, err := Compress(data, t)
	if errors.Is(err, ErrIncompressible) {
		return data, None, nil
	}
	if err != nil {
		return nil, None, err
	}
	return out, t, nil
}

// Decompress reverses Compress. size is the length of the original data.
func Decompress(data []byte, t Tag, size int) ([]byte, error) {
	switch t {
	case None:
		if len(data) != size {
			return nil, fmt.Errorf("stored blob is %d bytes, want %d", len(data), size)
		}
		return data, nil

	case LZ4:
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(data, dst)
		if err != nil {
			return nil, fmt.Errorf("%w while decompressing lz4 block", err)
		}
		if n != size {
			return nil, fmt.Errorf("lz4 block holds %d bytes, want %d", n, size)
		}
		return dst, nil

	case Zstd:
		out, err := zstdDecoder.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("%w while decompressing zstd frame", err)
		}
		if len(out) != size {
			return nil, fmt.Errorf("zstd frame holds %d bytes, want %d", len(out), size)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported compression: %s", t)
}
