package patch

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"
)

// Sink receives output files. written is false when the sink already held
// identical content.
type Sink interface {
	WriteFile(name string, data []byte) (written bool, err error)
}

// DirSink writes files into a directory, leaving files with unchanged
// content untouched so that their timestamps survive.
type DirSink struct {
	Dir string
}

func (s DirSink) WriteFile(name string, data []byte) (bool, error) {
	path := filepath.Join(s.Dir, name)

	old, err := os.ReadFile(path)
	switch {
	case err == nil:
		if blake3.Sum256(old) == blake3.Sum256(data) {
			log.Debug().Str("file", path).Msg("unchanged")
			return false, nil
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return false, fmt.Errorf("%w while reading %s", err, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return false, fmt.Errorf("%w while writing %s", err, path)
	}
	if err := os.Rename(tmp, path); err != nil {
		return false, fmt.Errorf("%w while writing %s", err, path)
	}
	return true, nil
}

// MemSink keeps files in memory.
type MemSink struct {
	mu    sync.Mutex
	Files map[string][]byte
}

func (s *MemSink) WriteFile(name string, data []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Files == nil {
		s.Files = map[string][]byte{}
	}
	if old, ok := s.Files[name]; ok && bytes.Equal(old, data) {
		return false, nil
	}
	s.Files[name] = append([]byte(nil), data...)
	return true, nil
}

func (s *MemSink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.Files))
	for name := range s.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const (
	FormatCBOR = "cbor"
	FormatC    = "c"

	TableName = "patch.cbor"
)

type EmitOptions struct {
	Formats []string
	Prefix  string
}

// Emit writes the table in every requested format and returns the names
// of the files that changed.
func Emit(sink Sink, t *Table, blobs []Blob, textures []Texture, opts EmitOptions) ([]string, error) {
	var files []Blob

	for _, format := range opts.Formats {
		switch format {
		case FormatCBOR:
			b, err := MarshalTable(t)
			if err != nil {
				return nil, fmt.Errorf("%w while encoding patch table", err)
			}
			files = append(files, blobs...)
			files = append(files, Blob{Name: TableName, Data: b})

		case FormatC:
			sorted := append([]Texture(nil), textures...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
			for _, tex := range sorted {
				var buf bytes.Buffer
				if err := WriteData(&buf, opts.Prefix, tex.ID, tex.PNG); err != nil {
					return nil, err
				}
				files = append(files, Blob{Name: DataFileName(opts.Prefix, tex.ID), Data: buf.Bytes()})
			}

			var h, c bytes.Buffer
			if err := WriteHeader(&h, opts.Prefix, t); err != nil {
				return nil, err
			}
			if err := WriteSource(&c, opts.Prefix, t); err != nil {
				return nil, err
			}
			files = append(files,
				Blob{Name: HeaderName(opts.Prefix), Data: h.Bytes()},
				Blob{Name: SourceName(opts.Prefix), Data: c.Bytes()})

		default:
			return nil, fmt.Errorf("unknown output format: %q", format)
		}
	}

	var written []string
	for _, f := range files {
		ok, err := sink.WriteFile(f.Name, f.Data)
		if err != nil {
			return written, err
		}
		if ok {
			written = append(written, f.Name)
		}
	}
	return written, nil
}
