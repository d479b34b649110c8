// Package fonts renders outlined captions onto sprite images.
package fonts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

// SearchDirs are scanned by FindFont, in order.
func SearchDirs() []string {
	var dirs []string
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".fonts"))
	}
	return append(dirs, "/usr/share/fonts")
}

// FindFont returns the first file under dirs whose name matches one of
// names, case-insensitively. Names are tried in order.
func FindFont(dirs []string, names ...string) (string, error) {
	for _, name := range names {
		want := strings.ToLower(name)
		for _, dir := range dirs {
			var found string
			err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					// Missing or unreadable directories are skipped.
					return fs.SkipDir
				}
				if !d.IsDir() && strings.ToLower(d.Name()) == want {
					found = path
					return fs.SkipAll
				}
				return nil
			})
			if err != nil {
				return "", err
			}
			if found != "" {
				return found, nil
			}
		}
	}
	return "", fmt.Errorf("font not found: %s", strings.Join(names, ", "))
}

// LoadFace opens a TrueType or OpenType face of the given pixel size. A
// name without a directory is looked up with FindFont. An empty name
// selects a built-in bitmap face.
func LoadFace(name string, size float64) (font.Face, error) {
	if name == "" {
		return basicfont.Face7x13, nil
	}

	path := name
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && filepath.Base(name) == name {
		if path, err = FindFont(SearchDirs(), name); err != nil {
			return nil, err
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	f, err := opentype.Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%w while parsing font %s", err, path)
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("%w while creating face for %s", err, path)
	}
	return face, nil
}

func measure(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}
