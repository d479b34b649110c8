// Package replacements loads externally supplied sprite artwork.
package replacements

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/rs/zerolog/log"

	"github.com/nbarena/gmpatch/canvas"
	"github.com/nbarena/gmpatch/fonts"
	"github.com/nbarena/gmpatch/sprites"
)

// Set maps sprite frames to their replacement pixels.
type Set map[sprites.Key]*image.NRGBA

// Keys returns the keys of s ordered by sprite name, then frame.
func (s Set) Keys() []sprites.Key {
	keys := make([]sprites.Key, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Sprite != keys[j].Sprite {
			return keys[i].Sprite < keys[j].Sprite
		}
		return keys[i].Frame < keys[j].Frame
	})
	return keys
}

// Captions are keyed by the path of the frame image relative to the asset
// directory, e.g. "spr_player/0.png".
type Captions map[string]fonts.Caption

func CaptionKey(k sprites.Key) string {
	return fmt.Sprintf("%s/%d.png", k.Sprite, k.Frame)
}

type Captioner interface {
	Render(base *image.NRGBA, caption fonts.Caption) *image.NRGBA
}

// parseFrameName returns the frame index of a "<n>.png" file name.
func parseFrameName(name string) (int, bool) {
	ext := filepath.Ext(name)
	if strings.ToLower(ext) != ".png" {
		return 0, false
	}
	frame, err := strconv.Atoi(strings.TrimSuffix(name, ext))
	if err != nil {
		return 0, false
	}
	return frame, true
}

// Load reads every <sprite>/<frame>.png below dir. Files whose stem is not
// an integer are skipped. Frames with a caption are passed through
// captioner; captioner may be nil when captions is empty.
func Load(dir string, captions Captions, captioner Captioner) (Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	set := Set{}
	for _, e := range entries {
		spriteDir := filepath.Join(dir, e.Name())
		if fi, err := os.Stat(spriteDir); err != nil || !fi.IsDir() {
			continue
		}

		files, err := os.ReadDir(spriteDir)
		if err != nil {
			return nil, fmt.Errorf("%w while listing %s", err, spriteDir)
		}

		for _, f := range files {
			frame, ok := parseFrameName(f.Name())
			if !ok || f.IsDir() {
				continue
			}
			key := sprites.Key{Sprite: e.Name(), Frame: frame}
			path := filepath.Join(spriteDir, f.Name())

			img, err := imgio.Open(path)
			if err != nil {
				return nil, fmt.Errorf("%w while decoding %s", err, path)
			}
			pix := canvas.NRGBA(img)

			if caption, ok := captions[CaptionKey(key)]; ok {
				if captioner == nil {
					return nil, fmt.Errorf("caption for %s but no captioner", key)
				}
				pix = captioner.Render(pix, caption)
			}

			if _, dup := set[key]; dup {
				log.Warn().Str("path", path).Stringer("key", key).Msg("frame supplied twice, using the later file")
			}
			set[key] = pix
		}
	}
	return set, nil
}
