// Package atlas pastes replacement frames into texture pages.
package atlas

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/nbarena/gmpatch/archive"
	"github.com/nbarena/gmpatch/canvas"
	"github.com/nbarena/gmpatch/sprites"
)

// Job is one replacement frame destined for a page.
type Job struct {
	Placement sprites.Placement
	Image     *image.NRGBA
}

type Page struct {
	ID     int
	Source []byte
	Jobs   []Job
}

type Options struct {
	// AutoFix centers replacements that are smaller than their frame
	// instead of failing the page.
	AutoFix bool
}

// Mismatch is a replacement that cannot be pasted as is. Either its size
// differs from its frame, or the frame rect does not lie inside the page.
type Mismatch struct {
	Key  sprites.Key
	Got  image.Point
	Want image.Point

	// Frame and Page are set when the frame sticks out of the page.
	Frame image.Rectangle
	Page  image.Rectangle
}

func (m Mismatch) Outside() bool {
	return !m.Frame.Empty() && !m.Frame.In(m.Page)
}

func (m Mismatch) String() string {
	if m.Outside() {
		return fmt.Sprintf("%s: frame %v lies outside the %dx%d page", m.Key, m.Frame, m.Page.Dx(), m.Page.Dy())
	}
	return fmt.Sprintf("%s: image is %dx%d, frame is %dx%d", m.Key, m.Got.X, m.Got.Y, m.Want.X, m.Want.Y)
}

type Result struct {
	ID     int
	Width  int
	Height int

	// PNG is the encoded page. It is nil when the page failed.
	PNG []byte

	Fixed    []Mismatch
	Failures []Mismatch
}

func (r *Result) OK() bool {
	return len(r.Failures) == 0
}

func checkDuplicates(p Page) error {
	seen := make(map[sprites.Key]bool, len(p.Jobs))
	for _, j := range p.Jobs {
		k := j.Placement.Key
		if seen[k] {
			return archive.NewDuplicateError(j.Placement.Offset, "%s placed twice on page %d", k, p.ID)
		}
		seen[k] = true
	}
	return nil
}

// Compose pastes every job of p into its source image. A size mismatch or
// a frame outside the page fails the page but the remaining jobs are still
// checked. Two jobs for the same frame are a *archive.FormatError.
func Compose(p Page, opts Options) (*Result, error) {
	if err := checkDuplicates(p); err != nil {
		return nil, err
	}

	src, err := png.Decode(bytes.NewReader(p.Source))
	if err != nil {
		return nil, fmt.Errorf("%w while decoding page %d", err, p.ID)
	}
	img := canvas.NRGBA(src)

	res := &Result{ID: p.ID, Width: img.Rect.Dx(), Height: img.Rect.Dy()}
	for _, j := range p.Jobs {
		sprite := j.Image
		m := Mismatch{Key: j.Placement.Key, Got: sprite.Rect.Size(), Want: j.Placement.Size()}

		if frame := j.Placement.Bounds(); !frame.In(img.Rect) {
			m.Frame, m.Page = frame, img.Rect
			log.Error().Int("page", p.ID).Msgf("frame out of bounds: %s", m)
			res.Failures = append(res.Failures, m)
			continue
		}

		if m.Got != m.Want {
			if opts.AutoFix && m.Got.X <= m.Want.X && m.Got.Y <= m.Want.Y {
				log.Warn().Int("page", p.ID).Msgf("auto-fixing %s", m)
				sprite = canvas.CenterPad(sprite, m.Want.X, m.Want.Y)
				res.Fixed = append(res.Fixed, m)
			} else {
				log.Error().Int("page", p.ID).Msgf("incompatible size: %s", m)
				res.Failures = append(res.Failures, m)
			}
		}

		if res.OK() {
			canvas.Paste(img, j.Placement.Bounds().Min, sprite)
		}
	}

	if !res.OK() {
		return res, nil
	}

	if res.PNG, err = encodePage(img, p.ID); err != nil {
		return nil, err
	}
	return res, nil
}

// ComposeAll runs Compose over pages with up to workers pages in flight.
// Results are in the order of pages. done, if set, is called after each
// page from the worker goroutine.
func ComposeAll(ctx context.Context, pages []Page, opts Options, workers int, done func(*Result)) ([]*Result, error) {
	if workers < 1 {
		workers = 1
	}

	results := make([]*Result, len(pages))
	ch := make(chan int, workers)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for idx := range ch {
				res, err := Compose(pages[idx], opts)
				if err != nil {
					return err
				}
				results[idx] = res
				if done != nil {
					done(res)
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(ch)
		for i := range pages {
			select {
			case ch <- i:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
