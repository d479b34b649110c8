// Package filler lends artwork from a fixed set of sprites to required
// sprites that have none of their own.
package filler

import (
	"image"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/nbarena/gmpatch/canvas"
	"github.com/nbarena/gmpatch/replacements"
	"github.com/nbarena/gmpatch/sprites"
)

const DefaultMaxUses = 4

type candidate struct {
	key       sprites.Key
	img       *image.NRGBA
	consumers []sprites.Key
}

func (c *candidate) width() int  { return c.img.Rect.Dx() }
func (c *candidate) height() int { return c.img.Rect.Dy() }

// fairer orders the least used candidates first, then the widest, then
// the shortest.
func fairer(a, b *candidate) bool {
	if len(a.consumers) != len(b.consumers) {
		return len(a.consumers) < len(b.consumers)
	}
	if a.width() != b.width() {
		return a.width() > b.width()
	}
	return a.height() < b.height()
}

// Pool hands out filler images. It is not safe for concurrent use.
type Pool struct {
	maxUses int
	order   []*candidate

	// fair is set once order is sorted by fairer. Before the first pick
	// candidates are ordered by size, largest first.
	fair bool
}

// NewPool collects the images of set whose sprite is in names.
func NewPool(set replacements.Set, names []string, maxUses int) *Pool {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	p := &Pool{maxUses: maxUses}
	for _, k := range set.Keys() {
		if want[k.Sprite] {
			p.order = append(p.order, &candidate{key: k, img: set[k]})
		}
	}
	sort.SliceStable(p.order, func(i, j int) bool {
		a, b := p.order[i], p.order[j]
		if a.width() != b.width() {
			return a.width() > b.width()
		}
		return a.height() > b.height()
	})
	return p
}

func (p *Pool) Len() int {
	return len(p.order)
}

// reorder restores fairness order after the candidate at i gained a use.
func (p *Pool) reorder(i int) {
	if !p.fair {
		sort.SliceStable(p.order, func(i, j int) bool {
			return fairer(p.order[i], p.order[j])
		})
		p.fair = true
		return
	}

	// Only c moved, and only towards the back. Put it before the first
	// candidate that is not fairer than it, which is where a stable sort
	// would leave it.
	c := p.order[i]
	rest := append(p.order[:i:i], p.order[i+1:]...)
	j := sort.Search(len(rest), func(j int) bool {
		return !fairer(rest[j], c)
	})
	p.order = append(rest[:j:j], append([]*candidate{c}, rest[j:]...)...)
}

// Pick selects a filler for a w×h frame of consumer and fits it to that
// size. cropped reports that the filler was taller than the frame.
func (p *Pool) Pick(consumer sprites.Key, w, h int) (img *image.NRGBA, source sprites.Key, cropped bool, ok bool) {
	for i, c := range p.order {
		if c.width() > w || len(c.consumers) >= p.maxUses {
			continue
		}
		c.consumers = append(c.consumers, consumer)
		p.reorder(i)

		img, cropped = canvas.FitFiller(c.img, w, h)
		return img, c.key, cropped, true
	}
	return nil, sprites.Key{}, false, false
}

type Usage struct {
	Source    sprites.Key
	Consumers []sprites.Key
}

// Usage lists every candidate that was used, least used first.
func (p *Pool) Usage() []Usage {
	var us []Usage
	for _, c := range p.order {
		if len(c.consumers) > 0 {
			us = append(us, Usage{Source: c.key, Consumers: append([]sprites.Key(nil), c.consumers...)})
		}
	}
	sort.Slice(us, func(i, j int) bool {
		a, b := us[i], us[j]
		if len(a.Consumers) != len(b.Consumers) {
			return len(a.Consumers) < len(b.Consumers)
		}
		if a.Source.Sprite != b.Source.Sprite {
			return a.Source.Sprite < b.Source.Sprite
		}
		return a.Source.Frame < b.Source.Frame
	})
	return us
}

type Stats struct {
	Filled  int
	Taller  int
	Missing int
}

// Fill gives every frame of a required sprite without a replacement a
// filler, in archive order, and adds it to set.
func Fill(idx *sprites.Index, set replacements.Set, pool *Pool) Stats {
	var st Stats
	for _, rec := range idx.Sprites {
		if !idx.IsRequired(rec.Name) {
			continue
		}
		for _, f := range rec.Frames {
			key := sprites.Key{Sprite: rec.Name, Frame: f.Frame}
			if _, ok := set[key]; ok {
				continue
			}

			img, source, cropped, ok := pool.Pick(key, f.Width, f.Height)
			if !ok {
				st.Missing++
				log.Warn().Stringer("frame", key).Msg("could not find a filler")
				continue
			}
			if cropped {
				st.Taller++
			}
			st.Filled++
			set[key] = img
			log.Debug().Stringer("frame", key).Stringer("filler", source).Msg("using filler")
		}
	}
	return st
}
