// Package build runs a complete patch build: it indexes the archive, loads
// and captions the replacement artwork, fills required frames, composes the
// affected texture pages and emits the patch.
package build

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/nbarena/gmpatch/archive"
	"github.com/nbarena/gmpatch/atlas"
	"github.com/nbarena/gmpatch/canvas"
	"github.com/nbarena/gmpatch/compress"
	"github.com/nbarena/gmpatch/config"
	"github.com/nbarena/gmpatch/filler"
	"github.com/nbarena/gmpatch/fonts"
	"github.com/nbarena/gmpatch/patch"
	"github.com/nbarena/gmpatch/replacements"
	"github.com/nbarena/gmpatch/sprites"
)

type Options struct {
	Config *config.Config

	// Debug writes every composed page to the sink as %05d.png.
	Debug    bool
	Workers  int
	Progress bool
}

type Report struct {
	Filler filler.Stats
	Usage  []filler.Usage

	// Pages lists the replaced page ids, ascending.
	Pages       []int
	FailedPages []int
	Fixed       []atlas.Mismatch
	Failures    []atlas.Mismatch

	// Transparent lists replacements without a single visible pixel.
	Transparent []sprites.Key

	// Written names the output files whose content changed.
	Written []string
}

// OK reports whether every page passed validation.
func (r *Report) OK() bool {
	return len(r.FailedPages) == 0
}

func captionsOf(cfg *config.Config) replacements.Captions {
	cs := make(replacements.Captions, len(cfg.Captions))
	for k, c := range cfg.Captions {
		cs[k] = fonts.Caption{Text: c.Text, Y: c.Y}
	}
	return cs
}

func loadReplacements(dir string, cfg *config.Config) (replacements.Set, error) {
	var captioner replacements.Captioner
	if len(cfg.Captions) > 0 {
		face, err := fonts.LoadFace(cfg.Font, cfg.FontSize)
		if err != nil {
			return nil, fmt.Errorf("%w while loading caption font", err)
		}
		captioner = fonts.NewCaptioner(face)
	}
	return replacements.Load(dir, captionsOf(cfg), captioner)
}

// pages groups the replaced frames by the page they live on.
func pages(a *archive.Archive, idx *sprites.Index, set replacements.Set) ([]atlas.Page, error) {
	textures, err := a.Textures()
	if err != nil {
		return nil, fmt.Errorf("%w while reading texture table", err)
	}

	var out []atlas.Page
	for _, id := range idx.Pages() {
		var jobs []atlas.Job
		for _, p := range idx.ByPage[id] {
			if img, ok := set[p.Key]; ok {
				jobs = append(jobs, atlas.Job{Placement: p, Image: img})
			}
		}
		if len(jobs) == 0 {
			continue
		}

		if id < 0 || id >= len(textures) {
			p := jobs[0].Placement
			return nil, &archive.FormatError{
				Kind:   archive.OutOfRange,
				Offset: p.Offset,
				Msg:    fmt.Sprintf("%s is on page %d of %d", p.Key, id, len(textures)),
			}
		}

		src, err := a.TextureData(textures[id])
		if err != nil {
			return nil, fmt.Errorf("%w while reading page %d", err, id)
		}
		out = append(out, atlas.Page{ID: id, Source: src, Jobs: jobs})
	}
	return out, nil
}

// stringEntries converts the overrides and warns about any whose expected
// text differs from the archive.
func stringEntries(a *archive.Archive, overrides []config.StringOverride) ([]patch.StringEntry, error) {
	if len(overrides) == 0 {
		return nil, nil
	}

	strs, err := a.Strings()
	if err != nil {
		return nil, fmt.Errorf("%w while reading string table", err)
	}

	entries := make([]patch.StringEntry, 0, len(overrides))
	for _, o := range overrides {
		switch {
		case o.Index >= len(strs):
			log.Warn().Int("index", o.Index).Int("count", len(strs)).Msg("string override past the end of the string table")
		case strs[o.Index].Text != o.Old:
			log.Warn().Int("index", o.Index).Str("want", o.Old).Str("got", strs[o.Index].Text).Msg("string override does not match the archive")
		}
		entries = append(entries, patch.StringEntry{Index: o.Index, Old: o.Old, New: o.New})
	}
	return entries, nil
}

// Run builds the patch for a from the artwork below spritesDir. A non-nil
// error is fatal. Page validation failures are reported in the Report and
// the patch is still emitted for the pages that passed.
func Run(ctx context.Context, a *archive.Archive, spritesDir string, sink patch.Sink, opts Options) (*Report, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	compression, err := compress.Parse(cfg.Compression)
	if err != nil {
		return nil, err
	}

	idx, err := sprites.ReadIndex(a, cfg.RequiredSprites)
	if err != nil {
		return nil, fmt.Errorf("%w while indexing sprites", err)
	}
	log.Debug().Int("sprites", len(idx.Sprites)).Int("pages", len(idx.ByPage)).Msg("indexed archive")

	set, err := loadReplacements(spritesDir, cfg)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("frames", len(set)).Msg("loaded replacements")

	report := &Report{}
	for _, k := range set.Keys() {
		if canvas.FindTrim(set[k]).Empty() {
			log.Warn().Stringer("frame", k).Msg("replacement is fully transparent")
			report.Transparent = append(report.Transparent, k)
		}
		if _, ok := idx.Lookup(k); !ok {
			log.Warn().Stringer("frame", k).Msg("replacement has no frame in the archive")
		}
	}

	pool := filler.NewPool(set, cfg.FillerSprites, cfg.MaxFillerUses)
	report.Filler = filler.Fill(idx, set, pool)
	report.Usage = pool.Usage()

	work, err := pages(a, idx, set)
	if err != nil {
		return nil, err
	}

	var done func(*atlas.Result)
	if opts.Progress && len(work) > 0 {
		bar := progressbar.Default(int64(len(work)))
		bar.Describe("compose")
		done = func(r *atlas.Result) {
			bar.Add(1)
			bar.Describe(fmt.Sprintf("compose: %05d", r.ID))
		}
	}

	results, err := atlas.ComposeAll(ctx, work, atlas.Options{AutoFix: cfg.AutoFix}, opts.Workers, done)
	if err != nil {
		return nil, err
	}

	var textures []patch.Texture
	for _, r := range results {
		report.Fixed = append(report.Fixed, r.Fixed...)
		if !r.OK() {
			report.FailedPages = append(report.FailedPages, r.ID)
			report.Failures = append(report.Failures, r.Failures...)
			continue
		}

		report.Pages = append(report.Pages, r.ID)
		textures = append(textures, patch.Texture{ID: r.ID, Width: r.Width, Height: r.Height, PNG: r.PNG})

		if opts.Debug {
			name := fmt.Sprintf("%05d.png", r.ID)
			written, err := sink.WriteFile(name, r.PNG)
			if err != nil {
				return nil, fmt.Errorf("%w while writing %s", err, name)
			}
			if written {
				report.Written = append(report.Written, name)
			}
		}
	}

	strs, err := stringEntries(a, cfg.Strings)
	if err != nil {
		return nil, err
	}

	table, blobs, err := patch.Build(idx, textures, strs, compression)
	if err != nil {
		return nil, err
	}

	written, err := patch.Emit(sink, table, blobs, textures, patch.EmitOptions{
		Formats: cfg.Formats,
		Prefix:  cfg.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("%w while emitting patch", err)
	}
	report.Written = append(report.Written, written...)

	return report, nil
}
