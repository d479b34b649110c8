package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/nbarena/gmpatch/archive"
	"github.com/nbarena/gmpatch/atlas"
	"github.com/nbarena/gmpatch/sprites"
)

var (
	scanStrings = flag.Bool("scan-strings", false, "list every u32 that holds a string pointer")
)

const previewLength = 140

type printer struct {
	w io.Writer
	a *archive.Archive

	// idx supplies sprite names and frames; pages collects every TPAG table
	// for the frame offset check.
	idx   *sprites.Index
	pages []*archive.PageTable
}

// data prints an entry line below a chunk at the given depth.
func (p *printer) data(depth int, what string, offset, size int64, details string) {
	indent1 := strings.Repeat(" ", depth*3)
	indent2 := strings.Repeat(" ", max(0, 10-depth*3))
	fmt.Fprintf(p.w, "%s%s%s %10d %10d %s\n", indent1, what, indent2, offset, size, details)
}

func (p *printer) section(depth int, c archive.Chunk, s archive.Section) error {
	p.data(depth, " "+c.Tag.String()+" ", c.Offset, c.Size(), "")
	depth++

	switch s := s.(type) {
	case *archive.General:
		for i, v := range s.Fields {
			details := fmt.Sprintf("%10d", v)
			if name, ok := s.Names[i]; ok {
				details += " -> " + name
			}
			p.data(depth, "      ", c.PayloadOffset+int64(i)*4, 4, details)
		}

	case *archive.BackgroundTable:
		for _, e := range s.Entries {
			p.data(depth, "(data)", e.Offset, e.Size, fmt.Sprintf("%5d %5d %5d %5d %5d %s",
				e.Fields[0], e.Fields[1], e.Fields[2], e.Fields[3], e.Fields[4], e.Name))
		}

	case *archive.PageTable:
		for _, e := range s.Entries {
			var b strings.Builder
			for i, v := range e.Fields {
				if i > 0 {
					b.WriteByte(' ')
				}
				fmt.Fprintf(&b, "%5d", v)
			}
			p.data(depth, "(data)", e.Offset, e.Size, b.String())
		}
		p.pages = append(p.pages, s)

	case *archive.SpriteTable:
		for _, rec := range p.idx.Sprites {
			if !s.Chunk().Contains(rec.Offset, 4) {
				continue
			}
			p.data(depth, "(data)", rec.Offset, int64(len(rec.Frames)), rec.Name)
			for _, f := range rec.Frames {
				p.data(depth, "      ", f.Offset, 22, fmt.Sprintf("%3d: page %5d %4d,%-4d %4dx%d",
					f.Frame, f.PageID, f.X, f.Y, f.Width, f.Height))
			}
		}

	case *archive.TextureTable:
		for _, e := range s.Entries {
			details := fmt.Sprintf("%4d %d %d %dx%d", e.Index, e.Unknown1, e.Unknown2, e.Width, e.Height)
			data, err := p.a.TextureData(e)
			if err != nil {
				return err
			}
			if id, ok, err := atlas.ReadPageText(data, atlas.PageKeyword); err == nil && ok {
				details += " patched page " + id
			}
			p.data(depth, " PNG  ", e.ImageOffset, e.ImageSize, details)
		}

	case *archive.AudioTable:
		for _, e := range s.Entries {
			p.data(depth, "(data)", e.Offset, e.Size, fmt.Sprintf("first bytes: %q", e.Magic))
		}

	case *archive.ObjectTable:
		for _, e := range s.Entries {
			p.data(depth, "(data)", e.Offset, e.Size, "")
		}

	case *archive.StringTable:
		for _, e := range s.Entries {
			p.data(depth, "(data)", e.Offset, int64(len(e.Text)), fmt.Sprintf("%4d %s", e.Index, e.Preview(previewLength)))
		}
	}
	return nil
}

// checkFrames reports sprite frames whose record is missing from every
// TPAG table.
func (p *printer) checkFrames() int {
	var bad int
	for _, pl := range p.idx.Sprites {
		for _, f := range pl.Frames {
			listed := false
			for _, pt := range p.pages {
				listed = listed || pt.Lists(f.Offset)
			}
			if !listed {
				log.Error().Int64("offset", f.Offset).Str("sprite", pl.Name).Int("frame", f.Frame).Msg("invalid TPAG offset read from SPRT")
				bad++
			}
		}
	}
	return bad
}

func printTree(w io.Writer, a *archive.Archive) (int, error) {
	idx, err := sprites.ReadIndex(a, nil)
	if err != nil {
		return 0, err
	}

	p := &printer{w: w, a: a, idx: idx}
	fmt.Fprintln(w, "type                 offset       size details")
	if err := a.Walk(func(depth int, c archive.Chunk, s archive.Section) error {
		return p.section(depth, c, s)
	}); err != nil {
		return 0, err
	}
	return p.checkFrames(), nil
}

func printStringRefs(w io.Writer, a *archive.Archive) error {
	refs, err := a.ScanStringRefs()
	if err != nil {
		return err
	}

	for _, r := range refs {
		fmt.Fprintf(w, "%s 0x%08x -> 0x%08x %q\n", r.Section, r.Offset, r.Pointer, r.Text)
	}
	return nil
}

func main() {
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <archive>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	a, err := archive.OpenFile(flag.Arg(0))
	if err != nil {
		log.Fatal().Err(err).Msg("open")
	}

	bad, err := printTree(os.Stdout, a)
	if err != nil {
		log.Fatal().Err(err).Msg("walk")
	}

	if *scanStrings {
		if err := printStringRefs(os.Stdout, a); err != nil {
			log.Fatal().Err(err).Msg("scan strings")
		}
	}

	if bad > 0 {
		os.Exit(1)
	}
}
