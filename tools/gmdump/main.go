package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/nbarena/gmpatch/archive"
)

var (
	dumpTextures = flag.Bool("textures", true, "dump texture pages")
	dumpStrings  = flag.Bool("strings", true, "dump the string table as YAML")
)

type dumpedString struct {
	Index int    `yaml:"index"`
	Text  string `yaml:"text"`
}

func dumpPages(ctx context.Context, a *archive.Archive, outDir string) error {
	textures, err := a.Textures()
	if err != nil {
		return err
	}

	bar := progressbar.Default(int64(len(textures)))
	bar.Describe("dump")

	ch := make(chan archive.TextureEntry, runtime.NumCPU())

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < runtime.NumCPU(); i++ {
		g.Go(func() error {
			for t := range ch {
				bar.Add(1)
				bar.Describe(fmt.Sprintf("dump: %05d", t.Index))
				data, err := a.TextureData(t)
				if err != nil {
					return err
				}
				if err := os.WriteFile(filepath.Join(outDir, fmt.Sprintf("%05d.png", t.Index)), data, 0o644); err != nil {
					return err
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(ch)
		for _, t := range textures {
			select {
			case ch <- t:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})

	return g.Wait()
}

func dumpStringTable(a *archive.Archive, outDir string) error {
	strs, err := a.Strings()
	if err != nil {
		return err
	}

	out := make([]dumpedString, len(strs))
	for i, s := range strs {
		out[i] = dumpedString{Index: s.Index, Text: s.Text}
	}

	f, err := os.Create(filepath.Join(outDir, "strings.yaml"))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	if err := enc.Encode(out); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

func main() {
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if flag.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <archive> <outdir>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	a, err := archive.OpenFile(flag.Arg(0))
	if err != nil {
		log.Fatal().Err(err).Msg("open")
	}

	outDir := flag.Arg(1)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("output directory")
	}

	if *dumpTextures {
		log.Info().Str("dir", outDir).Msg("dumping texture pages")
		if err := dumpPages(context.Background(), a, outDir); err != nil {
			log.Fatal().Err(err).Msg("dump textures")
		}
	}

	if *dumpStrings {
		log.Info().Str("dir", outDir).Msg("dumping strings")
		if err := dumpStringTable(a, outDir); err != nil {
			log.Fatal().Err(err).Msg("dump strings")
		}
	}
}
