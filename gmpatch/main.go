package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/nbarena/gmpatch/archive"
	"github.com/nbarena/gmpatch/build"
	"github.com/nbarena/gmpatch/config"
	"github.com/nbarena/gmpatch/patch"
)

var (
	configPath  = flag.StringP("config", "c", "", "build config (YAML, or JSON with comments)")
	autofix     = flag.BoolP("autofix", "a", false, "center-pad replacements smaller than their frame")
	debug       = flag.BoolP("debug", "d", false, "write composed pages to the build directory")
	jobs        = flag.IntP("jobs", "j", 1, "pages composed in parallel (0 for one per CPU)")
	formats     = flag.StringSlice("format", nil, "output formats: cbor, c")
	compression = flag.String("compression", "", "blob compression: none, lz4, zstd")
	prefix      = flag.String("prefix", "", "identifier prefix of the C output")
	verbose     = flag.BoolP("verbose", "v", false, "debug logging")
	noProgress  = flag.Bool("no-progress", false, "hide the progress bar")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] <sprites-dir> <build-dir> <archive>\n", os.Args[0])
	flag.PrintDefaults()
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, err
		}
	}

	if flag.CommandLine.Changed("autofix") {
		cfg.AutoFix = *autofix
	}
	if len(*formats) > 0 {
		cfg.Formats = *formats
	}
	if *compression != "" {
		cfg.Compression = *compression
	}
	if *prefix != "" {
		cfg.Prefix = *prefix
	}
	return cfg, cfg.Validate()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if flag.NArg() != 3 {
		usage()
		os.Exit(2)
	}
	spritesDir, buildDir, archivePath := flag.Arg(0), flag.Arg(1), flag.Arg(2)

	cfg, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("bad config")
		os.Exit(2)
	}

	a, err := archive.OpenFile(archivePath)
	if err != nil {
		log.Error().Err(err).Str("archive", archivePath).Msg("cannot open archive")
		os.Exit(2)
	}

	workers := *jobs
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	report, err := build.Run(context.Background(), a, spritesDir, patch.DirSink{Dir: buildDir}, build.Options{
		Config:   cfg,
		Debug:    *debug,
		Workers:  workers,
		Progress: !*noProgress,
	})
	if err != nil {
		log.Error().Err(err).Msg("build failed")
		os.Exit(2)
	}

	for _, name := range report.Written {
		log.Info().Str("file", name).Msg("written")
	}
	for _, u := range report.Usage {
		log.Debug().Stringer("filler", u.Source).Int("uses", len(u.Consumers)).Msg("filler usage")
	}
	log.Info().
		Int("pages", len(report.Pages)).
		Int("fillers", report.Filler.Filled).
		Int("taller_fillers", report.Filler.Taller).
		Int("missing_fillers", report.Filler.Missing).
		Int("autofixed", len(report.Fixed)).
		Int("transparent", len(report.Transparent)).
		Msg("done")

	if !report.OK() {
		log.Error().Ints("pages", report.FailedPages).Int("frames", len(report.Failures)).Msg("pages failed validation")
		os.Exit(1)
	}
}
