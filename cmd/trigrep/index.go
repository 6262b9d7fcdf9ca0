package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/standardbeagle/trigrep/internal/config"
	tgerrors "github.com/standardbeagle/trigrep/internal/errors"
	"github.com/standardbeagle/trigrep/internal/indexing"
	"github.com/standardbeagle/trigrep/internal/metrics"

	"github.com/urfave/cli/v2"
)

func indexCommand(c *cli.Context) (err error) {
	if c.NArg() != 3 {
		return errors.New("usage: trigrep index [flags] <index> <data> <root>")
	}
	indexPath, dataPath := c.Args().Get(0), c.Args().Get(1)

	root, err := filepath.Abs(c.Args().Get(2))
	if err != nil {
		return fmt.Errorf("failed to resolve root path %q: %w", c.Args().Get(2), err)
	}

	cfg, err := loadConfig(c, root)
	if err != nil {
		return err
	}
	applyIndexFlags(c, cfg)
	excludeOutputs(cfg, root, indexPath, dataPath)
	if err := cfg.Validate(); err != nil {
		return err
	}

	defer setupVerbose(c, c.Bool("verbose"))()
	closeLog, err := setupDebugLog(c)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeLog(); err == nil {
			err = cerr
		}
	}()

	b, err := indexing.New(cfg.Index)
	if err != nil {
		return err
	}

	stopProfiling, err := startProfiling(c)
	if err != nil {
		return err
	}
	defer func() {
		if perr := stopProfiling(); err == nil {
			err = perr
		}
	}()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := build(ctx, b, root, indexPath, dataPath)
	if err == nil {
		fmt.Fprintf(c.App.Writer, "indexed %d documents in %d chunks (%d duplicates, %d binary, %d too large, %d excluded) in %v\n",
			stats.Documents, stats.Chunks, stats.Duplicates, stats.SkippedBinary, stats.SkippedLarge, stats.Excluded, stats.Duration)
		reportReadErrors(c.App.ErrWriter, stats)
	}

	if cfg.Metrics.File != "" {
		m := metrics.New()
		m.ObserveBuild(stats, err)
		if merr := m.WriteTextfile(cfg.Metrics.File); merr != nil && err == nil {
			err = merr
		}
	}
	return err
}

// build writes the index pair, removing both files when the build fails so
// no half-written index is left behind.
func build(ctx context.Context, b *indexing.Builder, root, indexPath, dataPath string) (stats indexing.Stats, err error) {
	idx, err := os.Create(indexPath)
	if err != nil {
		return stats, tgerrors.NewFileError("create", indexPath, err)
	}
	dat, err := os.Create(dataPath)
	if err != nil {
		idx.Close()
		os.Remove(indexPath)
		return stats, tgerrors.NewFileError("create", dataPath, err)
	}
	defer func() {
		if cerr := idx.Close(); err == nil && cerr != nil {
			err = tgerrors.NewFileError("close", indexPath, cerr)
		}
		if cerr := dat.Close(); err == nil && cerr != nil {
			err = tgerrors.NewFileError("close", dataPath, cerr)
		}
		if err != nil {
			os.Remove(indexPath)
			os.Remove(dataPath)
		}
	}()

	return b.Build(ctx, root, idx, dat)
}

// reportReadErrors warns about files the build could not read.
func reportReadErrors(w io.Writer, stats indexing.Stats) {
	if err := stats.ReadError(); err != nil {
		fmt.Fprintf(w, "Warning: %d files could not be read: %v\n", len(stats.ReadErrors), err)
	}
}

// applyIndexFlags overrides config values with flags given on the command line.
func applyIndexFlags(c *cli.Context, cfg *config.Config) {
	if include := c.StringSlice("include"); len(include) > 0 {
		cfg.Index.Include = include
	}
	if exclude := c.StringSlice("exclude"); len(exclude) > 0 {
		cfg.Index.Exclude = append(cfg.Index.Exclude, exclude...)
	}
	if c.IsSet("compression") {
		cfg.Index.Compression = c.String("compression")
	}
	if c.IsSet("chunk-docs") {
		cfg.Index.ChunkDocs = c.Int("chunk-docs")
	}
	if c.IsSet("workers") {
		cfg.Index.Workers = c.Int("workers")
	}
	if c.IsSet("skip-duplicates") {
		cfg.Index.SkipDuplicates = c.Bool("skip-duplicates")
	}
	if c.IsSet("metrics-file") {
		cfg.Metrics.File = c.String("metrics-file")
	}
}

// excludeOutputs keeps the files being written out of their own index when
// they live under root.
func excludeOutputs(cfg *config.Config, root string, paths ...string) {
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		cfg.Index.Exclude = append(cfg.Index.Exclude, globEscaper.Replace(filepath.ToSlash(rel)))
	}
}

var globEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`[`, `\[`,
	`]`, `\]`,
	`{`, `\{`,
	`}`, `\}`,
)
