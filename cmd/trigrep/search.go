package main

import (
	"errors"

	"github.com/standardbeagle/trigrep/internal/config"
	"github.com/standardbeagle/trigrep/internal/debug"
	"github.com/standardbeagle/trigrep/internal/grep"
	"github.com/standardbeagle/trigrep/internal/indexfile"
	"github.com/standardbeagle/trigrep/internal/metrics"
	"github.com/standardbeagle/trigrep/internal/query"
	"github.com/standardbeagle/trigrep/internal/search"

	"github.com/urfave/cli/v2"
)

func searchCommand(c *cli.Context) (err error) {
	if c.NArg() != 3 {
		return errors.New("usage: trigrep search [flags] <index> <data> <pattern>")
	}
	indexPath, dataPath, pattern := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)

	cfg, err := loadConfig(c, ".")
	if err != nil {
		return err
	}
	applySearchFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	defer setupVerbose(c, cfg.Search.Verbose)()
	closeLog, err := setupDebugLog(c)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeLog(); err == nil {
			err = cerr
		}
	}()
	debug.LogSearch("config: %s\n", cfg)

	// Both fail before any file is opened.
	root, err := query.Parse(pattern, cfg.Search.IgnoreCase)
	if err != nil {
		return err
	}
	matcher, err := grep.NewRegexpMatcher(pattern, cfg.Search.IgnoreCase)
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

	idx, err := indexfile.Open(indexPath, cfg.Search.ReadBufferSize)
	if err != nil {
		return err
	}
	defer idx.Close()
	dat, err := indexfile.Open(dataPath, cfg.Search.ReadBufferSize)
	if err != nil {
		return err
	}
	defer dat.Close()

	stats, err := search.New(search.OptionsFromConfig(cfg)).Search(idx, dat, root, matcher, c.App.Writer)
	debug.LogSearch("%d chunks, %d decodes, %d candidates, %d files opened, %d skipped, %d matches in %v\n",
		stats.Chunks, stats.Decodes, stats.Candidates, stats.FilesOpened, stats.SkippedFiles, stats.Matches, stats.Duration)

	if cfg.Metrics.File != "" {
		m := metrics.New()
		m.ObserveSearch(stats, err)
		if merr := m.WriteTextfile(cfg.Metrics.File); merr != nil && err == nil {
			err = merr
		}
	}
	return err
}

// applySearchFlags overrides config values with flags given on the command line.
func applySearchFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("verbose") {
		cfg.Search.Verbose = c.Bool("verbose")
	}
	if c.IsSet("no-line-numbers") {
		cfg.Search.PrintLineNumbers = !c.Bool("no-line-numbers")
	}
	if c.IsSet("just-filter") {
		cfg.Search.JustFilter = c.Bool("just-filter")
	}
	if c.IsSet("ignore-case") {
		cfg.Search.IgnoreCase = c.Bool("ignore-case")
	}
	if c.IsSet("max-count") {
		cfg.Search.MaxCount = c.Int("max-count")
	}
	if c.IsSet("metrics-file") {
		cfg.Metrics.File = c.String("metrics-file")
	}
}
