package main

import (
	"fmt"
	"os"

	"github.com/standardbeagle/trigrep/internal/config"
	"github.com/standardbeagle/trigrep/internal/debug"
	"github.com/standardbeagle/trigrep/internal/version"

	"github.com/urfave/cli/v2"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Config file path (.kdl or .toml); defaults to " + config.KDLFileName + " or " + config.TOMLFileName + " if present",
	}
}

// loadConfig reads the --config file, or the default config file in dir.
func loadConfig(c *cli.Context, dir string) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.Load(path)
	}
	return config.LoadDir(dir)
}

// setupVerbose routes tracing to the app's error stream and returns a func
// that turns it back off.
func setupVerbose(c *cli.Context, enabled bool) func() {
	if !enabled {
		return func() {}
	}
	debug.SetDebugOutput(c.App.ErrWriter)
	debug.SetVerbose(true)
	return func() {
		debug.SetVerbose(false)
		debug.SetDebugOutput(nil)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:                   "trigrep",
		Usage:                  "Grep a source tree through a precomputed trigram index",
		Version:                version.FullInfo(),
		UseShortOptionHandling: true,
		Commands: []*cli.Command{
			{
				Name:      "search",
				Aliases:   []string{"s"},
				Usage:     "Search an index for a regular expression",
				ArgsUsage: "<index> <data> <pattern>",
				Flags: append([]cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Trace chunks, candidates and the query tree to stderr",
					},
					&cli.BoolFlag{
						Name:  "no-line-numbers",
						Usage: "Do not prefix matching lines with their line number",
					},
					&cli.BoolFlag{
						Name:    "just-filter",
						Aliases: []string{"l"},
						Usage:   "Print candidate filenames without reading them",
					},
					&cli.BoolFlag{
						Name:    "ignore-case",
						Aliases: []string{"i"},
						Usage:   "Case-insensitive match",
					},
					&cli.IntFlag{
						Name:    "max-count",
						Aliases: []string{"m"},
						Usage:   "Stop after this many matching lines per file (0 = unlimited)",
					},
					&cli.StringFlag{
						Name:  "metrics-file",
						Usage: "Write Prometheus metrics to this textfile after the search",
					},
				}, profileFlags()...),
				Action: searchCommand,
			},
			{
				Name:      "index",
				Aliases:   []string{"idx"},
				Usage:     "Build an index and data file for a directory tree",
				ArgsUsage: "<index> <data> <root>",
				Flags: append([]cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Trace the build to stderr",
					},
					&cli.StringSliceFlag{
						Name:  "include",
						Usage: "Index only files matching glob patterns (e.g., --include '**/*.go')",
					},
					&cli.StringSliceFlag{
						Name:  "exclude",
						Usage: "Skip files matching glob patterns (e.g., --exclude 'testdata/**')",
					},
					&cli.StringFlag{
						Name:  "compression",
						Usage: "Posting list encoding: varint, lz4, zstd or roaring",
					},
					&cli.IntFlag{
						Name:  "chunk-docs",
						Usage: "Documents per index chunk",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent file readers (0 = number of CPUs)",
					},
					&cli.BoolFlag{
						Name:  "skip-duplicates",
						Usage: "Index files with identical content only once",
					},
					&cli.StringFlag{
						Name:  "metrics-file",
						Usage: "Write Prometheus metrics to this textfile after the build",
					},
				}, profileFlags()...),
				Action: indexCommand,
			},
			{
				Name:      "info",
				Usage:     "Describe an index file",
				ArgsUsage: "<index>",
				Action:    infoCommand,
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}
