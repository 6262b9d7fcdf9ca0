package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/trigrep/internal/codec"
	tgerrors "github.com/standardbeagle/trigrep/internal/errors"
	"github.com/standardbeagle/trigrep/internal/types"
)

// Config file names looked up by LoadDir, in order.
const (
	KDLFileName  = ".trigrep.kdl"
	TOMLFileName = ".trigrep.toml"
)

type Config struct {
	Version int     `toml:"version"`
	Search  Search  `toml:"search"`
	Index   Index   `toml:"index"`
	Metrics Metrics `toml:"metrics"`
}

// Search controls the searcher and how results are printed.
type Search struct {
	Verbose          bool  `toml:"verbose"`            // Trace chunk scanning to the debug stream
	PrintLineNumbers bool  `toml:"print_line_numbers"` // Prefix matches with their line number
	JustFilter       bool  `toml:"just_filter"`        // Print candidate filenames without grepping
	IgnoreCase       bool  `toml:"ignore_case"`
	MaxCount         int   `toml:"max_count"`        // Per-file match limit, 0 = unlimited
	ReadBufferSize   int64 `toml:"read_buffer_size"` // Bytes buffered per index/data read
}

// Index controls the index builder.
type Index struct {
	Compression    string   `toml:"compression"` // varint, lz4, zstd or roaring
	ChunkDocs      int      `toml:"chunk_docs"`  // Documents per index chunk
	Workers        int      `toml:"workers"`     // Concurrent file readers
	MaxFileSize    int64    `toml:"max_file_size"`
	SkipDuplicates bool     `toml:"skip_duplicates"` // Index identical contents once
	FollowSymlinks bool     `toml:"follow_symlinks"`
	Include        []string `toml:"include"`
	Exclude        []string `toml:"exclude"`
}

// Metrics controls scan counters.
type Metrics struct {
	File string `toml:"file"` // Prometheus textfile written after each search
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Version: 1,
		Search: Search{
			PrintLineNumbers: true,
			ReadBufferSize:   1 << 20,
		},
		Index: Index{
			Compression: codec.CompressionVarint.String(),
			ChunkDocs:   1 << 16,
			Workers:     runtime.NumCPU(),
			MaxFileSize: types.DefaultMaxFileSize,
			Include:     []string{},
			Exclude:     getDefaultExclusions(),
		},
	}
}

// Load reads the config file at path. Files ending in .toml are TOML,
// anything else is KDL.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, tgerrors.NewConfigError("file", path, err)
	}

	var cfg *Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		cfg, err = parseTOML(content)
	} else {
		cfg, err = parseKDL(string(content))
	}
	if err != nil {
		return nil, tgerrors.NewConfigError("file", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDir loads .trigrep.kdl or .trigrep.toml from dir, falling back to
// defaults when neither exists.
func LoadDir(dir string) (*Config, error) {
	for _, name := range []string{KDLFileName, TOMLFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, tgerrors.NewConfigError("file", path, err)
		}
	}
	return Default(), nil
}

// Validate checks every field and fills in derived defaults.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return tgerrors.NewConfigError("version", strconv.Itoa(c.Version), errors.New("only version 1 is supported"))
	}
	if c.Search.MaxCount < 0 {
		return tgerrors.NewConfigError("search.max_count", strconv.Itoa(c.Search.MaxCount), errors.New("must not be negative"))
	}
	if c.Search.ReadBufferSize <= 0 {
		return tgerrors.NewConfigError("search.read_buffer_size", strconv.FormatInt(c.Search.ReadBufferSize, 10), errors.New("must be positive"))
	}
	if _, err := codec.ParseCompression(c.Index.Compression); err != nil {
		return tgerrors.NewConfigError("index.compression", c.Index.Compression, err)
	}
	if c.Index.ChunkDocs <= 0 {
		return tgerrors.NewConfigError("index.chunk_docs", strconv.Itoa(c.Index.ChunkDocs), errors.New("must be positive"))
	}
	if c.Index.Workers < 0 {
		return tgerrors.NewConfigError("index.workers", strconv.Itoa(c.Index.Workers), errors.New("must not be negative"))
	}
	if c.Index.Workers == 0 {
		c.Index.Workers = runtime.NumCPU()
	}
	if c.Index.MaxFileSize <= 0 {
		return tgerrors.NewConfigError("index.max_file_size", strconv.FormatInt(c.Index.MaxFileSize, 10), errors.New("must be positive"))
	}
	for _, p := range c.Index.Include {
		if !doublestar.ValidatePattern(p) {
			return tgerrors.NewConfigError("index.include", p, doublestar.ErrBadPattern)
		}
	}
	for _, p := range c.Index.Exclude {
		if !doublestar.ValidatePattern(p) {
			return tgerrors.NewConfigError("index.exclude", p, doublestar.ErrBadPattern)
		}
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf("search{verbose=%t line_numbers=%t just_filter=%t ignore_case=%t max_count=%d} index{compression=%s chunk_docs=%d workers=%d}",
		c.Search.Verbose, c.Search.PrintLineNumbers, c.Search.JustFilter, c.Search.IgnoreCase, c.Search.MaxCount,
		c.Index.Compression, c.Index.ChunkDocs, c.Index.Workers)
}

// parseSize handles size strings like "10MB", "500KB", "1GB"
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	numStr := s
	for _, unit := range []struct {
		suffix string
		mult   int64
	}{{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}, {"B", 1}} {
		if strings.HasSuffix(s, unit.suffix) {
			multiplier = unit.mult
			numStr = strings.TrimSpace(strings.TrimSuffix(s, unit.suffix))
			break
		}
	}

	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, err
	}
	return num * multiplier, nil
}

func getDefaultExclusions() []string {
	return []string{
		"**/.*/**", // hidden directories, .git included
		"**/node_modules/**",
		"**/vendor/**",
		"**/dist/**",
		"**/build/**",
		"**/target/**",
		"**/*.min.js",
		"**/*.min.css",
	}
}
