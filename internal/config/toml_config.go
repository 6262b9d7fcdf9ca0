package config

import (
	"bytes"
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// parseTOML reads a .trigrep.toml document over the defaults. Keys match the
// KDL names; sizes are plain byte counts.
func parseTOML(content []byte) (*Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return cfg, nil
}
