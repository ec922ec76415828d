// Package config loads sceneryforge's runtime configuration the way
// the teacher loads its own: a small encoding/xml-tagged struct read
// from a config file at startup, with sane zero-value fallbacks
// logged (not fatal) if the file is absent (spec §4.14).
package config

import (
	"encoding/xml"
	"fmt"
	"os"
)

// Config is sceneryforge.xml's schema.
type Config struct {
	XMLName xml.Name `xml:"config"`

	InputRoot  string `xml:"InputRoot"`
	OutputRoot string `xml:"OutputRoot"`

	EmitGltf bool `xml:"EmitGltf"`
	EmitAc3d bool `xml:"EmitAc3d"`

	// TerrainProvider is "local" (TerraSync directory) or "http".
	TerrainProvider string `xml:"TerrainProvider"`
	TerrainBaseURL  string `xml:"TerrainBaseUrl"`
	TerrainLocalDir string `xml:"TerrainLocalDir"`

	CacheDB      string `xml:"CacheDB"`
	SatelliteRoot string `xml:"SatelliteRoot"`

	LogLevel string `xml:"LogLevel"`
	LogDir   string `xml:"LogDir"`

	Parallelism int `xml:"Parallelism"`
}

// Default returns the zero-value fallback configuration used when no
// config file is available: no terrain source, glTF-only output,
// single-threaded, info-level logging to the current directory.
func Default() Config {
	return Config{
		EmitGltf:        true,
		TerrainProvider: "http",
		LogLevel:        "info",
		LogDir:          ".",
		Parallelism:     1,
	}
}

// Load reads path as a Config. A missing or malformed file is
// reported via the returned error but is not treated as fatal by
// callers, matching the teacher's config.init() pattern of logging
// and continuing with an unpopulated Config; here Load returns
// Default() alongside the error so the caller doesn't need to special-
// case a zero value.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()

	if err := xml.NewDecoder(f).Decode(&cfg); err != nil {
		return Default(), fmt.Errorf("config: decoding %s: %w", path, err)
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "."
	}
	return cfg, nil
}
