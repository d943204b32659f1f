// Package config loads user-overridable encoder settings.
// Loaded from .repograph.yml in the repository root.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pleaseai/repograph/internal/encoder"
)

// FileName is the options file looked up in the repository root.
const FileName = ".repograph.yml"

// Config holds everything .repograph.yml can override. Zero values mean
// "use the built-in default".
type Config struct {
	Encoder EncoderConfig `yaml:"encoder"`
	Cache   CacheConfig   `yaml:"cache"`

	// LogLevel is one of debug, info, warn, error. Default: info.
	LogLevel string `yaml:"log_level"`
}

// EncoderConfig holds encoding-run settings.
type EncoderConfig struct {
	// Include globs replace the built-in per-language defaults when set.
	Include []string `yaml:"include"`

	// Exclude globs are added to the built-in defaults.
	Exclude []string `yaml:"exclude"`

	// MaxDepth bounds directory traversal. Default: 10.
	MaxDepth *int `yaml:"max_depth"`

	// RespectGitignore uses git's file listing when available.
	// Default: true.
	RespectGitignore *bool `yaml:"respect_gitignore"`

	// IncludeSource stores entity source text on graph nodes.
	// Default: false.
	IncludeSource bool `yaml:"include_source"`

	// CrossArea enables the LLM cross-area data-flow pass.
	// Default: false.
	CrossArea bool `yaml:"cross_area"`

	// LLMFileFilter enables the three-round file exclusion vote.
	// Default: false.
	LLMFileFilter bool `yaml:"llm_file_filter"`
}

// CacheConfig holds semantic-cache settings.
type CacheConfig struct {
	// Path is the SQLite file for the feature cache. Empty disables
	// caching.
	Path string `yaml:"path"`

	// TTLDays is the cache entry lifetime. Default: 7.
	TTLDays *int `yaml:"ttl_days"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{}
}

// Load reads .repograph.yml from the given directory.
// Returns defaults if the file doesn't exist or is invalid YAML.
func Load(dir string) *Config {
	cfg := Default()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return cfg
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		slog.Warn("config.invalid", "file", FileName, "err", err)
		return Default()
	}
	return cfg
}

// EncoderOptions maps the file settings onto an encode run.
func (c *Config) EncoderOptions() encoder.Options {
	opts := encoder.Options{
		Include:          c.Encoder.Include,
		Exclude:          c.Encoder.Exclude,
		IncludeSource:    c.Encoder.IncludeSource,
		CrossArea:        c.Encoder.CrossArea,
		LLMFileFilter:    c.Encoder.LLMFileFilter,
		RespectGitignore: true,
	}
	if c.Encoder.MaxDepth != nil {
		opts.MaxDepth = *c.Encoder.MaxDepth
	}
	if c.Encoder.RespectGitignore != nil {
		opts.RespectGitignore = *c.Encoder.RespectGitignore
	}
	return opts
}

// EffectiveTTLDays returns the configured cache TTL, or the default (7)
// if not set, matching semcache.DefaultTTL.
func (c *Config) EffectiveTTLDays() int {
	if c.Cache.TTLDays != nil {
		return *c.Cache.TTLDays
	}
	return 7
}

// ApplyLogLevel sets the process-wide slog level from the config.
func (c *Config) ApplyLogLevel() {
	level := slog.LevelInfo
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetLogLoggerLevel(level)
}
