// Package config provides configuration management for the CLI front-end.
// It loads settings from an optional YAML file and a .env file, falling
// back to built-in defaults so the engine works against a bare directory
// with no config file present at all (spec.md's "opening on an empty
// directory" boundary case).
//
// Unlike the engine itself, which takes a Config value explicitly and never
// touches global state (spec.md §5, §9 "no global state"), this package's
// Load reads the process environment and working directory; cmd/kvs is its
// only caller.
package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	// DefaultLogFileName is the log file's fixed name (spec.md §3, §6.1).
	DefaultLogFileName = "kvs.log"
	// DefaultCompactFileName is the transient compaction file's fixed name.
	DefaultCompactFileName = "kvs.compact.log"
	// DefaultThreshold is a conservative, test-friendly stale-byte
	// threshold (spec.md §4.4's "suggested default: ... in the hundreds
	// of bytes"). Production deployments should raise this via config.yml.
	DefaultThreshold int64 = 256
)

// Config holds the settings the CLI front-end needs to open an engine.
type Config struct {
	DataDir         string `yaml:"DATA_DIR"`
	Threshold       int64  `yaml:"THRESHOLD"`
	LogFileName     string `yaml:"LOG_FILE_NAME"`
	CompactFileName string `yaml:"COMPACT_FILE_NAME"`
}

// Default returns a Config with built-in defaults: the current directory
// and the conservative test-scale threshold.
func Default() Config {
	return Config{
		DataDir:         ".",
		Threshold:       DefaultThreshold,
		LogFileName:     DefaultLogFileName,
		CompactFileName: DefaultCompactFileName,
	}
}

// Load loads a .env file into the process environment if present, then reads
// config.yml from the current directory if present, expands environment
// variables in it and overlays it on Default(). The .env values affect the
// result only through that expansion. A missing config.yml is not an error:
// the defaults stand. A present-but-malformed config.yml is.
func Load() (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil {
		slog.Debug("config: no .env file found or error loading it", "error", err)
	} else {
		slog.Debug("config: .env file loaded successfully")
	}

	data, err := os.ReadFile("config.yml")
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("config: no config.yml found, using defaults",
				"data_dir", cfg.DataDir, "threshold", cfg.Threshold)
			return cfg, nil
		}
		return Config{}, err
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, err
	}
	if cfg.LogFileName == "" {
		cfg.LogFileName = DefaultLogFileName
	}
	if cfg.CompactFileName == "" {
		cfg.CompactFileName = DefaultCompactFileName
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}

	slog.Info("config: loaded from config.yml",
		"data_dir", cfg.DataDir,
		"threshold", cfg.Threshold)
	return cfg, nil
}
