// Package config provides configuration management for the key-value store.
// It loads settings from an optional YAML file and environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config holds all application configuration values.
type Config struct {
	DATA_DIR             string `yaml:"DATA_DIR"`             // Directory where log files are stored
	ADDR                 string `yaml:"ADDR"`                 // Socket address the server binds to
	ENGINE               string `yaml:"ENGINE"`               // Storage engine name (aether or leveldb)
	POOL_SIZE            int    `yaml:"POOL_SIZE"`            // Number of workers handling connections
	COMPACTION_THRESHOLD string `yaml:"COMPACTION_THRESHOLD"` // Uncompacted bytes that trigger compaction, e.g. "1MB"
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		DATA_DIR:             ".",
		ADDR:                 "127.0.0.1:4000",
		ENGINE:               "aether",
		POOL_SIZE:            4,
		COMPACTION_THRESHOLD: "1MB",
	}
}

// LoadConfig reads configuration values from the given YAML file and
// optionally from a .env file. A missing config file is not an error; the
// defaults apply. Environment variables in the YAML file are expanded using
// os.ExpandEnv. Returns the loaded configuration and any error encountered.
func LoadConfig(path string) (*Config, error) {
	// Load .env file if it exists (optional - no error if missing)
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found or error loading it", "error", err)
	} else {
		slog.Debug(".env file loaded successfully")
	}

	cfg := Default()

	file, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Debug("config: no config file found, using defaults",
			"path", path)
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(file))), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ThresholdBytes parses the human-readable compaction threshold into bytes.
func (c *Config) ThresholdBytes() (int64, error) {
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(c.COMPACTION_THRESHOLD)); err != nil {
		return 0, fmt.Errorf("cannot parse %q as a byte size: %w", c.COMPACTION_THRESHOLD, err)
	}
	return int64(size.Bytes()), nil
}
