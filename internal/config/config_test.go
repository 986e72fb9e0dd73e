// Package config provides unit tests for configuration loading.
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.ADDR != "127.0.0.1:4000" {
		t.Errorf("ADDR = %q, want %q", cfg.ADDR, "127.0.0.1:4000")
	}
	if cfg.ENGINE != "aether" {
		t.Errorf("ENGINE = %q, want %q", cfg.ENGINE, "aether")
	}
	if cfg.POOL_SIZE != 4 {
		t.Errorf("POOL_SIZE = %d, want 4", cfg.POOL_SIZE)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := "ADDR: 0.0.0.0:5000\nPOOL_SIZE: 8\nCOMPACTION_THRESHOLD: 4MB\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.ADDR != "0.0.0.0:5000" {
		t.Errorf("ADDR = %q, want %q", cfg.ADDR, "0.0.0.0:5000")
	}
	if cfg.POOL_SIZE != 8 {
		t.Errorf("POOL_SIZE = %d, want 8", cfg.POOL_SIZE)
	}
	// Unset keys keep their defaults.
	if cfg.ENGINE != "aether" {
		t.Errorf("ENGINE = %q, want %q", cfg.ENGINE, "aether")
	}

	threshold, err := cfg.ThresholdBytes()
	if err != nil {
		t.Fatalf("ThresholdBytes() error = %v", err)
	}
	if threshold != 4*1024*1024 {
		t.Errorf("ThresholdBytes() = %d, want %d", threshold, 4*1024*1024)
	}
}

func TestLoadConfig_ExpandsEnv(t *testing.T) {
	t.Setenv("AETHERDB_TEST_DIR", "/var/lib/aetherdb")

	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("DATA_DIR: ${AETHERDB_TEST_DIR}\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.DATA_DIR != "/var/lib/aetherdb" {
		t.Errorf("DATA_DIR = %q, want %q", cfg.DATA_DIR, "/var/lib/aetherdb")
	}
}

func TestThresholdBytes(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    int64
		wantErr bool
	}{
		{
			name:  "default one megabyte",
			value: "1MB",
			want:  1048576,
		},
		{
			name:  "kilobytes",
			value: "4KB",
			want:  4096,
		},
		{
			name:  "plain bytes",
			value: "512B",
			want:  512,
		},
		{
			name:    "garbage",
			value:   "lots",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.COMPACTION_THRESHOLD = tt.value
			got, err := cfg.ThresholdBytes()
			if (err != nil) != tt.wantErr {
				t.Errorf("ThresholdBytes() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ThresholdBytes() = %d, want %d", got, tt.want)
			}
		})
	}
}
