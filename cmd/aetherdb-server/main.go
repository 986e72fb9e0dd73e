// Package main provides the entry point for the aetherdb server. It
// initializes the logger, loads configuration, pins the engine choice to
// the data directory, and serves the TCP protocol on a worker pool.
package main

import (
	"fmt"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/jassi-singh/aetherdb/internal/config"
	"github.com/jassi-singh/aetherdb/internal/engine"
	"github.com/jassi-singh/aetherdb/internal/pool"
	"github.com/jassi-singh/aetherdb/internal/server"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Initialize structured logger
	slogHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo, // Change to LevelDebug for verbose logging
	})
	slog.SetDefault(slog.New(slogHandler))

	flags := flag.NewFlagSet("aetherdb-server", flag.ContinueOnError)
	flagAddr := flags.String("addr", "", "Socket address to bind, IP:PORT")
	flagEngine := flags.String("engine", "", "Storage engine: aether or leveldb")
	flagDataDir := flags.String("data-dir", "", "Directory holding the log files")
	flagConfig := flags.String("config", "config.yml", "Path to the YAML config file")
	if err := flags.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	cfg, err := config.LoadConfig(*flagConfig)
	if err != nil {
		slog.Error("main: failed to load configuration",
			"error", err)
		return 1
	}
	if *flagAddr != "" {
		cfg.ADDR = *flagAddr
	}
	if *flagEngine != "" {
		cfg.ENGINE = *flagEngine
	}
	if *flagDataDir != "" {
		cfg.DATA_DIR = *flagDataDir
	}

	slog.Info("main: configuration loaded",
		"addr", cfg.ADDR,
		"engine", cfg.ENGINE,
		"data_dir", cfg.DATA_DIR,
		"pool_size", cfg.POOL_SIZE,
	)

	if cfg.ENGINE != engine.NameAether && cfg.ENGINE != engine.NameLevelDB {
		slog.Error("main: unknown engine",
			"engine", cfg.ENGINE)
		return 1
	}

	// A data directory written by one engine cannot be reopened by another.
	if err := server.CheckEngine(cfg.DATA_DIR, cfg.ENGINE); err != nil {
		slog.Error("main: engine check failed",
			"error", err)
		return 1
	}

	var eng engine.Engine
	switch cfg.ENGINE {
	case engine.NameAether:
		eng, err = engine.NewStore(cfg)
	case engine.NameLevelDB:
		eng, err = engine.NewLevelDB(cfg)
	}
	if err != nil {
		slog.Error("main: failed to initialize engine",
			"engine", cfg.ENGINE,
			"error", err)
		return 1
	}
	defer func() {
		if err := eng.Close(); err != nil {
			slog.Error("main: error closing engine",
				"error", err)
		}
	}()

	workers, err := pool.NewSharedQueue(cfg.POOL_SIZE)
	if err != nil {
		slog.Error("main: failed to start worker pool",
			"error", err)
		return 1
	}
	defer workers.Close()

	if err := server.New(eng, workers).ListenAndServe(cfg.ADDR); err != nil {
		slog.Error("main: server error",
			"addr", cfg.ADDR,
			"error", err)
		return 1
	}
	return 0
}
