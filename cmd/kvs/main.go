// Package main provides the entry point for the kvs command-line tool. It
// initializes the logger, loads configuration, opens the storage engine
// bound to the current working directory, and dispatches exactly one
// subcommand before exiting (spec.md §6.2).
package main

import (
	"log/slog"
	"os"

	"github.com/aether-kv/kvs/internal/cli"
	"github.com/aether-kv/kvs/internal/config"
	"github.com/aether-kv/kvs/internal/engine"
)

func main() {
	os.Exit(run())
}

func run() int {
	slogHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})
	slog.SetDefault(slog.New(slogHandler))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("main: failed to load configuration", "error", err)
		return 1
	}

	dir, err := os.Getwd()
	if err != nil {
		slog.Error("main: failed to resolve working directory", "error", err)
		return 1
	}
	cfg.DataDir = dir

	eng, err := engine.Open(cfg.DataDir, cfg)
	if err != nil {
		slog.Error("main: failed to open engine", "dir", cfg.DataDir, "error", err)
		return 1
	}
	defer func() {
		if err := eng.Close(); err != nil {
			slog.Error("main: error closing engine", "error", err)
		}
	}()

	handler := cli.NewHandler(eng, os.Stdout, os.Stderr)
	return handler.Run(os.Args[1:])
}
