package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rickgao/fleetwatch/internal/config"
)

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log.format %q: must be text or json", cfg.Format)
	}
}
