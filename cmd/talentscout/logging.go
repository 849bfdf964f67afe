package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/MatusOllah/slogcolor"
	"github.com/fatih/color"

	"github.com/kalambet/talentscout/internal/config"
)

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// newLogHandler builds the slog handler selected by log.format.
func newLogHandler(w io.Writer, cfg config.LogConfig) slog.Handler {
	level := parseLevel(cfg.Level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "text":
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
	if color.NoColor {
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}

	opts := slogcolor.DefaultOptions
	opts.Level = level
	opts.MsgColor = color.New(color.FgMagenta)
	opts.SrcFileMode = slogcolor.Nop
	return slogcolor.NewHandler(w, opts)
}

func setupLogging(cfg config.LogConfig) {
	slog.SetDefault(slog.New(newLogHandler(stderr, cfg)))
}
