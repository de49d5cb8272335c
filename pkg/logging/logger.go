// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging configures structured logging for the gateway.
//
// Built on log/slog. The service runs containerized, so logs go to
// stderr in JSON for machine collection; text format is available for
// local development.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Config controls logger construction. The zero value produces an
// Info-level JSON logger with no service attribute.
type Config struct {
	// Level is the minimum level, one of "debug", "info", "warn",
	// "error" (case-insensitive). Unknown values fall back to info.
	Level string

	// Service is attached to every record as the "service" attribute.
	Service string

	// Text switches stderr output to the human-readable text handler.
	Text bool
}

// New builds a logger from config.
func New(config Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(config.Level),
	}

	var handler slog.Handler
	if config.Text {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{
			slog.String("service", config.Service),
		})
	}

	return slog.New(handler)
}

// Setup builds a logger from config and installs it as the slog
// default, so package-level slog calls across the service pick it up.
func Setup(config Config) *slog.Logger {
	logger := New(config)
	slog.SetDefault(logger)
	return logger
}

// parseLevel maps a level name to slog.Level, defaulting to info.
func parseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
