// Copyright (C) 2026 FinHaven Technologies (dev@finhaven.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for FinHaven services.
//
// The package is a thin construction layer over the standard library slog:
// services get a JSON logger tagged with their service name, suitable for
// container stdout collection, and tests get a text logger pointed at any
// io.Writer.
//
// # Basic Usage
//
//	logger := logging.Default("advisory")
//	slog.SetDefault(logger)
//	slog.Info("server starting", "port", 12310)
//
// # Test Usage
//
//	var buf bytes.Buffer
//	logger := logging.New(logging.Config{
//	    Level:  slog.LevelDebug,
//	    Format: logging.FormatText,
//	    Output: &buf,
//	})
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Format selects the slog handler encoding.
type Format string

const (
	// FormatJSON emits one JSON object per line. Production default.
	FormatJSON Format = "json"

	// FormatText emits logfmt-style lines. Useful in tests and local runs.
	FormatText Format = "text"
)

// Config holds logger construction options. The zero value produces an
// info-level JSON logger on stdout.
type Config struct {
	// Level is the minimum level that will be emitted.
	Level slog.Level

	// Format selects JSON or text encoding. Default: FormatJSON.
	Format Format

	// Service, when non-empty, is attached to every record as the
	// "service" attribute.
	Service string

	// Output is the destination writer. Default: os.Stdout.
	Output io.Writer
}

// New builds a *slog.Logger from cfg.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.Format == FormatText {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler)
	if cfg.Service != "" {
		logger = logger.With(slog.String("service", cfg.Service))
	}
	return logger
}

// Default returns the production logger for a service: info-level JSON on
// stdout, tagged with the service name.
func Default(service string) *slog.Logger {
	return New(Config{Service: service})
}
