// Copyright (C) 2026 FinHaven Technologies (dev@finhaven.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command advisory starts the FinHaven advisor engagement HTTP server.
//
// This is the main entry point for the containerized advisory service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - ADVISORY_PORT: HTTP server port (default: 12310)
//   - ADVISORY_DATA_DIR: badger store directory (empty: in-memory)
//   - ADVISORY_TRACING: "true" enables OTLP trace export (default: false)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector
//     (default: finhaven-otel-collector:4317)
//   - GIN_MODE: Gin framework mode (debug, release, test)
//
// # Usage
//
//	# Build
//	go build -o advisory ./cmd/advisory
//
//	# Run
//	ADVISORY_DATA_DIR=/var/lib/finhaven/advisory ./advisory
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/finhaven/finhaven/services/advisory"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := advisory.Config{
		Port:          getEnvInt("ADVISORY_PORT", 12310),
		DataDir:       os.Getenv("ADVISORY_DATA_DIR"),
		OTelEndpoint:  getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "finhaven-otel-collector:4317"),
		EnableTracing: getEnvBool("ADVISORY_TRACING", false),
		GinMode:       os.Getenv("GIN_MODE"),
	}

	slog.Info("starting advisory service",
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"tracing", cfg.EnableTracing,
	)

	// Nil provider selects the local no-op identity; deployments with a
	// real identity stack wire their provider in here.
	svc, err := advisory.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create advisory service: %v", err)
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("Advisory service error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
