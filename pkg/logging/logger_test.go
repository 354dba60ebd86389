// Copyright (C) 2026 FinHaven Technologies (dev@finhaven.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_JSONWithServiceAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Service: "advisory", Output: &buf})

	logger.Info("hello", "key", "value")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if record["service"] != "advisory" {
		t.Errorf("expected service attr, got %v", record["service"])
	}
	if record["key"] != "value" {
		t.Errorf("expected key attr, got %v", record["key"])
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Output: &buf})

	logger.Info("should be dropped")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Error("info record emitted below configured level")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("warn record missing")
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: FormatText, Output: &buf})

	logger.Info("text line")

	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Error("expected text output, got JSON")
	}
}
