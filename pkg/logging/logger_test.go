// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" warn ", LevelWarn, false},
		{"Error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnknownLevel) {
				t.Errorf("error %v does not wrap ErrUnknownLevel", err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNew_WithLogDir(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{LogDir: dir, Service: "test", Quiet: true})

	logger.Slog().Info("plan ready", slog.Int("steps", 3))
	logger.Slog().Debug("filtered out")

	path := logger.FilePath()
	if path == "" {
		t.Fatal("FilePath() is empty with LogDir set")
	}
	want := "test_" + time.Now().Format("2006-01-02") + ".log"
	if filepath.Base(path) != want {
		t.Errorf("log file = %q, want %q", filepath.Base(path), want)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if logger.FilePath() != "" {
		t.Error("FilePath() not cleared after Close")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1:\n%s", len(lines), data)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["msg"] != "plan ready" || rec["service"] != "test" || rec["steps"] != float64(3) {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestNew_WithLogDir_Unwritable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	logger := New(Config{LogDir: filepath.Join(file, "logs"), Quiet: true})
	defer logger.Close()

	if logger.FilePath() != "" {
		t.Error("expected file logging to be disabled")
	}
	if logger.Slog() == nil {
		t.Error("Slog() is nil")
	}
}

func TestLogger_SetLevel(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Level: LevelWarn, LogDir: dir, Quiet: true})
	child := logger.Slog().With(slog.String("component", "workflow"))

	child.Info("hidden")
	logger.SetLevel(LevelDebug)
	if logger.Level() != LevelDebug {
		t.Errorf("Level() = %v, want DEBUG", logger.Level())
	}
	child.Debug("shown")

	path := logger.FilePath()
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "hidden") {
		t.Error("Info record written at Warn level")
	}
	if !strings.Contains(string(data), "shown") {
		t.Error("derived logger did not pick up the new level")
	}
}

func TestLogger_CloseWithoutFile(t *testing.T) {
	logger := New(Config{Quiet: true})
	if err := logger.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error {
	return errors.New("disk full")
}

func TestMultiHandler(t *testing.T) {
	var debugBuf, warnBuf bytes.Buffer
	debug := slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})
	warn := slog.NewTextHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn})
	mh := &multiHandler{handlers: []slog.Handler{debug, warn}}

	if !mh.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Debug should be enabled by the debug handler")
	}

	logger := slog.New(mh).With(slog.String("k", "v")).WithGroup("g")
	logger.Info("info message", slog.Int("n", 1))
	logger.Warn("warn message")

	if !strings.Contains(debugBuf.String(), "info message") || !strings.Contains(debugBuf.String(), "warn message") {
		t.Errorf("debug handler output = %q", debugBuf.String())
	}
	if strings.Contains(warnBuf.String(), "info message") {
		t.Error("warn handler received an Info record")
	}
	if !strings.Contains(debugBuf.String(), "k=v") || !strings.Contains(debugBuf.String(), "g.n=1") {
		t.Errorf("attrs or group missing: %q", debugBuf.String())
	}

	failing := &multiHandler{handlers: []slog.Handler{failingHandler{debug}, warn}}
	r := slog.NewRecord(time.Now(), slog.LevelError, "boom", 0)
	if err := failing.Handle(context.Background(), r); err == nil {
		t.Error("expected handler error to propagate")
	}
	if !strings.Contains(warnBuf.String(), "boom") {
		t.Error("later handlers must still receive the record")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/.modeler/logs"); got != filepath.Join(home, ".modeler/logs") {
		t.Errorf("expandPath(~) = %q", got)
	}
	if got := expandPath("/var/log"); got != "/var/log" {
		t.Errorf("expandPath(/var/log) = %q", got)
	}
}
