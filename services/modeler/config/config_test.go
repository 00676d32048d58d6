// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_CreatesThenLoads(t *testing.T) {
	root := t.TempDir()

	cfg, created, err := Init(root)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, DefaultConfig(), *cfg)
	assert.FileExists(t, Path(root))

	cfg.ApprovalMode = "auto"
	cfg.LLM.Provider = "ollama"
	require.NoError(t, Save(Path(root), cfg))

	again, created, err := Init(root)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "auto", again.ApprovalMode)
	assert.Equal(t, "ollama", again.LLM.Provider)
}

func TestLoad_MissingFieldsKeepDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("version: 1.2.0\nllm:\n  timeout: 30s\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", cfg.Version)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "suggest", cfg.ApprovalMode)
	assert.Equal(t, 4, cfg.Generation.Parallelism)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ErrNotInitialized)

	tests := []struct {
		name string
		body string
		want error
	}{
		{"bad yaml", "version: [", ErrInvalidConfig},
		{"bad mode", "approval_mode: sometimes\n", ErrInvalidConfig},
		{"bad provider", "llm:\n  provider: bard\n", ErrInvalidConfig},
		{"not semver", "version: latest\n", ErrInvalidConfig},
		{"future major", "version: v2.0.0\n", ErrUnsupportedVersion},
		{"otlp without endpoint", "telemetry:\n  traces: otlp\n", ErrInvalidConfig},
		{"zero parallelism", "generation:\n  parallelism: 0\n", ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))
			_, err := Load(path)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAPIKey(t *testing.T) {
	cfg := DefaultConfig()

	t.Setenv(APIKeyEnv, "")
	assert.Nil(t, cfg.APIKey())

	cfg.LLM.OpenAI.APIKey = "from-file"
	enclave := cfg.APIKey()
	require.NotNil(t, enclave)
	buf, err := enclave.Open()
	require.NoError(t, err)
	assert.Equal(t, "from-file", buf.String())
	buf.Destroy()

	t.Setenv(APIKeyEnv, " from-env ")
	buf, err = cfg.APIKey().Open()
	require.NoError(t, err)
	assert.Equal(t, "from-env", buf.String())
	buf.Destroy()
}

func TestWatcher_Reloads(t *testing.T) {
	root := t.TempDir()
	cfg, _, err := Init(root)
	require.NoError(t, err)

	reloaded := make(chan *Config, 4)
	w := NewWatcher(Path(root), func(c *Config) { reloaded <- c }, WithDebounce(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	// An invalid edit is skipped.
	require.NoError(t, os.WriteFile(Path(root), []byte("approval_mode: never\n"), 0o600))
	time.Sleep(100 * time.Millisecond)

	cfg.ApprovalMode = "auto"
	cfg.LogLevel = "debug"
	require.NoError(t, Save(Path(root), cfg))

	select {
	case got := <-reloaded:
		assert.Equal(t, "auto", got.ApprovalMode)
		assert.Equal(t, "debug", got.LogLevel)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}
