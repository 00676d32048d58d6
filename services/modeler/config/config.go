// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config reads and writes the per-project modeler configuration
// stored at .modeler/config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"github.com/go-playground/validator/v10"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianModeler/services/llm"
)

const (
	// Dir is the project-local directory holding modeler state.
	Dir = ".modeler"

	// FileName is the config file name inside Dir.
	FileName = "config.yaml"

	// SchemaVersion is written by Init and Save when no version is set.
	SchemaVersion = "v1.0.0"

	// APIKeyEnv names the environment variable holding the OpenAI key.
	APIKeyEnv = "OPENAI_API_KEY"
)

// Telemetry exporter names.
const (
	ExporterNone       = "none"
	ExporterStdout     = "stdout"
	ExporterOTLP       = "otlp"
	ExporterPrometheus = "prometheus"
)

var configValidate = validator.New()

// Config is the modeler configuration.
type Config struct {
	Version      string           `yaml:"version" validate:"required"`
	ApprovalMode string           `yaml:"approval_mode" validate:"oneof=suggest auto"`
	MaxRevisions int              `yaml:"max_revisions" validate:"gte=0,lte=50"`
	TemplatesDir string           `yaml:"templates_dir,omitempty"`
	Generation   GenerationConfig `yaml:"generation"`
	LLM          LLMConfig        `yaml:"llm"`
	Debug        bool             `yaml:"debug"`
	LogLevel     string           `yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogDir       string           `yaml:"log_dir,omitempty"`
	Telemetry    TelemetryConfig  `yaml:"telemetry"`
}

// GenerationConfig tunes file generation.
type GenerationConfig struct {
	Parallelism int `yaml:"parallelism" validate:"gte=1,lte=64"`
}

// LLMConfig selects and tunes the language model backend.
type LLMConfig struct {
	Provider          string        `yaml:"provider" validate:"oneof=openai ollama"`
	OpenAI            OpenAIConfig  `yaml:"openai"`
	Ollama            OllamaConfig  `yaml:"ollama"`
	Timeout           time.Duration `yaml:"timeout" validate:"gte=0"`
	MaxRetries        int           `yaml:"max_retries" validate:"gte=0,lte=10"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gte=0"`

	// RedactPrompts removes credentials from prompts before they are sent.
	RedactPrompts bool `yaml:"redact_prompts"`
}

// OpenAIConfig configures the OpenAI backend. APIKey may be left empty
// when APIKeyEnv is set.
type OpenAIConfig struct {
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty" validate:"omitempty,url"`
}

// OllamaConfig configures the Ollama backend.
type OllamaConfig struct {
	Model     string `yaml:"model"`
	ServerURL string `yaml:"server_url" validate:"omitempty,url"`
}

// TelemetryConfig selects trace and metric exporters.
type TelemetryConfig struct {
	Traces       string `yaml:"traces" validate:"oneof=none stdout otlp"`
	TracesFile   string `yaml:"traces_file,omitempty"`
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty" validate:"required_if=Traces otlp"`
	OTLPInsecure bool   `yaml:"otlp_insecure,omitempty"`
	Metrics      string `yaml:"metrics" validate:"oneof=none prometheus stdout"`
	MetricsFile  string `yaml:"metrics_file,omitempty"`
}

// DefaultConfig returns the configuration written by Init.
func DefaultConfig() Config {
	return Config{
		Version:      SchemaVersion,
		ApprovalMode: "suggest",
		MaxRevisions: 5,
		Generation:   GenerationConfig{Parallelism: 4},
		LLM: LLMConfig{
			Provider: llm.ProviderOpenAI,
			OpenAI:   OpenAIConfig{Model: llm.DefaultOpenAIModel},
			Ollama: OllamaConfig{
				Model:     llm.DefaultOllamaModel,
				ServerURL: llm.DefaultOllamaServerURL,
			},
			Timeout:           llm.DefaultCallTimeout,
			MaxRetries:        llm.DefaultMaxRetries,
			RequestsPerSecond: llm.DefaultRequestsPerSecond,
			RedactPrompts:     true,
		},
		LogLevel: "info",
		Telemetry: TelemetryConfig{
			Traces:  ExporterNone,
			Metrics: ExporterNone,
		},
	}
}

// Path returns the config path of the project at root.
func Path(root string) string {
	return filepath.Join(root, Dir, FileName)
}

// Validate checks field constraints and the schema version.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	v := canonicalVersion(c.Version)
	if !semver.IsValid(v) {
		return fmt.Errorf("%w: version %q is not semver", ErrInvalidConfig, c.Version)
	}
	if semver.Major(v) != semver.Major(SchemaVersion) {
		return fmt.Errorf("%w: %s (this build reads %s.x)", ErrUnsupportedVersion, c.Version, semver.Major(SchemaVersion))
	}
	return nil
}

func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// APIKey seals the OpenAI key into an enclave. The environment variable
// wins over the file. Nil means no key is configured.
func (c *Config) APIKey() *memguard.Enclave {
	key := strings.TrimSpace(os.Getenv(APIKeyEnv))
	if key == "" {
		key = strings.TrimSpace(c.LLM.OpenAI.APIKey)
	}
	if key == "" {
		return nil
	}
	return memguard.NewEnclave([]byte(key))
}

// Load reads and validates the config at path. Fields missing from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save validates cfg and writes it to path, replacing any existing file.
func Save(path string, cfg *Config) error {
	if cfg.Version == "" {
		cfg.Version = SchemaVersion
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append([]byte(header), data...), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

const header = "# Aleutian Modeler configuration.\n" +
	"# The OpenAI key may be set here or through " + APIKeyEnv + ".\n"

// Init loads the config of the project at root, creating the default file
// on first run.
//
// # Outputs
//
//   - *Config: The loaded or created config.
//   - bool: True when the file was created.
//   - error: Non-nil when the file is unreadable or invalid.
func Init(root string) (*Config, bool, error) {
	path := Path(root)
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, false, fmt.Errorf("checking config: %w", err)
	}

	cfg := DefaultConfig()
	if err := Save(path, &cfg); err != nil {
		return nil, false, err
	}
	return &cfg, true, nil
}
