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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AleutianAI/journalclub/services/discussion/datatypes"
	"gopkg.in/yaml.v3"
)

// Environment overrides, applied after the file is read.
const (
	EnvPort         = "JOURNALCLUB_PORT"
	EnvDataDir      = "JOURNALCLUB_DATA_DIR"
	EnvLogLevel     = "JOURNALCLUB_LOG_LEVEL"
	EnvOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvConfigPath   = "JOURNALCLUB_CONFIG"
)

// DefaultPath returns ~/.journalclub/journalclub.yaml, or a relative path
// when the home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "journalclub.yaml"
	}
	return filepath.Join(home, ".journalclub", "journalclub.yaml")
}

// Load reads the config at path, creating it with defaults on first run.
//
// Description:
//
//	Values missing from the file keep their defaults. Environment
//	overrides are applied next, then the result is validated.
//
// Inputs:
//
//	path - Config file. Empty uses $JOURNALCLUB_CONFIG, then DefaultPath.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - Non-nil if the file cannot be created, read, parsed or fails
//	validation.
func Load(path string) (*Config, error) {
	return load(resolvePath(path), os.LookupEnv)
}

func resolvePath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	return DefaultPath()
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Info("first run detected, creating the config", "path", path)
		if err := createDefault(path); err != nil {
			return nil, err
		}
	}
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}
	return &cfg, nil
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		cfg.Server.Port = port
	}
	if v, ok := lookup(EnvDataDir); ok && v != "" {
		cfg.Storage.DataDir = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.Logging.Level = v
	}
	if v, ok := lookup(EnvOTLPEndpoint); ok && v != "" {
		// The gRPC exporter wants host:port; accept the URL form too.
		v = strings.TrimPrefix(strings.TrimPrefix(v, "http://"), "https://")
		cfg.Telemetry.OTLPEndpoint = strings.TrimSuffix(v, "/")
	}
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := datatypes.Validator().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
