// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the discussion service configuration from YAML,
// applies environment overrides and watches the file for live changes.
package config

import (
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	// Server: HTTP listener
	Server ServerConfig `yaml:"server"`

	// Storage: where badger keeps its files
	Storage StorageConfig `yaml:"storage"`

	// Logging: level and optional log directory
	Logging LoggingConfig `yaml:"logging"`

	// Telemetry: tracing exporter settings
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Votes: per-client vote rate limit. Reloaded live.
	Votes VoteConfig `yaml:"votes"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

type StorageConfig struct {
	DataDir        string        `yaml:"data_dir" validate:"required_without=InMemory"`
	InMemory       bool          `yaml:"in_memory"`
	SyncWrites     bool          `yaml:"sync_writes"`
	GCInterval     time.Duration `yaml:"gc_interval" validate:"gte=0"`
	GCDiscardRatio float64       `yaml:"gc_discard_ratio" validate:"gt=0,lte=1"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Dir   string `yaml:"dir,omitempty"` // e.g. ~/.journalclub/logs
	JSON  bool   `yaml:"json"`
}

type TelemetryConfig struct {
	ServiceName string `yaml:"service_name" validate:"notblank"`
	// OTLPEndpoint is a host:port gRPC collector. Empty writes traces to
	// stdout when StdoutTraces is set and disables tracing otherwise.
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty" validate:"omitempty,hostname_port"`
	StdoutTraces bool   `yaml:"stdout_traces"`
}

type VoteConfig struct {
	// RatePerSecond <= 0 disables limiting.
	RatePerSecond float64 `yaml:"rate_per_second" validate:"gte=0"`
	Burst         int     `yaml:"burst" validate:"min=1"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	dataDir := "./data"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".journalclub", "data")
	}
	return Config{
		Server: ServerConfig{
			Port:            12230,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			DataDir:        dataDir,
			SyncWrites:     true,
			GCInterval:     5 * time.Minute,
			GCDiscardRatio: 0.5,
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  true,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "journalclub-discussion",
		},
		Votes: VoteConfig{
			RatePerSecond: 2,
			Burst:         5,
		},
	}
}
