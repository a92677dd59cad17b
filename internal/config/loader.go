// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where the config file is searched, first hit
// wins.
var DefaultConfigPaths = []string{
	"adlift.yaml",
	"adlift.yml",
	"/etc/adlift/config.yaml",
	"/etc/adlift/config.yml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "ADLIFT_CONFIG"

// envPrefix is stripped from environment variable overrides.
const envPrefix = "ADLIFT_"

// Load builds the configuration from defaults, then the optional YAML
// file, then ADLIFT_-prefixed environment variables.
func Load() (*Config, error) {
	return load(findConfigFile())
}

// LoadFile builds the configuration with an explicit file path; empty
// means defaults plus environment only.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// ADLIFT_GATE_EARLY_IMPRESSIONS -> gate.early_impressions.
	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load config environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// sections are the nestable key prefixes. Every section name is a
// single word, so only the first underscore after a known section turns
// into a separator; root-level keys like interval_strategy pass through
// unchanged.
var sections = []string{
	"logging", "store", "history", "updater", "estimator", "sampler",
	"gate", "dispatcher", "gap", "trend", "uniqueness", "retrain",
	"ingest", "server",
}

func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	// Reserved for the file-path override, not a config key.
	if s == "config" {
		return ""
	}
	if rest, ok := strings.CutPrefix(s, "ingest_nats_"); ok {
		return "ingest.nats." + rest
	}
	for _, section := range sections {
		if rest, ok := strings.CutPrefix(s, section+"_"); ok {
			return section + "." + rest
		}
	}
	return s
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
