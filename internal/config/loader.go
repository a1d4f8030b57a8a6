package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// maxConfigFileSize bounds config reads against runaway files.
const maxConfigFileSize = 1024 * 1024

// Load loads configuration from an optional YAML file, then overrides with
// SUPPORTD_-prefixed environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (SUPPORTD_SERVER_PORT, SUPPORTD_LLM_BASE_URL, ...)
//  2. YAML config file
//  3. Hardcoded defaults
//
// Environment variables map section_field to section.field:
//
//	SUPPORTD_SERVER_PORT                      -> server.port
//	SUPPORTD_PIPELINE_MAX_CLARIFICATION_ROUNDS -> pipeline.max_clarification_rounds
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := loadFile(k, configPath); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("SUPPORTD_", ".", func(s string) string {
		// Split on the first underscore after the prefix: section, then
		// field name with its internal underscores preserved.
		lower := strings.ToLower(strings.TrimPrefix(s, "SUPPORTD_"))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFile reads and parses one YAML config file into k.
func loadFile(k *koanf.Koanf, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}
