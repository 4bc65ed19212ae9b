package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Load reads configuration from a YAML file (optional) and overrides it
// with environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (LEADLENS_QDRANT_HOST, LEADLENS_ANSWER_MODEL, ...)
//  2. YAML config file
//  3. Hardcoded defaults
//
// Environment variables are mapped to config keys by stripping the
// LEADLENS_ prefix, lowercasing, and splitting on the first underscore:
//
//	LEADLENS_SERVER_PORT           -> server.port
//	LEADLENS_ANSWER_CONTEXT_TOKENS -> answer.context_tokens
//	LEADLENS_QDRANT_REQUEST_TIMEOUT -> qdrant.request_timeout
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("LEADLENS_", ".", func(s string) string {
		// LEADLENS_ANSWER_CONTEXT_TOKENS -> answer.context_tokens
		// (section.field_name pattern: split on first underscore only)
		lower := strings.ToLower(strings.TrimPrefix(s, "LEADLENS_"))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
