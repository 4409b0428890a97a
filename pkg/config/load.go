package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML file, applies defaults, and validates the result.
// Environment variables are not consulted; use LoadWithEnvOverrides for that.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadWithEnvOverrides loads a YAML file and applies SMARTCHAT_* environment
// variable overrides on top. Environment variables always win over the file.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate the final configuration
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// knownProviders is the set of provider ids checked for environment
// overrides even when the file never mentions them.
var knownProviders = []string{
	"openai", "anthropic", "gemini", "cohere", "ollama",
	"groq", "openrouter", "xai", "lm_studio",
}

// ApplyEnvOverrides applies SMARTCHAT_* environment variables on top of cfg.
// Callers running without a configuration file can apply them to Default().
func ApplyEnvOverrides(cfg *Config) {
	if val := os.Getenv("SMARTCHAT_ACTIVE_PROVIDER"); val != "" {
		cfg.ActiveProvider = val
	}

	names := make(map[string]bool, len(knownProviders)+len(cfg.Providers))
	for _, name := range knownProviders {
		names[name] = true
	}
	for name := range cfg.Providers {
		names[name] = true
	}
	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)
	for _, name := range ordered {
		applyProviderEnvOverrides(cfg, name)
	}

	if val := os.Getenv("SMARTCHAT_CATALOG_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Catalog.TTL = d
		}
	}
	if val := os.Getenv("SMARTCHAT_CATALOG_STORE_PATH"); val != "" {
		cfg.Catalog.StorePath = val
	}
	if val := os.Getenv("SMARTCHAT_CATALOG_REGISTRY_URL"); val != "" {
		cfg.Catalog.RegistryURL = val
	}
	if val := os.Getenv("SMARTCHAT_CATALOG_REFRESH_SCHEDULE"); val != "" {
		cfg.Catalog.RefreshSchedule = val
	}

	if val := os.Getenv("SMARTCHAT_HTTP_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.HTTP.Timeout = d
		}
	}

	if val := os.Getenv("SMARTCHAT_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("SMARTCHAT_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("SMARTCHAT_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("SMARTCHAT_TELEMETRY_METRICS_LISTEN_ADDRESS"); val != "" {
		cfg.Telemetry.Metrics.ListenAddress = val
	}
	if val := os.Getenv("SMARTCHAT_TELEMETRY_METRICS_PATH"); val != "" {
		cfg.Telemetry.Metrics.Path = val
	}
}

// applyProviderEnvOverrides applies SMARTCHAT_PROVIDERS_<NAME>_<FIELD>
// overrides for one provider, where NAME is the uppercased provider id.
func applyProviderEnvOverrides(cfg *Config, name string) {
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}

	provider, exists := cfg.Providers[name]
	prefix := fmt.Sprintf("SMARTCHAT_PROVIDERS_%s_", strings.ToUpper(name))

	modified := false
	if val := os.Getenv(prefix + "API_KEY"); val != "" {
		provider.APIKey = val
		modified = true
	}
	if val := os.Getenv(prefix + "BASE_URL"); val != "" {
		provider.BaseURL = val
		modified = true
	}
	if val := os.Getenv(prefix + "MODEL"); val != "" {
		provider.Model = val
		modified = true
	}

	if modified || exists {
		cfg.Providers[name] = provider
	}
}
