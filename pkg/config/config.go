package config

import "time"

// Config is the root configuration for the chat translation layer.
type Config struct {
	// ActiveProvider names the provider adapter operations route to.
	// It should match a key in Providers or a built-in provider id; an
	// unknown value makes the orchestrator fall back to its first
	// registered adapter.
	ActiveProvider string `yaml:"active_provider"`

	// Providers holds per-provider settings, keyed by provider id
	// (e.g. "openai", "anthropic", "ollama").
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Catalog controls the model list cache.
	Catalog CatalogConfig `yaml:"catalog"`

	// HTTP controls the outbound HTTP client.
	HTTP HTTPConfig `yaml:"http"`

	// Telemetry controls logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProviderConfig holds one provider's settings.
type ProviderConfig struct {
	// APIKey authenticates requests. Providers without authentication
	// (e.g. local Ollama) leave it empty.
	APIKey string `yaml:"api_key"`

	// BaseURL rebases the provider's endpoints onto another host,
	// e.g. a proxy or a non-default local port.
	BaseURL string `yaml:"base_url"`

	// Model overrides the provider's default model.
	Model string `yaml:"model"`

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string `yaml:"headers"`
}

// CatalogConfig controls model list caching.
type CatalogConfig struct {
	// TTL is how long a fetched model list stays fresh.
	// Default: 1h.
	TTL time.Duration `yaml:"ttl"`

	// StorePath is the SQLite file persisting model lists across
	// restarts. Empty disables persistence.
	StorePath string `yaml:"store_path"`

	// RegistryURL points at a model metadata registry used to fill in
	// context windows and pricing the provider APIs omit. Empty
	// disables enrichment.
	RegistryURL string `yaml:"registry_url"`

	// RefreshSchedule is a cron expression for background refreshes.
	// Empty disables scheduled refreshes.
	RefreshSchedule string `yaml:"refresh_schedule"`
}

// HTTPConfig controls the outbound HTTP client.
type HTTPConfig struct {
	// Timeout bounds each buffered request. Streaming requests are
	// bounded by their context instead.
	// Default: 60s.
	Timeout time.Duration `yaml:"timeout"`
}

// TelemetryConfig groups observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	// Level is debug, info, warn, or error. Default: info.
	Level string `yaml:"level"`

	// Format is console or json. Default: console.
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns the metrics listener on.
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the metrics listener address.
	// Default: "127.0.0.1:9464".
	ListenAddress string `yaml:"listen_address"`

	// Path is the scrape path. Default: "/metrics".
	Path string `yaml:"path"`
}
