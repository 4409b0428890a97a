package config

import "time"

// Default values for configuration fields.
const (
	DefaultActiveProvider = "openai"

	DefaultCatalogTTL = time.Hour

	DefaultHTTPTimeout = 60 * time.Second

	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "console"

	DefaultMetricsListenAddress = "127.0.0.1:9464"
	DefaultMetricsPath          = "/metrics"
)

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.ActiveProvider == "" {
		cfg.ActiveProvider = DefaultActiveProvider
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	if cfg.Catalog.TTL == 0 {
		cfg.Catalog.TTL = DefaultCatalogTTL
	}
	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = DefaultHTTPTimeout
	}
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultMetricsListenAddress
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}

// Default returns a configuration with every default applied, suitable for
// running without a file at all.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
