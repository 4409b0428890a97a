package config

import (
	"fmt"
	"net/url"
	"strings"
)

// FieldError is a validation error for one configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g. "catalog.ttl").
	Field string

	// Message is a human-readable error message.
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every validation failure in a configuration.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
var logFormats = map[string]bool{"console": true, "json": true}

// Validate checks the configuration and returns a ValidationError listing
// every failed rule, or nil when the configuration is valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	if cfg.ActiveProvider == "" {
		errs = append(errs, FieldError{"active_provider", "must not be empty"})
	}

	for name, p := range cfg.Providers {
		if p.BaseURL != "" {
			if u, err := url.Parse(p.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("providers.%s.base_url", name),
					Message: fmt.Sprintf("invalid URL %q", p.BaseURL),
				})
			}
		}
	}

	if cfg.Catalog.TTL < 0 {
		errs = append(errs, FieldError{"catalog.ttl", "must not be negative"})
	}
	if cfg.Catalog.RegistryURL != "" {
		if u, err := url.Parse(cfg.Catalog.RegistryURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{"catalog.registry_url", fmt.Sprintf("invalid URL %q", cfg.Catalog.RegistryURL)})
		}
	}

	if cfg.HTTP.Timeout < 0 {
		errs = append(errs, FieldError{"http.timeout", "must not be negative"})
	}

	if !logLevels[strings.ToLower(cfg.Telemetry.Logging.Level)] {
		errs = append(errs, FieldError{"telemetry.logging.level", fmt.Sprintf("unknown level %q", cfg.Telemetry.Logging.Level)})
	}
	if !logFormats[strings.ToLower(cfg.Telemetry.Logging.Format)] {
		errs = append(errs, FieldError{"telemetry.logging.format", fmt.Sprintf("unknown format %q", cfg.Telemetry.Logging.Format)})
	}
	if cfg.Telemetry.Metrics.Enabled && !strings.HasPrefix(cfg.Telemetry.Metrics.Path, "/") {
		errs = append(errs, FieldError{"telemetry.metrics.path", "must start with /"})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
