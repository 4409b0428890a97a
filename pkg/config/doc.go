// Package config loads, validates, and watches the translation layer's
// configuration.
//
// Configuration lives in a single YAML file. Values are applied in order:
// built-in defaults, then the file, then SMARTCHAT_* environment variables.
// Environment variables follow the convention SMARTCHAT_SECTION_FIELD, for
// example:
//
//   - SMARTCHAT_ACTIVE_PROVIDER overrides active_provider
//   - SMARTCHAT_PROVIDERS_OPENAI_API_KEY overrides providers.openai.api_key
//   - SMARTCHAT_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Watch observes the file for edits and delivers the reloaded configuration
// together with a diff of what changed, so callers can re-key or swap the
// active provider without restarting.
package config
