package adapters

import "log/slog"

// BuildHeaders assembles the header set for one provider call: the builtin
// extra headers plus the credential header for the provider's auth scheme.
// A missing key on a provider that requires one is logged and the request
// goes out unauthenticated, so the provider's own error payload reaches the
// caller instead of a synthetic local error.
func BuildHeaders(cfg ProviderConfig, apiKey string, logger *slog.Logger) map[string]string {
	headers := make(map[string]string, len(cfg.ExtraHeaders)+1)
	for k, v := range cfg.ExtraHeaders {
		headers[k] = v
	}

	switch cfg.Auth {
	case AuthBearer:
		if apiKey == "" {
			warnMissingKey(cfg, logger)
			break
		}
		headers["Authorization"] = "Bearer " + apiKey
	case AuthHeader:
		if apiKey == "" {
			warnMissingKey(cfg, logger)
			break
		}
		headers[cfg.APIKeyHeader] = apiKey
	case AuthNone:
	}
	return headers
}

func warnMissingKey(cfg ProviderConfig, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("api key missing, sending unauthenticated request",
		"provider", cfg.ID,
	)
}
