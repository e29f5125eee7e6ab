package mt

import (
	"os"
	"time"
)

// Environment variables consumed by ConfigFromEnv.
const (
	envBaseURL    = "MOVABLETYPE_API_BASE_URL"
	envUsername   = "MOVABLETYPE_USERNAME"
	envPassword   = "MOVABLETYPE_PASSWORD"
	envClientID   = "MOVABLETYPE_CLIENT_ID"
	envSiteID     = "MOVABLETYPE_SITE_ID"
	envAPIVersion = "MOVABLETYPE_API_VERSION"
	envSiteURL    = "SITE_URL"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultClientID   = "movabletype-data-api"
	DefaultSiteID     = "3"
	DefaultAPIVersion = "v5"
)

// ConfigFromEnv resolves a Config from process environment variables.
//
// Base URL, username, and password are required; every missing one is
// reported in a single ConfigError rather than failing on the first.
// Client ID, site ID, and API version fall back to fixed defaults when
// unset.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		BaseURL:     os.Getenv(envBaseURL),
		Username:    os.Getenv(envUsername),
		Password:    os.Getenv(envPassword),
		ClientID:    envOrDefault(envClientID, DefaultClientID),
		SiteID:      envOrDefault(envSiteID, DefaultSiteID),
		APIVersion:  envOrDefault(envAPIVersion, DefaultAPIVersion),
		SiteURL:     os.Getenv(envSiteURL),
		HTTPTimeout: 15 * time.Second,
	}

	var missing []string
	if cfg.BaseURL == "" {
		missing = append(missing, envBaseURL)
	}
	if cfg.Username == "" {
		missing = append(missing, envUsername)
	}
	if cfg.Password == "" {
		missing = append(missing, envPassword)
	}
	if len(missing) > 0 {
		return Config{}, &ConfigError{Missing: missing}
	}

	return cfg, nil
}

// envOrDefault returns the environment variable value if set, otherwise fallback.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
