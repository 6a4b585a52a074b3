package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"transcriber-desk/internal/domain"
)

const (
	// EnvBackendURL overrides the configured transcription service address.
	EnvBackendURL = "TRANSCRIBER_BACKEND_URL"
	// EnvModel overrides the default model selection.
	EnvModel = "TRANSCRIBER_MODEL"
	// EnvLanguage overrides the transcription language hint.
	EnvLanguage = "TRANSCRIBER_LANGUAGE"
	// EnvRequestTimeout overrides the request timeout in seconds.
	EnvRequestTimeout = "TRANSCRIBER_REQUEST_TIMEOUT"

	defaultRequestTimeoutSeconds = 600
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		BackendURL:            "http://localhost:8000",
		Model:                 "base",
		Language:              "pt",
		RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
	}
}

// DefaultPath returns the settings file location under the user's home.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".transcriber-desk", "settings.json"), nil
}

// ApplyEnv overlays non-empty environment overrides on settings.
func ApplyEnv(settings domain.Settings, lookup func(string) (string, bool)) domain.Settings {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvBackendURL); ok && strings.TrimSpace(v) != "" {
		settings.BackendURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvModel); ok && strings.TrimSpace(v) != "" {
		settings.Model = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLanguage); ok {
		settings.Language = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvRequestTimeout); ok {
		if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
			settings.RequestTimeoutSeconds = secs
		}
	}
	return settings
}

// Normalize trims user input and fills defaults for empty fields.
func Normalize(settings domain.Settings) domain.Settings {
	defaults := DefaultSettings()
	settings.BackendURL = strings.TrimRight(strings.TrimSpace(settings.BackendURL), "/")
	settings.Model = strings.TrimSpace(settings.Model)
	settings.Language = strings.TrimSpace(settings.Language)
	if settings.BackendURL == "" {
		settings.BackendURL = defaults.BackendURL
	}
	if settings.Model == "" {
		settings.Model = defaults.Model
	}
	if settings.RequestTimeoutSeconds <= 0 {
		settings.RequestTimeoutSeconds = defaults.RequestTimeoutSeconds
	}
	return settings
}
