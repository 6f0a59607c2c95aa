package config

import "fmt"

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid server.metrics_port: %d", c.Server.MetricsPort)
	}
	if c.Server.MetricsPort != 0 && c.Server.MetricsPort == c.Server.Port {
		return fmt.Errorf("server.metrics_port must differ from server.port")
	}

	if c.Provider.BaseURL == "" {
		return fmt.Errorf("invalid provider.base_url: empty")
	}
	if c.Provider.Model == "" {
		return fmt.Errorf("invalid provider.model: empty")
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider API key required: not found in config (provider.api_key) or environment variable (OPENAI_API_KEY)")
	}

	if c.Transcription.Model == "" {
		return fmt.Errorf("invalid transcription.model: empty")
	}
	if c.Transcription.Language != "" && !isValidLanguageCode(c.Transcription.Language) {
		return fmt.Errorf("invalid transcription.language: %s (use empty string for auto-detect or ISO-639-1 codes like 'en', 'es', 'fr')", c.Transcription.Language)
	}

	if c.Audio.MinCommitBytes < 0 {
		return fmt.Errorf("invalid audio.min_commit_bytes: %d", c.Audio.MinCommitBytes)
	}
	if c.Audio.FlushInterval <= 0 {
		return fmt.Errorf("invalid audio.flush_interval: %v", c.Audio.FlushInterval)
	}

	return nil
}

// isValidLanguageCode accepts two-letter ISO-639-1 codes, optionally with
// a region suffix like "en-US".
func isValidLanguageCode(code string) bool {
	if len(code) != 2 && !(len(code) == 5 && code[2] == '-') {
		return false
	}
	for i, r := range code {
		if i == 2 {
			continue
		}
		isLower := r >= 'a' && r <= 'z'
		isUpper := r >= 'A' && r <= 'Z'
		if !isLower && !isUpper {
			return false
		}
	}
	return true
}
