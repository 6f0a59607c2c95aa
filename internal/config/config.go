package config

import "time"

type Config struct {
	Server        ServerConfig        `toml:"server"`
	Provider      ProviderConfig      `toml:"provider"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Audio         AudioConfig         `toml:"audio"`
}

type ServerConfig struct {
	Port int `toml:"port"`
	// MetricsPort exposes prometheus metrics on a separate listener;
	// 0 disables it.
	MetricsPort int `toml:"metrics_port"`
}

// ProviderConfig locates the upstream realtime endpoint. APIKey may be
// left empty in the file and supplied via OPENAI_API_KEY instead.
type ProviderConfig struct {
	BaseURL string `toml:"base_url"`
	Path    string `toml:"path"`
	Model   string `toml:"model"`
	APIKey  string `toml:"api_key"`
}

type TranscriptionConfig struct {
	Model    string `toml:"model"`
	Language string `toml:"language"`
}

type AudioConfig struct {
	// MinCommitBytes gates flushes: encoded audio below this amount is
	// never committed. 0 means the built-in default (~100ms).
	MinCommitBytes int `toml:"min_commit_bytes"`
	// FlushInterval is the client-side periodic flush cadence.
	FlushInterval time.Duration `toml:"flush_interval"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			MetricsPort: 0,
		},
		Provider: ProviderConfig{
			BaseURL: "wss://api.openai.com",
			Path:    "/v1/realtime",
			Model:   "gpt-4o-realtime-preview",
		},
		Transcription: TranscriptionConfig{
			Model:    "gpt-4o-transcribe",
			Language: "",
		},
		Audio: AudioConfig{
			MinCommitBytes: 0,
			FlushInterval:  1200 * time.Millisecond,
		},
	}
}
