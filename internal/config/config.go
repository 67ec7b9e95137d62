package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" json:"server"`
	Auth    AuthConfig    `mapstructure:"auth" json:"auth"`
	Audio   AudioConfig   `mapstructure:"audio" json:"audio"`
	Model   ModelConfig   `mapstructure:"model" json:"model"`
	Limits  LimitsConfig  `mapstructure:"limits" json:"limits"`
	Logging LoggingConfig `mapstructure:"logging" json:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Listen         string        `mapstructure:"listen" json:"listen"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes" json:"max_upload_bytes"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	APIKey string `mapstructure:"api_key" json:"api_key"`
}

// AudioConfig holds format normalization settings.
type AudioConfig struct {
	FFmpegPath       string        `mapstructure:"ffmpeg_path" json:"ffmpeg_path"`
	TranscodeTimeout time.Duration `mapstructure:"transcode_timeout" json:"transcode_timeout"`
	StagingDir       string        `mapstructure:"staging_dir" json:"staging_dir"`
}

// ModelConfig selects and locates the emotion classifier.
type ModelConfig struct {
	// Backend is "dense" (in-process network artifact) or "remote".
	Backend    string        `mapstructure:"backend" json:"backend"`
	Path       string        `mapstructure:"path" json:"path"`
	LabelsPath string        `mapstructure:"labels_path" json:"labels_path"`
	RemoteURL  string        `mapstructure:"remote_url" json:"remote_url"`
	Timeout    time.Duration `mapstructure:"timeout" json:"timeout"`
}

// LimitsConfig holds request limit settings.
type LimitsConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent" json:"max_concurrent"`
	MaxQueue      int `mapstructure:"max_queue" json:"max_queue"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:         "0.0.0.0:5001",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   120 * time.Second,
			MaxUploadBytes: 32 << 20,
		},
		Auth: AuthConfig{
			APIKey: "",
		},
		Audio: AudioConfig{
			FFmpegPath:       "ffmpeg",
			TranscodeTimeout: 30 * time.Second,
			StagingDir:       "",
		},
		Model: ModelConfig{
			Backend: "dense",
			Path:    "emotion_model.msgpack",
			Timeout: 10 * time.Second,
		},
		Limits: LimitsConfig{
			MaxConcurrent: 4,
			MaxQueue:      16,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load returns a Config populated with defaults and environment overrides.
func Load() (*Config, error) {
	return LoadWithDefaults(nil)
}

// LoadWithDefaults loads configuration using defaults and optional overrides map (for tests).
func LoadWithDefaults(overrides map[string]interface{}) (*Config, error) {
	cfg := Default()
	applyEnvOverrides(cfg)

	if overrides != nil {
		raw, err := json.Marshal(overrides)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EMOTION_LISTEN"); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv("EMOTION_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("EMOTION_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if v := os.Getenv("EMOTION_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Server.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("EMOTION_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("EMOTION_FFMPEG_PATH"); v != "" {
		cfg.Audio.FFmpegPath = v
	}
	if v := os.Getenv("EMOTION_TRANSCODE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Audio.TranscodeTimeout = d
		}
	}
	if v := os.Getenv("EMOTION_STAGING_DIR"); v != "" {
		cfg.Audio.StagingDir = v
	}
	if v := os.Getenv("EMOTION_MODEL_BACKEND"); v != "" {
		cfg.Model.Backend = v
	}
	if v := os.Getenv("EMOTION_MODEL_PATH"); v != "" {
		cfg.Model.Path = v
	}
	if v := os.Getenv("EMOTION_MODEL_LABELS"); v != "" {
		cfg.Model.LabelsPath = v
	}
	if v := os.Getenv("EMOTION_MODEL_URL"); v != "" {
		cfg.Model.RemoteURL = v
	}
	if v := os.Getenv("EMOTION_MODEL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Model.Timeout = d
		}
	}
	if v := os.Getenv("EMOTION_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Limits.MaxConcurrent = n
		}
	}
	if v := os.Getenv("EMOTION_MAX_QUEUE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Limits.MaxQueue = n
		}
	}
	if v := os.Getenv("EMOTION_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("EMOTION_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
