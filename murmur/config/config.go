// Package config loads and validates application configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/murmurvoice/murmur/murmur"
)

// Config stores all configuration of the application. Values are read by
// viper from a TOML config file or environment variables and are read-only
// after load.
type Config struct {
	Whisper  WhisperConfig  `mapstructure:"whisper"`
	LMStudio LMStudioConfig `mapstructure:"lmstudio"`
	Llama    LlamaConfig    `mapstructure:"llama"`
	Audio    AudioConfig    `mapstructure:"audio"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// WhisperConfig selects the transcription backend.
type WhisperConfig struct {
	Model    string        `mapstructure:"model"`    // tiny|base|small|medium|large
	BaseURL  string        `mapstructure:"base_url"` // whisper server endpoint
	Language string        `mapstructure:"language"` // optional language hint
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LMStudioConfig points at the local LM Studio server.
type LMStudioConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"` // 0 means server default
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LlamaConfig configures the optional in-process GGUF provider.
type LlamaConfig struct {
	ModelPath   string `mapstructure:"model_path"`
	ContextSize int    `mapstructure:"context_size"`
}

// AudioConfig fixes the PCM format shared by capture and transcription.
type AudioConfig struct {
	SampleRate int `mapstructure:"sample_rate"`
	Channels   int `mapstructure:"channels"`
}

// StorageConfig selects the turn-store backend.
type StorageConfig struct {
	Backend    string `mapstructure:"backend"` // toml|libsql
	LibSQLPath string `mapstructure:"libsql_path"`
}

// ChatConfig controls orchestration behavior.
type ChatConfig struct {
	Provider     string        `mapstructure:"provider"` // lmstudio|llama
	LLMRetries   int           `mapstructure:"llm_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// LoggingConfig controls log output and the turn record directory.
type LoggingConfig struct {
	OutputDir string `mapstructure:"output_dir"` // persisted turn records
	Level     string `mapstructure:"level"`
}

var whisperModels = []string{"tiny", "base", "small", "medium", "large"}

// LoadConfig reads configuration from the given file, falling back to
// defaults and environment variables (MURMUR_WHISPER_MODEL and friends).
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(murmur.DefaultAppName)
		v.SetConfigType("toml")
	}

	v.SetDefault("whisper.model", "base")
	v.SetDefault("whisper.base_url", "http://localhost:8080/v1")
	v.SetDefault("whisper.language", "")
	v.SetDefault("whisper.timeout", "60s")

	v.SetDefault("lmstudio.base_url", "http://localhost:1234/v1")
	v.SetDefault("lmstudio.model", "lmstudio")
	v.SetDefault("lmstudio.temperature", 0.7)
	v.SetDefault("lmstudio.max_tokens", 0)
	v.SetDefault("lmstudio.timeout", "120s")

	v.SetDefault("llama.model_path", "")
	v.SetDefault("llama.context_size", 4096)

	v.SetDefault("audio.sample_rate", murmur.DefaultSampleRate)
	v.SetDefault("audio.channels", murmur.DefaultChannels)

	v.SetDefault("storage.backend", "toml")
	v.SetDefault("storage.libsql_path", "murmur.db")

	v.SetDefault("chat.provider", "lmstudio")
	v.SetDefault("chat.llm_retries", 2)
	v.SetDefault("chat.retry_backoff", "500ms")

	v.SetDefault("logging.output_dir", "logs")
	v.SetDefault("logging.level", "info")

	v.SetEnvPrefix(strings.ToUpper(murmur.DefaultAppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects option values the pipeline cannot run with.
func (c *Config) Validate() error {
	valid := false
	for _, m := range whisperModels {
		if c.Whisper.Model == m {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("whisper.model must be one of %s, got %q", strings.Join(whisperModels, ", "), c.Whisper.Model)
	}

	if c.LMStudio.Temperature < 0 || c.LMStudio.Temperature > 2 {
		return fmt.Errorf("lmstudio.temperature must be within [0, 2], got %g", c.LMStudio.Temperature)
	}
	if c.LMStudio.MaxTokens < 0 {
		return fmt.Errorf("lmstudio.max_tokens must not be negative, got %d", c.LMStudio.MaxTokens)
	}

	switch c.Storage.Backend {
	case "toml", "libsql":
	default:
		return fmt.Errorf("storage.backend must be toml or libsql, got %q", c.Storage.Backend)
	}

	switch c.Chat.Provider {
	case "lmstudio", "llama":
	default:
		return fmt.Errorf("chat.provider must be lmstudio or llama, got %q", c.Chat.Provider)
	}
	if c.Chat.Provider == "llama" && c.Llama.ModelPath == "" {
		return fmt.Errorf("llama.model_path is required when chat.provider is llama")
	}

	if c.Chat.LLMRetries < 0 {
		return fmt.Errorf("chat.llm_retries must not be negative, got %d", c.Chat.LLMRetries)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Logging.OutputDir == "" {
		return fmt.Errorf("logging.output_dir must not be empty")
	}

	return nil
}
