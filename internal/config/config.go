package config

import (
	"errors"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// DatasetConfig points at the condition table.
type DatasetConfig struct {
	Path string `yaml:"path"`
}

// LLMConfig holds configuration for the OpenAI-compatible chat API.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	MaxRetries  uint64  `yaml:"max_retries"`

	// APIKey is resolved from the environment, never from the file.
	APIKey string `yaml:"-"`
}

// StoreConfig selects the session backend: memory, postgres or redis.
// TTLHours is the idle expiry of the memory and redis backends.
type StoreConfig struct {
	Type        string `yaml:"type"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`
	TTLHours    int    `yaml:"ttl_hours"`
}

// ChatConfig bounds a consultation.
type ChatConfig struct {
	MessageCap int `yaml:"message_cap"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server   ServerConfig  `yaml:"server"`
	Dataset  DatasetConfig `yaml:"dataset"`
	LLM      LLMConfig     `yaml:"llm"`
	Store    StoreConfig   `yaml:"store"`
	Chat     ChatConfig    `yaml:"chat"`
	LogLevel string        `yaml:"log_level"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// FromEnv overrides file values with environment variables and resolves
// the API key.  getenv is usually os.Getenv.
func (c *AppConfig) FromEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Server.Port, "PORT")
	set(&c.Dataset.Path, "DATASET_PATH")
	set(&c.LLM.BaseURL, "LLM_BASE_URL")
	set(&c.LLM.Model, "LLM_MODEL")
	set(&c.Store.Type, "STORE")
	set(&c.Store.DatabaseURL, "DATABASE_URL")
	set(&c.Store.RedisURL, "REDIS_URL")
	set(&c.LogLevel, "LOG_LEVEL")
	if v := getenv("MESSAGE_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Chat.MessageCap = n
		}
	}

	c.LLM.APIKey = getenv(c.LLM.APIKeyEnv)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = getenv("GOOGLE_API_KEY")
	}
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Server:   ServerConfig{Port: "8080"},
		Dataset:  DatasetConfig{Path: "AyurGenixAI_Dataset.xlsx"},
		LLM:      LLMConfig{Temperature: 0.2},
		Store:    StoreConfig{Type: "memory"},
		Chat:     ChatConfig{MessageCap: 50},
		LogLevel: "INFO",
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "memory"
	}
	if cfg.Store.TTLHours == 0 {
		cfg.Store.TTLHours = 24
	}
	if cfg.Chat.MessageCap <= 0 {
		cfg.Chat.MessageCap = 50
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 60
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 3
	}
}
