// Package config loads server configuration from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Debate   DebateConfig   `yaml:"debate"`
	LogLevel string         `yaml:"log_level"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnString builds the pgx connection string.
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// LLMConfig configures the reasoning provider endpoint.
type LLMConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"` // default when an agent has no binding
	Timeout time.Duration `yaml:"timeout"`
}

// DebateConfig carries the tunable debate parameters.
type DebateConfig struct {
	// WinThreshold is the absolute score gap below which the judge verdict
	// is a draw.
	WinThreshold float64 `yaml:"win_threshold"`
	// VoteScale projects the audience share onto the judge score scale.
	// Zero or negative selects the combined judge total.
	VoteScale float64 `yaml:"vote_scale"`
	// VoteConcurrency bounds in-flight audience vote calls.
	VoteConcurrency int `yaml:"vote_concurrency"`
	// BroadcastDebounce is the event bus flush window.
	BroadcastDebounce time.Duration `yaml:"broadcast_debounce"`
	// ChannelGrace is how long a finished debate's event channel lingers.
	ChannelGrace time.Duration `yaml:"channel_grace"`
}

// Default returns the configuration used when no file or overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "debated",
			Password: "secret",
			Name:     "debated_db",
			SSLMode:  "disable",
		},
		LLM: LLMConfig{
			BaseURL: "http://localhost:11434/v1",
			Model:   "llama3",
			Timeout: 120 * time.Second,
		},
		Debate: DebateConfig{
			WinThreshold:      0.5,
			VoteScale:         0,
			VoteConcurrency:   3,
			BroadcastDebounce: 30 * time.Millisecond,
			ChannelGrace:      30 * time.Second,
		},
		LogLevel: "info",
	}
}

// Load reads the YAML file at path (if non-empty and present) on top of the
// defaults, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnv("SERVER_PORT", c.Server.Port)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)

	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.APIKey = getEnv("LLM_API_KEY", c.LLM.APIKey)
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)

	c.Debate.WinThreshold = getEnvFloat("DEBATE_WIN_THRESHOLD", c.Debate.WinThreshold)
	c.Debate.VoteScale = getEnvFloat("DEBATE_VOTE_SCALE", c.Debate.VoteScale)
	c.Debate.VoteConcurrency = getEnvInt("DEBATE_VOTE_CONCURRENCY", c.Debate.VoteConcurrency)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
