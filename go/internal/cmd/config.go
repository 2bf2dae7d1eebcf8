package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration, loaded from YAML with environment
// variable overrides for secrets and deployment-specific values.
type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Auth struct {
		TokenDurationMinutes int    `yaml:"token_duration_minutes"`
		Issuer               string `yaml:"issuer"`
	} `yaml:"auth"`

	Gateway struct {
		ReplayLimit int `yaml:"replay_limit"`
	} `yaml:"gateway"`

	Redis struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
		DB      int    `yaml:"db"`
		Prefix  string `yaml:"prefix"`
	} `yaml:"redis"`

	NATS struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		StreamName    string `yaml:"stream_name"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
}

func defaultConfig() *Config {
	var cfg Config
	cfg.Server.Port = "8000"
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Auth.TokenDurationMinutes = 60
	cfg.Auth.Issuer = "studyhall"
	cfg.Gateway.ReplayLimit = 50
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.Prefix = "studyhall"
	cfg.NATS.URL = "nats://localhost:4222"
	cfg.NATS.StreamName = "ROOM_EVENTS"
	cfg.NATS.SubjectPrefix = "room.events"
	return &cfg
}

// loadConfig reads the YAML config at path, falling back to defaults when the
// file does not exist. Environment variables override afterwards.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	cfg.Gateway.ReplayLimit = getEnvAsInt("REPLAY_LIMIT", cfg.Gateway.ReplayLimit)

	return cfg, nil
}

func (c *Config) tokenDuration() time.Duration {
	return time.Duration(c.Auth.TokenDurationMinutes) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
