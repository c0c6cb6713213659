package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the relay process.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	Env        string `yaml:"env"`

	// RedisAddr selects the Redis-backed token verifier when set.
	RedisAddr string `yaml:"redis_addr"`

	// AuthPublicKey is a base64 Ed25519 public key for the stateless
	// token verifier, used when no Redis is configured.
	AuthPublicKey string `yaml:"auth_public_key"`

	// MaxConns caps concurrent websocket connections; 0 is unlimited.
	MaxConns int `yaml:"max_conns"`

	// IdleTimeout reaps connections without activity; 0 disables.
	IdleTimeout time.Duration `yaml:"-"`

	// HandshakesPerMinute limits upgrade attempts per remote IP.
	HandshakesPerMinute int `yaml:"handshakes_per_minute"`

	// EnvelopesPerSecond limits inbound envelopes per user.
	EnvelopesPerSecond int `yaml:"envelopes_per_second"`
}

func defaults() *Config {
	return &Config{
		ListenAddr:          ":8080",
		Env:                 "development",
		HandshakesPerMinute: 30,
		EnvelopesPerSecond:  50,
	}
}

// Load reads configuration from the environment, on top of an optional
// YAML file named by CONFIG_FILE. In development a .env file is loaded
// first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ListenAddr = getEnv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.Env = getEnv("ENV", cfg.Env)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.AuthPublicKey = getEnv("AUTH_PUBLIC_KEY", cfg.AuthPublicKey)

	var err error
	if cfg.MaxConns, err = getEnvInt("MAX_CONNS", cfg.MaxConns); err != nil {
		return nil, err
	}
	if cfg.HandshakesPerMinute, err = getEnvInt("HANDSHAKES_PER_MINUTE", cfg.HandshakesPerMinute); err != nil {
		return nil, err
	}
	if cfg.EnvelopesPerSecond, err = getEnvInt("ENVELOPES_PER_SECOND", cfg.EnvelopesPerSecond); err != nil {
		return nil, err
	}
	if raw := os.Getenv("IDLE_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("config: IDLE_TIMEOUT: %w", err)
		}
		cfg.IdleTimeout = d
	}

	if cfg.RedisAddr == "" && cfg.AuthPublicKey == "" {
		return nil, fmt.Errorf("config: either REDIS_ADDR or AUTH_PUBLIC_KEY must be set")
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	// Durations arrive as strings ("90s"), which yaml cannot decode into
	// time.Duration directly.
	var file struct {
		Config      `yaml:",inline"`
		IdleTimeout string `yaml:"idle_timeout"`
	}
	file.Config = *c
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	*c = file.Config
	if file.IdleTimeout != "" {
		d, err := time.ParseDuration(file.IdleTimeout)
		if err != nil {
			return fmt.Errorf("config: idle_timeout in %s: %w", path, err)
		}
		c.IdleTimeout = d
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
