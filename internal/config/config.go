package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "change-me-in-production", "secret", "admin", "password",
}

type Config struct {
	Port                     int    `env:"PORT" envDefault:"8080"`
	DatabaseURL              string `env:"DATABASE_URL,required"`
	RedisURL                 string `env:"REDIS_URL"`
	APISecretKey             string `env:"API_SECRET_KEY"`
	APISecretKeyHash         string `env:"API_SECRET_KEY_HASH"`
	LogLevel                 string `env:"LOG_LEVEL" envDefault:"info"`
	OrganizationName         string `env:"ORGANIZATION_NAME" envDefault:"Alarm Messenger"`
	ServerURL                string `env:"SERVER_URL" envDefault:"http://localhost:8080"`
	HeartbeatIntervalSeconds int    `env:"HEARTBEAT_INTERVAL_SECONDS" envDefault:"30"`
	RetentionMinutes         int    `env:"EMERGENCY_RETENTION_MINUTES" envDefault:"60"`
	SweepIntervalSeconds     int    `env:"EMERGENCY_SWEEP_INTERVAL_SECONDS" envDefault:"60"`
	RateLimitPerWindow       int    `env:"RATE_LIMIT_PER_WINDOW" envDefault:"100"`
	Environment              string `env:"APP_ENV" envDefault:"development"`
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSeconds) * time.Second
}

func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionMinutes) * time.Minute
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.HeartbeatIntervalSeconds <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL_SECONDS must be positive")
	}
	if c.RetentionMinutes <= 0 {
		return fmt.Errorf("EMERGENCY_RETENTION_MINUTES must be positive")
	}
	if c.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("EMERGENCY_SWEEP_INTERVAL_SECONDS must be positive")
	}
	if c.RateLimitPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_WINDOW must be positive")
	}

	if c.APISecretKeyHash != "" {
		if !strings.HasPrefix(c.APISecretKeyHash, "$2a$") &&
			!strings.HasPrefix(c.APISecretKeyHash, "$2b$") &&
			!strings.HasPrefix(c.APISecretKeyHash, "$2y$") {
			return fmt.Errorf("API_SECRET_KEY_HASH must be a bcrypt hash (generate with: go run scripts/hash-api-key.go <key>)")
		}
	}

	if c.APISecretKey == "" && c.APISecretKeyHash == "" {
		log.Warn().Msg("API_SECRET_KEY is empty: all protected routes will reject requests")
	}

	if isProduction {
		if c.APISecretKey != "" {
			if err := validateSecret("API_SECRET_KEY", c.APISecretKey); err != nil {
				return err
			}
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if strings.HasPrefix(c.ServerURL, "http://") {
			log.Warn().Msg("SERVER_URL is not https in production: clients will connect over ws://")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
