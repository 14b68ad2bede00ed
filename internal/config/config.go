package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the server configuration, read from the environment and an
// optional .env file in the working directory
type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	DataDir         string        `mapstructure:"DATA_DIR"`
	TuningFile      string        `mapstructure:"TUNING_FILE"`
	TuningProfile   string        `mapstructure:"TUNING_PROFILE"`
	LegacyVitals    bool          `mapstructure:"LEGACY_VITALS"`
	EvaluationLog   bool          `mapstructure:"EVALUATION_LOG"`
	CacheTTL        time.Duration `mapstructure:"CACHE_TTL"`
	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	RedisPassword   string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB         int           `mapstructure:"REDIS_DB"`
	RateLimitPerMin int           `mapstructure:"RATE_LIMIT_PER_MIN"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
	EnableHSTS      bool          `mapstructure:"ENABLE_HSTS"`
	EnableProfiling bool          `mapstructure:"ENABLE_PROFILING"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATA_DIR", "TUNING_FILE", "TUNING_PROFILE",
	"LEGACY_VITALS", "EVALUATION_LOG", "CACHE_TTL", "REDIS_ADDR", "REDIS_PASSWORD",
	"REDIS_DB", "RATE_LIMIT_PER_MIN", "CORS_ORIGINS", "ENABLE_HSTS",
	"ENABLE_PROFILING",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("LEGACY_VITALS", false)
	v.SetDefault("EVALUATION_LOG", false)
	v.SetDefault("CACHE_TTL", "15m")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_LIMIT_PER_MIN", 120)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("ENABLE_HSTS", false)
	v.SetDefault("ENABLE_PROFILING", false)

	// Bind explicitly so Unmarshal sees keys without defaults
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitOrigins(v.GetString("CORS_ORIGINS"))

	return cfg, nil
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run
func (c *Config) Validate() error {
	switch c.Env {
	case "development", "test", "production":
	default:
		return fmt.Errorf("ENV must be \"development\", \"test\" or \"production\", got %q", c.Env)
	}
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.RateLimitPerMin <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must be positive, got %d", c.RateLimitPerMin)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative, got %s", c.CacheTTL)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("REDIS_DB must not be negative, got %d", c.RedisDB)
	}
	if c.EvaluationLog && c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required when EVALUATION_LOG is true")
	}
	if c.TuningFile != "" && c.TuningProfile != "" {
		return fmt.Errorf("TUNING_FILE and TUNING_PROFILE are mutually exclusive")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
	for _, o := range c.CORSOrigins {
		if o == "*" {
			if c.IsProduction() {
				return fmt.Errorf("CORS_ORIGINS must not contain \"*\" in production")
			}
			continue
		}
		if !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("CORS_ORIGINS entry %q must start with http:// or https://", o)
		}
	}
	return nil
}
