package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/speechbox/speechbox/internal/profile"
)

type Config struct {
	Port      int    `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// ProfilePath and CacheDir default to ~/.speechbox/{profile.yml,cache},
	// resolved in Load because env tags cannot expand the home directory.
	ProfilePath string `env:"PROFILE_PATH"`
	CacheDir    string `env:"CACHE_DIR"`

	CacheRetention time.Duration `env:"CACHE_RETENTION" envDefault:"0"`
	CacheMaxMB     int           `env:"CACHE_MAX_MB" envDefault:"0"`

	// APIKey enables bearer auth on mutating API routes when set.
	APIKey string `env:"API_KEY"`

	// ProbeHost is the dial target used to decide whether remote engines
	// are reachable.
	ProbeHost    string        `env:"PROBE_HOST" envDefault:"www.google.com:443"`
	ProbeTimeout time.Duration `env:"PROBE_TIMEOUT" envDefault:"3s"`

	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	MQTTEnabled     bool   `env:"MQTT_ENABLED" envDefault:"false"`
	MQTTBrokerURL   string `env:"MQTT_BROKER_URL"`
	MQTTClientID    string `env:"MQTT_CLIENT_ID" envDefault:"speechboxd"`
	MQTTTopicPrefix string `env:"MQTT_TOPIC_PREFIX" envDefault:"speechbox"`
	MQTTUsername    string `env:"MQTT_USERNAME"`
	MQTTPassword    string `env:"MQTT_PASSWORD"`

	S3 S3Config
}

// S3Config selects the optional S3 backup tier for the synthesis cache.
type S3Config struct {
	Enable    bool   `env:"S3_ENABLED" envDefault:"false"`
	Bucket    string `env:"S3_BUCKET"`
	Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	Endpoint  string `env:"S3_ENDPOINT"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`
	Prefix    string `env:"S3_PREFIX"`
	// PathStyle forces path-style addressing. Custom endpoints (MinIO and
	// friends) get it regardless.
	PathStyle bool `env:"S3_PATH_STYLE"`
}

// Enabled reports whether the S3 tier is usable as configured.
func (c S3Config) Enabled() bool { return c.Enable && c.Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	Port        int
	LogLevel    string
	ProfilePath string
	CacheDir    string
}

// Load reads configuration from .env file, environment variables, and CLI
// overrides. Priority: CLI flags > environment variables > .env file >
// struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (set values win)
	if overrides.Port > 0 {
		cfg.Port = overrides.Port
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.ProfilePath != "" {
		cfg.ProfilePath = overrides.ProfilePath
	}
	if overrides.CacheDir != "" {
		cfg.CacheDir = overrides.CacheDir
	}

	if cfg.ProfilePath == "" {
		cfg.ProfilePath = profile.DefaultPath()
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(filepath.Dir(profile.DefaultPath()), "cache")
	}

	return cfg, nil
}
