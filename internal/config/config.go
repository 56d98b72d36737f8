// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	BaseURL        string        `yaml:"base_url"` // public origin used in signed artifact URLs
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type AuthConfig struct {
	Secret string `yaml:"secret"` // HS256 secret of the bearer tokens issued by the auth service
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type StorageConfig struct {
	Path       string        `yaml:"path"`
	SigningKey string        `yaml:"signing_key"`
	URLTTL     time.Duration `yaml:"url_ttl"`
}

type LimitsConfig struct {
	MaxImageBytes   int64 `yaml:"max_image_bytes"`
	SubmitPerMinute int   `yaml:"submit_per_minute"` // 0 disables the limiter
}

type WorkerConfig struct {
	Concurrency       int           `yaml:"concurrency"`
	QueueSize         int           `yaml:"queue_size"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	SweepAfter        time.Duration `yaml:"sweep_after"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ReapInterval      time.Duration `yaml:"reap_interval"`
	StaleAfter        time.Duration `yaml:"stale_after"`
}

type SynthesisConfig struct {
	Provider        string        `yaml:"provider"` // gemini|openai|http|noop
	Timeout         time.Duration `yaml:"timeout"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent provider calls
	Gemini          struct {
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"gemini"`
	OpenAI struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`
	HTTP struct {
		URL    string `yaml:"url"`
		APIKey string `yaml:"api_key"`
	} `yaml:"http"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Limits    LimitsConfig    `yaml:"limits"`
	Worker    WorkerConfig    `yaml:"worker"`
	Synthesis SynthesisConfig `yaml:"synthesis"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies .env and environment
// overrides, fills defaults and validates the result. A missing file is
// tolerated in dev mode.
func LoadConfig(path string, dev bool) (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && dev:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.Runtime.Dev = dev
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&cfg.Database.URL, "DATABASE_URL")
	override(&cfg.Redis.URL, "REDIS_URL")
	override(&cfg.Auth.Secret, "AUTH_SECRET")
	override(&cfg.Storage.SigningKey, "STORAGE_SIGNING_KEY")
	override(&cfg.Synthesis.Gemini.APIKey, "GEMINI_API_KEY")
	override(&cfg.Synthesis.OpenAI.APIKey, "OPENAI_API_KEY")
	override(&cfg.Synthesis.HTTP.APIKey, "SYNTHESIS_HTTP_API_KEY")
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.BaseURL == "" {
		cfg.HTTP.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.HTTP.Port)
	}
	cfg.HTTP.BaseURL = strings.TrimRight(cfg.HTTP.BaseURL, "/")
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "./storage"
	}
	if cfg.Storage.URLTTL <= 0 {
		cfg.Storage.URLTTL = 10 * time.Minute
	}
	if cfg.Limits.MaxImageBytes <= 0 {
		cfg.Limits.MaxImageBytes = 10 << 20
	}
	if cfg.Worker.Concurrency <= 0 {
		cfg.Worker.Concurrency = 4
	}
	if cfg.Worker.QueueSize <= 0 {
		cfg.Worker.QueueSize = cfg.Worker.Concurrency * 4
	}
	if cfg.Worker.SweepInterval <= 0 {
		cfg.Worker.SweepInterval = 5 * time.Second
	}
	if cfg.Worker.SweepAfter <= 0 {
		cfg.Worker.SweepAfter = 10 * time.Second
	}
	if cfg.Worker.HeartbeatInterval <= 0 {
		cfg.Worker.HeartbeatInterval = 10 * time.Second
	}
	if cfg.Worker.ReapInterval <= 0 {
		cfg.Worker.ReapInterval = 30 * time.Second
	}
	if cfg.Worker.StaleAfter <= 0 {
		cfg.Worker.StaleAfter = 3 * cfg.Worker.HeartbeatInterval
	}
	if cfg.Synthesis.Provider == "" {
		cfg.Synthesis.Provider = "gemini"
		if cfg.Runtime.Dev && cfg.Synthesis.Gemini.APIKey == "" {
			cfg.Synthesis.Provider = "noop"
		}
	}
	cfg.Synthesis.Provider = strings.ToLower(cfg.Synthesis.Provider)
	if cfg.Synthesis.Timeout <= 0 {
		cfg.Synthesis.Timeout = 2 * time.Minute
	}
	if cfg.Synthesis.ConcurrentLimit <= 0 {
		cfg.Synthesis.ConcurrentLimit = 8
	}
	if cfg.Synthesis.Gemini.Model == "" {
		cfg.Synthesis.Gemini.Model = "gemini-2.5-flash-image"
	}
	if cfg.Synthesis.OpenAI.Model == "" {
		cfg.Synthesis.OpenAI.Model = "gpt-image-1"
	}
	if cfg.Runtime.Dev {
		if cfg.Auth.Secret == "" {
			cfg.Auth.Secret = "dev-auth-secret"
		}
		if cfg.Storage.SigningKey == "" {
			cfg.Storage.SigningKey = "dev-storage-signing-key"
		}
	}
}

// Validate checks the settings the service cannot run without.
func (c *Config) Validate() error {
	if c.Database.URL == "" && !c.Runtime.Dev {
		return errors.New("database.url is required (or run with -dev)")
	}
	if c.Auth.Secret == "" {
		return errors.New("auth.secret is required")
	}
	if len(c.Storage.SigningKey) < 16 {
		return errors.New("storage.signing_key must be at least 16 bytes")
	}
	switch c.Synthesis.Provider {
	case "gemini":
		if c.Synthesis.Gemini.APIKey == "" {
			return errors.New("synthesis.gemini.api_key is required for provider gemini")
		}
	case "openai":
		if c.Synthesis.OpenAI.APIKey == "" {
			return errors.New("synthesis.openai.api_key is required for provider openai")
		}
	case "http":
		if c.Synthesis.HTTP.URL == "" {
			return errors.New("synthesis.http.url is required for provider http")
		}
	case "noop":
		if !c.Runtime.Dev {
			return errors.New("synthesis.provider noop is only allowed with -dev")
		}
	default:
		return fmt.Errorf("unknown synthesis.provider %q", c.Synthesis.Provider)
	}
	if c.Worker.StaleAfter <= c.Worker.HeartbeatInterval {
		return errors.New("worker.stale_after must exceed worker.heartbeat_interval")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
