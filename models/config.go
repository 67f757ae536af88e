// Package models defines the data structures shared by the pipeline stages.
package models

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath     = "config.yaml"
	DefaultModel          = "gemini-1.5-flash"
	DefaultEndpoint       = "https://generativelanguage.googleapis.com/v1beta"
	DefaultFetchTimeout   = 10 * time.Second
	DefaultUserAgent      = "llm-report-pipeline/1.0"
	DefaultOutputDir      = "reports"
	DefaultServerAddr     = ":8080"
	DefaultAPIKeyVariable = "GEMINI_API_KEY"
	fallbackAPIKeyVar     = "GOOGLE_API_KEY"

	SessionStoreMemory  = "memory"
	SessionStoreRedis   = "redis"
	DefaultSessionTTL   = 24 * time.Hour
	DefaultSessionCache = 256
)

// Config is built once at process start and passed explicitly to every
// client that needs it. Nothing reads the environment after LoadConfig.
type Config struct {
	APIKey     string           `yaml:"-"`
	APIKeyEnv  string           `yaml:"api_key_env"`
	Generation GenerationConfig `yaml:"generation"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Render     RenderConfig     `yaml:"render"`
	Database   DatabaseConfig   `yaml:"database"`
	Notify     NotifyConfig     `yaml:"notify"`
	Server     ServerConfig     `yaml:"server"`
	Session    SessionConfig    `yaml:"session"`
	Prompts    PromptsConfig    `yaml:"prompts"`
}

type GenerationConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	Model      string        `yaml:"model"`
	MaxRetries int           `yaml:"max_retries"`
	Timeout    time.Duration `yaml:"timeout"` // zero means no local timeout
}

// FetchConfig holds runtime configuration for fetch operations.
type FetchConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	UserAgent   string        `yaml:"user_agent"`
	MainContent bool          `yaml:"main_content"`
}

type RenderConfig struct {
	OutputDir string `yaml:"output_dir"`
	LogoPath  string `yaml:"logo_path"`
	Charts    bool   `yaml:"charts"`
}

type DatabaseConfig struct {
	// Path of the run ledger. Empty disables run history.
	Path string `yaml:"path"`
}

type NotifyConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// SessionConfig selects where the HTTP server keeps session state.
type SessionConfig struct {
	Store     string        `yaml:"store"` // memory or redis
	RedisURL  string        `yaml:"redis_url"`
	TTL       time.Duration `yaml:"ttl"`
	CacheSize int           `yaml:"cache_size"`
}

type PromptsConfig struct {
	// TemplatesFile overrides or extends the built-in template catalogue.
	TemplatesFile string `yaml:"templates_file"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		APIKeyEnv: DefaultAPIKeyVariable,
		Generation: GenerationConfig{
			Endpoint: DefaultEndpoint,
			Model:    DefaultModel,
		},
		Fetch: FetchConfig{
			Timeout:   DefaultFetchTimeout,
			UserAgent: DefaultUserAgent,
		},
		Render: RenderConfig{
			OutputDir: DefaultOutputDir,
			Charts:    true,
		},
		Server:  ServerConfig{Addr: DefaultServerAddr},
		Session: SessionConfig{Store: SessionStoreMemory, TTL: DefaultSessionTTL, CacheSize: DefaultSessionCache},
	}
}

// LoadConfig reads the YAML file at path over the defaults. A missing file is
// not an error. The API key is read from the environment (after an optional
// .env file) exactly once, here.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	// .env is optional
	_ = godotenv.Load()

	cfg.APIKey = lookupAPIKey(cfg.APIKeyEnv)
	cfg.applyDefaults()
	return cfg, nil
}

func lookupAPIKey(name string) string {
	if name == "" {
		name = DefaultAPIKeyVariable
	}
	if v := os.Getenv(name); v != "" {
		return v
	}
	return os.Getenv(fallbackAPIKeyVar)
}

func (c *Config) applyDefaults() {
	if c.Generation.Endpoint == "" {
		c.Generation.Endpoint = DefaultEndpoint
	}
	if c.Generation.Model == "" {
		c.Generation.Model = DefaultModel
	}
	if c.Generation.MaxRetries < 0 {
		c.Generation.MaxRetries = 0
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = DefaultFetchTimeout
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = DefaultUserAgent
	}
	if c.Render.OutputDir == "" {
		c.Render.OutputDir = DefaultOutputDir
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Session.Store == "" {
		c.Session.Store = SessionStoreMemory
	}
	if c.Session.TTL <= 0 {
		c.Session.TTL = DefaultSessionTTL
	}
	if c.Session.CacheSize <= 0 {
		c.Session.CacheSize = DefaultSessionCache
	}
}
