// Package config loads the server configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/postlane/platform/pkg/logger"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig         `yaml:"server"`
	Database DatabaseConfig       `yaml:"database"`
	Redis    RedisConfig          `yaml:"redis"`
	Auth     AuthConfig           `yaml:"auth"`
	Tiers    TiersConfig          `yaml:"tiers"`
	Research ResearchConfig       `yaml:"research"`
	Webhooks WebhooksConfig       `yaml:"webhooks"`
	Logging  logger.LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	RequestsPerSecond int           `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// DatabaseConfig configures postgres. An empty URL selects the in-memory
// store.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig configures the shared cache. An empty Addr selects the
// in-memory cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig configures session tokens.
type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// TiersConfig configures token-balance tier derivation.
type TiersConfig struct {
	RPCEndpoint string        `yaml:"rpc_endpoint"`
	TokenMint   string        `yaml:"token_mint"`
	BalanceTTL  time.Duration `yaml:"balance_ttl"`
}

// ResearchConfig configures the research sources.
type ResearchConfig struct {
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	RedditBaseURL   string        `yaml:"reddit_base_url"`
	CoinGeckoAPIKey string        `yaml:"coingecko_api_key"`
	RSSFeeds        []RSSFeed     `yaml:"rss_feeds"`
	GroqAPIKey      string        `yaml:"groq_api_key"`
	GroqModel       string        `yaml:"groq_model"`
}

// RSSFeed is one named feed URL.
type RSSFeed struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// WebhooksConfig configures the on-chain notification provider.
type WebhooksConfig struct {
	ProviderURL string `yaml:"provider_url"`
	ProviderKey string `yaml:"provider_key"`
	Secret      string `yaml:"secret"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Tiers: TiersConfig{
			BalanceTTL: 5 * time.Minute,
		},
		Research: ResearchConfig{
			CacheTTL: 10 * time.Minute,
		},
		Logging: logger.LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Load reads the configuration from path, falling back to defaults when the
// file does not exist, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Defaults plus environment.
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if strings.TrimSpace(cfg.Auth.Secret) == "" {
		return Config{}, fmt.Errorf("auth secret is required (set auth.secret or AUTH_SECRET)")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	set := func(target *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*target = v
		}
	}
	set(&cfg.Server.Addr, "SERVER_ADDR")
	set(&cfg.Database.URL, "DATABASE_URL")
	set(&cfg.Redis.Addr, "REDIS_ADDR")
	set(&cfg.Redis.Password, "REDIS_PASSWORD")
	set(&cfg.Auth.Secret, "AUTH_SECRET")
	set(&cfg.Tiers.RPCEndpoint, "TIERS_RPC_ENDPOINT")
	set(&cfg.Tiers.TokenMint, "TIERS_TOKEN_MINT")
	set(&cfg.Research.RedditBaseURL, "RESEARCH_REDDIT_URL")
	set(&cfg.Research.CoinGeckoAPIKey, "COINGECKO_API_KEY")
	set(&cfg.Research.GroqAPIKey, "GROQ_API_KEY")
	set(&cfg.Research.GroqModel, "GROQ_MODEL")
	set(&cfg.Webhooks.ProviderURL, "WEBHOOKS_PROVIDER_URL")
	set(&cfg.Webhooks.ProviderKey, "WEBHOOKS_PROVIDER_KEY")
	set(&cfg.Webhooks.Secret, "WEBHOOKS_SECRET")
	set(&cfg.Logging.Level, "LOG_LEVEL")
	set(&cfg.Logging.Format, "LOG_FORMAT")
}
