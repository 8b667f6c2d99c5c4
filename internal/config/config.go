package config

import "time"

// Config is the root configuration for the quote aggregation service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	Bridges   BridgesConfig   `yaml:"bridges"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Pricing   PricingConfig   `yaml:"pricing"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	TrustedProxies  []string      `yaml:"trusted_proxies"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// RedisConfig holds the Redis connection settings. URL takes the form
// redis://[:password@]host:port[/db].
type RedisConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// DatabaseConfig holds the Postgres connection settings for the bridge
// security metadata store. An empty DSN disables security enrichment.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// BridgesConfig controls the provider fan-out.
type BridgesConfig struct {
	// Timeout bounds a single provider's quote, including all retries.
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
	// Disabled lists provider names excluded from the fan-out.
	Disabled []string `yaml:"disabled"`
}

// CacheConfig controls the two-tier aggregated quote cache.
type CacheConfig struct {
	FreshTTL time.Duration `yaml:"fresh_ttl"`
	StaleTTL time.Duration `yaml:"stale_ttl"`
}

// RateLimitConfig controls the per-client request budget on the quotes
// endpoint.
type RateLimitConfig struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// PricingConfig holds settings for the gas and token price services.
type PricingConfig struct {
	EtherscanAPIKey string        `yaml:"etherscan_api_key"`
	CoinGeckoAPIKey string        `yaml:"coingecko_api_key"`
	GasTTL          time.Duration `yaml:"gas_ttl"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
}

// DefaultConfig returns a config with production defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Redis: RedisConfig{
			URL:     "redis://localhost:6379",
			Timeout: 3 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Bridges: BridgesConfig{
			Timeout: 5 * time.Second,
			Retries: 3,
		},
		Cache: CacheConfig{
			FreshTTL: 15 * time.Second,
			StaleTTL: 300 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Limit:  100,
			Window: time.Minute,
		},
		Pricing: PricingConfig{
			GasTTL:   60 * time.Second,
			TokenTTL: 300 * time.Second,
		},
	}
}
