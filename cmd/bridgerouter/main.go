package main

import (
	"flag"
	"fmt"
	"os"
	"slices"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/wudi/bridgerouter/internal/bridge"
	"github.com/wudi/bridgerouter/internal/bridge/providers"
	"github.com/wudi/bridgerouter/internal/cache"
	"github.com/wudi/bridgerouter/internal/config"
	"github.com/wudi/bridgerouter/internal/gasprice"
	"github.com/wudi/bridgerouter/internal/logging"
	"github.com/wudi/bridgerouter/internal/metrics"
	"github.com/wudi/bridgerouter/internal/security"
	"github.com/wudi/bridgerouter/internal/server"
	"github.com/wudi/bridgerouter/internal/tokenprice"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/bridgerouter.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validateOnly := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Bridge Router %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *validateOnly {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logging.SetGlobal(logger)

	logging.Info("Starting bridge router",
		zap.String("version", version),
		zap.String("config", *configPath),
		zap.String("addr", cfg.Server.Addr),
	)

	redisClient, err := cache.New(cfg.Redis.URL, cfg.Redis.Timeout)
	if err != nil {
		logging.Error("Failed to connect to Redis, caching and rate limiting degraded",
			zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	var repo *security.Repository
	if cfg.Database.DSN != "" {
		db, err := sqlx.Open("postgres", cfg.Database.DSN)
		if err != nil {
			logging.Error("Failed to open Postgres, security enrichment disabled", zap.Error(err))
		} else {
			db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
			db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
			db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
			defer db.Close()
			repo = security.NewRepository(db)
		}
	} else {
		logging.Warn("No database DSN configured, security enrichment disabled")
	}

	m := metrics.New()

	providerCache := cache.NewProviderCache(redisClient)
	all := providers.All(providers.Config{
		Cache:   providerCache,
		Retries: cfg.Bridges.Retries,
	})
	enabled := make([]bridge.Provider, 0, len(all))
	for _, p := range all {
		if slices.Contains(cfg.Bridges.Disabled, p.Name()) {
			logging.Info("Bridge provider disabled by config", zap.String("provider", p.Name()))
			continue
		}
		enabled = append(enabled, p)
	}

	aggregator := bridge.NewAggregator(enabled, cfg.Bridges.Timeout, m)

	srv := server.New(server.Deps{
		Config:       cfg,
		Metrics:      m,
		Redis:        redisClient,
		Aggregator:   aggregator,
		SecurityRepo: repo,
		Gas:          gasprice.New(cfg.Pricing.EtherscanAPIKey, redisClient, cfg.Pricing.GasTTL),
		Prices:       tokenprice.New(cfg.Pricing.CoinGeckoAPIKey, redisClient, cfg.Pricing.TokenTTL),
	})

	if err := srv.Run(); err != nil {
		logging.Error("Server error", zap.Error(err))
		os.Exit(1)
	}
}
