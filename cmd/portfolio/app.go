package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/trogers1052/portfolio-tracker/internal/cache"
	"github.com/trogers1052/portfolio-tracker/internal/config"
	"github.com/trogers1052/portfolio-tracker/internal/database"
	"github.com/trogers1052/portfolio-tracker/internal/kafka"
	"github.com/trogers1052/portfolio-tracker/internal/marketdata"
	"github.com/trogers1052/portfolio-tracker/internal/portfolio"
	"github.com/trogers1052/portfolio-tracker/internal/ratelimit"
	"github.com/trogers1052/portfolio-tracker/internal/sectors"
)

var configPath = flag.String("config", defaultConfigPath(), "Path to the YAML config file (optional)")

func defaultConfigPath() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "configs/config.yaml"
}

// app is the wiring shared by every subcommand
type app struct {
	cfg        *config.Config
	db         *database.DB
	redis      *redis.Client
	store      *cache.PostgresStore
	budget     *ratelimit.Budget
	producer   *kafka.Producer
	fetcher    *marketdata.Fetcher
	aggregator *portfolio.Aggregator
}

// newApp connects the cache, the budget and the provider. requireKey makes a
// missing provider credential fatal for commands that may call out.
func newApp(ctx context.Context, requireKey bool) (*app, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	if requireKey && cfg.MarketData.APIKey == "" {
		return nil, fmt.Errorf("ALPHA_VANTAGE_API_KEY is required")
	}

	a := &app{cfg: cfg}

	a.db, err = database.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	if err := a.db.RunMigrations(cfg.Database.MigrationsPath); err != nil {
		a.Close()
		return nil, err
	}

	ttl, _ := cfg.MarketData.TTL()
	a.store = cache.NewPostgresStore(a.db, cache.Policy{TTL: ttl})

	var budgetStore ratelimit.Store
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		budgetStore = ratelimit.NewRedisStore(a.redis)
	} else {
		log.Println("[WARN] REDIS_ADDR not set, rate budget is kept in memory")
	}
	a.budget = ratelimit.NewBudget(cfg.MarketData.DailyRateLimit, budgetStore)

	provider := marketdata.NewAlphaVantage(cfg.MarketData.BaseURL, cfg.MarketData.APIKey, cfg.MarketData.RequestTimeout())
	a.fetcher = marketdata.NewFetcher(a.store, a.budget, provider, cfg.MarketData.RequestTimeout())
	if len(cfg.Kafka.Brokers) > 0 {
		a.producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.fetcher.WithPublisher(a.producer)
	}
	log.Printf("[INFO] data source: %s, %d calls/day", provider.Name(), cfg.MarketData.DailyRateLimit)

	table, err := sectors.LoadFile(cfg.Sectors.MapFile)
	if err != nil {
		a.Close()
		return nil, err
	}
	classifier := sectors.NewResolver(table)
	if cfg.Sectors.Overviews && cfg.MarketData.APIKey != "" {
		classifier.WithOverviews(provider, a.db, a.budget)
	}
	a.aggregator = portfolio.NewAggregator(a.fetcher, classifier).WithBudget(a.budget)

	return a, nil
}

// Close releases every connection opened by newApp
func (a *app) Close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			log.Printf("[WARN] closing kafka producer: %v", err)
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
