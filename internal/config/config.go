package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/trogers1052/portfolio-tracker/internal/models"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	MarketData MarketDataConfig `yaml:"market_data"`
	Sectors    SectorsConfig    `yaml:"sectors"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string `yaml:"host"`
	Port           string `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	DBName         string `yaml:"dbname"`
	SSLMode        string `yaml:"sslmode"`
	MigrationsPath string `yaml:"migrations_path"`
}

// RedisConfig holds the rate budget store. An empty Addr keeps the budget in memory.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig holds Kafka configuration. No brokers disables events.
type KafkaConfig struct {
	Brokers   []string `yaml:"brokers"`
	Topic     string   `yaml:"topic"`
	WarmTopic string   `yaml:"warm_topic"`
	GroupID   string   `yaml:"group_id"`
}

// MarketDataConfig holds the provider and cache options
type MarketDataConfig struct {
	APIKey                string `yaml:"api_key"`
	BaseURL               string `yaml:"base_url"`
	DailyRateLimit        int    `yaml:"daily_rate_limit"`
	CacheTTL              string `yaml:"cache_ttl"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

// SectorsConfig points at an optional classification override file.
// Overviews enables weekly provider profiles, charged to the call budget.
type SectorsConfig struct {
	MapFile   string `yaml:"map_file"`
	Overviews bool   `yaml:"overviews"`
}

// ScheduleConfig holds the maintenance jobs. Cron expressions have a seconds field.
type ScheduleConfig struct {
	PruneCron     string   `yaml:"prune_cron"`
	RetentionDays int      `yaml:"retention_days"`
	WarmCron      string   `yaml:"warm_cron"`
	WarmSymbols   []string `yaml:"warm_symbols"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Host: "0.0.0.0"},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           "5432",
			User:           "postgres",
			Password:       "postgres",
			DBName:         "portfoliotracker",
			SSLMode:        "disable",
			MigrationsPath: "db/migrations",
		},
		Kafka: KafkaConfig{
			Topic:     "market-data-events",
			WarmTopic: "cache-warm-requests",
			GroupID:   "portfolio-tracker",
		},
		MarketData: MarketDataConfig{
			DailyRateLimit:        models.DefaultDailyRateLimit,
			RequestTimeoutSeconds: 30,
		},
		Sectors: SectorsConfig{Overviews: true},
		Schedule: ScheduleConfig{
			PruneCron:     "0 0 3 * * *",
			RetentionDays: 730,
			WarmCron:      "0 30 22 * * 1-5",
		},
	}
}

// Load reads the optional YAML file at path, then applies environment
// variable overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DBName = getEnv("DB_NAME", cfg.Database.DBName)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.MigrationsPath = getEnv("DB_MIGRATIONS_PATH", cfg.Database.MigrationsPath)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.Kafka.Brokers = getEnvList("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.Kafka.WarmTopic = getEnv("KAFKA_WARM_TOPIC", cfg.Kafka.WarmTopic)
	cfg.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", cfg.Kafka.GroupID)

	cfg.MarketData.APIKey = getEnv("ALPHA_VANTAGE_API_KEY", cfg.MarketData.APIKey)
	cfg.MarketData.BaseURL = getEnv("ALPHA_VANTAGE_BASE_URL", cfg.MarketData.BaseURL)
	cfg.MarketData.CacheTTL = getEnv("CACHE_TTL", cfg.MarketData.CacheTTL)

	cfg.Sectors.MapFile = getEnv("SECTOR_MAP_FILE", cfg.Sectors.MapFile)
	if v := os.Getenv("SECTOR_OVERVIEWS"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("SECTOR_OVERVIEWS must be a boolean, got %q", v)
		}
		cfg.Sectors.Overviews = b
	}

	cfg.Schedule.PruneCron = getEnv("PRUNE_CRON", cfg.Schedule.PruneCron)
	cfg.Schedule.WarmCron = getEnv("WARM_CRON", cfg.Schedule.WarmCron)
	cfg.Schedule.WarmSymbols = getEnvList("WARM_SYMBOLS", cfg.Schedule.WarmSymbols)

	var err error
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", cfg.Redis.DB); err != nil {
		return nil, err
	}
	if cfg.MarketData.DailyRateLimit, err = getEnvInt("DAILY_RATE_LIMIT", cfg.MarketData.DailyRateLimit); err != nil {
		return nil, err
	}
	if cfg.MarketData.RequestTimeoutSeconds, err = getEnvInt("REQUEST_TIMEOUT_SECONDS", cfg.MarketData.RequestTimeoutSeconds); err != nil {
		return nil, err
	}
	if cfg.Schedule.RetentionDays, err = getEnvInt("CACHE_RETENTION_DAYS", cfg.Schedule.RetentionDays); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks option ranges and formats
func (c *Config) Validate() error {
	if c.MarketData.DailyRateLimit <= 0 {
		return fmt.Errorf("market_data.daily_rate_limit must be positive")
	}
	if c.MarketData.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("market_data.request_timeout_seconds must be positive")
	}
	if _, err := c.MarketData.TTL(); err != nil {
		return err
	}
	if c.Schedule.RetentionDays <= 0 {
		return fmt.Errorf("schedule.retention_days must be positive")
	}
	if _, err := c.Schedule.WarmTickers(); err != nil {
		return err
	}
	return nil
}

// TTL parses the cache TTL. Zero means entries are fresh for the UTC day
// they were fetched on.
func (m *MarketDataConfig) TTL() (time.Duration, error) {
	if m.CacheTTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(m.CacheTTL)
	if err != nil {
		return 0, fmt.Errorf("market_data.cache_ttl %q: %w", m.CacheTTL, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("market_data.cache_ttl must be positive, got %s", m.CacheTTL)
	}
	return d, nil
}

// RequestTimeout returns the per-call provider timeout
func (m *MarketDataConfig) RequestTimeout() time.Duration {
	return time.Duration(m.RequestTimeoutSeconds) * time.Second
}

// Retention returns how long cache entries are kept
func (s *ScheduleConfig) Retention() time.Duration {
	return time.Duration(s.RetentionDays) * 24 * time.Hour
}

// WarmTickers validates the symbols the warm job loads
func (s *ScheduleConfig) WarmTickers() ([]models.Ticker, error) {
	out := make([]models.Ticker, 0, len(s.WarmSymbols))
	for _, sym := range s.WarmSymbols {
		t, err := models.ParseTicker(sym)
		if err != nil {
			return nil, fmt.Errorf("schedule.warm_symbols: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, value)
	}
	return n, nil
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
