package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Common
	Environment string
	LogLevel    string

	// Stores
	Database DatabaseConfig
	Redis    RedisConfig

	// Market Data
	MarketData MarketDataConfig

	// Pipeline
	Scanner ScannerConfig
	Push    PushConfig

	// Surfaces
	API       APIConfig
	WSGateway WSGatewayConfig
}

// DatabaseConfig holds push log database configuration. An empty Host
// disables the database.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConnections  int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// RedisConfig holds Redis configuration. An empty Host disables Redis.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	KeyPrefix    string
	EventChannel string
}

// Enabled reports whether Redis is configured.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

// MarketDataConfig holds market data provider configuration
type MarketDataConfig struct {
	Provider        string // "mock" or "http"
	APIKey          string
	BaseURL         string
	Exchange        string
	Interval        string
	LookbackDays    int
	Symbols         []string
	FallbackSymbols []string
	RequestTimeout  time.Duration
	RetryAttempts   int
	RetryInitial    time.Duration
	MockSeed        int64
}

// ScannerConfig holds scan orchestration configuration
type ScannerConfig struct {
	Concurrency     int
	TopN            int
	ScanInterval    time.Duration
	ScanCacheTTL    time.Duration
	FeatureCacheTTL time.Duration
	StaleDefault    time.Duration
	CacheCapacity   int
	SnapshotBackend string // "file" or "redis"
	SnapshotPath    string
	SnapshotTTL     time.Duration
	LooseFilter     bool
}

// PushConfig holds notification pipeline configuration
type PushConfig struct {
	StateBackend     string // "file" or "redis"
	StatePath        string
	TickerCooldown   time.Duration
	PairCooldown     time.Duration
	UserWindow       time.Duration
	UserCeiling      int
	PriorityCutoff   int
	MaxPerCycle      int
	StrongScore      float64
	ScoreJumpDelta   float64
	StateRetention   time.Duration
	DeliveryAttempts int
	LogNotifier      bool
	WebhookURL       string
	WebhookTimeout   time.Duration
}

// APIConfig holds REST API configuration
type APIConfig struct {
	Port         int
	JWTSecret    string
	RateLimitRPS int
	CORSOrigins  []string
}

// WSGatewayConfig holds WebSocket gateway configuration
type WSGatewayConfig struct {
	Enabled        bool
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxConnections int
	JWTSecret      string
}

// Load loads configuration from environment variables
// It automatically loads .env file if it exists in the current directory
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", ""),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "squeeze_scanner"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", ""),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
			KeyPrefix:    getEnv("REDIS_KEY_PREFIX", "squeeze:"),
			EventChannel: getEnv("REDIS_EVENT_CHANNEL", "squeeze.triggers"),
		},
		MarketData: MarketDataConfig{
			Provider:     getEnv("MARKET_DATA_PROVIDER", "mock"),
			APIKey:       getEnv("MARKET_DATA_API_KEY", ""),
			BaseURL:      getEnv("MARKET_DATA_BASE_URL", ""),
			Exchange:     getEnv("MARKET_DATA_EXCHANGE", "binance"),
			Interval:     getEnv("MARKET_DATA_INTERVAL", "4h"),
			LookbackDays: getEnvAsInt("MARKET_DATA_LOOKBACK_DAYS", 30),
			Symbols:      getEnvAsStringSlice("MARKET_DATA_SYMBOLS", []string{}),
			FallbackSymbols: getEnvAsStringSlice("MARKET_DATA_FALLBACK_SYMBOLS", []string{
				"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT", "XRPUSDT",
				"DOGEUSDT", "ADAUSDT", "AVAXUSDT", "LINKUSDT", "ARBUSDT",
			}),
			RequestTimeout: getEnvAsDuration("MARKET_DATA_REQUEST_TIMEOUT", 10*time.Second),
			RetryAttempts:  getEnvAsInt("MARKET_DATA_RETRY_ATTEMPTS", 3),
			RetryInitial:   getEnvAsDuration("MARKET_DATA_RETRY_INITIAL", 500*time.Millisecond),
			MockSeed:       int64(getEnvAsInt("MARKET_DATA_MOCK_SEED", 42)),
		},
		Scanner: ScannerConfig{
			Concurrency:     getEnvAsInt("SCANNER_CONCURRENCY", 4),
			TopN:            getEnvAsInt("SCANNER_TOP_N", 20),
			ScanInterval:    getEnvAsDuration("SCANNER_SCAN_INTERVAL", 4*time.Hour),
			ScanCacheTTL:    getEnvAsDuration("SCANNER_SCAN_CACHE_TTL", 15*time.Minute),
			FeatureCacheTTL: getEnvAsDuration("SCANNER_FEATURE_CACHE_TTL", 30*time.Minute),
			StaleDefault:    getEnvAsDuration("SCANNER_STALE_DEFAULT", time.Hour),
			CacheCapacity:   getEnvAsInt("SCANNER_CACHE_CAPACITY", 1000),
			SnapshotBackend: getEnv("SCANNER_SNAPSHOT_BACKEND", "file"),
			SnapshotPath:    getEnv("SCANNER_SNAPSHOT_PATH", "data/ranked_snapshot.json"),
			SnapshotTTL:     getEnvAsDuration("SCANNER_SNAPSHOT_TTL", 4*time.Hour),
			LooseFilter:     getEnvAsBool("SCANNER_LOOSE_FILTER", false),
		},
		Push: PushConfig{
			StateBackend:     getEnv("PUSH_STATE_BACKEND", "file"),
			StatePath:        getEnv("PUSH_STATE_PATH", "data/notification_state.json"),
			TickerCooldown:   getEnvAsDuration("PUSH_TICKER_COOLDOWN", 4*time.Hour),
			PairCooldown:     getEnvAsDuration("PUSH_PAIR_COOLDOWN", 4*time.Hour),
			UserWindow:       getEnvAsDuration("PUSH_USER_WINDOW", 4*time.Hour),
			UserCeiling:      getEnvAsInt("PUSH_USER_CEILING", 3),
			PriorityCutoff:   getEnvAsInt("PUSH_PRIORITY_CUTOFF", 1),
			MaxPerCycle:      getEnvAsInt("PUSH_MAX_PER_CYCLE", 3),
			StrongScore:      getEnvAsFloat("PUSH_STRONG_SCORE", 60),
			ScoreJumpDelta:   getEnvAsFloat("PUSH_SCORE_JUMP_DELTA", 4),
			StateRetention:   getEnvAsDuration("PUSH_STATE_RETENTION", 7*24*time.Hour),
			DeliveryAttempts: getEnvAsInt("PUSH_DELIVERY_ATTEMPTS", 2),
			LogNotifier:      getEnvAsBool("PUSH_LOG_NOTIFIER", true),
			WebhookURL:       getEnv("PUSH_WEBHOOK_URL", ""),
			WebhookTimeout:   getEnvAsDuration("PUSH_WEBHOOK_TIMEOUT", 5*time.Second),
		},
		API: APIConfig{
			Port:         getEnvAsInt("API_PORT", 8090),
			JWTSecret:    getEnv("API_JWT_SECRET", ""),
			RateLimitRPS: getEnvAsInt("API_RATE_LIMIT_RPS", 100),
			CORSOrigins:  getEnvAsStringSlice("API_CORS_ORIGINS", []string{"*"}),
		},
		WSGateway: WSGatewayConfig{
			Enabled:        getEnvAsBool("WS_GATEWAY_ENABLED", true),
			ReadTimeout:    getEnvAsDuration("WS_GATEWAY_READ_TIMEOUT", 60*time.Second),
			WriteTimeout:   getEnvAsDuration("WS_GATEWAY_WRITE_TIMEOUT", 10*time.Second),
			PingInterval:   getEnvAsDuration("WS_GATEWAY_PING_INTERVAL", 30*time.Second),
			MaxConnections: getEnvAsInt("WS_GATEWAY_MAX_CONNECTIONS", 1000),
			JWTSecret:      getEnv("WS_GATEWAY_JWT_SECRET", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.MarketData.Provider {
	case "mock":
	case "http":
		if c.MarketData.BaseURL == "" {
			return fmt.Errorf("MARKET_DATA_BASE_URL is required for the http provider")
		}
	default:
		return fmt.Errorf("unknown MARKET_DATA_PROVIDER %q", c.MarketData.Provider)
	}
	if c.Scanner.Concurrency < 1 {
		return fmt.Errorf("SCANNER_CONCURRENCY must be at least 1")
	}
	if c.Scanner.TopN < 1 {
		return fmt.Errorf("SCANNER_TOP_N must be at least 1")
	}
	if c.Scanner.ScanInterval <= 0 {
		return fmt.Errorf("SCANNER_SCAN_INTERVAL must be positive")
	}
	if c.Push.UserCeiling < 1 {
		return fmt.Errorf("PUSH_USER_CEILING must be at least 1")
	}
	for name, backend := range map[string]string{
		"SCANNER_SNAPSHOT_BACKEND": c.Scanner.SnapshotBackend,
		"PUSH_STATE_BACKEND":       c.Push.StateBackend,
	} {
		switch backend {
		case "file":
		case "redis":
			if !c.Redis.Enabled() {
				return fmt.Errorf("%s=redis requires REDIS_HOST", name)
			}
		default:
			return fmt.Errorf("unknown %s %q", name, backend)
		}
	}
	if c.WSGateway.Enabled && c.WSGateway.JWTSecret == "" {
		return fmt.Errorf("WS_GATEWAY_JWT_SECRET is required when the gateway is enabled")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Split by comma and trim spaces
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
