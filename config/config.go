package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cache store backends
const (
	CacheBackendRedis  = "redis"
	CacheBackendSQLite = "sqlite"
	CacheBackendMemory = "memory"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Cache         CacheConfig
	Providers     ProvidersConfig
	Gateway       GatewayConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds PostgreSQL configuration for the generation ledger.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
// The ledger is disabled when neither DATABASE_URL nor DB_HOST is set.
type DatabaseConfig struct {
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// CacheConfig selects and configures the response cache store
type CacheConfig struct {
	Backend       string // redis, sqlite or memory
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string
	MaxEntries    int // memory backend only

	// CleanupInterval is how often expired entries are purged (memory and sqlite)
	CleanupInterval time.Duration
}

// ProvidersConfig holds the primary and fallback provider configurations
type ProvidersConfig struct {
	Primary  ProviderConfig
	Fallback ProviderConfig
}

// ProviderConfig holds configuration for a single text-generation provider
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// GatewayConfig holds the resilience knobs of the provider gateway.
// Field tags allow overriding from a YAML tuning file.
type GatewayConfig struct {
	RateLimit        int           `yaml:"rate_limit"`
	RateWindow       time.Duration `yaml:"rate_window"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
	MaxRetries       int           `yaml:"max_retries"`
	InitialDelay     time.Duration `yaml:"initial_delay"`
	ProviderTimeout  time.Duration `yaml:"provider_timeout"`
	HealthyThreshold float64       `yaml:"healthy_threshold"`
	BatchConcurrency int           `yaml:"batch_concurrency"`
	RetryClassify    bool          `yaml:"retry_classify"`
	LedgerBuffer     int           `yaml:"ledger_buffer"`
	LedgerWorkers    int           `yaml:"ledger_workers"`
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Database: loadDatabaseConfig(),
		Cache: CacheConfig{
			Backend:       strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendMemory)),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
			SQLitePath:    getEnv("CACHE_SQLITE_PATH", "ai-cache.db"),
			MaxEntries:    getEnvAsInt("CACHE_MAX_ENTRIES", 10000),

			CleanupInterval: getEnvAsDuration("CACHE_CLEANUP_INTERVAL", time.Minute),
		},
		Providers: ProvidersConfig{
			Primary: ProviderConfig{
				APIKey:  getEnv("GEMINI_API_KEY", ""),
				BaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
				Model:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
				Timeout: getEnvAsDuration("GEMINI_TIMEOUT", 60*time.Second),
			},
			Fallback: ProviderConfig{
				APIKey:  getEnv("FALLBACK_API_KEY", ""),
				BaseURL: getEnv("FALLBACK_BASE_URL", "https://api.openai.com/v1"),
				Model:   getEnv("FALLBACK_MODEL", "gpt-4o-mini"),
				Timeout: getEnvAsDuration("FALLBACK_TIMEOUT", 60*time.Second),
			},
		},
		Gateway: GatewayConfig{
			RateLimit:        getEnvAsInt("GATEWAY_RATE_LIMIT", 10),
			RateWindow:       getEnvAsDuration("GATEWAY_RATE_WINDOW", time.Second),
			CacheTTL:         getEnvAsDuration("GATEWAY_CACHE_TTL", 300*time.Second),
			FailureThreshold: getEnvAsInt("GATEWAY_FAILURE_THRESHOLD", 5),
			Cooldown:         getEnvAsDuration("GATEWAY_COOLDOWN", 60*time.Second),
			MaxRetries:       getEnvAsInt("GATEWAY_MAX_RETRIES", 3),
			InitialDelay:     getEnvAsDuration("GATEWAY_INITIAL_DELAY", time.Second),
			ProviderTimeout:  getEnvAsDuration("GATEWAY_PROVIDER_TIMEOUT", 30*time.Second),
			HealthyThreshold: getEnvAsFloat("GATEWAY_HEALTHY_THRESHOLD", 0.5),
			BatchConcurrency: getEnvAsInt("GATEWAY_BATCH_CONCURRENCY", 4),
			RetryClassify:    getEnvAsBool("GATEWAY_RETRY_CLASSIFY", false),
			LedgerBuffer:     getEnvAsInt("GATEWAY_LEDGER_BUFFER", 1000),
			LedgerWorkers:    getEnvAsInt("GATEWAY_LEDGER_WORKERS", 2),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if path := getEnv("GATEWAY_CONFIG_FILE", ""); path != "" {
		if err := cfg.Gateway.LoadFile(path); err != nil {
			return nil, fmt.Errorf("failed to load gateway tuning file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.IsProduction() && c.Providers.Primary.APIKey == "" {
		return fmt.Errorf("primary provider API key (GEMINI_API_KEY) is required in production")
	}

	switch c.Cache.Backend {
	case CacheBackendRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("redis address is required for the redis cache backend")
		}
	case CacheBackendSQLite:
		if c.Cache.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for the sqlite cache backend")
		}
	case CacheBackendMemory:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	if err := c.Gateway.Validate(); err != nil {
		return err
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// Validate checks the gateway resilience settings
func (g *GatewayConfig) Validate() error {
	if g.RateLimit <= 0 {
		return fmt.Errorf("gateway rate limit must be positive")
	}
	if g.RateWindow <= 0 {
		return fmt.Errorf("gateway rate window must be positive")
	}
	if g.FailureThreshold <= 0 {
		return fmt.Errorf("gateway failure threshold must be positive")
	}
	if g.MaxRetries <= 0 {
		return fmt.Errorf("gateway max retries must be at least 1")
	}
	if g.HealthyThreshold <= 0 || g.HealthyThreshold > 1 {
		return fmt.Errorf("gateway healthy threshold must be in (0, 1]")
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Enabled reports whether a ledger database is configured
func (c *DatabaseConfig) Enabled() bool {
	return c.ConnectionString != "" || c.Host != ""
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password)
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func loadDatabaseConfig() DatabaseConfig {
	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", ""),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "gateway"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "gateway"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
