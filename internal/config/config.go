// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Licensing   LicensingConfig
	Ranking     RankingConfig
	Sources     SourcesConfig
	Redis       RedisConfig
	AWS         AWSConfig
	Audit       AuditConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	I18n        I18nConfig
	Log         LogConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

// DatabaseConfig is only used by the postgres backend.
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type LicensingConfig struct {
	DefaultLimit   int
	AllowedDomains []string
	PolicyFile     string
}

type RankingConfig struct {
	TopN int
}

type SourcesConfig struct {
	Locations       []string
	Timeout         time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
	RefreshInterval time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheKey string
	CacheTTL time.Duration
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

type AuditConfig struct {
	// Backend is "memory" or "postgres". Postgres also holds the directory.
	Backend string
	LogFile string
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type I18nConfig struct {
	DefaultLocale string
}

type LogConfig struct {
	Level  string
	Format string
}

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "seat_ledger"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		Licensing: LicensingConfig{
			DefaultLimit:   getEnvAsInt("LICENSES_PER_SCHOOL", 2),
			AllowedDomains: getEnvAsList("ALLOWED_DOMAINS", nil),
			PolicyFile:     getEnv("POLICY_FILE", "./policy.yaml"),
		},
		Ranking: RankingConfig{
			TopN: getEnvAsInt("RANKING_TOP_N", 20),
		},
		Sources: SourcesConfig{
			Locations:       getEnvAsList("SNAPSHOT_SOURCES", nil),
			Timeout:         getEnvAsDuration("SNAPSHOT_SOURCE_TIMEOUT", 4*time.Second),
			BreakerFailures: getEnvAsInt("SNAPSHOT_BREAKER_FAILURES", 3),
			BreakerCooldown: getEnvAsDuration("SNAPSHOT_BREAKER_COOLDOWN", 30*time.Second),
			RefreshInterval: getEnvAsDuration("SNAPSHOT_REFRESH_INTERVAL", 0),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			CacheKey: getEnv("REDIS_SNAPSHOT_KEY", "seat-ledger:snapshot:last-good"),
			CacheTTL: getEnvAsDuration("REDIS_SNAPSHOT_TTL", 7*24*time.Hour),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "sa-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
		},
		Audit: AuditConfig{
			Backend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendMemory)),
			LogFile: getEnv("AUDIT_LOG_FILE", "./data/audit.jsonl"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", ""),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.Audit.Backend != BackendMemory && c.Audit.Backend != BackendPostgres {
		return fmt.Errorf("unknown storage backend %q", c.Audit.Backend)
	}

	if c.Database.Password == "" && c.Environment == "production" && c.Audit.Backend == BackendPostgres {
		return fmt.Errorf("database password is required in production")
	}

	if c.Licensing.DefaultLimit < 0 {
		return fmt.Errorf("licenses per school must not be negative")
	}

	if c.Sources.Timeout <= 0 {
		return fmt.Errorf("snapshot source timeout must be positive")
	}

	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping empty items.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
