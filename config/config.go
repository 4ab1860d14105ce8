package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	SePay    SePayConfig
	Upgrade  UpgradeConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/gatherhub?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// SePayConfig holds the bank aggregator integration settings.
//
// WebhookSecret authenticates inbound transaction pushes. APIKey and BaseURL
// drive the outbound transaction-list poll used as a reconciliation safety
// net when a push is missed.
type SePayConfig struct {
	WebhookSecret     string
	APIKey            string
	BaseURL           string
	PollIntervalMin   int // minutes between poll cycles
	LookbackHours     int // how far back each poll cycle queries
	PageSize          int // max records per poll request
	RequestTimeoutSec int
}

// UpgradeConfig holds organizer-upgrade order settings.
type UpgradeConfig struct {
	Amount     int64  // expected minimum transfer, in VND
	TargetRole string // role granted when the order completes
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "24"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/gatherhub?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "gatherhub"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: jwtExpire,
		},
		SePay: SePayConfig{
			WebhookSecret:     getEnv("SEPAY_WEBHOOK_SECRET", ""),
			APIKey:            getEnv("SEPAY_API_KEY", ""),
			BaseURL:           getEnv("SEPAY_BASE_URL", "https://my.sepay.vn/userapi"),
			PollIntervalMin:   getEnvInt("SEPAY_POLL_INTERVAL_MIN", 5),
			LookbackHours:     getEnvInt("SEPAY_LOOKBACK_HOURS", 24),
			PageSize:          getEnvInt("SEPAY_PAGE_SIZE", 100),
			RequestTimeoutSec: getEnvInt("SEPAY_REQUEST_TIMEOUT_SEC", 15),
		},
		Upgrade: UpgradeConfig{
			Amount:     getEnvInt64("UPGRADE_AMOUNT_VND", 100000),
			TargetRole: getEnv("UPGRADE_TARGET_ROLE", "organizer"),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
