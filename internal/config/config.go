package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Store    StoreConfig
	Postgres PostgresConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	SLA      SLAConfig
	List     ListConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// StoreConfig selects the relational backend.
type StoreConfig struct {
	Driver string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// SQLiteConfig holds the embedded database location.
type SQLiteConfig struct {
	Path string
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// Output is a zap sink path such as "stdout" or "stderr".
	Output string
}

// AuthConfig defines caller identity parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	// DemoUserID stands in for the caller when no bearer token is sent.
	DemoUserID string
}

// SLAConfig controls the breach sweep loop.
type SLAConfig struct {
	SweepIntervalSeconds int
	SweepLockTTLSeconds  int
}

// ListConfig bounds ticket listing pages.
type ListConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))
	dsn := os.Getenv("POSTGRES_DSN")

	driver := strings.ToLower(os.Getenv("STORE_DRIVER"))
	if driver == "" {
		driver = DriverSQLite
		if dsn != "" {
			driver = DriverPostgres
		}
	}
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("invalid STORE_DRIVER %q", driver)
	}
	if driver == DriverPostgres && dsn == "" {
		return nil, fmt.Errorf("STORE_DRIVER=postgres requires POSTGRES_DSN")
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{Driver: driver},
		Postgres: PostgresConfig{
			DSN:            dsn,
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "data/helpdesk.db"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			DemoUserID:            os.Getenv("AUTH_DEMO_USER_ID"),
		},
		SLA: SLAConfig{
			SweepIntervalSeconds: getEnvAsInt("SLA_SWEEP_INTERVAL_SECONDS", 0),
			SweepLockTTLSeconds:  getEnvAsInt("SLA_SWEEP_LOCK_TTL_SECONDS", 60),
		},
		List: ListConfig{
			DefaultLimit: getEnvAsInt("LIST_DEFAULT_LIMIT", 10),
			MaxLimit:     getEnvAsInt("LIST_MAX_LIMIT", 100),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SweepInterval returns zero when the in-process sweep loop is disabled.
func (s SLAConfig) SweepInterval() time.Duration {
	if s.SweepIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(s.SweepIntervalSeconds) * time.Second
}

// SweepLockTTL bounds how long one replica may hold the sweep lock.
func (s SLAConfig) SweepLockTTL() time.Duration {
	if s.SweepLockTTLSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.SweepLockTTLSeconds) * time.Second
}

// AccessTokenTTL returns the bearer token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	if a.AccessTokenTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
