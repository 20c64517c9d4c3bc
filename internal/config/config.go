package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Presence  PresenceConfig
	API       APIConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// Transport backends.
const (
	TransportRedis  = "redis"
	TransportMemory = "memory"
)

// TransportConfig selects the room broker.
type TransportConfig struct {
	Kind string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// DatabaseConfig holds PostgreSQL connection settings for snapshot reads.
// An empty Host disables the snapshot endpoint.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// Enabled reports whether a database is configured.
func (c *DatabaseConfig) Enabled() bool { return c.Host != "" }

// JWTConfig holds JWT verification settings.
type JWTConfig struct {
	Secret string //nolint:gosec // G117: JWT signing secret config
}

// PresenceConfig bounds presence traffic and lifetime.
type PresenceConfig struct {
	// TTL is refreshed on every presence write; a crashed node's entries
	// disappear after it.
	TTL   time.Duration
	Rate  float64
	Burst int
}

// APIConfig holds per-user REST rate limits.
type APIConfig struct {
	Rate  float64
	Burst int
}

// LogConfig selects zerolog level and output format.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// the JWT secret must be set explicitly.
func Load() (*Config, error) {
	readTimeout, err := getEnvDuration("KANBANSYNC_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	// WebSocket connections are long lived, so writes are bounded per frame
	// by the hub and the server-wide write timeout defaults to none.
	writeTimeout, err := getEnvDuration("KANBANSYNC_SERVER_WRITE_TIMEOUT", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("KANBANSYNC_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbPort, err := getEnvInt("KANBANSYNC_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("KANBANSYNC_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	presenceTTL, err := getEnvDuration("KANBANSYNC_PRESENCE_TTL", 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	presenceRate, err := getEnvFloat("KANBANSYNC_PRESENCE_RATE", 30)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	presenceBurst, err := getEnvInt("KANBANSYNC_PRESENCE_BURST", 10)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	apiRate, err := getEnvFloat("KANBANSYNC_API_RATE", 100)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	apiBurst, err := getEnvInt("KANBANSYNC_API_BURST", 200)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:         getEnv("KANBANSYNC_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  getEnvList("KANBANSYNC_CORS_ORIGINS", []string{"http://localhost:5173"}),
		},
		Transport: TransportConfig{
			Kind: strings.ToLower(getEnv("KANBANSYNC_TRANSPORT", TransportRedis)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("KANBANSYNC_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("KANBANSYNC_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Database: DatabaseConfig{
			Host:     getEnv("KANBANSYNC_DB_HOST", ""),
			Port:     dbPort,
			User:     getEnv("KANBANSYNC_DB_USER", "kanban"),
			Password: getEnv("KANBANSYNC_DB_PASSWORD", ""),
			DBName:   getEnv("KANBANSYNC_DB_NAME", "kanban"),
			SSLMode:  getEnv("KANBANSYNC_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		JWT: JWTConfig{
			Secret: getEnv("KANBANSYNC_JWT_SECRET", ""),
		},
		Presence: PresenceConfig{
			TTL:   presenceTTL,
			Rate:  presenceRate,
			Burst: presenceBurst,
		},
		API: APIConfig{
			Rate:  apiRate,
			Burst: apiBurst,
		},
		Log: LogConfig{
			Level:  getEnv("KANBANSYNC_LOG_LEVEL", "info"),
			Format: getEnv("KANBANSYNC_LOG_FORMAT", "json"),
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("KANBANSYNC_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("KANBANSYNC_JWT_SECRET must be at least 32 characters")
	}

	switch c.Transport.Kind {
	case TransportRedis:
		if c.Redis.Addr == "" {
			return errors.New("KANBANSYNC_REDIS_ADDR is required when KANBANSYNC_TRANSPORT=redis")
		}
	case TransportMemory:
		log.Warn().Msg("KANBANSYNC_TRANSPORT=memory only relays within a single process")
	default:
		return fmt.Errorf("KANBANSYNC_TRANSPORT must be %q or %q, got %q", TransportRedis, TransportMemory, c.Transport.Kind)
	}

	if c.Database.Enabled() {
		if c.Database.SSLMode == "disable" {
			log.Warn().Msg("KANBANSYNC_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("KANBANSYNC_DB_PORT must be 1-65535, got %d", c.Database.Port)
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("KANBANSYNC_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
		}
	}

	// Bounds checks.
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("KANBANSYNC_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("KANBANSYNC_SERVER_WRITE_TIMEOUT must not be negative, got %s", c.Server.WriteTimeout)
	}
	if c.Presence.TTL <= 0 {
		return fmt.Errorf("KANBANSYNC_PRESENCE_TTL must be positive, got %s", c.Presence.TTL)
	}
	if c.Presence.Rate <= 0 {
		return fmt.Errorf("KANBANSYNC_PRESENCE_RATE must be positive, got %g", c.Presence.Rate)
	}
	if c.Presence.Burst < 1 {
		return fmt.Errorf("KANBANSYNC_PRESENCE_BURST must be >= 1, got %d", c.Presence.Burst)
	}
	if c.API.Rate <= 0 {
		return fmt.Errorf("KANBANSYNC_API_RATE must be positive, got %g", c.API.Rate)
	}
	if c.API.Burst < 1 {
		return fmt.Errorf("KANBANSYNC_API_BURST must be >= 1, got %d", c.API.Burst)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("KANBANSYNC_LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
