package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App       *AppConfig       `yaml:"app"`
	Database  *DatabaseConfig  `yaml:"database"`
	Redis     *RedisConfig     `yaml:"redis"`
	SMTP      *SMTPConfig      `yaml:"smtp"`
	WebSocket *WebSocketConfig `yaml:"websocket"`
	Security  *SecurityConfig  `yaml:"security"`
	Worker    *WorkerConfig    `yaml:"worker"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
	Port        int    `yaml:"port"`
	Host        string `yaml:"host"`
	BaseURL     string `yaml:"base_url"`
	ViewerURL   string `yaml:"viewer_url"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

// DefaultJWKSFreshness is how long a fetched identity-provider key set is
// trusted before the next verification refreshes it.
const DefaultJWKSFreshness = 15 * time.Minute

type SecurityConfig struct {
	// ShareTokenSecret signs viewer share tokens and contact verification tokens.
	ShareTokenSecret   string        `yaml:"share_token_secret"`
	ShareTokenTTL      time.Duration `yaml:"share_token_ttl"`
	VerifyTokenTTL     time.Duration `yaml:"verify_token_ttl"`
	AuthRequired       bool          `yaml:"auth_required"`
	IdentityIssuer     string        `yaml:"identity_issuer"`
	JWKSURL            string        `yaml:"jwks_url"`
	JWKSFreshness      time.Duration `yaml:"jwks_freshness"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
}

type WorkerConfig struct {
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queue_size"`
	TaskTimeout time.Duration `yaml:"task_timeout"`
}

func Load() (*Config, error) {
	config := &Config{
		App:       loadAppConfig(),
		Database:  loadDatabaseConfig(),
		Redis:     loadRedisConfig(),
		SMTP:      loadSMTPConfig(),
		WebSocket: loadWebSocketConfig(),
		Security:  loadSecurityConfig(),
		Worker:    loadWorkerConfig(),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects configurations that cannot run safely in production.
func (c *Config) Validate() error {
	if c.Security.ShareTokenSecret == "" {
		return errors.New("SHARE_TOKEN_SECRET is required")
	}
	if c.App.Environment == "production" && c.Security.ShareTokenSecret == defaultShareTokenSecret {
		return errors.New("SHARE_TOKEN_SECRET must be changed in production")
	}
	if c.Database.Driver != DriverMongoDB && c.Database.Driver != DriverMemory {
		return errors.New("DATABASE_DRIVER must be mongodb or memory")
	}
	if c.Security.AuthRequired && c.Security.JWKSURL == "" {
		return errors.New("JWKS_URL is required when AUTH_REQUIRED is set")
	}
	return nil
}

func loadAppConfig() *AppConfig {
	return &AppConfig{
		Name:        getEnv("APP_NAME", "SafeCircle"),
		Version:     getEnv("APP_VERSION", "1.0.0"),
		Environment: getEnv("APP_ENV", "development"),
		Port:        getEnvAsInt("APP_PORT", 8080),
		Host:        getEnv("APP_HOST", "localhost"),
		BaseURL:     getEnv("APP_BASE_URL", "http://localhost:8080"),
		ViewerURL:   getEnv("APP_VIEWER_URL", "http://localhost:3000/v"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
	}
}

const defaultShareTokenSecret = "dev-share-token-secret"

func loadSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		ShareTokenSecret:   getEnv("SHARE_TOKEN_SECRET", defaultShareTokenSecret),
		ShareTokenTTL:      getEnvAsDuration("SHARE_TOKEN_TTL", 24*time.Hour),
		VerifyTokenTTL:     getEnvAsDuration("VERIFY_TOKEN_TTL", 72*time.Hour),
		AuthRequired:       getEnvAsBool("AUTH_REQUIRED", false),
		IdentityIssuer:     getEnv("IDENTITY_ISSUER", ""),
		JWKSURL:            getEnv("JWKS_URL", ""),
		JWKSFreshness:      getEnvAsDuration("JWKS_FRESHNESS", DefaultJWKSFreshness),
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 120),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}
}

func loadWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		Workers:     getEnvAsInt("WORKER_COUNT", 4),
		QueueSize:   getEnvAsInt("WORKER_QUEUE_SIZE", 256),
		TaskTimeout: getEnvAsDuration("WORKER_TASK_TIMEOUT", 30*time.Second),
	}
}

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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func IsProduction() bool {
	return getEnv("APP_ENV", "development") == "production"
}
