package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend tags for the cache and queue, chosen once at startup.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	HTTPHost string
	HTTPPort string

	LogLevel string

	CacheBackend string
	QueueBackend string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Ordered provider tags ("mock", "ses", "smtp"); priority is list order.
	Providers []string

	AWSRegion      string
	SESSourceEmail string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string

	RateLimitMax    int
	RateLimitWindow time.Duration

	// Per-client HTTP throttle in front of the API routes.
	HTTPRateLimitMax    int
	HTTPRateLimitWindow time.Duration

	// Optional delivery audit log. Empty DSN disables it.
	MySQLDSN     string
	MySQLMaxOpen int
	MySQLMaxIdle int
	MySQLMaxLife time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPHost:        getEnv("HTTP_HOST", "0.0.0.0"),
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		CacheBackend:    strings.ToLower(getEnv("CACHE_BACKEND", BackendMemory)),
		QueueBackend:    strings.ToLower(getEnv("QUEUE_BACKEND", BackendMemory)),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		Providers:       splitList(getEnv("EMAIL_PROVIDERS", "mock")),
		AWSRegion:       getEnv("AWS_REGION", "eu-central-1"),
		SESSourceEmail:  getEnv("SES_SOURCE_EMAIL", ""),
		SMTPHost:        getEnv("SMTP_HOST", "localhost"),
		SMTPPort:        getEnvInt("SMTP_PORT", 587),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow: time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,

		HTTPRateLimitMax:    getEnvInt("HTTP_RATE_LIMIT_MAX", 10),
		HTTPRateLimitWindow: time.Duration(getEnvInt("HTTP_RATE_LIMIT_WINDOW_SECONDS", 30)) * time.Second,

		MySQLDSN:     getEnv("MYSQL_DSN", ""),
		MySQLMaxOpen: getEnvInt("MYSQL_MAX_OPEN", 10),
		MySQLMaxIdle: getEnvInt("MYSQL_MAX_IDLE", 5),
		MySQLMaxLife: time.Duration(getEnvInt("MYSQL_MAX_LIFE_SECONDS", 300)) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CacheBackend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unsupported CACHE_BACKEND: %s", c.CacheBackend)
	}
	switch c.QueueBackend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unsupported QUEUE_BACKEND: %s", c.QueueBackend)
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("EMAIL_PROVIDERS must name at least one provider")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
