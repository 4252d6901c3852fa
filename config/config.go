package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	AuthModeRemote = "remote"
	AuthModeJWT    = "jwt"
)

// Config holds all configuration for the AI question service
type Config struct {
	// Server configuration
	Port           string
	AllowedOrigins []string
	TrustedProxies []string

	// Logging
	LogLevel  string
	LogFormat string

	// Upstream AI provider
	AIAPIURL           string
	AIAPIKey           string
	AIModel            string
	AIStreamTimeout    time.Duration
	AIMaxBufferBytes   int
	AIStrictValidation bool

	// Session validation
	AuthMode       string
	AuthServiceURL string
	JWTSecret      string

	RateLimitPerMinute int

	// Generation events, disabled when AMQPURL is empty
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getListEnv("ALLOWED_ORIGINS", "*"),
		TrustedProxies: getListEnv("TRUSTED_PROXIES", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		AIAPIURL:           getEnv("AI_API_URL", "https://api.openai.com/v1/chat/completions"),
		AIAPIKey:           getEnv("AI_API_KEY", ""),
		AIModel:            getEnv("AI_MODEL", "gpt-4o-mini"),
		AIStreamTimeout:    getDurationEnv("AI_STREAM_TIMEOUT", 3*time.Minute),
		AIMaxBufferBytes:   getIntEnv("AI_MAX_BUFFER_BYTES", 1<<20),
		AIStrictValidation: getBoolEnv("AI_STRICT_VALIDATION", true),

		AuthMode:       strings.ToLower(getEnv("AUTH_MODE", AuthModeRemote)),
		AuthServiceURL: getEnv("AUTH_SERVICE_URL", "http://auth-service:8080"),
		JWTSecret:      getEnv("JWT_SECRET", ""),

		RateLimitPerMinute: getIntEnv("RATE_LIMIT_PER_MINUTE", 20),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "ai-generation"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "questions.generated"),
	}
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.AIAPIKey == "" {
		errs = append(errs, errors.New("AI_API_KEY is required"))
	}
	if c.AIStreamTimeout <= 0 {
		errs = append(errs, errors.New("AI_STREAM_TIMEOUT must be positive"))
	}
	if c.AIMaxBufferBytes <= 0 {
		errs = append(errs, errors.New("AI_MAX_BUFFER_BYTES must be positive"))
	}
	switch c.AuthMode {
	case AuthModeRemote:
		if c.AuthServiceURL == "" {
			errs = append(errs, errors.New("AUTH_SERVICE_URL is required when AUTH_MODE=remote"))
		}
	case AuthModeJWT:
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required when AUTH_MODE=jwt"))
		}
	default:
		errs = append(errs, errors.New("AUTH_MODE must be one of remote, jwt"))
	}
	if c.RateLimitPerMinute <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must be positive"))
	}
	return errors.Join(errs...)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated variable, dropping empty entries
func getListEnv(key, defaultValue string) []string {
	value := getEnv(key, defaultValue)
	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
