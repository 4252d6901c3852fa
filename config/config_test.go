package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "AI_API_KEY", "AI_API_URL", "AI_STREAM_TIMEOUT", "AI_MAX_BUFFER_BYTES",
		"AI_STRICT_VALIDATION", "AUTH_MODE", "ALLOWED_ORIGINS", "AMQP_URL"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", cfg.AIAPIURL)
	assert.Equal(t, 3*time.Minute, cfg.AIStreamTimeout)
	assert.Equal(t, 1<<20, cfg.AIMaxBufferBytes)
	assert.True(t, cfg.AIStrictValidation)
	assert.Equal(t, AuthModeRemote, cfg.AuthMode)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.AMQPURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AI_API_KEY", "sk-test")
	t.Setenv("AI_STREAM_TIMEOUT", "45s")
	t.Setenv("AI_MAX_BUFFER_BYTES", "2048")
	t.Setenv("AI_STRICT_VALIDATION", "false")
	t.Setenv("AUTH_MODE", "JWT")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1, 10.0.0.2 ,")

	cfg := Load()

	assert.Equal(t, "sk-test", cfg.AIAPIKey)
	assert.Equal(t, 45*time.Second, cfg.AIStreamTimeout)
	assert.Equal(t, 2048, cfg.AIMaxBufferBytes)
	assert.False(t, cfg.AIStrictValidation)
	assert.Equal(t, AuthModeJWT, cfg.AuthMode)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.TrustedProxies)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("AI_MAX_BUFFER_BYTES", "lots")
	t.Setenv("AI_STREAM_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 1<<20, cfg.AIMaxBufferBytes)
	assert.Equal(t, 3*time.Minute, cfg.AIStreamTimeout)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			AIAPIKey:           "sk-test",
			AIStreamTimeout:    time.Minute,
			AIMaxBufferBytes:   1024,
			AuthMode:           AuthModeRemote,
			AuthServiceURL:     "http://auth",
			RateLimitPerMinute: 10,
		}
	}

	assert.NoError(t, valid().Validate())

	cfg := valid()
	cfg.AIAPIKey = ""
	assert.ErrorContains(t, cfg.Validate(), "AI_API_KEY")

	cfg = valid()
	cfg.AuthMode = AuthModeJWT
	assert.ErrorContains(t, cfg.Validate(), "JWT_SECRET")

	cfg = valid()
	cfg.AuthMode = "ldap"
	assert.ErrorContains(t, cfg.Validate(), "AUTH_MODE")

	cfg = valid()
	cfg.AIMaxBufferBytes = 0
	cfg.RateLimitPerMinute = 0
	err := cfg.Validate()
	assert.ErrorContains(t, err, "AI_MAX_BUFFER_BYTES")
	assert.ErrorContains(t, err, "RATE_LIMIT_PER_MINUTE")
}
