package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="

func TestLoadDefaultsWithSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("READLY_JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "readly-auth", cfg.App.Name)
	assert.Equal(t, time.Hour, cfg.JWT.AccessTokenTTL)
	assert.Equal(t, 168*time.Hour, cfg.JWT.RefreshTokenTTL)
	assert.Equal(t, 24*time.Hour, cfg.Email.VerificationTokenTTL)
	assert.Equal(t, 3, cfg.Email.MaxRetryAttempts)
	assert.Equal(t, "Readly", cfg.JWT.Issuer)
	assert.Contains(t, cfg.HTTP.ExemptPrefixes, "/api/v1/auth/")
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("READLY_JWT_SECRET", testSecret)
	t.Setenv("READLY_JWT_ACCESS_TOKEN_TTL", "15m")
	t.Setenv("READLY_EMAIL_MAX_RETRY_ATTEMPTS", "5")
	t.Setenv("READLY_APP_BASE_URL", "https://readly.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenTTL)
	assert.Equal(t, 5, cfg.Email.MaxRetryAttempts)
	assert.Equal(t, "https://readly.example", cfg.App.BaseURL)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("READLY_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret is required")
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := AppConfig{Kafka: KafkaSettings{Enabled: true}}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"jwt.secret", "access_token_ttl", "verification_token_ttl", "app.base_url", "kafka.brokers"} {
		assert.Contains(t, err.Error(), want)
	}
}
