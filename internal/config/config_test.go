package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("DB_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, "test-secret", cfg.JWT.RefreshSecret)
	assert.Equal(t, "user_events", cfg.Kafka.UserTopic)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_MissingSecretFails(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/portal")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}

func TestValidate_Production(t *testing.T) {
	cfg := &Config{
		AppEnv:   EnvProduction,
		Database: DatabaseConfig{Driver: "sqlite", URL: "portal.db"},
		JWT:      JWTConfig{Secret: "short", AccessTTL: time.Minute, RefreshTTL: time.Hour},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 characters")
	assert.Contains(t, err.Error(), "not allowed in production")
	assert.Contains(t, err.Error(), "GOOGLE_CLIENT_ID is required")

	cfg.Database.Driver = "postgres"
	cfg.JWT.Secret = strings.Repeat("s", 32)
	cfg.Google.ClientID = "client-123.apps.googleusercontent.com"
	require.NoError(t, cfg.Validate())
}

func TestLoad_BrokerList(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/portal")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
}
