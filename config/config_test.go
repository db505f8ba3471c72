package config_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inkroom/inkroom/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HOST_PORT", "ROOM_NAME", "REDIS_ENDPOINT", "JWT_SECRET", "DEV_MODE",
		"ALLOWED_ORIGIN", "MDNS_ADVERTISE", "OAUTH_REDIRECT_URL",
		"GITHUB_CLIENT_ID", "GITHUB_CLIENT_SECRET",
		"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEV_MODE", "true")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "8080", cfg.HostPort)
	assert.Equal(t, "main", cfg.RoomName)
	assert.Equal(t, "http://localhost:8080", cfg.AllowedOrigin)
	assert.Empty(t, cfg.RedisEndpoint)
	assert.False(t, cfg.MDNSAdvertise)
	assert.Empty(t, cfg.OauthConfigs)
}

func TestLoadDecodesJWTSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", base64.StdEncoding.EncodeToString([]byte("super-secret")))

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, []byte("super-secret"), cfg.JWTSecret)
}

func TestLoadRejectsInvalidJWTSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "not base64!!!")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoadRequiresSecretOutsideDevMode(t *testing.T) {
	clearEnv(t)

	_, err := config.Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}

func TestLoadGeneratesEphemeralDevSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEV_MODE", "true")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Len(t, cfg.JWTSecret, 32)

	other, err := config.Load()
	assert.NoError(t, err)
	assert.NotEqual(t, cfg.JWTSecret, other.JWTSecret)
}

func TestLoadOauthProvidersOnlyWhenConfigured(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEV_MODE", "true")
	t.Setenv("GITHUB_CLIENT_ID", "gh-id")
	t.Setenv("GITHUB_CLIENT_SECRET", "gh-secret")
	t.Setenv("OAUTH_REDIRECT_URL", "https://boards.example/callback")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Len(t, cfg.OauthConfigs, 1)
	assert.Equal(t, "gh-id", cfg.OauthConfigs["github"].ClientID)
	assert.Equal(t, "https://boards.example/callback", cfg.OauthConfigs["github"].RedirectURL)
}

func TestLoadReadsOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEV_MODE", "true")
	t.Setenv("HOST_PORT", "9999")
	t.Setenv("ROOM_NAME", "atelier")
	t.Setenv("REDIS_ENDPOINT", "redis.internal:6379")
	t.Setenv("ALLOWED_ORIGIN", "https://draw.example")
	t.Setenv("MDNS_ADVERTISE", "true")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "9999", cfg.HostPort)
	assert.Equal(t, "atelier", cfg.RoomName)
	assert.Equal(t, "redis.internal:6379", cfg.RedisEndpoint)
	assert.Equal(t, "https://draw.example", cfg.AllowedOrigin)
	assert.True(t, cfg.MDNSAdvertise)
}
