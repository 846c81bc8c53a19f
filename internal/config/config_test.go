package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"CONFIG_FILE", "ALCHEMY_KEY", "NEXT_PUBLIC_ALCHEMY_KEY", "PORT", "ALLOWED_ORIGINS", "SESSION_TTL", "RPC_BREAKER_THRESHOLD", "RPC_BREAKER_COOLDOWN"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.RPCCredential, "missing credential must not fail startup")
	assert.Equal(t, DefaultRPCProviderHost, cfg.RPCProviderHost)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 5, cfg.RPCBreakerThreshold)
	assert.Equal(t, 30*time.Second, cfg.RPCBreakerCooldown)
}

func TestLoad_BreakerOverrides(t *testing.T) {
	clearEnv(t)

	t.Setenv("RPC_BREAKER_THRESHOLD", "3")
	t.Setenv("RPC_BREAKER_COOLDOWN", "not-a-duration")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.RPCBreakerThreshold)
	assert.Equal(t, 30*time.Second, cfg.RPCBreakerCooldown, "invalid duration keeps the default")
}

func TestLoad_CredentialSources(t *testing.T) {
	clearEnv(t)

	t.Setenv("NEXT_PUBLIC_ALCHEMY_KEY", "public-key")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "public-key", cfg.RPCCredential)

	t.Setenv("ALCHEMY_KEY", "  server-key ")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "server-key", cfg.RPCCredential, "ALCHEMY_KEY takes precedence and is trimmed")
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9090"
rpc_credential: file-key
session_ttl: 2h
allowed_origins: ["https://a.example"]
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7070")
	t.Setenv("ALLOWED_ORIGINS", "https://b.example, https://c.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "file-key", cfg.RPCCredential)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, []string{"https://b.example", "https://c.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 20, cfg.RPCRateBurst, "unset keys keep defaults")
}

func TestLoad_BadFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestGetEnvHelpers_InvalidFallsBack(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_DUR", "soon")
	t.Setenv("X_BOOL", "maybe")

	assert.Equal(t, 3, GetEnvAsInt("X_INT", 3))
	assert.Equal(t, time.Second, GetEnvAsDuration("X_DUR", time.Second))
	assert.True(t, GetEnvAsBool("X_BOOL", true))
}
