package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/annel0/terragen/internal/noise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "terragen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TERRAGEN_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.Generator.Side)
	assert.Equal(t, 20, cfg.Generator.Step)
	assert.Equal(t, 15, cfg.Generator.Resolution)
	assert.Equal(t, 100, cfg.Generator.Sea)
	assert.Equal(t, 130, cfg.Generator.AltMax)
	assert.Nil(t, cfg.Generator.Seed)
	assert.Empty(t, cfg.Events.NATSURL, "по умолчанию шина в памяти")
	assert.True(t, cfg.Events.WarmCache)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
generator:
  side: 128
  resolution: 32
  seed: 42
  algorithm: simplex
server:
  rest_port: 9000
storage:
  in_memory: true
cache:
  redis_url: localhost:6379
  default_ttl: 5m
events:
  nats_url: nats://127.0.0.1:4222
  retention: 2h
telemetry:
  enabled: true
  endpoint: otel:4318
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 128, cfg.Generator.Side)
	assert.Equal(t, 32, cfg.Generator.Resolution)
	require.NotNil(t, cfg.Generator.Seed)
	assert.Equal(t, int64(42), *cfg.Generator.Seed)
	assert.Equal(t, noise.AlgorithmSimplex, cfg.Generator.Algorithm)
	assert.Equal(t, 100, cfg.Generator.Sea, "незаданные поля остаются по умолчанию")
	assert.Equal(t, 9000, cfg.Server.GetRESTPort())
	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisURL)
	assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Events.NATSURL)
	assert.Equal(t, 2*time.Hour, cfg.Events.Retention)
	assert.Equal(t, "TERRAGEN_MAPS", cfg.Events.Stream)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "otel:4318", cfg.Telemetry.Endpoint)
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, "generator:\n  side: 16\n")
	t.Setenv("TERRAGEN_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Generator.Side)
}

func TestLoadRejectsInvalidGenerator(t *testing.T) {
	path := writeConfig(t, "generator:\n  side: -4\n")

	_, err := Load(path)
	assert.ErrorIs(t, err, noise.ErrInvalidArgument, "отрицательная сторона не подменяется дефолтом")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPortFallbacks(t *testing.T) {
	s := ServerConfig{}

	t.Setenv("TERRAGEN_REST_PORT", "")
	assert.Equal(t, 8088, s.GetRESTPort())

	t.Setenv("TERRAGEN_REST_PORT", "7070")
	assert.Equal(t, 7070, s.GetRESTPort())

	t.Setenv("TERRAGEN_METRICS_PORT", "abc")
	assert.Equal(t, 2112, s.GetMetricsPort())
}

func TestJWTSecretFallback(t *testing.T) {
	t.Setenv("TERRAGEN_JWT_SECRET", "from-env")

	s := ServerConfig{}
	assert.Equal(t, "from-env", s.GetJWTSecret())

	s.JWTSecret = "from-config"
	assert.Equal(t, "from-config", s.GetJWTSecret())
}
