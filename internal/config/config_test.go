package config

import (
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 400*time.Millisecond, cfg.ThrottleWindow)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "vitrine.yaml", `
server_url: ws://localhost:8501/stream
throttle_window: 250ms
reconnect:
  max_attempts: 5
archive:
  backend: redis
redis:
  addr: cache:6379
  db: 2
  ttl: 24h
log_level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:8501/stream", cfg.ServerURL)
	assert.Equal(t, 250*time.Millisecond, cfg.ThrottleWindow)
	assert.Equal(t, 5, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Reconnect.Initial, "unset nested keys keep their default")
	assert.Equal(t, BackendRedis, cfg.Archive.Backend)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, "vitrine:report:", cfg.Redis.Prefix)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "vitrine.json", `{"archive": {"backend": "memory"}, "mcp_port": 9000}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Archive.Backend)
	assert.Equal(t, 9000, cfg.MCPPort)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "vitrine.yaml", "http_addr: \":9090\"\narchive:\n  backend: memory\n")
	t.Setenv("VITRINE_HTTP_ADDR", ":7070")
	t.Setenv("VITRINE_ARCHIVE_BACKEND", "loam")
	t.Setenv("VITRINE_ARCHIVE_PATH", "reports")
	t.Setenv("VITRINE_THROTTLE_WINDOW", "1s")
	t.Setenv("VITRINE_RECORD", "false")
	t.Setenv("VITRINE_REDIS_DB", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTPAddr)
	assert.Equal(t, BackendLoam, cfg.Archive.Backend)
	assert.Equal(t, "reports", cfg.Archive.Path)
	assert.Equal(t, time.Second, cfg.ThrottleWindow)
	assert.False(t, cfg.Record)
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeFile(t, "vitrine.yaml", "throtle_window: 1s\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "throtle_window")
}

func TestLoad_ParseError(t *testing.T) {
	path := writeFile(t, "vitrine.yaml", "archive: [\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse vitrine.yaml")
}

func TestValidate_JoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.ServerURL = "http://example.com"
	cfg.ThrottleWindow = 0
	cfg.Archive.Backend = "s3"
	cfg.LogLevel = "loud"
	cfg.LogFormat = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "server_url")
	assert.ErrorContains(t, err, "throttle_window")
	assert.ErrorContains(t, err, `archive.backend "s3"`)
	assert.ErrorContains(t, err, "log_level")
	assert.ErrorContains(t, err, `log_format "xml"`)
}

func TestLoad_LogFormatFromEnv(t *testing.T) {
	t.Setenv("VITRINE_LOG_FORMAT", "json")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_ArchiveProtection(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	t.Setenv("VITRINE_ARCHIVE_ENCRYPTION_KEY", key)
	t.Setenv("VITRINE_ARCHIVE_REDACT", `sk-\w+,\d{3}-\d{4}`)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{`sk-\w+`, `\d{3}-\d{4}`}, cfg.Archive.Redact)

	raw, err := cfg.Archive.Key()
	require.NoError(t, err)
	assert.Len(t, raw, 32)
}

func TestValidate_EncryptionKey(t *testing.T) {
	cfg := Default()
	cfg.Archive.EncryptionKey = base64.StdEncoding.EncodeToString([]byte("short"))
	assert.ErrorContains(t, cfg.Validate(), "must decode to 32 bytes")

	cfg.Archive.EncryptionKey = "%%%"
	assert.ErrorContains(t, cfg.Validate(), "not valid base64")
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "VITRINE_REDIS_ADDR", EnvName("redis.addr"))
	assert.Equal(t, "VITRINE_LOG_LEVEL", EnvName("log_level"))
}
