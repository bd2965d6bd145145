package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "securemsg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "dev", c.Log.Env)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, ".", c.Keys.Dir)
	assert.Equal(t, 1024, c.Keys.DefaultSize)
	assert.Equal(t, 10, c.Primes.Rounds)
	assert.Equal(t, "http://localhost:8080", c.Client.BaseURL)
	assert.Equal(t, 30*time.Second, c.Client.Timeout)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "memory", c.Server.Store)
	assert.Equal(t, 24*time.Hour, c.Server.MessageTTL)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
log:
  env: prod
  level: debug
keys:
  dir: /var/lib/securemsg
  default_size: 2048
primes:
  workers: 4
client:
  base_url: https://keys.example.com
  timeout: 5s
server:
  store: redis
  message_ttl: 1h
  redis:
    addr: localhost:6379
    db: 2
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", c.Log.Env)
	assert.Equal(t, "/var/lib/securemsg", c.Keys.Dir)
	assert.Equal(t, 2048, c.Keys.DefaultSize)
	assert.Equal(t, 4, c.Primes.Workers)
	assert.Equal(t, 10, c.Primes.Rounds)
	assert.Equal(t, "https://keys.example.com", c.Client.BaseURL)
	assert.Equal(t, 5*time.Second, c.Client.Timeout)
	assert.Equal(t, "redis", c.Server.Store)
	assert.Equal(t, time.Hour, c.Server.MessageTTL)
	assert.Equal(t, 2, c.Server.Redis.DB)
	assert.Equal(t, "securemsg:", c.Server.Redis.Prefix)
}

func TestLoadFileKeepsExplicitZeroTTLs(t *testing.T) {
	c, err := Load(writeFile(t, `
client:
  cache_ttl: 0s
server:
  message_ttl: 0s
`))
	require.NoError(t, err)
	assert.Zero(t, c.Client.CacheTTL)
	assert.Zero(t, c.Server.MessageTTL)

	c, err = Load(writeFile(t, "log:\n  level: warn\n"))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, c.Client.CacheTTL)
	assert.Equal(t, 24*time.Hour, c.Server.MessageTTL)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SECUREMSG_KEYS_DIR", "/tmp/keys")
	t.Setenv("SECUREMSG_KEY_SIZE", "4096")
	t.Setenv("SECUREMSG_PRIME_WORKERS", "2")
	t.Setenv("SECUREMSG_CLIENT_TIMEOUT", "2s")
	t.Setenv("SECUREMSG_LOG_ENV", "PROD")

	c, err := Load(writeFile(t, "keys:\n  dir: ignored\n"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/keys", c.Keys.Dir)
	assert.Equal(t, 4096, c.Keys.DefaultSize)
	assert.Equal(t, 2, c.Primes.Workers)
	assert.Equal(t, 2*time.Second, c.Client.Timeout)
	assert.Equal(t, "prod", c.Log.Env)
}

func TestEnvOverrideParseError(t *testing.T) {
	t.Setenv("SECUREMSG_KEY_SIZE", "big")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SECUREMSG_KEY_SIZE")
}

func TestValidationFailures(t *testing.T) {
	tests := map[string]string{
		"key size not multiple of 8": "keys:\n  default_size: 1025\n",
		"key size too small":         "keys:\n  default_size: 256\n",
		"unknown store":              "server:\n  store: etcd\n",
		"redis without addr":         "server:\n  store: redis\n",
		"bad log env":                "log:\n  env: staging\n",
		"bad base url":               "client:\n  base_url: not a url\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadBadYAML(t *testing.T) {
	_, err := Load(writeFile(t, "keys: [unterminated\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
