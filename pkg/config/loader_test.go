package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

type testConfig struct {
	DB   DBConfig  `yaml:"db"`
	JWT  JWTConfig `yaml:"jwt"`
	Chat struct {
		HistoryLimit int  `yaml:"history_limit"`
		RedisFanout  bool `yaml:"redis_fanout"`
	} `yaml:"chat"`
}

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
db:
  host: base-host
  port: 5432
  password: ${DB_PASSWORD}
  slow_query: 250ms
jwt:
  secret: ${JWT_SECRET}
  ttl: 2h
chat:
  history_limit: 200
  redis_fanout: true
`)
	writeFile(t, dir, "staging.yaml", `
db:
  host: staging-host
`)
	writeFile(t, dir, "secrets.env", "DB_PASSWORD=s3cret\nJWT_SECRET=jwt-key\n")
	t.Setenv("PORTAL_CHAT__HISTORY_LIMIT", "50")
	t.Setenv("PORTAL_CHAT__REDIS_FANOUT", "false")

	raw, err := LoadConfig("staging", dir)
	require.NoError(t, err)

	var cfg testConfig
	require.NoError(t, Decode(raw, &cfg))

	assert.Equal(t, "staging-host", cfg.DB.Host)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, "s3cret", cfg.DB.Password)
	assert.Equal(t, 250*time.Millisecond, cfg.DB.SlowQuery)
	assert.Equal(t, "jwt-key", cfg.JWT.Secret)
	assert.Equal(t, 2*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, 50, cfg.Chat.HistoryLimit)
	assert.False(t, cfg.Chat.RedisFanout)
}

func TestLoadConfigMissingBase(t *testing.T) {
	_, err := LoadConfig("local", t.TempDir())
	assert.Error(t, err)
}

func TestMergeMapsIsDeep(t *testing.T) {
	dst := map[string]interface{}{"db": map[string]interface{}{"host": "a", "port": 1}}
	src := map[string]interface{}{"db": map[string]interface{}{"host": "b"}}

	merged := mergeMaps(dst, src)
	db := merged["db"].(map[string]interface{})
	assert.Equal(t, "b", db["host"])
	assert.Equal(t, 1, db["port"])
	assert.Equal(t, "a", dst["db"].(map[string]interface{})["host"])
}
