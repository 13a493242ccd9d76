package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(APIBaseEnv, "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8081", cfg.Server.ListenAddr())
	assert.Equal(t, "http://localhost:8080", cfg.APIBase)
	assert.Equal(t, "E-verify", cfg.SiteName)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL())
	assert.Equal(t, "everify_session", cfg.Session.CookieName)
	assert.Zero(t, cfg.Transport.Timeout())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "ui.yaml", `
server:
  addr: 0.0.0.0
  port: "9000"
api_base: https://accounts.example.com/
site_name: Example
session:
  ttl_seconds: 60
templates:
  dir: ./templates
  watch: true
log:
  level: debug
transport:
  timeout_seconds: 15
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.ListenAddr())
	assert.Equal(t, "https://accounts.example.com", cfg.APIBase)
	assert.Equal(t, "Example", cfg.SiteName)
	assert.Equal(t, time.Minute, cfg.Session.TTL())
	assert.True(t, cfg.Templates.Watch)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 15*time.Second, cfg.Transport.Timeout())
}

func TestLoadJSONWithFlatServerKeys(t *testing.T) {
	t.Setenv(APIBaseEnv, "")
	path := writeConfig(t, "config.json", `{"addr": "localhost", "port": ":7000", "site_name": "Json"}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost:7000", cfg.Server.ListenAddr())
	assert.Equal(t, "Json", cfg.SiteName)
}

func TestAPIBaseEnvFallback(t *testing.T) {
	t.Setenv(APIBaseEnv, "http://backend:8080")
	cfg, err := Parse([]byte("site_name: x\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://backend:8080", cfg.APIBase)

	cfg, err = Parse([]byte("api_base: http://file:1\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://file:1", cfg.APIBase)
}

func TestParseRejectsInvalid(t *testing.T) {
	_, err := Parse([]byte("api_base: ftp://nope\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("templates:\n  watch: true\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("server: [\n"))
	assert.ErrorContains(t, err, "decode config")
}
