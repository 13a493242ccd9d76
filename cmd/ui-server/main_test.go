package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Its-donkey/e-verify/internal/ui/config"
	"github.com/Its-donkey/e-verify/logging"
)

func TestFlagsOverrideConfig(t *testing.T) {
	flags, err := parseFlags([]string{"-listen", "0.0.0.0:9999", "-api", "https://api.example.com", "-log-level", "debug"})
	require.NoError(t, err)

	cfg, err := applyFlags(config.DefaultConfig(), flags)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9999", cfg.Server.ListenAddr())
	assert.Equal(t, "https://api.example.com", cfg.APIBase)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestApplyFlagsRejectsBadAPI(t *testing.T) {
	flags, err := parseFlags([]string{"-api", "localhost:8080"})
	require.NoError(t, err)
	_, err = applyFlags(config.DefaultConfig(), flags)
	assert.Error(t, err)
}

func TestApplyFlagsWatchNeedsDir(t *testing.T) {
	flags, err := parseFlags([]string{"-watch"})
	require.NoError(t, err)
	_, err = applyFlags(config.DefaultConfig(), flags)
	assert.Error(t, err)
}

func TestBuildOptionsTransportTimeout(t *testing.T) {
	cfg := config.DefaultConfig()
	opts := buildOptions(cfg, logging.Nop(), nil)
	assert.Nil(t, opts.HTTPClient)
	assert.Equal(t, cfg.APIBase, opts.APIBase)
	assert.Equal(t, 30*time.Minute, opts.SessionTTL)

	cfg.Transport.TimeoutSeconds = 7
	opts = buildOptions(cfg, logging.Nop(), nil)
	require.NotNil(t, opts.HTTPClient)
	assert.Equal(t, 7*time.Second, opts.HTTPClient.Timeout)
}
