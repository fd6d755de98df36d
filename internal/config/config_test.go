package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DefaultBaseDelay, cfg.BaseDelay)
	assert.Equal(t, DefaultCapDelay, cfg.CapDelay)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, DefaultFeedLimit, cfg.FeedLimit)
	assert.Equal(t, "127.0.0.1:8787", cfg.DevServer.Addr)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aria-config.yaml")
	body := `url: ws://dashboard.internal/ws
fallback_url: http://dashboard.internal/events
max_retries: 3
base_delay: 500ms
cap_delay: 10s
poll_interval: 5s
devserver:
  addr: 127.0.0.1:9091
  scenario: demo.yaml
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ws://dashboard.internal/ws", cfg.URL)
	assert.Equal(t, "http://dashboard.internal/events", cfg.FallbackURL)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.CapDelay)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, "127.0.0.1:9091", cfg.DevServer.Addr)
	assert.Equal(t, "demo.yaml", cfg.DevServer.Scenario)
	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultFeedLimit, cfg.FeedLimit)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aria-config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_retries: 3\n"), 0o644))
	t.Setenv("ARIA_MAX_RETRIES", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxRetries)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"negative retries", "max_retries: -1\n"},
		{"zero base delay", "base_delay: 0s\n"},
		{"cap below base", "base_delay: 5s\ncap_delay: 1s\n"},
		{"zero poll interval", "poll_interval: 0s\n"},
		{"zero feed limit", "feed_limit: 0\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "aria-config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
