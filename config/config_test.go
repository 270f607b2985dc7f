package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[server]
hostname = "status.example.com"
port = 9000

[fetch]
timeout = 5
max_concurrent = 4
user_agent = "vigil/1.0"

[archive]
enabled = false

[[providers]]
name = "acme"
product = "Acme API"
feed_url = "https://status.acme.com/history.atom"
poll_interval = 60

[[providers]]
name = "widgets"
feed_url = "https://status.widgets.io/feed.rss"
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "status.example.com", cfg.Server.Hostname)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Fetch.Timeout)
	assert.Equal(t, 4, cfg.Fetch.MaxConcurrent)
	assert.False(t, cfg.Archive.Enabled)

	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "Acme API", cfg.Providers[0].Product)
	assert.Equal(t, 60*time.Second, cfg.Providers[0].Interval())
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
[[providers]]
name = "acme"
feed_url = "https://status.acme.com/history.atom"
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	// Product falls back to the provider name.
	assert.Equal(t, "acme", cfg.Providers[0].Product)
	assert.Equal(t, 30*time.Second, cfg.Providers[0].Interval())
	assert.Equal(t, 10, cfg.Fetch.Timeout)
	assert.Equal(t, 20, cfg.Fetch.MaxConcurrent)
	assert.Equal(t, 8085, cfg.Server.Port)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, "vigil.db", cfg.Archive.Database)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "reading config file")
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		wantErr  string
	}{
		{
			name:     "no providers",
			contents: `[server]` + "\n" + `port = 9000`,
			wantErr:  "no providers configured",
		},
		{
			name: "missing name",
			contents: `
[[providers]]
feed_url = "https://status.acme.com/history.atom"
`,
			wantErr: "missing name",
		},
		{
			name: "missing feed url",
			contents: `
[[providers]]
name = "acme"
`,
			wantErr: "missing feed_url",
		},
		{
			name: "relative feed url",
			contents: `
[[providers]]
name = "acme"
feed_url = "status.acme.com/history.atom"
`,
			wantErr: "invalid feed_url",
		},
		{
			name: "negative poll interval",
			contents: `
[[providers]]
name = "acme"
feed_url = "https://status.acme.com/history.atom"
poll_interval = -5
`,
			wantErr: "negative poll_interval",
		},
		{
			name: "duplicate provider names",
			contents: `
[[providers]]
name = "acme"
feed_url = "https://status.acme.com/history.atom"

[[providers]]
name = "acme"
feed_url = "https://status.acme.com/other.atom"
`,
			wantErr: `duplicate provider name "acme"`,
		},
		{
			name: "not toml",
			contents: `{"providers": []}`,
			wantErr:  "parsing config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadConfig(writeConfig(t, tt.contents))
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
