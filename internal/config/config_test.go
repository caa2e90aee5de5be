package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvConfigFile, "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverChunked, cfg.Pipeline.DriverMode)
	assert.Equal(t, 3*time.Minute, cfg.Pipeline.PollBudget)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.PollInterval)
	assert.Equal(t, 20, cfg.Pipeline.MaxScenes)
}

func TestLoad_Env(t *testing.T) {
	tests := []struct {
		name      string
		setEnv    map[string]string
		wantError bool
		check     func(t *testing.T, cfg Config)
	}{
		{
			name: "overrides pipeline knobs",
			setEnv: map[string]string{
				EnvDriverMode:   DriverMonolithic,
				EnvPollBudget:   "90s",
				EnvWorkers:      "8",
				EnvMaxScenes:    "5",
				EnvTriggerToken: "secret",
			},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, DriverMonolithic, cfg.Pipeline.DriverMode)
				assert.Equal(t, 90*time.Second, cfg.Pipeline.PollBudget)
				assert.Equal(t, 8, cfg.Pipeline.Workers)
				assert.Equal(t, 5, cfg.Pipeline.MaxScenes)
				assert.Equal(t, "secret", cfg.TriggerToken)
			},
		},
		{
			name: "reads vendor endpoints",
			setEnv: map[string]string{
				"REELCAST_RENDER_URL":     "https://render.example.com/",
				"REELCAST_RENDER_API_KEY": "rk",
			},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "https://render.example.com", cfg.Vendors.Render.BaseURL)
				assert.Equal(t, "rk", cfg.Vendors.Render.APIKey)
			},
		},
		{
			name:      "invalid duration",
			setEnv:    map[string]string{EnvPollInterval: "soon"},
			wantError: true,
		},
		{
			name:      "invalid driver mode",
			setEnv:    map[string]string{EnvDriverMode: "parallel"},
			wantError: true,
		},
		{
			name:      "budget below interval",
			setEnv:    map[string]string{EnvPollInterval: "10s", EnvPollBudget: "5s"},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvConfigFile, "")
			for k, v := range tt.setEnv {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_FileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reelcast.yaml")
	content := `
public_base_url: https://reels.example.com
pipeline:
  driver_mode: callback
  poll_budget: 5m
vendors:
  talking_head:
    base_url: https://th.example.com
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvDriverMode, DriverMonolithic)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverCallback, cfg.Pipeline.DriverMode, "file wins over env")
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.PollBudget)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.PollInterval, "unset keys keep their value")
	assert.Equal(t, "https://reels.example.com", cfg.PublicBaseURL)
	assert.Equal(t, "https://th.example.com", cfg.Vendors.TalkingHead.BaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestGetEnv(t *testing.T) {
	t.Setenv("REELCAST_TEST_VALUE", "set")
	assert.Equal(t, "set", GetEnv("REELCAST_TEST_VALUE", "fallback"))
	assert.Equal(t, "fallback", GetEnv("REELCAST_TEST_UNSET_VALUE", "fallback"))
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv(EnvSelfTrigger, "true")
	v, err := GetEnvBool(EnvSelfTrigger, false)
	assert.NoError(t, err)
	assert.True(t, v)

	t.Setenv(EnvSelfTrigger, "maybe")
	_, err = GetEnvBool(EnvSelfTrigger, false)
	assert.Error(t, err)
}
