package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolateHome(t)

	c, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".companion", "companion.db"), c.DBPath)
	assert.Equal(t, "four", c.Mood.Tiers)
	assert.Equal(t, 100*time.Millisecond, c.Scheduler.PreDelay)
	assert.Equal(t, 200*time.Millisecond, c.Scheduler.PostDelay)
	assert.Equal(t, "alloy", c.Gateway.Voice)
	assert.Equal(t, 150, c.Gateway.MaxTokens)
	assert.InDelta(t, 0.8, c.Gateway.Temperature, 1e-6)
	assert.Equal(t, int64(778822), c.Gateway.ImageSeed)
	assert.Equal(t, 60*time.Second, c.Gateway.Timeout)
	assert.Equal(t, 6, c.Memory.HistoryLimit)
	assert.Equal(t, 1200, c.Memory.Budget)
	assert.Equal(t, 400, c.Speech.MaxSegment)
	assert.Equal(t, "warn", c.Log.Level)
}

func TestLoadFileAndEnv(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "companion.yaml")
	data := `
db_path: ~/data/chat.db
mood:
  tiers: three
scheduler:
  pre_delay: 50ms
gateway:
  text_model: local-model
  api_key: from-file
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	t.Setenv("COMPANION_GATEWAY_API_KEY", "from-env")
	t.Setenv("COMPANION_MEMORY_BUDGET", "800")

	c, err := Load(New(), path)
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, "data", "chat.db"), c.DBPath)
	assert.Equal(t, "three", c.Mood.Tiers)
	assert.Equal(t, 50*time.Millisecond, c.Scheduler.PreDelay)
	assert.Equal(t, "local-model", c.Gateway.TextModel)
	assert.Equal(t, "from-env", c.Gateway.APIKey)
	assert.Equal(t, 800, c.Memory.Budget)
}

func TestLoadDefaultFileWhenPresent(t *testing.T) {
	home := isolateHome(t)
	dir := filepath.Join(home, ".companion")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("random_seed: 9\n"), 0o644))

	c, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, int64(9), c.RandomSeed)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolateHome(t)
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	isolateHome(t)
	base, err := Load(New(), "")
	require.NoError(t, err)

	cases := map[string]func(c *Config){
		"tiers":      func(c *Config) { c.Mood.Tiers = "five" },
		"delay":      func(c *Config) { c.Scheduler.PostDelay = -time.Second },
		"model":      func(c *Config) { c.Gateway.TextModel = "" },
		"max tokens": func(c *Config) { c.Gateway.MaxTokens = 0 },
		"segment":    func(c *Config) { c.Speech.MaxSegment = 0 },
		"db":         func(c *Config) { c.DBPath = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := *base
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
