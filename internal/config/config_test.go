package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		Name   string
		Modify func(*Config)
	}{
		{"zero width", func(c *Config) { c.Width = 0 }},
		{"huge height", func(c *Config) { c.Height = 1 << 17 }},
		{"no capacity", func(c *Config) { c.Capacity = 0 }},
		{"negative drain limit", func(c *Config) { c.DrainLimit = -1 }},
		{"zero interval", func(c *Config) { c.Interval = 0 }},
		{"unknown driver", func(c *Config) { c.Driver = "ssd1306" }},
		{"fbdev without device", func(c *Config) { c.Driver, c.FBDev = DriverFBDev, "" }},
		{"spi without dc", func(c *Config) { c.DCPin = "" }},
		{"odd rotation", func(c *Config) { c.Rotation = 45 }},
		{"grid scale", func(c *Config) { c.GridScale = 0 }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
		{"listen", func(c *Config) { c.Listen = "" }},
	}
	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			cfg := DefaultConfig()
			test.Modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
width = 240
height = 240
interval = "50ms"
driver = "st7789"
rotation = 0
listen = ":9000"
banner = ""
log_level = "debug"
`)
	t.Setenv("DRAWBRIDGE_INTERVAL", "20ms")
	t.Setenv("DRAWBRIDGE_LISTEN", ":9100")
	t.Setenv("DRAWBRIDGE_DRAIN_LIMIT", "64")

	cfg := DefaultConfig()
	cfg.Rotation = 90
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs, &cfg)
	require.NoError(t, fs.Parse([]string{"--listen", ":9200", "--height", "320"}))

	require.NoError(t, Load(&cfg, path, Changed(fs)))
	assert.Equal(t, 240, cfg.Width, "file")
	assert.Equal(t, 320, cfg.Height, "flag beats file")
	assert.Equal(t, 20*time.Millisecond, cfg.Interval, "env beats file")
	assert.Equal(t, ":9200", cfg.Listen, "flag beats env")
	assert.Equal(t, 64, cfg.DrainLimit, "env")
	assert.Equal(t, DriverST7789, cfg.Driver)
	assert.Equal(t, 0, cfg.Rotation, "explicit zero in file")
	assert.Equal(t, "", cfg.Banner, "empty banner in file disables it")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 1024, cfg.Capacity, "default")
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.toml")
	writeFile(t, bad, `width = "wide"`)
	cfg := DefaultConfig()
	assert.Error(t, Load(&cfg, bad, nil))

	duration := filepath.Join(dir, "duration.toml")
	writeFile(t, duration, `interval = "soon"`)
	cfg = DefaultConfig()
	assert.Error(t, Load(&cfg, duration, nil))

	t.Setenv("DRAWBRIDGE_CAPACITY", "many")
	cfg = DefaultConfig()
	assert.Error(t, Load(&cfg, filepath.Join(dir, "missing.toml"), nil))
}

func TestLoadDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `debug = true`)

	cfg := DefaultConfig()
	require.NoError(t, Load(&cfg, path, nil))
	assert.True(t, cfg.Debug, "file")

	t.Setenv("DRAWBRIDGE_DEBUG", "false")
	cfg = DefaultConfig()
	require.NoError(t, Load(&cfg, path, nil))
	assert.False(t, cfg.Debug, "env beats file")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg = DefaultConfig()
	BindFlags(fs, &cfg)
	require.NoError(t, fs.Parse([]string{"--debug"}))
	require.NoError(t, Load(&cfg, path, Changed(fs)))
	assert.True(t, cfg.Debug, "flag beats env")

	t.Setenv("DRAWBRIDGE_DEBUG", "sometimes")
	cfg = DefaultConfig()
	assert.Error(t, Load(&cfg, path, nil))
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "DRAWBRIDGE_DRAIN_LIMIT", envName("drain-limit"))
	assert.Equal(t, "DRAWBRIDGE_WIDTH", envName("width"))
}

func TestWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `interval = "33ms"`)

	w, err := NewWatcher(path, zerolog.Nop())
	require.NoError(t, err)

	calls := make(chan struct{}, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx, func() { calls <- struct{}{} })

	// A burst of writes is reported once.
	for i := 0; i < 3; i++ {
		writeFile(t, path, `interval = "10ms"`)
	}
	writeFile(t, filepath.Join(filepath.Dir(path), "other.toml"), `x = 1`)

	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}
	select {
	case <-calls:
		t.Fatal("burst reported more than once")
	case <-time.After(4 * DefaultDebounce):
	}
}
