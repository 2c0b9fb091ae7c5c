package config

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Width        int     `toml:"width"`
	Height       int     `toml:"height"`
	Capacity     int     `toml:"capacity"`
	DrainLimit   int     `toml:"drain_limit"`
	Interval     string  `toml:"interval"`
	MaxFaults    *int    `toml:"max_faults"`
	Listen       string  `toml:"listen"`
	Driver       string  `toml:"driver"`
	Rotation     *int    `toml:"rotation"`
	SPIPort      string  `toml:"spi_port"`
	SPISpeedHz   int     `toml:"spi_speed_hz"`
	ResetPin     string  `toml:"reset_pin"`
	DCPin        string  `toml:"dc_pin"`
	BacklightPin string  `toml:"backlight_pin"`
	FBDev        string  `toml:"fbdev"`
	Banner       *string `toml:"banner"`
	GridScale    int     `toml:"grid_scale"`
	LogLevel     string  `toml:"log_level"`
	Debug        *bool   `toml:"debug"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.drawbridge/config.toml if the user home directory is
// accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".drawbridge", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setInt("width", fc.Width, &cfg.Width)
	s.setInt("height", fc.Height, &cfg.Height)
	s.setInt("capacity", fc.Capacity, &cfg.Capacity)
	s.setInt("drain-limit", fc.DrainLimit, &cfg.DrainLimit)
	if err := s.setDuration("interval", fc.Interval, &cfg.Interval); err != nil {
		return err
	}
	s.setIntPtr("max-faults", fc.MaxFaults, &cfg.MaxFaults)
	s.setString("listen", fc.Listen, &cfg.Listen)
	s.setString("driver", fc.Driver, &cfg.Driver)
	s.setIntPtr("rotation", fc.Rotation, &cfg.Rotation)
	s.setString("spi-port", fc.SPIPort, &cfg.SPIPort)
	s.setInt("spi-speed", fc.SPISpeedHz, &cfg.SPISpeedHz)
	s.setString("reset-pin", fc.ResetPin, &cfg.ResetPin)
	s.setString("dc-pin", fc.DCPin, &cfg.DCPin)
	s.setString("backlight-pin", fc.BacklightPin, &cfg.BacklightPin)
	s.setString("fbdev", fc.FBDev, &cfg.FBDev)
	if fc.Banner != nil && !changed["banner"] {
		// An empty banner in the file disables it.
		cfg.Banner = *fc.Banner
	}
	s.setInt("grid-scale", fc.GridScale, &cfg.GridScale)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setBoolPtr("debug", fc.Debug, &cfg.Debug)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
