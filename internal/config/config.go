// Package config loads the drawbridge configuration from defaults, a TOML file,
// DRAWBRIDGE_* environment variables and command line flags, in increasing order of
// precedence.
package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

// Drivers
const (
	DriverST7735 = "st7735"
	DriverST7789 = "st7789"
	DriverFBDev  = "fbdev"
	DriverNone   = "none"
)

// maxDimension is the largest frame edge addressable by the 16-bit wire coordinates.
const maxDimension = 1 << 16

// Config holds every drawbridge setting. Width and Height fix the frame, Capacity and
// DrainLimit size the command queue and the work done per frame, and the driver settings
// select and wire the display. Interval, MaxFaults and LogLevel can change while running,
// see Watch.
type Config struct {
	Width      int
	Height     int
	Capacity   int
	DrainLimit int
	Interval   time.Duration
	MaxFaults  int

	Listen string

	Driver       string
	Rotation     int
	SPIPort      string
	SPISpeedHz   int
	ResetPin     string
	DCPin        string
	BacklightPin string
	FBDev        string

	Banner    string
	GridScale int
	LogLevel  string

	// Debug panics on commands outside the frame and on render panics instead of
	// logging and skipping them.
	Debug bool
}

// DefaultConfig returns a Config with default values, matching a 128x160 ST7735 panel.
func DefaultConfig() Config {
	return Config{
		Width:      128,
		Height:     160,
		Capacity:   1024,
		Interval:   33 * time.Millisecond,
		MaxFaults:  30,
		Listen:     ":8080",
		Driver:     DriverST7735,
		SPISpeedHz: 40_000_000,
		ResetPin:   "GPIO25",
		DCPin:      "GPIO24",
		FBDev:      "/dev/fb1",
		Banner:     "drawbridge",
		GridScale:  2,
		LogLevel:   "info",
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 || c.Width > maxDimension || c.Height > maxDimension {
		return fmt.Errorf("invalid frame size %dx%d", c.Width, c.Height)
	}
	if c.Capacity < 1 {
		return fmt.Errorf("capacity must be at least 1")
	}
	if c.DrainLimit < 0 {
		return fmt.Errorf("drain limit must not be negative")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.MaxFaults < 0 {
		return fmt.Errorf("max faults must not be negative")
	}
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	switch c.Driver {
	case DriverST7735, DriverST7789:
		if c.DCPin == "" || c.ResetPin == "" {
			return fmt.Errorf("driver %s requires dc-pin and reset-pin", c.Driver)
		}
	case DriverFBDev:
		if c.FBDev == "" {
			return fmt.Errorf("driver %s requires a device", c.Driver)
		}
	case DriverNone:
	default:
		return fmt.Errorf("unknown driver %q", c.Driver)
	}
	switch c.Rotation {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("rotation must be 0, 90, 180 or 270, got %d", c.Rotation)
	}
	if c.GridScale < 1 {
		return fmt.Errorf("grid scale must be at least 1")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

// BindFlags registers a flag for every setting, using the current values as defaults.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.Width, "width", cfg.Width, "frame width in pixels")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "frame height in pixels")
	fs.IntVar(&cfg.Capacity, "capacity", cfg.Capacity, "command queue capacity")
	fs.IntVar(&cfg.DrainLimit, "drain-limit", cfg.DrainLimit, "commands applied per frame (0: queue capacity)")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "frame interval")
	fs.IntVar(&cfg.MaxFaults, "max-faults", cfg.MaxFaults, "display faults before giving up (0: never)")
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "HTTP listen address")
	fs.StringVar(&cfg.Driver, "driver", cfg.Driver, "display driver: st7735, st7789, fbdev or none")
	fs.IntVar(&cfg.Rotation, "rotation", cfg.Rotation, "display rotation in degrees")
	fs.StringVar(&cfg.SPIPort, "spi-port", cfg.SPIPort, "SPI port (default: first available)")
	fs.IntVar(&cfg.SPISpeedHz, "spi-speed", cfg.SPISpeedHz, "SPI clock in Hz")
	fs.StringVar(&cfg.ResetPin, "reset-pin", cfg.ResetPin, "reset GPIO pin")
	fs.StringVar(&cfg.DCPin, "dc-pin", cfg.DCPin, "data/command GPIO pin")
	fs.StringVar(&cfg.BacklightPin, "backlight-pin", cfg.BacklightPin, "backlight PWM GPIO pin (optional)")
	fs.StringVar(&cfg.FBDev, "fbdev", cfg.FBDev, "framebuffer device for the fbdev driver")
	fs.StringVar(&cfg.Banner, "banner", cfg.Banner, "text shown at start-up (empty: none)")
	fs.IntVar(&cfg.GridScale, "grid-scale", cfg.GridScale, "pixels per cell for coordinate lists")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "panic on rendering errors instead of skipping the command")
}

// Changed returns the set of flags set on the command line.
func Changed(fs *pflag.FlagSet) map[string]bool {
	changed := map[string]bool{}
	fs.Visit(func(f *pflag.Flag) { changed[f.Name] = true })
	return changed
}

// Load applies the file at path (when it exists) and the environment to cfg, skipping
// settings given as flags, and validates the result.
func Load(cfg *Config, path string, changed map[string]bool) error {
	if path != "" && FileExists(path) {
		fc, err := LoadFileConfig(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	}
	if err := ApplyEnvConfig(cfg, changed); err != nil {
		return err
	}
	return cfg.Validate()
}
