package config

import "os"

// ApplyEnvConfig applies configuration from environment variables (DRAWBRIDGE_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	for flag, dst := range map[string]*int{
		"width":       &cfg.Width,
		"height":      &cfg.Height,
		"capacity":    &cfg.Capacity,
		"drain-limit": &cfg.DrainLimit,
		"max-faults":  &cfg.MaxFaults,
		"rotation":    &cfg.Rotation,
		"spi-speed":   &cfg.SPISpeedHz,
		"grid-scale":  &cfg.GridScale,
	} {
		if err := s.setIntFromString(flag, os.Getenv(envName(flag)), dst); err != nil {
			return err
		}
	}

	if err := s.setDuration("interval", os.Getenv("DRAWBRIDGE_INTERVAL"), &cfg.Interval); err != nil {
		return err
	}
	if err := s.setBoolFromString("debug", os.Getenv("DRAWBRIDGE_DEBUG"), &cfg.Debug); err != nil {
		return err
	}

	s.setString("listen", os.Getenv("DRAWBRIDGE_LISTEN"), &cfg.Listen)
	s.setString("driver", os.Getenv("DRAWBRIDGE_DRIVER"), &cfg.Driver)
	s.setString("spi-port", os.Getenv("DRAWBRIDGE_SPI_PORT"), &cfg.SPIPort)
	s.setString("reset-pin", os.Getenv("DRAWBRIDGE_RESET_PIN"), &cfg.ResetPin)
	s.setString("dc-pin", os.Getenv("DRAWBRIDGE_DC_PIN"), &cfg.DCPin)
	s.setString("backlight-pin", os.Getenv("DRAWBRIDGE_BACKLIGHT_PIN"), &cfg.BacklightPin)
	s.setString("fbdev", os.Getenv("DRAWBRIDGE_FBDEV"), &cfg.FBDev)
	s.setString("log-level", os.Getenv("DRAWBRIDGE_LOG_LEVEL"), &cfg.LogLevel)
	if v, ok := os.LookupEnv("DRAWBRIDGE_BANNER"); ok && !changed["banner"] {
		cfg.Banner = v
	}

	return nil
}

// envName maps a flag name to its environment variable, e.g. drain-limit to
// DRAWBRIDGE_DRAIN_LIMIT.
func envName(flag string) string {
	b := []byte("DRAWBRIDGE_" + flag)
	for i, c := range b {
		switch {
		case c == '-':
			b[i] = '_'
		case 'a' <= c && c <= 'z':
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
