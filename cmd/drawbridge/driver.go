package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3"

	"github.com/BeatGlow/drawbridge/display"
	"github.com/BeatGlow/drawbridge/display/fbdev"
	"github.com/BeatGlow/drawbridge/internal/config"
)

// openDriver opens the configured display; the "none" driver yields a nil Driver.
func openDriver(cfg config.Config, log zerolog.Logger) (display.Driver, error) {
	switch cfg.Driver {
	case config.DriverNone:
		log.Warn().Msg("no display driver, frames are only available from /frame.png")
		return nil, nil

	case config.DriverFBDev:
		d, err := fbdev.Open(cfg.FBDev)
		if err != nil {
			return nil, err
		}
		log.Info().Stringer("display", d).Msg("using framebuffer")
		return d, nil

	case config.DriverST7735, config.DriverST7789:
		return openPanel(cfg, log)

	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
}

func openPanel(cfg config.Config, log zerolog.Logger) (display.Panel, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}

	rotation, err := display.ParseRotation(cfg.Rotation)
	if err != nil {
		return nil, err
	}
	reset, err := display.Pin(cfg.ResetPin)
	if err != nil {
		return nil, err
	}
	dc, err := display.Pin(cfg.DCPin)
	if err != nil {
		return nil, err
	}
	backlight, err := display.Pin(cfg.BacklightPin)
	if err != nil {
		return nil, err
	}

	conn, err := display.OpenSPI(&display.SPIConfig{
		Port:    cfg.SPIPort,
		Mode:    spi.Mode3,
		SpeedHz: int64(cfg.SPISpeedHz),
		Reset:   reset,
		DC:      dc,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Stringer("conn", conn).Msg("using connection")

	panelConfig := &display.Config{
		Width:    cfg.Width,
		Height:   cfg.Height,
		Rotation: rotation,
	}
	if backlight != nil {
		panelConfig.Backlight = backlight
	}

	var panel display.Panel
	if cfg.Driver == config.DriverST7789 {
		panel, err = display.ST7789(conn, panelConfig)
	} else {
		panel, err = display.ST7735(conn, panelConfig)
	}
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	log.Info().Stringer("display", panel).Msg("using driver")
	return panel, nil
}
