package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/BeatGlow/drawbridge"
	"github.com/BeatGlow/drawbridge/command"
	"github.com/BeatGlow/drawbridge/internal/config"
	"github.com/BeatGlow/drawbridge/internal/logging"
	"github.com/BeatGlow/drawbridge/pixel"
	"github.com/BeatGlow/drawbridge/scheduler"
)

const longHelp = `Bridge a browser canvas to a small TFT panel.

Draw events arrive over WebSocket (GET /ws) or HTTP (POST /draw, /data, /clear) and are
rendered into a frame buffer that is flushed to the display about 30 times per second.
The last flushed frame can be fetched from GET /frame.png.`

var exampleUsage = strings.TrimSpace(`
  drawbridge --driver st7735 --listen :8080
  drawbridge --driver none --config $HOME/.drawbridge/config.toml
  drawbridge test-pattern --driver st7789 --rotation 90`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := config.DefaultConfig()
	var cfgPath string

	log, _ := logging.New(cfg.LogLevel, os.Stderr)
	zlog.Logger = log

	// load applies the config file and the environment on top of the flags.
	load := func(cmd *cobra.Command) (string, map[string]bool, error) {
		path := cfgPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		changed := config.Changed(cmd.Flags())
		if err := config.Load(&cfg, path, changed); err != nil {
			return "", nil, err
		}
		if err := logging.SetLevel(cfg.LogLevel); err != nil {
			return "", nil, err
		}
		return path, changed, nil
	}

	root := &cobra.Command{
		Use:           "drawbridge",
		Short:         "Bridge a browser canvas to a small TFT panel",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			base := cfg
			path, changed, err := load(cmd)
			if err != nil {
				return err
			}
			log.Info().Interface("config", cfg).Msg("configuration")

			drv, err := openDriver(cfg, log)
			if err != nil {
				return fmt.Errorf("open %s display: %w", cfg.Driver, err)
			}

			b, err := drawbridge.New(cfg, drv, log)
			if err != nil {
				return err
			}
			defer b.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if path != "" {
				go func() {
					err := config.Watch(ctx, path, log, func() {
						next := base
						if err := config.Load(&next, path, changed); err != nil {
							log.Warn().Err(err).Str("path", path).Msg("config reload failed")
							return
						}
						if err := b.Reload(next); err != nil {
							log.Warn().Err(err).Msg("config reload rejected")
						}
					})
					if err != nil {
						log.Debug().Err(err).Str("path", path).Msg("config not watched")
					}
				}()
			}

			if err = b.Run(ctx); errors.Is(err, scheduler.ErrAbort) {
				log.Error().Err(err).Msg("display failed, giving up")
			}
			return err
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.drawbridge/config.toml)")
	config.BindFlags(root.PersistentFlags(), &cfg)

	var hold time.Duration
	pattern := &cobra.Command{
		Use:   "test-pattern",
		Short: "Draw a border and diagonals through the pipeline and flush once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := load(cmd); err != nil {
				return err
			}
			drv, err := openDriver(cfg, log)
			if err != nil {
				return fmt.Errorf("open %s display: %w", cfg.Driver, err)
			}

			cfg.Banner = ""
			b, err := drawbridge.New(cfg, drv, log)
			if err != nil {
				return err
			}
			defer b.Close()

			n, err := b.Source().HandleBatch(testPattern(cfg.Width, cfg.Height))
			if err != nil {
				return err
			}
			if err = b.Scheduler().Tick(); err != nil {
				return err
			}
			log.Info().Int("commands", n).Str("driver", cfg.Driver).Msg("test pattern drawn")

			if hold > 0 {
				time.Sleep(hold)
			}
			return nil
		},
	}
	pattern.Flags().DurationVar(&hold, "hold", 0, "keep the process (and display) alive this long")
	root.AddCommand(pattern)

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("drawbridge")
		os.Exit(1)
	}
}

// testPattern encodes a box around the edge in the primary colors plus both diagonals.
func testPattern(width, height int) []byte {
	var (
		x1, y1 = width - 1, height - 1
		b      []byte
	)
	for _, cmd := range []command.Command{
		command.Clear(pixel.Black),
		command.Line(image.Pt(0, 0), image.Pt(x1, 0), pixel.Red),
		command.Line(image.Pt(x1, 0), image.Pt(x1, y1), pixel.Green),
		command.Line(image.Pt(x1, y1), image.Pt(0, y1), pixel.Blue),
		command.Line(image.Pt(0, y1), image.Pt(0, 0), pixel.White),
		command.Line(image.Pt(0, 0), image.Pt(x1, y1), pixel.Yellow),
		command.Line(image.Pt(x1, 0), image.Pt(0, y1), pixel.Cyan),
	} {
		b = command.AppendEncode(b, cmd)
	}
	return b
}
