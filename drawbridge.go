// Package drawbridge bridges a browser canvas to a small TFT panel.
//
// Draw events arrive over HTTP and WebSocket, are decoded into commands on a bounded
// queue, and a frame scheduler rasterizes them into a frame buffer whose dirty rectangle
// is flushed to the display at a fixed cadence:
//
//	source -> queue -> scheduler -> draw -> display
//
// A Bridge owns all of these and runs them until its context is cancelled.
package drawbridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/BeatGlow/drawbridge/command"
	"github.com/BeatGlow/drawbridge/display"
	"github.com/BeatGlow/drawbridge/draw"
	"github.com/BeatGlow/drawbridge/framebuffer"
	"github.com/BeatGlow/drawbridge/internal/config"
	"github.com/BeatGlow/drawbridge/internal/logging"
	"github.com/BeatGlow/drawbridge/pixel"
	"github.com/BeatGlow/drawbridge/queue"
	"github.com/BeatGlow/drawbridge/scheduler"
	"github.com/BeatGlow/drawbridge/source"
)

const shutdownTimeout = 5 * time.Second

// Bridge wires the pipeline together.
type Bridge struct {
	log       zerolog.Logger
	fb        *framebuffer.FrameBuffer
	queue     *queue.Channel
	mirror    *display.Mirror
	scheduler *scheduler.Scheduler
	source    *source.Source
	faults    chan scheduler.Fault

	mu  sync.Mutex
	cfg config.Config
}

// New builds a bridge flushing to drv. A nil drv runs without hardware; the frame is
// then only visible through GET /frame.png.
func New(cfg config.Config, drv display.Driver, log zerolog.Logger) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fb, err := framebuffer.New(cfg.Width, cfg.Height)
	if err != nil {
		return nil, err
	}
	if p, ok := drv.(display.Panel); ok && !p.Bounds().Eq(fb.Bounds()) {
		return nil, fmt.Errorf("%w: %s panel, %s frame", display.ErrBounds, p.Bounds(), fb.Bounds())
	}

	b := &Bridge{
		log:    log,
		fb:     fb,
		queue:  queue.New(cfg.Capacity),
		mirror: display.NewMirror(drv, fb.Bounds()),
		faults: make(chan scheduler.Fault, 1),
		cfg:    cfg,
	}

	if b.scheduler, err = scheduler.New(fb, b.queue, b.mirror,
		scheduler.WithInterval(cfg.Interval),
		scheduler.WithDrainLimit(cfg.DrainLimit),
		scheduler.WithLogger(log.With().Str("component", "scheduler").Logger()),
		scheduler.WithFaults(b.faults),
		scheduler.WithDebug(cfg.Debug),
	); err != nil {
		return nil, err
	}

	b.source = source.New(b.queue, command.NewDecoder(cfg.Width, cfg.Height),
		source.WithLogger(log.With().Str("component", "source").Logger()),
		source.WithGridScale(cfg.GridScale),
		source.WithMirror(b.mirror),
		source.WithRenderStats(b.scheduler.Stats),
	)

	if cfg.Banner != "" {
		if err = b.scheduler.Paint(func(fb *framebuffer.FrameBuffer, dirty *framebuffer.DirtyRect) error {
			return draw.Banner(fb, dirty, cfg.Banner, pixel.White, 0)
		}); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Source is the network event source.
func (b *Bridge) Source() *source.Source {
	return b.source
}

// Scheduler is the frame scheduler.
func (b *Bridge) Scheduler() *scheduler.Scheduler {
	return b.scheduler
}

// Mirror holds the last flushed frame.
func (b *Bridge) Mirror() *display.Mirror {
	return b.mirror
}

// Handler is the HTTP interface of the source.
func (b *Bridge) Handler() http.Handler {
	return b.source.Handler()
}

// Run listens on the configured address and serves until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	b.mu.Lock()
	addr := b.cfg.Listen
	b.mu.Unlock()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return b.Serve(ctx, ln)
}

// Serve runs the scheduler and serves HTTP on ln until ctx is done, or until the display
// faulted more often than allowed. On a normal shutdown the HTTP side is stopped first, so
// every accepted command is applied and flushed before Serve returns. After a display
// fault, or when ctx was cancelled with a cause matching scheduler.ErrAbort, Serve returns
// an error matching scheduler.ErrAbort without flushing.
func (b *Bridge) Serve(ctx context.Context, ln net.Listener) error {
	// The scheduler outlives ctx until the network side has stopped enqueueing.
	schedCtx, stopScheduler := context.WithCancelCause(context.WithoutCancel(ctx))
	defer stopScheduler(nil)

	server := &http.Server{
		Handler:           b.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server.RegisterOnShutdown(func() { _ = b.source.Close() })

	schedErr := make(chan error, 1)
	go func() { schedErr <- b.scheduler.Run(schedCtx) }()

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(ln) }()

	b.log.Info().Stringer("addr", ln.Addr()).Stringer("frame", b.fb).Msg("drawbridge serving")

	var err, abort error
loop:
	for {
		select {
		case <-ctx.Done():
			if cause := context.Cause(ctx); errors.Is(cause, scheduler.ErrAbort) {
				abort = cause
			}
			break loop
		case f := <-b.faults:
			b.log.Error().Err(f.Err).Int("failures", f.Failures).Stringer("rect", f.Rect).Msg("display fault")
			if limit := b.maxFaults(); limit > 0 && f.Failures >= limit {
				abort = fmt.Errorf("%w: %w", scheduler.ErrAbort, f)
				break loop
			}
		case err = <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				err = nil
			}
			break loop
		}
	}

	if abort != nil {
		stopScheduler(abort)
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		b.log.Warn().Err(serr).Msg("http shutdown")
	}
	// Waits for WebSocket readers, which Shutdown does not track.
	_ = b.source.Close()

	stopScheduler(nil)
	if rerr := <-schedErr; rerr != nil {
		return rerr
	}
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	b.log.Info().Msg("drawbridge stopped")
	return nil
}

func (b *Bridge) maxFaults() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.MaxFaults
}

// Reload applies a new configuration to the running bridge. The frame interval, the log
// level and the fault limit take effect immediately; everything else requires a restart
// and is ignored with a warning.
func (b *Bridge) Reload(next config.Config) error {
	if err := next.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	prev := b.cfg

	if next.Interval != prev.Interval {
		if err := b.scheduler.SetInterval(next.Interval); err != nil {
			return err
		}
	}
	if next.LogLevel != prev.LogLevel {
		if err := logging.SetLevel(next.LogLevel); err != nil {
			return err
		}
		b.log.Info().Str("level", next.LogLevel).Msg("log level changed")
	}

	restart := next
	restart.Interval, restart.LogLevel, restart.MaxFaults = prev.Interval, prev.LogLevel, prev.MaxFaults
	if restart != prev {
		b.log.Warn().Msg("configuration changes other than interval, log level and max faults need a restart, ignored")
	}

	b.cfg = prev
	b.cfg.Interval, b.cfg.LogLevel, b.cfg.MaxFaults = next.Interval, next.LogLevel, next.MaxFaults
	return nil
}

// Close releases the display driver.
func (b *Bridge) Close() error {
	return b.mirror.Close()
}

var _ io.Closer = (*Bridge)(nil)
