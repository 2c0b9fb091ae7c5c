// Package scheduler runs the render loop: on every tick it drains a bounded batch of
// commands from the queue, rasterizes them and flushes the dirty rectangle to the display.
//
// The scheduler goroutine is the only owner of the frame buffer, the dirty rectangle and
// the display driver. A flush that fails keeps the dirty rectangle and is retried on the
// following ticks; from the second consecutive failure on, every failure is reported as a
// Fault.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	goerrors "github.com/go-errors/errors"
	"github.com/rs/zerolog"

	"github.com/BeatGlow/drawbridge/command"
	"github.com/BeatGlow/drawbridge/display"
	"github.com/BeatGlow/drawbridge/draw"
	"github.com/BeatGlow/drawbridge/framebuffer"
	"github.com/BeatGlow/drawbridge/queue"
)

// DefaultInterval is the frame cadence, about 30 frames per second.
const DefaultInterval = 33 * time.Millisecond

// faultThreshold is the number of consecutive failed flushes before a Fault is raised.
const faultThreshold = 2

// Errors
var (
	ErrAbort    = errors.New("scheduler: abort")
	ErrInterval = errors.New("scheduler: interval must be positive")
)

// State of the render loop.
type State int32

// States
const (
	Idle State = iota
	Draining
	Flushing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Draining:
		return "draining"
	case Flushing:
		return "flushing"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Fault reports a display that keeps failing.
type Fault struct {
	// Failures is the number of consecutive failed flushes.
	Failures int

	// Rect is the dirty rectangle that could not be flushed.
	Rect image.Rectangle

	// Err is the last driver error.
	Err error
}

func (f Fault) Error() string {
	return fmt.Sprintf("scheduler: display fault after %d failed flushes of %s: %v", f.Failures, f.Rect, f.Err)
}

func (f Fault) Unwrap() error {
	return f.Err
}

// Applier rasterizes a single command, see draw.Rasterizer.
type Applier interface {
	Apply(*framebuffer.FrameBuffer, *framebuffer.DirtyRect, command.Command) image.Rectangle
}

// Stats are the scheduler counters.
type Stats struct {
	Ticks    uint64 `json:"ticks"`
	Applied  uint64 `json:"applied"`
	Panics   uint64 `json:"panics"`
	Flushes  uint64 `json:"flushes"`
	Failures uint64 `json:"failures"`
	Faults   uint64 `json:"faults"`
}

// Scheduler is the frame scheduler.
type Scheduler struct {
	fb         *framebuffer.FrameBuffer
	dirty      *framebuffer.DirtyRect
	ch         *queue.Channel
	drv        display.Driver
	applier    Applier
	log        zerolog.Logger
	faults     chan<- Fault
	drainLimit int
	debug      bool
	interval   atomic.Int64
	reset      chan struct{}
	state      atomic.Int32

	// pending is set when the last flush failed and must be retried.
	pending  bool
	failures int
	cmds     []command.Command

	ticks, applied, panics, flushes, failed, faulted atomic.Uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler) error

// WithInterval sets the tick cadence.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) error {
		if d <= 0 {
			return ErrInterval
		}
		s.interval.Store(int64(d))
		return nil
	}
}

// WithDrainLimit bounds the number of commands applied per tick. Non-positive values
// select the channel capacity.
func WithDrainLimit(n int) Option {
	return func(s *Scheduler) error {
		if n > 0 {
			s.drainLimit = n
		}
		return nil
	}
}

// WithLogger sets the logger, the default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Scheduler) error {
		s.log = log
		return nil
	}
}

// WithFaults sets the channel receiving display faults. Sends never block; a fault is
// dropped when nobody is ready to receive it.
func WithFaults(faults chan<- Fault) Option {
	return func(s *Scheduler) error {
		s.faults = faults
		return nil
	}
}

// WithDebug lets panics raised while applying a command crash the process, and makes the
// default rasterizer panic on commands outside the frame.
func WithDebug(debug bool) Option {
	return func(s *Scheduler) error {
		s.debug = debug
		return nil
	}
}

// WithApplier replaces the rasterizer.
func WithApplier(a Applier) Option {
	return func(s *Scheduler) error {
		s.applier = a
		return nil
	}
}

// New returns a scheduler rendering commands from ch into fb and flushing them to drv.
func New(fb *framebuffer.FrameBuffer, ch *queue.Channel, drv display.Driver, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		fb:         fb,
		dirty:      framebuffer.NewDirtyRect(fb.Bounds()),
		ch:         ch,
		drv:        drv,
		log:        zerolog.Nop(),
		drainLimit: ch.Cap(),
		reset:      make(chan struct{}, 1),
	}
	s.interval.Store(int64(DefaultInterval))
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.applier == nil {
		s.applier = draw.New(s.log, s.debug)
	}
	s.cmds = make([]command.Command, 0, s.drainLimit)
	return s, nil
}

// State returns the current state, safe to call from any goroutine.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) setState(state State) {
	s.state.Store(int32(state))
}

// Interval returns the current tick cadence.
func (s *Scheduler) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// SetInterval changes the tick cadence of a running scheduler.
func (s *Scheduler) SetInterval(d time.Duration) error {
	if d <= 0 {
		return ErrInterval
	}
	if time.Duration(s.interval.Swap(int64(d))) == d {
		return nil
	}
	select {
	case s.reset <- struct{}{}:
	default:
	}
	return nil
}

// Stats returns a snapshot of the counters, safe to call from any goroutine.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Ticks:    s.ticks.Load(),
		Applied:  s.applied.Load(),
		Panics:   s.panics.Load(),
		Flushes:  s.flushes.Load(),
		Failures: s.failed.Load(),
		Faults:   s.faulted.Load(),
	}
}

// Paint runs fn against the frame buffer and dirty rectangle, for content drawn by the
// process itself such as a boot banner. It must not be called while Run is active.
func (s *Scheduler) Paint(fn func(*framebuffer.FrameBuffer, *framebuffer.DirtyRect) error) error {
	return fn(s.fb, s.dirty)
}

// Tick runs one Idle -> Draining -> Flushing -> Idle cycle. A pending failed flush is
// retried with the same dirty rectangle before anything new is drained. The returned error
// is the driver error of a failed flush.
func (s *Scheduler) Tick() error {
	s.ticks.Add(1)
	if !s.pending {
		s.drain(s.drainLimit)
		if s.dirty.Empty() {
			return nil
		}
	}
	return s.flush()
}

func (s *Scheduler) drain(limit int) {
	s.setState(Draining)
	defer s.setState(Idle)

	s.cmds = s.ch.DrainUpTo(limit, s.cmds[:0])
	for _, cmd := range s.cmds {
		s.apply(cmd)
	}
}

func (s *Scheduler) apply(cmd command.Command) {
	if !s.debug {
		defer func() {
			if r := recover(); r != nil {
				err := goerrors.Wrap(r, 2)
				s.panics.Add(1)
				s.log.Error().
					Err(err).
					Stringer("command", cmd).
					Str("stack", string(err.Stack())).
					Msg("recovered panic while applying command, skipped")
			}
		}()
	}
	s.applier.Apply(s.fb, s.dirty, cmd)
	s.applied.Add(1)
}

func (s *Scheduler) flush() error {
	s.setState(Flushing)
	defer s.setState(Idle)

	r := s.dirty.Rect()
	if err := s.drv.Blit(s.fb, r); err != nil {
		s.pending = true
		s.failures++
		s.failed.Add(1)
		s.log.Warn().Err(err).Stringer("rect", r).Int("failures", s.failures).Msg("flush failed, will retry")
		if s.failures >= faultThreshold {
			s.fault(Fault{Failures: s.failures, Rect: r, Err: err})
		}
		return err
	}

	if s.failures > 0 {
		s.log.Info().Int("failures", s.failures).Msg("display recovered")
	}
	s.dirty.Reset()
	s.pending = false
	s.failures = 0
	s.flushes.Add(1)
	return nil
}

func (s *Scheduler) fault(f Fault) {
	s.faulted.Add(1)
	if s.faults == nil {
		return
	}
	select {
	case s.faults <- f:
	default:
		s.log.Debug().Msg("fault receiver not ready, fault dropped")
	}
}

// Run ticks until ctx is done. When ctx is cancelled with ErrAbort as its cause (see
// context.WithCancelCause) Run returns immediately. Any other cancellation is a clean
// shutdown: everything still queued is applied and flushed once before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval())
	defer ticker.Stop()

	s.log.Debug().Dur("interval", s.Interval()).Int("drain_limit", s.drainLimit).Msg("scheduler running")
	for {
		select {
		case <-ctx.Done():
			return s.shutdown(ctx)
		case <-s.reset:
			ticker.Reset(s.Interval())
			s.log.Info().Dur("interval", s.Interval()).Msg("frame interval changed")
		case <-ticker.C:
			_ = s.Tick()
		}
	}
}

func (s *Scheduler) shutdown(ctx context.Context) error {
	if cause := context.Cause(ctx); errors.Is(cause, ErrAbort) {
		s.log.Warn().Err(cause).Int("pending", s.ch.Len()).Msg("scheduler aborted")
		return cause
	}

	s.drain(0)
	if s.dirty.Empty() {
		return nil
	}
	if err := s.flush(); err != nil {
		return fmt.Errorf("scheduler: final flush: %w", err)
	}
	s.log.Debug().Msg("scheduler stopped")
	return nil
}
