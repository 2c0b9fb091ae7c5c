// Package source turns network draw events into commands on the bounded queue.
//
// A Source never touches the frame buffer and never waits for queue space: when the queue
// is full the newest command is dropped and the caller gets ErrBackpressure, so a slow
// display throttles clients instead of the other way around.
package source

import (
	"cmp"
	"errors"
	"fmt"
	"image"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/BeatGlow/drawbridge/command"
	"github.com/BeatGlow/drawbridge/pixel"
	"github.com/BeatGlow/drawbridge/queue"
	"github.com/BeatGlow/drawbridge/scheduler"
)

// ErrBackpressure is returned when a command was dropped because the queue is full. It
// also matches queue.ErrFull.
var ErrBackpressure = errors.New("source: backpressure")

// DefaultGridScale is the size in pixels of a cell posted to /data.
const DefaultGridScale = 2

// Stats are the source counters.
type Stats struct {
	Accepted     uint64 `json:"accepted"`
	Dropped      uint64 `json:"dropped"`
	DecodeErrors uint64 `json:"decode_errors"`
	Clients      int    `json:"clients"`
}

// Snapshotter provides the last flushed frame, see display.Mirror.
type Snapshotter interface {
	Snapshot(scale int) *image.RGBA
}

// Source decodes draw events and enqueues the resulting commands.
type Source struct {
	ch     *queue.Channel
	dec    *command.Decoder
	log    zerolog.Logger
	grid   command.Grid
	pen    pixel.CRGB16
	mirror Snapshotter
	render func() scheduler.Stats

	upgrader websocket.Upgrader
	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	closed   bool
	readers  sync.WaitGroup

	// Grid cells drawn since the last clear, served by GET /data.
	cellMu sync.Mutex
	cells  map[image.Point]struct{}

	accepted, dropped, decodeErrors atomic.Uint64
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger, the default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Source) {
		s.log = log
	}
}

// WithGridScale sets the cell size for coordinate lists.
func WithGridScale(scale int) Option {
	return func(s *Source) {
		if scale > 0 {
			s.grid.Scale = scale
		}
	}
}

// WithPen sets the color used for coordinate lists.
func WithPen(c pixel.CRGB16) Option {
	return func(s *Source) {
		s.pen = c
	}
}

// WithMirror enables GET /frame.png.
func WithMirror(m Snapshotter) Option {
	return func(s *Source) {
		s.mirror = m
	}
}

// WithRenderStats adds the scheduler counters to GET /stats.
func WithRenderStats(fn func() scheduler.Stats) Option {
	return func(s *Source) {
		s.render = fn
	}
}

// New returns a source feeding ch with commands decoded by dec.
func New(ch *queue.Channel, dec *command.Decoder, opts ...Option) *Source {
	s := &Source{
		ch:    ch,
		dec:   dec,
		log:   zerolog.Nop(),
		grid:  command.Grid{Bounds: dec.Bounds, Scale: DefaultGridScale},
		pen:   pixel.Red,
		conns: make(map[*websocket.Conn]struct{}),
		cells: make(map[image.Point]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// The canvas page may be served from anywhere.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle decodes a payload holding exactly one record and enqueues it. A Nop record is
// accepted without enqueueing anything. Decode failures return a *command.DecodeError.
func (s *Source) Handle(payload []byte) error {
	cmd, err := s.dec.Decode(payload)
	if err != nil {
		s.decodeErrors.Add(1)
		return err
	}
	if cmd.Op == command.Nop {
		return nil
	}
	return s.enqueue(cmd)
}

// HandleBatch decodes concatenated records and enqueues them in order, returning the number
// of commands enqueued. A decode error stops the batch since the record framing is lost.
// When the queue fills up the rest of the batch is dropped and ErrBackpressure returned.
func (s *Source) HandleBatch(payload []byte) (n int, err error) {
	for offset := 0; offset < len(payload); {
		cmd, size, err := s.dec.Next(payload[offset:])
		if err != nil {
			var derr *command.DecodeError
			if errors.As(err, &derr) {
				derr.Offset += offset
			}
			s.decodeErrors.Add(1)
			return n, err
		}
		offset += size
		if cmd.Op == command.Nop {
			continue
		}
		if err = s.enqueue(cmd); err != nil {
			s.dropped.Add(uint64(s.count(payload[offset:])))
			return n, err
		}
		n++
	}
	return n, nil
}

// Enqueue adds already decoded commands in order, with the same backpressure policy as
// HandleBatch.
func (s *Source) Enqueue(cmds ...command.Command) (n int, err error) {
	for i, cmd := range cmds {
		if err = s.enqueue(cmd); err != nil {
			s.dropped.Add(uint64(len(cmds) - i - 1))
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Source) enqueue(cmd command.Command) error {
	if err := s.ch.TryEnqueue(cmd); err != nil {
		s.dropped.Add(1)
		return fmt.Errorf("%w: %w", ErrBackpressure, err)
	}
	s.accepted.Add(1)
	if cmd.Op == command.OpClear {
		s.cellMu.Lock()
		clear(s.cells)
		s.cellMu.Unlock()
	}
	return nil
}

// count returns the number of commands in the well formed prefix of b.
func (s *Source) count(b []byte) (n int) {
	for offset := 0; offset < len(b); {
		cmd, size, err := s.dec.Next(b[offset:])
		if err != nil {
			return
		}
		if cmd.Op != command.Nop {
			n++
		}
		offset += size
	}
	return
}

// Coordinates expands a JSON list of [row, col] grid cells into filled blocks in the pen
// color and enqueues them. Any cell outside the frame rejects the whole list. Cells whose
// block was enqueued completely are remembered until the next Clear, see Cells.
func (s *Source) Coordinates(data []byte) (n int, err error) {
	cells, err := command.ParseCoordinates(data)
	if err == nil {
		var cmds []command.Command
		if cmds, err = s.grid.Commands(cells, s.pen, nil); err == nil {
			n, err = s.Enqueue(cmds...)
			s.mark(cells[:n/s.grid.Scale])
			return n, err
		}
	}
	s.decodeErrors.Add(1)
	return 0, err
}

// mark records drawn cells; once MaxCoordinates cells are known new ones are not recorded.
func (s *Source) mark(cells []image.Point) {
	s.cellMu.Lock()
	defer s.cellMu.Unlock()
	for _, cell := range cells {
		if _, ok := s.cells[cell]; !ok && len(s.cells) >= command.MaxCoordinates {
			continue
		}
		s.cells[cell] = struct{}{}
	}
}

// Cells returns the grid cells drawn since the last Clear in row-major order, at most
// command.MaxCoordinates of them. X is the column and Y the row.
func (s *Source) Cells() []image.Point {
	s.cellMu.Lock()
	cells := make([]image.Point, 0, len(s.cells))
	for cell := range s.cells {
		cells = append(cells, cell)
	}
	s.cellMu.Unlock()

	slices.SortFunc(cells, func(a, b image.Point) int {
		if c := cmp.Compare(a.Y, b.Y); c != 0 {
			return c
		}
		return cmp.Compare(a.X, b.X)
	})
	return cells
}

// Stats returns a snapshot of the counters.
func (s *Source) Stats() Stats {
	s.mu.Lock()
	clients := len(s.conns)
	s.mu.Unlock()
	return Stats{
		Accepted:     s.accepted.Load(),
		Dropped:      s.dropped.Load(),
		DecodeErrors: s.decodeErrors.Load(),
		Clients:      clients,
	}
}
