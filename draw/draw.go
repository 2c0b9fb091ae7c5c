// Package draw rasterizes drawing commands into the frame buffer.
//
// All arithmetic is integer only, so the same command sequence always produces the same
// pixels. Commands are expected to be bounds checked by the decoder; a coordinate outside
// the frame is a programming error that panics in debug mode, and is clipped and logged
// otherwise.
package draw

import (
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"github.com/BeatGlow/drawbridge/command"
	"github.com/BeatGlow/drawbridge/framebuffer"
)

// Rasterizer applies commands to a frame buffer.
type Rasterizer struct {
	log   zerolog.Logger
	debug bool
}

// New returns a rasterizer logging clipped commands to log. In debug mode a command
// reaching outside the frame panics instead.
func New(log zerolog.Logger, debug bool) *Rasterizer {
	return &Rasterizer{log: log, debug: debug}
}

// Apply executes cmd on fb and grows dirty to cover every pixel whose value changed. The
// updated dirty rectangle is returned.
func (r *Rasterizer) Apply(fb *framebuffer.FrameBuffer, dirty *framebuffer.DirtyRect, cmd command.Command) image.Rectangle {
	if err := check(fb, cmd); err != nil {
		if r.debug {
			panic(err)
		}
		r.log.Warn().Err(err).Stringer("command", cmd).Msg("clipping command")
	}

	switch cmd.Op {
	case command.OpSetPixel:
		plot(fb, dirty, cmd)(cmd.A.X, cmd.A.Y)
	case command.OpLine:
		bresenham(cmd.A.X, cmd.A.Y, cmd.B.X, cmd.B.Y, plot(fb, dirty, cmd))
	case command.OpClear:
		fb.Fill(cmd.Color)
		dirty.Full()
	}
	return dirty.Rect()
}

// plot returns a pixel writer for cmd that skips pixels outside the frame.
func plot(fb *framebuffer.FrameBuffer, dirty *framebuffer.DirtyRect, cmd command.Command) func(x, y int) {
	return func(x, y int) {
		p := image.Point{X: x, Y: y}
		if !fb.Contains(p) {
			return
		}
		if fb.Swap(p, cmd.Color) {
			dirty.Add(p)
		}
	}
}

func check(fb *framebuffer.FrameBuffer, cmd command.Command) error {
	switch cmd.Op {
	case command.OpSetPixel:
		if !fb.Contains(cmd.A) {
			return fmt.Errorf("draw: %s outside of %s", cmd.A, fb.Bounds())
		}
	case command.OpLine:
		// Every pixel of a line lies within the box spanned by its end points.
		if !fb.Contains(cmd.A) || !fb.Contains(cmd.B) {
			return fmt.Errorf("draw: line %s-%s outside of %s", cmd.A, cmd.B, fb.Bounds())
		}
	case command.OpClear:
	default:
		return fmt.Errorf("draw: unsupported %s", cmd.Op)
	}
	return nil
}

// bresenham calls plot for every pixel on the line between (x0,y0) and (x1,y1), both end
// points included.
func bresenham(x0, y0, x1, y1 int, plot func(x, y int)) {
	// Because drawing p1 -> p2 is equivalent to draw p2 -> p1,
	// I sort the points so both directions produce the same pixels.
	if x0 > x1 || (x0 == x1 && y0 > y1) {
		x0, y0, x1, y1 = x1, y1, x0, y0
	}

	var (
		dx = x1 - x0
		dy = y1 - y0
		sy = 1
	)
	if dy < 0 {
		dy, sy = -dy, -1
	}

	e := dx - dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= -dy {
			e -= dy
			x0++
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}
