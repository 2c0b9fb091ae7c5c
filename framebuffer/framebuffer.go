package framebuffer

import (
	"errors"
	"fmt"
	"image"

	"github.com/BeatGlow/drawbridge/pixel"
)

// ErrSize is returned for a frame buffer without any addressable pixels.
var ErrSize = errors.New("framebuffer: width and height must be positive")

// FrameBuffer is a fixed size grid of native pixels.
type FrameBuffer struct {
	*pixel.CRGB16Image
}

// New allocates a width by height frame buffer, initially black.
func New(width, height int) (*FrameBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w (got %dx%d)", ErrSize, width, height)
	}
	return &FrameBuffer{
		CRGB16Image: pixel.NewCRGB16Image(width, height),
	}, nil
}

// Width of the frame in pixels.
func (fb *FrameBuffer) Width() int {
	return fb.Rect.Dx()
}

// Height of the frame in pixels.
func (fb *FrameBuffer) Height() int {
	return fb.Rect.Dy()
}

// Contains reports whether p is an addressable pixel.
func (fb *FrameBuffer) Contains(p image.Point) bool {
	return p.In(fb.Rect)
}

// Swap stores c at p and reports whether the stored value changed. The caller guarantees
// p is in bounds.
func (fb *FrameBuffer) Swap(p image.Point, c pixel.CRGB16) (changed bool) {
	if fb.CRGB16At(p.X, p.Y) == c {
		return false
	}
	fb.SetCRGB16(p.X, p.Y, c)
	return true
}

// String is used in log lines.
func (fb *FrameBuffer) String() string {
	return fmt.Sprintf("%dx%d RGB565", fb.Width(), fb.Height())
}
