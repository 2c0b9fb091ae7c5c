package display

import (
	"image"
	"io"
	"sync"

	"golang.org/x/image/draw"

	"github.com/BeatGlow/drawbridge/framebuffer"
	"github.com/BeatGlow/drawbridge/pixel"
)

// MaxSnapshotScale limits the upscaling factor of Snapshot.
const MaxSnapshotScale = 8

// Mirror is a Driver that keeps a copy of every successfully flushed rectangle. It wraps
// the real driver, or stands alone when there is no hardware. Snapshot may be called from
// any goroutine.
type Mirror struct {
	inner Driver
	mu    sync.RWMutex
	img   *pixel.CRGB16Image
}

// NewMirror returns a mirror of a display with the given bounds, forwarding to inner when
// it is not nil.
func NewMirror(inner Driver, bounds image.Rectangle) *Mirror {
	return &Mirror{
		inner: inner,
		img:   pixel.NewCRGB16Image(bounds.Dx(), bounds.Dy()),
	}
}

// Blit forwards to the wrapped driver and copies r on success, so the mirror never shows
// pixels the panel did not receive.
func (m *Mirror) Blit(fb *framebuffer.FrameBuffer, r image.Rectangle) error {
	if m.inner != nil {
		if err := m.inner.Blit(fb, r); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	r = r.Intersect(m.img.Bounds()).Intersect(fb.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		copy(m.img.Row(y, r.Min.X, r.Max.X), fb.Row(y, r.Min.X, r.Max.X))
	}
	return nil
}

// Snapshot returns an RGBA copy of the mirrored frame, enlarged scale times with nearest
// neighbour sampling.
func (m *Mirror) Snapshot(scale int) *image.RGBA {
	scale = max(1, min(scale, MaxSnapshotScale))

	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, src.Dx()*scale, src.Dy()*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), m.img, src, draw.Src, nil)
	return dst
}

// Close closes the wrapped driver if it can be closed.
func (m *Mirror) Close() error {
	if c, ok := m.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
