package display

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BeatGlow/drawbridge/framebuffer"
	"github.com/BeatGlow/drawbridge/pixel"
)

type testDriver struct {
	err   error
	rects []image.Rectangle
}

func (d *testDriver) Blit(_ *framebuffer.FrameBuffer, r image.Rectangle) error {
	d.rects = append(d.rects, r)
	return d.err
}

func TestMirror(t *testing.T) {
	fb, err := framebuffer.New(4, 3)
	require.NoError(t, err)
	fb.SetCRGB16(0, 0, pixel.Red)
	fb.SetCRGB16(3, 2, pixel.White)

	inner := &testDriver{err: errors.New("spi")}
	m := NewMirror(inner, fb.Bounds())

	assert.Error(t, m.Blit(fb, image.Rect(0, 0, 1, 1)))
	assert.Equal(t, color.RGBA{A: 0xff}, m.Snapshot(1).RGBAAt(0, 0), "failed blit must not be mirrored")

	inner.err = nil
	require.NoError(t, m.Blit(fb, image.Rect(0, 0, 1, 1)))
	snap := m.Snapshot(1)
	assert.Equal(t, color.RGBA{R: 0xff, A: 0xff}, snap.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{A: 0xff}, snap.RGBAAt(3, 2), "pixel outside the blit rectangle")
	assert.Len(t, inner.rects, 2)
}

func TestMirrorSnapshotScale(t *testing.T) {
	fb, err := framebuffer.New(4, 3)
	require.NoError(t, err)
	fb.SetCRGB16(1, 1, pixel.Green)

	m := NewMirror(nil, fb.Bounds())
	require.NoError(t, m.Blit(fb, fb.Bounds()))

	snap := m.Snapshot(3)
	assert.Equal(t, image.Rect(0, 0, 12, 9), snap.Bounds())
	for y := 3; y < 6; y++ {
		for x := 3; x < 6; x++ {
			assert.Equal(t, color.RGBA{G: 0xff, A: 0xff}, snap.RGBAAt(x, y))
		}
	}
	assert.Equal(t, color.RGBA{A: 0xff}, snap.RGBAAt(2, 2))

	assert.Equal(t, image.Rect(0, 0, 4, 3), m.Snapshot(0).Bounds())
	assert.Equal(t, image.Rect(0, 0, 4*MaxSnapshotScale, 3*MaxSnapshotScale), m.Snapshot(100).Bounds())
}
