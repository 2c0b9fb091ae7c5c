package framebuffer

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BeatGlow/drawbridge/pixel"
)

func TestNew(t *testing.T) {
	fb, err := New(128, 160)
	require.NoError(t, err)
	assert.Equal(t, 128, fb.Width())
	assert.Equal(t, 160, fb.Height())
	assert.Len(t, fb.Pix, 128*160*2)
	assert.Equal(t, pixel.Black, fb.CRGB16At(127, 159))

	for _, size := range []image.Point{{0, 10}, {10, 0}, {-1, 5}} {
		_, err := New(size.X, size.Y)
		assert.ErrorIs(t, err, ErrSize, "size %s", size)
	}
}

func TestSwap(t *testing.T) {
	fb, err := New(4, 4)
	require.NoError(t, err)

	p := image.Pt(2, 3)
	assert.True(t, fb.Swap(p, pixel.Red))
	assert.False(t, fb.Swap(p, pixel.Red))
	assert.Equal(t, pixel.Red, fb.CRGB16At(2, 3))
	assert.True(t, fb.Swap(p, pixel.Black))
}

func TestDirtyRect(t *testing.T) {
	bounds := image.Rect(0, 0, 128, 160)

	t.Run("empty", func(t *testing.T) {
		d := NewDirtyRect(bounds)
		assert.True(t, d.Empty())
		assert.Equal(t, image.Rectangle{}, d.Rect())
		assert.Equal(t, "empty", d.String())
	})

	t.Run("grows", func(t *testing.T) {
		d := NewDirtyRect(bounds)
		d.Add(image.Pt(3, 4))
		assert.Equal(t, image.Rect(3, 4, 4, 5), d.Rect())
		d.Add(image.Pt(1, 9))
		assert.Equal(t, image.Rect(1, 4, 4, 10), d.Rect())
		d.Add(image.Pt(2, 5))
		assert.Equal(t, image.Rect(1, 4, 4, 10), d.Rect(), "interior point must not change the box")
	})

	t.Run("clipped", func(t *testing.T) {
		d := NewDirtyRect(bounds)
		d.Union(image.Rect(-10, -10, 500, 5))
		assert.Equal(t, image.Rect(0, 0, 128, 5), d.Rect())
		d.Add(image.Pt(200, 200))
		assert.Equal(t, image.Rect(0, 0, 128, 5), d.Rect())
	})

	t.Run("full and reset", func(t *testing.T) {
		d := NewDirtyRect(bounds)
		d.Full()
		assert.Equal(t, bounds, d.Rect())
		d.Reset()
		assert.True(t, d.Empty())
	})
}
