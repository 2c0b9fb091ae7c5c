package draw

import (
	"image"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BeatGlow/drawbridge/command"
	"github.com/BeatGlow/drawbridge/framebuffer"
	"github.com/BeatGlow/drawbridge/pixel"
)

func newTestFrame(t *testing.T, w, h int) (*framebuffer.FrameBuffer, *framebuffer.DirtyRect) {
	t.Helper()
	fb, err := framebuffer.New(w, h)
	require.NoError(t, err)
	return fb, framebuffer.NewDirtyRect(fb.Bounds())
}

func TestApplyScenario(t *testing.T) {
	fb, dirty := newTestFrame(t, 128, 160)
	r := New(zerolog.Nop(), false)

	for _, cmd := range []command.Command{
		command.SetPixel(image.Pt(0, 0), pixel.Red),
		command.SetPixel(image.Pt(127, 159), pixel.Blue),
		command.Line(image.Pt(0, 0), image.Pt(2, 2), pixel.Green),
	} {
		r.Apply(fb, dirty, cmd)
	}

	assert.Equal(t, pixel.Green, fb.CRGB16At(0, 0))
	assert.Equal(t, pixel.Blue, fb.CRGB16At(127, 159))
	assert.Equal(t, pixel.Green, fb.CRGB16At(1, 1))
	assert.Equal(t, pixel.Green, fb.CRGB16At(2, 2))
	assert.Equal(t, image.Rect(0, 0, 128, 160), dirty.Rect())

	changed := 0
	for y := 0; y < 160; y++ {
		for x := 0; x < 128; x++ {
			if fb.CRGB16At(x, y) != pixel.Black {
				changed++
			}
		}
	}
	assert.Equal(t, 4, changed, "all other pixels must be unchanged")
}

func TestApplyDirtyRect(t *testing.T) {
	r := New(zerolog.Nop(), false)

	t.Run("set-pixel", func(t *testing.T) {
		fb, dirty := newTestFrame(t, 16, 16)
		assert.Equal(t, image.Rect(4, 5, 5, 6), r.Apply(fb, dirty, command.SetPixel(image.Pt(4, 5), pixel.Red)))
	})

	t.Run("unchanged pixel", func(t *testing.T) {
		fb, dirty := newTestFrame(t, 16, 16)
		r.Apply(fb, dirty, command.SetPixel(image.Pt(4, 5), pixel.Black))
		assert.True(t, dirty.Empty())
	})

	t.Run("line", func(t *testing.T) {
		fb, dirty := newTestFrame(t, 16, 16)
		assert.Equal(t, image.Rect(2, 3, 10, 6), r.Apply(fb, dirty, command.Line(image.Pt(9, 5), image.Pt(2, 3), pixel.Red)))
	})

	t.Run("clear", func(t *testing.T) {
		fb, dirty := newTestFrame(t, 16, 16)
		assert.Equal(t, fb.Bounds(), r.Apply(fb, dirty, command.Clear(pixel.Black)))
		assert.Equal(t, pixel.Black, fb.CRGB16At(15, 15))
		r.Apply(fb, dirty, command.Clear(pixel.White))
		assert.Equal(t, pixel.White, fb.CRGB16At(7, 9))
	})
}

func TestBresenham(t *testing.T) {
	tests := []struct {
		Name   string
		A, B   image.Point
		Pixels []image.Point
	}{
		{"point", image.Pt(3, 3), image.Pt(3, 3), []image.Point{{3, 3}}},
		{"horizontal", image.Pt(0, 1), image.Pt(3, 1), []image.Point{{0, 1}, {1, 1}, {2, 1}, {3, 1}}},
		{"vertical", image.Pt(2, 4), image.Pt(2, 1), []image.Point{{2, 1}, {2, 2}, {2, 3}, {2, 4}}},
		{"diagonal", image.Pt(0, 0), image.Pt(2, 2), []image.Point{{0, 0}, {1, 1}, {2, 2}}},
		{"anti-diagonal", image.Pt(0, 2), image.Pt(2, 0), []image.Point{{0, 2}, {1, 1}, {2, 0}}},
		{"shallow", image.Pt(0, 0), image.Pt(4, 1), []image.Point{{0, 0}, {1, 0}, {2, 0}, {3, 1}, {4, 1}}},
		{"steep", image.Pt(0, 0), image.Pt(1, 4), []image.Point{{0, 0}, {0, 1}, {0, 2}, {1, 3}, {1, 4}}},
	}
	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			var forward, backward []image.Point
			bresenham(test.A.X, test.A.Y, test.B.X, test.B.Y, func(x, y int) {
				forward = append(forward, image.Pt(x, y))
			})
			bresenham(test.B.X, test.B.Y, test.A.X, test.A.Y, func(x, y int) {
				backward = append(backward, image.Pt(x, y))
			})
			assert.ElementsMatch(t, test.Pixels, forward)
			assert.Equal(t, forward, backward, "direction must not matter")
		})
	}
}

func TestBresenhamConnected(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		a := image.Pt(rnd.Intn(128), rnd.Intn(160))
		b := image.Pt(rnd.Intn(128), rnd.Intn(160))

		var pixels []image.Point
		bresenham(a.X, a.Y, b.X, b.Y, func(x, y int) {
			pixels = append(pixels, image.Pt(x, y))
		})

		require.NotEmpty(t, pixels)
		assert.Contains(t, pixels, a)
		assert.Contains(t, pixels, b)
		for j := 1; j < len(pixels); j++ {
			d := pixels[j].Sub(pixels[j-1])
			if d.X < -1 || d.X > 1 || d.Y < -1 || d.Y > 1 || d.Eq(image.Point{}) {
				t.Fatalf("line %s-%s: gap between %s and %s", a, b, pixels[j-1], pixels[j])
			}
		}
	}
}

// Every changed pixel is inside the dirty rectangle, and the rectangle is the tightest box
// around the changed pixels.
func TestApplyDirtyRectSound(t *testing.T) {
	r := New(zerolog.Nop(), false)
	rnd := rand.New(rand.NewSource(2))
	colors := []pixel.CRGB16{pixel.Black, pixel.Red, pixel.Green, pixel.Blue}

	for round := 0; round < 50; round++ {
		fb, dirty := newTestFrame(t, 32, 24)
		before := append([]byte(nil), fb.Pix...)

		for i := 0; i < 1+rnd.Intn(8); i++ {
			c := colors[rnd.Intn(len(colors))]
			a := image.Pt(rnd.Intn(32), rnd.Intn(24))
			if rnd.Intn(2) == 0 {
				r.Apply(fb, dirty, command.SetPixel(a, c))
			} else {
				r.Apply(fb, dirty, command.Line(a, image.Pt(rnd.Intn(32), rnd.Intn(24)), c))
			}
		}

		var box image.Rectangle
		for y := 0; y < 24; y++ {
			for x := 0; x < 32; x++ {
				i := fb.PixOffset(x, y)
				if fb.Pix[i] != before[i] || fb.Pix[i+1] != before[i+1] {
					p := image.Pt(x, y)
					require.True(t, p.In(dirty.Rect()), "changed pixel %s outside dirty %s", p, dirty)
					box = box.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
				}
			}
		}
		// Pixels that were set and restored still count as touched, so the box of net
		// changes can only be smaller.
		assert.True(t, box.In(dirty.Rect()) || box.Empty())
		assert.True(t, dirty.Rect().In(fb.Bounds()) || dirty.Empty())
	}
}

func TestApplyOutOfBounds(t *testing.T) {
	r := New(zerolog.Nop(), false)

	t.Run("release clips", func(t *testing.T) {
		fb, dirty := newTestFrame(t, 8, 8)
		r.Apply(fb, dirty, command.Line(image.Pt(-4, 0), image.Pt(3, 0), pixel.Red))
		assert.Equal(t, image.Rect(0, 0, 4, 1), dirty.Rect())
		r.Apply(fb, dirty, command.SetPixel(image.Pt(9, 9), pixel.Red))
		assert.Equal(t, image.Rect(0, 0, 4, 1), dirty.Rect())
	})

	t.Run("debug panics", func(t *testing.T) {
		r := New(zerolog.Nop(), true)
		fb, dirty := newTestFrame(t, 8, 8)
		assert.Panics(t, func() {
			r.Apply(fb, dirty, command.SetPixel(image.Pt(8, 0), pixel.Red))
		})
		assert.True(t, dirty.Empty())
	})
}

func TestBanner(t *testing.T) {
	fb, dirty := newTestFrame(t, 128, 160)
	require.NoError(t, Banner(fb, dirty, "drawbridge", pixel.White, 0))
	require.False(t, dirty.Empty())
	assert.True(t, dirty.Rect().In(fb.Bounds()))

	lit := 0
	r := dirty.Rect()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if fb.CRGB16At(x, y) != pixel.Black {
				lit++
			}
		}
	}
	assert.NotZero(t, lit)

	empty := framebuffer.NewDirtyRect(fb.Bounds())
	require.NoError(t, Banner(fb, empty, "", pixel.White, 0))
	assert.True(t, empty.Empty())
}
