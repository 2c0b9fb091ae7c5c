package draw

import (
	"fmt"
	"image"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"

	"github.com/BeatGlow/drawbridge/framebuffer"
	"github.com/BeatGlow/drawbridge/pixel"
)

// DefaultBannerSize is the banner font size in points at 72 DPI.
const DefaultBannerSize = 14

// Banner renders text centred on fb in the Go Regular font and grows dirty to cover it. It
// is drawn by the renderer itself at start-up, it is not a drawing command.
func Banner(fb *framebuffer.FrameBuffer, dirty *framebuffer.DirtyRect, text string, fg pixel.CRGB16, size float64) error {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultBannerSize
	}

	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return fmt.Errorf("draw: banner font: %w", err)
	}
	face := truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	defer face.Close()

	bounds, advance := font.BoundString(face, text)
	height := bounds.Max.Y - bounds.Min.Y
	dot := fixed.Point26_6{
		X: (fixed.I(fb.Width()) - advance) / 2,
		Y: (fixed.I(fb.Height())-height)/2 - bounds.Min.Y,
	}

	d := &font.Drawer{
		Dst:  fb,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  dot,
	}
	d.DrawString(text)

	dirty.Union(image.Rectangle{
		Min: image.Pt((dot.X + bounds.Min.X).Floor(), (dot.Y + bounds.Min.Y).Floor()),
		Max: image.Pt((dot.X + bounds.Max.X).Ceil(), (dot.Y + bounds.Max.Y).Ceil()),
	})
	return nil
}
