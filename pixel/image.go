package pixel

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/draw"
)

// Image is a packed pixel image.
type Image interface {
	draw.Image

	// Clear the image.
	Clear()

	// Fill the image with a single color.
	Fill(color.Color)
}

// Buffer holds the pixel values and is a container that is used by the image formats in this package.
type Buffer struct {
	// Rect is the image bounding box.
	Rect image.Rectangle

	// Pix are the image pixels.
	Pix []byte

	// Stride is the Pix stride (in bytes) between vertically adjacent pixels.
	Stride int
}

func (p *Buffer) Bounds() image.Rectangle {
	return p.Rect
}

func (p *Buffer) Clear() {
	for i := range p.Pix {
		p.Pix[i] = 0x00
	}
}

func makeBuffer(w, h, stride, size int) Buffer {
	return Buffer{
		Rect:   image.Rect(0, 0, w, h),
		Pix:    make([]byte, size),
		Stride: stride,
	}
}

// CRGB16Image is a 16-bits per pixel 5-6-5-bit RGB image.
type CRGB16Image struct {
	Buffer
	Order binary.ByteOrder
}

// NewCRGB16Image allocates a w by h image in big endian byte order, which is the order
// used on the wire by ST77xx controllers.
func NewCRGB16Image(w, h int) *CRGB16Image {
	return &CRGB16Image{
		Buffer: makeBuffer(w, h, w*2, w*2*h),
		Order:  binary.BigEndian,
	}
}

func (p *CRGB16Image) ColorModel() color.Model {
	return CRGB16Model
}

// PixOffset returns the index of the first byte of the pixel at (x, y).
func (p *CRGB16Image) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*2
}

func (p *CRGB16Image) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return color.Transparent
	}
	return p.CRGB16At(x, y)
}

// CRGB16At returns the native color at (x, y); the caller guarantees (x, y) is in bounds.
func (p *CRGB16Image) CRGB16At(x, y int) CRGB16 {
	return CRGB16{p.Order.Uint16(p.Pix[p.PixOffset(x, y):])}
}

func (p *CRGB16Image) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return
	}
	p.SetCRGB16(x, y, crgb16Model(c).(CRGB16))
}

// SetCRGB16 stores a native color at (x, y); the caller guarantees (x, y) is in bounds.
func (p *CRGB16Image) SetCRGB16(x, y int, c CRGB16) {
	p.Order.PutUint16(p.Pix[p.PixOffset(x, y):], c.V)
}

// Row returns the packed bytes of row y between columns x0 (inclusive) and x1 (exclusive).
func (p *CRGB16Image) Row(y, x0, x1 int) []byte {
	i := p.PixOffset(x0, y)
	return p.Pix[i : i+(x1-x0)*2]
}

func (p *CRGB16Image) Fill(c color.Color) {
	value := crgb16Model(c).(CRGB16).V
	bytes := make([]byte, 2)
	p.Order.PutUint16(bytes, value)
	for i, l := 0, len(p.Pix); i < l; i += 2 {
		copy(p.Pix[i:], bytes)
	}
}

// Interface checks.
var (
	_ Image = (*CRGB16Image)(nil)
)
