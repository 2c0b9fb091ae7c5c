// Package fbdev drives a Linux framebuffer device (/dev/fbN), for panels handled by a
// kernel driver such as fbtft.
package fbdev

import (
	"errors"
	"fmt"
	"image"

	"github.com/BeatGlow/drawbridge/display"
	"github.com/BeatGlow/drawbridge/framebuffer"
	"github.com/BeatGlow/drawbridge/pixel"
)

// Errors
var (
	ErrNotSupported = errors.New("fbdev: not supported")
	ErrFormat       = errors.New("fbdev: unsupported pixel format")
)

// Format is the memory layout of one device pixel.
type Format int

// Supported formats, both little endian in device memory.
const (
	RGB565   Format = iota // 16 bits per pixel
	XRGB8888               // 32 bits per pixel
)

func (f Format) String() string {
	switch f {
	case RGB565:
		return "RGB565"
	case XRGB8888:
		return "XRGB8888"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// BytesPerPixel in device memory.
func (f Format) BytesPerPixel() int {
	if f == XRGB8888 {
		return 4
	}
	return 2
}

// Device is a mapped framebuffer.
type Device struct {
	name   string
	mem    []byte
	rect   image.Rectangle
	stride int
	format Format
	close  func() error
}

var _ display.Driver = (*Device)(nil)

func newDevice(name string, mem []byte, width, height, stride int, format Format) (*Device, error) {
	if width <= 0 || height <= 0 || stride < width*format.BytesPerPixel() || len(mem) < stride*height {
		return nil, fmt.Errorf("fbdev: %s: invalid geometry %dx%d stride %d for %d bytes", name, width, height, stride, len(mem))
	}
	return &Device{
		name:   name,
		mem:    mem,
		rect:   image.Rect(0, 0, width, height),
		stride: stride,
		format: format,
	}, nil
}

func (d *Device) String() string {
	return fmt.Sprintf("fbdev %s %dx%d %s", d.name, d.rect.Dx(), d.rect.Dy(), d.format)
}

// Bounds of the visible screen.
func (d *Device) Bounds() image.Rectangle {
	return d.rect
}

// Blit converts the pixels of fb inside r to the device format. Only the part of r that
// is visible on both the frame buffer and the screen is written.
func (d *Device) Blit(fb *framebuffer.FrameBuffer, r image.Rectangle) error {
	r = r.Intersect(d.rect).Intersect(fb.Bounds())
	if r.Empty() {
		return nil
	}

	bpp := d.format.BytesPerPixel()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		offset := y*d.stride + r.Min.X*bpp
		row := d.mem[offset : offset+r.Dx()*bpp]
		for x := r.Min.X; x < r.Max.X; x++ {
			encode(row[(x-r.Min.X)*bpp:], fb.CRGB16At(x, y), d.format)
		}
	}
	return nil
}

// Close unmaps the device memory.
func (d *Device) Close() error {
	if d.close == nil {
		return nil
	}
	if err := d.close(); err != nil {
		return &display.HardwareError{Op: "close " + d.name, Err: err}
	}
	return nil
}

func encode(dst []byte, c pixel.CRGB16, format Format) {
	switch format {
	case RGB565:
		dst[0] = byte(c.V)
		dst[1] = byte(c.V >> 8)
	case XRGB8888:
		r, g, b, _ := c.RGBA()
		dst[0] = byte(b >> 8)
		dst[1] = byte(g >> 8)
		dst[2] = byte(r >> 8)
		dst[3] = 0xff
	}
}
