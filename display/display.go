// Package display contains drivers that move frame buffer pixels onto hardware.
//
// The scheduler only ever sees the Driver interface: a Blit of a rectangle of the frame
// buffer. Panels speaking the ST77xx window protocol are driven over SPI, the Linux
// framebuffer device lives in the fbdev subpackage and Mirror keeps a copy of the last
// flushed frame for remote preview.
package display

import (
	"errors"
	"fmt"
	"image"

	"periph.io/x/conn/v3/gpio"

	"github.com/BeatGlow/drawbridge/framebuffer"
)

// Errors
var (
	ErrBounds = errors.New("display: frame buffer does not match panel bounds")
	ErrSize   = errors.New("display: invalid panel size")
)

// Driver pushes pixels of a frame buffer to the physical display.
type Driver interface {
	// Blit writes the pixels of fb inside r to the display. Pixels outside r are not
	// touched and an empty r causes no hardware traffic.
	Blit(fb *framebuffer.FrameBuffer, r image.Rectangle) error
}

// Panel is a Driver for a physical panel with its own controls.
type Panel interface {
	Driver
	fmt.Stringer

	// Close the panel and the underlying connection.
	Close() error

	// Bounds is the addressable area of the panel.
	Bounds() image.Rectangle

	// Show toggles the display on or off.
	Show(bool) error

	// SetContrast adjusts the backlight level.
	SetContrast(level uint8) error

	// SetRotation adjusts the pixel rotation.
	SetRotation(Rotation) error
}

// HardwareError is returned when the transport to the display fails.
type HardwareError struct {
	Op  string
	Err error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("display: %s: %v", e.Op, e.Err)
}

func (e *HardwareError) Unwrap() error {
	return e.Err
}

// Rotation defines pixel rotation.
type Rotation uint8

// Supported rotations.
const (
	NoRotation Rotation = iota
	Rotate90            // Rotate 90° clock wise
	Rotate180           // Rotate 180°
	Rotate270           // Rotate 270° clock wise
)

// ParseRotation accepts a rotation in degrees.
func ParseRotation(degrees int) (Rotation, error) {
	switch degrees {
	case 0:
		return NoRotation, nil
	case 90:
		return Rotate90, nil
	case 180:
		return Rotate180, nil
	case 270:
		return Rotate270, nil
	default:
		return 0, fmt.Errorf("display: invalid rotation %d°", degrees)
	}
}

// Swapped reports whether the rotation exchanges width and height.
func (r Rotation) Swapped() bool {
	return r&1 == 1
}

func (r Rotation) String() string {
	switch r % 4 {
	case Rotate90:
		return "90°"
	case Rotate180:
		return "180°"
	case Rotate270:
		return "270°"
	default:
		return "0°"
	}
}

// Config is the panel configuration.
type Config struct {
	// Width of the display in pixels, zero selects the panel default.
	Width int

	// Height of the display in pixels, zero selects the panel default.
	Height int

	// Rotation of the display.
	Rotation Rotation

	// ColOffset and RowOffset shift the window for panels smaller than the controller RAM.
	ColOffset int
	RowOffset int

	// Backlight pin, driven with PWM when set.
	Backlight gpio.PinOut
}
