package display

import (
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"github.com/BeatGlow/drawbridge/framebuffer"
)

// Registers shared by the ST77xx family.
const (
	st77xxNOP     = 0x00
	st77xxSWRESET = 0x01
	st77xxSLPOUT  = 0x11
	st77xxNORON   = 0x13
	st77xxINVOFF  = 0x20
	st77xxINVON   = 0x21
	st77xxDISPOFF = 0x28
	st77xxDISPON  = 0x29
	st77xxCASET   = 0x2A
	st77xxRASET   = 0x2B
	st77xxRAMWR   = 0x2C
	st77xxMADCTL  = 0x36
	st77xxCOLMOD  = 0x3A
)

// Memory Data Access Control (MADCTL) bit fields.
const (
	_                           byte = 1 << iota // D0: reserved
	_                                            // D1: reserved
	st77xxDisplayDataLatchOrder                  // D2: MH
	st77xxRGBOrder                               // D3: RGB
	st77xxLineAddressOrder                       // D4: ML
	st77xxPageColumnOrder                        // D5: MV
	st77xxColumnAddressOrder                     // D6: MX
	st77xxPageAddressOrder                       // D7: MY
)

const backlightRate = 2 * physic.KiloHertz

// sleep is replaced in tests to skip the reset delays.
var sleep = time.Sleep

// st77xx implements the window protocol shared by the ST7735 and ST7789 controllers: a
// column range (CASET), a row range (RASET) and then RAM writes (RAMWR) streaming pixels
// row-major into that window.
type st77xx struct {
	name      string
	c         Conn
	bounds    image.Rectangle
	colOffset int
	rowOffset int
	rotation  Rotation
	backlight gpio.PinOut
	buf       []byte
}

func (d *st77xx) String() string {
	return fmt.Sprintf("%s %dx%d", d.name, d.bounds.Dx(), d.bounds.Dy())
}

func (d *st77xx) Bounds() image.Rectangle {
	return d.bounds
}

func (d *st77xx) command(cmnd byte, data ...byte) error {
	if err := d.c.Command(cmnd, data...); err != nil {
		return &HardwareError{Op: fmt.Sprintf("command %#02x", cmnd), Err: err}
	}
	return nil
}

func (d *st77xx) commands(commands [][]byte) (err error) {
	for _, command := range commands {
		if err = d.command(command[0], command[1:]...); err != nil {
			return
		}
	}
	return
}

// setup validates the geometry against the controller RAM and applies the defaults.
func (d *st77xx) setup(config *Config, defaultWidth, defaultHeight, maxWidth, maxHeight int) error {
	width, height := config.Width, config.Height
	if config.Rotation.Swapped() {
		defaultWidth, defaultHeight = defaultHeight, defaultWidth
		maxWidth, maxHeight = maxHeight, maxWidth
	}
	if width == 0 {
		width = defaultWidth
	}
	if height == 0 {
		height = defaultHeight
	}
	if width < 0 || height < 0 || width > maxWidth || height > maxHeight {
		return fmt.Errorf("%w: %s %dx%d, maximum size is %dx%d at %s rotation",
			ErrSize, d.name, width, height, maxWidth, maxHeight, config.Rotation)
	}

	d.bounds = image.Rect(0, 0, width, height)
	d.rotation = config.Rotation & 3
	d.colOffset = config.ColOffset
	d.rowOffset = config.RowOffset
	d.backlight = config.Backlight
	return nil
}

// reset toggles the hardware reset line.
func (d *st77xx) reset() error {
	for _, level := range []gpio.Level{gpio.High, gpio.Low, gpio.High} {
		if err := d.c.Reset(level); err != nil {
			return &HardwareError{Op: "reset", Err: err}
		}
		sleep(100 * time.Millisecond)
	}
	return nil
}

func (d *st77xx) Close() error {
	if err := d.Show(false); err != nil {
		_ = d.c.Close()
		return err
	}
	return d.c.Close()
}

func (d *st77xx) Show(show bool) error {
	var command = byte(st77xxDISPOFF)
	if show {
		command = byte(st77xxDISPON)
	}
	return d.command(command)
}

func (d *st77xx) SetContrast(level uint8) error {
	if d.backlight == nil {
		return nil
	}
	const step = gpio.DutyMax / 0xFF
	log.Debug().Msgf("%s: backlight duty cycle to %s at %s", d.name, step*gpio.Duty(level), backlightRate)
	if err := d.backlight.PWM(step*gpio.Duty(level), backlightRate); err != nil {
		return &HardwareError{Op: "backlight", Err: err}
	}
	return nil
}

func (d *st77xx) SetRotation(rotation Rotation) error {
	rotation &= 3

	var madctl byte
	switch rotation {
	case NoRotation:
		madctl = 0
	case Rotate90:
		madctl = st77xxColumnAddressOrder | st77xxPageColumnOrder
	case Rotate180:
		madctl = st77xxColumnAddressOrder | st77xxPageAddressOrder
	case Rotate270:
		madctl = st77xxPageAddressOrder | st77xxPageColumnOrder
	}

	if d.rotation.Swapped() != rotation.Swapped() && !d.bounds.Empty() {
		d.bounds = image.Rect(0, 0, d.bounds.Dy(), d.bounds.Dx())
	}
	d.rotation = rotation
	log.Debug().Msgf("%s: madctl %s -> %#02x", d.name, rotation, madctl)
	return d.command(st77xxMADCTL, madctl)
}

// setWindow selects the inclusive window (x0,y0)-(x1,y1) for the next RAM write.
func (d *st77xx) setWindow(x0, y0, x1, y1 int) error {
	if d.rotation.Swapped() {
		x0 += d.rowOffset
		y0 += d.colOffset
		x1 += d.rowOffset
		y1 += d.colOffset
	} else {
		x0 += d.colOffset
		y0 += d.rowOffset
		x1 += d.colOffset
		y1 += d.rowOffset
	}
	log.Trace().Msgf("%s: window rotation %s (%d,%d)-(%d,%d)", d.name, d.rotation, x0, y0, x1, y1)
	return d.commands([][]byte{
		{st77xxCASET, byte(x0 >> 8), byte(x0), byte(x1 >> 8), byte(x1)}, // Column address
		{st77xxRASET, byte(y0 >> 8), byte(y0), byte(y1 >> 8), byte(y1)}, // Row address
		{st77xxRAMWR}, // Write to RAM
	})
}

// Blit sets the window to r and streams the rows of r.
func (d *st77xx) Blit(fb *framebuffer.FrameBuffer, r image.Rectangle) error {
	if !fb.Bounds().Eq(d.bounds) {
		return fmt.Errorf("%w: frame %s, panel %s", ErrBounds, fb.Bounds(), d.bounds)
	}
	if r = r.Intersect(d.bounds); r.Empty() {
		return nil
	}

	if err := d.setWindow(r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1); err != nil {
		return err
	}

	d.buf = d.buf[:0]
	for y := r.Min.Y; y < r.Max.Y; y++ {
		d.buf = append(d.buf, fb.Row(y, r.Min.X, r.Max.X)...)
	}
	if err := d.c.Data(d.buf...); err != nil {
		return &HardwareError{Op: "write " + r.String(), Err: err}
	}
	return nil
}
