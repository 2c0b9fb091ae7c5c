package display

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// Conn errors.
var (
	ErrResetPin = errors.New("display: reset GPIO pin is invalid")
	ErrDCPin    = errors.New("display: data/command (DC) GPIO pin is invalid")
)

// Conn is the connection interface for communicating with hardware.
type Conn interface {
	String() string

	// Close the connection.
	Close() error

	// Reset sets the reset pin to the provided level.
	Reset(gpio.Level) error

	// Command sends a command byte with optional arguments.
	Command(byte, ...byte) error

	// Data sends data bytes.
	Data(...byte) error
}

// SPIConfig describes the SPI bus configuration.
type SPIConfig struct {
	// Port is the periph SPI port name, empty for the first registered port.
	Port string

	// Mode is the SPI clock mode, ST77xx controllers use mode 3.
	Mode spi.Mode

	// SpeedHz is the maximum bus clock.
	SpeedHz int64

	// DataLow inverts the level of the data/command pin.
	DataLow bool

	// BatchSize is the largest single transfer, longer writes are split.
	BatchSize int

	Reset gpio.PinOut
	DC    gpio.PinOut
}

// DefaultSPIConfig are the default configuration values.
var DefaultSPIConfig = SPIConfig{
	Mode:      spi.Mode3,
	SpeedHz:   40_000_000,
	BatchSize: 4096,
}

// DefaultResetPin and DefaultDCPin are the pins used by most Raspberry Pi TFT hats.
const (
	DefaultResetPin = "GPIO25"
	DefaultDCPin    = "GPIO24"
)

// Pin looks up a GPIO pin by name. An empty name yields nil.
func Pin(name string) (gpio.PinIO, error) {
	if name == "" {
		return nil, nil
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("display: unknown GPIO pin %q", name)
	}
	return p, nil
}

type spiConn struct {
	port      spi.PortCloser
	bus       spi.Conn
	reset     gpio.PinOut
	dc        gpio.PinOut
	dcLevel   gpio.Level
	dcSet     bool
	dataLow   bool
	batchSize int
}

// OpenSPI connects to a SPI port through the periph registry. host.Init must have been
// called before.
func OpenSPI(config *SPIConfig) (Conn, error) {
	if config == nil {
		config = new(SPIConfig)
		*config = DefaultSPIConfig
	}
	if config.Reset == nil || config.Reset == gpio.INVALID {
		return nil, ErrResetPin
	}
	if config.DC == nil || config.DC == gpio.INVALID {
		return nil, ErrDCPin
	}
	if config.SpeedHz <= 0 {
		config.SpeedHz = DefaultSPIConfig.SpeedHz
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultSPIConfig.BatchSize
	}

	port, err := spireg.Open(config.Port)
	if err != nil {
		return nil, &HardwareError{Op: "open " + config.Port, Err: err}
	}

	bus, err := port.Connect(physic.Frequency(config.SpeedHz)*physic.Hertz, config.Mode, 8)
	if err != nil {
		_ = port.Close()
		return nil, &HardwareError{Op: "connect " + port.String(), Err: err}
	}

	log.Debug().Str("port", port.String()).Int64("hz", config.SpeedHz).Msg("display: SPI connected")
	return &spiConn{
		port:      port,
		bus:       bus,
		reset:     config.Reset,
		dc:        config.DC,
		dataLow:   config.DataLow,
		batchSize: config.BatchSize,
	}, nil
}

func (c *spiConn) String() string {
	return fmt.Sprintf("SPI %s", c.bus)
}

func (c *spiConn) Close() error {
	return c.port.Close()
}

func (c *spiConn) Reset(level gpio.Level) error {
	return c.reset.Out(level)
}

func (c *spiConn) updateDC(level gpio.Level) error {
	if !c.dcSet || c.dcLevel != level {
		if err := c.dc.Out(level); err != nil {
			return err
		}
		c.dcLevel, c.dcSet = level, true
	}
	return nil
}

func (c *spiConn) Command(cmnd byte, data ...byte) (err error) {
	if err = c.updateDC(gpio.Level(c.dataLow)); err != nil {
		return
	}
	if err = c.bus.Tx([]byte{cmnd}, nil); err != nil {
		return
	}
	return c.Data(data...)
}

func (c *spiConn) Data(data ...byte) (err error) {
	if len(data) == 0 {
		return
	}
	if err = c.updateDC(gpio.Level(!c.dataLow)); err != nil {
		return
	}
	return c.writeChunked(data)
}

func (c *spiConn) writeChunked(data []byte) error {
	if len(data) > c.batchSize {
		log.Trace().Msgf("display: write %d bytes of data in %d chunks", len(data), (len(data)+c.batchSize-1)/c.batchSize)
	}
	for len(data) > 0 {
		n := min(len(data), c.batchSize)
		if err := c.bus.Tx(data[:n], nil); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}
