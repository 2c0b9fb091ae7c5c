package display

import "time"

const (
	st7735DefaultWidth  = 128
	st7735DefaultHeight = 160
)

// Registers (from st7735.pdf).
const (
	st7735FRMCTR1 = 0xB1
	st7735FRMCTR2 = 0xB2
	st7735FRMCTR3 = 0xB3
	st7735INVCTR  = 0xB4
	st7735PWCTR1  = 0xC0
	st7735PWCTR2  = 0xC1
	st7735PWCTR3  = 0xC2
	st7735PWCTR4  = 0xC3
	st7735PWCTR5  = 0xC4
	st7735VMCTR1  = 0xC5
	st7735GMCTRP1 = 0xE0
	st7735GMCTRN1 = 0xE1
)

// ST7735 initializes a Sitronix ST7735 TFT controller, 128x160 by default.
func ST7735(c Conn, config *Config) (Panel, error) {
	if config == nil {
		config = new(Config)
	}

	d := &st77xx{name: "ST7735", c: c}
	if err := d.setup(config, st7735DefaultWidth, st7735DefaultHeight, 240, 320); err != nil {
		return nil, err
	}
	if err := d.reset(); err != nil {
		return nil, err
	}

	if err := d.command(st77xxSWRESET); err != nil {
		return nil, err
	}
	sleep(150 * time.Millisecond)
	if err := d.command(st77xxSLPOUT); err != nil { // Sleep Out
		return nil, err
	}
	sleep(150 * time.Millisecond)

	if err := d.commands([][]byte{
		{st7735FRMCTR1, 0x01, 0x2C, 0x2D},
		{st7735FRMCTR2, 0x01, 0x2C, 0x2D},
		{st7735FRMCTR3, 0x01, 0x2C, 0x2D, 0x01, 0x2C, 0x2D},
		{st7735INVCTR, 0x07},
		{st7735PWCTR1, 0xA2, 0x02, 0x84},
		{st7735PWCTR2, 0xC5},
		{st7735PWCTR3, 0x0A, 0x00},
		{st7735PWCTR4, 0x8A, 0x2A},
		{st7735PWCTR5, 0x8A, 0xEE},
		{st7735VMCTR1, 0x0E},
		{st77xxINVOFF},
		{st77xxCOLMOD, 0x05}, // 16-bits per pixel
		{st7735GMCTRP1, 0x02, 0x1C, 0x07, 0x12, 0x37, 0x32, 0x29, 0x2D, 0x29, 0x25, 0x2B, 0x39, 0x00, 0x01, 0x03, 0x10},
		{st7735GMCTRN1, 0x03, 0x1D, 0x07, 0x06, 0x2E, 0x2C, 0x29, 0x2D, 0x2E, 0x2E, 0x37, 0x3F, 0x00, 0x00, 0x02, 0x10},
		{st77xxNORON},
		{st77xxDISPON},
	}); err != nil {
		return nil, err
	}
	sleep(100 * time.Millisecond)

	if err := d.SetRotation(config.Rotation); err != nil {
		return nil, err
	}
	if err := d.SetContrast(0xFF); err != nil {
		return nil, err
	}
	return d, nil
}
