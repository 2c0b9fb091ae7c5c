package display

import "time"

const (
	st7789DefaultWidth  = 240
	st7789DefaultHeight = 240
)

// Registers (from st7789.pdf).
const (
	st7789PORCTRL   = 0xB2 // Porch Setting
	st7789GCTRL     = 0xB7 // Gate Control
	st7789VCOMS     = 0xBB // VCOM Setting
	st7789LCMCTRL   = 0xC0 // LCM Control
	st7789VDVVRHEN  = 0xC2 // VDV and VRH Command Enable
	st7789VRHS      = 0xC3 // VRH Set
	st7789VDVSET    = 0xC4 // VDV Set
	st7789VCMOFSET  = 0xC5 // VCOM Offset Set
	st7789FRCTR2    = 0xC6 // Frame Rate Control in Normal Mode
	st7789PWCTRL1   = 0xD0 // Power Control 1
	st7789PVGAMCTRL = 0xE0 // Positive Voltage Gamma Control
	st7789NVGAMCTRL = 0xE1 // Negative Voltage Gamma Control
)

// ST7789 initializes a Sitronix ST7789 TFT controller, 240x240 by default.
func ST7789(c Conn, config *Config) (Panel, error) {
	if config == nil {
		config = new(Config)
	}

	d := &st77xx{name: "ST7789", c: c}
	if err := d.setup(config, st7789DefaultWidth, st7789DefaultHeight, 240, 320); err != nil {
		return nil, err
	}
	if err := d.reset(); err != nil {
		return nil, err
	}

	if err := d.command(st77xxSLPOUT); err != nil { // Sleep Out
		return nil, err
	}
	sleep(150 * time.Millisecond)

	if err := d.commands([][]byte{
		{st77xxCOLMOD, 0x05},        // Interface Pixel Format: 8-bit data bus for 16-bit/pixel (RGB 5-6-5-bit input)
		{st7789PORCTRL, 0x0C, 0x0C}, // Porch Setting: default
		{st7789GCTRL, 0x35},         // Gate Control: 13.26V / -10.43V (default)
		{st7789VCOMS, 0x1A},         // VCOM Setting: 0.75V (default is 0x20 / 0.9V)
		{st7789LCMCTRL, 0x2C},       // LCM Control: default
		{st7789VDVVRHEN, 0x01},      // VDV and VRH Command Enable: default
		{st7789VRHS, 0x0B},          // VRH Set: default (4.1V+( vcom+vcom offset+vdv))
		{st7789VDVSET, 0x20},        // VDV Set: default (0V)
		{st7789VCMOFSET, 0x20},      // VCOM Offset Set: default (0V)
		{st7789FRCTR2, 0x0F},        // Frame Rate Control in Normal Mode: 60Hz (default)
		{st7789PWCTRL1, 0xA4, 0xA1}, // Power Control 1: default
		{st77xxINVON},               // Display Inversion On
		{st7789PVGAMCTRL, 0x00, 0x19, 0x1E, 0x0A, 0x09, 0x15, 0x3D, 0x44, 0x51, 0x12, 0x03, 0x00, 0x3F, 0x3F}, // Positive Voltage Gamma Control: default
		{st7789NVGAMCTRL, 0x00, 0x18, 0x1E, 0x0A, 0x09, 0x25, 0x3F, 0x43, 0x52, 0x33, 0x03, 0x00, 0x3F, 0x3F}, // Negative Voltage Gamma Control: default
		{st77xxDISPON}, // Display On
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
