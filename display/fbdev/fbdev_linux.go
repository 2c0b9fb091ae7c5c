package fbdev

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"

	"github.com/BeatGlow/drawbridge/display"
)

const (
	// From <linux/fb.h>
	fbioGetVScreenInfo = 0x4600
	fbioGetFScreenInfo = 0x4602
)

// Open a Linux framebuffer device (fbdev) by name, typically /dev/fb[0..x].
func Open(name string) (*Device, error) {
	f, err := os.OpenFile(name, os.O_RDWR, os.ModeDevice)
	if err != nil {
		return nil, &display.HardwareError{Op: "open " + name, Err: err}
	}

	var (
		info       linuxFixScreenInfo
		screenInfo linuxVarScreenInfo
	)
	if err = ioctl(f.Fd(), fbioGetFScreenInfo, unsafe.Pointer(&info)); err != nil {
		_ = f.Close()
		return nil, &display.HardwareError{Op: "fix screen info", Err: err}
	}
	if err = ioctl(f.Fd(), fbioGetVScreenInfo, unsafe.Pointer(&screenInfo)); err != nil {
		_ = f.Close()
		return nil, &display.HardwareError{Op: "var screen info", Err: err}
	}

	format, err := linuxParseFormat(&screenInfo)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	// Map pixel buffer.
	mem, err := syscall.Mmap(int(f.Fd()), 0, int(info.SmemLen), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, &display.HardwareError{Op: "mmap " + name, Err: err}
	}

	d, err := newDevice(name, mem, int(screenInfo.Xres), int(screenInfo.Yres), int(info.LineLength), format)
	if err != nil {
		_ = syscall.Munmap(mem)
		_ = f.Close()
		return nil, err
	}
	d.close = func() error {
		if err := syscall.Munmap(mem); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	}
	return d, nil
}

func ioctl(fd uintptr, cmd uintptr, arg unsafe.Pointer) error {
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, fd, cmd, uintptr(arg)); errno != 0 {
		return &os.SyscallError{
			Syscall: "SYS_IOCTL",
			Err:     errno,
		}
	}
	return nil
}

type linuxFixScreenInfo struct {
	ID         [16]byte  // Identification string eg "TT Builtin"
	SmemStart  uintptr   // Start of frame buffer mem
	SmemLen    uint32    // Length of frame buffer mem
	Type       uint32    // FB_TYPE_
	TypeAux    uint32    // Interleave for interleaved Planes
	Visual     uint32    // FB_VISUAL_
	Xpanstep   uint16    // Zero if no hardware panning
	Ypanstep   uint16    // Zero if no hardware panning
	Ywrapstep  uint16    // Zero if no hardware ywrap
	LineLength uint32    // Length of a line in bytes
	MmioStart  uintptr   // Start of Memory Mapped I/O (physical address)
	MmioLen    uint32    // Length of Memory Mapped I/O
	Accel      uint32    // Type of acceleration available
	Reserved   [3]uint16 // Reserved for future compatibility
}

// linuxBitField for the color
type linuxBitField struct {
	Offset   uint32 // Beginning of bitfield
	Length   uint32 // Length of bitfield
	MsbRight uint32 // != 0 : Most significant bit is right
}

// linuxVarScreenInfo contains device independent changeable information about a frame buffer device and a specific video mode.
type linuxVarScreenInfo struct {
	Xres                    uint32
	Yres                    uint32
	XresVirtual             uint32
	YresVirtual             uint32
	Xoffset                 uint32
	Yoffset                 uint32
	BitsPerPixel            uint32
	Grayscale               uint32
	Red, Green, Blue, Alpha linuxBitField
	Nonstd                  uint32
	Activate                uint32
	Height                  uint32
	Width                   uint32
	AccelFlags              uint32
	Pixclock                uint32
	LeftMargin              uint32
	RightMargin             uint32
	UpperMargin             uint32
	LowerMargin             uint32
	HsyncLen                uint32
	VsyncLen                uint32
	Sync                    uint32
	Vmode                   uint32
	Rotate                  uint32
	Colorspace              uint32
	Reserved                [4]uint32
}

func linuxParseFormat(info *linuxVarScreenInfo) (Format, error) {
	switch {
	case info.BitsPerPixel == 16 &&
		info.Red.Offset == 11 && info.Red.Length == 5 &&
		info.Green.Offset == 5 && info.Green.Length == 6 &&
		info.Blue.Offset == 0 && info.Blue.Length == 5:
		return RGB565, nil

	case info.BitsPerPixel == 32 &&
		info.Red.Offset == 16 && info.Red.Length == 8 &&
		info.Green.Offset == 8 && info.Green.Length == 8 &&
		info.Blue.Offset == 0 && info.Blue.Length == 8:
		return XRGB8888, nil
	}
	return 0, fmt.Errorf("%w: %d bpp red %d/%d green %d/%d blue %d/%d", ErrFormat, info.BitsPerPixel,
		info.Red.Offset, info.Red.Length, info.Green.Offset, info.Green.Length, info.Blue.Offset, info.Blue.Length)
}
