// Package command defines the drawing commands exchanged between the network side and the
// renderer, and their fixed binary wire format.
//
// Every record starts with a one byte tag, followed by big endian uint16 fields:
//
//	0x00 Nop       tag                                   1 byte
//	0x01 SetPixel  tag x y color                         7 bytes
//	0x02 Line      tag x0 y0 x1 y1 color                11 bytes
//	0x03 Clear     tag color                             3 bytes
//
// Colors are RGB 5-6-5. Browser and firmware must agree on this layout byte for byte.
package command

import (
	"fmt"
	"image"

	"github.com/BeatGlow/drawbridge/pixel"
)

// Op is the command tag.
type Op uint8

// Supported operations.
const (
	Nop Op = iota
	OpSetPixel
	OpLine
	OpClear
)

func (op Op) String() string {
	switch op {
	case Nop:
		return "nop"
	case OpSetPixel:
		return "set-pixel"
	case OpLine:
		return "line"
	case OpClear:
		return "clear"
	default:
		return fmt.Sprintf("op(%#02x)", uint8(op))
	}
}

// Size is the encoded record size of op, or 0 for unsupported tags.
func (op Op) Size() int {
	switch op {
	case Nop:
		return 1
	case OpSetPixel:
		return 7
	case OpLine:
		return 11
	case OpClear:
		return 3
	default:
		return 0
	}
}

// Command is a single drawing operation. It is a plain value: A is the pixel for SetPixel
// and the start of a Line, B is the end of a Line.
type Command struct {
	Op    Op
	A, B  image.Point
	Color pixel.CRGB16
}

// SetPixel sets the pixel at p to c.
func SetPixel(p image.Point, c pixel.CRGB16) Command {
	return Command{Op: OpSetPixel, A: p, Color: c}
}

// Line draws a line from a to b (both inclusive) in c.
func Line(a, b image.Point, c pixel.CRGB16) Command {
	return Command{Op: OpLine, A: a, B: b, Color: c}
}

// Clear fills the whole frame with c.
func Clear(c pixel.CRGB16) Command {
	return Command{Op: OpClear, Color: c}
}

// Bounds is the smallest rectangle containing every pixel the command touches. Clear has
// no bounds of its own and returns the empty rectangle.
func (cmd Command) Bounds() image.Rectangle {
	switch cmd.Op {
	case OpSetPixel:
		return image.Rectangle{Min: cmd.A, Max: cmd.A.Add(image.Pt(1, 1))}
	case OpLine:
		r := image.Rectangle{Min: cmd.A, Max: cmd.B}.Canon()
		r.Max = r.Max.Add(image.Pt(1, 1))
		return r
	default:
		return image.Rectangle{}
	}
}

func (cmd Command) String() string {
	switch cmd.Op {
	case OpSetPixel:
		return fmt.Sprintf("set-pixel %s %#04x", cmd.A, cmd.Color.V)
	case OpLine:
		return fmt.Sprintf("line %s-%s %#04x", cmd.A, cmd.B, cmd.Color.V)
	case OpClear:
		return fmt.Sprintf("clear %#04x", cmd.Color.V)
	default:
		return cmd.Op.String()
	}
}
