package command

import (
	"encoding/binary"
	"fmt"
	"image"

	"github.com/BeatGlow/drawbridge/pixel"
)

// Decoder turns wire records into commands, rejecting any coordinate outside Bounds.
type Decoder struct {
	Bounds image.Rectangle
}

// NewDecoder returns a decoder for a width by height frame.
func NewDecoder(width, height int) *Decoder {
	return &Decoder{Bounds: image.Rect(0, 0, width, height)}
}

// Decode decodes a payload holding exactly one record. A Nop record decodes to a Command
// with Op Nop, which callers should discard.
func (d *Decoder) Decode(b []byte) (Command, error) {
	cmd, n, err := d.Next(b)
	if err != nil {
		return Command{}, err
	}
	if n != len(b) {
		return Command{}, &DecodeError{Offset: n, Tag: b[0], Err: fmt.Errorf("%w (%d extra)", ErrTrailingBytes, len(b)-n)}
	}
	return cmd, nil
}

// Next decodes the first record in b and returns the number of bytes it used.
func (d *Decoder) Next(b []byte) (cmd Command, n int, err error) {
	if len(b) == 0 {
		return Command{}, 0, &DecodeError{Err: ErrShortRecord}
	}

	op := Op(b[0])
	if n = op.Size(); n == 0 {
		return Command{}, 0, &DecodeError{Tag: b[0], Err: ErrUnknownTag}
	}
	if len(b) < n {
		return Command{}, 0, &DecodeError{Tag: b[0], Err: fmt.Errorf("%w (want %d bytes, got %d)", ErrShortRecord, n, len(b))}
	}

	cmd.Op = op
	switch op {
	case OpSetPixel:
		cmd.A = readPoint(b[1:])
		cmd.Color = readColor(b[5:])
		err = d.check(b[0], cmd.A)
	case OpLine:
		cmd.A = readPoint(b[1:])
		cmd.B = readPoint(b[5:])
		cmd.Color = readColor(b[9:])
		if err = d.check(b[0], cmd.A); err == nil {
			err = d.check(b[0], cmd.B)
		}
	case OpClear:
		cmd.Color = readColor(b[1:])
	}
	if err != nil {
		return Command{}, 0, err
	}
	return cmd, n, nil
}

// DecodeAll decodes a payload of concatenated records, appending them to dst. Nop records
// are skipped. Decoding stops at the first error, returning the commands decoded so far.
func (d *Decoder) DecodeAll(b []byte, dst []Command) ([]Command, error) {
	for offset := 0; offset < len(b); {
		cmd, n, err := d.Next(b[offset:])
		if err != nil {
			if derr, ok := err.(*DecodeError); ok {
				derr.Offset += offset
			}
			return dst, err
		}
		if cmd.Op != Nop {
			dst = append(dst, cmd)
		}
		offset += n
	}
	return dst, nil
}

func (d *Decoder) check(tag byte, p image.Point) error {
	if !p.In(d.Bounds) {
		return &DecodeError{Tag: tag, Err: fmt.Errorf("%w: %s not in %s", ErrOutOfBounds, p, d.Bounds)}
	}
	return nil
}

func readPoint(b []byte) image.Point {
	return image.Point{
		X: int(binary.BigEndian.Uint16(b)),
		Y: int(binary.BigEndian.Uint16(b[2:])),
	}
}

func readColor(b []byte) pixel.CRGB16 {
	return pixel.CRGB16{V: binary.BigEndian.Uint16(b)}
}

// AppendEncode appends the wire record for cmd to dst. Coordinates must fit in a uint16.
func AppendEncode(dst []byte, cmd Command) []byte {
	dst = append(dst, byte(cmd.Op))
	switch cmd.Op {
	case OpSetPixel:
		dst = appendPoint(dst, cmd.A)
		dst = binary.BigEndian.AppendUint16(dst, cmd.Color.V)
	case OpLine:
		dst = appendPoint(dst, cmd.A)
		dst = appendPoint(dst, cmd.B)
		dst = binary.BigEndian.AppendUint16(dst, cmd.Color.V)
	case OpClear:
		dst = binary.BigEndian.AppendUint16(dst, cmd.Color.V)
	}
	return dst
}

// Encode returns the wire record for cmd.
func Encode(cmd Command) []byte {
	return AppendEncode(make([]byte, 0, cmd.Op.Size()), cmd)
}

func appendPoint(dst []byte, p image.Point) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(p.X))
	return binary.BigEndian.AppendUint16(dst, uint16(p.Y))
}
