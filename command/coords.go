package command

import (
	"encoding/json"
	"fmt"
	"image"

	"github.com/BeatGlow/drawbridge/pixel"
)

// MaxCoordinates limits the number of grid coordinates in a single JSON payload.
const MaxCoordinates = 256

// Grid maps coarse canvas cells onto the frame: every cell is Scale by Scale pixels.
type Grid struct {
	Bounds image.Rectangle
	Scale  int
}

// ParseCoordinates parses a JSON list of optional [row, col] pairs, as posted by the canvas
// page. Null entries are skipped.
func ParseCoordinates(data []byte) ([]image.Point, error) {
	var list []*[2]int
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	if len(list) > MaxCoordinates {
		return nil, &DecodeError{Err: fmt.Errorf("%w: %d coordinates, at most %d allowed", ErrMalformed, len(list), MaxCoordinates)}
	}

	cells := make([]image.Point, 0, len(list))
	for _, rc := range list {
		if rc == nil {
			continue
		}
		cells = append(cells, image.Point{X: rc[1], Y: rc[0]})
	}
	return cells, nil
}

// Commands expands grid cells into filled blocks, one horizontal Line per pixel row. A
// cell that does not fit the frame rejects the whole list.
func (g Grid) Commands(cells []image.Point, c pixel.CRGB16, dst []Command) ([]Command, error) {
	scale := g.Scale
	if scale < 1 {
		scale = 1
	}
	// Cells are checked in grid units before scaling so large values cannot wrap.
	limit := image.Rect(0, 0, g.Bounds.Max.X/scale, g.Bounds.Max.Y/scale)
	for i, cell := range cells {
		if !cell.In(limit) || !image.Rect(cell.X*scale, cell.Y*scale, (cell.X+1)*scale, (cell.Y+1)*scale).In(g.Bounds) {
			return nil, &DecodeError{Offset: i, Tag: byte(OpLine), Err: fmt.Errorf("%w: cell %s not in grid", ErrOutOfBounds, cell)}
		}
	}
	for _, cell := range cells {
		x0, y0 := cell.X*scale, cell.Y*scale
		for y := y0; y < y0+scale; y++ {
			dst = append(dst, Line(image.Pt(x0, y), image.Pt(x0+scale-1, y), c))
		}
	}
	return dst, nil
}
