package command

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BeatGlow/drawbridge/pixel"
)

func TestDecode(t *testing.T) {
	d := NewDecoder(128, 160)

	tests := []struct {
		Name string
		Data []byte
		Want Command
	}{
		{"nop", []byte{0x00}, Command{}},
		{"set-pixel", []byte{0x01, 0x00, 0x7f, 0x00, 0x9f, 0x00, 0x1f}, SetPixel(image.Pt(127, 159), pixel.Blue)},
		{"line", []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x02, 0x00, 0x02, 0x07, 0xe0}, Line(image.Pt(0, 0), image.Pt(2, 2), pixel.Green)},
		{"clear", []byte{0x03, 0xf8, 0x00}, Clear(pixel.Red)},
	}
	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			cmd, err := d.Decode(test.Data)
			require.NoError(t, err)
			assert.Equal(t, test.Want, cmd)
			assert.Equal(t, test.Data, Encode(cmd), "encoding must reproduce the wire bytes")
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	d := NewDecoder(128, 160)

	tests := []struct {
		Name string
		Data []byte
		Want error
	}{
		{"empty", nil, ErrShortRecord},
		{"short set-pixel", []byte{0x01, 0x00, 0x01}, ErrShortRecord},
		{"short line", []byte{0x02, 0x00, 0x01, 0x00, 0x01, 0x00}, ErrShortRecord},
		{"unknown tag", []byte{0x7f, 0x00, 0x00}, ErrUnknownTag},
		{"trailing", []byte{0x03, 0x00, 0x00, 0x00}, ErrTrailingBytes},
		{"x out of bounds", Encode(SetPixel(image.Pt(128, 0), pixel.Red)), ErrOutOfBounds},
		{"y out of bounds", Encode(SetPixel(image.Pt(0, 160), pixel.Red)), ErrOutOfBounds},
		{"line end out of bounds", Encode(Line(image.Pt(0, 0), image.Pt(500, 10), pixel.Red)), ErrOutOfBounds},
		{"line start out of bounds", Encode(Line(image.Pt(0, 65535), image.Pt(5, 10), pixel.Red)), ErrOutOfBounds},
	}
	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			_, err := d.Decode(test.Data)
			require.Error(t, err)
			assert.ErrorIs(t, err, test.Want)

			var derr *DecodeError
			assert.ErrorAs(t, err, &derr)
		})
	}
}

func TestDecodeAll(t *testing.T) {
	d := NewDecoder(128, 160)

	var payload []byte
	payload = AppendEncode(payload, SetPixel(image.Pt(1, 1), pixel.Red))
	payload = AppendEncode(payload, Command{Op: Nop})
	payload = AppendEncode(payload, Clear(pixel.Black))

	cmds, err := d.DecodeAll(payload, nil)
	require.NoError(t, err)
	assert.Equal(t, []Command{SetPixel(image.Pt(1, 1), pixel.Red), Clear(pixel.Black)}, cmds)

	t.Run("stops at first error", func(t *testing.T) {
		bad := AppendEncode(payload, SetPixel(image.Pt(999, 1), pixel.Red))
		bad = AppendEncode(bad, Clear(pixel.White))

		cmds, err := d.DecodeAll(bad, nil)
		assert.ErrorIs(t, err, ErrOutOfBounds)
		assert.Len(t, cmds, 2)

		var derr *DecodeError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, len(payload), derr.Offset)
	})
}

func TestCommandBounds(t *testing.T) {
	assert.Equal(t, image.Rect(3, 4, 4, 5), SetPixel(image.Pt(3, 4), pixel.Red).Bounds())
	assert.Equal(t, image.Rect(2, 1, 6, 9), Line(image.Pt(5, 1), image.Pt(2, 8), pixel.Red).Bounds())
	assert.True(t, Clear(pixel.Red).Bounds().Empty())
}

func TestParseCoordinates(t *testing.T) {
	cells, err := ParseCoordinates([]byte(`[[1,2],null,[3,4],null]`))
	require.NoError(t, err)
	assert.Equal(t, []image.Point{{X: 2, Y: 1}, {X: 4, Y: 3}}, cells)

	_, err = ParseCoordinates([]byte(`{"x":1}`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestGridCommands(t *testing.T) {
	g := Grid{Bounds: image.Rect(0, 0, 160, 128), Scale: 2}

	cmds, err := g.Commands([]image.Point{{X: 3, Y: 1}}, pixel.Red, nil)
	require.NoError(t, err)
	assert.Equal(t, []Command{
		Line(image.Pt(6, 2), image.Pt(7, 2), pixel.Red),
		Line(image.Pt(6, 3), image.Pt(7, 3), pixel.Red),
	}, cmds)

	_, err = g.Commands([]image.Point{{X: 0, Y: 0}, {X: 80, Y: 0}}, pixel.Red, nil)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, err = g.Commands([]image.Point{{X: -1, Y: 0}}, pixel.Red, nil)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestGridCommandsOverflow(t *testing.T) {
	cells, err := ParseCoordinates([]byte("[[0, 4611686018427387904]]"))
	require.NoError(t, err)

	for _, scale := range []int{2, 3, 4, 8} {
		g := Grid{Bounds: image.Rect(0, 0, 128, 160), Scale: scale}
		cmds, err := g.Commands(cells, pixel.Red, nil)
		assert.ErrorIs(t, err, ErrOutOfBounds, "scale %d", scale)
		assert.Empty(t, cmds, "scale %d", scale)
	}

	g := Grid{Bounds: image.Rect(0, 0, 128, 160), Scale: 4}
	_, err = g.Commands([]image.Point{{X: 32, Y: 0}}, pixel.Red, nil)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	cmds, err := g.Commands([]image.Point{{X: 31, Y: 39}}, pixel.Red, nil)
	require.NoError(t, err)
	assert.Len(t, cmds, 4)
}
