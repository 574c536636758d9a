package codec

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := New(0, 0)
	for _, id := range []uint{1, 7, 42, 1234, 987654321} {
		data, err := c.Encode(id)
		require.NoError(t, err)

		got, text, err := c.Decode(data)
		require.NoError(t, err, "id %d", id)
		assert.Equal(t, id, got)
		assert.Equal(t, Payload(id), text)
	}
}

func TestEncodeProducesConfiguredSize(t *testing.T) {
	data, err := New(0, 0).Encode(5)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, DefaultWidth, img.Bounds().Dx())
	assert.Equal(t, DefaultHeight, img.Bounds().Dy())

	data, err = New(400, 400).Encode(5)
	require.NoError(t, err)
	img, err = png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
}

func TestDecodeBareInteger(t *testing.T) {
	c := New(0, 0)
	data, err := c.EncodeText("77", DefaultWidth, DefaultHeight)
	require.NoError(t, err)

	id, text, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, uint(77), id)
	assert.Equal(t, "77", text)
}

func TestDecodeMalformedPayload(t *testing.T) {
	c := New(0, 0)
	data, err := c.EncodeText("hello world", DefaultWidth, DefaultHeight)
	require.NoError(t, err)

	_, text, err := c.Decode(data)
	assert.ErrorIs(t, err, ErrMalformedPayload)
	assert.Equal(t, "hello world", text)
}

func TestDecodeWithoutSymbol(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	_, _, err := New(0, 0).Decode(buf.Bytes())
	assert.ErrorIs(t, err, ErrSymbolNotFound)
}

func TestDecodeNotAnImage(t *testing.T) {
	_, _, err := New(0, 0).Decode([]byte("%PDF-1.4 not really an image"))
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestParsePayload(t *testing.T) {
	tests := []struct {
		in      string
		want    uint
		wantErr bool
	}{
		{in: "CONTENT:12", want: 12},
		{in: "12", want: 12},
		{in: "CONTENT:", wantErr: true},
		{in: "CONTENT:abc", wantErr: true},
		{in: "CONTENT:-4", wantErr: true},
		{in: "content:12", wantErr: true},
		{in: "12 ", wantErr: true},
		{in: "", wantErr: true},
		{in: "99999999999999999999999", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePayload(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedPayload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPayload(t *testing.T) {
	assert.Equal(t, "CONTENT:3", Payload(3))
}
