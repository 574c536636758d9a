// Package codec turns content type identifiers into printable QR symbols and
// reads them back from captured page images.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"strconv"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/makiuchi-d/gozxing/qrcode/decoder"
	_ "golang.org/x/image/webp"
)

const (
	PayloadPrefix = "CONTENT:"

	DefaultWidth  = 300
	DefaultHeight = 300
	DefaultMargin = 1
)

var (
	ErrInvalidImage     = errors.New("invalid or corrupt image file")
	ErrSymbolNotFound   = errors.New("qr code not found on image, make sure the label is visible")
	ErrMalformedPayload = errors.New("invalid qr code, expected format 'CONTENT:{id}' or '{id}'")
)

// Codec renders symbols with the strongest error correction level and a
// one module quiet zone.
type Codec struct {
	width  int
	height int
}

func New(width, height int) *Codec {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Codec{width: width, height: height}
}

// Payload is the canonical symbol text for a content type.
func Payload(contentID uint) string {
	return PayloadPrefix + strconv.FormatUint(uint64(contentID), 10)
}

// ParsePayload accepts "CONTENT:<digits>" or bare digits.
func ParsePayload(text string) (uint, error) {
	raw := strings.TrimPrefix(text, PayloadPrefix)
	if raw == "" {
		return 0, fmt.Errorf("%w: %q", ErrMalformedPayload, text)
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrMalformedPayload, text)
		}
	}
	id, err := strconv.ParseUint(raw, 10, strconv.IntSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedPayload, text)
	}
	return uint(id), nil
}

func (c *Codec) Encode(contentID uint) ([]byte, error) {
	return c.EncodeText(Payload(contentID), c.width, c.height)
}

func (c *Codec) EncodeText(text string, width, height int) ([]byte, error) {
	hints := map[gozxing.EncodeHintType]interface{}{
		gozxing.EncodeHintType_ERROR_CORRECTION: decoder.ErrorCorrectionLevel_H,
		gozxing.EncodeHintType_MARGIN:           DefaultMargin,
	}
	matrix, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, width, height, hints)
	if err != nil {
		return nil, fmt.Errorf("failed to generate qr code: %w", err)
	}

	img := image.NewGray(image.Rect(0, 0, matrix.GetWidth(), matrix.GetHeight()))
	for y := 0; y < matrix.GetHeight(); y++ {
		for x := 0; x < matrix.GetWidth(); x++ {
			if matrix.Get(x, y) {
				img.SetGray(x, y, color.Gray{Y: 0})
			} else {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to write qr code png: %w", err)
	}
	return buf.Bytes(), nil
}

// LoadImage parses png, jpeg or webp bytes.
func LoadImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, nil
}

// Decode loads the image and extracts the content type id it carries,
// together with the raw symbol text.
func (c *Codec) Decode(data []byte) (uint, string, error) {
	img, err := LoadImage(data)
	if err != nil {
		return 0, "", err
	}
	return c.DecodeImage(img)
}

// DecodeImage makes a single detection attempt on a binarized copy of img.
func (c *Codec) DecodeImage(img image.Image) (uint, string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrSymbolNotFound, err)
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrSymbolNotFound, err)
	}

	text := result.GetText()
	id, err := ParsePayload(text)
	if err != nil {
		return 0, text, err
	}
	return id, text, nil
}
