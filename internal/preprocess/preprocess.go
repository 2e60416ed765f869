// Package preprocess turns an uploaded data URI into the float tensor the classifier expects.
package preprocess

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"unicode"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Brownie44l1/hairstyle-api/internal/model"
)

// DefaultSize is the square edge length the classifier was trained on.
const DefaultSize = 128

// MaxPixels is the largest width*height DecodeImage accepts. Headers are
// checked before any pixel buffer is allocated.
const MaxPixels = 178956970

var (
	ErrEmptyImage    = errors.New("image payload is empty")
	ErrImageTooLarge = errors.New("image exceeds the pixel limit")
)

// DecodeDataURI returns the bytes of a "data:image/...;base64,<data>" string.
// Everything up to the last comma is ignored, so bare base64 is accepted too.
func DecodeDataURI(payload string) ([]byte, error) {
	if idx := strings.LastIndexByte(payload, ','); idx >= 0 {
		payload = payload[idx+1:]
	}
	payload = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, payload)

	if payload == "" {
		return nil, ErrEmptyImage
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image data: %w", err)
	}
	return data, nil
}

// DecodeImage decodes any registered format: JPEG, PNG, GIF, WebP, BMP or TIFF.
func DecodeImage(data []byte) (image.Image, string, error) {
	return DecodeImageLimit(data, MaxPixels)
}

// DecodeImageLimit is DecodeImage with a caller-chosen pixel cap.
func DecodeImageLimit(data []byte, maxPixels int) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	if maxPixels <= 0 {
		maxPixels = MaxPixels
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("cannot identify image file: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("cannot identify image file: invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > int64(maxPixels) {
		return nil, "", fmt.Errorf("%w: %d pixels (%dx%d), limit is %d", ErrImageTooLarge, pixels, cfg.Width, cfg.Height, maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("cannot identify image file: %w", err)
	}
	return img, format, nil
}

// ToTensor converts img to a [1,size,size,3] (or [1,3,size,size]) tensor with values in [0,1].
// The image is stretched to a square; aspect ratio is not preserved.
func ToTensor(img image.Image, size int, layout model.Layout) ([]float32, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid target size %d", size)
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, errors.New("image has no pixels")
	}

	resized, ok := resize.Resize(uint(size), uint(size), toRGB(img), resize.Bicubic).(*image.RGBA)
	if !ok {
		return nil, errors.New("unexpected resize output")
	}

	plane := size * size
	tensor := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			off := resized.PixOffset(x+resized.Rect.Min.X, y+resized.Rect.Min.Y)
			r := float32(resized.Pix[off]) / 255.0
			g := float32(resized.Pix[off+1]) / 255.0
			b := float32(resized.Pix[off+2]) / 255.0

			pixelIndex := y*size + x
			switch layout {
			case model.LayoutNCHW:
				tensor[pixelIndex] = r
				tensor[plane+pixelIndex] = g
				tensor[2*plane+pixelIndex] = b
			default:
				tensor[3*pixelIndex] = r
				tensor[3*pixelIndex+1] = g
				tensor[3*pixelIndex+2] = b
			}
		}
	}
	return tensor, nil
}

// toRGB copies img into an opaque RGBA image. Alpha is discarded, not composited.
func toRGB(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b := straightRGB(img.At(x, y))
			off := dst.PixOffset(x-bounds.Min.X, y-bounds.Min.Y)
			dst.Pix[off] = r
			dst.Pix[off+1] = g
			dst.Pix[off+2] = b
			dst.Pix[off+3] = 0xff
		}
	}
	return dst
}

func straightRGB(c color.Color) (r, g, b uint8) {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return n.R, n.G, n.B
}
