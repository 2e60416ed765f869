package preprocess

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/Brownie44l1/hairstyle-api/internal/model"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func uniformImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestDecodeDataURI(t *testing.T) {
	raw := []byte("not really an image")
	encoded := base64.StdEncoding.EncodeToString(raw)

	cases := map[string]string{
		"data uri":      "data:image/png;base64," + encoded,
		"bare base64":   encoded,
		"wrapped lines": "data:image/png;base64," + encoded[:8] + "\n" + encoded[8:],
	}
	for name, payload := range cases {
		got, err := DecodeDataURI(payload)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
		if !bytes.Equal(got, raw) {
			t.Fatalf("%s: unexpected bytes %q", name, got)
		}
	}
}

func TestDecodeDataURIRejectsMalformed(t *testing.T) {
	for _, payload := range []string{"", "data:image/png;base64,", "data:image/png;base64,@@@@", "abc"} {
		if _, err := DecodeDataURI(payload); err == nil {
			t.Fatalf("expected error for %q", payload)
		}
	}
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeImage([]byte("definitely not pixels")); err == nil {
		t.Fatal("expected decode error")
	}
	if _, _, err := DecodeImage(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

// pngHeader returns a PNG holding only an IHDR chunk, so it claims any size
// while carrying no pixel data.
func pngHeader(width, height uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], width)
	binary.BigEndian.PutUint32(ihdr[4:8], height)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 0 // grayscale

	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDecodeImageRejectsOversizedHeader(t *testing.T) {
	_, _, err := DecodeImage(pngHeader(60000, 60000))
	if !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}

	_, _, err = DecodeImage(pngHeader(20000, 20000))
	if !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge for 400M pixels, got %v", err)
	}
}

func TestDecodeImageLimit(t *testing.T) {
	data := encodePNG(t, uniformImage(40, 10, color.NRGBA{A: 255}))

	if _, _, err := DecodeImageLimit(data, 399); !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}
	if _, _, err := DecodeImageLimit(data, 400); err != nil {
		t.Fatalf("expected image at the limit to decode, got %v", err)
	}
	if _, _, err := DecodeImageLimit(data, 0); err != nil {
		t.Fatalf("expected default limit to apply, got %v", err)
	}
}

func TestToTensorNormalizesAndStretches(t *testing.T) {
	data := encodePNG(t, uniformImage(40, 10, color.NRGBA{R: 255, G: 51, B: 0, A: 255}))
	img, format, err := DecodeImage(data)
	if err != nil {
		t.Fatalf("expected png to decode, got %v", err)
	}
	if format != "png" {
		t.Fatalf("unexpected format %s", format)
	}

	tensor, err := ToTensor(img, DefaultSize, model.LayoutNHWC)
	if err != nil {
		t.Fatalf("expected tensor, got %v", err)
	}
	if len(tensor) != DefaultSize*DefaultSize*3 {
		t.Fatalf("unexpected tensor length %d", len(tensor))
	}
	for i, v := range tensor {
		if v < 0 || v > 1 {
			t.Fatalf("value %d out of range: %f", i, v)
		}
	}
	assertClose(t, tensor[0], 1)
	assertClose(t, tensor[1], 0.2)
	assertClose(t, tensor[2], 0)
}

func TestToTensorDropsAlphaWithoutCompositing(t *testing.T) {
	img := uniformImage(8, 8, color.NRGBA{R: 102, G: 153, B: 204, A: 128})

	tensor, err := ToTensor(img, 4, model.LayoutNHWC)
	if err != nil {
		t.Fatalf("expected tensor, got %v", err)
	}
	assertClose(t, tensor[0], 0.4)
	assertClose(t, tensor[1], 0.6)
	assertClose(t, tensor[2], 0.8)
}

func TestToTensorLayouts(t *testing.T) {
	square := uniformImage(2, 2, color.NRGBA{R: 255, A: 255})
	square.SetNRGBA(1, 0, color.NRGBA{B: 255, A: 255})

	nhwc, err := ToTensor(square, 2, model.LayoutNHWC)
	if err != nil {
		t.Fatalf("expected tensor, got %v", err)
	}
	// pixel (1,0) is blue: channels 3..5
	assertClose(t, nhwc[3], 0)
	assertClose(t, nhwc[5], 1)

	nchw, err := ToTensor(square, 2, model.LayoutNCHW)
	if err != nil {
		t.Fatalf("expected tensor, got %v", err)
	}
	// red plane first, then green, then blue
	assertClose(t, nchw[0], 1)
	assertClose(t, nchw[1], 0)
	assertClose(t, nchw[2*4+1], 1)
}

func TestToTensorRejectsBadSize(t *testing.T) {
	if _, err := ToTensor(uniformImage(2, 2, color.NRGBA{A: 255}), 0, model.LayoutNHWC); err == nil {
		t.Fatal("expected error for zero size")
	}
}

func assertClose(t *testing.T, got float32, want float64) {
	t.Helper()
	if math.Abs(float64(got)-want) > 0.01 {
		t.Fatalf("expected %f, got %f", want, got)
	}
}
