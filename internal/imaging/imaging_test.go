package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/consigna/internal/apperr"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(w, h, color.RGBA{255, 0, 0, 255}), &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestProcessJPEG(t *testing.T) {
	photo, err := Processor{}.Process(bytes.NewReader(encodeJPEG(t, 100, 80)))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", photo.MIME)
	assert.NotEmpty(t, photo.Data)
	assert.Equal(t, 100, photo.Width)
	assert.Equal(t, 80, photo.Height)
}

func TestProcessPNGBecomesJPEG(t *testing.T) {
	photo, err := Processor{}.Process(bytes.NewReader(encodePNG(t, solid(60, 60, color.RGBA{0, 0, 255, 255}))))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", photo.MIME)
	decode(t, photo.Data)
}

func TestProcessDownscaleKeepsAspect(t *testing.T) {
	photo, err := Processor{MaxDimension: 200}.Process(bytes.NewReader(encodeJPEG(t, 800, 400)))
	require.NoError(t, err)

	b := decode(t, photo.Data).Bounds()
	assert.Equal(t, 200, b.Dx())
	assert.Equal(t, 100, b.Dy())
}

func TestProcessDefaultMaxDimension(t *testing.T) {
	photo, err := Processor{}.Process(bytes.NewReader(encodeJPEG(t, 600, 2048)))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxDimension, photo.Height)
	assert.Equal(t, 300, photo.Width)
}

func TestProcessSmallImageNotUpscaled(t *testing.T) {
	photo, err := Processor{}.Process(bytes.NewReader(encodeJPEG(t, 50, 50)))
	require.NoError(t, err)

	b := decode(t, photo.Data).Bounds()
	assert.Equal(t, 50, b.Dx())
	assert.Equal(t, 50, b.Dy())
}

func TestProcessFlattensTransparency(t *testing.T) {
	photo, err := Processor{}.Process(bytes.NewReader(encodePNG(t, solid(20, 20, color.Transparent))))
	require.NoError(t, err)

	r, g, b, _ := decode(t, photo.Data).At(10, 10).RGBA()
	assert.Greater(t, r, uint32(0xf000))
	assert.Greater(t, g, uint32(0xf000))
	assert.Greater(t, b, uint32(0xf000))
}

func TestProcessRejectsOtherFormats(t *testing.T) {
	for name, data := range map[string][]byte{
		"text": []byte("not an image"),
		"gif":  []byte("GIF89a..."),
	} {
		_, err := Processor{}.Process(bytes.NewReader(data))
		assert.True(t, apperr.Is(err, apperr.KindValidation), "%s: %v", name, err)
	}
}
