// Package imaging normalises uploaded item photos.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"

	"github.com/erazemk/consigna/internal/apperr"
)

// Defaults for item photos.
const (
	DefaultMaxDimension = 1024
	DefaultQuality      = 85
)

var accepted = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Photo is a processed, storable photo.
type Photo struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Processor downscales photos to fit MaxDimension and re-encodes them as JPEG.
// Zero fields take the package defaults.
type Processor struct {
	MaxDimension int
	Quality      int
}

// Process sniffs the uploaded bytes, rejecting anything but JPEG and PNG,
// and returns a JPEG no larger than MaxDimension on either side.
// Transparent areas are flattened onto white.
func (p Processor) Process(r io.Reader) (*Photo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}

	detected := http.DetectContentType(data)
	if !accepted[detected] {
		return nil, apperr.Newf(apperr.KindValidation, "unsupported photo format %s; only JPEG and PNG are accepted", detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "photo could not be decoded")
	}

	img = fit(img, p.maxDimension())

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality()}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	b := img.Bounds()
	return &Photo{Data: buf.Bytes(), MIME: "image/jpeg", Width: b.Dx(), Height: b.Dy()}, nil
}

func (p Processor) maxDimension() int {
	if p.MaxDimension > 0 {
		return p.MaxDimension
	}
	return DefaultMaxDimension
}

func (p Processor) quality() int {
	if p.Quality > 0 && p.Quality <= 100 {
		return p.Quality
	}
	return DefaultQuality
}

// fit scales img down so neither side exceeds maxDim, keeping the aspect
// ratio, and draws it over an opaque white canvas.
func fit(img image.Image, maxDim int) image.Image {
	src := img.Bounds()
	w, h := src.Dx(), src.Dy()

	if w > maxDim || h > maxDim {
		if w > h {
			h = max(1, h*maxDim/w)
			w = maxDim
		} else {
			w = max(1, w*maxDim/h)
			h = maxDim
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == src.Dx() && h == src.Dy() {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Over, nil)
	}
	return dst
}

func init() {
	image.RegisterFormat("jpeg", "\xff\xd8", jpeg.Decode, jpeg.DecodeConfig)
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
}
