package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeRGB decodes an encoded image and returns it as opaque NRGBA pixels.
// Transparent areas are flattened onto white, which is how labels are printed.
func DecodeRGB(data []byte) (*image.NRGBA, string, error) {
	if len(data) == 0 {
		return nil, "", &DecodeError{Size: 0, Err: errors.New("empty buffer")}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", &DecodeError{Size: len(data), Err: err}
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, format, &DecodeError{
			Size: len(data),
			Err:  fmt.Errorf("invalid dimensions %dx%d", b.Dx(), b.Dy()),
		}
	}

	canvas := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0), format, nil
}
