package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/trackscan/internal/mempool"
	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ImageConstraints bounds the size of images fed to the detector.
type ImageConstraints struct {
	MaxWidth  int
	MaxHeight int
	MinWidth  int
	MinHeight int
}

// DefaultImageConstraints returns the limits used for label scans.
func DefaultImageConstraints() ImageConstraints {
	return ImageConstraints{
		MaxWidth:  960,
		MaxHeight: 960,
		MinWidth:  32,
		MinHeight: 32,
	}
}

// ResizeImage scales img down to fit the constraints, preserving aspect
// ratio, and snaps both sides to multiples of 32. It never upscales beyond
// the minimum dimensions.
func ResizeImage(img image.Image, constraints ImageConstraints) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}

	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width < constraints.MinWidth || height < constraints.MinHeight {
		return nil, &ImageProcessingError{
			Operation: "resize",
			Err: fmt.Errorf("image dimensions %dx%d below minimum %dx%d",
				width, height, constraints.MinWidth, constraints.MinHeight),
		}
	}

	scale := math.Min(
		float64(constraints.MaxWidth)/float64(width),
		float64(constraints.MaxHeight)/float64(height),
	)
	if scale >= 1.0 {
		scale = 1.0
	}

	newWidth := max((int(float64(width)*scale)/32)*32, constraints.MinWidth)
	newHeight := max((int(float64(height)*scale)/32)*32, constraints.MinHeight)
	if newWidth == width && newHeight == height {
		return img, nil
	}
	return imaging.Resize(img, newWidth, newHeight, imaging.Lanczos), nil
}

// NormalizeImage converts img to an NCHW float32 buffer with values in [0,1].
// Alpha is ignored. The buffer comes from mempool; return it with
// mempool.PutFloat32 once the tensor has been consumed.
func NormalizeImage(img image.Image) ([]float32, int, int, error) {
	if img == nil {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("input image is nil")}
	}

	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	width, height := b.Dx(), b.Dy()
	plane := width * height
	tensor := mempool.GetFloat32(3 * plane)

	for y := range height {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := range width {
			i := y*width + x
			p := row[x*4:]
			tensor[i] = float32(p[0]) / 255.0
			tensor[plane+i] = float32(p[1]) / 255.0
			tensor[2*plane+i] = float32(p[2]) / 255.0
		}
	}
	return tensor, width, height, nil
}

// CropRect crops img to rect after clamping rect to the image bounds.
// The result always has its origin at (0,0).
func CropRect(img image.Image, rect image.Rectangle) (*image.NRGBA, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "crop", Err: errors.New("input image is nil")}
	}
	r := rect.Canon().Intersect(img.Bounds())
	if r.Empty() {
		return nil, &ImageProcessingError{
			Operation: "crop",
			Err:       fmt.Errorf("rectangle %v outside image bounds %v", rect, img.Bounds()),
		}
	}
	return imaging.Crop(img, r), nil
}

// PadRight extends img with black columns up to width. Images already at
// least that wide are returned unchanged.
func PadRight(img image.Image, width int) image.Image {
	b := img.Bounds()
	if b.Dx() >= width {
		return img
	}
	canvas := imaging.New(width, b.Dy(), color.Black)
	return imaging.Paste(canvas, img, image.Pt(0, 0))
}
