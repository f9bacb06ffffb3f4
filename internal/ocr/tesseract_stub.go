//go:build !tesseract

package ocr

import (
	"errors"
	"image"
)

// ErrTesseractUnavailable is returned when the binary was built without the tesseract tag.
var ErrTesseractUnavailable = errors.New("tesseract backend not compiled in (build with -tags tesseract)")

// TesseractEngine is unavailable in this build.
type TesseractEngine struct{}

// NewTesseractEngine always fails in builds without the tesseract tag.
func NewTesseractEngine(_ []string) (*TesseractEngine, error) {
	return nil, ErrTesseractUnavailable
}

// Recognize implements Engine.
func (e *TesseractEngine) Recognize(_ *image.NRGBA) ([]Line, error) {
	return nil, ErrTesseractUnavailable
}

// Close implements Engine.
func (e *TesseractEngine) Close() error { return nil }
