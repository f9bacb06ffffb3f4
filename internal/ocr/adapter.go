// Package ocr turns encoded label images into recognized text lines.
//
// The Adapter owns decoding and error classification; the actual recognition
// is delegated to an Engine (ONNX models by default, Tesseract when built
// with the "tesseract" tag).
package ocr

import (
	"errors"
	"image"
	"log/slog"
)

// Engine recognizes text lines in decoded pixels.
// Implementations must be safe for concurrent use after construction.
type Engine interface {
	Recognize(img *image.NRGBA) ([]Line, error)
	Close() error
}

// Adapter converts raw image buffers into recognized lines.
type Adapter struct {
	engine Engine
}

// NewAdapter wraps an initialized engine.
func NewAdapter(engine Engine) (*Adapter, error) {
	if engine == nil {
		return nil, errors.New("recognition engine is nil")
	}
	return &Adapter{engine: engine}, nil
}

// Recognize decodes data and returns the engine's lines in reading order.
// It fails with *DecodeError or *RecognitionError.
func (a *Adapter) Recognize(data []byte) ([]Line, error) {
	img, format, err := DecodeRGB(data)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	slog.Debug("Decoded image", "format", format, "width", b.Dx(), "height", b.Dy())

	lines, err := a.engine.Recognize(img)
	if err != nil {
		return nil, &RecognitionError{Width: b.Dx(), Height: b.Dy(), Err: err}
	}
	return lines, nil
}

// Engine returns the wrapped engine.
func (a *Adapter) Engine() Engine {
	return a.engine
}

// Close releases the engine.
func (a *Adapter) Close() error {
	if a.engine == nil {
		return nil
	}
	return a.engine.Close()
}
