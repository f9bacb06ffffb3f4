//go:build tesseract

package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine recognizes words with a local Tesseract installation.
type TesseractEngine struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewTesseractEngine returns an engine using the given Tesseract languages.
func NewTesseractEngine(languages []string) (*TesseractEngine, error) {
	c := gosseract.NewClient()
	defer c.Close()
	if len(languages) > 0 {
		if err := c.SetLanguage(languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	return &TesseractEngine{languages: languages, clientFactory: gosseract.NewClient}, nil
}

// Recognize implements Engine. Each call uses its own client.
func (e *TesseractEngine) Recognize(img *image.NRGBA) ([]Line, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	c := e.clientFactory()
	defer c.Close()
	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("get bounding boxes: %w", err)
	}

	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		if b.Word == "" {
			continue
		}
		words = append(words, Word{
			Text:       b.Word,
			Rect:       RectFromImage(b.Box),
			Confidence: b.Confidence / 100.0,
		})
	}
	return GroupLines(words, DefaultLineOverlap), nil
}

// Close implements Engine.
func (e *TesseractEngine) Close() error { return nil }
