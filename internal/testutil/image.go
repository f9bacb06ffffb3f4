package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

// LabelSize is the default size of a synthetic shipping label.
var LabelSize = ImageSize{400, 200}

// LabelConfig describes a synthetic label image.
type LabelConfig struct {
	Lines      []string
	Size       ImageSize
	Background color.Color
	Foreground color.Color
	FontFace   font.Face
	Margin     int
}

// DefaultLabelConfig returns a label with a tracking number field.
func DefaultLabelConfig() LabelConfig {
	return LabelConfig{
		Lines:      []string{"DHL Paket", "Sendungsnummer: 12345678901234"},
		Size:       LabelSize,
		Background: color.White,
		Foreground: color.Black,
		FontFace:   basicfont.Face7x13,
		Margin:     10,
	}
}

// GenerateLabelImage draws each configured line left aligned, top to bottom.
func GenerateLabelImage(cfg LabelConfig) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, cfg.Size.Width, cfg.Size.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{cfg.Background}, image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{cfg.Foreground},
		Face: cfg.FontFace,
	}
	lineHeight := cfg.FontFace.Metrics().Height.Ceil() * 2
	for i, line := range cfg.Lines {
		drawer.Dot = fixed.P(cfg.Margin, cfg.Margin+(i+1)*lineHeight)
		drawer.DrawString(line)
	}
	return img
}

// EncodePNG encodes img as PNG.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img), "Failed to encode PNG image")
	return buf.Bytes()
}

// EncodeJPEG encodes img as JPEG at quality 90.
func EncodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}), "Failed to encode JPEG image")
	return buf.Bytes()
}

// LabelPNG renders the given lines on a label and returns the PNG bytes.
func LabelPNG(t *testing.T, lines ...string) []byte {
	t.Helper()
	cfg := DefaultLabelConfig()
	if len(lines) > 0 {
		cfg.Lines = lines
	}
	return EncodePNG(t, GenerateLabelImage(cfg))
}
