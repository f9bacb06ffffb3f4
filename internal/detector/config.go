package detector

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/trackscan/internal/models"
	"github.com/MeKo-Tech/trackscan/internal/onnx"
)

// Config holds the detector configuration.
type Config struct {
	ModelPath     string
	DbThresh      float32 // pixel threshold for the binary mask
	DbBoxThresh   float32 // minimum mean probability of a kept region
	MaxImageSize  int
	MinRegionArea int // minimum component size in map pixels
	NumThreads    int
	GPU           onnx.GPUConfig
}

// DefaultConfig returns the default detector configuration.
func DefaultConfig() Config {
	return Config{
		ModelPath:     models.GetDetectionModelPath("", ""),
		DbThresh:      0.3,
		DbBoxThresh:   0.5,
		MaxImageSize:  960,
		MinRegionArea: 10,
		GPU:           onnx.DefaultGPUConfig(),
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model path cannot be empty")
	}
	if c.DbThresh <= 0 || c.DbThresh >= 1 {
		return fmt.Errorf("db threshold must be in (0,1), got %v", c.DbThresh)
	}
	if c.DbBoxThresh < 0 || c.DbBoxThresh > 1 {
		return fmt.Errorf("db box threshold must be in [0,1], got %v", c.DbBoxThresh)
	}
	if c.MaxImageSize < 32 {
		return fmt.Errorf("max image size must be at least 32, got %d", c.MaxImageSize)
	}
	if c.MinRegionArea < 0 {
		return fmt.Errorf("min region area must be non-negative, got %d", c.MinRegionArea)
	}
	return nil
}
