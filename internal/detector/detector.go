// Package detector finds text regions in an image with a DB-style
// segmentation model.
package detector

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/trackscan/internal/mempool"
	"github.com/MeKo-Tech/trackscan/internal/onnx"
	"github.com/MeKo-Tech/trackscan/internal/utils"
)

// Runner executes the detection model.
type Runner interface {
	Run(in onnx.Tensor) (onnx.Tensor, error)
	Close() error
}

// Detector performs text detection. Detect is safe for concurrent use.
type Detector struct {
	config      Config
	runner      Runner
	constraints utils.ImageConstraints
}

// NewDetector loads the detection model described by config.
func NewDetector(config Config) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	slog.Debug("Initializing detector",
		"model_path", config.ModelPath,
		"gpu_enabled", config.GPU.UseGPU,
		"max_image_size", config.MaxImageSize)

	session, err := onnx.NewSession(config.ModelPath, onnx.SessionConfig{
		NumThreads: config.NumThreads,
		GPU:        config.GPU,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load detection model: %w", err)
	}
	return NewWithRunner(config, session)
}

// NewWithRunner builds a detector around an already loaded model.
func NewWithRunner(config Config, runner Runner) (*Detector, error) {
	if runner == nil {
		return nil, errors.New("detector runner cannot be nil")
	}
	if config.ModelPath == "" {
		config.ModelPath = "(in-memory)"
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	constraints := utils.DefaultImageConstraints()
	constraints.MaxWidth = config.MaxImageSize
	constraints.MaxHeight = config.MaxImageSize
	return &Detector{config: config, runner: runner, constraints: constraints}, nil
}

// Config returns the detector configuration.
func (d *Detector) Config() Config { return d.config }

// Detect returns the text regions of img in img's own coordinates.
func (d *Detector) Detect(img image.Image) ([]Region, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	start := time.Now()
	b := img.Bounds()

	resized, err := utils.ResizeImage(img, d.constraints)
	if err != nil {
		return nil, err
	}
	data, w, h, err := utils.NormalizeImage(resized)
	if err != nil {
		return nil, err
	}
	defer mempool.PutFloat32(data)
	input, err := onnx.NewImageTensor(data, 3, h, w)
	if err != nil {
		return nil, err
	}

	out, err := d.runner.Run(input)
	if err != nil {
		return nil, fmt.Errorf("detection inference failed: %w", err)
	}
	mapH, mapW, err := mapSize(out.Shape)
	if err != nil {
		return nil, err
	}

	regions := extractRegions(out.Data, mapW, mapH, b.Dx(), b.Dy(), d.config)
	for i := range regions {
		regions[i].Box = regions[i].Box.Add(b.Min)
	}

	slog.Debug("Detection complete",
		"regions", len(regions),
		"input_size", fmt.Sprintf("%dx%d", w, h),
		"duration_ms", time.Since(start).Milliseconds())
	return regions, nil
}

// Close releases the model session.
func (d *Detector) Close() error {
	return d.runner.Close()
}

// mapSize reads H and W from a [1,1,H,W], [1,H,W] or [H,W] output shape.
func mapSize(shape []int64) (int, int, error) {
	if len(shape) < 2 {
		return 0, 0, fmt.Errorf("unexpected detection output shape %v", shape)
	}
	h, w := int(shape[len(shape)-2]), int(shape[len(shape)-1])
	if h <= 0 || w <= 0 {
		return 0, 0, fmt.Errorf("unexpected detection output shape %v", shape)
	}
	return h, w, nil
}
