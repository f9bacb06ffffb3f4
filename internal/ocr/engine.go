package ocr

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/MeKo-Tech/trackscan/internal/detector"
	"github.com/MeKo-Tech/trackscan/internal/recognizer"
)

// Backend names accepted by NewEngine.
const (
	BackendONNX      = "onnx"
	BackendTesseract = "tesseract"
)

// EngineConfig selects and configures a recognition backend.
type EngineConfig struct {
	Backend            string
	Detector           detector.Config
	Recognizer         recognizer.Config
	LineOverlap        float64
	TesseractLanguages []string
}

// DefaultEngineConfig returns the ONNX backend with default models.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Backend:            BackendONNX,
		Detector:           detector.DefaultConfig(),
		Recognizer:         recognizer.DefaultConfig(),
		LineOverlap:        DefaultLineOverlap,
		TesseractLanguages: []string{"deu", "eng"},
	}
}

// NewEngine builds the backend named by cfg.Backend. Any error is fatal for
// the caller: a process without an engine cannot extract anything.
func NewEngine(cfg EngineConfig) (Engine, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendONNX:
		e, err := NewONNXEngine(cfg)
		if err != nil {
			return nil, err
		}
		return e, nil
	case BackendTesseract:
		e, err := NewTesseractEngine(cfg.TesseractLanguages)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown engine backend %q", cfg.Backend)
	}
}

// ONNXEngine detects word boxes, reads each box, and groups words into lines.
type ONNXEngine struct {
	det     *detector.Detector
	rec     *recognizer.Recognizer
	overlap float64
}

// NewONNXEngine loads the detection and recognition models.
func NewONNXEngine(cfg EngineConfig) (*ONNXEngine, error) {
	det, err := detector.NewDetector(cfg.Detector)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize detector: %w", err)
	}
	rec, err := recognizer.NewRecognizer(cfg.Recognizer)
	if err != nil {
		_ = det.Close()
		return nil, fmt.Errorf("failed to initialize recognizer: %w", err)
	}
	slog.Info("Recognition engine ready",
		"backend", BackendONNX,
		"detection_model", cfg.Detector.ModelPath,
		"recognition_model", cfg.Recognizer.ModelPath)
	return NewONNXEngineFrom(det, rec, cfg.LineOverlap)
}

// NewONNXEngineFrom assembles an engine from loaded components.
func NewONNXEngineFrom(det *detector.Detector, rec *recognizer.Recognizer, overlap float64) (*ONNXEngine, error) {
	if det == nil || rec == nil {
		return nil, errors.New("detector and recognizer are required")
	}
	return &ONNXEngine{det: det, rec: rec, overlap: overlap}, nil
}

// Recognize implements Engine.
func (e *ONNXEngine) Recognize(img *image.NRGBA) ([]Line, error) {
	start := time.Now()
	regions, err := e.det.Detect(img)
	if err != nil {
		return nil, err
	}

	words := make([]Word, 0, len(regions))
	for _, r := range regions {
		res, err := e.rec.Recognize(img, r.Box)
		if err != nil {
			return nil, fmt.Errorf("region %v: %w", r.Box, err)
		}
		if res.Text == "" {
			continue
		}
		words = append(words, Word{
			Text:       res.Text,
			Rect:       RectFromImage(r.Box),
			Confidence: res.Confidence,
		})
	}

	lines := GroupLines(words, e.overlap)
	slog.Debug("Recognized image",
		"regions", len(regions),
		"words", len(words),
		"lines", len(lines),
		"duration_ms", time.Since(start).Milliseconds())
	return lines, nil
}

// Close releases both model sessions.
func (e *ONNXEngine) Close() error {
	return errors.Join(e.det.Close(), e.rec.Close())
}
