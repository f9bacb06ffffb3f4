// Package recognizer turns cropped word images into text with a CTC model.
package recognizer

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/MeKo-Tech/trackscan/internal/models"
	"github.com/MeKo-Tech/trackscan/internal/mempool"
	"github.com/MeKo-Tech/trackscan/internal/onnx"
	"github.com/MeKo-Tech/trackscan/internal/utils"
	"github.com/disintegration/imaging"
)

// Config holds the recognizer configuration.
type Config struct {
	ModelPath        string
	DictionaryPath   string
	ImageHeight      int
	PadWidthMultiple int
	MaxWidth         int
	NumThreads       int
	GPU              onnx.GPUConfig
}

// DefaultConfig returns the default recognizer configuration.
func DefaultConfig() Config {
	return Config{
		ModelPath:        models.GetRecognitionModelPath("", ""),
		DictionaryPath:   models.GetDictionaryPath("", ""),
		ImageHeight:      48,
		PadWidthMultiple: 8,
		MaxWidth:         1600,
		GPU:              onnx.DefaultGPUConfig(),
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model path cannot be empty")
	}
	if c.ImageHeight <= 0 {
		return fmt.Errorf("image height must be positive, got %d", c.ImageHeight)
	}
	if c.PadWidthMultiple <= 0 {
		return fmt.Errorf("pad width multiple must be positive, got %d", c.PadWidthMultiple)
	}
	if c.MaxWidth < c.PadWidthMultiple {
		return fmt.Errorf("max width %d below pad multiple %d", c.MaxWidth, c.PadWidthMultiple)
	}
	return nil
}

// Runner executes the recognition model.
type Runner interface {
	Run(in onnx.Tensor) (onnx.Tensor, error)
	Close() error
}

// Result is the text recognized in one crop.
type Result struct {
	Text       string
	Confidence float64
}

// Recognizer reads text from word crops. Recognize is safe for concurrent use.
type Recognizer struct {
	config  Config
	runner  Runner
	charset *Charset
}

// NewRecognizer loads the recognition model and its dictionary.
func NewRecognizer(config Config) (*Recognizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	charset, err := LoadCharset(config.DictionaryPath)
	if err != nil {
		return nil, err
	}
	session, err := onnx.NewSession(config.ModelPath, onnx.SessionConfig{
		NumThreads: config.NumThreads,
		GPU:        config.GPU,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load recognition model: %w", err)
	}
	slog.Debug("Recognizer initialized",
		"model_path", config.ModelPath,
		"dictionary", config.DictionaryPath,
		"charset_size", charset.Size())
	rec, err := NewWithRunner(config, session, charset)
	if err != nil {
		_ = session.Close()
		return nil, err
	}
	return rec, nil
}

// NewWithRunner builds a recognizer around an already loaded model.
func NewWithRunner(config Config, r Runner, charset *Charset) (*Recognizer, error) {
	if r == nil {
		return nil, errors.New("recognizer runner cannot be nil")
	}
	if charset == nil || charset.Size() == 0 {
		return nil, errors.New("charset cannot be empty")
	}
	if config.ModelPath == "" {
		config.ModelPath = "(in-memory)"
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Recognizer{config: config, runner: r, charset: charset}, nil
}

// Recognize reads the text inside box of img.
func (r *Recognizer) Recognize(img image.Image, box image.Rectangle) (Result, error) {
	crop, err := utils.CropRect(img, box)
	if err != nil {
		return Result{}, err
	}
	data, w, h, err := r.preprocess(crop)
	if err != nil {
		return Result{}, err
	}
	defer mempool.PutFloat32(data)
	input, err := onnx.NewImageTensor(data, 3, h, w)
	if err != nil {
		return Result{}, err
	}

	out, err := r.runner.Run(input)
	if err != nil {
		return Result{}, fmt.Errorf("recognition inference failed: %w", err)
	}
	classesFirst := len(out.Shape) == 3 && int(out.Shape[1]) == r.charset.Size()+1 &&
		int(out.Shape[2]) != r.charset.Size()+1
	decoded, err := DecodeGreedy(out.Data, out.Shape, 0, classesFirst)
	if err != nil {
		return Result{}, err
	}

	var sb strings.Builder
	for _, c := range decoded.Classes {
		if tok, ok := r.charset.Token(c); ok {
			sb.WriteString(tok)
		}
	}
	return Result{Text: CleanText(sb.String()), Confidence: decoded.Confidence()}, nil
}

// preprocess scales crop to the model height, pads the width, and returns
// the normalized NCHW buffer with values in [-1,1].
func (r *Recognizer) preprocess(crop image.Image) ([]float32, int, int, error) {
	b := crop.Bounds()
	h := r.config.ImageHeight
	w := max(1, int(float64(b.Dx())*float64(h)/float64(b.Dy())+0.5))
	w = min(w, r.config.MaxWidth)
	resized := imaging.Resize(crop, w, h, imaging.Linear)

	m := r.config.PadWidthMultiple
	padded := utils.PadRight(resized, (w+m-1)/m*m)

	data, pw, ph, err := utils.NormalizeImage(padded)
	if err != nil {
		return nil, 0, 0, err
	}
	for i, v := range data {
		data[i] = (v - 0.5) / 0.5
	}
	return data, pw, ph, nil
}

// Close releases the model session.
func (r *Recognizer) Close() error {
	return r.runner.Close()
}
