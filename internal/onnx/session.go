package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	onnxrt "github.com/yalue/onnxruntime_go"
)

// SessionConfig controls how a model session is created.
type SessionConfig struct {
	NumThreads int // 0 = runtime default
	GPU        GPUConfig
}

// Session is a single-input, single-output model session.
// Run is safe for concurrent use; Close must not race with Run.
type Session struct {
	modelPath  string
	session    *onnxrt.DynamicAdvancedSession
	inputInfo  onnxrt.InputOutputInfo
	outputInfo onnxrt.InputOutputInfo
	mu         sync.RWMutex
}

// NewSession loads a model file into a new inference session.
func NewSession(modelPath string, cfg SessionConfig) (*Session, error) {
	if modelPath == "" {
		return nil, errors.New("model path cannot be empty")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s: %w", modelPath, err)
	}
	if err := cfg.GPU.Validate(); err != nil {
		return nil, fmt.Errorf("invalid GPU config: %w", err)
	}
	if err := InitializeEnvironment(cfg.GPU.UseGPU); err != nil {
		return nil, err
	}

	inputs, outputs, err := onnxrt.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("expected 1 input, got %d", len(inputs))
	}
	if len(outputs) != 1 {
		return nil, fmt.Errorf("expected 1 output, got %d", len(outputs))
	}

	opts, err := onnxrt.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Warn("Failed to destroy session options", "error", err)
		}
	}()

	if err := configureGPU(opts, cfg.GPU); err != nil {
		return nil, fmt.Errorf("failed to configure GPU: %w", err)
	}
	if cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	sess, err := onnxrt.NewDynamicAdvancedSession(modelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	slog.Debug("Model session created",
		"model_path", modelPath,
		"input", inputs[0].Name,
		"input_shape", inputs[0].Dimensions,
		"output", outputs[0].Name,
		"threads", cfg.NumThreads,
		"gpu", cfg.GPU.UseGPU)

	return &Session{
		modelPath:  modelPath,
		session:    sess,
		inputInfo:  inputs[0],
		outputInfo: outputs[0],
	}, nil
}

// InputShape returns the declared input dimensions (-1 for dynamic axes).
func (s *Session) InputShape() []int64 {
	shape := make([]int64, len(s.inputInfo.Dimensions))
	copy(shape, s.inputInfo.Dimensions)
	return shape
}

// ModelPath returns the file the session was loaded from.
func (s *Session) ModelPath() string { return s.modelPath }

// Run feeds one float32 tensor and returns a copy of the float32 output.
func (s *Session) Run(in Tensor) (Tensor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return Tensor{}, errors.New("session is closed")
	}

	input, err := onnxrt.NewTensor(onnxrt.NewShape(in.Shape...), in.Data)
	if err != nil {
		return Tensor{}, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()

	outputs := []onnxrt.Value{nil}
	if err := s.session.Run([]onnxrt.Value{input}, outputs); err != nil {
		return Tensor{}, fmt.Errorf("inference failed: %w", err)
	}
	out := outputs[0]
	if out == nil {
		return Tensor{}, errors.New("inference produced no output")
	}
	defer func() { _ = out.Destroy() }()

	ft, ok := out.(*onnxrt.Tensor[float32])
	if !ok {
		return Tensor{}, fmt.Errorf("expected float32 tensor, got %T", out)
	}

	data := make([]float32, len(ft.GetData()))
	copy(data, ft.GetData())
	shape := out.GetShape()
	dims := make([]int64, len(shape))
	copy(dims, shape)
	return Tensor{Data: data, Shape: dims}, nil
}

// Close destroys the native session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}
