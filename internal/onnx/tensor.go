package onnx

import (
	"errors"
	"fmt"
)

// Tensor is a float32 tensor in row-major order (NCHW for images).
type Tensor struct {
	Data  []float32
	Shape []int64
}

// NewImageTensor builds a single-image tensor with shape [1, C, H, W].
func NewImageTensor(data []float32, c, h, w int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil data")
	}
	if expected := c * h * w; len(data) != expected {
		return Tensor{}, fmt.Errorf("unexpected data length: got %d, want %d", len(data), expected)
	}
	return Tensor{Data: data, Shape: []int64{1, int64(c), int64(h), int64(w)}}, nil
}

// Elements returns the product of the shape dimensions.
func (t Tensor) Elements() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return int(n)
}

// VerifyImageTensor checks for a positive NCHW shape matching the data length.
func VerifyImageTensor(t Tensor) error {
	if len(t.Shape) != 4 {
		return fmt.Errorf("shape rank %d != 4", len(t.Shape))
	}
	for i, v := range t.Shape {
		if v <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, v)
		}
	}
	if len(t.Data) != t.Elements() {
		return fmt.Errorf("tensor data length %d != expected %d for shape %v", len(t.Data), t.Elements(), t.Shape)
	}
	return nil
}
