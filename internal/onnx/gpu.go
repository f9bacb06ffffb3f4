package onnx

import (
	"fmt"
	"log/slog"
	"strconv"

	onnxrt "github.com/yalue/onnxruntime_go"
)

// GPUConfig holds CUDA execution provider settings.
type GPUConfig struct {
	UseGPU        bool
	DeviceID      int
	MemoryLimitMB int // 0 = unlimited
}

// DefaultGPUConfig returns CPU-only settings.
func DefaultGPUConfig() GPUConfig {
	return GPUConfig{UseGPU: false, DeviceID: 0, MemoryLimitMB: 0}
}

// Validate checks the GPU settings.
func (c GPUConfig) Validate() error {
	if !c.UseGPU {
		return nil
	}
	if c.DeviceID < 0 {
		return fmt.Errorf("device ID must be non-negative, got %d", c.DeviceID)
	}
	if c.MemoryLimitMB < 0 {
		return fmt.Errorf("memory limit must be non-negative, got %d", c.MemoryLimitMB)
	}
	return nil
}

// cudaSettings maps the config onto CUDA provider option keys.
func (c GPUConfig) cudaSettings() map[string]string {
	settings := map[string]string{
		"device_id":                 strconv.Itoa(c.DeviceID),
		"arena_extend_strategy":     "kNextPowerOfTwo",
		"cudnn_conv_algo_search":    "DEFAULT",
		"do_copy_in_default_stream": "1",
	}
	if c.MemoryLimitMB > 0 {
		settings["gpu_mem_limit"] = strconv.FormatUint(uint64(c.MemoryLimitMB)*1024*1024, 10)
	}
	return settings
}

// configureGPU appends the CUDA provider when requested.
func configureGPU(opts *onnxrt.SessionOptions, cfg GPUConfig) error {
	if !cfg.UseGPU {
		return nil
	}

	cudaOpts, err := onnxrt.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("failed to create CUDA provider options (GPU may not be available): %w", err)
	}
	defer func() {
		if err := cudaOpts.Destroy(); err != nil {
			slog.Warn("Failed to destroy CUDA provider options", "error", err)
		}
	}()

	if err := cudaOpts.Update(cfg.cudaSettings()); err != nil {
		return fmt.Errorf("failed to update CUDA provider options: %w", err)
	}
	if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
		return fmt.Errorf("failed to append CUDA execution provider: %w", err)
	}
	return nil
}
