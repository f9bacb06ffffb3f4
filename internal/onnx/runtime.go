// Package onnx wraps ONNX Runtime environment setup and inference sessions.
package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	onnxrt "github.com/yalue/onnxruntime_go"
)

// EnvLibraryPath overrides shared library discovery.
const EnvLibraryPath = "TRACKSCAN_ONNXRUNTIME_LIB"

var (
	envOnce sync.Once
	envErr  error
)

// InitializeEnvironment locates the shared library and initializes the
// process-wide ONNX Runtime environment. Later calls return the first result.
func InitializeEnvironment(useGPU bool) error {
	envOnce.Do(func() {
		if err := SetLibraryPath(useGPU); err != nil {
			envErr = fmt.Errorf("failed to set ONNX Runtime library path: %w", err)
			return
		}
		if onnxrt.IsInitialized() {
			return
		}
		if err := onnxrt.InitializeEnvironment(); err != nil {
			envErr = fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
			return
		}
		slog.Debug("ONNX Runtime environment initialized", "version", onnxrt.GetVersion())
	})
	return envErr
}

// DestroyEnvironment tears down the environment at process shutdown.
func DestroyEnvironment() error {
	if !onnxrt.IsInitialized() {
		return nil
	}
	return onnxrt.DestroyEnvironment()
}

// SetLibraryPath points onnxruntime_go at the first shared library found in
// the override variable, the system locations or <project>/onnxruntime/lib.
func SetLibraryPath(useGPU bool) error {
	if p := os.Getenv(EnvLibraryPath); p != "" {
		if !trySetLibraryPath(p) {
			return fmt.Errorf("%s points to missing file %s", EnvLibraryPath, p)
		}
		return nil
	}

	for _, p := range systemLibraryPaths(useGPU) {
		if trySetLibraryPath(p) {
			return nil
		}
	}

	root, err := findProjectRoot()
	if err != nil {
		return err
	}
	libName, err := libraryName(runtime.GOOS)
	if err != nil {
		return err
	}

	if useGPU && trySetLibraryPath(filepath.Join(root, "onnxruntime", "gpu", "lib", libName)) {
		return nil
	}
	libPath := filepath.Join(root, "onnxruntime", "lib", libName)
	if !trySetLibraryPath(libPath) {
		return fmt.Errorf("ONNX Runtime library not found at %s", libPath)
	}
	return nil
}

func systemLibraryPaths(useGPU bool) []string {
	paths := []string{
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
	}
	if useGPU {
		return append([]string{"/opt/onnxruntime/gpu/lib/libonnxruntime.so"}, paths...)
	}
	return paths
}

func libraryName(goos string) (string, error) {
	switch goos {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", goos)
	}
}

func trySetLibraryPath(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	onnxrt.SetSharedLibraryPath(path)
	return true
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root")
		}
		dir = parent
	}
}
