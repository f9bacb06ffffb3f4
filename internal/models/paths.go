package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Default model file names.
const (
	DetectionDefault   = "text-detection.onnx"
	RecognitionDefault = "text-recognition.onnx"
	DictionaryDefault  = "charset.txt"
)

// Subdirectories of the models directory.
const (
	TypeDetection    = "detection"
	TypeRecognition  = "recognition"
	TypeDictionaries = "dictionaries"
)

// DefaultModelsDir is used when neither a flag nor the environment names one.
const DefaultModelsDir = "models"

// EnvModelsDir overrides the models directory.
const EnvModelsDir = "TRACKSCAN_MODELS_DIR"

// ModelInfo describes one model asset.
type ModelInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Path     string `json:"path"`
	Present  bool   `json:"present"`
	Filename string `json:"filename"`
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.New("could not find project root (go.mod not found)")
}

// GetModelsDir returns the models directory.
// Priority: explicit argument, environment variable, project root + default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	if projectRoot, err := findProjectRoot(); err == nil {
		return filepath.Join(projectRoot, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// ResolveModelPath maps a file name to <models_dir>/<type>/<filename>.
// Absolute file names are returned as is. If the organized location does
// not exist but <models_dir>/<filename> does, the flat location wins.
func ResolveModelPath(modelsDir, modelType, filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}
	base := GetModelsDir(modelsDir)
	organized := filepath.Join(base, modelType, filename)
	if _, err := os.Stat(organized); err == nil {
		return organized
	}
	flat := filepath.Join(base, filename)
	if _, err := os.Stat(flat); err == nil {
		return flat
	}
	return organized
}

func orDefault(name, def string) string {
	if name == "" {
		return def
	}
	return name
}

// GetDetectionModelPath returns the detection model path; an empty name selects the default.
func GetDetectionModelPath(modelsDir, name string) string {
	return ResolveModelPath(modelsDir, TypeDetection, orDefault(name, DetectionDefault))
}

// GetRecognitionModelPath returns the recognition model path; an empty name selects the default.
func GetRecognitionModelPath(modelsDir, name string) string {
	return ResolveModelPath(modelsDir, TypeRecognition, orDefault(name, RecognitionDefault))
}

// GetDictionaryPath returns the charset path; an empty name selects the default.
func GetDictionaryPath(modelsDir, name string) string {
	return ResolveModelPath(modelsDir, TypeDictionaries, orDefault(name, DictionaryDefault))
}

// ValidateModelExists checks that a model file is present.
func ValidateModelExists(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}

// ListModels reports the assets the ONNX engine needs and whether each is on disk.
func ListModels(modelsDir, detection, recognition, dictionary string) []ModelInfo {
	entries := []ModelInfo{
		{Name: "detection", Type: TypeDetection, Filename: orDefault(detection, DetectionDefault),
			Path: GetDetectionModelPath(modelsDir, detection)},
		{Name: "recognition", Type: TypeRecognition, Filename: orDefault(recognition, RecognitionDefault),
			Path: GetRecognitionModelPath(modelsDir, recognition)},
		{Name: "dictionary", Type: TypeDictionaries, Filename: orDefault(dictionary, DictionaryDefault),
			Path: GetDictionaryPath(modelsDir, dictionary)},
	}
	for i := range entries {
		entries[i].Present = ValidateModelExists(entries[i].Path) == nil
	}
	return entries
}
