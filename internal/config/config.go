//nolint:lll
package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/trackscan/internal/detector"
	"github.com/MeKo-Tech/trackscan/internal/models"
	"github.com/MeKo-Tech/trackscan/internal/ocr"
	"github.com/MeKo-Tech/trackscan/internal/onnx"
	"github.com/MeKo-Tech/trackscan/internal/parser"
	"github.com/MeKo-Tech/trackscan/internal/recognizer"
)

// Config represents the complete configuration for trackscan. It is
// populated from a config file, TRACKSCAN_* environment variables and
// command-line flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine" json:"engine"`
	GPU     GPUConfig     `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
	Extract ExtractConfig `mapstructure:"extract" yaml:"extract" json:"extract"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output" json:"output"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server" json:"server"`
}

// EngineConfig selects and tunes the recognition engine.
type EngineConfig struct {
	Backend            string   `mapstructure:"backend" yaml:"backend" json:"backend"`
	DetectionModel     string   `mapstructure:"detection_model" yaml:"detection_model" json:"detection_model"`
	RecognitionModel   string   `mapstructure:"recognition_model" yaml:"recognition_model" json:"recognition_model"`
	Dictionary         string   `mapstructure:"dictionary" yaml:"dictionary" json:"dictionary"`
	NumThreads         int      `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	MaxImageSize       int      `mapstructure:"max_image_size" yaml:"max_image_size" json:"max_image_size"`
	DbThresh           float32  `mapstructure:"db_thresh" yaml:"db_thresh" json:"db_thresh"`
	DbBoxThresh        float32  `mapstructure:"db_box_thresh" yaml:"db_box_thresh" json:"db_box_thresh"`
	MinRegionArea      int      `mapstructure:"min_region_area" yaml:"min_region_area" json:"min_region_area"`
	ImageHeight        int      `mapstructure:"image_height" yaml:"image_height" json:"image_height"`
	PadWidthMultiple   int      `mapstructure:"pad_width_multiple" yaml:"pad_width_multiple" json:"pad_width_multiple"`
	LineOverlap        float64  `mapstructure:"line_overlap" yaml:"line_overlap" json:"line_overlap"`
	TesseractLanguages []string `mapstructure:"tesseract_languages" yaml:"tesseract_languages" json:"tesseract_languages"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled       bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device        int  `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimitMB int  `mapstructure:"memory_limit_mb" yaml:"memory_limit_mb" json:"memory_limit_mb"`
}

// ExtractConfig contains field parser and worker pool settings.
type ExtractConfig struct {
	Keyword string `mapstructure:"keyword" yaml:"keyword" json:"keyword"`
	Workers int    `mapstructure:"workers" yaml:"workers" json:"workers"` // 0 = number of CPUs
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
	Report string `mapstructure:"report" yaml:"report" json:"report"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string `mapstructure:"host" yaml:"host" json:"host"`
	Port              int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin        string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB       int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec        int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout   int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxBatchImages    int    `mapstructure:"max_batch_images" yaml:"max_batch_images" json:"max_batch_images"`
	RateLimitEnabled  bool   `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int    `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	det := detector.DefaultConfig()
	rec := recognizer.DefaultConfig()
	return Config{
		ModelsDir: models.DefaultModelsDir,
		LogLevel:  "info",
		Engine: EngineConfig{
			Backend:            ocr.BackendONNX,
			DetectionModel:     models.DetectionDefault,
			RecognitionModel:   models.RecognitionDefault,
			Dictionary:         models.DictionaryDefault,
			NumThreads:         0,
			MaxImageSize:       det.MaxImageSize,
			DbThresh:           det.DbThresh,
			DbBoxThresh:        det.DbBoxThresh,
			MinRegionArea:      det.MinRegionArea,
			ImageHeight:        rec.ImageHeight,
			PadWidthMultiple:   rec.PadWidthMultiple,
			LineOverlap:        ocr.DefaultLineOverlap,
			TesseractLanguages: []string{"deu", "eng"},
		},
		Extract: ExtractConfig{
			Keyword: parser.DefaultKeyword,
		},
		Output: OutputConfig{
			Format: "text",
		},
		Server: ServerConfig{
			Host:              "localhost",
			Port:              8080,
			CORSOrigin:        "*",
			MaxUploadMB:       50,
			TimeoutSec:        120,
			ShutdownTimeout:   10,
			MaxBatchImages:    500,
			RateLimitEnabled:  false,
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json", "csv"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	validBackends := []string{ocr.BackendONNX, ocr.BackendTesseract}
	if !slices.Contains(validBackends, c.Engine.Backend) {
		return fmt.Errorf("invalid engine backend: %s (must be one of: %s)", c.Engine.Backend, strings.Join(validBackends, ", "))
	}

	if err := validateThreshold(float64(c.Engine.DbThresh), "engine.db_thresh"); err != nil {
		return err
	}
	if err := validateThreshold(float64(c.Engine.DbBoxThresh), "engine.db_box_thresh"); err != nil {
		return err
	}
	if err := validateThreshold(c.Engine.LineOverlap, "engine.line_overlap"); err != nil {
		return err
	}
	if c.Engine.MaxImageSize < 32 {
		return fmt.Errorf("invalid engine.max_image_size: %d (must be at least 32)", c.Engine.MaxImageSize)
	}
	if c.Engine.ImageHeight <= 0 {
		return fmt.Errorf("invalid engine.image_height: %d (must be positive)", c.Engine.ImageHeight)
	}
	if c.Engine.NumThreads < 0 {
		return fmt.Errorf("invalid engine.num_threads: %d (must be >= 0)", c.Engine.NumThreads)
	}

	if strings.TrimSpace(c.Extract.Keyword) == "" {
		return fmt.Errorf("extract.keyword cannot be empty")
	}
	if c.Extract.Workers < 0 {
		return fmt.Errorf("invalid extract.workers: %d (must be >= 0)", c.Extract.Workers)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.MaxBatchImages <= 0 {
		return fmt.Errorf("invalid server.max_batch_images: %d (must be positive)", c.Server.MaxBatchImages)
	}
	if c.Server.RateLimitEnabled && (c.Server.RequestsPerMinute <= 0 || c.Server.RequestsPerHour <= 0) {
		return fmt.Errorf("rate limits must be positive when rate limiting is enabled")
	}

	if c.GPU.Enabled && c.GPU.Device < 0 {
		return fmt.Errorf("invalid gpu.device: %d (must be >= 0)", c.GPU.Device)
	}
	if c.GPU.MemoryLimitMB < 0 {
		return fmt.Errorf("invalid gpu.memory_limit_mb: %d (must be >= 0)", c.GPU.MemoryLimitMB)
	}

	return nil
}

// ToEngineConfig converts the config into the engine construction settings,
// resolving model names against ModelsDir.
func (c *Config) ToEngineConfig() ocr.EngineConfig {
	gpu := onnx.GPUConfig{
		UseGPU:        c.GPU.Enabled,
		DeviceID:      c.GPU.Device,
		MemoryLimitMB: c.GPU.MemoryLimitMB,
	}

	det := detector.DefaultConfig()
	det.ModelPath = models.GetDetectionModelPath(c.ModelsDir, c.Engine.DetectionModel)
	det.DbThresh = c.Engine.DbThresh
	det.DbBoxThresh = c.Engine.DbBoxThresh
	det.MaxImageSize = c.Engine.MaxImageSize
	det.MinRegionArea = c.Engine.MinRegionArea
	det.NumThreads = c.Engine.NumThreads
	det.GPU = gpu

	rec := recognizer.DefaultConfig()
	rec.ModelPath = models.GetRecognitionModelPath(c.ModelsDir, c.Engine.RecognitionModel)
	rec.DictionaryPath = models.GetDictionaryPath(c.ModelsDir, c.Engine.Dictionary)
	rec.ImageHeight = c.Engine.ImageHeight
	if c.Engine.PadWidthMultiple > 0 {
		rec.PadWidthMultiple = c.Engine.PadWidthMultiple
	}
	rec.NumThreads = c.Engine.NumThreads
	rec.GPU = gpu

	return ocr.EngineConfig{
		Backend:            c.Engine.Backend,
		Detector:           det,
		Recognizer:         rec,
		LineOverlap:        c.Engine.LineOverlap,
		TesseractLanguages: c.Engine.TesseractLanguages,
	}
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}
