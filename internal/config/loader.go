package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "trackscan"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "TRACKSCAN"

	// DotEnvFile is loaded into the process environment before reading config.
	DotEnvFile = ".env"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v       *viper.Viper
	envFile string
}

// NewLoader creates a loader on the global viper instance so that cobra
// flag bindings apply.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper(), envFile: DotEnvFile}
}

// NewLoaderWith creates a loader on v.
func NewLoaderWith(v *viper.Viper) *Loader {
	return &Loader{v: v, envFile: DotEnvFile}
}

// WithEnvFile sets the dotenv file; empty disables it.
func (l *Loader) WithEnvFile(path string) *Loader {
	l.envFile = path
	return l
}

// Load reads configuration from configFile, or from the search paths when
// configFile is empty, and validates it.
func (l *Loader) Load(configFile string) (*Config, error) {
	cfg, err := l.LoadWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithoutValidation is Load without the final Validate call.
func (l *Loader) LoadWithoutValidation(configFile string) (*Config, error) {
	if err := LoadDotEnv(l.envFile); err != nil {
		return nil, err
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
		if err := l.v.ReadInConfig(); err != nil {
			// A missing config file is fine: defaults and env vars apply.
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// LoadDotEnv loads path into the process environment when it exists.
// Variables already set are not overridden.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil //nolint:nilerr // a missing dotenv file is not an error
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so AutomaticEnv can see it on Unmarshal.
func (l *Loader) setDefaults() {
	setDefaults(l.v, DefaultConfig())
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("models_dir", d.ModelsDir)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("verbose", d.Verbose)

	v.SetDefault("engine.backend", d.Engine.Backend)
	v.SetDefault("engine.detection_model", d.Engine.DetectionModel)
	v.SetDefault("engine.recognition_model", d.Engine.RecognitionModel)
	v.SetDefault("engine.dictionary", d.Engine.Dictionary)
	v.SetDefault("engine.num_threads", d.Engine.NumThreads)
	v.SetDefault("engine.max_image_size", d.Engine.MaxImageSize)
	v.SetDefault("engine.db_thresh", d.Engine.DbThresh)
	v.SetDefault("engine.db_box_thresh", d.Engine.DbBoxThresh)
	v.SetDefault("engine.min_region_area", d.Engine.MinRegionArea)
	v.SetDefault("engine.image_height", d.Engine.ImageHeight)
	v.SetDefault("engine.pad_width_multiple", d.Engine.PadWidthMultiple)
	v.SetDefault("engine.line_overlap", d.Engine.LineOverlap)
	v.SetDefault("engine.tesseract_languages", d.Engine.TesseractLanguages)

	v.SetDefault("gpu.enabled", d.GPU.Enabled)
	v.SetDefault("gpu.device", d.GPU.Device)
	v.SetDefault("gpu.memory_limit_mb", d.GPU.MemoryLimitMB)

	v.SetDefault("extract.keyword", d.Extract.Keyword)
	v.SetDefault("extract.workers", d.Extract.Workers)

	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.file", d.Output.File)
	v.SetDefault("output.report", d.Output.Report)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_batch_images", d.Server.MaxBatchImages)
	v.SetDefault("server.rate_limit_enabled", d.Server.RateLimitEnabled)
	v.SetDefault("server.requests_per_minute", d.Server.RequestsPerMinute)
	v.SetDefault("server.requests_per_hour", d.Server.RequestsPerHour)
}

// GenerateDefaultConfigFile writes the default configuration to filename
// (trackscan.yaml when empty).
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	v := viper.New()
	setDefaults(v, DefaultConfig())
	if err := v.WriteConfigAs(filename); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", filename, err)
	}
	return nil
}

// ToYAML renders cfg as YAML.
func ToYAML(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	return out, nil
}

// GetConfigSearchPaths returns the directories searched for trackscan.yaml.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	return append(paths, "/etc/"+ConfigFileName)
}
