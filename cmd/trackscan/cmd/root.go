// Package cmd implements the trackscan command line.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/trackscan/internal/config"
	"github.com/MeKo-Tech/trackscan/internal/models"
	"github.com/MeKo-Tech/trackscan/internal/ocr"
	"github.com/MeKo-Tech/trackscan/internal/parser"
	"github.com/MeKo-Tech/trackscan/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// skipConfig marks commands that run without loading the configuration.
const skipConfig = "skip-config"

// EngineFactory builds the recognition engine from the effective settings.
type EngineFactory func(cfg ocr.EngineConfig) (ocr.Engine, error)

// app is the state shared by one command tree.
type app struct {
	v         *viper.Viper
	loader    *config.Loader
	cfgFile   string
	cfg       *config.Config
	newEngine EngineFactory
}

// Execute runs the command line and exits non-zero on error.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand returns the trackscan command tree using the configured
// recognition backend.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithEngine(ocr.NewEngine)
}

// NewRootCommandWithEngine returns a command tree whose extraction commands
// obtain their engine from factory.
func NewRootCommandWithEngine(factory EngineFactory) *cobra.Command {
	a := &app{v: viper.New(), newEngine: factory}
	a.loader = config.NewLoaderWith(a.v)

	root := &cobra.Command{
		Use:   "trackscan",
		Short: "Extract parcel tracking numbers from shipping label images",
		Long: `trackscan reads shipping label photos and scans, recognizes their text and
extracts the 14-digit tracking number printed next to the "Sendungs..." label.

Images are processed in parallel; every input ends up either in the success
list with its tracking number or in the fail list.

Examples:
  trackscan extract labels/ --recursive
  trackscan extract scan.pdf --format json --report labels.xlsx
  trackscan serve --port 8080
  trackscan hash label.jpg`,
		Version:           version.String(),
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "",
		"config file (default is trackscan.yaml in ., $HOME, $XDG_CONFIG_HOME/trackscan, /etc/trackscan)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("models-dir", models.DefaultModelsDir,
		"directory containing ONNX models (can also be set via TRACKSCAN_MODELS_DIR)")
	pf.Int("workers", 0, "number of parallel extraction workers (0 = number of CPUs)")
	pf.String("keyword", parser.DefaultKeyword, "label keyword that marks the tracking number")

	a.bind(pf, "verbose", "verbose")
	a.bind(pf, "log_level", "log-level")
	a.bind(pf, "models_dir", "models-dir")
	a.bind(pf, "extract.workers", "workers")
	a.bind(pf, "extract.keyword", "keyword")

	root.AddCommand(
		a.newExtractCommand(),
		a.newServeCommand(),
		a.newModelsCommand(),
		a.newConfigCommand(),
		newHashCommand(),
		newVersionCommand(),
	)
	return root
}

// bind ties a flag to a config key so flags override file and environment.
func (a *app) bind(flags *pflag.FlagSet, key, name string) {
	if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", name, err))
	}
}

// setup loads the configuration and installs the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[skipConfig] == "true" {
		setupLogging(cmd.ErrOrStderr(), "info", false)
		return nil
	}

	cfg, err := a.loader.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	a.cfg = cfg

	setupLogging(cmd.ErrOrStderr(), cfg.LogLevel, cfg.Verbose)
	if used := a.loader.GetConfigFileUsed(); used != "" {
		slog.Debug("Using config file", "path", used)
	}
	return nil
}

// setupLogging installs a JSON slog handler writing to w.
func setupLogging(w io.Writer, level string, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		switch level {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		}
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel})))
}
