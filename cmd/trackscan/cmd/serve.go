package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/trackscan/internal/config"
	"github.com/MeKo-Tech/trackscan/internal/models"
	"github.com/MeKo-Tech/trackscan/internal/ocr"
	"github.com/MeKo-Tech/trackscan/internal/server"
	"github.com/MeKo-Tech/trackscan/internal/version"
	"github.com/spf13/cobra"
)

func (a *app) newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP extraction server",
		Long: `Start an HTTP server that extracts tracking numbers from label images.

The server provides the following endpoints:
  POST /extract         - JSON batch {"images":[{"id","bytes"}]}
  POST /extract/upload  - multipart upload of images and PDFs
  POST /hash            - BLAKE3 content hash of the request body
  POST /report          - XLSX report of extracted numbers
  GET  /ws/extract      - WebSocket batches with progress
  GET  /health          - Health check
  GET  /models          - Engine and model information
  GET  /metrics         - Prometheus metrics

Examples:
  trackscan serve
  trackscan serve --port 8080
  trackscan serve --host 0.0.0.0 --rate-limit`,
		Args: cobra.NoArgs,
		RunE: a.runServe,
	}

	f := cmd.Flags()
	f.StringP("host", "H", "localhost", "server host")
	f.IntP("port", "p", 8080, "server port")
	f.String("cors-origin", "*", "CORS allowed origins")
	f.Int("max-upload-mb", 50, "maximum request size in MB")
	f.Int("timeout", 120, "request read timeout in seconds")
	f.Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	f.Int("max-batch-images", 500, "maximum number of images per batch")
	f.Bool("rate-limit", false, "enable per-client rate limiting")
	f.Int("requests-per-minute", 60, "maximum requests per minute per client")
	f.Int("requests-per-hour", 1000, "maximum requests per hour per client")

	a.bind(f, "server.host", "host")
	a.bind(f, "server.port", "port")
	a.bind(f, "server.cors_origin", "cors-origin")
	a.bind(f, "server.max_upload_mb", "max-upload-mb")
	a.bind(f, "server.timeout_sec", "timeout")
	a.bind(f, "server.shutdown_timeout", "shutdown-timeout")
	a.bind(f, "server.max_batch_images", "max-batch-images")
	a.bind(f, "server.rate_limit_enabled", "rate-limit")
	a.bind(f, "server.requests_per_minute", "requests-per-minute")
	a.bind(f, "server.requests_per_hour", "requests-per-hour")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	coordinator, release, err := a.buildCoordinator(a.cfg)
	if err != nil {
		return err
	}
	defer release()

	sc := serverConfig(a.cfg)
	s, err := server.NewServer(sc, coordinator)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting extraction server",
		"host", sc.Host,
		"port", sc.Port,
		"workers", coordinator.Workers(),
		"rate_limit", sc.RateLimitEnabled)

	shutdownTimeout := time.Duration(a.cfg.Server.ShutdownTimeout) * time.Second
	return s.Run(ctx, s.NewHTTPServer(sc), shutdownTimeout)
}

// serverConfig maps the effective configuration to server.Config.
func serverConfig(cfg *config.Config) server.Config {
	engine := server.EngineInfo{Backend: cfg.Engine.Backend, ModelsDir: cfg.ModelsDir}
	if cfg.Engine.Backend == ocr.BackendONNX {
		engine.Models = models.ListModels(cfg.ModelsDir,
			cfg.Engine.DetectionModel, cfg.Engine.RecognitionModel, cfg.Engine.Dictionary)
	}

	return server.Config{
		Host:             cfg.Server.Host,
		Port:             cfg.Server.Port,
		CORSOrigin:       cfg.Server.CORSOrigin,
		MaxUploadMB:      int64(cfg.Server.MaxUploadMB),
		TimeoutSec:       cfg.Server.TimeoutSec,
		MaxBatchImages:   cfg.Server.MaxBatchImages,
		RateLimitEnabled: cfg.Server.RateLimitEnabled,
		RateLimit: server.RateLimitConfig{
			RequestsPerMinute: cfg.Server.RequestsPerMinute,
			RequestsPerHour:   cfg.Server.RequestsPerHour,
		},
		Engine:  engine,
		Version: version.Version,
	}
}
