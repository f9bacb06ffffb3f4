// Package batch runs tracking number extraction over files and directories
// from the command line.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/trackscan/internal/extract"
)

// Run discovers the input files named by args, loads them and extracts a
// tracking number from every image. Per-image failures end up in
// Result.Batch.Fail; an error is returned only when the run cannot start.
func Run(ctx context.Context, args []string, cfg *Config, coordinator *extract.Coordinator) (*Result, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if coordinator == nil {
		return nil, errors.New("coordinator is nil")
	}

	files, err := discoverInputFiles(args, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover input files: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no input files found")
	}

	in, err := loadInputs(ctx, files, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load inputs: %w", err)
	}
	slog.Info("Starting batch",
		"files", len(files),
		"images", len(in.inputs),
		"unloadable", len(in.failed),
		"workers", coordinator.Workers())

	if cfg.ShowProgress && !cfg.Quiet {
		coordinator = coordinator.WithProgress(
			newConsoleProgress(cfg.ProgressWriter, "Extracting: ", cfg.ProgressInterval).Update)
	}

	start := time.Now()
	batch := coordinator.ExtractBatch(ctx, in.inputs)
	duration := time.Since(start)
	batch.Fail = append(batch.Fail, in.failed...)

	slog.Info("Batch finished",
		"success", len(batch.Success),
		"fail", len(batch.Fail),
		"duration_ms", duration.Milliseconds())

	return &Result{
		Batch:    batch,
		Inputs:   in.inputs,
		Sources:  in.sources,
		Files:    files,
		Duration: duration,
		Workers:  coordinator.Workers(),
	}, nil
}
