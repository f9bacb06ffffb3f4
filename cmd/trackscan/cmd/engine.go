package cmd

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/trackscan/internal/config"
	"github.com/MeKo-Tech/trackscan/internal/extract"
	"github.com/MeKo-Tech/trackscan/internal/ocr"
	"github.com/MeKo-Tech/trackscan/internal/parser"
)

// buildCoordinator creates the engine and the extraction pipeline for cfg.
// release closes the engine; it is a no-op when an error is returned.
func (a *app) buildCoordinator(cfg *config.Config) (coordinator *extract.Coordinator, release func(), err error) {
	engine, err := a.newEngine(cfg.ToEngineConfig())
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to initialize recognition engine: %w", err)
	}

	adapter, err := ocr.NewAdapter(engine)
	if err != nil {
		return nil, func() {}, err
	}
	release = func() {
		if err := adapter.Close(); err != nil {
			slog.Warn("Failed to close recognition engine", "error", err)
		}
	}

	processor, err := extract.NewProcessor(adapter, parser.New(cfg.Extract.Keyword))
	if err != nil {
		release()
		return nil, func() {}, err
	}
	coordinator, err = extract.NewCoordinator(processor, extract.Options{Workers: cfg.Extract.Workers})
	if err != nil {
		release()
		return nil, func() {}, err
	}

	slog.Debug("Extraction pipeline ready",
		"backend", cfg.Engine.Backend,
		"keyword", processor.Parser().Keyword(),
		"workers", coordinator.Workers())
	return coordinator, release, nil
}
