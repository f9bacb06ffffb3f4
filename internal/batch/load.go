package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/MeKo-Tech/trackscan/internal/extract"
	"github.com/MeKo-Tech/trackscan/internal/hashing"
	"github.com/MeKo-Tech/trackscan/internal/pdf"
	"github.com/MeKo-Tech/trackscan/internal/utils"
	"golang.org/x/sync/errgroup"
)

// loadedFile is the set of inputs read from one file. failed holds the
// file's id when it could not be loaded.
type loadedFile struct {
	inputs  []extract.ImageInput
	sources []string
	failed  string
}

// loaded is the outcome of reading all input files.
type loaded struct {
	inputs  []extract.ImageInput
	failed  []string
	sources map[string]string // id -> file the image came from
}

// loadInputs reads files concurrently and returns the inputs in file order
// together with an id to source file map. A PDF contributes one input per
// embedded image. A file that cannot be read, or a PDF without images, is
// recorded as failed under its id; only cancellation stops the load.
func loadInputs(ctx context.Context, files []string, cfg *Config) (*loaded, error) {
	perFile := make([]loadedFile, len(files))

	g, ctx := errgroup.WithContext(ctx)
	limit := cfg.LoadWorkers
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	g.SetLimit(limit)

	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			lf, err := loadFile(path, cfg)
			if err != nil {
				slog.Warn("Failed to load input", "file", path, "error", err)
				lf = loadedFile{failed: failedID(path, cfg.IDMode)}
			}
			perFile[i] = lf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &loaded{sources: make(map[string]string)}
	for i, lf := range perFile {
		if lf.failed != "" {
			out.failed = append(out.failed, lf.failed)
			out.sources[lf.failed] = files[i]
			continue
		}
		for j, in := range lf.inputs {
			out.inputs = append(out.inputs, in)
			out.sources[in.ID] = lf.sources[j]
		}
	}
	return out, nil
}

func loadFile(path string, cfg *Config) (loadedFile, error) {
	if utils.IsPDF(path) {
		return loadPDF(path, cfg)
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: reading user-provided input path is expected
	if err != nil {
		return loadedFile{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return loadedFile{
		inputs:  []extract.ImageInput{{ID: inputID(path, data, cfg.IDMode), Bytes: data}},
		sources: []string{path},
	}, nil
}

func loadPDF(path string, cfg *Config) (loadedFile, error) {
	imgs, err := pdf.ExtractImages(path, pdf.Options{Pages: cfg.PDFPages, UserPassword: cfg.PDFPassword})
	if err != nil {
		return loadedFile{}, fmt.Errorf("failed to load %s: %w", path, err)
	}
	if len(imgs) == 0 {
		return loadedFile{}, fmt.Errorf("failed to load %s: %w", path, pdf.ErrNoImages)
	}
	lf := loadedFile{
		inputs:  make([]extract.ImageInput, 0, len(imgs)),
		sources: make([]string, 0, len(imgs)),
	}
	for _, img := range imgs {
		id := img.ID
		if cfg.IDMode == IDModeHash {
			id = hashing.Sum(img.Data)
		}
		lf.inputs = append(lf.inputs, extract.ImageInput{ID: id, Bytes: img.Data})
		lf.sources = append(lf.sources, img.ID)
	}
	return lf, nil
}

// failedID identifies a file that could not be loaded. In hash mode the raw
// file contents are hashed when they can still be read.
func failedID(path, mode string) string {
	if mode == IDModeHash {
		if data, err := os.ReadFile(path); err == nil { //nolint:gosec // G304: reading user-provided input path is expected
			return hashing.Sum(data)
		}
	}
	return path
}

func inputID(path string, data []byte, mode string) string {
	if mode == IDModeHash {
		return hashing.Sum(data)
	}
	return path
}
