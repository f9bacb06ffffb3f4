package batch

import (
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/MeKo-Tech/trackscan/internal/extract"
	"github.com/MeKo-Tech/trackscan/internal/report"
)

// Identifier modes.
const (
	IDModePath = "path"
	IDModeHash = "hash"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Config holds all configuration for a batch run.
type Config struct {
	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Input settings
	IDMode      string // path or hash
	PDFPages    string
	PDFPassword string
	LoadWorkers int // 0 = runtime.NumCPU()

	// Output settings
	Format     string
	OutputFile string
	ReportFile string

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ShowStats        bool
	ProgressInterval time.Duration
	ProgressWriter   io.Writer // defaults to os.Stderr
}

// DefaultConfig returns the settings used by the extract command.
func DefaultConfig() *Config {
	return &Config{
		IDMode:           IDModePath,
		Format:           FormatText,
		ProgressInterval: 500 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !slices.Contains([]string{IDModePath, IDModeHash}, c.IDMode) {
		return fmt.Errorf("invalid id mode %q (want %s or %s)", c.IDMode, IDModePath, IDModeHash)
	}
	if !slices.Contains([]string{FormatText, FormatJSON, FormatCSV}, c.Format) {
		return fmt.Errorf("invalid output format %q", c.Format)
	}
	if c.LoadWorkers < 0 {
		return fmt.Errorf("load workers must be >= 0, got %d", c.LoadWorkers)
	}
	return nil
}

// Result holds the outcome of a batch run.
type Result struct {
	Batch    extract.BatchResult
	Inputs   []extract.ImageInput
	Sources  map[string]string // id -> file the image came from
	Files    []string
	Duration time.Duration
	Workers  int
}

// FormatResults formats the batch result in the given format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r.Batch, r.Sources, format)
}

// SaveResults writes the formatted results to outputFile, or to w when
// outputFile is empty.
func (r *Result) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
		}
		return nil
	}
	_, err = fmt.Fprint(w, output)
	return err
}

// WriteReport renders the spreadsheet report of all successes to path.
func (r *Result) WriteReport(path string) error {
	return report.WriteFile(path, report.Entries(r.Batch, r.Inputs))
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer, quiet bool) {
	if quiet {
		return
	}
	total := r.Batch.Len()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Files: %d\n", len(r.Files))
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", total)
	_, _ = fmt.Fprintf(w, "  Extracted: %d\n", len(r.Batch.Success))
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", len(r.Batch.Fail))
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", r.Workers)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	if total > 0 {
		avg := r.Duration / time.Duration(total)
		_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", avg.Round(time.Millisecond))
	}
	if secs := r.Duration.Seconds(); secs > 0 {
		_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", float64(total)/secs)
	}
}
