package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/trackscan/internal/batch"
	"github.com/spf13/cobra"
)

func (a *app) newExtractCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [files...]",
		Short: "Extract tracking numbers from label images and PDFs",
		Long: `Extract the tracking number from every image named on the command line.
Directories are scanned for supported images; PDF files contribute every
embedded image as a separate input.

Every image ends up either in the success list, together with its 14-digit
tracking number, or in the fail list.

Supported formats: JPEG, PNG, BMP, TIFF, WebP, PDF

Examples:
  trackscan extract label.jpg
  trackscan extract labels/ --recursive --workers 8
  trackscan extract scans/*.pdf --format json --output results.json
  trackscan extract labels/ --id-mode hash --report labels.xlsx`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.runExtract,
	}

	f := cmd.Flags()
	f.BoolP("recursive", "r", false, "process directories recursively")
	f.StringSlice("include", nil, "file patterns to include (e.g., *.jpg,*.png)")
	f.StringSlice("exclude", nil, "file patterns to exclude")
	f.String("id-mode", batch.IDModePath, "image identifier: path or hash (BLAKE3 of the file contents)")
	f.String("pages", "", "PDF page selection (e.g., 1-3,5)")
	f.String("pdf-password", "", "password for encrypted PDFs")
	f.Int("load-workers", 0, "number of parallel file loaders (0 = number of CPUs)")
	f.StringP("format", "f", batch.FormatText, "output format (text, json, csv)")
	f.StringP("output", "o", "", "output file (default: stdout)")
	f.String("report", "", "write an XLSX report of all extracted numbers to this file")
	f.Bool("progress", false, "show a progress bar")
	f.BoolP("quiet", "q", false, "suppress progress and statistics")
	f.Bool("stats", false, "print processing statistics")

	a.bind(f, "output.format", "format")
	a.bind(f, "output.file", "output")
	a.bind(f, "output.report", "report")
	return cmd
}

func (a *app) runExtract(cmd *cobra.Command, args []string) error {
	bc, err := a.batchConfig(cmd)
	if err != nil {
		return err
	}

	coordinator, release, err := a.buildCoordinator(a.cfg)
	if err != nil {
		return err
	}
	defer release()

	res, err := batch.Run(cmd.Context(), args, bc, coordinator)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	if err := res.SaveResults(cmd.OutOrStdout(), bc.Format, bc.OutputFile, bc.Quiet); err != nil {
		return err
	}
	if bc.ReportFile != "" {
		if err := res.WriteReport(bc.ReportFile); err != nil {
			return err
		}
		if !bc.Quiet {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", bc.ReportFile)
		}
	}
	if bc.ShowStats {
		res.PrintStats(cmd.ErrOrStderr(), bc.Quiet)
	}
	return nil
}

// batchConfig maps the effective configuration and the command's flags to
// batch.Config. Output settings come from the config so the file and the
// environment can set them too.
func (a *app) batchConfig(cmd *cobra.Command) (*batch.Config, error) {
	f := cmd.Flags()
	bc := batch.DefaultConfig()

	bc.Recursive, _ = f.GetBool("recursive")
	bc.IncludePatterns, _ = f.GetStringSlice("include")
	bc.ExcludePatterns, _ = f.GetStringSlice("exclude")
	bc.IDMode, _ = f.GetString("id-mode")
	bc.PDFPages, _ = f.GetString("pages")
	bc.PDFPassword, _ = f.GetString("pdf-password")
	bc.LoadWorkers, _ = f.GetInt("load-workers")
	bc.ShowProgress, _ = f.GetBool("progress")
	bc.Quiet, _ = f.GetBool("quiet")
	bc.ShowStats, _ = f.GetBool("stats")
	bc.ProgressWriter = cmd.ErrOrStderr()

	if a.cfg.Output.Format != "" {
		bc.Format = a.cfg.Output.Format
	}
	bc.OutputFile = a.cfg.Output.File
	bc.ReportFile = a.cfg.Output.Report

	if err := bc.Validate(); err != nil {
		return nil, err
	}
	return bc, nil
}
