// Package report renders extraction results as an xlsx workbook: one row per
// label with the image in column A and its tracking number in column B.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"

	"github.com/MeKo-Tech/trackscan/internal/extract"
	"github.com/MeKo-Tech/trackscan/internal/ocr"
	"github.com/xuri/excelize/v2"
)

// SheetName is the name of the single worksheet.
const SheetName = "Tracking"

// Layout constants.
const (
	RowHeight     = 30.0
	NumberColumn  = 30.0
	ImageColumn   = 20.0
	NumberFontPts = 16.0
)

// Entry is one report row.
type Entry struct {
	ID          string `json:"id"`
	TrackNumber string `json:"track_number"`
	Image       []byte `json:"bytes"`
}

// Entries joins the successes of result with their original image bytes,
// in input order. Each success is paired with one input of the same id, so
// an id submitted twice gets a row per success.
func Entries(result extract.BatchResult, images []extract.ImageInput) []Entry {
	numbers := make(map[string][]string, len(result.Success))
	for _, s := range result.Success {
		numbers[s.ID] = append(numbers[s.ID], s.TrackNumber)
	}
	entries := make([]Entry, 0, len(result.Success))
	for _, in := range images {
		pending := numbers[in.ID]
		if len(pending) == 0 {
			continue
		}
		entries = append(entries, Entry{ID: in.ID, TrackNumber: pending[0], Image: in.Bytes})
		numbers[in.ID] = pending[1:]
	}
	return entries
}

// Build creates the workbook. The caller must Close it.
func Build(entries []Entry) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := layout(f, entries); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func layout(f *excelize.File, entries []Entry) error {
	if err := f.SetColWidth(SheetName, "A", "A", ImageColumn); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "B", "B", NumberColumn); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: NumberFontPts},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	for i, e := range entries {
		row := i + 1
		if err := f.SetRowHeight(SheetName, row, RowHeight); err != nil {
			return err
		}
		numberCell, err := excelize.CoordinatesToCellName(2, row)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(SheetName, numberCell, e.TrackNumber); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetName, numberCell, numberCell, style); err != nil {
			return err
		}
		if len(e.Image) == 0 {
			continue
		}
		imageCell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := addImage(f, imageCell, e.Image); err != nil {
			slog.Warn("Skipping image in report", "id", e.ID, "error", err)
		}
	}
	return nil
}

// addImage embeds data fitted into cell, re-encoding formats the workbook
// cannot hold as PNG.
func addImage(f *excelize.File, cell string, data []byte) error {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("unrecognized image: %w", err)
	}
	ext := "." + format
	switch format {
	case "jpeg", "png", "gif", "bmp", "tiff":
	default:
		img, _, err := ocr.DecodeRGB(data)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return err
		}
		data, ext = buf.Bytes(), ".png"
	}
	return f.AddPictureFromBytes(SheetName, cell, &excelize.Picture{
		Extension: ext,
		File:      data,
		Format: &excelize.GraphicOptions{
			AutoFit:         true,
			LockAspectRatio: true,
			AltText:         "label",
		},
	})
}

// Write renders entries as xlsx into w.
func Write(w io.Writer, entries []Entry) error {
	f, err := Build(entries)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// WriteFile renders entries as xlsx to path.
func WriteFile(path string, entries []Entry) error {
	if path == "" {
		return errors.New("report path cannot be empty")
	}
	f, err := Build(entries)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report %s: %w", path, err)
	}
	slog.Info("Report written", "path", path, "rows", len(entries))
	return nil
}
