package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/trackscan/internal/extract"
)

// formatBatchResults formats a batch result in the specified format.
func formatBatchResults(res extract.BatchResult, sources map[string]string, format string) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(res, sources)
	case FormatCSV:
		return formatCSV(res, sources)
	case FormatText, "":
		return formatText(res), nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

type jsonRecord struct {
	extract.SuccessRecord
	Source string `json:"source,omitempty"`
}

type jsonFailure struct {
	ID     string `json:"id"`
	Source string `json:"source,omitempty"`
}

// formatJSON formats results as JSON.
func formatJSON(res extract.BatchResult, sources map[string]string) (string, error) {
	out := struct {
		Success []jsonRecord  `json:"success"`
		Fail    []jsonFailure `json:"fail"`
		Total   int           `json:"total"`
	}{
		Success: make([]jsonRecord, 0, len(res.Success)),
		Fail:    make([]jsonFailure, 0, len(res.Fail)),
		Total:   res.Len(),
	}
	for _, s := range res.Success {
		out.Success = append(out.Success, jsonRecord{SuccessRecord: s, Source: sourceOf(sources, s.ID)})
	}
	for _, id := range res.Fail {
		out.Fail = append(out.Fail, jsonFailure{ID: id, Source: sourceOf(sources, id)})
	}

	bts, err := json.MarshalIndent(out, "", "  ")
	return string(bts), err
}

// formatCSV formats results as CSV, successes first.
func formatCSV(res extract.BatchResult, sources map[string]string) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	if err := writer.Write([]string{"id", "status", "track_number", "source"}); err != nil {
		return "", err
	}
	for _, s := range res.Success {
		if err := writer.Write([]string{s.ID, "success", s.TrackNumber, sourceOf(sources, s.ID)}); err != nil {
			return "", err
		}
	}
	for _, id := range res.Fail {
		if err := writer.Write([]string{id, "fail", "", sourceOf(sources, id)}); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return output.String(), writer.Error()
}

// formatText formats results as tab separated lines.
func formatText(res extract.BatchResult) string {
	var output strings.Builder
	fmt.Fprintf(&output, "# success (%d)\n", len(res.Success))
	for _, s := range res.Success {
		fmt.Fprintf(&output, "%s\t%s\n", s.ID, s.TrackNumber)
	}
	fmt.Fprintf(&output, "# fail (%d)\n", len(res.Fail))
	for _, id := range res.Fail {
		output.WriteString(id)
		output.WriteString("\n")
	}
	return output.String()
}

// sourceOf returns the source file of id when it differs from the id itself.
func sourceOf(sources map[string]string, id string) string {
	if src, ok := sources[id]; ok && src != id {
		return src
	}
	return ""
}
