package batch

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/MeKo-Tech/trackscan/internal/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBatch() (extract.BatchResult, map[string]string) {
	res := extract.BatchResult{
		Success: []extract.SuccessRecord{
			{ID: "a.png", TrackNumber: "12345678901234"},
			{ID: "scan.pdf#p2-1", TrackNumber: "00000000000042"},
		},
		Fail: []string{"broken.png"},
	}
	sources := map[string]string{
		"a.png":         "a.png",
		"scan.pdf#p2-1": "scan.pdf#p2-1",
		"broken.png":    "broken.png",
	}
	return res, sources
}

func TestFormatBatchResults_Text(t *testing.T) {
	res, sources := sampleBatch()
	out, err := formatBatchResults(res, sources, FormatText)
	require.NoError(t, err)
	assert.Equal(t,
		"# success (2)\na.png\t12345678901234\nscan.pdf#p2-1\t00000000000042\n# fail (1)\nbroken.png\n",
		out)

	def, err := formatBatchResults(res, sources, "")
	require.NoError(t, err)
	assert.Equal(t, out, def)
}

func TestFormatBatchResults_JSON(t *testing.T) {
	res, _ := sampleBatch()
	sources := map[string]string{"hash-a": "a.png"}
	res.Success[0].ID = "hash-a"

	out, err := formatBatchResults(res, sources, FormatJSON)
	require.NoError(t, err)

	var decoded struct {
		Success []struct {
			ID          string `json:"id"`
			TrackNumber string `json:"track_number"`
			Source      string `json:"source"`
		} `json:"success"`
		Fail []struct {
			ID string `json:"id"`
		} `json:"fail"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded.Success, 2)
	assert.Equal(t, "hash-a", decoded.Success[0].ID)
	assert.Equal(t, "a.png", decoded.Success[0].Source)
	assert.Empty(t, decoded.Success[1].Source)
	assert.Equal(t, "12345678901234", decoded.Success[0].TrackNumber)
	require.Len(t, decoded.Fail, 1)
	assert.Equal(t, "broken.png", decoded.Fail[0].ID)
	assert.Equal(t, 3, decoded.Total)
}

func TestFormatBatchResults_JSONEmpty(t *testing.T) {
	out, err := formatBatchResults(extract.BatchResult{}, nil, FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, out, `"success": []`)
	assert.Contains(t, out, `"fail": []`)
}

func TestFormatBatchResults_CSV(t *testing.T) {
	res, sources := sampleBatch()
	out, err := formatBatchResults(res, sources, FormatCSV)
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"id", "status", "track_number", "source"},
		{"a.png", "success", "12345678901234", ""},
		{"scan.pdf#p2-1", "success", "00000000000042", ""},
		{"broken.png", "fail", "", ""},
	}, rows)
}

func TestFormatBatchResults_InvalidFormat(t *testing.T) {
	_, err := formatBatchResults(extract.BatchResult{}, nil, "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}
