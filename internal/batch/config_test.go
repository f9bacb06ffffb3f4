package batch

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MeKo-Tech/trackscan/internal/extract"
	"github.com/MeKo-Tech/trackscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "hash ids", mutate: func(c *Config) { c.IDMode = IDModeHash }},
		{name: "csv", mutate: func(c *Config) { c.Format = FormatCSV }},
		{name: "bad id mode", mutate: func(c *Config) { c.IDMode = "uuid" }, wantErr: true},
		{name: "bad format", mutate: func(c *Config) { c.Format = "yaml" }, wantErr: true},
		{name: "negative load workers", mutate: func(c *Config) { c.LoadWorkers = -1 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func sampleResult() *Result {
	res, sources := sampleBatch()
	return &Result{Batch: res, Sources: sources, Files: []string{"a.png", "scan.pdf", "broken.png"}, Duration: 2 * time.Second, Workers: 4}
}

func TestResult_SaveResults_ToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	var console bytes.Buffer

	require.NoError(t, sampleResult().SaveResults(&console, FormatCSV, path, false))
	data, err := os.ReadFile(path) //nolint:gosec // test output
	require.NoError(t, err)
	assert.Contains(t, string(data), "a.png,success,12345678901234")
	assert.Equal(t, "Results written to "+path+"\n", console.String())

	console.Reset()
	require.NoError(t, sampleResult().SaveResults(&console, FormatCSV, path, true))
	assert.Empty(t, console.String())
}

func TestResult_SaveResults_Writer(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, sampleResult().SaveResults(&out, FormatText, "", false))
	assert.Contains(t, out.String(), "a.png\t12345678901234")
}

func TestResult_SaveResults_Errors(t *testing.T) {
	var out bytes.Buffer
	err := sampleResult().SaveResults(&out, "xml", "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to format results")

	err = sampleResult().SaveResults(&out, FormatText, filepath.Join(t.TempDir(), "missing", "out.txt"), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write output file")
}

func TestResult_PrintStats(t *testing.T) {
	var out bytes.Buffer
	sampleResult().PrintStats(&out, true)
	assert.Empty(t, out.String())

	sampleResult().PrintStats(&out, false)
	s := out.String()
	assert.Contains(t, s, "Total images: 3")
	assert.Contains(t, s, "Extracted: 2")
	assert.Contains(t, s, "Failed: 1")
	assert.Contains(t, s, "Workers: 4")
	assert.Contains(t, s, "Throughput: 1.5 images/sec")
}

func TestResult_WriteReport(t *testing.T) {
	engine := testutil.NewScriptedEngine()
	label := engine.AddText("Sendungsnummer: 12345678901234")
	r := &Result{
		Batch: extract.BatchResult{
			Success: []extract.SuccessRecord{{ID: "label.png", TrackNumber: "12345678901234"}},
			Fail:    []string{"broken.png"},
		},
		Inputs: []extract.ImageInput{{ID: "label.png", Bytes: label}, {ID: "broken.png", Bytes: []byte("x")}},
	}

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, r.WriteReport(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "12345678901234", rows[0][len(rows[0])-1])
}
