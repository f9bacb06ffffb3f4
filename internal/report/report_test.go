package report

import (
	"bytes"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/trackscan/internal/extract"
	"github.com/MeKo-Tech/trackscan/internal/testutil"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestEntries(t *testing.T) {
	images := []extract.ImageInput{
		{ID: "a", Bytes: []byte("A")},
		{ID: "b", Bytes: []byte("B")},
		{ID: "c", Bytes: []byte("C")},
	}
	result := extract.BatchResult{
		Success: []extract.SuccessRecord{
			{ID: "c", TrackNumber: "33333333333333"},
			{ID: "a", TrackNumber: "11111111111111"},
		},
		Fail: []string{"b"},
	}

	entries := Entries(result, images)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{ID: "a", TrackNumber: "11111111111111", Image: []byte("A")}, entries[0])
	assert.Equal(t, "c", entries[1].ID)
}

func TestEntries_DuplicateIDs(t *testing.T) {
	images := []extract.ImageInput{
		{ID: "dup", Bytes: []byte("first")},
		{ID: "other", Bytes: []byte("other")},
		{ID: "dup", Bytes: []byte("second")},
		{ID: "dup", Bytes: []byte("third")},
	}
	result := extract.BatchResult{
		Success: []extract.SuccessRecord{
			{ID: "dup", TrackNumber: "11111111111111"},
			{ID: "dup", TrackNumber: "11111111111111"},
		},
		Fail: []string{"other", "dup"},
	}

	entries := Entries(result, images)
	require.Len(t, entries, 2)
	assert.Equal(t, []byte("first"), entries[0].Image)
	assert.Equal(t, []byte("second"), entries[1].Image)
	for _, e := range entries {
		assert.Equal(t, "dup", e.ID)
	}
}

func TestWrite(t *testing.T) {
	label := testutil.LabelPNG(t, "Sendungsnummer: 12345678901234")
	entries := []Entry{
		{ID: "one.png", TrackNumber: "12345678901234", Image: label},
		{ID: "two.jpg", TrackNumber: "99999999999999", Image: testutil.EncodeJPEG(t, imaging.New(40, 20, color.White))},
		{ID: "broken", TrackNumber: "00000000000000", Image: []byte("not an image")},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, entries))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	for i, want := range []string{"12345678901234", "99999999999999", "00000000000000"} {
		cell, err := excelize.CoordinatesToCellName(2, i+1)
		require.NoError(t, err)
		got, err := f.GetCellValue(SheetName, cell)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		height, err := f.GetRowHeight(SheetName, i+1)
		require.NoError(t, err)
		assert.InDelta(t, RowHeight, height, 0.01)
	}

	width, err := f.GetColWidth(SheetName, "B")
	require.NoError(t, err)
	assert.InDelta(t, NumberColumn, width, 0.01)

	pics, err := f.GetPictures(SheetName, "A1")
	require.NoError(t, err)
	assert.Len(t, pics, 1)
	pics, err = f.GetPictures(SheetName, "A3")
	require.NoError(t, err)
	assert.Empty(t, pics, "undecodable images are skipped")

	styleID, err := f.GetCellStyle(SheetName, "B1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)
	assert.InDelta(t, NumberFontPts, style.Font.Size, 0.01)
	assert.Equal(t, "center", style.Alignment.Horizontal)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteFile(path, []Entry{{ID: "x", TrackNumber: "12345678901234"}}))
	assert.True(t, testutil.FileExists(path))

	require.Error(t, WriteFile("", nil))
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil))
	assert.Positive(t, buf.Len())
}
