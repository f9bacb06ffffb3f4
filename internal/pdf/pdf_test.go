package pdf

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePageRange(t *testing.T) {
	tests := []struct {
		name        string
		pageRange   string
		want        []int
		expectError bool
	}{
		{name: "empty range returns nil", pageRange: "", want: nil},
		{name: "blank range returns nil", pageRange: "  ", want: nil},
		{name: "single page", pageRange: "1", want: []int{1}},
		{name: "multiple single pages", pageRange: "1,3,5", want: []int{1, 3, 5}},
		{name: "simple range", pageRange: "1-5", want: []int{1, 2, 3, 4, 5}},
		{name: "mixed pages and ranges", pageRange: "1,3-5,7", want: []int{1, 3, 4, 5, 7}},
		{name: "range with spaces", pageRange: " 1 - 3 , 5 ", want: []int{1, 2, 3, 5}},
		{name: "duplicates collapse", pageRange: "2,1-3,2", want: []int{2, 1, 3}},
		{name: "invalid page number", pageRange: "abc", expectError: true},
		{name: "invalid range format", pageRange: "1-2-3", expectError: true},
		{name: "start greater than end", pageRange: "5-1", expectError: true},
		{name: "invalid start page", pageRange: "abc-5", expectError: true},
		{name: "invalid end page", pageRange: "1-xyz", expectError: true},
		{name: "zero page", pageRange: "0", expectError: true},
		{name: "negative page", pageRange: "-1", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePageRange(tt.pageRange)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestImageID(t *testing.T) {
	assert.Equal(t, "scans/batch.pdf#p2-1", ImageID("scans/batch.pdf", 2, 1))
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{uint8(10 * x), uint8(10 * y), 0, 255})
		}
	}
	return img
}

func writeImage(t *testing.T, path, enc string) {
	t.Helper()
	var buf bytes.Buffer
	switch enc {
	case "png":
		require.NoError(t, png.Encode(&buf, testImage(8, 6)))
	case "jpeg":
		require.NoError(t, jpeg.Encode(&buf, testImage(8, 6), &jpeg.Options{Quality: 80}))
	default:
		t.Fatalf("unknown encoder: %s", enc)
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestCollectPageImages(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "doc_3_Im1.png"), "png")
	writeImage(t, filepath.Join(dir, "doc_3_Im2.jpg"), "jpeg")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc_3_Im0.png"), []byte("corrupt"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o750))

	imgs, err := collectPageImages(dir, "doc.pdf", 3)
	require.NoError(t, err)
	require.Len(t, imgs, 3)

	// Undecodable images stay in the list so they are reported as failures.
	assert.Equal(t, "doc.pdf#p3-1", imgs[0].ID)
	assert.Empty(t, imgs[0].Format)
	assert.Equal(t, []byte("corrupt"), imgs[0].Data)
	assert.Equal(t, "doc.pdf#p3-2", imgs[1].ID)
	assert.Equal(t, "png", imgs[1].Format)
	assert.Equal(t, 2, imgs[1].Index)
	assert.Equal(t, "doc.pdf#p3-3", imgs[2].ID)
	assert.Equal(t, "jpeg", imgs[2].Format)
	for _, img := range imgs {
		assert.Equal(t, 3, img.Page)
		assert.NotEmpty(t, img.Data)
	}

	_, err = collectPageImages(filepath.Join(dir, "missing"), "doc.pdf", 1)
	require.Error(t, err)
}

func TestLoadImageFile(t *testing.T) {
	dir := t.TempDir()

	_, _, err := loadImageFile(filepath.Join(dir, "missing.png"))
	require.Error(t, err)

	_, _, err = loadImageFile(dir)
	require.Error(t, err)

	corrupt := filepath.Join(dir, "corrupt.png")
	require.NoError(t, os.WriteFile(corrupt, []byte("corrupt"), 0o600))
	data, format, err := loadImageFile(corrupt)
	require.Error(t, err)
	assert.Empty(t, format)
	assert.Equal(t, []byte("corrupt"), data)

	path := filepath.Join(dir, "ok.png")
	writeImage(t, path, "png")
	data, format, err = loadImageFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.NotEmpty(t, data)
}

func TestExtractImages_ErrorCases(t *testing.T) {
	t.Run("non-existent file", func(t *testing.T) {
		_, err := ExtractImages("/non/existent/file.pdf", Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to extract images from PDF")
	})

	t.Run("invalid page range", func(t *testing.T) {
		_, err := ExtractImages("dummy.pdf", Options{Pages: "invalid-range"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid page range")
	})

	t.Run("not a pdf", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fake.pdf")
		require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))
		_, err := ExtractImages(path, Options{})
		require.Error(t, err)
	})
}

// labelPDF builds a document with one page per image through pdfcpu's
// image import.
func labelPDF(t *testing.T, pages int) string {
	t.Helper()
	dir := t.TempDir()
	files := make([]string, 0, pages)
	for i := range pages {
		path := filepath.Join(dir, "label"+strings.Repeat("x", i)+".png")
		writeImage(t, path, "png")
		files = append(files, path)
	}
	out := filepath.Join(dir, "labels.pdf")
	require.NoError(t, api.ImportImagesFile(files, out, nil, nil))
	return out
}

func TestExtractImages_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	path := labelPDF(t, 2)

	count, err := PageCount(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	imgs, err := ExtractImages(path, Options{})
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.Equal(t, ImageID(path, 1, 1), imgs[0].ID)
	assert.Equal(t, ImageID(path, 2, 1), imgs[1].ID)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(imgs[0].Data))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Width)
	assert.Equal(t, 6, cfg.Height)

	only, err := ExtractImages(path, Options{Pages: "2"})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, 2, only[0].Page)

	data, err := os.ReadFile(path) //nolint:gosec // test fixture
	require.NoError(t, err)
	fromBytes, err := ExtractImagesFromBytes("upload.pdf", data, Options{})
	require.NoError(t, err)
	require.Len(t, fromBytes, 2)
	assert.Equal(t, "upload.pdf#p1-1", fromBytes[0].ID)
}

func BenchmarkParsePageRange(b *testing.B) {
	for _, pageRange := range []string{"1", "1-10", "1,3,5,7,9", "1-5,10-15,20"} {
		b.Run("range_"+strings.ReplaceAll(pageRange, ",", "_"), func(b *testing.B) {
			for range b.N {
				_, _ = parsePageRange(pageRange)
			}
		})
	}
}
