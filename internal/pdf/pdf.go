// Package pdf turns PDF documents into label images. Scanned shipping labels
// usually arrive as one embedded raster image per page; each one becomes a
// separate batch input.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	_ "golang.org/x/image/tiff"
)

// ErrNoImages reports a document without embedded images.
var ErrNoImages = errors.New("PDF contains no images")

// Options controls extraction.
type Options struct {
	// Pages is a page selection like "1-3,5". Empty selects all pages.
	Pages         string `json:"pages,omitempty"`
	UserPassword  string `json:"user_password,omitempty"`
	OwnerPassword string `json:"owner_password,omitempty"`
}

// Image is one embedded image.
type Image struct {
	ID     string `json:"id"`
	Page   int    `json:"page"`
	Index  int    `json:"index"`
	Format string `json:"format"`
	Data   []byte `json:"-"`
}

// ImageID names the n-th image (1-based) on page of the document at source.
func ImageID(source string, page, n int) string {
	return fmt.Sprintf("%s#p%d-%d", source, page, n)
}

func (o Options) configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	if o.UserPassword != "" {
		conf.UserPW = o.UserPassword
	}
	if o.OwnerPassword != "" {
		conf.OwnerPW = o.OwnerPassword
	}
	return conf
}

// PageCount returns the number of pages in the document.
func PageCount(filename string, opts Options) (int, error) {
	f, err := os.Open(filename) //nolint:gosec // G304: reading user-provided PDF file path is expected
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer func() { _ = f.Close() }()

	n, err := api.PageCount(f, opts.configuration())
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF page count: %w", err)
	}
	return n, nil
}

// ExtractImages extracts every embedded image of the selected pages in page
// order. Images are identified by ImageID(filename, page, n).
func ExtractImages(filename string, opts Options) ([]Image, error) {
	return extract(filename, filename, opts)
}

// ExtractImagesFromBytes is ExtractImages for an in-memory document; source
// names it in the returned ids.
func ExtractImagesFromBytes(source string, data []byte, opts Options) ([]Image, error) {
	tmp, err := os.CreateTemp("", "trackscan-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	return extract(tmp.Name(), source, opts)
}

func extract(filename, source string, opts Options) ([]Image, error) {
	pages, err := parsePageRange(opts.Pages)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", opts.Pages, err)
	}

	if len(pages) == 0 {
		count, err := PageCount(filename, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
		}
		for p := 1; p <= count; p++ {
			pages = append(pages, p)
		}
	}

	tempDir, err := os.MkdirTemp("", "pdf-extract-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	conf := opts.configuration()
	var out []Image
	for _, page := range pages {
		// One directory per page keeps page attribution independent of
		// pdfcpu's output file naming.
		pageDir := filepath.Join(tempDir, strconv.Itoa(page))
		if err := os.MkdirAll(pageDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create temp directory: %w", err)
		}
		if err := api.ExtractImagesFile(filename, pageDir, []string{strconv.Itoa(page)}, conf); err != nil {
			return nil, fmt.Errorf("failed to extract images from PDF page %d: %w", page, err)
		}
		imgs, err := collectPageImages(pageDir, source, page)
		if err != nil {
			return nil, fmt.Errorf("failed to process extracted images: %w", err)
		}
		out = append(out, imgs...)
	}

	slog.Debug("Extracted PDF images", "file", source, "pages", len(pages), "images", len(out))
	return out, nil
}

// collectPageImages loads the images in dir in file name order. An image
// that does not decode is kept with an empty Format so extraction reports it
// as a failure under its own id.
func collectPageImages(dir, source string, page int) ([]Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []Image
	for _, name := range names {
		data, format, err := loadImageFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("Undecodable PDF image", "file", source, "page", page, "name", name, "error", err)
		}
		n := len(out) + 1
		out = append(out, Image{
			ID:     ImageID(source, page, n),
			Page:   page,
			Index:  n,
			Format: format,
			Data:   data,
		})
	}
	return out, nil
}

// loadImageFile reads path and confirms it holds a decodable image. The
// bytes read are returned even when they do not decode.
func loadImageFile(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path inside our own temp directory
	if err != nil {
		return nil, "", err
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return data, "", err
	}
	return data, format, nil
}

// parsePageRange parses a page range string like "1-5" or "1,3,5".
func parsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil
	}

	var pages []int
	seen := make(map[int]bool)
	for _, part := range strings.Split(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		for _, p := range tokenPages {
			if !seen[p] {
				seen[p] = true
				pages = append(pages, p)
			}
		}
	}
	return pages, nil
}

// parseRangeToken parses either a single page token (e.g., "3") or a range token (e.g., "1-5").
func parseRangeToken(part string) ([]int, error) {
	if strings.Contains(part, "-") {
		rangeParts := strings.Split(part, "-")
		if len(rangeParts) != 2 {
			return nil, fmt.Errorf("invalid range format: %s", part)
		}
		start, err := parsePage(rangeParts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid start page: %s", rangeParts[0])
		}
		end, err := parsePage(rangeParts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid end page: %s", rangeParts[1])
		}
		if start > end {
			return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	page, err := parsePage(part)
	if err != nil {
		return nil, fmt.Errorf("invalid page number: %s", part)
	}
	return []int{page}, nil
}

func parsePage(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if p < 1 {
		return 0, errors.New("pages start at 1")
	}
	return p, nil
}
