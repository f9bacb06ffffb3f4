package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/trackscan/internal/extract"
	"github.com/MeKo-Tech/trackscan/internal/hashing"
	"github.com/MeKo-Tech/trackscan/internal/pdf"
	"github.com/MeKo-Tech/trackscan/internal/report"
	"github.com/MeKo-Tech/trackscan/internal/utils"
)

const (
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	reportFilename   = "trackscan-report.xlsx"
	uploadField      = "images"
	idModeHash       = "hash"
	pdfMagic         = "%PDF-"
	statusOK         = "success"
	statusBadRequest = "bad_request"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, r, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// modelsHandler describes the recognition engine and the field parser.
func (s *Server) modelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, r, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, r, http.StatusOK, ModelsResponse{
		EngineInfo: s.engine,
		Count:      len(s.engine.Models),
		Workers:    s.coordinator.Workers(),
		Keyword:    s.coordinator.Processor().Parser().Keyword(),
	})
}

// extractHandler answers the JSON batch entry point:
// {"images":[{"id","bytes"}]} in, {"success":[...],"fail":[...]} out.
func (s *Server) extractHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, r, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes())

	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiRequestsTotal.WithLabelValues("extract", statusBadRequest).Inc()
		if isBodyTooLarge(err) {
			s.writeErrorResponse(w, r, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.writeErrorResponse(w, r, fmt.Sprintf("Failed to parse JSON request: %v", err), http.StatusBadRequest)
		return
	}
	if r.ContentLength > 0 {
		uploadSizeBytes.Observe(float64(r.ContentLength))
	}

	if len(req.Images) > s.maxBatchImages {
		apiRequestsTotal.WithLabelValues("extract", statusBadRequest).Inc()
		s.writeErrorResponse(w, r,
			fmt.Sprintf("Batch size too large (%d images, maximum %d)", len(req.Images), s.maxBatchImages),
			http.StatusRequestEntityTooLarge)
		return
	}

	result := s.extract(r, "extract", req.Images)
	s.writeJSON(w, r, http.StatusOK, result)
}

// uploadHandler accepts multipart "images" files. Each image is identified by
// its file name, or by its content hash when id_mode=hash. A PDF contributes
// one input per embedded image.
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, r, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes())
	if err := r.ParseMultipartForm(s.maxBodyBytes()); err != nil {
		apiRequestsTotal.WithLabelValues("upload", statusBadRequest).Inc()
		if isBodyTooLarge(err) {
			s.writeErrorResponse(w, r, "File too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.writeErrorResponse(w, r, "Failed to parse form data", http.StatusBadRequest)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File[uploadField]
	if len(files) == 0 {
		apiRequestsTotal.WithLabelValues("upload", statusBadRequest).Inc()
		s.writeErrorResponse(w, r, "No image files provided in field \""+uploadField+"\"", http.StatusBadRequest)
		return
	}

	opts := pdf.Options{Pages: r.FormValue("pages"), UserPassword: r.FormValue("password")}
	hashIDs := r.FormValue("id_mode") == idModeHash

	var inputs []extract.ImageInput
	var failed []string
	for _, fh := range files {
		got, err := s.uploadInputs(fh, opts, hashIDs)
		if err != nil {
			extract.Logger(r.Context()).Warn("Upload rejected", "file", fh.Filename, "error", err)
			failed = append(failed, fh.Filename)
			continue
		}
		inputs = append(inputs, got...)
	}

	if len(inputs)+len(failed) > s.maxBatchImages {
		apiRequestsTotal.WithLabelValues("upload", statusBadRequest).Inc()
		s.writeErrorResponse(w, r,
			fmt.Sprintf("Batch size too large (%d images, maximum %d)", len(inputs)+len(failed), s.maxBatchImages),
			http.StatusRequestEntityTooLarge)
		return
	}

	result := s.extract(r, "upload", inputs)
	result.Fail = append(result.Fail, failed...)
	s.writeJSON(w, r, http.StatusOK, result)
}

// uploadInputs turns one uploaded file into extraction inputs.
func (s *Server) uploadInputs(fh *multipart.FileHeader, opts pdf.Options, hashIDs bool) ([]extract.ImageInput, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	uploadSizeBytes.Observe(float64(len(data)))

	if utils.IsPDF(fh.Filename) || bytes.HasPrefix(data, []byte(pdfMagic)) {
		imgs, err := pdf.ExtractImagesFromBytes(fh.Filename, data, opts)
		if err != nil {
			return nil, err
		}
		if len(imgs) == 0 {
			return nil, pdf.ErrNoImages
		}
		inputs := make([]extract.ImageInput, 0, len(imgs))
		for _, img := range imgs {
			id := img.ID
			if hashIDs {
				id = hashing.Sum(img.Data)
			}
			inputs = append(inputs, extract.ImageInput{ID: id, Bytes: img.Data})
		}
		return inputs, nil
	}

	id := fh.Filename
	if hashIDs {
		id = hashing.Sum(data)
	}
	return []extract.ImageInput{{ID: id, Bytes: data}}, nil
}

// hashHandler returns the content hash of the raw request body.
func (s *Server) hashHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, r, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes())
	counter := &countingReader{r: r.Body}
	sum, err := hashing.Reader(counter)
	if err != nil {
		apiRequestsTotal.WithLabelValues("hash", statusBadRequest).Inc()
		if isBodyTooLarge(err) {
			s.writeErrorResponse(w, r, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.writeErrorResponse(w, r, "Failed to read request body", http.StatusBadRequest)
		return
	}

	apiRequestsTotal.WithLabelValues("hash", statusOK).Inc()
	s.writeJSON(w, r, http.StatusOK, HashResponse{Hash: sum, Size: counter.n})
}

// reportRequest is the body of POST /report.
type reportRequest struct {
	Entries []report.Entry `json:"entries"`
}

// reportHandler renders entries into a spreadsheet attachment.
func (s *Server) reportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, r, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes())

	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiRequestsTotal.WithLabelValues("report", statusBadRequest).Inc()
		if isBodyTooLarge(err) {
			s.writeErrorResponse(w, r, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.writeErrorResponse(w, r, fmt.Sprintf("Failed to parse JSON request: %v", err), http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, req.Entries); err != nil {
		apiRequestsTotal.WithLabelValues("report", "error").Inc()
		s.writeErrorResponse(w, r, fmt.Sprintf("Failed to build report: %v", err), http.StatusInternalServerError)
		return
	}

	apiRequestsTotal.WithLabelValues("report", statusOK).Inc()
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+reportFilename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		extract.Logger(r.Context()).Error("Failed to write report", "error", err)
	}
}

// extract runs inputs through the coordinator and records API metrics.
func (s *Server) extract(r *http.Request, endpoint string, inputs []extract.ImageInput) extract.BatchResult {
	apiBatchImages.WithLabelValues(endpoint).Observe(float64(len(inputs)))
	result := s.coordinator.ExtractBatch(r.Context(), inputs)
	apiRequestsTotal.WithLabelValues(endpoint, statusOK).Inc()
	apiExtractedTotal.WithLabelValues("success").Add(float64(len(result.Success)))
	apiExtractedTotal.WithLabelValues("fail").Add(float64(len(result.Fail)))
	return result
}

// writeJSON writes v as a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		extract.Logger(r.Context()).Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	if statusCode >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", r.URL.Path, "status", statusCode, "error", message,
			"request_id", RequestID(r.Context()))
	}
	s.writeJSON(w, r, statusCode, ErrorResponse{
		Success:   false,
		Error:     message,
		RequestID: RequestID(r.Context()),
	})
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "request body too large")
}

// countingReader counts the bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
