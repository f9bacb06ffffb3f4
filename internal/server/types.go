// Package server exposes tracking number extraction over HTTP and WebSocket.
package server

import (
	"errors"
	"net/http"

	"github.com/MeKo-Tech/trackscan/internal/extract"
	"github.com/MeKo-Tech/trackscan/internal/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	coordinator    *extract.Coordinator
	corsOrigin     string
	maxUploadMB    int64
	maxBatchImages int
	timeoutSec     int
	rateLimiter    *RateLimiter
	engine         EngineInfo
	version        string
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	MaxBatchImages int

	// RateLimitEnabled turns on per-client limits from RateLimit.
	RateLimitEnabled bool
	RateLimit        RateLimitConfig

	Engine  EngineInfo
	Version string
}

// EngineInfo describes the recognition engine for GET /models.
type EngineInfo struct {
	Backend   string             `json:"backend"`
	ModelsDir string             `json:"models_dir,omitempty"`
	Models    []models.ModelInfo `json:"models,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// ModelsResponse is returned by GET /models.
type ModelsResponse struct {
	EngineInfo
	Count   int    `json:"count"`
	Workers int    `json:"workers"`
	Keyword string `json:"keyword"`
}

// ExtractRequest is the body of POST /extract.
type ExtractRequest struct {
	Images []extract.ImageInput `json:"images"`
}

// HashResponse is returned by POST /hash.
type HashResponse struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// ErrorResponse is the body of every JSON error.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// NewServer creates a server that answers extraction requests with coordinator.
// The caller owns the engine behind coordinator.
func NewServer(config Config, coordinator *extract.Coordinator) (*Server, error) {
	if coordinator == nil {
		return nil, errors.New("coordinator is nil")
	}

	s := &Server{
		coordinator:    coordinator,
		corsOrigin:     config.CORSOrigin,
		maxUploadMB:    config.MaxUploadMB,
		maxBatchImages: config.MaxBatchImages,
		timeoutSec:     config.TimeoutSec,
		engine:         config.Engine,
		version:        config.Version,
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 50
	}
	if s.maxBatchImages <= 0 {
		s.maxBatchImages = 500
	}
	if config.RateLimitEnabled {
		s.rateLimiter = NewRateLimiter(config.RateLimit)
	}
	return s, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.requestIDMiddleware(s.corsMiddleware(s.healthHandler)))
	mux.HandleFunc("/models", s.requestIDMiddleware(s.corsMiddleware(s.modelsHandler)))
	mux.HandleFunc("/extract", s.requestIDMiddleware(s.corsMiddleware(s.rateLimitMiddleware(s.extractHandler))))
	mux.HandleFunc("/extract/upload",
		s.requestIDMiddleware(s.corsMiddleware(s.rateLimitMiddleware(s.uploadHandler))))
	mux.HandleFunc("/hash", s.requestIDMiddleware(s.corsMiddleware(s.rateLimitMiddleware(s.hashHandler))))
	mux.HandleFunc("/report", s.requestIDMiddleware(s.corsMiddleware(s.rateLimitMiddleware(s.reportHandler))))
	mux.HandleFunc("/ws/extract", s.requestIDMiddleware(s.rateLimitMiddleware(s.extractWebSocketHandler)))
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with all routes installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

func (s *Server) maxBodyBytes() int64 {
	return s.maxUploadMB * 1024 * 1024
}
