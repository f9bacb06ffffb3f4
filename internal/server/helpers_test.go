package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/trackscan/internal/extract"
	"github.com/MeKo-Tech/trackscan/internal/ocr"
	"github.com/MeKo-Tech/trackscan/internal/testutil"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           8080,
		CORSOrigin:     "*",
		MaxUploadMB:    10,
		TimeoutSec:     30,
		MaxBatchImages: 50,
		Engine:         EngineInfo{Backend: ocr.BackendONNX, ModelsDir: "models"},
		Version:        "test",
	}
}

// newTestServer builds a server over a scripted engine. mutate, when not nil,
// adjusts the config first.
func newTestServer(t *testing.T, engine ocr.Engine, mutate func(*Config)) *Server {
	t.Helper()
	adapter, err := ocr.NewAdapter(engine)
	require.NoError(t, err)
	p, err := extract.NewProcessor(adapter, nil)
	require.NoError(t, err)
	c, err := extract.NewCoordinator(p, extract.Options{Workers: 4})
	require.NoError(t, err)

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewServer(cfg, c)
	require.NoError(t, err)
	return s
}

// serve sends req through the full route table.
func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type uploadFile struct {
	name string
	data []byte
}

func multipartRequest(t *testing.T, path string, files []uploadFile, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		fw, err := mw.CreateFormFile(uploadField, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBatch(t *testing.T, rec *httptest.ResponseRecorder) extract.BatchResult {
	t.Helper()
	var result extract.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result
}

// successIDs maps success ids to tracking numbers.
func successIDs(result extract.BatchResult) map[string]string {
	out := make(map[string]string, len(result.Success))
	for _, s := range result.Success {
		out[s.ID] = s.TrackNumber
	}
	return out
}

// Compile-time check that the scripted engine fits the adapter.
var _ ocr.Engine = (*testutil.ScriptedEngine)(nil)
