package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/trackscan/internal/extract"
	"github.com/MeKo-Tech/trackscan/internal/ocr"
	"github.com/MeKo-Tech/trackscan/internal/server"
	"github.com/cucumber/godog"
)

// startTestHTTPServer serves the extraction API from an httptest server
// backed by the scenario's scripted engine.
func (testCtx *TestContext) startTestHTTPServer(mutate func(*server.Config)) error {
	adapter, err := ocr.NewAdapter(testCtx.Engine)
	if err != nil {
		return err
	}
	processor, err := extract.NewProcessor(adapter, nil)
	if err != nil {
		return err
	}
	coordinator, err := extract.NewCoordinator(processor, extract.Options{Workers: 2})
	if err != nil {
		return err
	}

	cfg := server.Config{
		Host:           "127.0.0.1",
		CORSOrigin:     "*",
		MaxUploadMB:    5,
		TimeoutSec:     30,
		MaxBatchImages: 10,
		Engine:         server.EngineInfo{Backend: "scripted"},
		Version:        "test",
	}
	if mutate != nil {
		mutate(&cfg)
	}

	s, err := server.NewServer(cfg, coordinator)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	testCtx.HTTPTestServer = httptest.NewServer(s.Handler())
	return nil
}

func (testCtx *TestContext) theServerIsRunning() error {
	return testCtx.startTestHTTPServer(nil)
}

func (testCtx *TestContext) theServerIsRunningWithARateLimitOf(perMinute int) error {
	return testCtx.startTestHTTPServer(func(c *server.Config) {
		c.RateLimitEnabled = true
		c.RateLimit = server.RateLimitConfig{RequestsPerMinute: perMinute}
	})
}

func (testCtx *TestContext) do(req *http.Request) error {
	if testCtx.HTTPTestServer == nil {
		return fmt.Errorf("server is not running")
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	testCtx.LastHTTPHeaders = resp.Header
	return nil
}

func (testCtx *TestContext) iGET(path string) error {
	req, err := http.NewRequest(http.MethodGet, testCtx.HTTPTestServer.URL+path, nil) //nolint:noctx // test request
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

// iSendTheLabelsTo posts the named files as a JSON batch with the file
// names as identifiers.
func (testCtx *TestContext) iSendTheLabelsTo(names, path string) error {
	var body server.ExtractRequest
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		data, err := os.ReadFile(filepath.Join(testCtx.TempDir, name)) //nolint:gosec // G304: scenario file
		if err != nil {
			return err
		}
		body.Images = append(body.Images, extract.ImageInput{ID: name, Bytes: data})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, testCtx.HTTPTestServer.URL+path, bytes.NewReader(payload)) //nolint:noctx // test request
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return testCtx.do(req)
}

func (testCtx *TestContext) iPOSTTo(path string, doc *godog.DocString) error {
	req, err := http.NewRequest(http.MethodPost, testCtx.HTTPTestServer.URL+path, strings.NewReader(doc.Content)) //nolint:noctx // test request
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return testCtx.do(req)
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("expected status %d, got %d\nbody:\n%s", code, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(expected string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, expected) {
		return fmt.Errorf("response does not contain %q\nbody:\n%s", expected, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldBeTheBatch(doc *godog.DocString) error {
	var got, want extract.BatchResult
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &got); err != nil {
		return fmt.Errorf("response is not a batch result: %w", err)
	}
	if err := json.Unmarshal([]byte(doc.Content), &want); err != nil {
		return fmt.Errorf("expected batch is invalid: %w", err)
	}
	if !sameBatch(got, want) {
		return fmt.Errorf("unexpected batch result\ngot:\n%s", testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldNotBeEmpty(name string) error {
	if testCtx.LastHTTPHeaders.Get(name) == "" {
		return fmt.Errorf("response header %s is empty", name)
	}
	return nil
}

// sameBatch compares two results ignoring order and geometry.
func sameBatch(a, b extract.BatchResult) bool {
	if len(a.Success) != len(b.Success) || len(a.Fail) != len(b.Fail) {
		return false
	}
	numbers := make(map[string]string, len(a.Success))
	for _, s := range a.Success {
		numbers[s.ID] = s.TrackNumber
	}
	for _, s := range b.Success {
		if n, ok := numbers[s.ID]; !ok || n != s.TrackNumber {
			return false
		}
	}
	failed := make(map[string]int, len(a.Fail))
	for _, id := range a.Fail {
		failed[id]++
	}
	for _, id := range b.Fail {
		if failed[id] == 0 {
			return false
		}
		failed[id]--
	}
	return true
}

// RegisterServerSteps registers the HTTP API steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the server is running$`, testCtx.theServerIsRunning)
	sc.Step(`^the server is running with a rate limit of (\d+) requests? per minute$`,
		testCtx.theServerIsRunningWithARateLimitOf)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I send the labels "([^"]*)" to "([^"]*)"$`, testCtx.iSendTheLabelsTo)
	sc.Step(`^I POST to "([^"]*)":$`, testCtx.iPOSTTo)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response should be the batch:$`, testCtx.theResponseShouldBeTheBatch)
	sc.Step(`^the response header "([^"]*)" should not be empty$`, testCtx.theResponseHeaderShouldNotBeEmpty)
}
