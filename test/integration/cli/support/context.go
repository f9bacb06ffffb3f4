// Package support holds the step definitions of the CLI feature suite.
//
// Commands run in-process against a scripted recognition engine, so the
// scenarios need neither model files nor ONNX Runtime.
package support

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/MeKo-Tech/trackscan/internal/testutil"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand string
	LastOutput  string
	LastStderr  string
	LastError   error

	// Test environment
	TempDir    string
	previousDir string
	savedEnv   map[string]*string
	Engine     *testutil.ScriptedEngine

	// HTTP state
	HTTPTestServer     *httptest.Server
	LastHTTPStatusCode int
	LastHTTPResponse   string
	LastHTTPHeaders    http.Header
}

// NewTestContext creates a scenario context working in a fresh temporary
// directory.
func NewTestContext() (*TestContext, error) {
	previous, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "trackscan-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	if err := os.Chdir(tempDir); err != nil {
		_ = os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to enter temp directory: %w", err)
	}

	testCtx := &TestContext{
		TempDir:    tempDir,
		previousDir: previous,
		savedEnv:   map[string]*string{},
		Engine:     testutil.NewScriptedEngine(),
	}
	// Keep user configuration out of reach.
	testCtx.SetEnv("HOME", tempDir)
	testCtx.SetEnv("XDG_CONFIG_HOME", tempDir)
	return testCtx, nil
}

// SetEnv sets an environment variable until Cleanup.
func (testCtx *TestContext) SetEnv(name, value string) {
	if _, saved := testCtx.savedEnv[name]; !saved {
		if old, ok := os.LookupEnv(name); ok {
			testCtx.savedEnv[name] = &old
		} else {
			testCtx.savedEnv[name] = nil
		}
	}
	_ = os.Setenv(name, value)
}

// Cleanup stops the server, restores the environment and the working
// directory and removes the temporary directory.
func (testCtx *TestContext) Cleanup() error {
	var errs []error

	if testCtx.HTTPTestServer != nil {
		testCtx.HTTPTestServer.Close()
		testCtx.HTTPTestServer = nil
	}

	for name, value := range testCtx.savedEnv {
		if value == nil {
			_ = os.Unsetenv(name)
		} else {
			_ = os.Setenv(name, *value)
		}
	}

	if err := os.Chdir(testCtx.previousDir); err != nil {
		errs = append(errs, fmt.Errorf("failed to restore working directory: %w", err))
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}
