package cmd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/MeKo-Tech/trackscan/internal/ocr"
	"github.com/MeKo-Tech/trackscan/internal/testutil"
)

type cliResult struct {
	stdout string
	stderr string
	err    error
}

// isolate runs the test in a fresh directory with no user config in reach.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

// run executes the command tree with engine behind every extraction.
func run(t *testing.T, engine *testutil.ScriptedEngine, stdin []byte, args ...string) cliResult {
	t.Helper()
	factory := func(ocr.EngineConfig) (ocr.Engine, error) { return engine, nil }
	if engine == nil {
		factory = func(ocr.EngineConfig) (ocr.Engine, error) { return nil, errors.New("no engine in this test") }
	}

	root := NewRootCommandWithEngine(factory)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(bytes.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}
