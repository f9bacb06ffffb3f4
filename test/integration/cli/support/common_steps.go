package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/trackscan/cmd/trackscan/cmd"
	"github.com/MeKo-Tech/trackscan/internal/ocr"
	"github.com/cucumber/godog"
)

// writeFile writes data relative to the scenario directory.
func (testCtx *TestContext) writeFile(name string, data []byte) error {
	path := filepath.Join(testCtx.TempDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// aLabelWithTrackingNumber writes a label image the engine reads as a
// standard "Sendungsnummer" label.
func (testCtx *TestContext) aLabelWithTrackingNumber(name, number string) error {
	return testCtx.writeFile(name, testCtx.Engine.AddText("DHL Paket", "Sendungsnummer: "+number))
}

// aLabelWithTheLines writes a label image the engine reads as the given lines.
func (testCtx *TestContext) aLabelWithTheLines(name string, doc *godog.DocString) error {
	return testCtx.writeFile(name, testCtx.Engine.AddText(strings.Split(doc.Content, "\n")...))
}

// anUnreadableFile writes bytes no image decoder accepts.
func (testCtx *TestContext) anUnreadableFile(name string) error {
	return testCtx.writeFile(name, []byte("this is not an image"))
}

func (testCtx *TestContext) aFileWith(name string, doc *godog.DocString) error {
	return testCtx.writeFile(name, []byte(doc.Content+"\n"))
}

func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	testCtx.SetEnv(name, value)
	return nil
}

// iRunCommand runs a trackscan command line in-process.
func (testCtx *TestContext) iRunCommand(command string) error {
	args := strings.Fields(command)
	if len(args) > 0 && args[0] == "trackscan" {
		args = args[1:]
	}
	testCtx.LastCommand = command

	engine := testCtx.Engine
	root := cmd.NewRootCommandWithEngine(func(ocr.EngineConfig) (ocr.Engine, error) { return engine, nil })
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)

	testCtx.LastError = root.Execute()
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastError != nil {
		return fmt.Errorf("command %q failed: %w\nstderr:\n%s", testCtx.LastCommand, testCtx.LastError, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastError == nil {
		return fmt.Errorf("command %q succeeded unexpectedly\noutput:\n%s", testCtx.LastCommand, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(expected string) error {
	if !strings.Contains(testCtx.LastOutput, expected) {
		return fmt.Errorf("output does not contain %q\noutput:\n%s", expected, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(unexpected string) error {
	if strings.Contains(testCtx.LastOutput, unexpected) {
		return fmt.Errorf("output contains %q\noutput:\n%s", unexpected, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	if !json.Valid([]byte(testCtx.LastOutput)) {
		return fmt.Errorf("output is not valid JSON:\n%s", testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theErrorShouldMention(expected string) error {
	if testCtx.LastError == nil {
		return errors.New("no error occurred")
	}
	if !strings.Contains(testCtx.LastError.Error(), expected) {
		return fmt.Errorf("error %q does not mention %q", testCtx.LastError, expected)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	if _, err := os.Stat(filepath.Join(testCtx.TempDir, name)); err != nil {
		return fmt.Errorf("file %s does not exist: %w", name, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(name, expected string) error {
	data, err := os.ReadFile(filepath.Join(testCtx.TempDir, name)) //nolint:gosec // G304: scenario file
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), expected) {
		return fmt.Errorf("file %s does not contain %q:\n%s", name, expected, data)
	}
	return nil
}

// RegisterCommonSteps registers file, environment and command steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	// Fixtures
	sc.Step(`^a label "([^"]*)" with tracking number "([^"]*)"$`, testCtx.aLabelWithTrackingNumber)
	sc.Step(`^a label "([^"]*)" with the lines:$`, testCtx.aLabelWithTheLines)
	sc.Step(`^an unreadable file "([^"]*)"$`, testCtx.anUnreadableFile)
	sc.Step(`^a file "([^"]*)" with:$`, testCtx.aFileWith)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)

	// Execution
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)

	// Output
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)

	// Files
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
}
