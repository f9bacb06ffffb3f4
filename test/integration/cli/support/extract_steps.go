package support

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/trackscan/internal/hashing"
	"github.com/MeKo-Tech/trackscan/internal/report"
	"github.com/cucumber/godog"
	"github.com/xuri/excelize/v2"
)

// jsonBatch mirrors the json output of the extract command.
type jsonBatch struct {
	Success []struct {
		ID          string `json:"id"`
		TrackNumber string `json:"track_number"`
	} `json:"success"`
	Fail []struct {
		ID string `json:"id"`
	} `json:"fail"`
	Total int `json:"total"`
}

func (testCtx *TestContext) lastBatch() (jsonBatch, error) {
	var b jsonBatch
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &b); err != nil {
		return b, fmt.Errorf("output is not a JSON batch: %w\n%s", err, testCtx.LastOutput)
	}
	return b, nil
}

func (testCtx *TestContext) theJSONOutputShouldList(successes, failures int) error {
	b, err := testCtx.lastBatch()
	if err != nil {
		return err
	}
	if len(b.Success) != successes || len(b.Fail) != failures {
		return fmt.Errorf("expected %d successes and %d failures, got %d and %d",
			successes, failures, len(b.Success), len(b.Fail))
	}
	if b.Total != successes+failures {
		return fmt.Errorf("total %d does not match %d inputs", b.Total, successes+failures)
	}
	return nil
}

func (testCtx *TestContext) theTrackingNumberOfShouldBe(name, number string) error {
	b, err := testCtx.lastBatch()
	if err != nil {
		return err
	}
	for _, s := range b.Success {
		if filepath.Base(s.ID) == name {
			if s.TrackNumber != number {
				return fmt.Errorf("tracking number of %s is %s, want %s", name, s.TrackNumber, number)
			}
			return nil
		}
	}
	return fmt.Errorf("%s is not in the success list", name)
}

func (testCtx *TestContext) shouldBeInTheFailList(name string) error {
	b, err := testCtx.lastBatch()
	if err != nil {
		return err
	}
	for _, f := range b.Fail {
		if filepath.Base(f.ID) == name || strings.HasPrefix(filepath.Base(f.ID), name+"#") {
			return nil
		}
	}
	return fmt.Errorf("%s is not in the fail list", name)
}

func (testCtx *TestContext) theReportShouldContainInRow(name, number string, row int) error {
	f, err := excelize.OpenFile(filepath.Join(testCtx.TempDir, name))
	if err != nil {
		return fmt.Errorf("failed to open report: %w", err)
	}
	defer func() { _ = f.Close() }()

	value, err := f.GetCellValue(report.SheetName, fmt.Sprintf("B%d", row))
	if err != nil {
		return err
	}
	if value != number {
		return fmt.Errorf("row %d holds %q, want %q", row, value, number)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldListTheHashOf(name string) error {
	data, err := os.ReadFile(filepath.Join(testCtx.TempDir, name)) //nolint:gosec // G304: scenario file
	if err != nil {
		return err
	}
	return testCtx.theOutputShouldContain(hashing.Sum(data))
}

// RegisterExtractSteps registers steps that inspect extraction results.
func (testCtx *TestContext) RegisterExtractSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the JSON output should list (\d+) success(?:es)? and (\d+) failures?$`, testCtx.theJSONOutputShouldList)
	sc.Step(`^the tracking number of "([^"]*)" should be "([^"]*)"$`, testCtx.theTrackingNumberOfShouldBe)
	sc.Step(`^"([^"]*)" should be in the fail list$`, testCtx.shouldBeInTheFailList)
	sc.Step(`^the report "([^"]*)" should contain "([^"]*)" in row (\d+)$`, testCtx.theReportShouldContainInRow)
	sc.Step(`^the output should contain the hash of "([^"]*)"$`, testCtx.theOutputShouldListTheHashOf)
}
