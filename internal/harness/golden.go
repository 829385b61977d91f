package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/wardenlab/warden/internal/runner"
)

// ReportSnapshot pairs a scenario with its verification report for
// golden comparison.
type ReportSnapshot struct {
	Scenario string         `json:"scenario"`
	Report   *runner.Report `json:"report"`
}

// RunWithGolden executes a scenario and compares its report against
// the golden file testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	report, err := Run(context.Background(), scenario)
	if err != nil {
		return err
	}

	AssertGolden(t, scenario.Name, report)
	return nil
}

// AssertGolden compares an already-obtained report against the named
// golden file.
func AssertGolden(t *testing.T, scenarioName string, report *runner.Report) {
	t.Helper()

	snapshot := ReportSnapshot{Scenario: scenarioName, Report: report}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		t.Fatalf("marshal report snapshot: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
}
