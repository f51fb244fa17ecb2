package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/device"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/differences"
)

// Snapshot is the golden form of a result set: indented JSON with a trailing
// newline. Field order follows the struct definitions, so output is stable.
func Snapshot(results []*Result) ([]byte, error) {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden runs s on devices and compares the results against
// testdata/golden/{scenario name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, r *Runner, s *Scenario, devices []device.Device) []*Result {
	t.Helper()

	results, err := r.RunDevices(context.Background(), s, devices)
	if err != nil {
		t.Fatalf("run %s: %v", s.Name, err)
	}
	AssertGolden(t, s.Name, results)
	return results
}

// AssertGolden compares results against a golden file without re-running.
func AssertGolden(t *testing.T, name string, results []*Result) {
	t.Helper()

	data, err := Snapshot(results)
	if err != nil {
		t.Fatalf("snapshot %s: %v", name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, differences.Sanitize(name, 0), data)
}
