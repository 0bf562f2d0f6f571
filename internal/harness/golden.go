package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/listorder/internal/store"
)

// RunWithGolden runs the scenario on coll, fails the test on assertion
// errors, and compares the snapshot text with
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, coll store.DocumentCollection) *Result {
	t.Helper()

	result, err := Run(context.Background(), scenario, coll)
	if err != nil {
		t.Fatalf("run %s: %v", scenario.Name, err)
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}

	AssertGolden(t, scenario.Name, result)
	return result
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(result.Text(name)))
}
