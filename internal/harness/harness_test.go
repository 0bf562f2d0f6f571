package harness

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/listorder/internal/store"
	"github.com/roach88/listorder/internal/store/memory"
	"github.com/roach88/listorder/internal/store/sqlite"
)

var backends = map[string]func(t *testing.T) store.DocumentCollection{
	"memory": func(t *testing.T) store.DocumentCollection {
		c, err := memory.New().Collection("scenario")
		require.NoError(t, err)
		return c
	},
	"sqlite": func(t *testing.T) store.DocumentCollection {
		s, err := sqlite.Open(filepath.Join(t.TempDir(), "scenario.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		c, err := s.Collection("scenario")
		require.NoError(t, err)
		return c
	},
}

// TestScenarios replays every scenario on every backend against the same
// golden file.
func TestScenarios(t *testing.T) {
	files, err := FindScenarioFiles("testdata/scenarios", "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		scenario, err := LoadScenario(file)
		require.NoError(t, err, file)

		for name, open := range backends {
			t.Run(scenario.Name+"/"+name, func(t *testing.T) {
				result := RunWithGolden(t, scenario, open(t))
				assert.True(t, result.Pass, "errors: %v", result.Errors)
				assert.Len(t, result.Snapshots, len(scenario.Flow)+1)
			})
		}
	}
}

func TestRun_ReportsAssertionFailures(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong_expectations",
		Description: "assertions that do not hold",
		Setup: []Step{
			{Op: OpCreate, Ref: "a"},
			{Op: OpCreate, Ref: "b"},
		},
		Flow: []Step{{Op: OpMoveToTop, Ref: "b"}},
		Assertions: []Assertion{
			{Type: AssertOrder, Refs: []string{"a", "b"}},
			{Type: AssertPosition, Ref: "b", Position: 2},
			{Type: AssertNotInList, Ref: "a"},
			{Type: AssertDense},
		},
	}
	require.NoError(t, validateScenario(scenario))

	result, err := Run(context.Background(), scenario, backends["memory"](t))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "assertion failed: order")
	assert.Contains(t, result.Errors[0], "[b a]")
	assert.Contains(t, result.Errors[1], "b at 1")
	assert.Contains(t, result.Errors[2], "a at 2")
}

func TestRun_StopsOnStoreError(t *testing.T) {
	s := memory.New()
	coll, err := s.Collection("scenario")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	scenario := &Scenario{
		Name:        "closed",
		Description: "store closed before the run",
		Setup:       []Step{{Op: OpCreate, Ref: "a"}},
		Flow:        []Step{{Op: OpCreate, Ref: "b"}},
	}
	_, err = Run(context.Background(), scenario, coll)
	require.ErrorIs(t, err, store.ErrClosed)
	assert.Contains(t, err.Error(), "setup[0] create a")
}

func TestResultText(t *testing.T) {
	r := NewResult()
	r.Snapshots = append(r.Snapshots, Snapshot{
		Seq:  1,
		Step: "move_to_top b",
		Partitions: []Partition{
			{Scope: `{"p":1}`, Entries: []string{"b=1", "a=2"}},
		},
		Unlisted: []string{"c"},
	})
	assert.Equal(t, "# demo\n[1] move_to_top b\n  {\"p\":1}  b=1 a=2\n  unlisted  c\n", r.Text("demo"))
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown field", "name: x\ndescription: y\nflows: []\n", "failed to parse YAML"},
		{"missing name", "description: y\nflow: [{op: create, ref: a}]\n", "name is required"},
		{"missing flow", "name: x\ndescription: y\n", "flow list is required"},
		{"unknown op", "name: x\ndescription: y\nflow: [{op: shuffle, ref: a}]\n", `unknown op "shuffle"`},
		{"ref before create", "name: x\ndescription: y\nflow: [{op: move_to_top, ref: a}]\n", "not created before use"},
		{"duplicate create", "name: x\ndescription: y\nflow: [{op: create, ref: a}, {op: create, ref: a}]\n", "already created"},
		{"bad placement", "name: x\ndescription: y\nlist: {placement: middle}\nflow: [{op: create, ref: a}]\n", "list:"},
		{"bad assertion", "name: x\ndescription: y\nflow: [{op: create, ref: a}]\nassertions: [{type: shape}]\n", `unknown type "shape"`},
		{"position without value", "name: x\ndescription: y\nflow: [{op: create, ref: a}]\nassertions: [{type: position, ref: a}]\n", "position >= 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "s.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFindScenarioFiles(t *testing.T) {
	all, err := FindScenarioFiles("testdata/scenarios", "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	some, err := FindScenarioFiles("testdata/scenarios", "re*")
	require.NoError(t, err)
	require.Len(t, some, 2)
	for _, f := range some {
		assert.True(t, strings.HasPrefix(filepath.Base(f), "re"))
	}

	_, err = FindScenarioFiles("testdata/scenarios", "[")
	assert.Error(t, err)
}
