package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	harnessScenarios = filepath.Join("..", "harness", "testdata", "scenarios")
	harnessGolden    = filepath.Join("..", "harness", "testdata", "golden")
)

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	out, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "scenarios directory not found")
}

func TestTestCommandUnknownBackend(t *testing.T) {
	out, err := execute(t, "test", t.TempDir(), "--backend", "redis")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "unknown backend")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")

	out, err = execute(t, "test", t.TempDir(), "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
}

func TestTestCommandGoldenScenarios(t *testing.T) {
	for _, backend := range []string{"memory", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			out, err := execute(t, "test", harnessScenarios,
				"--golden", harnessGolden, "--backend", backend, "--format", "json")
			require.NoError(t, err, out)

			var resp struct {
				Status string     `json:"status"`
				Data   TestResult `json:"data"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "ok", resp.Status)
			assert.Equal(t, 4, resp.Data.Total)
			assert.Equal(t, 4, resp.Data.Passed)
			for _, s := range resp.Data.Scenarios {
				assert.True(t, s.Pass, "%s: %v", s.Name, s.Errors)
			}
		})
	}
}

func TestTestCommandFilter(t *testing.T) {
	out, err := execute(t, "test", harnessScenarios, "--golden", harnessGolden, "--filter", "insert*")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ insert_at")
	assert.NotContains(t, out, "reorder")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommandUpdateThenCompare(t *testing.T) {
	golden := t.TempDir()

	out, err := execute(t, "test", harnessScenarios, "--golden", golden, "--filter", "reorder", "--update")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ reorder (golden updated)")

	written, err := os.ReadFile(filepath.Join(golden, "reorder.golden"))
	require.NoError(t, err)
	expected, err := os.ReadFile(filepath.Join(harnessGolden, "reorder.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(expected), string(written))

	out, err = execute(t, "test", harnessScenarios, "--golden", golden, "--filter", "reorder")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ reorder\n")
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	golden := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(golden, "reorder.golden"), []byte("# reorder\n"), 0644))

	out, err := execute(t, "test", harnessScenarios, "--golden", golden, "--filter", "reorder")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ reorder")
	assert.Contains(t, out, "--update")
}

func TestTestCommandFailingAssertion(t *testing.T) {
	dir := t.TempDir()
	scenario := `name: wrong_order
description: asserts the reverse of creation order
list:
  column: pos
flow:
  - op: create
    ref: a
  - op: create
    ref: b
assertions:
  - type: order
    refs: [b, a]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong_order.yaml"), []byte(scenario), 0644))

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_order")
	assert.Contains(t, out, "0 passed, 1 failed, 1 total")
}
