package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/listorder/internal/ir"
)

// sqliteConfig writes a configuration with one scoped list over a fresh
// SQLite file and returns the config path and the database path.
func sqliteConfig(t *testing.T) (cfgPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "tasks.db")
	cfgPath = filepath.Join(dir, "listorder.yaml")
	body := `store:
  driver: sqlite
  path: ` + dbPath + `
lock:
  driver: mutex
metrics:
  enabled: true
lists:
  tasks:
    collection: tasks
    scope: project
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0644))
	return cfgPath, dbPath
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type recordResponse struct {
	Status string `json:"status"`
	Data   Record `json:"data"`
}

type listResponse struct {
	Status string   `json:"status"`
	Data   []Record `json:"data"`
}

// runJSON runs a command with --format json against cfgPath and decodes
// the response into v.
func runJSON(t *testing.T, cfgPath string, v any, args ...string) {
	t.Helper()
	args = append(args, "--format", "json", "--config", cfgPath)
	out, err := execute(t, args...)
	require.NoError(t, err, out)
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

func createTask(t *testing.T, cfgPath, project, title string) Record {
	t.Helper()
	var resp recordResponse
	runJSON(t, cfgPath, &resp, "create", "--field", "project="+project, "--field", "title="+title)
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func showTitles(t *testing.T, cfgPath string, args ...string) []string {
	t.Helper()
	var resp listResponse
	runJSON(t, cfgPath, &resp, append([]string{"show"}, args...)...)
	titles := make([]string, len(resp.Data))
	for i, r := range resp.Data {
		title, _ := r.Fields["title"].(ir.String)
		titles[i] = string(title)
	}
	return titles
}
