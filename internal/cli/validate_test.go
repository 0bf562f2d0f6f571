package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configTestdata = filepath.Join("..", "config", "testdata")

func TestValidate_YAML(t *testing.T) {
	out, err := execute(t, "validate", filepath.Join(configTestdata, "tasks.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ configuration valid (store sqlite, lock mutex)")
	assert.Contains(t, out, "cards: cards.position scope=[board_id,lane] placement=top")
	assert.Contains(t, out, "tasks: tasks.pos scope=[project_id] placement=bottom")
}

func TestValidate_CUEJSON(t *testing.T) {
	out, err := execute(t, "validate", filepath.Join(configTestdata, "tasks.cue"), "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.NotEmpty(t, resp.Data.Lists)
}

func TestValidate_UsesConfigFlag(t *testing.T) {
	cfg, _ := sqliteConfig(t)
	out, err := execute(t, "validate", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "tasks: tasks.position scope=[project] placement=bottom")
}

func TestValidate_Defaults(t *testing.T) {
	out, err := execute(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "default: items.position scope=[] placement=bottom")
}

func TestValidate_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lists:\n  tasks:\n    collection: tasks\n    placement: middle\n"), 0644))

	out, err := execute(t, "validate", path, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "unknown placement")
}
