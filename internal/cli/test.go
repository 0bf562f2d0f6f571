package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/listorder/internal/harness"
	"github.com/roach88/listorder/internal/store"
	"github.com/roach88/listorder/internal/store/memory"
	"github.com/roach88/listorder/internal/store/sqlite"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // scenario filter (glob pattern)
	GoldenDir string // golden file directory
	Backend   string // memory | sqlite
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run ordering scenarios",
		Long: `Run scenario files against a fresh collection each and compare the
position snapshots with golden files.

Golden files are read from --golden (default: <scenarios-dir>/golden) as
<scenario name>.golden. A scenario without a golden file is judged by its
assertions alone.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  listorder test ./scenarios
  listorder test ./scenarios --filter "insert*"
  listorder test ./scenarios --backend sqlite
  listorder test ./scenarios --update`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden file directory")
	cmd.Flags().StringVar(&opts.Backend, "backend", "memory", "store backend (memory|sqlite)")

	return cmd
}

func runTests(cmd *cobra.Command, opts *TestOptions, scenariosDir string) error {
	out := opts.formatter(cmd)

	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return out.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenarios directory not found: %s", scenariosDir), nil)
	}
	if opts.Backend != "memory" && opts.Backend != "sqlite" {
		return out.Fail(ExitCommandError, ErrCodeInvalidArg, fmt.Sprintf("unknown backend %q: must be memory or sqlite", opts.Backend), nil)
	}
	if opts.GoldenDir == "" {
		opts.GoldenDir = filepath.Join(scenariosDir, "golden")
	}

	scenarioFiles, err := harness.FindScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeScenario, fmt.Sprintf("failed to find scenarios: %v", err), nil)
	}

	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}
	for _, scenarioFile := range scenarioFiles {
		scenResult := runScenario(cmd, opts, scenarioFile)
		result.Scenarios = append(result.Scenarios, scenResult)
		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		if err := outputTestJSON(cmd, result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// runScenario executes a single scenario and returns the result.
func runScenario(cmd *cobra.Command, opts *TestOptions, scenarioFile string) ScenarioResult {
	w := cmd.OutOrStdout()
	fail := func(name string, errs ...string) ScenarioResult {
		if opts.Format != "json" {
			fmt.Fprintf(w, "✗ %s\n", name)
			for _, e := range errs {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		return ScenarioResult{Name: name, Pass: false, Errors: errs}
	}
	pass := func(name, note string) ScenarioResult {
		if opts.Format != "json" {
			fmt.Fprintf(w, "✓ %s%s\n", name, note)
		}
		return ScenarioResult{Name: name, Pass: true}
	}

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return fail(filepath.Base(scenarioFile), fmt.Sprintf("failed to load scenario: %v", err))
	}

	coll, cleanup, err := scenarioCollection(opts.Backend, scenario.Name)
	if err != nil {
		return fail(scenario.Name, fmt.Sprintf("failed to open %s store: %v", opts.Backend, err))
	}
	defer cleanup()

	result, err := harness.Run(cmdContext(cmd), scenario, coll)
	if err != nil {
		return fail(scenario.Name, fmt.Sprintf("execution failed: %v", err))
	}
	text := result.Text(scenario.Name)
	goldenPath := filepath.Join(opts.GoldenDir, scenario.Name+".golden")

	if opts.Update {
		if err := writeGolden(goldenPath, text); err != nil {
			return fail(scenario.Name, fmt.Sprintf("failed to update golden file: %v", err))
		}
		if !result.Pass {
			return fail(scenario.Name, result.Errors...)
		}
		return pass(scenario.Name, " (golden updated)")
	}

	golden, err := os.ReadFile(goldenPath)
	switch {
	case os.IsNotExist(err):
		// No golden file - use assertion-based validation only
	case err != nil:
		return fail(scenario.Name, fmt.Sprintf("golden comparison failed: %v", err))
	case string(golden) != text:
		return fail(scenario.Name, "snapshots do not match golden file (run with --update to regenerate)")
	}

	if !result.Pass {
		return fail(scenario.Name, result.Errors...)
	}
	return pass(scenario.Name, "")
}

// scenarioCollection opens an empty collection on the chosen backend.
func scenarioCollection(backend, name string) (store.DocumentCollection, func(), error) {
	switch backend {
	case "sqlite":
		dir, err := os.MkdirTemp("", "listorder-scenario-")
		if err != nil {
			return nil, nil, err
		}
		s, err := sqlite.Open(filepath.Join(dir, "scenario.db"))
		if err != nil {
			os.RemoveAll(dir)
			return nil, nil, err
		}
		cleanup := func() {
			s.Close()
			os.RemoveAll(dir)
		}
		coll, err := s.Collection("scenario")
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		return coll, cleanup, nil
	default:
		coll, err := memory.New().Collection("scenario")
		if err != nil {
			return nil, nil, err
		}
		return coll, func() {}, nil
	}
}

// writeGolden writes text to path, creating the directory.
func writeGolden(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	return os.WriteFile(path, []byte(text), 0644)
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	status := "ok"
	if result.Failed > 0 {
		status = "error"
	}
	return json.NewEncoder(cmd.OutOrStdout()).Encode(CLIResponse{
		Status: status,
		Data:   result,
	})
}
