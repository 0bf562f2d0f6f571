package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/listorder/internal/config"
)

// Scenario is one ordering scenario.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description"`

	// List configures the ordering engine. Collection is ignored.
	List config.ListConfig `yaml:"list"`

	// Setup steps run before the first snapshot.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow steps are snapshotted one by one.
	Flow []Step `yaml:"flow"`

	// Assertions are checked after the flow.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one operation on one record.
type Step struct {
	Op string `yaml:"op"`
	// Ref names the record. create introduces a new ref.
	Ref string `yaml:"ref"`
	// Fields are the initial fields of a created record.
	Fields map[string]any `yaml:"fields,omitempty"`
	// Position is the insert_at target. Zero means 1.
	Position int64 `yaml:"position,omitempty"`
}

func (s Step) String() string {
	if s.Op == OpInsertAt {
		return fmt.Sprintf("%s %s %d", s.Op, s.Ref, s.target())
	}
	return s.Op + " " + s.Ref
}

func (s Step) target() int64 {
	if s.Position == 0 {
		return 1
	}
	return s.Position
}

// Assertion checks the state after the flow.
type Assertion struct {
	Type     string         `yaml:"type"`
	Scope    map[string]any `yaml:"scope,omitempty"`
	Refs     []string       `yaml:"refs,omitempty"`
	Ref      string         `yaml:"ref,omitempty"`
	Position int64          `yaml:"position,omitempty"`
}

// Operation names.
const (
	OpCreate            = "create"
	OpDestroy           = "destroy"
	OpInsertAt          = "insert_at"
	OpMoveToTop         = "move_to_top"
	OpMoveToBottom      = "move_to_bottom"
	OpMoveHigher        = "move_higher"
	OpMoveLower         = "move_lower"
	OpRemoveFromList    = "remove_from_list"
	OpIncrementPosition = "increment_position"
	OpDecrementPosition = "decrement_position"
)

// Assertion type constants.
const (
	AssertOrder     = "order"
	AssertPosition  = "position"
	AssertNotInList = "not_in_list"
	AssertDense     = "dense"
)

var knownOps = map[string]bool{
	OpCreate: true, OpDestroy: true, OpInsertAt: true,
	OpMoveToTop: true, OpMoveToBottom: true, OpMoveHigher: true, OpMoveLower: true,
	OpRemoveFromList: true, OpIncrementPosition: true, OpDecrementPosition: true,
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarioFiles returns the .yaml and .yml files under dir, sorted.
// A non-empty filter is a glob matched against the file name without
// extension.
func FindScenarioFiles(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// validateScenario checks that required fields are present and that every
// ref is created before it is used.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if _, err := s.List.Ordering(); err != nil {
		return fmt.Errorf("list: %w", err)
	}

	refs := make(map[string]bool)
	check := func(section string, i int, step Step) error {
		if !knownOps[step.Op] {
			return fmt.Errorf("%s[%d]: unknown op %q", section, i, step.Op)
		}
		if step.Ref == "" {
			return fmt.Errorf("%s[%d]: ref is required", section, i)
		}
		if step.Op == OpCreate {
			if refs[step.Ref] {
				return fmt.Errorf("%s[%d]: ref %q already created", section, i, step.Ref)
			}
			refs[step.Ref] = true
			return nil
		}
		if !refs[step.Ref] {
			return fmt.Errorf("%s[%d]: ref %q is not created before use", section, i, step.Ref)
		}
		return nil
	}
	for i, step := range s.Setup {
		if err := check("setup", i, step); err != nil {
			return err
		}
	}
	for i, step := range s.Flow {
		if err := check("flow", i, step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, refs); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion, refs map[string]bool) error {
	switch a.Type {
	case AssertOrder:
		for _, r := range a.Refs {
			if !refs[r] {
				return fmt.Errorf("assertions[%d]: unknown ref %q", index, r)
			}
		}
	case AssertPosition:
		if a.Position < 1 {
			return fmt.Errorf("assertions[%d]: position assertion requires position >= 1", index)
		}
		fallthrough
	case AssertNotInList:
		if !refs[a.Ref] {
			return fmt.Errorf("assertions[%d]: unknown ref %q", index, a.Ref)
		}
	case AssertDense:
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown type %q", index, a.Type)
	}
	return nil
}
