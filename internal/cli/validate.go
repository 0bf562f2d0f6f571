package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/listorder/internal/config"
	"github.com/roach88/listorder/internal/ordering"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool          `json:"valid"`
	Store string        `json:"store"`
	Lock  string        `json:"lock"`
	Lists []ListSummary `json:"lists"`
}

// ListSummary describes one configured list.
type ListSummary struct {
	Name       string   `json:"name"`
	Collection string   `json:"collection"`
	Column     string   `json:"column"`
	Scope      []string `json:"scope"`
	Placement  string   `json:"placement"`
}

func (r ValidationResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ configuration valid (store %s, lock %s)", r.Store, r.Lock)
	for _, l := range r.Lists {
		fmt.Fprintf(&b, "\n  %s: %s.%s scope=[%s] placement=%s",
			l.Name, l.Collection, l.Column, strings.Join(l.Scope, ","), l.Placement)
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate a configuration without opening the store",
		Long: `Load a YAML or CUE configuration, apply LISTORDER_* environment
overrides and check it. CUE files are checked against the embedded schema
first. The file defaults to --config.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.ConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(cmd, rootOpts, path)
		},
	}

	return cmd
}

func runValidate(cmd *cobra.Command, opts *RootOptions, path string) error {
	out := opts.formatter(cmd)

	cfg, err := config.Load(path)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	out.VerboseLog("Loaded %d list(s) from %q", len(cfg.Lists), path)

	result := ValidationResult{
		Valid: true,
		Store: cfg.Store.Driver,
		Lock:  cfg.Lock.Driver,
	}
	if result.Lock == "" {
		result.Lock = "none"
	}
	names := make([]string, 0, len(cfg.Lists))
	for name := range cfg.Lists {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		l := cfg.Lists[name]
		oc, err := l.Ordering()
		if err != nil {
			return out.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
		}
		column := oc.Column
		if column == "" {
			column = ordering.DefaultColumn
		}
		result.Lists = append(result.Lists, ListSummary{
			Name:       name,
			Collection: l.Collection,
			Column:     column,
			Scope:      append([]string{}, l.Scope...),
			Placement:  oc.Placement.String(),
		})
	}
	return out.Success(result)
}
