package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/listorder/internal/ir"
	"github.com/roach88/listorder/internal/repository"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Scope []string // key=value scope fields
}

// CheckResult is the output of the check command.
type CheckResult struct {
	OK      bool                         `json:"ok"`
	Reports []repository.IntegrityReport `json:"reports"`
}

func (r CheckResult) String() string {
	if len(r.Reports) == 0 {
		return "No listed records."
	}
	var b strings.Builder
	for i, rep := range r.Reports {
		if i > 0 {
			b.WriteByte('\n')
		}
		scope, err := ir.MarshalCanonical(rep.Scope)
		if err != nil {
			scope = []byte("?")
		}
		mark := "✓"
		if !rep.OK() {
			mark = "✗"
		}
		fmt.Fprintf(&b, "%s %s  %d record(s), bottom %d", mark, scope, rep.Count, rep.Bottom)
		if len(rep.Gaps) > 0 {
			fmt.Fprintf(&b, "\n  gaps: %v", rep.Gaps)
		}
		for _, d := range rep.Duplicates {
			fmt.Fprintf(&b, "\n  duplicate %d: %s", d.Position, strings.Join(d.IDs, ", "))
		}
		if len(rep.OutOfRange) > 0 {
			fmt.Fprintf(&b, "\n  below 1: %s", strings.Join(rep.OutOfRange, ", "))
		}
	}
	return b.String()
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that list positions are dense",
		Long: `Report gaps, duplicate positions and positions below 1. With --scope
only that partition is checked, otherwise every partition holding a
listed record. Nothing is repaired.

Exit codes:
  0 - All checked partitions hold exactly 1..N
  1 - At least one partition is damaged
  2 - Command error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Scope, "scope", "s", nil, "scope field as key=value (repeatable)")

	return cmd
}

func runCheck(cmd *cobra.Command, opts *CheckOptions) error {
	out := opts.formatter(cmd)
	scope, err := parsePairs(opts.Scope)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
	}

	return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app) error {
		var reports []repository.IntegrityReport
		if len(scope) > 0 {
			report, err := a.repo.CheckIntegrity(ctx, scope)
			if err != nil {
				return a.out.Fail(ExitCommandError, ErrCodeOperation, err.Error(), nil)
			}
			reports = []repository.IntegrityReport{report}
		} else {
			reports, err = a.repo.CheckAll(ctx)
			if err != nil {
				return a.out.Fail(ExitCommandError, ErrCodeOperation, err.Error(), nil)
			}
		}

		result := CheckResult{OK: true, Reports: reports}
		for _, r := range reports {
			if !r.OK() {
				result.OK = false
				a.log.Warn("list damaged", "scope", r.Scope, "gaps", len(r.Gaps), "duplicates", len(r.Duplicates))
			}
		}
		if result.OK {
			return a.out.Success(result)
		}
		if a.out.Format == "json" {
			if err := a.out.Error(ErrCodeIntegrity, "list positions are not dense", result); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(a.out.Writer, result)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%s: list positions are not dense", ErrCodeIntegrity))
	})
}
