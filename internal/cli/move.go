package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/listorder/internal/ir"
	"github.com/roach88/listorder/internal/ordering"
)

// recordOp is an ordering operation on one loaded record.
type recordOp func(ctx context.Context, doc *ir.Document) error

// moveOps maps move directions to list operations.
var moveOps = map[string]func(list *ordering.List) recordOp{
	"top":    func(l *ordering.List) recordOp { return l.MoveToTop },
	"bottom": func(l *ordering.List) recordOp { return l.MoveToBottom },
	"higher": func(l *ordering.List) recordOp { return l.MoveHigher },
	"lower":  func(l *ordering.List) recordOp { return l.MoveLower },
}

// NewMoveCommand creates the move command.
func NewMoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "move {top|bottom|higher|lower} <id>",
		Short: "Move a record within its list",
		Long: `Move a record to the top or bottom of its list, or swap it with its
higher or lower neighbour. Moving a record that is not in a list, or
past either end, does nothing.

Examples:
  listorder move top 0190f1c2-...
  listorder move lower 0190f1c2-... --list tasks`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"top", "bottom", "higher", "lower"},
		RunE: func(cmd *cobra.Command, args []string) error {
			op, ok := moveOps[args[0]]
			if !ok {
				return rootOpts.formatter(cmd).Fail(ExitCommandError, ErrCodeInvalidArg,
					fmt.Sprintf("unknown direction %q: must be top, bottom, higher or lower", args[0]), nil)
			}
			return runRecordOp(cmd, rootOpts, "move "+args[0], args[1], op)
		},
	}
}

// NewInsertAtCommand creates the insert-at command.
func NewInsertAtCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "insert-at <id> [position]",
		Short: "Insert a record at a position of its list",
		Long: `Put the record at position (default 1) and shift the records at that
position and below down by one. A record outside the list joins it.

Arguments starting with a dash are read as flags, so pass "--" before a
position that starts with one:

  listorder insert-at <id> -- -1`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := int64(1)
			if len(args) == 2 {
				n, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil || n < 1 {
					return rootOpts.formatter(cmd).Fail(ExitCommandError, ErrCodeInvalidArg,
						fmt.Sprintf("invalid position %q: must be a positive integer", args[1]), nil)
				}
				target = n
			}
			return runRecordOp(cmd, rootOpts, "insert-at", args[0], func(list *ordering.List) recordOp {
				return func(ctx context.Context, doc *ir.Document) error {
					return list.InsertAt(ctx, doc, target)
				}
			})
		},
	}
}

// runRecordOp reloads the record under its scope lock, applies the
// operation and prints the record as it ends up.
func runRecordOp(cmd *cobra.Command, opts *RootOptions, name, id string, op func(list *ordering.List) recordOp) error {
	return withApp(cmd, opts, func(ctx context.Context, a *app) error {
		doc, err := a.repo.Apply(ctx, id, op(a.repo.List()))
		if err != nil {
			return a.opError(name, id, err)
		}
		return a.out.Success(newRecord(a.repo.List(), doc))
	})
}
