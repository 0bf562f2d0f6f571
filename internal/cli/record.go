package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/listorder/internal/ir"
	"github.com/roach88/listorder/internal/ordering"
)

// Record is the output view of one stored record.
type Record struct {
	ID       string    `json:"id"`
	Position *int64    `json:"position"`
	Fields   ir.Object `json:"fields"`
}

func newRecord(list *ordering.List, doc *ir.Document) Record {
	r := Record{ID: doc.ID, Fields: doc.Fields}
	if pos, ok := list.Position(doc); ok {
		r.Position = &pos
	}
	if r.Fields == nil {
		r.Fields = ir.Object{}
	}
	return r
}

func (r Record) String() string {
	pos := "-"
	if r.Position != nil {
		pos = fmt.Sprint(*r.Position)
	}
	body, err := r.Fields.MarshalJSON()
	if err != nil {
		body = []byte("{}")
	}
	return fmt.Sprintf("%4s  %s  %s", pos, r.ID, body)
}

// RecordList is the output view of show.
type RecordList []Record

func (l RecordList) String() string {
	if len(l) == 0 {
		return "No records."
	}
	lines := make([]string, len(l))
	for i, r := range l {
		lines[i] = r.String()
	}
	return strings.Join(lines, "\n")
}

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Fields []string // key=value pairs
	JSON   string   // JSON object of fields
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a record and place it in its list",
		Long: `Create a record from the given fields and place it at the bottom of
its scope (or the top, for lists configured with placement: top).

Values given with --field are parsed as JSON when possible, so 5 is an
integer and "5" is a string. A position field in the input is ignored.

Examples:
  listorder create --field parent_id=5 --field title=docs
  listorder create --json '{"parent_id": 5}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Fields, "field", "f", nil, "field as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.JSON, "json", "", "fields as a JSON object")

	return cmd
}

func runCreate(cmd *cobra.Command, opts *CreateOptions) error {
	out := opts.formatter(cmd)
	fields, err := parseFields(opts.JSON, opts.Fields)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
	}

	return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app) error {
		doc, err := a.repo.Create(ctx, fields)
		if err != nil {
			return a.out.Fail(ExitCommandError, ErrCodeOperation, err.Error(), nil)
		}
		return a.out.Success(newRecord(a.repo.List(), doc))
	})
}

// parseFields builds a field object from a JSON object and key=value
// pairs. Pairs override keys of the JSON object.
func parseFields(raw string, pairs []string) (ir.Object, error) {
	fields := ir.Object{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return nil, fmt.Errorf("invalid --json: %w", err)
		}
	}
	kv, err := parsePairs(pairs)
	if err != nil {
		return nil, err
	}
	for k, v := range kv {
		fields[k] = v
	}
	return fields, nil
}

// parsePairs parses key=value pairs. Values go through ir.ParseValue.
func parsePairs(pairs []string) (ir.Object, error) {
	obj := ir.Object{}
	for _, p := range pairs {
		key, raw, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid pair %q: expected key=value", p)
		}
		v, err := ir.ParseValue(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		obj[key] = v
	}
	return obj, nil
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Take a record out of its list without deleting it",
		Long: `Clear the record's position and close the gap it leaves. The record
stays in the collection. Removing a record that is not in a list does
nothing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecordOp(cmd, rootOpts, "remove", args[0], func(list *ordering.List) recordOp {
				return list.RemoveFromList
			})
		},
	}
}

// NewDestroyCommand creates the destroy command.
func NewDestroyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy <id>",
		Short: "Delete a record and close the gap it leaves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				doc, err := a.repo.Get(ctx, id)
				if err != nil {
					return a.opError("destroy", id, err)
				}
				if err := a.repo.Destroy(ctx, doc); err != nil {
					return a.opError("destroy", id, err)
				}
				return a.out.Success(newRecord(a.repo.List(), doc))
			})
		},
	}
}

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Scope []string // key=value scope fields
	All   bool     // include records outside the list
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show one record or the records of a scope in order",
		Long: `With an id, show that record. Otherwise list the records matching
--scope by position. Without --scope every listed record of the
collection is shown. --all appends the records that are not in a list.

Examples:
  listorder show --scope parent_id=5
  listorder show --scope parent_id=5 --all --format json
  listorder show 0190f1c2-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runShowOne(cmd, opts, args[0])
			}
			return runShow(cmd, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Scope, "scope", "s", nil, "scope field as key=value (repeatable)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "include records outside the list")

	return cmd
}

func runShowOne(cmd *cobra.Command, opts *ShowOptions, id string) error {
	return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app) error {
		doc, err := a.repo.Get(ctx, id)
		if err != nil {
			return a.opError("show", id, err)
		}
		return a.out.Success(newRecord(a.repo.List(), doc))
	})
}

func runShow(cmd *cobra.Command, opts *ShowOptions) error {
	out := opts.formatter(cmd)
	scope, err := parsePairs(opts.Scope)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
	}

	return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app) error {
		docs, err := a.repo.Ordered(ctx, scope)
		if err != nil {
			return a.out.Fail(ExitCommandError, ErrCodeOperation, err.Error(), nil)
		}
		if opts.All {
			unlisted, err := a.repo.Unlisted(ctx, scope)
			if err != nil {
				return a.out.Fail(ExitCommandError, ErrCodeOperation, err.Error(), nil)
			}
			docs = append(docs, unlisted...)
		}
		records := make(RecordList, len(docs))
		for i, d := range docs {
			records[i] = newRecord(a.repo.List(), d)
		}
		return a.out.Success(records)
	})
}
