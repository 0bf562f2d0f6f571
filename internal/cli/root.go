package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string // YAML or CUE configuration file
	List       string // configured list to operate on
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the listorder CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "listorder",
		Short: "listorder - ordered lists over a document store",
		Long: `Keep records of a collection in dense 1..N positions per scope.

Records are created at the bottom (or top) of their list, moved, inserted
at a position, removed from the list and destroyed, while every other
record in the same scope is shifted to keep positions contiguous.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return opts.formatter(cmd).Fail(ExitCommandError, ErrCodeInvalidArg,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "configuration file (.yaml or .cue)")
	cmd.PersistentFlags().StringVarP(&opts.List, "list", "l", "", "configured list to use")

	// Add subcommands
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewMoveCommand(opts))
	cmd.AddCommand(NewInsertAtCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewDestroyCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// Execute runs the root command with os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}
