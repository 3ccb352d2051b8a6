package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
)

// NewReferenceCommand creates the reference command group.
func NewReferenceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Manage reference codes used by report criteria",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "put <type> <code> <id>",
		Short:   "Register the identifier behind a code",
		Example: "  rollupctl reference put currency GBP 2",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.References.Put(cmd.Context(), args[0], args[1], args[2]); err != nil {
				return WrapExitError(ExitFailure, "put reference", err)
			}
			return writeOutput(cmd.OutOrStdout(), rootOpts.Format,
				referenceOutput{Type: args[0], Codes: map[string]string{args[1]: args[2]}})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list <type>",
		Short: "List registered codes of a reference type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			codes, err := a.References.List(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "list references", err)
			}
			return writeOutput(cmd.OutOrStdout(), rootOpts.Format, referenceOutput{Type: args[0], Codes: codes})
		},
	})

	return cmd
}

type referenceOutput struct {
	Type  string            `json:"type"`
	Codes map[string]string `json:"codes"`
}

func (o referenceOutput) renderText(w io.Writer) error {
	codes := make([]string, 0, len(o.Codes))
	for c := range o.Codes {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	for _, c := range codes {
		fmt.Fprintf(w, "%s\t%s\t%s\n", o.Type, c, o.Codes[c])
	}
	return nil
}
