package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	domdoc "github.com/kailas-cloud/rollup/internal/domain/document"
	rollupuc "github.com/kailas-cloud/rollup/internal/usecase/rollup"
)

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <type> <id>...",
		Short: "Recompute the line summary of stored documents",
		Long: `Recompute the line summary of each document as if it had just been edited.

Documents whose summary is already current are skipped. Errors are reported
per document and make the command exit with code 1.

Example:
  rollupctl reconcile invoice inv-1001 inv-1002`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			out := reconcileOutput{Results: make([]reconcileResult, 0, len(args)-1)}
			failed := 0
			for _, id := range args[1:] {
				ref := domdoc.Ref{Type: args[0], ID: id}
				outcome, err := a.Rollup.Reconcile(cmd.Context(), ref)
				r := reconcileResult{ID: id, Outcome: outcome}
				if err != nil {
					r.Error = err.Error()
					failed++
				}
				out.Results = append(out.Results, r)
			}

			if err := writeOutput(cmd.OutOrStdout(), rootOpts.Format, out); err != nil {
				return err
			}
			if failed > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d of %d documents failed", failed, len(args)-1))
			}
			return nil
		},
	}
}

type reconcileResult struct {
	ID      string           `json:"id"`
	Outcome rollupuc.Outcome `json:"outcome"`
	Error   string           `json:"error,omitempty"`
}

type reconcileOutput struct {
	Results []reconcileResult `json:"results"`
}

func (o reconcileOutput) renderText(w io.Writer) error {
	for _, r := range o.Results {
		if r.Error != "" {
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.Outcome, r.Error)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", r.ID, r.Outcome)
	}
	return nil
}
