package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	reportuc "github.com/kailas-cloud/rollup/internal/usecase/report"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Strict bool
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Run the pending-approval sales order report once",
		Long: `Run the pending-approval sales order report under one run budget.

A run that stops early because the budget ran out still prints the rows it
collected and where it stopped. With --strict such a run exits with code 1.

Example:
  rollupctl report --format json
  rollupctl report --strict`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Report.Run(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "report failed", err)
			}
			if err := writeOutput(cmd.OutOrStdout(), opts.Format, reportOutput(res)); err != nil {
				return err
			}
			if opts.Strict && !res.Complete {
				return NewExitError(ExitFailure, fmt.Sprintf("report incomplete: %s", res.Reason))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 when the run stops before the last row")

	return cmd
}

type reportOutput reportuc.Result

func (r reportOutput) renderText(w io.Writer) error {
	fmt.Fprintf(w, "run %s: %d rows, %d pages, %d units, complete=%t",
		r.RunID, len(r.Records), r.Pages, r.UnitsUsed, r.Complete)
	if r.StoppedAt != nil {
		fmt.Fprintf(w, " (stopped at page %d row %d: %s)", r.StoppedAt.Page, r.StoppedAt.Row, r.Reason)
	}
	fmt.Fprintln(w)
	if len(r.Records) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRANID\tENTITY\tDATE\tSTATUS\tTOTAL\tCURRENCY")
	for _, so := range r.Records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
			so.TranID, so.Entity, so.TranDate, so.Status, so.Total, so.Currency)
	}
	return tw.Flush()
}
