package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	domusage "github.com/kailas-cloud/rollup/internal/domain/usage"
)

// NewUsageCommand creates the usage command.
func NewUsageCommand(rootOpts *RootOptions) *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show operation units used by the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, ok := domusage.ParsePeriod(period)
			if !ok {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid period %q: must be day or month", period))
			}

			a, err := rootOpts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			r := a.Usage.GetReport(cmd.Context(), p)
			b := r.Budget()
			return writeOutput(cmd.OutOrStdout(), rootOpts.Format, usageOutput{
				Period:         string(r.Period()),
				Scope:          r.Scope(),
				Start:          time.UnixMilli(r.PeriodStart()).UTC(),
				End:            time.UnixMilli(r.PeriodEnd()).UTC(),
				UnitsUsed:      r.UnitsUsed(),
				UnitsLimit:     b.UnitsLimit(),
				UnitsRemaining: b.UnitsRemaining(),
				Exhausted:      b.IsExhausted(),
			})
		},
	}

	cmd.Flags().StringVar(&period, "period", "day", "aggregation period (day|month)")

	return cmd
}

type usageOutput struct {
	Period         string    `json:"period"`
	Scope          string    `json:"scope"`
	Start          time.Time `json:"period_start"`
	End            time.Time `json:"period_end"`
	UnitsUsed      int64     `json:"units_used"`
	UnitsLimit     int64     `json:"units_limit"`
	UnitsRemaining int64     `json:"units_remaining"`
	Exhausted      bool      `json:"is_exhausted"`
}

func (u usageOutput) renderText(w io.Writer) error {
	limit := "unlimited"
	if u.UnitsLimit > 0 {
		limit = fmt.Sprintf("%d (remaining %d)", u.UnitsLimit, u.UnitsRemaining)
	}
	_, err := fmt.Fprintf(w, "%s %s %s..%s: used %d, limit %s\n",
		u.Scope, u.Period, u.Start.Format(time.DateOnly), u.End.Format(time.DateOnly), u.UnitsUsed, limit)
	return err
}
