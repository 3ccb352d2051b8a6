// Package cli implements the rollupctl command tree.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rollup/internal/app"
	"github.com/kailas-cloud/rollup/internal/config"
	logpkg "github.com/kailas-cloud/rollup/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Env     string
	Format  string // "json" | "text"
	Verbose bool

	// Open wires the application. Tests replace it; nil means openApp.
	Open func(ctx context.Context, opts *RootOptions) (*app.App, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollupctl",
		Short: "Operate the rollup service",
		Long:  "Run the pending-approval report, reconcile document summaries and inspect unit usage.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Env, "env", config.GetEnv(), "config environment (local, dev, prod)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewUsageCommand(opts))
	cmd.AddCommand(NewReferenceCommand(opts))

	return cmd
}

func (o *RootOptions) open(ctx context.Context) (*app.App, error) {
	if o.Open != nil {
		return o.Open(ctx, o)
	}
	return openApp(ctx, o)
}

func openApp(ctx context.Context, opts *RootOptions) (*app.App, error) {
	cfg, err := config.Load(opts.Env)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}

	level := cfg.Logging.Level
	if opts.Verbose {
		level = "debug"
	} else if level == "" {
		level = "warn"
	}
	logger, err := logpkg.NewLogger(opts.Env, level)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "create logger", err)
	}

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, WrapExitError(ExitCommandError, "open app", err)
	}
	a.Logger.Debug("App opened", zap.String("env", opts.Env))
	return a, nil
}
