package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var flagHorizonDays int

var materializeCmd = &cobra.Command{
	Use:   "materialize",
	Short: "Run one materialization batch and print the report",
	Args:  cobra.NoArgs,
	RunE:  withApp(runMaterialize),
}

func init() {
	materializeCmd.Flags().IntVar(&flagHorizonDays, "horizon-days", 0, "days ahead to materialize (default HORIZON_DAYS)")
	rootCmd.AddCommand(materializeCmd)
}

func runMaterialize(cmd *cobra.Command, a *app, _ []string) error {
	days := a.cfg.HorizonDays
	if cmd.Flags().Changed("horizon-days") {
		days = flagHorizonDays
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.RunTimeout)
	defer cancel()

	report, err := a.batch().MaterializePendingDays(ctx, days)
	if err != nil {
		return err
	}
	if err := render(os.Stdout, newReportView(report), func(w *tableWriter) { w.report(report) }); err != nil {
		return err
	}
	if len(report.Failures) > 0 {
		return errFailures(len(report.Failures))
	}
	return nil
}
