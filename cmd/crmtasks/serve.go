package main

import (
	"log"
	"time"

	"github.com/spf13/cobra"

	"crm-tasks/internal/service"
)

var flagServeRunNow bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the materialization batch on its schedule",
	Long: `Registers the batch on MATERIALIZE_AT (daily, HH:MM local time) or
MATERIALIZE_EVERY and runs until interrupted. A tick is skipped while the
previous run is still active.`,
	Args: cobra.NoArgs,
	RunE: withApp(runServe),
}

func init() {
	serveCmd.Flags().BoolVar(&flagServeRunNow, "run-now", false, "run one batch immediately on startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, a *app, _ []string) error {
	ctx := cmd.Context()
	batch := a.batch()

	scheduler := service.NewSchedulerService(time.Local)
	trigger := service.Trigger{At: a.cfg.MaterializeAt, Interval: a.cfg.MaterializeEvery}
	id, err := scheduler.ScheduleBatch(batch, trigger, a.cfg.HorizonDays, a.cfg.RunTimeout)
	if err != nil {
		return err
	}

	if flagServeRunNow {
		if _, err := batch.MaterializePendingDays(ctx, a.cfg.HorizonDays); err != nil {
			log.Printf("[error] startup run: %v", err)
		}
	}

	scheduler.Start()
	log.Printf("[info] scheduler started, horizon %d days, %d workers, next run %s",
		a.cfg.HorizonDays, a.cfg.Workers, scheduler.Next(id).Format(time.RFC3339))

	<-ctx.Done()
	log.Println("[info] shutting down, waiting for the running batch")
	scheduler.Stop()
	log.Println("[info] shutdown complete")
	return nil
}
