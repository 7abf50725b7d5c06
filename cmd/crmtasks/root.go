package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"crm-tasks/internal/config"
	"crm-tasks/internal/notify"
	"crm-tasks/internal/repository"
	"crm-tasks/internal/service"
)

var flagOutput string

var rootCmd = &cobra.Command{
	Use:   "crmtasks",
	Short: "Recurring task scheduler for the CRM",
	Long: `crmtasks keeps recurring task templates materialized into concrete
occurrences up to a rolling horizon. Run "serve" for the scheduled batch or
"materialize" for a single pass.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		switch flagOutput {
		case outputText, outputJSON, outputYAML:
			return nil
		default:
			return fmt.Errorf("unknown output format %q (text, json, yaml)", flagOutput)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", outputText, "output format (text, json, yaml)")
}

// app holds the storage and services shared by the commands.
type app struct {
	cfg          config.Config
	db           *gorm.DB
	store        *repository.Store
	templates    *service.TemplateService
	occurrences  *service.OccurrenceService
	materializer *service.Materializer
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	store := repository.NewStore(db)
	return &app{
		cfg:          cfg,
		db:           db,
		store:        store,
		templates:    service.NewTemplateService(store),
		occurrences:  service.NewOccurrenceService(store),
		materializer: service.NewMaterializer(store),
	}, nil
}

func (a *app) Close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (a *app) batch() *service.BatchService {
	return service.NewBatchService(a.store, a.materializer, service.BatchOptions{
		Workers:        a.cfg.Workers,
		Notifier:       a.notifier(),
		MaxPerTemplate: a.cfg.MaxPerTemplate,
	})
}

// notifier falls back to the log when Telegram is not configured or the
// token is rejected.
func (a *app) notifier() service.Notifier {
	if !a.cfg.TelegramEnabled() {
		return notify.LogNotifier{}
	}
	n, err := notify.NewTelegramNotifier(a.cfg.TelegramToken, a.cfg.OperatorChatID)
	if err != nil {
		log.Printf("[warn] telegram notifications disabled: %v", err)
		return notify.LogNotifier{}
	}
	return n
}

// withApp opens the app for the duration of run.
func withApp(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a, args)
	}
}
