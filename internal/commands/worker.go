package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	"fintrack/internal/sheets/google"
	"fintrack/internal/worker"
)

type workerFlags struct {
	once          bool
	skipStartSync bool
}

func newWorkerCommand(g *globalFlags) *cobra.Command {
	f := &workerFlags{}
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Mirror ledgers into Google Sheets from AMQP events and a scheduled resync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd, g, f)
		},
	}
	cmd.Flags().BoolVar(&f.once, "once", false, "resync every user once and exit")
	cmd.Flags().BoolVar(&f.skipStartSync, "skip-startup-sync", false, "do not resync every user on startup")
	return cmd
}

func runWorker(cmd *cobra.Command, g *globalFlags, f *workerFlags) error {
	cfg, logger, err := g.setup(cmd, applog.ComponentWorker)
	if err != nil {
		return err
	}
	if !cfg.SheetsEnabled() {
		return errors.New("worker requires GOOGLE_SPREADSHEET_ID")
	}

	ctx := commandContext(cmd)
	// The worker only reads ledgers; it never publishes.
	a, err := newApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	exporter, err := google.New(ctx, sheetsConfig(cfg))
	if err != nil {
		return fmt.Errorf("initialize Google Sheets client: %w", err)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	syncWorker := worker.NewSyncWorker(a.registry, exporter, a.users)
	if f.once {
		return syncWorker.ResyncAll(ctx)
	}

	if cfg.AMQPURL == "" {
		return errors.New("worker requires AMQP_URL unless --once is given")
	}
	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("initialize AMQP client: %w", err)
	}
	defer consumer.Close()

	scheduler, err := worker.NewScheduler(syncWorker, cfg.ResyncSchedule, cfg.ResyncTimeout)
	if err != nil {
		return err
	}

	ctx, done := cli.GracefulShutdown(ctx, logger, shutdownTimeout, func(context.Context) {
		scheduler.Stop()
	})

	if !f.skipStartSync {
		logger.Info("Performing startup resync")
		if err := scheduler.RunNow(ctx); err != nil {
			logger.Error("Startup resync failed", applog.FieldError, err)
		}
	}

	scheduler.Start(ctx)
	logger.Info("Resync scheduled", "schedule", cfg.ResyncSchedule, "next", scheduler.Next())

	err = consumer.ConsumeWithRetry(ctx, syncWorker.HandleEvent)
	<-ctx.Done()
	<-done
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Worker shutdown complete")
	return nil
}

func sheetsConfig(cfg *config.Config) google.Config {
	return google.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		TabPrefix:       cfg.GoogleTabPrefix,
	}
}
