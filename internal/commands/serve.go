package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/cache"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
)

const (
	shutdownTimeout      = 30 * time.Second
	cacheCleanupInterval = time.Minute
)

func newServeCommand(g *globalFlags) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, g, port)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	return cmd
}

func runServe(cmd *cobra.Command, g *globalFlags, port string) error {
	cfg, logger, err := g.setup(cmd, applog.ComponentApp)
	if err != nil {
		return err
	}
	if port != "" {
		cfg.Port = port
	}

	ctx := commandContext(cmd)
	a, err := newApp(ctx, cfg, logger, appOptions{publish: true})
	if err != nil {
		return err
	}
	defer a.Close()

	classifier, err := a.classifier()
	if err != nil {
		return err
	}

	caches := cache.NewManager()
	caches.Register(a.registry.Cache())
	caches.StartCleanup(cacheCleanupInterval)
	defer caches.Stop()

	checks := []apphttp.ReadyCheck{{Name: "accounts_db", Check: a.users.Ping}}
	if a.publisher != nil {
		checks = append(checks, apphttp.ReadyCheck{Name: "amqp", Check: a.publisher.Check})
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Accounts:       a.registry,
		Auth:           a.auth,
		Importer:       classifier,
		Advisor:        a.advisor(ctx),
		CurrencySymbol: cfg.CurrencySymbol,
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.RateLimit,
			Burst:             cfg.RateBurst,
		},
		ReadyChecks: checks,
		Logger:      logger.WithComponent(applog.ComponentHTTP),
	})

	ctx, done := cli.GracefulShutdown(ctx, logger, shutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	})

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", a.publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully", "metrics", srv.Metrics())
	return nil
}
