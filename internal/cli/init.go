// Package cli provides the process-level setup shared by the fintrack
// binaries: logging, .env loading, configuration and signal handling.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/config"
	applog "fintrack/internal/log"
)

// SetupLogger installs a text logger at level as the process default and
// returns it tagged with component.
func SetupLogger(w io.Writer, level slog.Level, component string) *applog.Logger {
	logger := applog.NewText(w, level, component)
	slog.SetDefault(logger.Logger)
	return logger
}

// LoadEnvFile loads .env files for local development. A missing file is not
// an error; a malformed one is.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadAndValidateConfig reads the configuration from path, or from the
// environment when path is empty, and validates it.
func LoadAndValidateConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.FromEnvironment()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. After
// the signal, cleanup runs with a context bounded by timeout; done is closed
// when it returns.
func GracefulShutdown(parent context.Context, logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (ctx context.Context, done <-chan struct{}) {
	ctx, cancel := context.WithCancel(parent)
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
			logger.Info("Context cancelled")
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, finished
}
