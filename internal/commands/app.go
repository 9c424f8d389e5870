package commands

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/backend"
	"fintrack/internal/clients/gemini"
	"fintrack/internal/config"
	"fintrack/internal/importer"
	"fintrack/internal/insights"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// app holds the collaborators built from one configuration.
type app struct {
	cfg       *config.Config
	logger    *applog.Logger
	users     *storage.UserStore
	registry  *services.Registry
	auth      *auth.Service
	publisher *amqp.Client
}

type appOptions struct {
	// publish connects to AMQP when a URL is configured.
	publish bool
}

func newApp(ctx context.Context, cfg *config.Config, logger *applog.Logger, opts appOptions) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	users, err := storage.NewUserStore(storage.AccountsDBPath(cfg.DataDir))
	if err != nil {
		return nil, fmt.Errorf("open accounts database: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, users: users}

	secret := cfg.JWTSecret
	if secret == "" {
		secret = ephemeralSecret()
		logger.Warn("JWT_SECRET not set; tokens will not survive a restart")
	}
	a.auth, err = auth.NewService(users, secret, auth.WithTokenTTL(cfg.TokenTTL))
	if err != nil {
		a.Close()
		return nil, err
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	factory, err := backend.NewFactory(backendCfg, logger.Logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create ledger backend: %w", err)
	}

	registryOpts := []services.RegistryOption{
		services.WithCacheSize(cfg.AccountCacheSize),
		services.WithIdleTTL(cfg.AccountIdleTTL),
	}
	if opts.publish && cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Sheets converge on the next scheduled resync.
			logger.Error("Failed to connect to AMQP; ledger events disabled", applog.FieldError, err)
		} else {
			a.publisher = client
			registryOpts = append(registryOpts, services.WithPublisher(client))
			logger.Info("Publishing ledger events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	a.registry = services.NewRegistry(factory, registryOpts...)

	logger.DebugContext(ctx, "Application initialized",
		"backend", cfg.DataBackend, "data_dir", cfg.DataDir)
	return a, nil
}

// classifier builds the import classifier, loading keyword rules when a
// rules file is configured.
func (a *app) classifier() (*importer.Classifier, error) {
	if a.cfg.CategoryRulesFile == "" {
		return importer.NewClassifier(), nil
	}
	rules, err := importer.LoadRules(a.cfg.CategoryRulesFile)
	if err != nil {
		return nil, err
	}
	return importer.NewClassifier(importer.WithCategorizer(importer.NewCategorizer(rules))), nil
}

// advisor builds the insight advisor. Without an API key, or when the
// client cannot be created, answers come from the local fallback.
func (a *app) advisor(ctx context.Context) *insights.Advisor {
	opts := []insights.AdvisorOption{
		insights.WithTimeout(a.cfg.InsightsTimeout),
		insights.WithCurrencySymbol(a.cfg.CurrencySymbol),
	}
	if a.cfg.GeminiAPIKey == "" {
		a.logger.Info("GEMINI_API_KEY not set; insights use the local summary")
		return insights.NewAdvisor(opts...)
	}

	client, err := gemini.NewClient(ctx, a.cfg.GeminiAPIKey,
		gemini.WithModel(a.cfg.GeminiModel),
		gemini.WithTemperature(float32(a.cfg.InsightsTemperature)),
		gemini.WithMaxTokens(int32(a.cfg.InsightsMaxTokens)),
		gemini.WithLogger(a.logger.WithComponent(applog.ComponentInsights).Logger),
	)
	if err != nil {
		a.logger.Error("Failed to create Gemini client; insights use the local summary", applog.FieldError, err)
		return insights.NewAdvisor(opts...)
	}
	return insights.NewAdvisor(append(opts, insights.WithGenerator(client))...)
}

// account opens the ledgers of email, which must be a registered user. The
// caller releases it through a.registry.
func (a *app) account(ctx context.Context, email string) (*services.Account, error) {
	if _, err := a.users.Get(ctx, email); err != nil {
		return nil, fmt.Errorf("unknown user %q: %w", email, err)
	}
	return a.registry.Open(ctx, email)
}

// Close releases every collaborator and joins their errors.
func (a *app) Close() error {
	var errs []error
	if a.registry != nil {
		errs = append(errs, a.registry.Close())
	}
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.users != nil {
		errs = append(errs, a.users.Close())
	}
	return errors.Join(errs...)
}

func ephemeralSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("read random secret: %v", err))
	}
	return hex.EncodeToString(b)
}
