// Package commands implements the fintrack command line.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fintrack/internal/cli"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
)

// Version is set at build time.
var Version = "dev"

type globalFlags struct {
	configFile string
	envFile    string
	logLevel   string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:     "fintrack",
		Short:   "Personal income and expense tracker",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	g.bind(rootCmd)

	rootCmd.AddCommand(
		newServeCommand(g),
		newWorkerCommand(g),
		newRegisterCommand(g),
		newBalanceCommand(g),
		newImportCommand(g),
		newAskCommand(g),
	)
	return rootCmd
}

// NewWorkerCommand returns the worker as a top-level command for the
// standalone worker binary.
func NewWorkerCommand() *cobra.Command {
	g := &globalFlags{}
	cmd := newWorkerCommand(g)
	cmd.Use = "fintrack-worker"
	cmd.Version = Version
	cmd.SilenceUsage = true
	g.bind(cmd)
	return cmd
}

// bind registers the global flags on cmd and loads the dotenv file before
// any subcommand runs.
func (g *globalFlags) bind(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&g.configFile, "config", "", "TOML configuration file (default $"+config.EnvConfigFile+")")
	cmd.PersistentFlags().StringVar(&g.envFile, "env-file", "", "dotenv file to load (default .env when present)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override LOG_LEVEL")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if g.envFile == "" {
			return cli.LoadEnvFile()
		}
		return cli.LoadEnvFile(g.envFile)
	}
}

// setup loads the configuration and installs the process logger.
func (g *globalFlags) setup(cmd *cobra.Command, component string) (*config.Config, *applog.Logger, error) {
	cfg, err := cli.LoadAndValidateConfig(g.configFile)
	if err != nil {
		return nil, nil, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	logger := cli.SetupLogger(cmd.ErrOrStderr(), cfg.Level(), component)
	return cfg, logger, nil
}

// openApp is setup plus the collaborators, for one-shot commands.
func (g *globalFlags) openApp(cmd *cobra.Command) (*app, error) {
	cfg, logger, err := g.setup(cmd, applog.ComponentCLI)
	if err != nil {
		return nil, err
	}
	return newApp(commandContext(cmd), cfg, logger, appOptions{publish: true})
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func requireFlag(name, value string) error {
	if value == "" {
		return fmt.Errorf("--%s is required", name)
	}
	return nil
}
