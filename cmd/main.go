package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/app"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/config"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/logger"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	root := &cobra.Command{
		Use:   "scope-engine",
		Short: "Research a technology project and turn it into a priced service scope",
		Long: `scope-engine researches a technology project with large language models and
produces a structured scope: services, subservices, scoping questions and hours.

With no subcommand it runs the HTTP API (same as "serve").`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          serve.RunE,
	}
	root.AddCommand(serve)
	root.AddCommand(newGenerateCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			a, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				log.Error("Failed to init app", "error", err)
				return err
			}
			defer a.Close()

			if err := a.Run(cmd.Context()); err != nil {
				log.Error("Server failed", "error", err)
				return err
			}
			return nil
		},
	}
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}
