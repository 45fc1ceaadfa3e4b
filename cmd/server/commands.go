package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/phrazzld/recipe-queue/internal/config"
	"github.com/phrazzld/recipe-queue/internal/platform/logger"
	"github.com/phrazzld/recipe-queue/internal/platform/postgres"
	"github.com/phrazzld/recipe-queue/internal/task"
	"github.com/spf13/cobra"
)

var migrateCommands = []string{
	postgres.MigrateUp,
	postgres.MigrateDown,
	postgres.MigrateReset,
	postgres.MigrateStatus,
	postgres.MigrateVersion,
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "recipe-queue",
		Short:         "Queue-backed recipe generation service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ./config.yaml or ./config/config.yaml)")

	root.AddCommand(
		newServeCmd(&configPath),
		newGenerateCmd(&configPath),
		newMigrateCmd(&configPath),
	)
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the generation worker loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func newGenerateCmd(configPath *string) *cobra.Command {
	var complexity string

	cmd := &cobra.Command{
		Use:   "generate <request>",
		Short: "Generate one recipe synchronously and print the task report as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			app, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer app.close()

			report, runErr := app.service.RunSync(ctx, strings.Join(args, " "), complexity)
			var pipelineErr *task.PipelineError
			if runErr != nil && !errors.As(runErr, &pipelineErr) {
				return runErr
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&complexity, "complexity", string(task.ComplexityMedium), "recipe complexity: easy, medium or high")
	return cmd
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [" + strings.Join(migrateCommands, "|") + "]",
		Short:     "Apply or inspect the recipe archive schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: migrateCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := postgres.MigrateUp
			if len(args) == 1 {
				command = args[0]
			}

			cfg, err := config.LoadFile(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.Setup(cfg.Server)
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("database.url is not configured")
			}

			ctx := cmd.Context()
			db, err := postgres.Open(ctx, cfg.Database, log)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			return postgres.Migrate(ctx, db, log, command)
		},
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
