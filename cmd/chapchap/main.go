package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/payssd/chapchap-sub000/internal/bootstrap"
	"github.com/payssd/chapchap-sub000/internal/clock"
	"github.com/payssd/chapchap-sub000/internal/config"
	"github.com/payssd/chapchap-sub000/internal/migration"
	"github.com/payssd/chapchap-sub000/internal/observability"
	"github.com/payssd/chapchap-sub000/internal/payment"
	"github.com/payssd/chapchap-sub000/internal/payment/repository"
	"github.com/payssd/chapchap-sub000/internal/redis"
	"github.com/payssd/chapchap-sub000/internal/scheduler"
	"github.com/payssd/chapchap-sub000/internal/security/vault"
	"github.com/payssd/chapchap-sub000/internal/server"
	"github.com/payssd/chapchap-sub000/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "chapchap",
		Short:   "ChapChap payments API",
		Version: readVersionFromEnv(),
	}
	root.AddCommand(newMigrateCmd(), newServeCmd(), newPruneWebhooksCmd(), newAllCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and activate schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the payments API, webhook receiver and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe()
			return nil
		},
	}
}

func newPruneWebhooksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune-webhooks",
		Short: "Delete webhook events older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPruneWebhooks(cmd.Context())
		},
	}
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run migrations, then serve",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrate(); err != nil {
				return err
			}
			runServe()
			return nil
		},
	}
}

func runMigrate() error {
	app := fx.New(
		config.Module,
		observability.Module,
		db.Module,
		migration.Module,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

func runServe() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		fx.Invoke(migration.EnsureSqliteSchema),
		bootstrap.Module,
		fx.Invoke(bootstrap.EnforceSchemaGate),
		clock.Module,
		redis.Module,
		vault.Module,
		payment.Module,
		scheduler.Module,
		server.Module,
		fx.Invoke(startScheduler),
	)
	app.Run()
}

func runPruneWebhooks(ctx context.Context) error {
	var s *scheduler.Scheduler
	app := fx.New(
		config.Module,
		observability.Module,
		db.Module,
		clock.Module,
		repository.Module,
		scheduler.Module,
		fx.Populate(&s),
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() { _ = app.Stop(context.Background()) }()

	if ctx == nil {
		ctx = context.Background()
	}
	deleted, err := s.PruneWebhookEventsJob(ctx)
	if err != nil {
		return err
	}
	zap.L().Info("webhook events pruned", zap.Int64("deleted", deleted))
	return nil
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}

// startScheduler stops the loop with the app.
func startScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
