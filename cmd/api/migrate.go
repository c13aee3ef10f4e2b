package main

import (
	"fmt"

	"github.com/BradenHooton/accord/internal/config"
	"github.com/BradenHooton/accord/internal/database"
	"github.com/BradenHooton/accord/internal/repositories/mongostore"
	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply pending SQL migrations when STORE_DRIVER=postgres, or create
the collection indexes when STORE_DRIVER=mongo.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	switch cfg.Store.Driver {
	case config.StoreDriverMongo:
		client, err := database.ConnectMongo(ctx, &cfg.Mongo, logger)
		if err != nil {
			return fmt.Errorf("connect to mongo: %w", err)
		}
		defer func() { _ = client.Disconnect(ctx) }()

		if err := mongostore.EnsureIndexes(ctx, client.Database(cfg.Mongo.Database)); err != nil {
			return fmt.Errorf("create indexes: %w", err)
		}
	default:
		db, err := database.NewConnection(ctx, &cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		if err := database.Migrate(ctx, db.Pool, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	cmd.Println("Migrations completed successfully")
	return nil
}
