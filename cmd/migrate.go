package cmd

import (
	"context"
	"time"

	"spark-backend/internal/config"
	"spark-backend/internal/repository"
	"spark-backend/internal/repository/mongostore"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables or indexes for the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			return migrate(ctx, cfg)
		},
	}
}

func migrate(ctx context.Context, cfg *config.Config) error {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		stores, db, err := repository.OpenPostgres(ctx, cfg.Database.DSN())
		if err != nil {
			return err
		}
		defer stores.Close(ctx)
		return repository.Migrate(ctx, db)

	case config.DriverMongo:
		db, err := mongostore.Connect(ctx, cfg.Database.MongoURI, cfg.Database.MongoDatabase)
		if err != nil {
			return err
		}
		defer db.Stores().Close(ctx)
		return db.EnsureIndexes(ctx)

	default:
		log.Info().Str("driver", cfg.Database.Driver).Msg("Nothing to migrate")
		return nil
	}
}
