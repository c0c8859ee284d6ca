package cmd

import (
	"context"
	"fmt"
	"os"

	"spark-backend/internal/changefeed"
	"spark-backend/internal/config"
	"spark-backend/internal/repository"
	"spark-backend/internal/repository/memory"
	"spark-backend/internal/repository/mongostore"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// rootOptions holds the flags shared by every command
type rootOptions struct {
	ConfigPath string
}

// Execute runs the CLI and exits non-zero on failure
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "spark",
		Short:         "Spark dating backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "config.yaml", "path to the YAML config file")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))

	return cmd
}

// loadConfig reads and validates the configuration, then sets up logging
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	setupLogger(cfg.Log.Level)
	return cfg, nil
}

// backend is an opened storage driver together with the change feed
// that fits it
type backend struct {
	stores    *repository.Stores
	broker    *changefeed.Broker
	publisher changefeed.Publisher
	// relay, when set, must run for the lifetime of the server
	relay func(ctx context.Context)
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	broker := changefeed.NewBroker()

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		stores, db, err := repository.OpenPostgres(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, err
		}
		// changes are fanned out through LISTEN/NOTIFY so every replica sees them
		notifier := changefeed.NewPGNotifier(db, broker)
		return &backend{stores: stores, broker: broker, publisher: notifier, relay: notifier.Relay}, nil

	case config.DriverMongo:
		db, err := mongostore.Connect(ctx, cfg.Database.MongoURI, cfg.Database.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return &backend{stores: db.Stores(), broker: broker, publisher: broker}, nil

	case config.DriverMemory:
		log.Warn().Msg("Using in-memory storage; data is lost on restart")
		return &backend{stores: memory.New().Stores(), broker: broker, publisher: broker}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
