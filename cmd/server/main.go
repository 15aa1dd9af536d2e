package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Skotchmaster/hospital_portal/internal/config"
	"github.com/Skotchmaster/hospital_portal/internal/db"
	"github.com/Skotchmaster/hospital_portal/internal/logging"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "hospital-portal",
		Short:        "Hospital portal authentication and session API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(pruneTokensCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap loads configuration and opens the database shared by every command.
func bootstrap(ctx context.Context) (*config.Config, zerolog.Logger, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}
	logger := logging.New(cfg.Log.Level, cfg.AppEnv).With().Str("service", cfg.AppName).Logger()

	gdb, err := db.Open(ctx, cfg.Database)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Database.Driver).Msg("database connection failed")
		return nil, logger, nil, err
	}
	return cfg, logger, gdb, nil
}
