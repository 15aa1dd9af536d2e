package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/hospital_portal/internal/db"
	"github.com/Skotchmaster/hospital_portal/internal/repo"
	"github.com/Skotchmaster/hospital_portal/internal/service"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the users and refresh_tokens tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, logger, gdb, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer db.Close(gdb)

			if err := db.Migrate(ctx, gdb); err != nil {
				logger.Error().Err(err).Msg("migration failed")
				return err
			}
			logger.Info().Msg("migration complete")
			return nil
		},
	}
}

func pruneTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune-tokens",
		Short: "Delete expired and revoked refresh tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			_, logger, gdb, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer db.Close(gdb)

			r := repo.New(gdb)
			svc := service.NewAuthService(service.Deps{Users: r, Tokens: r})

			n, err := svc.PruneExpired(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("prune failed")
				return err
			}
			logger.Info().Int64("deleted", n).Msg("refresh tokens pruned")
			return nil
		},
	}
}
