package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the readings table and index if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// openStore bootstraps the schema as part of opening
			_, db, err := openStore(context.Background(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			log.Info().Str("store", string(cfg.Store)).Msg("schema is up to date")
			return nil
		},
	}
}
