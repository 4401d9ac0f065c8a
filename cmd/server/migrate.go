package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/table-reservation/internal/config"
	"github.com/iliyamo/table-reservation/internal/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadDatabase()
			log := newLogger(cfg.LogLevel)

			db, err := database.Open(dbOptions(cfg))
			if err != nil {
				return fmt.Errorf("db open: %w", err)
			}
			defer db.Close()

			applied, err := database.Migrate(context.Background(), db)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				log.Info("schema up to date")
				return nil
			}
			log.Info("migrations applied", "files", applied)
			return nil
		},
	}
}
