package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/iliyamo/table-reservation/internal/logger"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "table-reservation",
		Short: "Table reservation API with availability and conflict checks",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env is fine; the environment may already be set.
			_ = godotenv.Load()
		},
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newConsumeCmd())
	root.AddCommand(newTokenCmd())
	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(level string) *logger.Logger {
	return logger.New(logger.Config{
		Level:   level,
		Format:  os.Getenv("LOG_FORMAT"),
		Service: "table-reservation",
	})
}
