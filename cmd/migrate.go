// Copyright © 2019 Andrei Gubarev <agubarev@protonmail.com>

package cmd

import (
	"context"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// migrateCmd creates the schema of the configured database
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema.",
	Long:  ``,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Database.Driver == database.DriverMemory {
			return errors.New("nothing to migrate for in-memory storage")
		}

		conn, err := database.Open(cfg.Database.Driver, cfg.Database.DSN, logger)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err = database.Migrate(context.Background(), conn); err != nil {
			return err
		}

		logger.Info("schema is up to date", zap.String("driver", cfg.Database.Driver))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
