package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/expense-desk/internal/container"
	"github.com/garyjia/expense-desk/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		containerCfg, err := cfg.ToContainerConfig()
		if err != nil {
			return err
		}
		bundle, err := container.ProvideDatabase(&containerCfg.Database, logger)
		if err != nil {
			return err
		}
		defer bundle.Conn.Close()

		applied, err := database.NewMigrator(bundle.Conn, logger).AppliedVersions()
		if err != nil {
			return fmt.Errorf("read applied migrations: %w", err)
		}
		versions := make([]int, 0, len(applied))
		for v := range applied {
			versions = append(versions, v)
		}
		sort.Ints(versions)

		logger.Info("Database is up to date",
			zap.String("path", cfg.Database.Path),
			zap.Ints("versions", versions))
		fmt.Fprintf(cmd.OutOrStdout(), "applied migrations: %v\n", versions)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
