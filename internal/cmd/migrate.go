package cmd

import (
	"github.com/spf13/cobra"

	"bulkops/internal/config"
	"bulkops/internal/infrastructure/database"
)

func NewMigrateCommand() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			return database.Migrate(cfg.DB.MigrationsPath, cfg.GetDBMigrationConnectionString(), !down, logger)
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back every migration instead of applying them")
	return cmd
}
