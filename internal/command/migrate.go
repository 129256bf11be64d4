package command

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/movie-library-api/internal/config"
	"github.com/iliyamo/movie-library-api/internal/database"
	"github.com/iliyamo/movie-library-api/internal/logging"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "apply or inspect the database schema migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}
			cfg, err := config.LoadDB()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := logging.New(cfg.LogLevel, cfg.LogFormat)

			db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, database.PoolConfig{
				MaxOpenConns:    cfg.DBMaxOpenConns,
				MaxIdleConns:    cfg.DBMaxIdleConns,
				ConnMaxLifetime: cfg.DBConnMaxLifetime,
			})
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() {
				if err := db.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()
			return database.Migrate(cmd.Context(), logger, db, direction)
		},
	}
}
