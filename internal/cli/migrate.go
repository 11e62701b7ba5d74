package cli

import (
	"log/slog"

	"github.com/mern-testing/server/internal/database"
	"github.com/mern-testing/server/internal/lifecycle"
	"github.com/mern-testing/server/internal/logger"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	Long: `Applies pending migrations to DATABASE_URL, or to the default local database when it is unset.
Ephemeral databases are migrated when the server starts, so this command never provisions one.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		target := lifecycle.SelectTarget("", cfg.DatabaseURL)

		conn, err := database.Connect(cmd.Context(), target.URL, database.OptionsFromConfig(cfg))
		if err != nil {
			appLogger.Error("Database connection error", slog.String("error", err.Error()))
			return err
		}
		defer conn.Close()

		if err := database.Migrate(cmd.Context(), conn.Pool, appLogger); err != nil {
			appLogger.Error("Migration failed", slog.String("error", err.Error()))
			return err
		}

		appLogger.Info("Migrations applied", slog.String("uri", logger.RedactURL(target.URL)))
		return nil
	},
}
