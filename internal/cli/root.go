// Package cli holds the server's cobra commands.
package cli

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/mern-testing/server/internal/config"
	"github.com/mern-testing/server/internal/logger"
	"github.com/mern-testing/server/internal/version"
	"github.com/spf13/cobra"
)

var (
	cfg       *config.ServerEnvironment
	appLogger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:               "server",
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	Short:             "mern-testing API server",
	Long: `Starts the API server. In test mode, and in development mode without DATABASE_URL,
a throwaway PostgreSQL instance is started and removed again on shutdown.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.NewServerConfig()
		if err != nil {
			log.Printf("failed to load configuration: %v", err.Error())
			return err
		}

		appLogger = logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.EnvironmentName())
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runServer(cmd.Context()))
	},
}

func Execute() {
	v := version.Get()
	rootCmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
}
