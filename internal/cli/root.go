package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/unfoldindia/unfold/internal/config"
	"github.com/unfoldindia/unfold/internal/logging"
	"github.com/unfoldindia/unfold/internal/store"
)

var rootCmd = &cobra.Command{
	Use:          "unfold",
	Short:        "Travel companion backend for Unfold India",
	Long:         "Unfold serves the travel-guide chat, per-user message retention and memoized progress insights.",
	SilenceUsage: true,
}

var dbPathFlag string

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "database path (default ~/.unfold/unfold.db, or UNFOLD_DB_PATH)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(routeCmd)
}

// loadConfig reads .env and the environment, then applies flags.
func loadConfig() (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, err
	}
	if dbPathFlag != "" {
		cfg.Database.Path = dbPathFlag
	}
	return cfg, logging.New(cfg.Log), nil
}

func openDB(cfg config.Config, logger *logrus.Logger) (*store.DB, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetLogger(logger)
	return db, nil
}
