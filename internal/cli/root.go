// Package cli wires configuration, storage and the realtime hub into cobra commands.
package cli

import (
	"os"

	"inventory-sync-api/internal/config"
	"inventory-sync-api/internal/database"
	"inventory-sync-api/internal/logging"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// Main runs the root command and exits non-zero on failure.
func Main() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "inventory-sync",
		Short:         "Warehouse inventory sync hub",
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (yaml)")

	root.AddCommand(serveCmd(&cfgPath))
	root.AddCommand(migrateCmd(&cfgPath))
	root.AddCommand(createUserCmd(&cfgPath))
	root.AddCommand(watchCmd(&cfgPath))
	return root
}

// setup loads config and builds the logger every command starts from.
func setup(cmd *cobra.Command, cfgPath string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Out:    cmd.ErrOrStderr(),
	})
	return cfg, logger, nil
}

func openDB(cfg *config.Config, logger zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Open(database.Options{
		Path:      cfg.Database.Path,
		LogLevel:  cfg.Database.LogLevel,
		LogOutput: logger.With().Str("component", "gorm").Logger(),
	})
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return db, nil
}
