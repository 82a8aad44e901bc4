package cli

import (
	"fmt"

	"inventory-sync-api/internal/database"
	"inventory-sync-api/internal/handlers"
	"inventory-sync-api/internal/models"

	"github.com/spf13/cobra"
)

func migrateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd, *cfgPath)
			if err != nil {
				return err
			}
			db, err := openDB(cfg, logger)
			if err != nil {
				return err
			}
			defer database.Close(db)

			logger.Info().Str("path", cfg.Database.Path).Msg("Database migrated")
			return nil
		},
	}
}

func createUserCmd(cfgPath *string) *cobra.Command {
	var username, password, role string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user that can log in to the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd, *cfgPath)
			if err != nil {
				return err
			}
			db, err := openDB(cfg, logger)
			if err != nil {
				return err
			}
			defer database.Close(db)

			user, err := handlers.CreateUser(db, username, password, models.Role(role))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id=%d username=%s role=%s\n", user.ID, user.Username, user.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&role, "role", string(models.RoleWarehouse), "admin, warehouse, supplier or retailer")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
