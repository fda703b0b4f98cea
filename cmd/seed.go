/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/qenty/academy/config"
	"github.com/qenty/academy/internal/db"
	"github.com/qenty/academy/internal/logging"
	"github.com/qenty/academy/internal/services"
	"github.com/qenty/academy/internal/store"
)

// seedCmd represents the seed command.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the administrator account and the sample catalog",
	Long: `Creates the configured administrator if it does not exist and the sample
courses when the catalog is empty. Running it twice changes nothing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.LogLevel)
		if cfg.Admin.Password == "" {
			return services.ErrAdminPasswordRequired
		}

		if err := db.MigrateUp(db.URL(cfg)); err != nil {
			return err
		}
		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		users := services.NewUserService(store.NewUserRepository(dbConn))
		courses := services.NewCourseService(
			store.NewCourseRepository(dbConn),
			store.NewOwnershipRepository(dbConn),
			nil,
			logger,
		)
		return services.Seed(cmd.Context(), users, courses, cfg.Admin, logger)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
