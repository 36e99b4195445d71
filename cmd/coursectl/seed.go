package main

import (
	"errors"
	"fmt"

	"github.com/geocoder89/coursehub/internal/db"
	"github.com/spf13/cobra"
)

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the bootstrap administrator from ADMIN_* settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Admin.Email == "" || cfg.Admin.Password == "" {
			return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
		}

		pool, err := db.NewPool(cmd.Context(), cfg.DB.DatabaseURL(), cfg.DB.MaxConns)
		if err != nil {
			return err
		}
		defer pool.Close()

		created, err := db.EnsureAdminUser(cmd.Context(), pool, cfg.Admin)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s created\n", cfg.Admin.Email)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s already exists\n", cfg.Admin.Email)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedAdminCmd)
}
