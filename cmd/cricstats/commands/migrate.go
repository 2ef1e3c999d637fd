package commands

import (
	"errors"
	"log"

	"github.com/spf13/cobra"

	"github.com/fortuna/cricstats/internal/store"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Creates the record and job tables in the configured database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}

		db, err := store.NewDatabase(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		applied, err := db.RunMigrations(cmd.Context())
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			log.Println("✓ Database is up to date")
			return nil
		}
		for _, name := range applied {
			log.Printf("✓ Applied %s", name)
		}
		return nil
	},
}
