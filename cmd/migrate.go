package cmd

import (
	"log"

	"speech-practice/config"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd, config.Load())
		if err != nil {
			return err
		}
		defer closeDB(db)

		if err := migrate(db); err != nil {
			return err
		}
		log.Println("✅ Database schema is up to date")
		return nil
	},
}
