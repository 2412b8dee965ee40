package cmd

import (
	"fmt"
	"os"

	"speech-practice/config"
	"speech-practice/services"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load tags and speeches from a YAML fixture",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read seed file: %w", err)
		}
		seed, err := services.ParseSeed(data)
		if err != nil {
			return err
		}

		db, err := openDB(cmd, config.Load())
		if err != nil {
			return err
		}
		defer closeDB(db)

		if err := migrate(db); err != nil {
			return err
		}
		report, err := services.ApplySeed(cmd.Context(), db, seed)
		if err != nil {
			return err
		}
		cmd.Printf("tags created: %d, speeches created: %d, skipped: %d\n",
			report.TagsCreated, report.SpeechesCreated, report.SpeechesSkipped)
		return nil
	},
}

func init() {
	seedCmd.Flags().String("file", "fixtures/seed.yaml", "Path to the YAML seed file")
}
