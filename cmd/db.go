package cmd

import (
	"errors"
	"fmt"

	"speech-practice/config"
	"speech-practice/models"

	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openDB connects using --database-url when given, DATABASE_URL otherwise.
func openDB(cmd *cobra.Command, cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.DatabaseURL
	if flag, _ := cmd.Flags().GetString("database-url"); flag != "" {
		dsn = flag
	}
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
