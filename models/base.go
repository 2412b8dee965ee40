// models/base.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// All lists every table, in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Tag{},
		&Speech{},
		&GameSession{},
		&GameResult{},
	}
}
