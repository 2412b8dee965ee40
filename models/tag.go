package models

import (
	"time"

	"gorm.io/gorm"
)

// TagCategoryImported marks tags created on the fly by a CSV import.
const TagCategoryImported = "imported"

type Tag struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Name      string    `json:"name" gorm:"uniqueIndex;size:100;not null"`
	Category  string    `json:"category" gorm:"size:50;not null;index"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
