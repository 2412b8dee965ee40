package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type GameMode string

const (
	GameModeListenOnly      GameMode = "listen_only"
	GameModeListenAndRepeat GameMode = "listen_and_repeat"
)

func (m GameMode) Valid() bool {
	return m == GameModeListenOnly || m == GameModeListenAndRepeat
}

// GameSession is one practice attempt. CompletedAt moves from nil to set
// exactly once; counters and averages are written in the same update and
// never touched again.
type GameSession struct {
	ID           string                      `json:"id" gorm:"primaryKey;size:36"`
	UserID       string                      `json:"user_id" gorm:"size:36;not null;index"`
	Mode         GameMode                    `json:"mode" gorm:"size:30;not null"`
	Level        Level                       `json:"level" gorm:"size:2;not null"`
	SelectedTags datatypes.JSONSlice[string] `json:"selected_tags"`

	TotalSpeeches  int `json:"total_speeches" gorm:"not null;default:0"`
	CorrectCount   int `json:"correct_count" gorm:"not null;default:0"`
	IncorrectCount int `json:"incorrect_count" gorm:"not null;default:0"`
	SkippedCount   int `json:"skipped_count" gorm:"not null;default:0"`

	AvgPronunciationScore *float64 `json:"avg_pronunciation_score"`
	AvgAccuracyScore      *float64 `json:"avg_accuracy_score"`
	AvgFluencyScore       *float64 `json:"avg_fluency_score"`

	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime;index"`
	CompletedAt *time.Time `json:"completed_at"`

	Results []GameResult `json:"results,omitempty" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

func (s *GameSession) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

func (s *GameSession) IsCompleted() bool {
	return s.CompletedAt != nil
}
