package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type UserResponse string

const (
	UserResponseCorrect   UserResponse = "correct"
	UserResponseIncorrect UserResponse = "incorrect"
	UserResponseSkipped   UserResponse = "skipped"
)

func (r UserResponse) Valid() bool {
	switch r {
	case UserResponseCorrect, UserResponseIncorrect, UserResponseSkipped:
		return true
	}
	return false
}

// WordScore is one word of a pronunciation breakdown.
type WordScore struct {
	Word      string  `json:"word"`
	Score     float64 `json:"score"`
	ErrorType *string `json:"error_type,omitempty"`
}

// GameResult is immutable once written by session completion.
type GameResult struct {
	ID             string       `json:"id" gorm:"primaryKey;size:36"`
	SessionID      string       `json:"session_id" gorm:"size:36;not null;uniqueIndex:idx_game_results_session_sequence"`
	SpeechID       string       `json:"speech_id" gorm:"size:36;not null;index"`
	Speech         *Speech      `json:"-" gorm:"constraint:OnDelete:RESTRICT"`
	SequenceNumber int          `json:"sequence_number" gorm:"not null;uniqueIndex:idx_game_results_session_sequence"`
	UserResponse   UserResponse `json:"user_response" gorm:"size:20;not null"`
	RecognizedText *string      `json:"recognized_text"`

	PronunciationScore *float64 `json:"pronunciation_score"`
	AccuracyScore      *float64 `json:"accuracy_score"`
	FluencyScore       *float64 `json:"fluency_score"`
	CompletenessScore  *float64 `json:"completeness_score"`

	WordScores datatypes.JSONSlice[WordScore] `json:"word_scores"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (r *GameResult) BeforeCreate(tx *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
