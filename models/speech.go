package models

import (
	"strings"

	"gorm.io/gorm"
)

// Level is a CEFR proficiency code.
type Level string

const (
	LevelA1 Level = "A1"
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
	LevelC1 Level = "C1"
)

var Levels = []Level{LevelA1, LevelA2, LevelB1, LevelB2, LevelC1}

func (l Level) Valid() bool {
	for _, v := range Levels {
		if l == v {
			return true
		}
	}
	return false
}

// ParseLevel accepts any casing and surrounding whitespace.
func ParseLevel(s string) (Level, bool) {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	return l, l.Valid()
}

type SpeechType string

const (
	SpeechTypeQuestion SpeechType = "question"
	SpeechTypeAnswer   SpeechType = "answer"
)

func (t SpeechType) Valid() bool {
	return t == SpeechTypeQuestion || t == SpeechTypeAnswer
}

// ParseSpeechType treats an empty value as answer.
func ParseSpeechType(s string) (SpeechType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SpeechTypeAnswer, true
	}
	t := SpeechType(s)
	return t, t.Valid()
}

// Speech is one practice utterance: reference audio plus its transcript.
type Speech struct {
	ID       string     `json:"id" gorm:"primaryKey;size:36"`
	AudioURL string     `json:"audio_url" gorm:"size:500;not null"`
	Text     string     `json:"text" gorm:"type:text;not null"`
	Level    Level      `json:"level" gorm:"size:2;not null;index"`
	Type     SpeechType `json:"type" gorm:"size:20;not null;default:answer;index"`
	Tags     []Tag      `json:"tags" gorm:"many2many:speech_tags;constraint:OnDelete:CASCADE"`

	Timestamps
}

func (s *Speech) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// SpeechTagsTable is the junction table GORM creates for Speech.Tags.
const SpeechTagsTable = "speech_tags"
