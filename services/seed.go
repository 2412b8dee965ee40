package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"speech-practice/models"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// SeedData is the fixture format read by the seed command.
type SeedData struct {
	Tags     []SeedTag    `yaml:"tags"`
	Speeches []SeedSpeech `yaml:"speeches"`
}

type SeedTag struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

type SeedSpeech struct {
	AudioURL string   `yaml:"audio_url"`
	Text     string   `yaml:"text"`
	Level    string   `yaml:"level"`
	Type     string   `yaml:"type"`
	Tags     []string `yaml:"tags"`
}

type SeedReport struct {
	TagsCreated     int
	SpeechesCreated int
	SpeechesSkipped int
}

func ParseSeed(data []byte) (*SeedData, error) {
	var seed SeedData
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &seed, nil
}

// ApplySeed inserts the fixture in one transaction. It is idempotent: tags
// are matched by name and a speech whose text and level already exist is
// skipped.
func ApplySeed(ctx context.Context, db *gorm.DB, seed *SeedData) (*SeedReport, error) {
	report := &SeedReport{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags := make(map[string]models.Tag)

		for _, st := range seed.Tags {
			name := strings.TrimSpace(st.Name)
			category := strings.TrimSpace(st.Category)
			if issues := validateTagFields(name, category); len(issues) > 0 {
				return Validation(fmt.Sprintf("invalid seed tag %q", st.Name), issues...)
			}
			tag, created, err := findOrCreateTag(tx, name, category)
			if err != nil {
				return err
			}
			if created {
				report.TagsCreated++
			}
			tags[name] = tag
		}

		for i, ss := range seed.Speeches {
			level, ok := models.ParseLevel(ss.Level)
			if !ok {
				return Validation(fmt.Sprintf("seed speech %d: invalid level %q", i+1, ss.Level))
			}
			kind, ok := models.ParseSpeechType(ss.Type)
			if !ok {
				return Validation(fmt.Sprintf("seed speech %d: invalid type %q", i+1, ss.Type))
			}
			text := strings.TrimSpace(ss.Text)
			if issues := validateSpeechFields(ss.AudioURL, text, level, kind); len(issues) > 0 {
				return Validation(fmt.Sprintf("invalid seed speech %d", i+1), issues...)
			}

			var existing int64
			if err := tx.Model(&models.Speech{}).Where("text = ? AND level = ?", text, level).Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				report.SpeechesSkipped++
				continue
			}

			sp := models.Speech{AudioURL: strings.TrimSpace(ss.AudioURL), Text: text, Level: level, Type: kind}
			for _, name := range uniqueStrings(ss.Tags) {
				tag, ok := tags[name]
				if !ok {
					var created bool
					var err error
					tag, created, err = findOrCreateTag(tx, name, "general")
					if err != nil {
						return err
					}
					if created {
						report.TagsCreated++
					}
					tags[name] = tag
				}
				sp.Tags = append(sp.Tags, tag)
			}
			if err := tx.Create(&sp).Error; err != nil {
				return err
			}
			report.SpeechesCreated++
		}
		return nil
	})
	if err != nil {
		return nil, wrapDBError("failed to apply seed", err)
	}
	log.Printf("✅ [Seed] %d tags and %d speeches created, %d speeches already present",
		report.TagsCreated, report.SpeechesCreated, report.SpeechesSkipped)
	return report, nil
}

func findOrCreateTag(tx *gorm.DB, name, category string) (models.Tag, bool, error) {
	var tag models.Tag
	err := tx.Where("name = ?", name).First(&tag).Error
	if err == nil {
		return tag, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return tag, false, err
	}
	tag = models.Tag{Name: name, Category: category}
	if err := tx.Create(&tag).Error; err != nil {
		return tag, false, err
	}
	return tag, true, nil
}
