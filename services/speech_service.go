package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"speech-practice/models"
	"speech-practice/storage"
	"speech-practice/utils"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

const (
	defaultRandomLimit = 10
	maxRandomLimit     = 100
	defaultSearchLimit = 20
	maxTextLength      = 5000
)

type SpeechService struct {
	DB           *gorm.DB
	Store        storage.ObjectStore
	SignedURLTTL time.Duration
}

func NewSpeechService(db *gorm.DB, store storage.ObjectStore, signedURLTTL time.Duration) *SpeechService {
	return &SpeechService{DB: db, Store: store, SignedURLTTL: signedURLTTL}
}

type RandomSpeechFilter struct {
	Level  models.Level      `json:"level"`
	Type   models.SpeechType `json:"type"`
	TagIDs []string          `json:"tag_ids"`
	Limit  int               `json:"limit"`
}

// GetRandomSpeeches picks up to Limit speeches uniformly at random. TagIDs use
// AND semantics: a speech must carry every requested tag.
func (s *SpeechService) GetRandomSpeeches(ctx context.Context, f RandomSpeechFilter) ([]models.Speech, error) {
	limit := f.Limit
	if limit == 0 {
		limit = defaultRandomLimit
	}
	var issues []string
	if limit < 1 || limit > maxRandomLimit {
		issues = append(issues, fmt.Sprintf("limit must be between 1 and %d", maxRandomLimit))
	}
	if f.Level != "" && !f.Level.Valid() {
		issues = append(issues, fmt.Sprintf("unknown level %q", f.Level))
	}
	if f.Type != "" && !f.Type.Valid() {
		issues = append(issues, fmt.Sprintf("unknown type %q", f.Type))
	}
	if len(issues) > 0 {
		return nil, Validation("invalid speech filter", issues...)
	}

	db := s.DB.WithContext(ctx)
	q := db.Model(&models.Speech{}).Preload("Tags")
	if f.Level != "" {
		q = q.Where("level = ?", f.Level)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if tagIDs := uniqueStrings(f.TagIDs); len(tagIDs) > 0 {
		withAllTags := db.Table(models.SpeechTagsTable).
			Select("speech_id").
			Where("tag_id IN ?", tagIDs).
			Group("speech_id").
			Having("COUNT(DISTINCT tag_id) = ?", len(tagIDs))
		q = q.Where("id IN (?)", withAllTags)
	}

	speeches := []models.Speech{}
	if err := q.Order("RANDOM()").Limit(limit).Find(&speeches).Error; err != nil {
		log.Printf("DB Error selecting random speeches: %v", err)
		return nil, Infrastructure("failed to select speeches", err)
	}
	return speeches, nil
}

type SpeechListFilter struct {
	Level    models.Level
	Type     models.SpeechType
	TagID    string
	Search   string
	Page     int
	PageSize int
}

type SpeechPage struct {
	Items      []models.Speech `json:"items"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
}

// ListSpeeches is the admin listing: filtered, newest first, paginated.
func (s *SpeechService) ListSpeeches(ctx context.Context, f SpeechListFilter) (*SpeechPage, error) {
	page, size, err := normalizePage(f.Page, f.PageSize)
	if err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	filtered := func() *gorm.DB {
		q := db.Model(&models.Speech{})
		if f.Level != "" {
			q = q.Where("level = ?", f.Level)
		}
		if f.Type != "" {
			q = q.Where("type = ?", f.Type)
		}
		if f.TagID != "" {
			q = q.Where("id IN (?)", db.Table(models.SpeechTagsTable).Select("speech_id").Where("tag_id = ?", f.TagID))
		}
		if strings.TrimSpace(f.Search) != "" {
			q = q.Where(`LOWER(text) LIKE ? ESCAPE '\'`, likePattern(f.Search))
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		log.Printf("DB Error counting speeches: %v", err)
		return nil, Infrastructure("failed to list speeches", err)
	}

	items := []models.Speech{}
	if err := filtered().Preload("Tags").
		Order("created_at DESC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&items).Error; err != nil {
		log.Printf("DB Error listing speeches: %v", err)
		return nil, Infrastructure("failed to list speeches", err)
	}

	return &SpeechPage{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages(total, size),
	}, nil
}

// SearchSpeeches matches text case-insensitively.
func (s *SpeechService) SearchSpeeches(ctx context.Context, query string, level models.Level, limit int) ([]models.Speech, error) {
	if strings.TrimSpace(query) == "" {
		return nil, Validation("search query is required")
	}
	if limit == 0 {
		limit = defaultSearchLimit
	}
	if limit < 1 || limit > maxRandomLimit {
		return nil, Validation(fmt.Sprintf("limit must be between 1 and %d", maxRandomLimit))
	}

	q := s.DB.WithContext(ctx).Preload("Tags").Where(`LOWER(text) LIKE ? ESCAPE '\'`, likePattern(query))
	if level != "" {
		q = q.Where("level = ?", level)
	}
	speeches := []models.Speech{}
	if err := q.Order("created_at DESC").Limit(limit).Find(&speeches).Error; err != nil {
		return nil, Infrastructure("failed to search speeches", err)
	}
	return speeches, nil
}

func (s *SpeechService) GetSpeech(ctx context.Context, id string) (*models.Speech, error) {
	var sp models.Speech
	if err := s.DB.WithContext(ctx).Preload("Tags").First(&sp, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("speech %s not found", id)
		}
		return nil, Infrastructure("failed to fetch speech", err)
	}
	return &sp, nil
}

type SpeechInput struct {
	AudioURL string            `json:"audio_url"`
	Text     string            `json:"text"`
	Level    models.Level      `json:"level"`
	Type     models.SpeechType `json:"type"`
	TagIDs   []string          `json:"tag_ids"`
}

// SpeechUpdate is a partial update; nil fields are left alone and a non-nil
// TagIDs replaces the tag set.
type SpeechUpdate struct {
	AudioURL *string            `json:"audio_url"`
	Text     *string            `json:"text"`
	Level    *models.Level      `json:"level"`
	Type     *models.SpeechType `json:"type"`
	TagIDs   *[]string          `json:"tag_ids"`
}

func validateSpeechFields(audioURL, text string, level models.Level, st models.SpeechType) []string {
	var issues []string
	if strings.TrimSpace(audioURL) == "" {
		issues = append(issues, "audio_url is required")
	} else if len(audioURL) > 500 {
		issues = append(issues, "audio_url must be at most 500 characters")
	}
	if strings.TrimSpace(text) == "" {
		issues = append(issues, "text is required")
	} else if len(text) > maxTextLength {
		issues = append(issues, fmt.Sprintf("text must be at most %d characters", maxTextLength))
	}
	if !level.Valid() {
		issues = append(issues, fmt.Sprintf("level must be one of %v", models.Levels))
	}
	if !st.Valid() {
		issues = append(issues, "type must be question or answer")
	}
	return issues
}

// loadTags fetches every id or fails listing the unknown ones.
func loadTags(tx *gorm.DB, ids []string) ([]models.Tag, error) {
	ids = uniqueStrings(ids)
	tags := []models.Tag{}
	if len(ids) == 0 {
		return tags, nil
	}
	if err := tx.Where("id IN ?", ids).Find(&tags).Error; err != nil {
		return nil, err
	}
	if len(tags) == len(ids) {
		return tags, nil
	}
	found := make(map[string]bool, len(tags))
	for _, t := range tags {
		found[t.ID] = true
	}
	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return nil, Validation("invalid tag IDs", missing...)
}

func (s *SpeechService) CreateSpeech(ctx context.Context, in SpeechInput) (*models.Speech, error) {
	if in.Type == "" {
		in.Type = models.SpeechTypeAnswer
	}
	if issues := validateSpeechFields(in.AudioURL, in.Text, in.Level, in.Type); len(issues) > 0 {
		return nil, Validation("invalid speech", issues...)
	}

	sp := &models.Speech{
		AudioURL: strings.TrimSpace(in.AudioURL),
		Text:     strings.TrimSpace(in.Text),
		Level:    in.Level,
		Type:     in.Type,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := loadTags(tx, in.TagIDs)
		if err != nil {
			return err
		}
		sp.Tags = tags
		return tx.Create(sp).Error
	})
	if err != nil {
		return nil, wrapDBError("failed to create speech", err)
	}
	return sp, nil
}

func (s *SpeechService) UpdateSpeech(ctx context.Context, id string, in SpeechUpdate) (*models.Speech, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sp models.Speech
		if err := tx.First(&sp, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFound("speech %s not found", id)
			}
			return err
		}

		if in.AudioURL != nil {
			sp.AudioURL = strings.TrimSpace(*in.AudioURL)
		}
		if in.Text != nil {
			sp.Text = strings.TrimSpace(*in.Text)
		}
		if in.Level != nil {
			sp.Level = *in.Level
		}
		if in.Type != nil {
			sp.Type = *in.Type
		}
		if issues := validateSpeechFields(sp.AudioURL, sp.Text, sp.Level, sp.Type); len(issues) > 0 {
			return Validation("invalid speech", issues...)
		}
		if err := tx.Omit("Tags").Save(&sp).Error; err != nil {
			return err
		}

		if in.TagIDs != nil {
			tags, err := loadTags(tx, *in.TagIDs)
			if err != nil {
				return err
			}
			if err := tx.Model(&sp).Association("Tags").Replace(tags); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapDBError("failed to update speech", err)
	}
	return s.GetSpeech(ctx, id)
}

// DeleteSpeech refuses while game results still reference the speech; results
// are history and are never rewritten.
func (s *SpeechService) DeleteSpeech(ctx context.Context, id string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sp models.Speech
		if err := tx.First(&sp, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFound("speech %s not found", id)
			}
			return err
		}

		var used int64
		if err := tx.Model(&models.GameResult{}).Where("speech_id = ?", id).Count(&used).Error; err != nil {
			return err
		}
		if used > 0 {
			return Conflict("speech %s is referenced by %d game results", id, used)
		}

		if err := tx.Model(&sp).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(&sp).Error
	})
	if err != nil {
		return wrapDBError("failed to delete speech", err)
	}
	return nil
}

// UploadSpeechAudio stores one reference recording for the admin editor and
// returns its public URL.
func (s *SpeechService) UploadSpeechAudio(ctx context.Context, filename string, data []byte) (string, error) {
	if err := utils.ValidateAudioFile(filename, int64(len(data))); err != nil {
		return "", Validation("invalid audio file", err.Error())
	}
	if s.Store == nil {
		return "", StorageFailure("object storage is not configured", nil)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	key := "speeches/" + uuid.NewString() + "-" + slugOrDefault(strings.TrimSuffix(filename, filepath.Ext(filename)), "audio") + ext
	url, err := s.Store.Put(ctx, key, data, utils.AudioContentType(filename))
	if err != nil {
		log.Printf("❌ [Storage] Failed to upload speech audio %s: %v", key, err)
		return "", StorageFailure("failed to upload audio", err)
	}
	return url, nil
}

// PlaybackURL returns a signed URL when the audio lives in our bucket and the
// stored URL otherwise.
func (s *SpeechService) PlaybackURL(ctx context.Context, sp *models.Speech) (string, error) {
	if s.Store == nil {
		return sp.AudioURL, nil
	}
	key, ok := s.Store.KeyFromURL(sp.AudioURL)
	if !ok {
		return sp.AudioURL, nil
	}
	signed, err := s.Store.SignedURL(ctx, key, s.SignedURLTTL)
	if err != nil {
		return "", StorageFailure("failed to sign audio URL", err)
	}
	return signed, nil
}

func slugOrDefault(s, fallback string) string {
	if out := slug.Make(s); out != "" {
		return out
	}
	return fallback
}

// wrapDBError passes typed errors through and classifies the rest.
func wrapDBError(message string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return Conflict("%s: duplicate value", message)
	}
	log.Printf("DB Error: %s: %v", message, err)
	return Infrastructure(message, err)
}
