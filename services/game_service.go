package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"speech-practice/models"
	"speech-practice/observe"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultSessionListLimit = 20
	maxSessionListLimit     = 100
)

type GameService struct {
	DB *gorm.DB

	metrics *observe.Metrics
	now     func() time.Time
}

func NewGameService(db *gorm.DB) *GameService {
	return &GameService{DB: db, metrics: observe.DefaultMetrics(), now: time.Now}
}

type CreateSessionInput struct {
	Mode           models.GameMode `json:"mode"`
	Level          models.Level    `json:"level"`
	SelectedTagIDs []string        `json:"selected_tag_ids"`
}

// ResultInput is one outcome reported by the client when it finishes a
// session. Scores come from a prior scoring call; they are stored as given.
type ResultInput struct {
	SpeechID           string              `json:"speech_id"`
	SequenceNumber     int                 `json:"sequence_number"`
	UserResponse       models.UserResponse `json:"user_response"`
	RecognizedText     *string             `json:"recognized_text"`
	PronunciationScore *float64            `json:"pronunciation_score"`
	AccuracyScore      *float64            `json:"accuracy_score"`
	FluencyScore       *float64            `json:"fluency_score"`
	CompletenessScore  *float64            `json:"completeness_score"`
	WordScores         []models.WordScore  `json:"word_scores"`
}

type ListSessionsFilter struct {
	Mode   models.GameMode
	Level  models.Level
	Limit  int
	Offset int
}

// CreateSession opens an in-progress session. Speeches are not reserved here;
// the client fetches them separately.
func (s *GameService) CreateSession(ctx context.Context, userID string, in CreateSessionInput) (*models.GameSession, error) {
	var issues []string
	if !in.Mode.Valid() {
		issues = append(issues, fmt.Sprintf("mode must be %q or %q", models.GameModeListenOnly, models.GameModeListenAndRepeat))
	}
	if !in.Level.Valid() {
		issues = append(issues, fmt.Sprintf("level must be one of %v", models.Levels))
	}
	if len(issues) > 0 {
		return nil, Validation("invalid session", issues...)
	}

	session := &models.GameSession{
		UserID:       userID,
		Mode:         in.Mode,
		Level:        in.Level,
		SelectedTags: uniqueStrings(in.SelectedTagIDs),
	}
	if err := s.DB.WithContext(ctx).Create(session).Error; err != nil {
		log.Printf("DB Error creating game session for user %s: %v", userID, err)
		return nil, Infrastructure("failed to create session", err)
	}
	return session, nil
}

func alreadyCompleted() *Error {
	return Validation("session already completed")
}

// CompleteSession records the whole result batch and closes the session in
// one transaction. The session row is locked for the duration and the final
// update is guarded on completed_at IS NULL, so of two racing calls exactly
// one wins.
func (s *GameService) CompleteSession(ctx context.Context, userID, sessionID string, results []ResultInput) (*models.GameSession, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.GameSession
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", sessionID, userID).
			First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFound("session %s not found", sessionID)
			}
			return err
		}
		if session.IsCompleted() {
			return alreadyCompleted()
		}

		if issues := validateResults(results); len(issues) > 0 {
			return Validation("invalid results", issues...)
		}
		missing, err := missingSpeechIDs(tx, results)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return Validation("invalid speech IDs", missing...)
		}

		if len(results) > 0 {
			rows := make([]models.GameResult, 0, len(results))
			for _, r := range results {
				words := r.WordScores
				if words == nil {
					words = []models.WordScore{}
				}
				rows = append(rows, models.GameResult{
					SessionID:          session.ID,
					SpeechID:           r.SpeechID,
					SequenceNumber:     r.SequenceNumber,
					UserResponse:       r.UserResponse,
					RecognizedText:     r.RecognizedText,
					PronunciationScore: r.PronunciationScore,
					AccuracyScore:      r.AccuracyScore,
					FluencyScore:       r.FluencyScore,
					CompletenessScore:  r.CompletenessScore,
					WordScores:         words,
				})
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}

		stats := aggregateResults(results)
		res := tx.Model(&models.GameSession{}).
			Where("id = ? AND completed_at IS NULL", session.ID).
			Updates(map[string]any{
				"total_speeches":          stats.Total,
				"correct_count":           stats.Correct,
				"incorrect_count":         stats.Incorrect,
				"skipped_count":           stats.Skipped,
				"avg_pronunciation_score": stats.AvgPronunciation,
				"avg_accuracy_score":      stats.AvgAccuracy,
				"avg_fluency_score":       stats.AvgFluency,
				"completed_at":            s.now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return alreadyCompleted()
		}
		return nil
	})

	s.recordCompletion(ctx, err, results)
	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			return nil, err
		}
		log.Printf("DB Error completing session %s: %v", sessionID, err)
		return nil, Infrastructure("failed to complete session", err)
	}

	return s.GetSession(ctx, userID, sessionID, true)
}

func (s *GameService) recordCompletion(ctx context.Context, err error, results []ResultInput) {
	status := "ok"
	switch {
	case err == nil:
	case IsKind(err, KindNotFound):
		status = "not_found"
	case IsKind(err, KindValidation):
		status = "rejected"
	default:
		status = "error"
	}
	s.metrics.SessionCompletions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	if err != nil {
		return
	}
	for _, r := range results {
		s.metrics.ResultsRecorded.Add(ctx, 1, metric.WithAttributes(attribute.String("user_response", string(r.UserResponse))))
	}
}

// GetSession is scoped to the owner; a foreign session looks exactly like a
// missing one.
func (s *GameService) GetSession(ctx context.Context, userID, sessionID string, includeResults bool) (*models.GameSession, error) {
	q := s.DB.WithContext(ctx)
	if includeResults {
		q = q.Preload("Results", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence_number ASC")
		})
	}

	var session models.GameSession
	if err := q.Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("session %s not found", sessionID)
		}
		log.Printf("DB Error fetching session %s: %v", sessionID, err)
		return nil, Infrastructure("failed to fetch session", err)
	}
	if includeResults && session.Results == nil {
		session.Results = []models.GameResult{}
	}
	return &session, nil
}

// ListSessions returns the owner's sessions newest first, without results.
func (s *GameService) ListSessions(ctx context.Context, userID string, f ListSessionsFilter) ([]models.GameSession, error) {
	var issues []string
	if f.Mode != "" && !f.Mode.Valid() {
		issues = append(issues, fmt.Sprintf("unknown mode %q", f.Mode))
	}
	if f.Level != "" && !f.Level.Valid() {
		issues = append(issues, fmt.Sprintf("unknown level %q", f.Level))
	}
	if f.Offset < 0 {
		issues = append(issues, "offset must be >= 0")
	}
	if f.Limit < 0 || f.Limit > maxSessionListLimit {
		issues = append(issues, fmt.Sprintf("limit must be between 1 and %d", maxSessionListLimit))
	}
	if len(issues) > 0 {
		return nil, Validation("invalid session filter", issues...)
	}
	limit := f.Limit
	if limit == 0 {
		limit = defaultSessionListLimit
	}

	q := s.DB.WithContext(ctx).Where("user_id = ?", userID)
	if f.Mode != "" {
		q = q.Where("mode = ?", f.Mode)
	}
	if f.Level != "" {
		q = q.Where("level = ?", f.Level)
	}

	sessions := []models.GameSession{}
	if err := q.Order("created_at DESC").Limit(limit).Offset(f.Offset).Find(&sessions).Error; err != nil {
		log.Printf("DB Error listing sessions for user %s: %v", userID, err)
		return nil, Infrastructure("failed to list sessions", err)
	}
	return sessions, nil
}

// validateResults checks everything that does not need the database. Sequence
// numbers must be unique and fall in 1..len(results), which makes them dense.
func validateResults(results []ResultInput) []string {
	var issues []string
	seen := make(map[int]bool, len(results))
	n := len(results)

	for i, r := range results {
		at := fmt.Sprintf("results[%d]", i)
		if strings.TrimSpace(r.SpeechID) == "" {
			issues = append(issues, at+": speech_id is required")
		}
		switch {
		case r.SequenceNumber < 1 || r.SequenceNumber > n:
			issues = append(issues, fmt.Sprintf("%s: sequence_number %d out of range 1..%d", at, r.SequenceNumber, n))
		case seen[r.SequenceNumber]:
			issues = append(issues, fmt.Sprintf("%s: sequence_number %d is duplicated", at, r.SequenceNumber))
		default:
			seen[r.SequenceNumber] = true
		}
		if !r.UserResponse.Valid() {
			issues = append(issues, fmt.Sprintf("%s: user_response %q must be correct, incorrect or skipped", at, r.UserResponse))
		}
		for _, sc := range []struct {
			name string
			v    *float64
		}{
			{"pronunciation_score", r.PronunciationScore},
			{"accuracy_score", r.AccuracyScore},
			{"fluency_score", r.FluencyScore},
			{"completeness_score", r.CompletenessScore},
		} {
			if sc.v != nil && !inScoreRange(*sc.v) {
				issues = append(issues, fmt.Sprintf("%s: %s %.2f out of range 0..100", at, sc.name, *sc.v))
			}
		}
		for j, w := range r.WordScores {
			if strings.TrimSpace(w.Word) == "" {
				issues = append(issues, fmt.Sprintf("%s.word_scores[%d]: word is required", at, j))
			}
			if !inScoreRange(w.Score) {
				issues = append(issues, fmt.Sprintf("%s.word_scores[%d]: score %.2f out of range 0..100", at, j, w.Score))
			}
		}
	}
	return issues
}

func inScoreRange(v float64) bool {
	return v >= 0 && v <= 100
}

// missingSpeechIDs returns referenced ids that do not exist, in first-seen
// order.
func missingSpeechIDs(tx *gorm.DB, results []ResultInput) ([]string, error) {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.SpeechID)
	}
	ids = uniqueStrings(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	var found []string
	if err := tx.Model(&models.Speech{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	exists := make(map[string]bool, len(found))
	for _, id := range found {
		exists[id] = true
	}

	var missing []string
	for _, id := range ids {
		if !exists[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

type sessionStats struct {
	Total, Correct, Incorrect, Skipped int

	AvgPronunciation *float64
	AvgAccuracy      *float64
	AvgFluency       *float64
}

// aggregateResults counts responses and averages each score over the results
// that carry it. An average with no inputs stays nil.
func aggregateResults(results []ResultInput) sessionStats {
	st := sessionStats{Total: len(results)}
	var pron, acc, flu []float64

	for _, r := range results {
		switch r.UserResponse {
		case models.UserResponseCorrect:
			st.Correct++
		case models.UserResponseIncorrect:
			st.Incorrect++
		case models.UserResponseSkipped:
			st.Skipped++
		}
		if r.PronunciationScore != nil {
			pron = append(pron, *r.PronunciationScore)
		}
		if r.AccuracyScore != nil {
			acc = append(acc, *r.AccuracyScore)
		}
		if r.FluencyScore != nil {
			flu = append(flu, *r.FluencyScore)
		}
	}

	st.AvgPronunciation = mean(pron)
	st.AvgAccuracy = mean(acc)
	st.AvgFluency = mean(flu)
	return st
}

func mean(vals []float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	avg := sum / float64(len(vals))
	return &avg
}
