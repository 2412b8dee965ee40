package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"speech-practice/observe"
	"speech-practice/pronunciation"
	"speech-practice/utils"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const maxReferenceTextLength = 1000

// ScoringService forwards a recorded attempt to the pronunciation provider.
// It never touches the database.
type ScoringService struct {
	Assessor pronunciation.Assessor
	Provider string
	Language string

	metrics *observe.Metrics
}

func NewScoringService(assessor pronunciation.Assessor, provider, language string) *ScoringService {
	if language == "" {
		language = "en-US"
	}
	return &ScoringService{Assessor: assessor, Provider: provider, Language: language, metrics: observe.DefaultMetrics()}
}

// Score validates the upload and returns the provider's assessment. Silence
// and provider failures both surface as ProcessingFailure; callers tell them
// apart with errors.Is(err, pronunciation.ErrNoSpeech).
func (s *ScoringService) Score(ctx context.Context, audio []byte, contentType, referenceText string) (*pronunciation.Result, error) {
	referenceText = strings.TrimSpace(referenceText)

	var issues []string
	if len(audio) == 0 {
		issues = append(issues, "audio is required")
	} else if len(audio) > utils.MaxAudioFileSize {
		issues = append(issues, "audio exceeds the 10MB limit")
	} else if !pronunciation.SupportedAudio(audio) {
		issues = append(issues, "audio must be WAV (PCM) or Ogg (Opus)")
	}
	if ct := strings.ToLower(contentType); ct != "" && !strings.HasPrefix(ct, "audio/") && ct != "application/octet-stream" {
		issues = append(issues, "file must be audio")
	}
	if referenceText == "" {
		issues = append(issues, "reference_text is required")
	} else if len(referenceText) > maxReferenceTextLength {
		issues = append(issues, "reference_text must be at most 1000 characters")
	}
	if len(issues) > 0 {
		return nil, Validation("invalid scoring request", issues...)
	}

	start := time.Now()
	res, err := s.Assessor.Assess(ctx, audio, referenceText, s.Language)
	s.record(ctx, time.Since(start), err)

	if err != nil {
		if errors.Is(err, pronunciation.ErrNoSpeech) {
			return nil, ProcessingFailure("no speech detected in the recording", err)
		}
		log.Printf("❌ [Scoring] %s assessment failed: %v", s.Provider, err)
		return nil, ProcessingFailure("pronunciation assessment failed", err)
	}
	return res, nil
}

func (s *ScoringService) record(ctx context.Context, elapsed time.Duration, err error) {
	status := "ok"
	switch {
	case errors.Is(err, pronunciation.ErrNoSpeech):
		status = "no_speech"
	case err != nil:
		status = "error"
	}
	attrs := metric.WithAttributes(attribute.String("provider", s.Provider), attribute.String("status", status))
	s.metrics.AssessmentRequests.Add(ctx, 1, attrs)
	s.metrics.AssessmentDuration.Record(ctx, elapsed.Seconds(), attrs)
}
