// Package pronunciation scores a spoken attempt against its reference text.
//
// Assessor is the only thing the rest of the backend depends on. Azure is the
// bundled implementation; anything returning a [Result] or one of the two
// failure shapes below can replace it.
package pronunciation

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoSpeech means the provider heard nothing it could score. It is a user
// problem (silence, wrong microphone), not an outage.
var ErrNoSpeech = errors.New("no speech detected")

// ProviderError is any other failure talking to the provider: transport,
// timeout, non-2xx status or an unparseable response.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s assessment failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s assessment failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Result holds 0-100 scores for one utterance.
type Result struct {
	RecognizedText     string      `json:"recognized_text"`
	PronunciationScore float64     `json:"pronunciation_score"`
	AccuracyScore      float64     `json:"accuracy_score"`
	FluencyScore       float64     `json:"fluency_score"`
	CompletenessScore  float64     `json:"completeness_score"`
	Words              []WordScore `json:"word_scores"`
}

type WordScore struct {
	Word      string  `json:"word"`
	Score     float64 `json:"score"`
	ErrorType *string `json:"error_type,omitempty"`
}

// Assessor scores audio against referenceText. language is a BCP-47 tag such
// as "en-US". Implementations return ErrNoSpeech (possibly wrapped) or a
// *ProviderError on failure.
type Assessor interface {
	Assess(ctx context.Context, audio []byte, referenceText, language string) (*Result, error)
}
