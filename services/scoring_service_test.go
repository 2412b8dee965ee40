package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"speech-practice/pronunciation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wavAudio = []byte("RIFF\x24\x00\x00\x00WAVEfmt ")

type fakeAssessor struct {
	result  *pronunciation.Result
	err     error
	calls   int
	gotLang string
}

func (f *fakeAssessor) Assess(_ context.Context, _ []byte, _ string, language string) (*pronunciation.Result, error) {
	f.calls++
	f.gotLang = language
	return f.result, f.err
}

func TestScore(t *testing.T) {
	fake := &fakeAssessor{result: &pronunciation.Result{RecognizedText: "hello", PronunciationScore: 88}}
	svc := NewScoringService(fake, "fake", "")

	res, err := svc.Score(context.Background(), wavAudio, "audio/wav", " hello ")
	require.NoError(t, err)
	assert.Equal(t, 88.0, res.PronunciationScore)
	assert.Equal(t, "en-US", fake.gotLang)
}

func TestScore_Validation(t *testing.T) {
	fake := &fakeAssessor{}
	svc := NewScoringService(fake, "fake", "en-GB")

	_, err := svc.Score(context.Background(), nil, "image/png", "")
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindValidation, se.Kind)
	assert.Len(t, se.Issues, 3)
	assert.Zero(t, fake.calls, "invalid requests never reach the provider")
}

func TestScore_RejectsUnsupportedContainer(t *testing.T) {
	fake := &fakeAssessor{}
	svc := NewScoringService(fake, "fake", "")

	for _, audio := range [][]byte{[]byte("ID3\x04\x00mp3 frames"), []byte("\x00\x00\x00\x20ftypM4A ")} {
		_, err := svc.Score(context.Background(), audio, "audio/mpeg", "hello")
		var se *Error
		require.ErrorAs(t, err, &se)
		assert.Equal(t, KindValidation, se.Kind)
		assert.Equal(t, []string{"audio must be WAV (PCM) or Ogg (Opus)"}, se.Issues)
	}

	_, err := svc.Score(context.Background(), []byte("OggS\x00\x02"), "audio/ogg", "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)
}

func TestScore_FailureShapes(t *testing.T) {
	noSpeech := &fakeAssessor{err: fmt.Errorf("azure: %w", pronunciation.ErrNoSpeech)}
	_, err := NewScoringService(noSpeech, "fake", "").Score(context.Background(), wavAudio, "", "hi")
	assert.Equal(t, KindProcessingFailure, KindOf(err))
	assert.ErrorIs(t, err, pronunciation.ErrNoSpeech)

	outage := &fakeAssessor{err: &pronunciation.ProviderError{Provider: "fake", StatusCode: 503, Err: errors.New("unavailable")}}
	_, err = NewScoringService(outage, "fake", "").Score(context.Background(), wavAudio, "audio/mpeg", "hi")
	assert.Equal(t, KindProcessingFailure, KindOf(err))
	assert.NotErrorIs(t, err, pronunciation.ErrNoSpeech)
	var pe *pronunciation.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 503, pe.StatusCode)
}
