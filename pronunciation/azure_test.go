package pronunciation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const restSuccess = `{
  "RecognitionStatus": "Success",
  "DisplayText": "Hello world.",
  "NBest": [{
    "Display": "Hello world.",
    "AccuracyScore": 92, "FluencyScore": 88, "CompletenessScore": 100, "PronScore": 90.4,
    "Words": [
      {"Word": "hello", "AccuracyScore": 95, "ErrorType": "None"},
      {"Word": "world", "AccuracyScore": 61, "ErrorType": "Mispronunciation"}
    ]
  }]
}`

const sdkShaped = `{
  "RecognitionStatus": "Success",
  "NBest": [{
    "Display": "Good morning.",
    "PronunciationAssessment": {"AccuracyScore": 80, "FluencyScore": 70, "CompletenessScore": 90, "PronScore": 77},
    "Words": [{"Word": "good", "PronunciationAssessment": {"AccuracyScore": 85, "ErrorType": "None"}}]
  }]
}`

func TestParseAzureResponse_Success(t *testing.T) {
	res, err := parseAzureResponse([]byte(restSuccess))
	require.NoError(t, err)

	assert.Equal(t, "Hello world.", res.RecognizedText)
	assert.Equal(t, 90.4, res.PronunciationScore)
	assert.Equal(t, 92.0, res.AccuracyScore)
	assert.Equal(t, 88.0, res.FluencyScore)
	assert.Equal(t, 100.0, res.CompletenessScore)
	require.Len(t, res.Words, 2)
	assert.Nil(t, res.Words[0].ErrorType)
	require.NotNil(t, res.Words[1].ErrorType)
	assert.Equal(t, "Mispronunciation", *res.Words[1].ErrorType)
}

func TestParseAzureResponse_NestedScores(t *testing.T) {
	res, err := parseAzureResponse([]byte(sdkShaped))
	require.NoError(t, err)

	assert.Equal(t, "Good morning.", res.RecognizedText)
	assert.Equal(t, 77.0, res.PronunciationScore)
	require.Len(t, res.Words, 1)
	assert.Equal(t, 85.0, res.Words[0].Score)
}

func TestParseAzureResponse_NoSpeech(t *testing.T) {
	for _, status := range []string{"NoMatch", "InitialSilenceTimeout"} {
		_, err := parseAzureResponse([]byte(`{"RecognitionStatus":"` + status + `"}`))
		assert.ErrorIs(t, err, ErrNoSpeech, status)
	}
}

func TestParseAzureResponse_ProviderFailure(t *testing.T) {
	_, err := parseAzureResponse([]byte(`{"RecognitionStatus":"Error"}`))
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.False(t, errors.Is(err, ErrNoSpeech))

	_, err = parseAzureResponse([]byte(`not json`))
	require.ErrorAs(t, err, &perr)
}

func TestAzure_AssessSendsAssessmentHeader(t *testing.T) {
	var gotParams assessmentParams
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Ocp-Apim-Subscription-Key"))
		assert.Equal(t, "en-GB", r.URL.Query().Get("language"))
		assert.Equal(t, "detailed", r.URL.Query().Get("format"))

		raw, err := base64.StdEncoding.DecodeString(r.Header.Get("Pronunciation-Assessment"))
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(raw, &gotParams))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(restSuccess))
	}))
	defer srv.Close()

	az := NewAzure(AzureConfig{Key: "secret", Endpoint: srv.URL, Timeout: time.Second})
	res, err := az.Assess(context.Background(), []byte("RIFFxxxx"), "Hello world", "en-GB")
	require.NoError(t, err)

	assert.Equal(t, 90.4, res.PronunciationScore)
	assert.Equal(t, "Hello world", gotParams.ReferenceText)
	assert.Equal(t, "HundredMark", gotParams.GradingSystem)
	assert.True(t, gotParams.EnableMiscue)
}

func TestAzure_AssessStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	az := NewAzure(AzureConfig{Key: "k", Endpoint: srv.URL, Timeout: time.Second})
	_, err := az.Assess(context.Background(), []byte("RIFF"), "hi", "")

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
}

func TestAzure_AssessTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	az := NewAzure(AzureConfig{Key: "k", Endpoint: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := az.Assess(context.Background(), []byte("RIFF"), "hi", "en-US")

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Zero(t, perr.StatusCode)
}

func TestAzure_EmptyAudioIsNoSpeech(t *testing.T) {
	az := NewAzure(AzureConfig{Key: "k", Region: "eastus"})
	_, err := az.Assess(context.Background(), nil, "hi", "en-US")
	assert.ErrorIs(t, err, ErrNoSpeech)
}

func TestSupportedAudio(t *testing.T) {
	assert.True(t, SupportedAudio([]byte("RIFF\x00\x00\x00\x00WAVEfmt ")))
	assert.True(t, SupportedAudio([]byte("OggS\x00\x02")))
	assert.False(t, SupportedAudio([]byte("ID3\x04\x00")))
	assert.False(t, SupportedAudio([]byte("RIFF\x00\x00\x00\x00AVI ")))

	assert.Equal(t, "audio/ogg; codecs=opus", audioContentType([]byte("OggS")))
	assert.Equal(t, "audio/wav; codecs=audio/pcm; samplerate=16000", audioContentType([]byte("RIFF\x00\x00\x00\x00WAVE")))
}
