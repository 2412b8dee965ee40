package pronunciation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"speech-practice/utils"
)

const azureProvider = "azure"

// AzureConfig configures the Azure Speech short-audio REST endpoint.
type AzureConfig struct {
	Key      string
	Region   string
	Endpoint string // overrides the region-derived URL; used by tests
	Timeout  time.Duration
}

// Azure calls the Speech-to-Text REST API with the Pronunciation-Assessment
// header (hundred-mark grading, word granularity, miscue detection).
type Azure struct {
	key      string
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

func NewAzure(cfg AzureConfig) *Azure {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1", cfg.Region)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Azure{
		key:      cfg.Key,
		endpoint: endpoint,
		timeout:  timeout,
		client:   utils.NewHTTPClient(timeout),
	}
}

type assessmentParams struct {
	ReferenceText string `json:"ReferenceText"`
	GradingSystem string `json:"GradingSystem"`
	Granularity   string `json:"Granularity"`
	Dimension     string `json:"Dimension"`
	EnableMiscue  bool   `json:"EnableMiscue"`
}

// azureScores appears either inline on NBest entries (REST) or nested under
// PronunciationAssessment (SDK-shaped payloads).
type azureScores struct {
	AccuracyScore     float64 `json:"AccuracyScore"`
	FluencyScore      float64 `json:"FluencyScore"`
	CompletenessScore float64 `json:"CompletenessScore"`
	PronScore         float64 `json:"PronScore"`
	ErrorType         string  `json:"ErrorType"`
}

type azureWord struct {
	Word string `json:"Word"`
	azureScores
	PronunciationAssessment *azureScores `json:"PronunciationAssessment"`
}

type azureNBest struct {
	Display string `json:"Display"`
	Lexical string `json:"Lexical"`
	azureScores
	PronunciationAssessment *azureScores `json:"PronunciationAssessment"`
	Words                   []azureWord  `json:"Words"`
}

type azureResponse struct {
	RecognitionStatus string       `json:"RecognitionStatus"`
	DisplayText       string       `json:"DisplayText"`
	NBest             []azureNBest `json:"NBest"`
}

func (a *Azure) Assess(ctx context.Context, audio []byte, referenceText, language string) (*Result, error) {
	if len(audio) == 0 {
		return nil, ErrNoSpeech
	}
	if language == "" {
		language = "en-US"
	}

	params, err := json.Marshal(assessmentParams{
		ReferenceText: referenceText,
		GradingSystem: "HundredMark",
		Granularity:   "Word",
		Dimension:     "Comprehensive",
		EnableMiscue:  true,
	})
	if err != nil {
		return nil, &ProviderError{Provider: azureProvider, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	u := a.endpoint + "?" + url.Values{
		"language": {language},
		"format":   {"detailed"},
	}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(audio))
	if err != nil {
		return nil, &ProviderError{Provider: azureProvider, Err: err}
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.key)
	req.Header.Set("Content-Type", audioContentType(audio))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Pronunciation-Assessment", base64.StdEncoding.EncodeToString(params))

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: azureProvider, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &ProviderError{Provider: azureProvider, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Provider:   azureProvider,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(body))),
		}
	}

	return parseAzureResponse(body)
}

func parseAzureResponse(body []byte) (*Result, error) {
	var ar azureResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return nil, &ProviderError{Provider: azureProvider, Err: fmt.Errorf("decode response: %w", err)}
	}

	switch ar.RecognitionStatus {
	case "Success":
	case "NoMatch", "InitialSilenceTimeout", "BabbleTimeout":
		return nil, ErrNoSpeech
	default:
		return nil, &ProviderError{Provider: azureProvider, Err: fmt.Errorf("recognition status %q", ar.RecognitionStatus)}
	}
	if len(ar.NBest) == 0 {
		return nil, ErrNoSpeech
	}

	best := ar.NBest[0]
	scores := best.azureScores
	if best.PronunciationAssessment != nil {
		scores = *best.PronunciationAssessment
	}

	text := ar.DisplayText
	if text == "" {
		text = best.Display
	}

	res := &Result{
		RecognizedText:     text,
		PronunciationScore: scores.PronScore,
		AccuracyScore:      scores.AccuracyScore,
		FluencyScore:       scores.FluencyScore,
		CompletenessScore:  scores.CompletenessScore,
		Words:              make([]WordScore, 0, len(best.Words)),
	}
	for _, w := range best.Words {
		ws := w.azureScores
		if w.PronunciationAssessment != nil {
			ws = *w.PronunciationAssessment
		}
		word := WordScore{Word: w.Word, Score: ws.AccuracyScore}
		if ws.ErrorType != "" && ws.ErrorType != "None" {
			errType := ws.ErrorType
			word.ErrorType = &errType
		}
		res.Words = append(res.Words, word)
	}
	return res, nil
}

// SupportedAudio reports whether the recording is in a container the short
// audio REST endpoint accepts: RIFF/WAVE (PCM) or Ogg (Opus). MP3 and M4A are
// not accepted by the endpoint and must be rejected before calling Assess.
func SupportedAudio(audio []byte) bool {
	return isWAV(audio) || bytes.HasPrefix(audio, []byte("OggS"))
}

func isWAV(audio []byte) bool {
	return len(audio) >= 12 && bytes.Equal(audio[:4], []byte("RIFF")) && bytes.Equal(audio[8:12], []byte("WAVE"))
}

// audioContentType picks the header Azure expects from the container magic.
// Only WAV and Ogg are supported; see SupportedAudio.
func audioContentType(audio []byte) string {
	switch {
	case bytes.HasPrefix(audio, []byte("OggS")):
		return "audio/ogg; codecs=opus"
	default:
		return "audio/wav; codecs=audio/pcm; samplerate=16000"
	}
}
