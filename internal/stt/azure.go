// Package stt wraps the Azure speech-to-text and translator REST services
// behind the narrow contracts the pipeline consumes.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/tidwall/gjson"

	"github.com/tripcast/weatherbot/internal/httpx"
	"github.com/tripcast/weatherbot/internal/metrics"
)

// Recognition is one speech-to-text result. NoMatch marks the valid no-speech
// outcome (empty text, zero confidence) as opposed to a recognizer failure.
type Recognition struct {
	Text             string
	Confidence       *float64
	Provider         string
	DetectedLanguage string
	NoMatch          bool
	Raw              json.RawMessage
}

// Recognizer transcribes a canonical waveform file, auto-detecting the source
// language among the given candidates.
type Recognizer interface {
	RecognizeOnce(ctx context.Context, wavPath string, languages []string) (*Recognition, error)
}

// AzureRecognizer calls the Azure short-audio REST endpoint. The endpoint
// takes one language per request, so each candidate language is tried and the
// highest-confidence recognition wins; the winning candidate is reported as
// the detected language.
type AzureRecognizer struct {
	key     string
	baseURL string
	client  *http.Client
}

// NewAzureRecognizer creates a recognizer for the given subscription region.
func NewAzureRecognizer(key, region string, poolSize int) *AzureRecognizer {
	return &AzureRecognizer{
		key:     key,
		baseURL: fmt.Sprintf("https://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1", region),
		client:  httpx.NewPooledClient(poolSize, 60*time.Second),
	}
}

// NewAzureRecognizerWithURL creates a recognizer against an explicit endpoint (tests).
func NewAzureRecognizerWithURL(key, baseURL string, poolSize int) *AzureRecognizer {
	return &AzureRecognizer{
		key:     key,
		baseURL: baseURL,
		client:  httpx.NewPooledClient(poolSize, 60*time.Second),
	}
}

// noMatchStatuses are recognition statuses meaning "valid audio, no speech".
var noMatchStatuses = map[string]bool{
	"NoMatch":               true,
	"InitialSilenceTimeout": true,
	"BabbleTimeout":         true,
}

// RecognizeOnce transcribes the waveform, trying each candidate language.
func (r *AzureRecognizer) RecognizeOnce(ctx context.Context, wavPath string, languages []string) (*Recognition, error) {
	if r.key == "" {
		return nil, fmt.Errorf("Azure credentials not set in AZURE_SPEECH_KEY / AZURE_SPEECH_REGION")
	}

	audio, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("read audio %s: %w", wavPath, err)
	}

	start := time.Now()
	var best *Recognition
	sawNoMatch := false

	for _, lang := range languages {
		rec, err := r.recognizeLanguage(ctx, audio, lang)
		if err != nil {
			metrics.Errors.WithLabelValues("stt", "http").Inc()
			return nil, err
		}
		if rec == nil {
			sawNoMatch = true
			continue
		}
		if best == nil || confidence(rec) > confidence(best) {
			best = rec
		}
	}

	metrics.StageDuration.WithLabelValues("stt").Observe(time.Since(start).Seconds())

	if best != nil {
		metrics.STTConfidence.Observe(confidence(best))
		return best, nil
	}
	if sawNoMatch {
		metrics.STTNoSpeech.Inc()
		zero := 0.0
		return &Recognition{Confidence: &zero, Provider: "azure-speech", NoMatch: true}, nil
	}
	return nil, fmt.Errorf("azure stt: no candidate language produced a result")
}

func (r *AzureRecognizer) recognizeLanguage(ctx context.Context, audio []byte, lang string) (*Recognition, error) {
	q := url.Values{}
	q.Set("language", lang)
	q.Set("format", "detailed")

	req, err := http.NewRequestWithContext(ctx, "POST", r.baseURL+"?"+q.Encode(), bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("create stt request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", r.key)
	req.Header.Set("Content-Type", "audio/wav; codecs=audio/pcm; samplerate=16000")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure stt request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read stt response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("azure stt status %d: %s", resp.StatusCode, body)
	}

	status := gjson.GetBytes(body, "RecognitionStatus").String()
	switch {
	case status == "Success":
		rec := &Recognition{
			Text:             gjson.GetBytes(body, "DisplayText").String(),
			Provider:         "azure-speech",
			DetectedLanguage: lang,
			Raw:              json.RawMessage(body),
		}
		if conf := gjson.GetBytes(body, "NBest.0.Confidence"); conf.Exists() {
			v := conf.Float()
			rec.Confidence = &v
		}
		return rec, nil
	case noMatchStatuses[status]:
		return nil, nil
	default:
		return nil, fmt.Errorf("azure stt failed: %s", status)
	}
}

func confidence(r *Recognition) float64 {
	if r.Confidence == nil {
		return 0
	}
	return *r.Confidence
}
