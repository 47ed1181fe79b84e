package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFakeWAV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF fake audio"), 0o644))
	return path
}

func TestRecognizeOncePicksHighestConfidence(t *testing.T) {
	responses := map[string]string{
		"en-US": `{"RecognitionStatus":"Success","DisplayText":"weather in Paris","NBest":[{"Confidence":0.91}]}`,
		"ja-JP": `{"RecognitionStatus":"Success","DisplayText":"パリの天気","NBest":[{"Confidence":0.42}]}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		assert.Equal(t, "detailed", r.URL.Query().Get("format"))
		w.Write([]byte(responses[r.URL.Query().Get("language")]))
	}))
	defer srv.Close()

	r := NewAzureRecognizerWithURL("test-key", srv.URL, 1)
	rec, err := r.RecognizeOnce(context.Background(), writeFakeWAV(t), []string{"en-US", "ja-JP"})
	require.NoError(t, err)

	assert.Equal(t, "weather in Paris", rec.Text)
	assert.Equal(t, "en-US", rec.DetectedLanguage)
	assert.Equal(t, "azure-speech", rec.Provider)
	require.NotNil(t, rec.Confidence)
	assert.Equal(t, 0.91, *rec.Confidence)
	assert.False(t, rec.NoMatch)
	assert.NotEmpty(t, rec.Raw)
}

func TestRecognizeOnceAllNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"RecognitionStatus":"InitialSilenceTimeout"}`))
	}))
	defer srv.Close()

	r := NewAzureRecognizerWithURL("test-key", srv.URL, 1)
	rec, err := r.RecognizeOnce(context.Background(), writeFakeWAV(t), []string{"en-US", "ja-JP"})
	require.NoError(t, err)

	assert.True(t, rec.NoMatch)
	assert.Empty(t, rec.Text)
	require.NotNil(t, rec.Confidence)
	assert.Equal(t, 0.0, *rec.Confidence)
	assert.Equal(t, "azure-speech", rec.Provider)
}

func TestRecognizeOnceMixedNoMatchAndSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("language") == "en-US" {
			w.Write([]byte(`{"RecognitionStatus":"NoMatch"}`))
			return
		}
		w.Write([]byte(`{"RecognitionStatus":"Success","DisplayText":"明日の東京の天気","NBest":[{"Confidence":0.77}]}`))
	}))
	defer srv.Close()

	r := NewAzureRecognizerWithURL("test-key", srv.URL, 1)
	rec, err := r.RecognizeOnce(context.Background(), writeFakeWAV(t), []string{"en-US", "ja-JP"})
	require.NoError(t, err)

	assert.Equal(t, "明日の東京の天気", rec.Text)
	assert.Equal(t, "ja-JP", rec.DetectedLanguage)
}

func TestRecognizeOnceMissingCredentials(t *testing.T) {
	r := NewAzureRecognizerWithURL("", "http://unused", 1)
	_, err := r.RecognizeOnce(context.Background(), writeFakeWAV(t), []string{"en-US"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AZURE_SPEECH_KEY / AZURE_SPEECH_REGION")
}

func TestRecognizeOnceUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	r := NewAzureRecognizerWithURL("test-key", srv.URL, 1)
	_, err := r.RecognizeOnce(context.Background(), writeFakeWAV(t), []string{"en-US"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "azure stt status 403")
}

func TestTranslateMissingCredentials(t *testing.T) {
	tr := NewAzureTranslator("", "", 1)
	_, err := tr.Translate(context.Background(), "こんにちは", "ja", "en")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AZURE_TRANSLATOR_KEY / AZURE_TRANSLATOR_REGION")
}

func TestTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3.0", r.URL.Query().Get("api-version"))
		assert.Equal(t, "en", r.URL.Query().Get("to"))
		assert.Equal(t, "ja", r.URL.Query().Get("from"))
		assert.Equal(t, "test-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		assert.Equal(t, "westus", r.Header.Get("Ocp-Apim-Subscription-Region"))
		w.Write([]byte(`[{"translations":[{"text":"hello","to":"en"}]}]`))
	}))
	defer srv.Close()

	tr := NewAzureTranslatorWithURL("test-key", "westus", srv.URL, 1)
	got, err := tr.Translate(context.Background(), "こんにちは", "ja", "en")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestTranslateUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	tr := NewAzureTranslatorWithURL("test-key", "westus", srv.URL, 1)
	_, err := tr.Translate(context.Background(), "こんにちは", "ja", "en")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "translate status 401")
}
