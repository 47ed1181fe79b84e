package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tripcast/weatherbot/internal/httpx"
	"github.com/tripcast/weatherbot/internal/metrics"
)

const defaultTranslatorEndpoint = "https://api.cognitive.microsofttranslator.com/translate"

// Translator converts text between languages.
type Translator interface {
	Translate(ctx context.Context, text, fromLang, toLang string) (string, error)
}

// AzureTranslator calls the Azure translator v3 REST API.
type AzureTranslator struct {
	key      string
	region   string
	endpoint string
	client   *http.Client
}

// NewAzureTranslator creates a translator client.
func NewAzureTranslator(key, region string, poolSize int) *AzureTranslator {
	return &AzureTranslator{
		key:      key,
		region:   region,
		endpoint: defaultTranslatorEndpoint,
		client:   httpx.NewPooledClient(poolSize, 15*time.Second),
	}
}

// NewAzureTranslatorWithURL creates a translator against an explicit endpoint (tests).
func NewAzureTranslatorWithURL(key, region, endpoint string, poolSize int) *AzureTranslator {
	t := NewAzureTranslator(key, region, poolSize)
	t.endpoint = endpoint
	return t
}

// Translate converts text from fromLang to toLang.
func (t *AzureTranslator) Translate(ctx context.Context, text, fromLang, toLang string) (string, error) {
	if t.key == "" || t.region == "" {
		return "", fmt.Errorf("Azure Translator credentials not set (AZURE_TRANSLATOR_KEY / AZURE_TRANSLATOR_REGION)")
	}

	q := url.Values{}
	q.Set("api-version", "3.0")
	q.Set("to", toLang)
	if fromLang != "" {
		q.Set("from", fromLang)
	}

	body, err := json.Marshal([]map[string]string{{"text": text}})
	if err != nil {
		return "", fmt.Errorf("marshal translate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.endpoint+"?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create translate request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", t.key)
	req.Header.Set("Ocp-Apim-Subscription-Region", t.region)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("translate", "http").Inc()
		return "", fmt.Errorf("translate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.Errors.WithLabelValues("translate", "status").Inc()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("translate status %d: %s", resp.StatusCode, respBody)
	}

	var out []struct {
		Translations []struct {
			Text string `json:"text"`
			To   string `json:"to"`
		} `json:"translations"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode translate response: %w", err)
	}
	if len(out) == 0 || len(out[0].Translations) == 0 {
		return "", fmt.Errorf("translate: empty response")
	}

	metrics.StageDuration.WithLabelValues("translate").Observe(time.Since(start).Seconds())
	return out[0].Translations[0].Text, nil
}
