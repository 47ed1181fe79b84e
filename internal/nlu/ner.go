package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	prose "github.com/jdkato/prose/v2"

	"github.com/tripcast/weatherbot/internal/httpx"
)

// Entity is one named entity produced by a detector.
type Entity struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// EntityDetector finds named entities in free text. Implementations are the
// local prose tagger and a remote NER service.
type EntityDetector interface {
	DetectEntities(ctx context.Context, text string) ([]Entity, error)
}

// ProseDetector runs NER in-process with the prose tagger. It needs no
// external service and is the default backend.
type ProseDetector struct{}

// NewProseDetector creates the in-process detector.
func NewProseDetector() *ProseDetector { return &ProseDetector{} }

// DetectEntities tags the text and returns its named entities in order.
func (d *ProseDetector) DetectEntities(_ context.Context, text string) ([]Entity, error) {
	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil, fmt.Errorf("prose document: %w", err)
	}
	ents := doc.Entities()
	out := make([]Entity, 0, len(ents))
	for _, e := range ents {
		out = append(out, Entity{Label: e.Label, Text: e.Text})
	}
	return out, nil
}

// HTTPDetector calls a remote NER service (spaCy-server style): POST /ent
// with {"text": ...}, response is a list of {label, text} objects.
type HTTPDetector struct {
	url    string
	client *http.Client
}

// NewHTTPDetector creates a client for a remote NER service at url.
func NewHTTPDetector(url string, poolSize int) *HTTPDetector {
	return &HTTPDetector{
		url:    url,
		client: httpx.NewPooledClient(poolSize, 10*time.Second),
	}
}

// DetectEntities posts the text to the NER service and decodes its entities.
func (d *HTTPDetector) DetectEntities(ctx context.Context, text string) ([]Entity, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal ner request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", d.url+"/ent", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create ner request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ner request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ner status %d: %s", resp.StatusCode, respBody)
	}

	var ents []Entity
	if err = json.NewDecoder(resp.Body).Decode(&ents); err != nil {
		return nil, fmt.Errorf("decode ner response: %w", err)
	}
	return ents, nil
}
