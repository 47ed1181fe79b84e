package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tripcast/weatherbot/internal/httpx"
	"github.com/tripcast/weatherbot/internal/metrics"
)

// OllamaGenerator produces completions from a local Ollama server. Used as the
// offline/dev LLM engine.
type OllamaGenerator struct {
	url       string
	model     string
	maxTokens int
	client    *http.Client
}

// NewOllamaGenerator creates an Ollama HTTP client.
func NewOllamaGenerator(url, model string, maxTokens, poolSize int) *OllamaGenerator {
	return &OllamaGenerator{
		url:       url,
		model:     model,
		maxTokens: maxTokens,
		client:    httpx.NewPooledClient(poolSize, 60*time.Second),
	}
}

type ollamaMessage struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	Thinking string `json:"thinking,omitempty"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Stream   bool            `json:"stream"`
	Messages []ollamaMessage `json:"messages"`
	Options  struct {
		NumPredict int `json:"num_predict"`
	} `json:"options"`
}

type ollamaStreamChunk struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Generate sends the prompt pair to Ollama and accumulates the streamed reply.
func (g *OllamaGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	start := time.Now()

	reqBody := ollamaRequest{
		Model:  g.model,
		Stream: true,
		Messages: []ollamaMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	reqBody.Options.NumPredict = g.maxTokens

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.url+"/api/chat", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("llm", "http").Inc()
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.Errors.WithLabelValues("llm", "status").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ollama status %d: %s", resp.StatusCode, body)
	}

	text := consumeOllamaStream(resp.Body)
	metrics.StageDuration.WithLabelValues("llm").Observe(time.Since(start).Seconds())
	return text, nil
}

func consumeOllamaStream(body io.Reader) string {
	var text string
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		var chunk ollamaStreamChunk
		if json.Unmarshal(scanner.Bytes(), &chunk) != nil {
			continue
		}
		if chunk.Done {
			break
		}
		text += chunk.Message.Content
	}
	return text
}
