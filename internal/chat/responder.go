package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tripcast/weatherbot/internal/nlu"
	"github.com/tripcast/weatherbot/internal/prompts"
	"github.com/tripcast/weatherbot/internal/sidecar"
	"github.com/tripcast/weatherbot/internal/weather"
)

// TravelResponse is the full response-generation output, including the merged
// context it was built from.
type TravelResponse struct {
	TraceID          string        `json:"trace_id"`
	City             string        `json:"city"`
	ResponseText     string        `json:"response_text"`
	MergedContext    MergedContext `json:"merged_context"`
	GeneratedAt      string        `json:"generated_at"`
	ResponseLanguage string        `json:"response_language"`
	TTS              *string       `json:"tts"`
	Error            *string       `json:"error"`
}

// Sidecar projects the response into the fields merged under the sidecar's
// "response" key.
func (tr *TravelResponse) Sidecar() *sidecar.Response {
	return &sidecar.Response{
		Text:             tr.ResponseText,
		GeneratedAt:      tr.GeneratedAt,
		ResponseLanguage: tr.ResponseLanguage,
		TTS:              tr.TTS,
		Error:            tr.Error,
	}
}

// Responder builds the prompt pair from agent output and performs the single
// LLM call. An LLM failure is always non-fatal: it becomes an error note in
// the response, never an error to the caller.
type Responder struct {
	gen Generator
	now func() time.Time
}

// NewResponder creates a responder over the given generator. A nil generator
// means the LLM engine is unconfigured (no API key); generation attempts then
// fail before any call is made.
func NewResponder(gen Generator) *Responder {
	return &Responder{gen: gen, now: time.Now}
}

// Configured reports whether a generator backend is available.
func (r *Responder) Configured() bool {
	return r.gen != nil
}

// Generate builds the merged context and prompt pair for a query and runs one
// completion. Never returns an error.
func (r *Responder) Generate(ctx context.Context, traceID, query string, n nlu.Result, w weather.Result) *TravelResponse {
	merged := BuildMergedContext(n, w)
	if merged.UserQuery == "" {
		merged.UserQuery = query
	}

	tr := &TravelResponse{
		TraceID:          traceID,
		City:             cityOf(n, w),
		MergedContext:    merged,
		GeneratedAt:      r.now().UTC().Format("2006-01-02T15:04:05Z"),
		ResponseLanguage: "en",
	}

	contextJSON, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		note := fmt.Sprintf("chatbot_failed: %v", err)
		tr.Error = &note
		return tr
	}

	text, err := r.gen.Generate(ctx, prompts.TravelSystem, prompts.TravelUser(merged.UserQuery, contextJSON))
	if err != nil {
		note := fmt.Sprintf("chatbot_failed: %v", err)
		tr.Error = &note
		return tr
	}
	tr.ResponseText = text
	return tr
}

// FromRecord generates a response from a persisted sidecar record. It fails
// (a Go error, handled as chatbot_failed upstream) when the generator is
// unconfigured or the record carries no usable agent output.
func (r *Responder) FromRecord(ctx context.Context, rec *sidecar.Record) (*TravelResponse, error) {
	if r.gen == nil {
		return nil, fmt.Errorf("No API key provided for chatbot")
	}

	n, w, err := agentFromRecord(rec)
	if err != nil {
		return nil, err
	}
	return r.Generate(ctx, rec.TraceID, rec.Text, n, w), nil
}

// Respond adapts FromRecord to the pipeline's sidecar-response contract.
func (r *Responder) Respond(ctx context.Context, rec *sidecar.Record) (*sidecar.Response, error) {
	tr, err := r.FromRecord(ctx, rec)
	if err != nil {
		return nil, err
	}
	return tr.Sidecar(), nil
}

// agentFromRecord pulls nlu/weather out of the record, falling back to the
// raw agent payload when the normalized fields are missing.
func agentFromRecord(rec *sidecar.Record) (nlu.Result, weather.Result, error) {
	var n nlu.Result
	var w weather.Result

	nluRaw := rec.NLU
	weatherRaw := rec.Weather
	if len(nluRaw) == 0 || len(weatherRaw) == 0 {
		var raw struct {
			NLU     json.RawMessage `json:"nlu"`
			Weather json.RawMessage `json:"weather"`
		}
		if len(rec.AgentRaw) > 0 {
			_ = json.Unmarshal(rec.AgentRaw, &raw)
		}
		if len(nluRaw) == 0 {
			nluRaw = raw.NLU
		}
		if len(weatherRaw) == 0 {
			weatherRaw = raw.Weather
		}
	}

	if len(nluRaw) == 0 {
		return n, w, fmt.Errorf("no NLU found in sidecar")
	}
	if len(weatherRaw) == 0 {
		return n, w, fmt.Errorf("no weather found in sidecar")
	}
	if err := json.Unmarshal(nluRaw, &n); err != nil {
		return n, w, fmt.Errorf("decode sidecar nlu: %w", err)
	}
	if err := json.Unmarshal(weatherRaw, &w); err != nil {
		return n, w, fmt.Errorf("decode sidecar weather: %w", err)
	}
	return n, w, nil
}

func cityOf(n nlu.Result, w weather.Result) string {
	loc := strptr(w.Location)
	if loc == "" {
		loc = strptr(n.Entities.Location)
	}
	if loc == "" {
		return "unknown"
	}
	return strings.TrimSpace(strings.SplitN(loc, ",", 2)[0])
}
