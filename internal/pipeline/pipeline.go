package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/tripcast/weatherbot/internal/agent"
	"github.com/tripcast/weatherbot/internal/metrics"
	"github.com/tripcast/weatherbot/internal/sidecar"
	"github.com/tripcast/weatherbot/internal/stt"
	"github.com/tripcast/weatherbot/internal/trace"
)

// ErrAudioNotFound is returned by Process when no converted audio exists for
// the trace. Handlers map it to 404.
var ErrAudioNotFound = errors.New("audio not found for trace")

// Agent runs entity extraction and weather lookup for a query.
type Agent interface {
	Run(ctx context.Context, query string) agent.Output
}

// Responder generates the final natural-language answer from a processed record.
type Responder interface {
	Respond(ctx context.Context, rec *sidecar.Record) (*sidecar.Response, error)
}

// Config carries the collaborators for a Pipeline. Translator, Responder and
// Tracer are optional; a nil Tracer disables trace persistence.
type Config struct {
	Recognizer stt.Recognizer
	Translator stt.Translator
	Agent      Agent
	Responder  Responder
	Sidecars   *sidecar.Store
	Tracer     *trace.Tracer
	Languages  []string
}

// Pipeline drives a trace from converted audio through recognition,
// translation, the weather agent and response generation, checkpointing
// progress to the trace's sidecar file after each durable stage.
type Pipeline struct {
	cfg Config
	now func() time.Time
}

func New(cfg Config) *Pipeline {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"en-US", "ja-JP"}
	}
	return &Pipeline{cfg: cfg, now: time.Now}
}

// Process runs the trace through recognition, optional translation and the
// weather agent, writing the sidecar checkpoint after the recognition stage
// and again after the agent stage. It does not generate the final response;
// the returned record ends at the second checkpoint.
func (p *Pipeline) Process(ctx context.Context, traceID string, languages []string) (*sidecar.Record, error) {
	wavPath := p.cfg.Sidecars.AudioPath(traceID)
	if _, err := os.Stat(wavPath); err != nil {
		return nil, ErrAudioNotFound
	}
	if len(languages) == 0 {
		languages = p.cfg.Languages
	}

	runID := p.cfg.Tracer.StartRun(traceID)

	sttStart := p.now()
	recog, err := p.cfg.Recognizer.RecognizeOnce(ctx, wavPath, languages)
	sttDur := p.now().Sub(sttStart)
	if err != nil {
		metrics.Errors.WithLabelValues("stt", "recognition").Inc()
		p.cfg.Tracer.RecordSpan(runID, "stt", sttStart, sttDur, wavPath, "", trace.StatusError, err.Error())
		p.cfg.Tracer.EndRun(runID, "", "", trace.StatusError)
		return nil, fmt.Errorf("stt: %w", err)
	}
	p.cfg.Tracer.RecordSpan(runID, "stt", sttStart, sttDur, wavPath, recog.Text, trace.StatusOK, "")

	record := &sidecar.Record{
		TraceID:          traceID,
		Text:             recog.Text,
		Confidence:       recog.Confidence,
		Provider:         recog.Provider,
		DetectedLanguage: recog.DetectedLanguage,
		ProcessedAt:      p.now().Unix(),
	}

	englishText := p.translate(ctx, runID, record)

	// Checkpoint 1: transcription plus translation outcome.
	if err := p.cfg.Sidecars.Write(record); err != nil {
		p.cfg.Tracer.EndRun(runID, record.Text, "", trace.StatusError)
		return nil, fmt.Errorf("write sidecar: %w", err)
	}

	textPath, err := p.cfg.Sidecars.WriteText(traceID, englishText)
	if err != nil {
		p.cfg.Tracer.EndRun(runID, record.Text, "", trace.StatusError)
		return nil, fmt.Errorf("write text file: %w", err)
	}
	record.TextFile = textPath

	p.attachAgent(ctx, runID, record, englishText)

	// Checkpoint 2: agent results attached.
	if err := p.cfg.Sidecars.Write(record); err != nil {
		p.cfg.Tracer.EndRun(runID, record.Text, "", trace.StatusError)
		return nil, fmt.Errorf("write sidecar: %w", err)
	}

	p.cfg.Tracer.EndRun(runID, record.Text, "", trace.StatusOK)
	return record, nil
}

// translate fills record.TextEN and returns the text subsequent stages should
// use. Japanese transcripts are translated to English; a translation failure
// is recoverable and leaves text_en null with a warning on the record.
func (p *Pipeline) translate(ctx context.Context, runID string, record *sidecar.Record) string {
	text := record.Text
	lang := strings.ToLower(record.DetectedLanguage)
	if text == "" || !strings.HasPrefix(lang, "ja") || p.cfg.Translator == nil {
		en := text
		record.TextEN = &en
		return text
	}

	start := p.now()
	translated, err := p.cfg.Translator.Translate(ctx, text, "ja", "en")
	dur := p.now().Sub(start)
	if err != nil {
		metrics.Errors.WithLabelValues("translate", "upstream").Inc()
		metrics.Warnings.WithLabelValues("translation_failed").Inc()
		record.AddWarning(fmt.Sprintf("translation_failed: %v", err))
		p.cfg.Tracer.RecordSpan(runID, "translate", start, dur, text, "", trace.StatusError, err.Error())
		record.TextEN = nil
		return text
	}
	p.cfg.Tracer.RecordSpan(runID, "translate", start, dur, text, translated, trace.StatusOK, "")
	record.TextEN = &translated
	return translated
}

// attachAgent runs the weather agent and attaches its results to the record.
// An agent failure is recoverable: the record gets agent_failed placeholders
// and a warning instead of aborting the trace.
func (p *Pipeline) attachAgent(ctx context.Context, runID string, record *sidecar.Record, query string) {
	start := p.now()
	out, err := p.runAgent(ctx, query)
	dur := p.now().Sub(start)
	metrics.StageDuration.WithLabelValues("agent").Observe(dur.Seconds())
	if err != nil {
		metrics.Errors.WithLabelValues("agent", "internal").Inc()
		metrics.Warnings.WithLabelValues("agent_failed").Inc()
		note := fmt.Sprintf("agent_failed: %v", err)
		record.AddWarning(note)
		placeholder, _ := json.Marshal(map[string]string{"error": note})
		record.AgentRaw = placeholder
		record.NLU = placeholder
		record.Weather = placeholder
		p.cfg.Tracer.RecordSpan(runID, "agent", start, dur, query, "", trace.StatusError, err.Error())
		return
	}

	record.AgentRaw, _ = json.Marshal(out)
	record.NLU, _ = json.Marshal(out.NLU)
	record.Weather, _ = json.Marshal(out.Weather)
	p.cfg.Tracer.RecordSpan(runID, "agent", start, dur, query, string(record.AgentRaw), trace.StatusOK, "")
}

// runAgent isolates agent panics so a bad extraction cannot take down the trace.
func (p *Pipeline) runAgent(ctx context.Context, query string) (out agent.Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	if p.cfg.Agent == nil {
		return agent.Output{}, errors.New("agent not configured")
	}
	return p.cfg.Agent.Run(ctx, query), nil
}

// logger returns the default structured logger with the trace attached.
func logger(traceID string) *slog.Logger {
	return slog.Default().With("trace_id", traceID)
}
