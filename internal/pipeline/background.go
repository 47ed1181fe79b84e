package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tripcast/weatherbot/internal/metrics"
	"github.com/tripcast/weatherbot/internal/sidecar"
)

// Complete runs the full pipeline for a trace in the background: Process,
// then response generation, then the final sidecar write with a terminal
// status. It never returns an error; failures are persisted to the sidecar
// so pollers observe them. Intended to run in its own goroutine.
func (p *Pipeline) Complete(traceID string, languages []string) {
	metrics.TracesActive.Inc()
	defer metrics.TracesActive.Dec()
	metrics.TracesTotal.Inc()

	log := logger(traceID)
	ctx := context.Background()
	start := time.Now()

	record, err := p.Process(ctx, traceID, languages)
	if err != nil {
		metrics.TraceStatus.WithLabelValues(sidecar.StatusFailed).Inc()
		log.Error("pipeline failed", "error", err)
		if werr := p.cfg.Sidecars.WriteFailed(traceID, err); werr != nil {
			log.Error("failed to write failure sidecar", "error", werr)
		}
		return
	}

	p.finish(ctx, record, log)
	metrics.E2EDuration.Observe(time.Since(start).Seconds())
}

// finish generates the response for a processed record and writes the
// terminal checkpoint. A response failure downgrades the status rather than
// discarding the agent results.
func (p *Pipeline) finish(ctx context.Context, record *sidecar.Record, log *slog.Logger) {
	respStart := time.Now()
	resp, err := p.respond(ctx, record)
	metrics.StageDuration.WithLabelValues("respond").Observe(time.Since(respStart).Seconds())
	if err != nil {
		metrics.Errors.WithLabelValues("respond", "generation").Inc()
		metrics.Warnings.WithLabelValues("chatbot_failed").Inc()
		record.AddWarning(fmt.Sprintf("chatbot_failed: %v", err))
		record.Status = sidecar.StatusAgentDoneChatFail
		metrics.TraceStatus.WithLabelValues(sidecar.StatusAgentDoneChatFail).Inc()
		log.Error("response generation failed", "error", err)
	} else {
		record.Response = resp
		record.Status = sidecar.StatusDone
		metrics.TraceStatus.WithLabelValues(sidecar.StatusDone).Inc()
		log.Info("trace complete", "status", record.Status)
	}

	if werr := p.cfg.Sidecars.Write(record); werr != nil {
		log.Error("failed to write final sidecar", "error", werr)
	}
}

func (p *Pipeline) respond(ctx context.Context, record *sidecar.Record) (*sidecar.Response, error) {
	if p.cfg.Responder == nil {
		return nil, fmt.Errorf("No API key provided for chatbot")
	}
	return p.cfg.Responder.Respond(ctx, record)
}
