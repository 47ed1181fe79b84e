package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tripcast/weatherbot/internal/agent"
	"github.com/tripcast/weatherbot/internal/audio"
	"github.com/tripcast/weatherbot/internal/chat"
	"github.com/tripcast/weatherbot/internal/pipeline"
	"github.com/tripcast/weatherbot/internal/sidecar"
	"github.com/tripcast/weatherbot/internal/trace"
)

const (
	// maxQueryLen bounds the /api/text query parameter.
	maxQueryLen = 500

	// defaultTraceListLimit is how many traces are returned when the
	// caller omits the ?limit= query parameter.
	defaultTraceListLimit = 20
)

type deps struct {
	cfg        config
	store      *sidecar.Store
	ingestor   *audio.Ingestor
	pipe       *pipeline.Pipeline
	agent      *agent.TravelAgent
	responder  *chat.Responder
	traceStore *trace.Store
	wsHandler  http.Handler
}

// registerRoutes wires all HTTP endpoints to the shared mux.
func registerRoutes(mux *http.ServeMux, d deps) {
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("POST /api/voice", d.handleVoice)
	mux.HandleFunc("POST /api/text", d.handleText)
	mux.HandleFunc("POST /api/stt/{trace_id}/process", d.handleProcess)
	mux.HandleFunc("GET /api/stt/{trace_id}", d.handleResult)
	mux.HandleFunc("GET /api/stt/{trace_id}/agent", d.handleAgentResult)
	mux.HandleFunc("GET /api/stt/{trace_id}/response", d.handleResponse)
	mux.Handle("/ws/stt/{trace_id}", d.wsHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	registerTraceRoutes(mux, d.traceStore)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleVoice accepts an uploaded recording, converts it synchronously so
// save/convert failures surface to the client, and schedules the rest of the
// pipeline in the background.
func (d deps) handleVoice(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "audio file required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	traceID := uuid.NewString()
	slog.Info("received upload", "trace_id", traceID, "filename", header.Filename)

	if _, err := d.ingestor.Ingest(r.Context(), file, header.Filename, traceID); err != nil {
		slog.Error("failed to save/convert upload", "trace_id", traceID, "error", err)
		http.Error(w, "save_or_convert_failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	go d.pipe.Complete(traceID, d.cfg.sttLanguages)
	slog.Info("scheduled background processing", "trace_id", traceID)

	writeJSON(w, http.StatusOK, map[string]string{"trace_id": traceID, "status": "processing"})
}

// handleText runs the agent and response generation synchronously for a raw
// text query.
func (d deps) handleText(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" || len(query) > maxQueryLen {
		http.Error(w, "query required (max 500 chars)", http.StatusBadRequest)
		return
	}
	slog.Info("received text query", "query", query)

	out := d.agent.Run(r.Context(), query)
	if out.Weather.Error == "no_location_extracted" {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":        "failed",
			"response_text": "I couldn't identify the location in your query. Please be specific.",
			"error":         "NLU failed to extract location",
		})
		return
	}

	if !d.responder.Configured() {
		http.Error(w, "context_error: No API key provided for chatbot", http.StatusInternalServerError)
		return
	}

	resp := d.responder.Generate(r.Context(), "", query, out.NLU, out.Weather)
	if resp.Error != nil {
		slog.Error("text chatbot failed", "error", *resp.Error)
		http.Error(w, *resp.Error, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "done",
		"response_text": resp.ResponseText,
		"generated_at":  resp.GeneratedAt,
		"nlu":           out.NLU,
		"weather":       out.Weather,
	})
}

// handleProcess runs recognition and the agent synchronously for a trace
// whose audio was already ingested, stopping before response generation.
func (d deps) handleProcess(w http.ResponseWriter, r *http.Request) {
	traceID := r.PathValue("trace_id")
	record, err := d.pipe.Process(r.Context(), traceID, d.cfg.sttLanguages)
	if err != nil {
		if errors.Is(err, pipeline.ErrAudioNotFound) {
			http.Error(w, "trace_id audio not found", http.StatusNotFound)
			return
		}
		slog.Error("manual processing failed", "trace_id", traceID, "error", err)
		http.Error(w, "processing_failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleResult returns the trace's sidecar as-is, or a pending stub when no
// sidecar exists yet.
func (d deps) handleResult(w http.ResponseWriter, r *http.Request) {
	traceID := r.PathValue("trace_id")
	if !d.store.Exists(traceID) {
		writeJSON(w, http.StatusOK, map[string]string{"trace_id": traceID, "status": "pending"})
		return
	}
	rec, err := d.store.Load(traceID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleAgentResult returns just the agent slice of the sidecar.
func (d deps) handleAgentResult(w http.ResponseWriter, r *http.Request) {
	traceID := r.PathValue("trace_id")
	if !d.store.Exists(traceID) {
		writeJSON(w, http.StatusOK, map[string]string{"trace_id": traceID, "status": "pending"})
		return
	}
	rec, err := d.store.Load(traceID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	status := rec.Status
	if status == "" {
		status = sidecar.StatusDone
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trace_id": traceID,
		"nlu":      rec.NLU,
		"weather":  rec.Weather,
		"status":   status,
	})
}

// handleResponse generates (or regenerates) the travel response from the
// persisted sidecar.
func (d deps) handleResponse(w http.ResponseWriter, r *http.Request) {
	traceID := r.PathValue("trace_id")
	if !d.store.Exists(traceID) {
		writeJSON(w, http.StatusOK, map[string]string{"trace_id": traceID, "status": "pending"})
		return
	}
	rec, err := d.store.Load(traceID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp, err := d.responder.FromRecord(r.Context(), rec)
	if err != nil {
		slog.Error("chatbot generation failed", "trace_id", traceID, "error", err)
		http.Error(w, "chatbot_failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func registerTraceRoutes(mux *http.ServeMux, store *trace.Store) {
	mux.HandleFunc("GET /api/traces", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		limit := queryInt(r, "limit", defaultTraceListLimit)
		offset := queryInt(r, "offset", 0)
		traces, total, err := store.ListTraces(limit, offset)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"traces": traces, "total": total})
	})

	mux.HandleFunc("GET /api/traces/{id}", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		t, runs, err := store.GetTrace(r.PathValue("id"))
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"trace": t, "runs": runs})
	})

	mux.HandleFunc("GET /api/traces/{id}/runs/{runId}", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		run, spans, err := store.GetRun(r.PathValue("id"), r.PathValue("runId"))
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"run": run, "spans": spans})
	})
}

// allowedOrigins are the dev frontend origins permitted by CORS.
var allowedOrigins = map[string]bool{
	"http://127.0.0.1:8080": true,
	"http://localhost:8080": true,
	"http://localhost:5173": true,
}

// withCORS allows the dev frontend origins with credentials.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "*")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
