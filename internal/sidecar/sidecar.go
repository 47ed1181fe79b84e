// Package sidecar persists the evolving per-trace JSON record that accumulates
// pipeline results. Every checkpoint is a full-document rewrite through a temp
// file + rename, so readers never observe a torn record.
package sidecar

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Terminal and intermediate trace statuses. A trace with no sidecar on disk is
// reported as pending.
const (
	StatusPending           = "pending"
	StatusDone              = "done"
	StatusAgentDoneChatFail = "agent_done_chatbot_failed"
	StatusFailed            = "failed"
)

// Response holds the generated chatbot output merged under the record's
// "response" key by the background wrapper.
type Response struct {
	Text             string  `json:"text"`
	GeneratedAt      string  `json:"generated_at"`
	ResponseLanguage string  `json:"response_language"`
	TTS              *string `json:"tts"`
	Error            *string `json:"error"`
}

// Record is the durable sidecar document for one trace. Fields accumulate
// across stages; once written a field is never retracted, later stages only
// add or overwrite their own namespace.
type Record struct {
	TraceID          string   `json:"trace_id"`
	Text             string   `json:"text"`
	Confidence       *float64 `json:"confidence"`
	Provider         string   `json:"provider"`
	DetectedLanguage string   `json:"detected_language,omitempty"`
	ProcessedAt      int64    `json:"processed_at"`

	// TextEN is the post-translation text; nil when translation failed.
	TextEN   *string `json:"text_en"`
	TextFile string  `json:"text_file,omitempty"`

	AgentRaw json.RawMessage `json:"agent_raw,omitempty"`
	NLU      json.RawMessage `json:"nlu,omitempty"`
	Weather  json.RawMessage `json:"weather,omitempty"`

	Warnings []string  `json:"warnings,omitempty"`
	Response *Response `json:"response,omitempty"`
	Status   string    `json:"status,omitempty"`
}

// AddWarning appends a recoverable-failure note. Warnings are append-only.
func (r *Record) AddWarning(note string) {
	r.Warnings = append(r.Warnings, note)
}

// failedRecord is the minimal sidecar written when the pipeline itself fails
// before producing any usable output. It replaces prior partial content for
// the trace wholesale.
type failedRecord struct {
	TraceID     string `json:"trace_id"`
	Status      string `json:"status"`
	Error       string `json:"error"`
	ProcessedAt int64  `json:"processed_at"`
}

// Store maps trace ids to the flat files kept for each trace: the sidecar
// JSON, the canonical waveform, the raw upload, and the plain-text transcript.
type Store struct {
	dir string
}

// NewStore creates the upload directory if needed and returns a store rooted there.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the upload directory root.
func (s *Store) Dir() string { return s.dir }

// SidecarPath returns the sidecar JSON path for a trace.
func (s *Store) SidecarPath(traceID string) string {
	return filepath.Join(s.dir, traceID+".json")
}

// AudioPath returns the canonical waveform path for a trace.
func (s *Store) AudioPath(traceID string) string {
	return filepath.Join(s.dir, traceID+".wav")
}

// RawPath returns the pre-transcode upload path for a trace.
func (s *Store) RawPath(traceID, ext string) string {
	return filepath.Join(s.dir, "rec-"+traceID+ext)
}

// TextPath returns the plain-text transcript path for a trace.
func (s *Store) TextPath(traceID string) string {
	return filepath.Join(s.dir, traceID+".txt")
}

// Exists reports whether a sidecar has been written for the trace.
func (s *Store) Exists(traceID string) bool {
	_, err := os.Stat(s.SidecarPath(traceID))
	return err == nil
}

// Write rewrites the full sidecar document atomically.
func (s *Store) Write(rec *Record) error {
	return s.writeJSON(rec.TraceID, rec)
}

// WriteFailed replaces the trace's sidecar with the minimal failed record.
func (s *Store) WriteFailed(traceID string, cause error) error {
	return s.writeJSON(traceID, failedRecord{
		TraceID:     traceID,
		Status:      StatusFailed,
		Error:       cause.Error(),
		ProcessedAt: time.Now().Unix(),
	})
}

func (s *Store) writeJSON(traceID string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sidecar %s: %w", traceID, err)
	}

	tmp, err := os.CreateTemp(s.dir, traceID+".*.tmp")
	if err != nil {
		return fmt.Errorf("sidecar temp file: %w", err)
	}
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write sidecar %s: %w", traceID, err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close sidecar temp: %w", err)
	}
	if err = os.Rename(tmp.Name(), s.SidecarPath(traceID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace sidecar %s: %w", traceID, err)
	}
	return nil
}

// Load reads and decodes the sidecar for a trace.
func (s *Store) Load(traceID string) (*Record, error) {
	data, err := os.ReadFile(s.SidecarPath(traceID))
	if err != nil {
		return nil, fmt.Errorf("read sidecar %s: %w", traceID, err)
	}
	var rec Record
	if err = json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode sidecar %s: %w", traceID, err)
	}
	return &rec, nil
}

// WriteText writes the plain-text transcript side file and returns its path.
func (s *Store) WriteText(traceID, text string) (string, error) {
	path := s.TextPath(traceID)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write text file %s: %w", traceID, err)
	}
	return path, nil
}
