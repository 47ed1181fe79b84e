// Package audio ingests uploaded recordings and transcodes them to the
// canonical waveform the recognizer consumes.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/tripcast/weatherbot/internal/metrics"
	"github.com/tripcast/weatherbot/internal/sidecar"
)

// Transcoder converts an audio file into a mono 16-bit PCM waveform at the
// given sample rate.
type Transcoder interface {
	Convert(ctx context.Context, inputPath, outputPath string, sampleRate int) error
}

// FFmpegTranscoder shells out to ffmpeg.
type FFmpegTranscoder struct {
	bin string
}

// NewFFmpegTranscoder creates a transcoder using the given ffmpeg binary,
// defaulting to "ffmpeg" on PATH.
func NewFFmpegTranscoder(bin string) *FFmpegTranscoder {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpegTranscoder{bin: bin}
}

// Convert transcodes inputPath to a mono pcm_s16le WAV at outputPath.
// Failure includes ffmpeg's stderr.
func (t *FFmpegTranscoder) Convert(ctx context.Context, inputPath, outputPath string, sampleRate int) error {
	cmd := exec.CommandContext(ctx, t.bin,
		"-y",
		"-i", inputPath,
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-vn",
		"-acodec", "pcm_s16le",
		outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg error: %s", stderr.String())
	}
	return nil
}

// Ingestor saves uploads and produces the canonical per-trace waveform.
type Ingestor struct {
	store      *sidecar.Store
	transcoder Transcoder
	sampleRate int
}

// NewIngestor creates an ingestor writing into the trace store's directory.
func NewIngestor(store *sidecar.Store, transcoder Transcoder, sampleRate int) *Ingestor {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Ingestor{store: store, transcoder: transcoder, sampleRate: sampleRate}
}

// Ingest persists the upload to a trace-scoped raw path, transcodes it to the
// canonical <trace_id>.wav, and removes the raw file. Transcoder failure
// aborts ingestion; the raw file is kept then for debugging. Raw-file
// deletion failure is logged, not propagated.
func (i *Ingestor) Ingest(ctx context.Context, upload io.Reader, filename, traceID string) (string, error) {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".webm"
	}
	rawPath := i.store.RawPath(traceID, ext)

	if err := saveUpload(upload, rawPath); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}

	wavPath := i.store.AudioPath(traceID)
	if err := i.transcoder.Convert(ctx, rawPath, wavPath, i.sampleRate); err != nil {
		metrics.TranscodeFailures.Inc()
		return "", fmt.Errorf("conversion_failed: %w", err)
	}

	if err := os.Remove(rawPath); err != nil {
		slog.Warn("could not delete original upload", "path", rawPath, "error", err)
	}

	if info, err := ProbeWAV(wavPath); err != nil {
		slog.Warn("wav probe failed", "trace_id", traceID, "error", err)
	} else {
		slog.Info("audio ingested", "trace_id", traceID,
			"duration_ms", info.Duration.Milliseconds(),
			"sample_rate", info.SampleRate, "channels", info.Channels)
	}

	metrics.UploadsTotal.Inc()
	return wavPath, nil
}

func saveUpload(src io.Reader, dest string) error {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err = io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(dest)
		return err
	}
	return f.Close()
}
