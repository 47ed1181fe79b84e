package trace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNilTracerIsNoOp(t *testing.T) {
	var tr *Tracer

	runID := tr.StartRun("trace-1")
	assert.Empty(t, runID)

	// none of these may panic on a nil receiver
	tr.RecordSpan(runID, "stt", time.Now(), time.Second, "in", "out", StatusOK, "")
	tr.EndRun(runID, "transcript", "response", StatusOK)
	tr.Close()
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "abcde", truncate("abcdefgh", 5))
}
