package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripcast/weatherbot/internal/sidecar"
)

func dialStatus(t *testing.T, srv *httptest.Server, traceID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/stt/" + traceID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newStatusServer(t *testing.T, store *sidecar.Store, maxConcurrent int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle("/ws/stt/{trace_id}", NewHandler(store, maxConcurrent))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestStreamTerminalStatusClosesConnection(t *testing.T) {
	store, err := sidecar.NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Write(&sidecar.Record{
		TraceID: "t1",
		Text:    "weather in Paris",
		Status:  sidecar.StatusDone,
	}))

	conn := dialStatus(t, newStatusServer(t, store, 4), "t1")
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var frame struct {
		TraceID string `json:"trace_id"`
		Status  string `json:"status"`
		Text    string `json:"text"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "t1", frame.TraceID)
	assert.Equal(t, sidecar.StatusDone, frame.Status)
	assert.Equal(t, "weather in Paris", frame.Text)

	// terminal status: the server closes after the final frame
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestStreamReportsPendingThenProgress(t *testing.T) {
	store, err := sidecar.NewStore(t.TempDir())
	require.NoError(t, err)

	conn := dialStatus(t, newStatusServer(t, store, 4), "t2")
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var frame struct {
		Status string `json:"status"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, sidecar.StatusPending, frame.Status)

	require.NoError(t, store.Write(&sidecar.Record{TraceID: "t2", Status: sidecar.StatusFailed}))
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, sidecar.StatusFailed, frame.Status)
}

func TestStreamAtCapacity(t *testing.T) {
	store, err := sidecar.NewStore(t.TempDir())
	require.NoError(t, err)
	srv := newStatusServer(t, store, 1)

	// hold the only slot with an open pending stream
	dialStatus(t, srv, "t3")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/stt/other"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
