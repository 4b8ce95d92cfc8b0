package telemetry

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vinodismyname/biofarmaka/internal/ingest"
	"github.com/vinodismyname/biofarmaka/internal/reshape"
)

func TestSnapshotEvents(t *testing.T) {
	var buf bytes.Buffer
	h := NewHooks(zerolog.New(&buf))

	h.SnapshotLoaded(&ingest.Dataset{ID: "snap-1", Stats: reshape.Stats{Crops: 3, Records: 12}}, 5*time.Millisecond)
	require.Contains(t, buf.String(), `"snapshot":"snap-1"`)
	require.Contains(t, buf.String(), `"crops":3`)
	require.Contains(t, buf.String(), `"clusters":false`)

	buf.Reset()
	h.SnapshotFailed(errors.New("disk gone"), time.Millisecond)
	require.Contains(t, buf.String(), `"level":"error"`)
	require.Contains(t, buf.String(), "disk gone")

	buf.Reset()
	h.SnapshotEvicted("snap-1")
	require.Contains(t, buf.String(), "snapshot evicted")
}

func TestToolTiming(t *testing.T) {
	var buf bytes.Buffer
	h := NewHooks(zerolog.New(&buf))
	now := time.Unix(100, 0)
	h.clock = func() time.Time { return now }

	h.begin(7)
	now = now.Add(250 * time.Millisecond)
	require.Equal(t, 250*time.Millisecond, h.end(7))
	require.Zero(t, h.end(7), "timer is consumed by end")

	h.ToolCompleted("rank_crops", time.Second, mcp.NewToolResultError("NO_DATA: nothing"))
	require.Contains(t, buf.String(), `"level":"warn"`)
	require.Contains(t, buf.String(), "NO_DATA: nothing")

	buf.Reset()
	h.ToolCompleted("rank_crops", time.Second, mcp.NewToolResultText("ok"))
	require.Contains(t, buf.String(), "tool call served")

	require.NotNil(t, h.ServerHooks())
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	handler := RequestLogger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside")
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/selectors", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
	out := buf.String()
	require.Contains(t, out, `"request_id":"req-42"`)
	require.Contains(t, out, "inside")
	require.Contains(t, out, `"status":418`)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}
