package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/vinodismyname/biofarmaka/internal/ingest"
)

// Hooks logs MCP server and snapshot lifecycle events. It satisfies
// ingest.Observer so one instance can be shared by the cache and the server.
type Hooks struct {
	logger  zerolog.Logger
	clock   func() time.Time
	mu      sync.Mutex
	started map[string]time.Time
}

var _ ingest.Observer = (*Hooks)(nil)

// NewHooks constructs a Hooks instance with the provided logger.
func NewHooks(logger zerolog.Logger) *Hooks {
	return &Hooks{logger: logger, clock: time.Now, started: map[string]time.Time{}}
}

// SnapshotLoaded records a successful load of the source files.
func (h *Hooks) SnapshotLoaded(ds *ingest.Dataset, took time.Duration) {
	h.logger.Info().
		Str("snapshot", ds.ID).
		Int("years", len(ds.Years())).
		Int("regions", len(ds.Regions())).
		Int("crops", ds.Stats.Crops).
		Int("records", ds.Stats.Records).
		Int("coerced_cells", ds.Stats.CoercedCells).
		Int("diagnostics", len(ds.Diagnostics)).
		Bool("clusters", ds.ClusterAvailable()).
		Dur("took", took).
		Msg("snapshot loaded")
}

// SnapshotFailed records a load failure.
func (h *Hooks) SnapshotFailed(err error, took time.Duration) {
	h.logger.Error().Err(err).Dur("took", took).Msg("snapshot load failed")
}

// SnapshotEvicted records an idle snapshot being dropped.
func (h *Hooks) SnapshotEvicted(id string) {
	h.logger.Info().Str("snapshot", id).Msg("snapshot evicted")
}

// ServerHooks builds the mcp-go callbacks for sessions, tool calls and errors.
func (h *Hooks) ServerHooks() *server.Hooks {
	hooks := &server.Hooks{}

	hooks.AddOnRegisterSession(func(ctx context.Context, session server.ClientSession) {
		h.logger.Info().Str("session_id", session.SessionID()).Msg("session registered")
	})

	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		h.logger.Info().Str("session_id", session.SessionID()).Msg("session unregistered")
	})

	hooks.AddAfterListTools(func(ctx context.Context, id any, req *mcp.ListToolsRequest, res *mcp.ListToolsResult) {
		h.logger.Debug().Int("tools", len(res.Tools)).Msg("list_tools served")
	})

	hooks.AddBeforeCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest) {
		h.begin(id)
	})

	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, res *mcp.CallToolResult) {
		h.ToolCompleted(req.Params.Name, h.end(id), res)
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		h.end(id)
		h.logger.Error().Str("method", string(method)).Err(err).Msg("request error")
	})

	return hooks
}

// ToolCompleted logs a finished tool call. Error results are logged with the
// text of their first content block.
func (h *Hooks) ToolCompleted(tool string, took time.Duration, res *mcp.CallToolResult) {
	if res != nil && res.IsError {
		evt := h.logger.Warn().Str("tool", tool).Dur("took", took)
		if len(res.Content) > 0 {
			if tc, ok := mcp.AsTextContent(res.Content[0]); ok {
				evt = evt.Str("error", tc.Text)
			}
		}
		evt.Msg("tool call failed")
		return
	}
	h.logger.Info().Str("tool", tool).Dur("took", took).Msg("tool call served")
}

func (h *Hooks) begin(id any) {
	h.mu.Lock()
	h.started[fmt.Sprint(id)] = h.clock()
	h.mu.Unlock()
}

func (h *Hooks) end(id any) time.Duration {
	key := fmt.Sprint(id)
	h.mu.Lock()
	defer h.mu.Unlock()
	start, ok := h.started[key]
	if !ok {
		return 0
	}
	delete(h.started, key)
	return h.clock().Sub(start)
}
