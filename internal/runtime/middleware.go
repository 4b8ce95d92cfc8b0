package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/vinodismyname/biofarmaka/pkg/mcperr"
)

// Middleware enforces runtime limits for tool calls and HTTP requests using
// the Controller. It bounds global concurrency and applies an operation
// timeout to each call.
type Middleware struct {
	ctrl *Controller
}

// NewMiddleware constructs a Middleware bound to the provided Controller.
func NewMiddleware(ctrl *Controller) *Middleware {
	return &Middleware{ctrl: ctrl}
}

// acquire reserves request capacity with a bounded wait.
func (m *Middleware) acquire(ctx context.Context) error {
	acquireCtx := ctx
	if m.ctrl.limits.AcquireRequestTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, m.ctrl.limits.AcquireRequestTimeout)
		defer cancel()
	}
	return m.ctrl.AcquireRequest(acquireCtx)
}

func (m *Middleware) busyMessage() string {
	return fmt.Sprintf("concurrent request limit reached (max=%d). Please retry shortly.", m.ctrl.limits.MaxConcurrentRequests)
}

// ToolMiddleware implements mcp-go's tool handler middleware interface.
// It acquires a request slot, applies a timeout, and guarantees release.
func (m *Middleware) ToolMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := m.acquire(ctx); err != nil {
			// Tool-level error so the client can retry.
			return mcperr.New(mcperr.BusyResource, m.busyMessage()), nil
		}
		defer m.ctrl.ReleaseRequest()

		callCtx := ctx
		cancel := func() {}
		if m.ctrl.limits.OperationTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, m.ctrl.limits.OperationTimeout)
		}
		defer cancel()

		res, err := next(callCtx, req)

		// Prefer a tool-level timeout error over a transport error.
		if errors.Is(err, context.DeadlineExceeded) || (callCtx.Err() == context.DeadlineExceeded && err == nil && res == nil) {
			return mcperr.New(mcperr.Timeout, ""), nil
		}

		return res, err
	}
}

// HTTPMiddleware applies the same request cap and timeout to HTTP handlers.
// Saturation is reported as 503 with the BUSY_RESOURCE code.
func (m *Middleware) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := m.acquire(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"code":  string(mcperr.BusyResource),
				"error": m.busyMessage(),
			})
			return
		}
		defer m.ctrl.ReleaseRequest()

		ctx := r.Context()
		if m.ctrl.limits.OperationTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.ctrl.limits.OperationTimeout)
			defer cancel()
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
