package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/tmc/langchaingo/llms"
)

// Registry holds the tool definitions and their bound handlers.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]server.ServerTool
}

// New constructs an empty Registry ready for tool population.
func New() *Registry {
	return &Registry{tools: map[string]server.ServerTool{}}
}

// Register stores a tool, replacing any earlier one of the same name.
func (r *Registry) Register(st server.ServerTool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[st.Tool.Name] = st
}

// Get returns a tool by name when present.
func (r *Registry) Get(name string) (server.ServerTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.tools[name]
	return st, ok
}

// ServerTools returns the registered tools sorted by name.
func (r *Registry) ServerTools() []server.ServerTool {
	r.mu.RLock()
	out := make([]server.ServerTool, 0, len(r.tools))
	for _, st := range r.tools {
		out = append(out, st)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Tool.Name < out[j].Tool.Name })
	return out
}

// Tools returns the sorted tool definitions for discovery.
func (r *Registry) Tools(ctx context.Context) ([]mcp.Tool, error) {
	sts := r.ServerTools()
	tools := make([]mcp.Tool, len(sts))
	for i, st := range sts {
		tools[i] = st.Tool
	}
	return tools, nil
}

// ModelContextSize exposes the named model's context window in tokens.
func (r *Registry) ModelContextSize(modelName string) int {
	return llms.GetModelContextSize(modelName)
}

// TextBudget is the character budget for the text block of one tool result:
// a thirty-second of the model context at roughly four characters per token.
func (r *Registry) TextBudget(modelName string) int {
	return r.ModelContextSize(modelName) * 4 / 32
}
