package registry

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ExportPrefix marks tools that write files to disk.
const ExportPrefix = "export_"

// ExportToolFilter hides file-writing tools unless exports are enabled
// (BIOFARMAKA_ENABLE_EXPORT=true).
type ExportToolFilter struct {
	allowExport bool
}

// NewExportToolFilter constructs a filter for the given setting.
func NewExportToolFilter(allowExport bool) *ExportToolFilter {
	return &ExportToolFilter{allowExport: allowExport}
}

// Allowed reports whether a tool may be listed and called.
func (f *ExportToolFilter) Allowed(name string) bool {
	return f.allowExport || !strings.HasPrefix(strings.ToLower(name), ExportPrefix)
}

// FilterTools implements server tool filtering semantics.
func (f *ExportToolFilter) FilterTools(ctx context.Context, tools []mcp.Tool) []mcp.Tool {
	if f.allowExport {
		return tools
	}
	out := make([]mcp.Tool, 0, len(tools))
	for _, t := range tools {
		if f.Allowed(t.Name) {
			out = append(out, t)
		}
	}
	return out
}
