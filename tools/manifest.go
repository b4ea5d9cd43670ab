package tools

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ManifestArgs defines the input parameters for the pages_manifest tool (none required).
type ManifestArgs struct{}

// ManifestSource exposes the last written manifest.
type ManifestSource interface {
	LastWritten() string
}

// ManifestHandler holds the dependencies for the manifest tool.
type ManifestHandler struct {
	Source   ManifestSource
	FilePath string
	Logger   *slog.Logger
}

// Handle processes a pages_manifest request.
func (h *ManifestHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ManifestArgs) (*mcp.CallToolResult, any, error) {
	content := h.Source.LastWritten()
	if content == "" {
		h.Logger.Info("pages_manifest requested before first write")
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "pages.json has not been generated yet. Run pages_update first."}},
			IsError: true,
		}, nil, nil
	}

	h.Logger.Info("pages_manifest", "size", len(content))
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatFileContent(h.FilePath, content)}},
	}, nil, nil
}
