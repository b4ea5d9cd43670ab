package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// UpdateArgs defines the input parameters for the pages_update tool.
type UpdateArgs struct {
	ChangedPath string `json:"changedPath,omitempty" jsonschema:"Absolute path of a changed page component. Only that page is re-read; the manifest is rewritten only if its options changed. Omit for a full rescan"`
}

// UpdateFunc regenerates the manifest. It is provided by main.go to avoid
// circular dependencies.
type UpdateFunc func(ctx context.Context, changedPath string) (written bool, pageCount int, elapsed string, err error)

// UpdateHandler holds the dependencies for the update tool.
type UpdateHandler struct {
	DoUpdate UpdateFunc
	Logger   *slog.Logger
}

// Handle processes a pages_update request.
func (h *UpdateHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args UpdateArgs) (*mcp.CallToolResult, any, error) {
	h.Logger.Info("pages_update started", "changedPath", args.ChangedPath)

	written, pageCount, elapsed, err := h.DoUpdate(ctx, args.ChangedPath)
	if err != nil {
		h.Logger.Error("pages_update failed", "changedPath", args.ChangedPath, "error", err)
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Update error: %v", err)}},
			IsError: true,
		}, nil, nil
	}

	h.Logger.Info("pages_update complete",
		"written", written,
		"pages", pageCount,
		"elapsed", elapsed,
	)

	status := "unchanged"
	if written {
		status = "written"
	}
	output := fmt.Sprintf("Update complete: pages.json %s, %d pages in %s", status, pageCount, elapsed)

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: output}},
	}, nil, nil
}
