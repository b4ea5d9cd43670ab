package tools

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// TransformArgs defines the input parameters for the pages_transform tool.
type TransformArgs struct {
	FilePath string `json:"filePath" jsonschema:"Path of a page component, absolute or relative to the project root"`
	Code     string `json:"code,omitempty" jsonschema:"Component source to transform. Read from filePath when omitted"`
}

// Transformer strips the page macro from a component's source.
type Transformer interface {
	Transform(code, id string) (string, bool, error)
}

// TransformHandler holds the dependencies for the transform tool.
type TransformHandler struct {
	Transformer Transformer
	RootDir     string
	Logger      *slog.Logger
}

// Handle processes a pages_transform request.
func (h *TransformHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args TransformArgs) (*mcp.CallToolResult, any, error) {
	start := time.Now()

	if args.FilePath == "" {
		h.Logger.Warn("pages_transform called with empty filePath")
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "Error: filePath parameter is required"}},
			IsError: true,
		}, nil, nil
	}

	path := args.FilePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(h.RootDir, path)
	}

	code := args.Code
	if code == "" {
		data, err := os.ReadFile(path)
		if err != nil {
			h.Logger.Info("pages_transform file not readable", "filePath", args.FilePath, "error", err)
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Cannot read %s: %v", args.FilePath, err)}},
				IsError: true,
			}, nil, nil
		}
		code = string(data)
	}

	out, changed, err := h.Transformer.Transform(code, path)
	if err != nil {
		h.Logger.Error("pages_transform failed", "filePath", args.FilePath, "error", err)
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Transform error: %v", err)}},
			IsError: true,
		}, nil, nil
	}

	h.Logger.Info("pages_transform", "filePath", args.FilePath, "changed", changed, "elapsed", time.Since(start))

	if !changed {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("No macro call in %s, source unchanged.", args.FilePath)}},
		}, nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: out}},
	}, nil, nil
}
