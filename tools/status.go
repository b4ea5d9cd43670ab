package tools

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lexandro/define-pages-json/config"
	"github.com/lexandro/define-pages-json/pagesjson"
)

// StatusArgs defines the input parameters for the pages_status tool (none required).
type StatusArgs struct{}

// StatusSource is the part of the Context the status tool reports on.
type StatusSource interface {
	Config() config.Resolved
	State() pagesjson.State
	Pages() []pagesjson.PageInfo
	ConfigSources() []string
	LastWritten() string
}

// DocumentCounter reports the size of the search index.
type DocumentCounter interface {
	DocumentCount() uint64
}

// StatusHandler holds the dependencies for the status tool.
type StatusHandler struct {
	Context   StatusSource
	PageIndex DocumentCounter
	StartTime time.Time
	Logger    *slog.Logger
}

// Handle processes a pages_status request.
func (h *StatusHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args StatusArgs) (*mcp.CallToolResult, any, error) {
	var builder strings.Builder

	cfg := h.Context.Config()
	pages := h.Context.Pages()
	uptime := time.Since(h.StartTime)

	subPackagePages := 0
	for _, page := range pages {
		if page.SubPackage != "" {
			subPackagePages++
		}
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	h.Logger.Info("pages_status",
		"state", h.Context.State(),
		"pages", len(pages),
		"memory", memStats.Alloc,
		"uptime", uptime,
	)

	builder.WriteString("=== define-pages-json Status ===\n\n")
	builder.WriteString(fmt.Sprintf("Root directory: %s\n", cfg.Root))
	builder.WriteString(fmt.Sprintf("Manifest: %s\n", cfg.PagesJSONFile()))
	if dts := cfg.DtsFile(); dts != "" {
		builder.WriteString(fmt.Sprintf("Declarations: %s\n", dts))
	}
	builder.WriteString(fmt.Sprintf("State: %s\n", h.Context.State()))
	builder.WriteString(fmt.Sprintf("Uptime: %s\n", formatDuration(uptime)))
	builder.WriteString(fmt.Sprintf("Pages: %d (%d in sub-packages)\n", len(pages), subPackagePages))
	builder.WriteString(fmt.Sprintf("Manifest size: %s\n", formatFileSize(int64(len(h.Context.LastWritten())))))
	if h.PageIndex != nil {
		builder.WriteString(fmt.Sprintf("Search-indexed routes: %d\n", h.PageIndex.DocumentCount()))
	}
	builder.WriteString(fmt.Sprintf("Memory usage: %s (heap: %s)\n",
		formatFileSize(int64(memStats.Alloc)),
		formatFileSize(int64(memStats.HeapAlloc)),
	))

	if len(cfg.SubPackages) > 0 {
		builder.WriteString("\nSub-packages:\n")
		for _, dir := range cfg.SubPackages {
			builder.WriteString(fmt.Sprintf("  %s\n", relativeTo(cfg.Root, dir)))
		}
	}

	builder.WriteString("\nBase config candidates:\n")
	for _, source := range h.Context.ConfigSources() {
		builder.WriteString(fmt.Sprintf("  %s\n", relativeTo(cfg.Root, source)))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: builder.String()}},
	}, nil, nil
}
