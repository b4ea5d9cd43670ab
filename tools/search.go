package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lexandro/define-pages-json/search"
)

// SearchArgs defines the input parameters for the pages_search tool.
type SearchArgs struct {
	Query      string `json:"query,omitempty" jsonschema:"Search query over route, title and page options. Plain text for word match, quoted for exact phrase, /regex/ for regular expression. Empty lists every route"`
	RouteGlob  string `json:"routeGlob,omitempty" jsonschema:"Optional glob pattern to filter routes (e.g. pages/user/**)"`
	SubPackage string `json:"subPackage,omitempty" jsonschema:"Restrict to one sub-package root. Use / for top-level pages only"`
	MaxResults int    `json:"maxResults,omitempty" jsonschema:"Maximum number of routes to return (default 50)"`
}

// SearchHandler holds the dependencies for the search tool.
type SearchHandler struct {
	PageIndex *search.PageIndex
	Logger    *slog.Logger
}

// Handle processes a pages_search request.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, any, error) {
	start := time.Now()

	results, total, err := h.PageIndex.Search(search.Options{
		Query:      args.Query,
		RouteGlob:  args.RouteGlob,
		SubPackage: args.SubPackage,
		MaxResults: args.MaxResults,
	})
	if err != nil {
		h.Logger.Error("pages_search failed", "query", args.Query, "error", err)
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Search error: %v", err)}},
			IsError: true,
		}, nil, nil
	}

	h.Logger.Info("pages_search",
		"query", args.Query,
		"routeGlob", args.RouteGlob,
		"routes", len(results),
		"total", total,
		"elapsed", time.Since(start),
	)

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatSearchResults(results, total)}},
	}, nil, nil
}
