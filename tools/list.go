package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lexandro/define-pages-json/pagesjson"
)

// ListArgs defines the input parameters for the pages_list tool.
type ListArgs struct {
	Pattern    string `json:"pattern,omitempty" jsonschema:"Optional glob pattern matched against routes (e.g. pages/user/** or pages-sub/**)"`
	MaxResults int    `json:"maxResults,omitempty" jsonschema:"Maximum number of pages to return (default 200)"`
}

// PageLister lists scanned pages.
type PageLister interface {
	Pages() []pagesjson.PageInfo
}

// ListHandler holds the dependencies for the list tool.
type ListHandler struct {
	Pages   PageLister
	RootDir string
	Logger  *slog.Logger
}

// Handle processes a pages_list request.
func (h *ListHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ListArgs) (*mcp.CallToolResult, any, error) {
	start := time.Now()

	maxResults := args.MaxResults
	if maxResults <= 0 {
		maxResults = 200
	}
	pattern := strings.TrimPrefix(strings.ReplaceAll(args.Pattern, "\\", "/"), "/")
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		h.Logger.Warn("pages_list called with invalid pattern", "pattern", args.Pattern)
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Error: invalid glob pattern %q", args.Pattern)}},
			IsError: true,
		}, nil, nil
	}

	var pages []pagesjson.PageInfo
	for _, page := range h.Pages.Pages() {
		if pattern != "" {
			route := page.URI
			if page.SubPackage != "" {
				route = page.SubPackage + "/" + page.URI
			}
			if matched, _ := doublestar.Match(pattern, route); !matched {
				continue
			}
		}
		pages = append(pages, page)
		if len(pages) >= maxResults {
			break
		}
	}

	h.Logger.Info("pages_list",
		"pattern", args.Pattern,
		"results", len(pages),
		"elapsed", time.Since(start),
	)

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatPageList(pages, h.RootDir)}},
	}, nil, nil
}
