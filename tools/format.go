package tools

import (
	"fmt"
	"strings"
	"time"

	"github.com/lexandro/define-pages-json/pagesjson"
	"github.com/lexandro/define-pages-json/search"
)

// FormatSearchResults formats route search results as human-readable text.
func FormatSearchResults(results []search.Result, total int) string {
	if len(results) == 0 {
		return "No matches found."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Found %d routes, showing %d:\n\n", total, len(results)))

	for i, result := range results {
		if i > 0 {
			builder.WriteString("\n")
		}
		header := "/" + result.Route
		if result.Title != "" {
			header += "  \"" + result.Title + "\""
		}
		builder.WriteString(fmt.Sprintf("── %s ──\n", header))
		for _, match := range result.Matches {
			builder.WriteString(fmt.Sprintf("  %d: %s\n", match.LineNumber, match.LineText))
		}
	}

	return builder.String()
}

// FormatPageList formats scanned pages, one per line.
func FormatPageList(pages []pagesjson.PageInfo, rootDir string) string {
	if len(pages) == 0 {
		return "No pages found."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Found %d pages:\n\n", len(pages)))

	for _, page := range pages {
		route := page.URI
		if page.SubPackage != "" {
			route = page.SubPackage + "/" + page.URI
		}
		marker := ""
		if page.Type == pagesjson.PageTypeHome {
			marker = " [home]"
		}
		builder.WriteString(fmt.Sprintf("  /%s%s  (%s)\n", route, marker, relativeTo(rootDir, page.File)))
	}

	return builder.String()
}

// FormatFileContent formats content with line numbers under a header naming the file.
func FormatFileContent(filePath string, content string) string {
	lines := strings.Split(content, "\n")
	lineCount := len(lines)

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("── %s (%d lines) ──\n", filePath, lineCount))

	width := len(fmt.Sprintf("%d", lineCount))
	for i, line := range lines {
		builder.WriteString(fmt.Sprintf("%*d│ %s\n", width, i+1, line))
	}

	return builder.String()
}

func relativeTo(rootDir, path string) string {
	if rootDir == "" {
		return path
	}
	rel := strings.TrimPrefix(path, rootDir)
	if rel == path {
		return path
	}
	return strings.TrimLeft(strings.ReplaceAll(rel, "\\", "/"), "/")
}

// formatFileSize converts bytes to a human-readable string.
func formatFileSize(bytes int64) string {
	switch {
	case bytes >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	case bytes >= 1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	if totalSeconds < 60 {
		return fmt.Sprintf("%ds", totalSeconds)
	}
	totalMinutes := totalSeconds / 60
	remainderSeconds := totalSeconds % 60
	if totalMinutes < 60 {
		return fmt.Sprintf("%dm%ds", totalMinutes, remainderSeconds)
	}
	hours := totalMinutes / 60
	remainderMinutes := totalMinutes % 60
	return fmt.Sprintf("%dh%dm", hours, remainderMinutes)
}
