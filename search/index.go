// Package search keeps an in-memory full-text index over the routes of the
// generated manifest.
package search

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/lexandro/define-pages-json/manifest"
)

// PageIndex provides full-text search over manifest routes using a Bleve in-memory index.
type PageIndex struct {
	mu    sync.RWMutex
	index bleve.Index
	// entries keeps every indexed route for line-level result extraction
	entries map[string]Entry
}

// NewPageIndex creates an empty in-memory index.
func NewPageIndex() (*PageIndex, error) {
	bleveIndex, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating bleve index: %w", err)
	}
	return &PageIndex{
		index:   bleveIndex,
		entries: make(map[string]Entry),
	}, nil
}

// bleveDocument is the document structure stored in Bleve.
type bleveDocument struct {
	Route      string `json:"route"`
	Title      string `json:"title"`
	SubPackage string `json:"subPackage"`
	Options    string `json:"options"`
}

func buildIndexMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	routeFieldMapping := bleve.NewTextFieldMapping()
	routeFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("route", routeFieldMapping)

	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("title", titleFieldMapping)

	subFieldMapping := bleve.NewKeywordFieldMapping()
	subFieldMapping.Store = true
	subFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("subPackage", subFieldMapping)

	// Options are kept in entries; Bleve only needs the terms.
	optionsFieldMapping := bleve.NewTextFieldMapping()
	optionsFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("options", optionsFieldMapping)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// Rebuild replaces the index contents with the routes of m.
func (pi *PageIndex) Rebuild(m manifest.Manifest) error {
	entries := Entries(m)

	pi.mu.Lock()
	defer pi.mu.Unlock()

	batch := pi.index.NewBatch()
	for route := range pi.entries {
		batch.Delete(route)
	}
	next := make(map[string]Entry, len(entries))
	for _, entry := range entries {
		doc := bleveDocument{
			Route:      entry.Route,
			Title:      entry.Title,
			SubPackage: entry.SubPackage,
			Options:    entry.Text,
		}
		if err := batch.Index(entry.Route, doc); err != nil {
			return fmt.Errorf("indexing route %s: %w", entry.Route, err)
		}
		next[entry.Route] = entry
	}
	if err := pi.index.Batch(batch); err != nil {
		return fmt.Errorf("applying index batch: %w", err)
	}
	pi.entries = next
	return nil
}

// Result is one matching route.
type Result struct {
	Route      string
	Title      string
	SubPackage string
	Score      float64
	Matches    []LineMatch
}

// LineMatch is a matching line of the route's serialized options.
type LineMatch struct {
	LineNumber int
	LineText   string
}

// Options configures a search.
type Options struct {
	Query string
	// RouteGlob restricts results to routes matching a doublestar pattern.
	RouteGlob string
	// SubPackage restricts results to one sub-package root. "/" selects top-level pages.
	SubPackage string
	MaxResults int
}

// Search runs a query against route, title and options.
// Query format:
//   - Plain text: match query (word-level matching)
//   - "quoted text": phrase query (exact phrase match)
//   - /regex/: regexp query
//   - empty: every route
func (pi *PageIndex) Search(options Options) ([]Result, int, error) {
	pi.mu.RLock()
	defer pi.mu.RUnlock()

	if options.MaxResults <= 0 {
		options.MaxResults = 50
	}

	searchRequest := bleve.NewSearchRequest(buildQuery(options.Query))
	searchRequest.Size = options.MaxResults * 5
	searchResults, err := pi.index.Search(searchRequest)
	if err != nil {
		return nil, 0, fmt.Errorf("searching index: %w", err)
	}

	var results []Result
	total := 0
	for _, hit := range searchResults.Hits {
		entry, ok := pi.entries[hit.ID]
		if !ok || !matchesFilters(entry, options) {
			continue
		}
		total++
		if len(results) >= options.MaxResults {
			continue
		}
		results = append(results, Result{
			Route:      entry.Route,
			Title:      entry.Title,
			SubPackage: entry.SubPackage,
			Score:      hit.Score,
			Matches:    findMatchingLines(entry.Text, options.Query),
		})
	}
	return results, total, nil
}

func matchesFilters(entry Entry, options Options) bool {
	switch options.SubPackage {
	case "":
	case "/":
		if entry.SubPackage != "" {
			return false
		}
	default:
		if entry.SubPackage != options.SubPackage {
			return false
		}
	}
	if options.RouteGlob != "" {
		matched, err := doublestar.Match(options.RouteGlob, entry.Route)
		if err != nil || !matched {
			return false
		}
	}
	return true
}

// Entry returns the indexed route, if present.
func (pi *PageIndex) Entry(route string) (Entry, bool) {
	pi.mu.RLock()
	defer pi.mu.RUnlock()
	entry, ok := pi.entries[strings.TrimPrefix(route, "/")]
	return entry, ok
}

// DocumentCount returns the number of documents in the Bleve index.
func (pi *PageIndex) DocumentCount() uint64 {
	pi.mu.RLock()
	defer pi.mu.RUnlock()
	count, _ := pi.index.DocCount()
	return count
}

// Close closes the Bleve index.
func (pi *PageIndex) Close() error {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	return pi.index.Close()
}

func buildQuery(queryString string) query.Query {
	queryString = strings.TrimSpace(queryString)

	if queryString == "" {
		return bleve.NewMatchAllQuery()
	}
	if isDelimited(queryString, "/") {
		return bleve.NewRegexpQuery(queryString[1 : len(queryString)-1])
	}
	if isDelimited(queryString, "\"") {
		return bleve.NewMatchPhraseQuery(queryString[1 : len(queryString)-1])
	}
	return bleve.NewMatchQuery(queryString)
}

func isDelimited(s, delim string) bool {
	return len(s) > 2 && strings.HasPrefix(s, delim) && strings.HasSuffix(s, delim)
}

// findMatchingLines returns the lines of text containing the query term,
// case-insensitively. Regex queries match no lines.
func findMatchingLines(text string, queryString string) []LineMatch {
	term := strings.TrimSpace(queryString)
	if term == "" || isDelimited(term, "/") {
		return nil
	}
	if isDelimited(term, "\"") {
		term = term[1 : len(term)-1]
	}
	term = strings.ToLower(term)

	var matches []LineMatch
	for i, line := range strings.Split(text, "\n") {
		if strings.Contains(strings.ToLower(line), term) {
			matches = append(matches, LineMatch{LineNumber: i + 1, LineText: line})
		}
	}
	return matches
}
