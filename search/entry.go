package search

import (
	"github.com/lexandro/define-pages-json/manifest"
)

// Entry is one route of a manifest as stored in the index.
type Entry struct {
	Route      string // Full route, sub-package root included
	SubPackage string // Sub-package root, "" for top-level pages
	Title      string // style.navigationBarTitleText when present
	Options    map[string]any
	Text       string // Serialized options, matched line by line
}

// Entries lists the routes of m: top-level pages first, then each
// sub-package's pages in order.
func Entries(m manifest.Manifest) []Entry {
	var out []Entry
	for _, page := range manifest.Pages(m) {
		if entry, ok := newEntry(page, ""); ok {
			out = append(out, entry)
		}
	}
	for _, sub := range manifest.SubPackages(m) {
		obj, ok := sub.(map[string]any)
		if !ok {
			continue
		}
		root, _ := obj["root"].(string)
		pages, _ := obj["pages"].([]any)
		for _, page := range pages {
			if entry, ok := newEntry(page, root); ok {
				out = append(out, entry)
			}
		}
	}
	return out
}

func newEntry(page any, root string) (Entry, bool) {
	obj, ok := page.(map[string]any)
	if !ok {
		return Entry{}, false
	}
	path, _ := obj["path"].(string)
	if path == "" {
		return Entry{}, false
	}

	route := path
	if root != "" {
		route = root + "/" + path
	}

	text, err := manifest.Serialize(obj)
	if err != nil {
		text = manifest.Stringify(obj)
	}

	return Entry{
		Route:      route,
		SubPackage: root,
		Title:      titleOf(obj),
		Options:    obj,
		Text:       text,
	}, true
}

func titleOf(page map[string]any) string {
	style, ok := page["style"].(map[string]any)
	if !ok {
		return ""
	}
	title, _ := style["navigationBarTitleText"].(string)
	return title
}
