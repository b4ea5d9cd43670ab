// Package sfc splits a single-file component into its top-level blocks.
//
// Only block boundaries are recovered: the template is not parsed, and
// script/style contents are returned verbatim together with their byte
// offsets in the original source so callers can edit the component in place.
package sfc

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Block is one top-level element of a component.
type Block struct {
	Type    string
	Attrs   map[string]string
	Content string
	// Start and End are byte offsets of Content within the component source.
	Start int
	End   int
}

// Lang returns the lang attribute, or "" when absent.
func (b *Block) Lang() string {
	return b.Attrs["lang"]
}

// Has reports whether the block carries the attribute, with or without a value.
func (b *Block) Has(attr string) bool {
	_, ok := b.Attrs[attr]
	return ok
}

// Descriptor lists the blocks found in a component.
type Descriptor struct {
	Template    *Block
	Script      *Block
	ScriptSetup *Block
	Styles      []*Block
	Customs     []*Block
}

// ErrUnclosedBlock is reported when a top-level element has no end tag.
var ErrUnclosedBlock = errors.New("element is missing end tag")

// Parse splits source into blocks. Errors describe malformed components; the
// returned descriptor holds whatever blocks were recovered before them.
func Parse(source string) (*Descriptor, []error) {
	desc := &Descriptor{}
	var errs []error

	z := html.NewTokenizer(strings.NewReader(source))
	offset := 0

	for {
		tt := z.Next()
		raw := len(z.Raw())
		if tt == html.ErrorToken {
			if err := z.Err(); err != nil && err != io.EOF {
				errs = append(errs, err)
			}
			return desc, errs
		}
		start := offset
		offset += raw

		if tt != html.StartTagToken {
			continue
		}

		name, attrs := tagInfo(z)
		block := &Block{Type: name, Attrs: attrs, Start: offset}

		end, ok := findClose(z, name, &offset)
		if !ok {
			errs = append(errs, fmt.Errorf("<%s> at offset %d: %w", name, start, ErrUnclosedBlock))
			return desc, errs
		}
		block.End = end
		block.Content = source[block.Start:block.End]

		if err := desc.add(block); err != nil {
			errs = append(errs, err)
		}
	}
}

func (d *Descriptor) add(b *Block) error {
	switch b.Type {
	case "template":
		if d.Template != nil {
			return errors.New("single file component can contain only one <template> element")
		}
		d.Template = b
	case "script":
		if b.Has("setup") {
			if d.ScriptSetup != nil {
				return errors.New("single file component can contain only one <script setup> element")
			}
			d.ScriptSetup = b
			return nil
		}
		if d.Script != nil {
			return errors.New("single file component can contain only one <script> element")
		}
		d.Script = b
	case "style":
		d.Styles = append(d.Styles, b)
	default:
		d.Customs = append(d.Customs, b)
	}
	return nil
}

// findClose advances the tokenizer to the end tag matching name, counting
// nested elements of the same name. It returns the offset where the end tag
// starts.
func findClose(z *html.Tokenizer, name string, offset *int) (int, bool) {
	depth := 1
	for {
		tt := z.Next()
		raw := len(z.Raw())
		if tt == html.ErrorToken {
			return 0, false
		}
		start := *offset
		*offset += raw

		switch tt {
		case html.SelfClosingTagToken:
			// <textarea /> and friends would otherwise swallow the rest as raw text.
			z.NextIsNotRawText()
		case html.StartTagToken:
			tag := tagName(z)
			if name == "template" && tag != "script" && tag != "style" {
				z.NextIsNotRawText()
			}
			if tag == name {
				depth++
			}
		case html.EndTagToken:
			if tagName(z) == name {
				depth--
				if depth == 0 {
					return start, true
				}
			}
		}
	}
}

func tagName(z *html.Tokenizer) string {
	name, _ := z.TagName()
	return string(name)
}

func tagInfo(z *html.Tokenizer) (string, map[string]string) {
	name, hasAttr := z.TagName()
	attrs := make(map[string]string)
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		attrs[string(key)] = string(val)
	}
	return string(name), attrs
}
