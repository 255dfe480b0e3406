package capture

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// htmlNode adapts a parsed HTML snapshot to the Node abstraction. It backs
// the offline capture diagnostics path: a DOM snapshot is parsed with
// golang.org/x/net/html and fed through the same extractor the in-page
// script mirrors.
type htmlNode struct {
	n *html.Node
}

// ParseHTMLDocument parses an HTML snapshot into a queryable root.
func ParseHTMLDocument(source string) (Node, error) {
	doc, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("parse html snapshot: %w", err)
	}
	return &htmlNode{n: doc}, nil
}

func (h *htmlNode) Tag() string {
	if h.n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(h.n.Data)
}

func (h *htmlNode) Attr(name string) string {
	for _, attr := range h.n.Attr {
		if strings.EqualFold(attr.Key, name) {
			return attr.Val
		}
	}
	return ""
}

func (h *htmlNode) Text() string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(h.n)
	return sb.String()
}

func (h *htmlNode) Children() []Node {
	var out []Node
	for c := h.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		// Declarative shadow roots surface via ShadowRoot, not Children.
		if isDeclarativeShadowRoot(c) {
			continue
		}
		out = append(out, &htmlNode{n: c})
	}
	return out
}

func (h *htmlNode) ShadowRoot() Node {
	for c := h.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && isDeclarativeShadowRoot(c) {
			return &htmlNode{n: c}
		}
	}
	return nil
}

func isDeclarativeShadowRoot(n *html.Node) bool {
	if n.Data != "template" {
		return false
	}
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, "shadowrootmode") || strings.EqualFold(attr.Key, "shadowroot") {
			return true
		}
	}
	return false
}

// Visible applies the static subset of the renderer visibility test: a
// snapshot has no layout, so only markup-level hiding is detectable.
func (h *htmlNode) Visible() bool {
	if h.n.Type != html.ElementNode {
		return true
	}
	for _, attr := range h.n.Attr {
		if strings.EqualFold(attr.Key, "hidden") {
			return false
		}
	}
	if strings.EqualFold(h.Attr("aria-hidden"), "true") {
		return false
	}
	style := strings.ToLower(strings.ReplaceAll(h.Attr("style"), " ", ""))
	if strings.Contains(style, "display:none") ||
		strings.Contains(style, "visibility:hidden") ||
		strings.Contains(style, "opacity:0;") ||
		strings.HasSuffix(style, "opacity:0") {
		return false
	}
	return true
}
