package capture

// Node is the abstract queryable DOM the extractor runs against. Adapters
// exist for parsed HTML snapshots (htmlNode) and for fakes in tests; the
// in-page extraction script is the browser-side counterpart of the same
// algorithm.
type Node interface {
	// Tag returns the lowercase element name ("" for non-elements).
	Tag() string
	// Attr returns an attribute value, "" when absent.
	Attr(name string) string
	// Text returns the concatenated visible text of the subtree.
	Text() string
	// Children returns element children in document order.
	Children() []Node
	// ShadowRoot returns the element's shadow root, nil when none.
	ShadowRoot() Node
	// Visible reports whether the renderer considers the element visible
	// (non-zero opacity, not display:none/visibility:hidden, on-viewport
	// box with minimal size).
	Visible() bool
}

// DiscoverRoots walks the document breadth-first and returns the document
// root followed by every reachable shadow root. Selector queries must run
// across all discovered roots, not just the light DOM.
func DiscoverRoots(doc Node) []Node {
	if doc == nil {
		return nil
	}
	roots := []Node{doc}
	for i := 0; i < len(roots); i++ {
		queue := []Node{roots[i]}
		for len(queue) > 0 {
			node := queue[0]
			queue = queue[1:]
			if shadow := node.ShadowRoot(); shadow != nil {
				roots = append(roots, shadow)
			}
			queue = append(queue, node.Children()...)
		}
	}
	return roots
}

// QueryAll returns, in document order, every node under root matching the
// selector. Unsupported selector syntax yields no matches.
func QueryAll(root Node, selector string) []Node {
	sel, err := parseSelector(selector)
	if err != nil || root == nil {
		return nil
	}
	var out []Node
	var path []Node
	var walk func(n Node)
	walk = func(n Node) {
		path = append(path, n)
		if sel.matches(path) {
			out = append(out, n)
		}
		for _, child := range n.Children() {
			walk(child)
		}
		path = path[:len(path)-1]
	}
	walk(root)
	return out
}

// QueryAllRoots queries every discovered root in order.
func QueryAllRoots(roots []Node, selector string) []Node {
	var out []Node
	for _, root := range roots {
		out = append(out, QueryAll(root, selector)...)
	}
	return out
}

// QueryFirst returns the first node under root (including its shadow roots)
// matching any of the comma-separated selectors, or nil.
func QueryFirst(root Node, selector string) Node {
	if selector == "" || root == nil {
		return nil
	}
	for _, scope := range DiscoverRoots(root) {
		if matches := QueryAll(scope, selector); len(matches) > 0 {
			return matches[0]
		}
	}
	return nil
}
