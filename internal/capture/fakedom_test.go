package capture

import "strings"

// fakeNode is an in-memory DOM for extractor tests, standing in for a real
// renderer. Visibility and shadow roots are set explicitly.
type fakeNode struct {
	tag      string
	attrs    map[string]string
	text     string
	children []*fakeNode
	shadow   *fakeNode
	hidden   bool
}

func elem(tag string, attrs map[string]string, children ...*fakeNode) *fakeNode {
	return &fakeNode{tag: tag, attrs: attrs, children: children}
}

func textElem(tag string, attrs map[string]string, text string) *fakeNode {
	return &fakeNode{tag: tag, attrs: attrs, text: text}
}

func (f *fakeNode) Tag() string { return f.tag }

func (f *fakeNode) Attr(name string) string {
	if f.attrs == nil {
		return ""
	}
	return f.attrs[name]
}

func (f *fakeNode) Text() string {
	var sb strings.Builder
	sb.WriteString(f.text)
	for _, child := range f.children {
		sb.WriteByte(' ')
		sb.WriteString(child.Text())
	}
	return sb.String()
}

func (f *fakeNode) Children() []Node {
	out := make([]Node, len(f.children))
	for i, child := range f.children {
		out[i] = child
	}
	return out
}

func (f *fakeNode) ShadowRoot() Node {
	if f.shadow == nil {
		return nil
	}
	return f.shadow
}

func (f *fakeNode) Visible() bool { return !f.hidden }
