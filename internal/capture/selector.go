package capture

import (
	"fmt"
	"strings"
)

// The extractor needs only a small CSS subset: comma-separated groups of
// descendant chains of compound selectors (tag, #id, .class, [attr],
// [attr=v], [attr^=v], [attr*=v]). Selector tables in selectors.yaml must
// stay within this subset.

type attrCond struct {
	name  string
	op    string // "", "=", "^=", "*="
	value string
}

type compoundSelector struct {
	tag     string
	id      string
	classes []string
	attrs   []attrCond
}

type selectorGroup []compoundSelector // descendant chain, last element is the subject

type compiledSelector struct {
	groups []selectorGroup
}

func parseSelector(input string) (*compiledSelector, error) {
	sel := &compiledSelector{}
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var group selectorGroup
		for _, token := range strings.Fields(part) {
			compound, err := parseCompound(token)
			if err != nil {
				return nil, err
			}
			group = append(group, compound)
		}
		if len(group) > 0 {
			sel.groups = append(sel.groups, group)
		}
	}
	if len(sel.groups) == 0 {
		return nil, fmt.Errorf("empty selector %q", input)
	}
	return sel, nil
}

func parseCompound(token string) (compoundSelector, error) {
	var c compoundSelector
	rest := token
	for rest != "" {
		switch rest[0] {
		case '#':
			name, tail := readName(rest[1:])
			if name == "" {
				return c, fmt.Errorf("bad id in %q", token)
			}
			c.id = name
			rest = tail
		case '.':
			name, tail := readName(rest[1:])
			if name == "" {
				return c, fmt.Errorf("bad class in %q", token)
			}
			c.classes = append(c.classes, name)
			rest = tail
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return c, fmt.Errorf("unterminated attribute in %q", token)
			}
			cond, err := parseAttrCond(rest[1:end])
			if err != nil {
				return c, err
			}
			c.attrs = append(c.attrs, cond)
			rest = rest[end+1:]
		case '*':
			rest = rest[1:]
		default:
			name, tail := readName(rest)
			if name == "" {
				return c, fmt.Errorf("unsupported selector token %q", token)
			}
			c.tag = strings.ToLower(name)
			rest = tail
		}
	}
	return c, nil
}

func readName(s string) (name, rest string) {
	i := 0
	for i < len(s) {
		ch := s[i]
		if ch == '.' || ch == '#' || ch == '[' {
			break
		}
		i++
	}
	return s[:i], s[i:]
}

func parseAttrCond(body string) (attrCond, error) {
	body = strings.TrimSpace(body)
	for _, op := range []string{"^=", "*=", "="} {
		if idx := strings.Index(body, op); idx >= 0 {
			value := strings.Trim(body[idx+len(op):], `"'`)
			name := strings.TrimSpace(body[:idx])
			if name == "" {
				return attrCond{}, fmt.Errorf("bad attribute condition %q", body)
			}
			return attrCond{name: name, op: op, value: value}, nil
		}
	}
	if body == "" {
		return attrCond{}, fmt.Errorf("empty attribute condition")
	}
	return attrCond{name: body}, nil
}

// matches tests whether the node at the end of path satisfies any group.
// Descendant chains match against the node's ancestor path in order.
func (s *compiledSelector) matches(path []Node) bool {
	if len(path) == 0 {
		return false
	}
	subject := path[len(path)-1]
	for _, group := range s.groups {
		last := group[len(group)-1]
		if !last.matchesNode(subject) {
			continue
		}
		if matchAncestors(group[:len(group)-1], path[:len(path)-1]) {
			return true
		}
	}
	return false
}

func matchAncestors(chain selectorGroup, ancestors []Node) bool {
	if len(chain) == 0 {
		return true
	}
	ci := len(chain) - 1
	for ai := len(ancestors) - 1; ai >= 0 && ci >= 0; ai-- {
		if chain[ci].matchesNode(ancestors[ai]) {
			ci--
		}
	}
	return ci < 0
}

func (c compoundSelector) matchesNode(n Node) bool {
	if n == nil || n.Tag() == "" {
		return false
	}
	if c.tag != "" && n.Tag() != c.tag {
		return false
	}
	if c.id != "" && n.Attr("id") != c.id {
		return false
	}
	if len(c.classes) > 0 {
		have := strings.Fields(n.Attr("class"))
		for _, want := range c.classes {
			found := false
			for _, cls := range have {
				if cls == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	for _, cond := range c.attrs {
		val := n.Attr(cond.name)
		switch cond.op {
		case "":
			if val == "" {
				return false
			}
		case "=":
			if val != cond.value {
				return false
			}
		case "^=":
			if !strings.HasPrefix(val, cond.value) {
				return false
			}
		case "*=":
			if !strings.Contains(val, cond.value) {
				return false
			}
		}
	}
	return true
}
