package capture

import (
	"strings"
	"unicode/utf8"
)

const (
	// Caps applied after whitespace normalization.
	maxItemsPerPass = 120
	maxTitleLen     = 300
	maxBodyLen      = 3000

	// A site pass yielding fewer items than this falls back to the
	// generic heuristics as well.
	genericFallbackThreshold = 10

	hashKeyBodyPrefixLen = 80
)

// Candidate is a provisional captured message before dedup/acceptance.
type Candidate struct {
	Key    string `json:"key"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Source string `json:"source"`
}

// ExtractionReport is the result of scanning one frame's DOM.
type ExtractionReport struct {
	Host  string      `json:"host"`
	URL   string      `json:"url"`
	Items []Candidate `json:"items"`
}

// ExtractFromDOM scans a frame's DOM for visible message-like elements.
// Site-specific rules are tried first for known hosts; when they produce
// fewer than genericFallbackThreshold items the generic heuristics run as
// well. The result is deduplicated within the pass and capped.
func ExtractFromDOM(doc Node, host, pageURL string, rules *RuleSet) *ExtractionReport {
	if rules == nil {
		rules = DefaultRules()
	}
	report := &ExtractionReport{Host: host, URL: pageURL}

	seen := map[string]struct{}{}
	roots := DiscoverRoots(doc)

	if site := rules.SiteFor(host); site != nil {
		report.Items = runSitePass(roots, site, seen, report.Items)
	}
	if len(report.Items) < genericFallbackThreshold {
		report.Items = runSitePass(roots, &rules.Generic, seen, report.Items)
	}
	return report
}

func runSitePass(roots []Node, site *SiteRules, seen map[string]struct{}, items []Candidate) []Candidate {
	for _, rule := range site.Groups {
		for _, el := range QueryAllRoots(roots, rule.Selector) {
			if len(items) >= maxItemsPerPass {
				return items
			}
			if !el.Visible() {
				continue
			}
			candidate, ok := buildCandidate(el, rule, site.Source)
			if !ok {
				continue
			}
			if _, dup := seen[candidate.Key]; dup {
				continue
			}
			seen[candidate.Key] = struct{}{}
			items = append(items, candidate)
		}
	}
	return items
}

func buildCandidate(el Node, rule Rule, source string) (Candidate, bool) {
	title := subText(el, rule.Title)
	body := subText(el, rule.Body)
	if body == "" {
		body = normalizeWhitespace(el.Text())
	}
	if title == "" && body == "" {
		return Candidate{}, false
	}
	timestamp := subText(el, rule.Timestamp)

	title = truncate(title, maxTitleLen)
	body = truncate(body, maxBodyLen)

	return Candidate{
		Key:    candidateKey(el, rule, title, timestamp, body),
		Title:  title,
		Body:   body,
		Source: source,
	}, true
}

// candidateKey prefers a stable element id attribute; otherwise it builds a
// hash-like composite from author, timestamp and a body prefix.
func candidateKey(el Node, rule Rule, title, timestamp, body string) string {
	for _, attr := range rule.IDAttrs {
		if v := strings.TrimSpace(el.Attr(attr)); v != "" {
			return "id:" + v
		}
	}
	prefix := body
	if len(prefix) > hashKeyBodyPrefixLen {
		prefix = prefix[:hashKeyBodyPrefixLen]
	}
	return "h:" + strings.ToLower(title) + "|" + strings.ToLower(timestamp) + "|" + strings.ToLower(prefix)
}

func subText(el Node, selector string) string {
	if selector == "" {
		return ""
	}
	node := QueryFirst(el, selector)
	if node == nil {
		return ""
	}
	text := normalizeWhitespace(node.Text())
	if text == "" {
		// Some surfaces keep the interesting text in the title attribute.
		text = normalizeWhitespace(node.Attr("title"))
	}
	return text
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	// Avoid splitting a multi-byte rune at the cap boundary.
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
