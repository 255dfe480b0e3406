package domain

import (
	"regexp"
	"strings"
)

// MatchResult is the outcome of evaluating a match expression against a
// message. Invalid expressions yield Matched=false with an explanatory
// reason, never an error.
type MatchResult struct {
	Matched bool
	Reason  string
}

var (
	regexPrefixRe = regexp.MustCompile(`(?i)^regex:\s*(.+)$`)
	slashFormRe   = regexp.MustCompile(`^/(.+)/([gimsuy]*)$`)
)

// EvaluateMatch evaluates a match expression against a message's title and
// body. Three forms, checked in order: "regex:<pattern>", "/pattern/flags",
// else a comma/newline-separated keyword list with OR semantics. The empty
// expression matches everything.
func EvaluateMatch(matchText, title, body string) MatchResult {
	haystack := title + "\n" + body
	text := strings.TrimSpace(matchText)
	if text == "" {
		return MatchResult{Matched: true, Reason: "empty match expression defaults to true"}
	}

	if m := regexPrefixRe.FindStringSubmatch(text); m != nil {
		re, err := regexp.Compile("(?i)" + m[1])
		if err != nil {
			return MatchResult{Matched: false, Reason: "invalid regex expression"}
		}
		if re.MatchString(haystack) {
			return MatchResult{Matched: true, Reason: "regex matched"}
		}
		return MatchResult{Matched: false, Reason: "regex did not match"}
	}

	if m := slashFormRe.FindStringSubmatch(text); m != nil {
		re, err := compileSlashRegex(m[1], m[2])
		if err != nil {
			return MatchResult{Matched: false, Reason: "invalid slash-regex expression"}
		}
		if re.MatchString(haystack) {
			return MatchResult{Matched: true, Reason: "slash-regex matched"}
		}
		return MatchResult{Matched: false, Reason: "slash-regex did not match"}
	}

	lower := strings.ToLower(haystack)
	var terms []string
	for _, term := range strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == '\n' }) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			terms = append(terms, term)
		}
	}
	if len(terms) == 0 {
		return MatchResult{Matched: true, Reason: "empty term list defaults to true"}
	}
	for _, term := range terms {
		if strings.Contains(lower, term) {
			return MatchResult{Matched: true, Reason: `matched keyword "` + term + `"`}
		}
	}
	return MatchResult{Matched: false, Reason: "no keyword match"}
}

// compileSlashRegex maps the slash form's flags onto Go regexp flags. Case
// insensitivity is forced when not already present; flags without a Go
// counterpart (g, u, y) are ignored.
func compileSlashRegex(pattern, flags string) (*regexp.Regexp, error) {
	goFlags := "i"
	if strings.ContainsRune(flags, 'm') {
		goFlags += "m"
	}
	if strings.ContainsRune(flags, 's') {
		goFlags += "s"
	}
	return regexp.Compile("(?" + goFlags + ")" + pattern)
}
