package capture

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed selectors.yaml
var selectorsYAML []byte

// Rule is one selector group of a site rule set: a container selector plus
// element-relative sub-selectors for the candidate's parts.
type Rule struct {
	Selector  string   `yaml:"selector" json:"selector"`
	IDAttrs   []string `yaml:"id_attrs" json:"idAttrs"`
	Title     string   `yaml:"title" json:"title"`
	Body      string   `yaml:"body" json:"body"`
	Timestamp string   `yaml:"timestamp" json:"timestamp"`
}

// SiteRules is the ordered rule list for one known host family.
type SiteRules struct {
	Source       string   `yaml:"source" json:"source"`
	HostSuffixes []string `yaml:"host_suffixes" json:"hostSuffixes"`
	ShadowDOM    bool     `yaml:"shadow_dom" json:"shadowDom"`
	Groups       []Rule   `yaml:"groups" json:"groups"`
}

// RuleSet is the full selector table: site-specific rule sets plus the
// generic fallback heuristics.
type RuleSet struct {
	Version int         `yaml:"version" json:"version"`
	Sites   []SiteRules `yaml:"sites" json:"sites"`
	Generic SiteRules   `yaml:"generic" json:"generic"`
}

// SiteFor returns the rule set whose host suffix matches, or nil for
// unknown hosts.
func (rs *RuleSet) SiteFor(host string) *SiteRules {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return nil
	}
	for i := range rs.Sites {
		for _, suffix := range rs.Sites[i].HostSuffixes {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return &rs.Sites[i]
			}
		}
	}
	return nil
}

// ParseRules parses a selector table from YAML.
func ParseRules(raw []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("parse selector rules: %w", err)
	}
	if len(rs.Generic.Groups) == 0 {
		return nil, fmt.Errorf("selector rules missing generic fallback")
	}
	return &rs, nil
}

var defaultRules = mustParseRules(selectorsYAML)

func mustParseRules(raw []byte) *RuleSet {
	rs, err := ParseRules(raw)
	if err != nil {
		panic(err)
	}
	return rs
}

// DefaultRules returns the embedded selector table.
func DefaultRules() *RuleSet {
	return defaultRules
}
