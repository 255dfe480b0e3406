package domain

import (
	"net/url"
	"strings"
)

// TabKind distinguishes embedded web applications from local shell surfaces.
type TabKind string

const (
	TabKindWeb   TabKind = "web"
	TabKindLocal TabKind = "local"
)

// Tab is one embedded third-party web application within the shell.
type Tab struct {
	ID    string
	Label string
	URL   string
	Kind  TabKind
}

// DefaultTabs is the built-in tab catalog.
func DefaultTabs() []Tab {
	return []Tab{
		{ID: "slack", Label: "Slack", URL: "https://app.slack.com/client", Kind: TabKindWeb},
		{ID: "teams", Label: "Teams", URL: "https://teams.microsoft.com", Kind: TabKindWeb},
		{ID: "office", Label: "Office", URL: "https://www.office.com", Kind: TabKindWeb},
		{ID: "gmail", Label: "Gmail", URL: "https://mail.google.com", Kind: TabKindWeb},
		{ID: "calendar", Label: "Google Calendar", URL: "https://calendar.google.com", Kind: TabKindWeb},
	}
}

// ResolveSlackClientURL keeps a Slack tab pinned to the scrape-able app
// client surface. Marketing and workspace-subdomain pages route back to the
// client root.
func ResolveSlackClientURL(currentURL string) string {
	const fallback = "https://app.slack.com/client"
	parsed, err := url.Parse(currentURL)
	if err != nil || currentURL == "" {
		return fallback
	}
	host := strings.ToLower(parsed.Hostname())
	path := strings.ToLower(parsed.Path)
	if host == "app.slack.com" {
		if strings.HasPrefix(path, "/client") {
			return currentURL
		}
		return fallback
	}
	return fallback
}

// ResolveTeamsWebURL keeps a Teams tab on the teams.microsoft.com web client.
func ResolveTeamsWebURL(currentURL string) string {
	const fallback = "https://teams.microsoft.com/v2/"
	parsed, err := url.Parse(currentURL)
	if err != nil || currentURL == "" {
		return fallback
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "teams.microsoft.com" {
		return currentURL
	}
	return fallback
}

// ResolveOutlookMailURL keeps an Outlook tab on a /mail surface across the
// consumer, commercial and government cloud hosts.
func ResolveOutlookMailURL(currentURL string) string {
	const fallback = "https://outlook.office.com/mail/"
	parsed, err := url.Parse(currentURL)
	if err != nil || currentURL == "" {
		return fallback
	}
	host := strings.ToLower(parsed.Hostname())
	path := strings.ToLower(parsed.Path)

	for _, candidate := range []struct {
		marker string
		root   string
	}{
		{"outlook.office365.us", "https://outlook.office365.us/mail/"},
		{"outlook.office.com", "https://outlook.office.com/mail/"},
		{"outlook.live.com", "https://outlook.live.com/mail/"},
	} {
		if strings.Contains(host, candidate.marker) {
			if strings.HasPrefix(path, "/mail") {
				return currentURL
			}
			return candidate.root
		}
	}
	return fallback
}

// ResolveTabTargetURL returns the URL a tab should be steered back to when it
// drifts off its scrape-able surface. Tabs without a resolver keep their
// current URL.
func ResolveTabTargetURL(tabID, currentURL string) string {
	switch tabID {
	case "slack":
		return ResolveSlackClientURL(currentURL)
	case "teams":
		return ResolveTeamsWebURL(currentURL)
	case "office":
		return ResolveOutlookMailURL(currentURL)
	default:
		return currentURL
	}
}
