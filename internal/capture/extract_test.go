package capture

import (
	"fmt"
	"strings"
	"testing"
)

func slackMessage(id, sender, body string) *fakeNode {
	return elem("div", map[string]string{"data-qa": "message_container", "data-item-key": id},
		textElem("span", map[string]string{"data-qa": "message_sender_name"}, sender),
		textElem("span", map[string]string{"data-qa": "message_text"}, body),
		textElem("span", map[string]string{"data-ts": "1700000000.0001", "class": "c-timestamp"}, "09:15"),
	)
}

func slackDoc(messages ...*fakeNode) *fakeNode {
	return elem("html", nil, elem("body", nil, messages...))
}

func TestExtractFromDOM_SlackRules(t *testing.T) {
	doc := slackDoc(
		slackMessage("m1", "alice", "deploy is done"),
		slackMessage("m2", "bob", "thanks!"),
	)

	report := ExtractFromDOM(doc, "app.slack.com", "https://app.slack.com/client", nil)
	if len(report.Items) < 2 {
		t.Fatalf("expected at least 2 items, got %d", len(report.Items))
	}
	first := report.Items[0]
	if first.Source != "slack" {
		t.Errorf("unexpected source %q", first.Source)
	}
	if first.Key != "id:m1" {
		t.Errorf("expected stable attribute key, got %q", first.Key)
	}
	if first.Title != "alice" || first.Body != "deploy is done" {
		t.Errorf("unexpected candidate %+v", first)
	}
}

func TestExtractFromDOM_SkipsInvisibleElements(t *testing.T) {
	hiddenMsg := slackMessage("m-hidden", "eve", "you cannot see me")
	hiddenMsg.hidden = true
	doc := slackDoc(slackMessage("m1", "alice", "visible"), hiddenMsg)

	report := ExtractFromDOM(doc, "app.slack.com", "", nil)
	for _, item := range report.Items {
		if item.Key == "id:m-hidden" {
			t.Error("invisible element must not be captured")
		}
	}
}

func TestExtractFromDOM_WithinPassDedup(t *testing.T) {
	doc := slackDoc(
		slackMessage("same", "alice", "one"),
		slackMessage("same", "alice", "one rendered twice"),
	)
	report := ExtractFromDOM(doc, "app.slack.com", "", nil)
	count := 0
	for _, item := range report.Items {
		if item.Key == "id:same" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected within-pass dedup to keep one item, got %d", count)
	}
}

func TestExtractFromDOM_HashKeyWithoutIDAttr(t *testing.T) {
	msg := elem("div", map[string]string{"data-qa": "message_container"},
		textElem("span", map[string]string{"data-qa": "message_sender_name"}, "alice"),
		textElem("span", map[string]string{"data-qa": "message_text"}, "no id here"),
	)
	report := ExtractFromDOM(slackDoc(msg), "app.slack.com", "", nil)
	if len(report.Items) == 0 {
		t.Fatal("expected one item")
	}
	if !strings.HasPrefix(report.Items[0].Key, "h:") {
		t.Errorf("expected hash-like key, got %q", report.Items[0].Key)
	}
	if !strings.Contains(report.Items[0].Key, "alice") {
		t.Errorf("hash key must include the author: %q", report.Items[0].Key)
	}
}

func TestExtractFromDOM_ShadowRootDiscovery(t *testing.T) {
	hostEl := elem("div", map[string]string{"id": "app"})
	hostEl.shadow = elem("div", nil,
		elem("div", map[string]string{"data-tid": "chat-pane-message", "data-mid": "t1"},
			textElem("span", map[string]string{"data-tid": "message-author-name"}, "carol"),
			textElem("div", map[string]string{"data-tid": "message-body-content"}, "standup in 5"),
		),
	)
	doc := elem("html", nil, elem("body", nil, hostEl))

	report := ExtractFromDOM(doc, "teams.microsoft.com", "", nil)
	found := false
	for _, item := range report.Items {
		if item.Key == "id:t1" && item.Title == "carol" {
			found = true
		}
	}
	if !found {
		t.Error("expected shadow DOM content to be captured")
	}
}

func TestExtractFromDOM_GenericFallbackForUnknownHost(t *testing.T) {
	doc := elem("html", nil, elem("body", nil,
		elem("div", map[string]string{"role": "listitem", "data-id": "g1"},
			textElem("h3", nil, "Reminder"),
			textElem("p", nil, "standup at ten"),
		),
	))
	report := ExtractFromDOM(doc, "example.com", "", nil)
	if len(report.Items) != 1 {
		t.Fatalf("expected generic fallback to find 1 item, got %d", len(report.Items))
	}
	if report.Items[0].Source != "generic" {
		t.Errorf("unexpected source %q", report.Items[0].Source)
	}
	if report.Items[0].Title != "Reminder" {
		t.Errorf("unexpected title %q", report.Items[0].Title)
	}
}

func TestExtractFromDOM_CapsItemCount(t *testing.T) {
	var messages []*fakeNode
	for i := 0; i < maxItemsPerPass+40; i++ {
		messages = append(messages, slackMessage(fmt.Sprintf("m%d", i), "alice", fmt.Sprintf("msg %d", i)))
	}
	report := ExtractFromDOM(slackDoc(messages...), "app.slack.com", "", nil)
	if len(report.Items) > maxItemsPerPass {
		t.Errorf("item count %d exceeds cap %d", len(report.Items), maxItemsPerPass)
	}
}

func TestExtractFromDOM_CapsFieldLengths(t *testing.T) {
	longBody := strings.Repeat("b", maxBodyLen+500)
	longTitle := strings.Repeat("t", maxTitleLen+50)
	doc := slackDoc(slackMessage("m1", longTitle, longBody))

	report := ExtractFromDOM(doc, "app.slack.com", "", nil)
	if len(report.Items) == 0 {
		t.Fatal("expected one item")
	}
	if len(report.Items[0].Title) > maxTitleLen {
		t.Errorf("title length %d exceeds cap", len(report.Items[0].Title))
	}
	if len(report.Items[0].Body) > maxBodyLen {
		t.Errorf("body length %d exceeds cap", len(report.Items[0].Body))
	}
}

func TestExtractFromDOM_NormalizesWhitespace(t *testing.T) {
	doc := slackDoc(slackMessage("m1", "  alice   b  ", "line\n\n  break\t here "))
	report := ExtractFromDOM(doc, "app.slack.com", "", nil)
	if len(report.Items) == 0 {
		t.Fatal("expected one item")
	}
	if report.Items[0].Title != "alice b" {
		t.Errorf("unexpected title %q", report.Items[0].Title)
	}
	if report.Items[0].Body != "line break here" {
		t.Errorf("unexpected body %q", report.Items[0].Body)
	}
}
