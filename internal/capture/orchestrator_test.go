package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"commhub/internal/biz/domain"
	"commhub/internal/biz/repo"
)

type fakeTab struct {
	id      string
	url     string
	loading bool
	frames  []*fakeFrame
	err     error
}

func (t *fakeTab) ID() string         { return t.id }
func (t *fakeTab) CurrentURL() string { return t.url }
func (t *fakeTab) IsLoading() bool    { return t.loading }

func (t *fakeTab) Frames(ctx context.Context) ([]repo.FrameTarget, error) {
	if t.err != nil {
		return nil, t.err
	}
	return frameList(t.frames...), nil
}

type fakeHost struct {
	tabs map[string]*fakeTab
}

func (h *fakeHost) Tab(tabID string) (repo.TabHandle, bool) {
	tab, ok := h.tabs[tabID]
	return tab, ok
}

func (h *fakeHost) Tabs() []repo.TabHandle {
	var out []repo.TabHandle
	for _, tab := range h.tabs {
		out = append(out, tab)
	}
	return out
}

type fakeSink struct {
	received []domain.MessagePayload
	tabIDs   []string
}

func (s *fakeSink) RunTriggerPipeline(tabID string, payload domain.MessagePayload) *domain.Message {
	s.received = append(s.received, payload)
	s.tabIDs = append(s.tabIDs, tabID)
	return &domain.Message{ID: "msg_test", TabID: tabID, Title: payload.Title, Body: payload.Body, Source: payload.Source}
}

func newTestOrchestrator(t *testing.T, host repo.TabHost, sink MessageSink) *Orchestrator {
	t.Helper()
	orch, err := NewOrchestrator(host, sink, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return orch
}

const slackFrameResult = `{
	"host": "app.slack.com",
	"url": "https://app.slack.com/client/T1/C1",
	"items": [
		{"key": "id:m1", "title": "alice", "body": "deploy done", "source": "slack"},
		{"key": "id:m2", "title": "bob", "body": "shipping now", "source": "slack"}
	]
}`

func slackTab(frames ...*fakeFrame) *fakeTab {
	return &fakeTab{id: "slack", url: "https://app.slack.com/client/T1/C1", frames: frames}
}

func TestCaptureVisibleMessages_InsertsNewCandidates(t *testing.T) {
	host := &fakeHost{tabs: map[string]*fakeTab{
		"slack": slackTab(&fakeFrame{routingID: "1", url: "https://app.slack.com/client/T1/C1", result: slackFrameResult}),
	}}
	sink := &fakeSink{}
	orch := newTestOrchestrator(t, host, sink)

	report := orch.CaptureVisibleMessages(context.Background(), "slack")
	if !report.OK {
		t.Fatalf("capture failed: %v", report.Errors)
	}
	if report.CandidateCount != 2 || report.InsertedCount != 2 || report.DuplicateCount != 0 {
		t.Errorf("unexpected counts: %+v", report)
	}
	if len(sink.received) != 2 {
		t.Fatalf("expected 2 pipeline runs, got %d", len(sink.received))
	}
	if sink.received[0].Source != "dom-slack" {
		t.Errorf("unexpected source tag %q", sink.received[0].Source)
	}
	if sink.tabIDs[0] != "slack" {
		t.Errorf("unexpected tab id %q", sink.tabIDs[0])
	}
}

func TestCaptureVisibleMessages_SecondRunIsAllDuplicates(t *testing.T) {
	host := &fakeHost{tabs: map[string]*fakeTab{
		"slack": slackTab(&fakeFrame{routingID: "1", url: "https://app.slack.com/client/T1/C1", result: slackFrameResult}),
	}}
	sink := &fakeSink{}
	orch := newTestOrchestrator(t, host, sink)

	orch.CaptureVisibleMessages(context.Background(), "slack")
	second := orch.CaptureVisibleMessages(context.Background(), "slack")

	if second.InsertedCount != 0 {
		t.Errorf("second run inserted %d, want 0", second.InsertedCount)
	}
	if second.DuplicateCount != second.CandidateCount {
		t.Errorf("second run: %d duplicates of %d candidates", second.DuplicateCount, second.CandidateCount)
	}
	if len(sink.received) != 2 {
		t.Errorf("pipeline ran %d times, want 2", len(sink.received))
	}
}

func TestCaptureVisibleMessages_OverlappingCallIsRefused(t *testing.T) {
	frame := &fakeFrame{
		routingID: "1",
		url:       "https://app.slack.com/client/T1/C1",
		result:    slackFrameResult,
		entered:   make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
	host := &fakeHost{tabs: map[string]*fakeTab{"slack": slackTab(frame)}}
	sink := &fakeSink{}
	orch := newTestOrchestrator(t, host, sink)

	first := make(chan *CaptureReport, 1)
	go func() {
		first <- orch.CaptureVisibleMessages(context.Background(), "slack")
	}()
	<-frame.entered

	overlap := orch.CaptureVisibleMessages(context.Background(), "slack")
	if overlap.OK {
		t.Error("overlapping capture of the same tab must be refused")
	}
	if len(overlap.Errors) != 1 || overlap.Errors[0] != "capture already in flight" {
		t.Errorf("unexpected refusal: %v", overlap.Errors)
	}

	close(frame.release)
	report := <-first
	if !report.OK || report.InsertedCount != 2 {
		t.Errorf("in-flight capture must complete normally, got %+v", report)
	}

	// The guard clears once the capture finishes.
	again := orch.CaptureVisibleMessages(context.Background(), "slack")
	if !again.OK {
		t.Errorf("follow-up capture must be admitted: %v", again.Errors)
	}
}

func TestCaptureVisibleMessages_CrossFrameSourceTag(t *testing.T) {
	embedded := `{
		"host": "outlook.office.com",
		"url": "https://outlook.office.com/mail/",
		"items": [{"key": "id:o1", "title": "inbox", "body": "meeting notes", "source": "outlook"}]
	}`
	host := &fakeHost{tabs: map[string]*fakeTab{
		"office": {
			id:  "office",
			url: "https://www.office.com/",
			frames: []*fakeFrame{
				{routingID: "1", url: "https://outlook.office.com/mail/", result: embedded},
			},
		},
	}}
	sink := &fakeSink{}
	orch := newTestOrchestrator(t, host, sink)

	report := orch.CaptureVisibleMessages(context.Background(), "office")
	if report.InsertedCount != 1 {
		t.Fatalf("expected 1 insert, got %+v", report)
	}
	if sink.received[0].Source != "dom-outlook:outlook.office.com" {
		t.Errorf("cross-origin frame must suffix the frame host, got %q", sink.received[0].Source)
	}
}

func TestCaptureVisibleMessages_RefusesUnknownTab(t *testing.T) {
	orch := newTestOrchestrator(t, &fakeHost{tabs: map[string]*fakeTab{}}, &fakeSink{})
	report := orch.CaptureVisibleMessages(context.Background(), "nope")
	if report.OK {
		t.Error("capture of unknown tab must fail")
	}
	if len(report.Errors) == 0 {
		t.Error("expected an error entry")
	}
}

func TestCaptureVisibleMessages_RefusesLoadingTab(t *testing.T) {
	host := &fakeHost{tabs: map[string]*fakeTab{
		"slack": {id: "slack", url: "https://app.slack.com/client", loading: true},
	}}
	orch := newTestOrchestrator(t, host, &fakeSink{})
	report := orch.CaptureVisibleMessages(context.Background(), "slack")
	if report.OK {
		t.Error("capture of a loading tab must fail")
	}
}

func TestCaptureVisibleMessages_RefusesNonWebURL(t *testing.T) {
	host := &fakeHost{tabs: map[string]*fakeTab{
		"weird": {id: "weird", url: "chrome://settings"},
	}}
	orch := newTestOrchestrator(t, host, &fakeSink{})
	report := orch.CaptureVisibleMessages(context.Background(), "weird")
	if report.OK {
		t.Error("capture of a non-web tab must fail")
	}
}

func TestCaptureVisibleMessages_FrameErrorDoesNotAbortSiblings(t *testing.T) {
	host := &fakeHost{tabs: map[string]*fakeTab{
		"slack": slackTab(
			&fakeFrame{routingID: "1", url: "https://app.slack.com/client", err: errors.New("frame detached")},
			&fakeFrame{routingID: "2", url: "https://app.slack.com/client", result: slackFrameResult},
		),
	}}
	sink := &fakeSink{}
	orch := newTestOrchestrator(t, host, sink)

	report := orch.CaptureVisibleMessages(context.Background(), "slack")
	if !report.OK {
		t.Fatalf("per-frame failure must not fail the capture: %v", report.Errors)
	}
	if len(report.Errors) != 1 {
		t.Errorf("expected 1 frame error, got %v", report.Errors)
	}
	if report.InsertedCount != 2 {
		t.Errorf("healthy frame must still insert, got %d", report.InsertedCount)
	}
}

func TestCaptureVisibleMessages_MalformedExtractionResult(t *testing.T) {
	host := &fakeHost{tabs: map[string]*fakeTab{
		"slack": slackTab(&fakeFrame{routingID: "1", url: "https://app.slack.com/client", result: "not json"}),
	}}
	orch := newTestOrchestrator(t, host, &fakeSink{})

	report := orch.CaptureVisibleMessages(context.Background(), "slack")
	if len(report.Errors) != 1 {
		t.Errorf("expected a decode error, got %v", report.Errors)
	}
	if report.InsertedCount != 0 {
		t.Errorf("malformed frame must insert nothing, got %d", report.InsertedCount)
	}
}

func TestCaptureFromSnapshot_SharesDedupWithLiveCapture(t *testing.T) {
	snapshot := `<html><body>
		<div data-qa="message_container" data-item-key="m1">
			<span data-qa="message_sender_name">alice</span>
			<span data-qa="message_text">deploy done</span>
		</div>
	</body></html>`

	sink := &fakeSink{}
	orch := newTestOrchestrator(t, &fakeHost{tabs: map[string]*fakeTab{}}, sink)

	first, err := orch.CaptureFromSnapshot("slack", "app.slack.com", snapshot)
	if err != nil {
		t.Fatalf("CaptureFromSnapshot: %v", err)
	}
	if first.InsertedCount != 1 {
		t.Fatalf("expected 1 insert, got %+v", first)
	}
	if sink.received[0].Title != "alice" || sink.received[0].Body != "deploy done" {
		t.Errorf("unexpected payload %+v", sink.received[0])
	}

	second, err := orch.CaptureFromSnapshot("slack", "app.slack.com", snapshot)
	if err != nil {
		t.Fatalf("CaptureFromSnapshot: %v", err)
	}
	if second.InsertedCount != 0 || second.DuplicateCount != 1 {
		t.Errorf("replayed snapshot must dedup, got %+v", second)
	}
}
