package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"commhub/internal/biz/domain"
	"commhub/internal/biz/repo"
)

// MessageSink accepts deduplicated messages into the trigger pipeline.
type MessageSink interface {
	RunTriggerPipeline(tabID string, payload domain.MessagePayload) *domain.Message
}

// FrameReport records the outcome of scanning one frame.
type FrameReport struct {
	RoutingID  string
	URL        string
	Host       string
	Candidates int
	Inserted   int
	Duplicates int
	Err        string
}

// CaptureReport is the result of one CaptureVisibleMessages call.
type CaptureReport struct {
	OK             bool
	TabID          string
	FrameCount     int
	CandidateCount int
	InsertedCount  int
	DuplicateCount int
	FrameReports   []FrameReport
	Errors         []string
}

// Orchestrator drives DOM extraction across every reachable frame of a tab,
// deduplicates candidates against the process-wide seen-key cache and feeds
// accepted messages into the trigger pipeline.
type Orchestrator struct {
	host      repo.TabHost
	sink      MessageSink
	cache     *KeyCache
	script    string
	maxFrames int
	log       zerolog.Logger

	mu       sync.Mutex
	inflight map[string]bool
}

// NewOrchestrator wires an orchestrator against a tab host and message sink.
func NewOrchestrator(host repo.TabHost, sink MessageSink, log zerolog.Logger) (*Orchestrator, error) {
	script, err := ExtractionScript(DefaultRules())
	if err != nil {
		return nil, fmt.Errorf("build extraction script: %w", err)
	}
	return &Orchestrator{
		host:      host,
		sink:      sink,
		cache:     NewKeyCache(DefaultKeyCacheSize),
		script:    script,
		maxFrames: DefaultMaxFrames,
		log:       log.With().Str("component", "capture").Logger(),
	}, nil
}

func failedReport(tabID, reason string) *CaptureReport {
	return &CaptureReport{TabID: tabID, Errors: []string{reason}}
}

// CaptureVisibleMessages scans every allowed frame of a tab once. Capture is
// single-flight per tab: an overlapping call is refused, not queued. Per-frame
// failures are recorded in the report and never abort sibling frames.
func (o *Orchestrator) CaptureVisibleMessages(ctx context.Context, tabID string) *CaptureReport {
	tab, ok := o.host.Tab(tabID)
	if !ok {
		return failedReport(tabID, "unknown tab")
	}

	o.mu.Lock()
	if o.inflight[tabID] {
		o.mu.Unlock()
		return failedReport(tabID, "capture already in flight")
	}
	if o.inflight == nil {
		o.inflight = make(map[string]bool)
	}
	o.inflight[tabID] = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.inflight, tabID)
		o.mu.Unlock()
	}()

	if tab.IsLoading() {
		return failedReport(tabID, "tab content is still loading")
	}
	currentURL := tab.CurrentURL()
	if !isWebNavigable(currentURL) {
		return failedReport(tabID, fmt.Sprintf("tab url is not web-navigable: %s", currentURL))
	}

	frames, err := tab.Frames(ctx)
	if err != nil {
		return failedReport(tabID, fmt.Sprintf("enumerate frames: %v", err))
	}
	targets := CollectFrameTargets(frames, o.maxFrames)

	report := &CaptureReport{OK: true, TabID: tabID, FrameCount: len(targets)}
	mainHost := hostOf(currentURL)

	for _, target := range targets {
		frameReport := o.captureFrame(ctx, tabID, mainHost, target)
		report.CandidateCount += frameReport.Candidates
		report.InsertedCount += frameReport.Inserted
		report.DuplicateCount += frameReport.Duplicates
		if frameReport.Err != "" {
			report.Errors = append(report.Errors, frameReport.Err)
		}
		report.FrameReports = append(report.FrameReports, frameReport)
	}

	o.log.Debug().
		Str("tab", tabID).
		Int("frames", report.FrameCount).
		Int("candidates", report.CandidateCount).
		Int("inserted", report.InsertedCount).
		Int("duplicates", report.DuplicateCount).
		Msg("capture cycle complete")
	return report
}

func (o *Orchestrator) captureFrame(ctx context.Context, tabID, mainHost string, target repo.FrameTarget) FrameReport {
	frameReport := FrameReport{RoutingID: target.RoutingID(), URL: target.URL()}

	raw, err := target.ExecuteScript(ctx, o.script)
	if err != nil {
		frameReport.Err = fmt.Sprintf("frame %s: %v", frameReport.RoutingID, err)
		return frameReport
	}
	var extraction ExtractionReport
	if err := json.Unmarshal(raw, &extraction); err != nil {
		frameReport.Err = fmt.Sprintf("frame %s: decode extraction result: %v", frameReport.RoutingID, err)
		return frameReport
	}
	frameReport.Host = extraction.Host

	o.acceptCandidates(tabID, mainHost, &extraction, &frameReport)
	return frameReport
}

// acceptCandidates runs the dedup-cache gate over a frame's candidates and
// hands first-seen ones to the pipeline.
func (o *Orchestrator) acceptCandidates(tabID, mainHost string, extraction *ExtractionReport, frameReport *FrameReport) {
	for _, item := range extraction.Items {
		frameReport.Candidates++
		source := sourceTag(item.Source, extraction.Host, mainHost)
		if !o.cache.Add(DedupKey(tabID, source, item.Key)) {
			frameReport.Duplicates++
			continue
		}
		frameReport.Inserted++
		o.sink.RunTriggerPipeline(tabID, domain.MessagePayload{
			Title:     item.Title,
			Body:      item.Body,
			Source:    source,
			CreatedAt: time.Now(),
		})
	}
}

// CaptureFromSnapshot runs the Go extractor over a static HTML snapshot and
// feeds the result through the same dedup and pipeline path. This backs the
// offline capture diagnostics flow.
func (o *Orchestrator) CaptureFromSnapshot(tabID, host, htmlSource string) (*CaptureReport, error) {
	doc, err := ParseHTMLDocument(htmlSource)
	if err != nil {
		return nil, err
	}
	extraction := ExtractFromDOM(doc, host, "", DefaultRules())

	report := &CaptureReport{OK: true, TabID: tabID, FrameCount: 1}
	frameReport := FrameReport{RoutingID: "snapshot", Host: host}
	o.acceptCandidates(tabID, host, extraction, &frameReport)
	report.CandidateCount = frameReport.Candidates
	report.InsertedCount = frameReport.Inserted
	report.DuplicateCount = frameReport.Duplicates
	report.FrameReports = []FrameReport{frameReport}
	return report, nil
}

// sourceTag namespaces the capture source: "dom-<site>", suffixed with the
// originating frame's hostname when it differs from the tab's main host so
// identical content in different frames cannot collide.
func sourceTag(site, frameHost, mainHost string) string {
	if site == "" {
		site = "unknown"
	}
	tag := "dom-" + site
	if frameHost != "" && !strings.EqualFold(frameHost, mainHost) {
		tag += ":" + strings.ToLower(frameHost)
	}
	return tag
}

func isWebNavigable(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	return scheme == "http" || scheme == "https"
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}
