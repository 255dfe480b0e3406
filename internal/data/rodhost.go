package data

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"commhub/internal/biz/domain"
	"commhub/internal/biz/repo"
	"commhub/internal/eventbus"
)

// RodHostConfig configures the browser collaborator.
type RodHostConfig struct {
	// ControlURL is an existing DevTools websocket. Empty launches a managed
	// browser instead.
	ControlURL string
	Headless   bool
	Tabs       []domain.Tab
}

// RodTabHost hosts one browser page per catalog tab and exposes them through
// the TabHost interface. Navigation and loading changes are published on the
// bus as tab state notifications.
type RodTabHost struct {
	cfg RodHostConfig
	bus eventbus.Bus
	log zerolog.Logger

	mu      sync.RWMutex
	browser *rod.Browser
	tabs    map[string]*rodTab
	order   []string
}

// NewRodTabHost creates the host. Start must be called before use.
func NewRodTabHost(cfg RodHostConfig, bus eventbus.Bus, log zerolog.Logger) *RodTabHost {
	if len(cfg.Tabs) == 0 {
		cfg.Tabs = domain.DefaultTabs()
	}
	return &RodTabHost{
		cfg:  cfg,
		bus:  bus,
		log:  log.With().Str("component", "browser").Logger(),
		tabs: make(map[string]*rodTab),
	}
}

// Start connects to the browser and opens one page per web tab.
func (h *RodTabHost) Start(ctx context.Context) error {
	controlURL := h.cfg.ControlURL
	if controlURL == "" {
		url, err := launcher.New().Headless(h.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("launch browser: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to browser: %w", err)
	}

	h.mu.Lock()
	h.browser = browser
	h.mu.Unlock()

	for _, tab := range h.cfg.Tabs {
		if tab.Kind != domain.TabKindWeb {
			continue
		}
		page, err := browser.Page(proto.TargetCreateTarget{URL: tab.URL})
		if err != nil {
			h.Close()
			return fmt.Errorf("open tab %s: %w", tab.ID, err)
		}
		rt := &rodTab{id: tab.ID, page: page, host: h}
		rt.url.Store(tab.URL)
		rt.watch()

		h.mu.Lock()
		h.tabs[tab.ID] = rt
		h.order = append(h.order, tab.ID)
		h.mu.Unlock()

		h.log.Info().Str("tab", tab.ID).Str("url", tab.URL).Msg("tab opened")
	}
	return nil
}

// Tab returns the handle for one tab.
func (h *RodTabHost) Tab(tabID string) (repo.TabHandle, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	tab, ok := h.tabs[tabID]
	if !ok {
		return nil, false
	}
	return tab, true
}

// Tabs returns every hosted tab in catalog order.
func (h *RodTabHost) Tabs() []repo.TabHandle {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]repo.TabHandle, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.tabs[id])
	}
	return out
}

// Steer navigates tabs that drifted off their scrape-able surface back to
// their target URL.
func (h *RodTabHost) Steer(ctx context.Context) {
	for _, handle := range h.Tabs() {
		tab := handle.(*rodTab)
		current := tab.CurrentURL()
		target := domain.ResolveTabTargetURL(tab.id, current)
		if target == current || target == "" {
			continue
		}
		h.log.Info().Str("tab", tab.id).Str("from", current).Str("to", target).Msg("steering tab")
		if err := tab.page.Context(ctx).Navigate(target); err != nil {
			h.log.Warn().Err(err).Str("tab", tab.id).Msg("steer navigation failed")
		}
	}
}

// Close closes all pages and the browser connection.
func (h *RodTabHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, tab := range h.tabs {
		_ = tab.page.Close()
		delete(h.tabs, id)
	}
	h.order = nil
	var err error
	if h.browser != nil {
		err = h.browser.Close()
		h.browser = nil
	}
	return err
}

func (h *RodTabHost) publishState(state repo.TabState) {
	if h.bus == nil {
		return
	}
	h.bus.Publish(eventbus.Event{Topic: eventbus.TopicTabState, Data: state})
}

// rodTab adapts one rod page to the TabHandle interface.
type rodTab struct {
	id      string
	page    *rod.Page
	host    *RodTabHost
	url     atomic.Value // string
	title   atomic.Value // string
	loading atomic.Bool
}

func (t *rodTab) ID() string { return t.id }

func (t *rodTab) CurrentURL() string {
	url, _ := t.url.Load().(string)
	return url
}

func (t *rodTab) IsLoading() bool { return t.loading.Load() }

// watch subscribes to the page's navigation lifecycle and mirrors it into the
// tab state. Runs until the page closes.
func (t *rodTab) watch() {
	mainFrame := t.page.FrameID
	wait := t.page.EachEvent(
		func(e *proto.PageFrameStartedLoading) {
			if e.FrameID != mainFrame {
				return
			}
			t.loading.Store(true)
			t.emit(repo.TabNavigationStarted)
		},
		func(e *proto.PageFrameStoppedLoading) {
			if e.FrameID != mainFrame {
				return
			}
			t.loading.Store(false)
			t.refreshInfo()
			t.emit(repo.TabNavigationFinished)
		},
		func(e *proto.PageFrameNavigated) {
			if e.Frame == nil || e.Frame.ID != mainFrame {
				return
			}
			t.url.Store(e.Frame.URL)
			t.emit(repo.TabNavigated)
		},
	)
	go wait()
}

// refreshInfo re-reads the page URL and title, best-effort.
func (t *rodTab) refreshInfo() {
	info, err := t.page.Info()
	if err != nil {
		return
	}
	t.url.Store(info.URL)
	previous, _ := t.title.Load().(string)
	t.title.Store(info.Title)
	if previous != "" && previous != info.Title {
		t.emit(repo.TabTitleChanged)
	}
}

func (t *rodTab) emit(kind repo.TabStateKind) {
	title, _ := t.title.Load().(string)
	t.host.publishState(repo.TabState{
		TabID:   t.id,
		Kind:    kind,
		URL:     t.CurrentURL(),
		Title:   title,
		Loading: t.loading.Load(),
	})
}

// Frames enumerates the main frame plus same-process iframes. Iframes whose
// content cannot be adopted (cross-origin isolation, detach races) are
// skipped.
func (t *rodTab) Frames(ctx context.Context) ([]repo.FrameTarget, error) {
	targets := []repo.FrameTarget{&rodFrame{
		routingID: string(t.page.FrameID),
		url:       t.CurrentURL(),
		page:      t.page,
	}}

	elements, err := t.page.Context(ctx).Elements("iframe")
	if err != nil {
		return targets, nil
	}
	for _, el := range elements {
		framePage, err := el.Frame()
		if err != nil {
			continue
		}
		frameURL := ""
		if src, err := el.Attribute("src"); err == nil && src != nil {
			frameURL = *src
		}
		targets = append(targets, &rodFrame{
			routingID: string(framePage.FrameID),
			url:       frameURL,
			page:      framePage,
		})
	}
	return targets, nil
}

// rodFrame adapts a rod page or iframe to the FrameTarget interface.
type rodFrame struct {
	routingID string
	url       string
	page      *rod.Page
}

func (f *rodFrame) RoutingID() string { return f.routingID }
func (f *rodFrame) URL() string       { return f.url }

// ExecuteScript evaluates a function definition in the frame and returns the
// JSON-encoded result.
func (f *rodFrame) ExecuteScript(ctx context.Context, script string) ([]byte, error) {
	res, err := f.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           script,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate in frame %s: %w", f.routingID, err)
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode frame %s result: %w", f.routingID, err)
	}
	return raw, nil
}
