package repo

import "context"

// FrameTarget is one reachable frame of a tab: a stable routing identifier,
// the frame's URL, and a script-execution capability returning a
// JSON-serializable result.
type FrameTarget interface {
	RoutingID() string
	URL() string
	ExecuteScript(ctx context.Context, script string) ([]byte, error)
}

// TabHandle exposes the navigable content of a single tab.
type TabHandle interface {
	ID() string
	CurrentURL() string
	IsLoading() bool

	// Frames enumerates the main frame plus reachable subframes, in
	// enumeration order. Cross-origin frames that cannot be reached are
	// omitted rather than reported as errors.
	Frames(ctx context.Context) ([]FrameTarget, error)
}

// TabStateKind classifies tab lifecycle notifications.
type TabStateKind string

const (
	TabNavigationStarted  TabStateKind = "navigation-started"
	TabNavigationFinished TabStateKind = "navigation-finished"
	TabNavigated          TabStateKind = "navigated"
	TabTitleChanged       TabStateKind = "title-changed"
)

// TabState is a lifecycle notification for one tab.
type TabState struct {
	TabID   string
	Kind    TabStateKind
	URL     string
	Title   string
	Loading bool
}

// TabHost is the browser collaborator: it owns tab lifecycle and exposes
// handles for frame enumeration and script execution. The core never creates
// or tears down tabs through this interface.
type TabHost interface {
	Tab(tabID string) (TabHandle, bool)
	Tabs() []TabHandle
}
