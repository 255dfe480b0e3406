package capture

import (
	"strings"

	"commhub/internal/biz/repo"
)

// DefaultMaxFrames bounds how many frames of a single tab are scanned per
// capture cycle.
const DefaultMaxFrames = 16

// IsAllowedFrameURL applies the capture allow-list to a frame URL. Empty
// URLs are allowed: same-origin content frames often have not reported a URL
// yet (Outlook's message list renders in such a frame).
func IsAllowedFrameURL(rawURL string) bool {
	url := strings.ToLower(strings.TrimSpace(rawURL))
	if url == "" {
		return true
	}
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return true
	}
	if url == "about:blank" || url == "about:srcdoc" {
		return true
	}
	if strings.HasPrefix(url, "blob:") {
		return true
	}
	return false
}

// CollectFrameTargets filters a tab's reachable frames down to capture
// targets: duplicates by routing id are dropped, disallowed URLs (file:,
// javascript:, devtools: and anything else off the allow-list) are rejected,
// and the result is bounded to maxFrames. Enumeration order is preserved.
func CollectFrameTargets(frames []repo.FrameTarget, maxFrames int) []repo.FrameTarget {
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}
	targets := make([]repo.FrameTarget, 0, len(frames))
	seenRoutingIDs := map[string]struct{}{}
	for _, frame := range frames {
		if frame == nil {
			continue
		}
		if id := frame.RoutingID(); id != "" {
			if _, dup := seenRoutingIDs[id]; dup {
				continue
			}
			seenRoutingIDs[id] = struct{}{}
		}
		if !IsAllowedFrameURL(frame.URL()) {
			continue
		}
		targets = append(targets, frame)
		if len(targets) >= maxFrames {
			break
		}
	}
	return targets
}
