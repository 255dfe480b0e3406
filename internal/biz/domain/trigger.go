package domain

import "time"

// SourceTabAny matches messages from every tab.
const SourceTabAny = "any"

// Trigger links a message condition to an ordered list of actions.
type Trigger struct {
	ID            string
	Name          string
	SourceTab     string // "any" or a specific tab id
	MatchText     string
	ScheduleText  string
	Schedule      Schedule
	ActionIDs     []string
	Enabled       bool
	GeneratedCode string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MatchesTab reports whether the trigger applies to messages from tabID.
func (t *Trigger) MatchesTab(tabID string) bool {
	return t.SourceTab == SourceTabAny || t.SourceTab == tabID
}
