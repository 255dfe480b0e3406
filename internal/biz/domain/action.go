package domain

import "time"

// Action is a planned automation step. Actions are never deleted; they are
// only created or toggled via the enabled flag.
type Action struct {
	ID            string
	Name          string
	Kind          string // free-form classification tag
	Instructions  string
	ScheduleText  string
	Schedule      Schedule
	Enabled       bool
	GeneratedCode string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
