package domain

import "time"

// EventKind classifies pipeline decisions recorded in the event log.
type EventKind string

const (
	EventMessageReceived EventKind = "message-received"
	EventTriggerMatched  EventKind = "trigger-matched"
	EventActionPlanned   EventKind = "action-planned"
	EventActionSkipped   EventKind = "action-skipped"
)

// AutomationEvent is one entry in the bounded pipeline event log. Events
// carry free-form payload fields and are ordered by insertion.
type AutomationEvent struct {
	Kind      EventKind
	Fields    map[string]string
	CreatedAt time.Time
}

// TriggerEvaluation is one row of the append-only trigger audit trail. A row
// is recorded for every trigger on every message, matched or not.
type TriggerEvaluation struct {
	ID        string
	TriggerID string
	MessageID string
	Matched   bool
	Reason    string
	CreatedAt time.Time
}
