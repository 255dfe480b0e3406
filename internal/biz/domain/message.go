package domain

import "time"

// Message is a captured or simulated message. Immutable once created.
type Message struct {
	ID        string
	TabID     string
	Title     string
	Body      string
	Source    string // "notification", "simulation", or "dom-<site>[:host]"
	CreatedAt time.Time
}

// MessagePayload is the input to message creation. CreatedAt defaults to the
// current time when zero.
type MessagePayload struct {
	Title     string
	Body      string
	Source    string
	CreatedAt time.Time
}
