package repo

import (
	"context"

	"commhub/internal/biz/domain"
)

// StateSnapshot is the result of a bulk load at startup.
type StateSnapshot struct {
	Actions     []*domain.Action
	Triggers    []*domain.Trigger
	Messages    []*domain.Message
	Evaluations []*domain.TriggerEvaluation
	Events      []*domain.AutomationEvent
}

// StateRepo mirrors the in-memory automation state to durable storage.
// All writes are upsert/insert idempotent by primary key; in-memory state
// stays authoritative for the running process, so callers treat write
// failures as best-effort.
type StateRepo interface {
	// UpsertAction saves an action (create or update)
	UpsertAction(ctx context.Context, action *domain.Action) error

	// UpsertTrigger saves a trigger (create or update)
	UpsertTrigger(ctx context.Context, trigger *domain.Trigger) error

	// InsertMessage appends a captured message
	InsertMessage(ctx context.Context, message *domain.Message) error

	// InsertEvaluation appends a trigger evaluation row
	InsertEvaluation(ctx context.Context, evaluation *domain.TriggerEvaluation) error

	// InsertEvent appends an automation event
	InsertEvent(ctx context.Context, event *domain.AutomationEvent) error

	// Load bulk-loads the persisted state, bounded to the in-memory caps
	Load(ctx context.Context) (*StateSnapshot, error)

	// Close closes the storage handle
	Close() error
}
