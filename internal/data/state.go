package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"commhub/internal/biz/domain"
	"commhub/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// Load bounds, matching the in-memory history caps.
const (
	loadMessageLimit    = 400
	loadEventLimit      = 400
	loadEvaluationLimit = 1200
)

// stateRepo implements the automation state repository on SQLite
type stateRepo struct {
	db *sql.DB
}

// NewStateRepo opens (or creates) the automation state database
func NewStateRepo(dbPath string) (repo.StateRepo, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS actions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			instructions TEXT NOT NULL DEFAULT '',
			schedule_text TEXT NOT NULL DEFAULT 'always',
			enabled INTEGER NOT NULL DEFAULT 1,
			generated_code TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS triggers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			source_tab TEXT NOT NULL DEFAULT 'any',
			match_text TEXT NOT NULL DEFAULT '',
			schedule_text TEXT NOT NULL DEFAULT 'always',
			action_ids TEXT NOT NULL DEFAULT '[]',
			enabled INTEGER NOT NULL DEFAULT 1,
			generated_code TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			tab_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT 'unknown',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at)`,
		`CREATE TABLE IF NOT EXISTS trigger_evaluations (
			id TEXT PRIMARY KEY,
			trigger_id TEXT NOT NULL,
			message_id TEXT NOT NULL,
			matched INTEGER NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_trigger ON trigger_evaluations(trigger_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS automation_events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			fields TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &stateRepo{db: db}, nil
}

// UpsertAction saves an action (create or update)
func (r *stateRepo) UpsertAction(ctx context.Context, action *domain.Action) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO actions (id, name, kind, instructions, schedule_text, enabled, generated_code, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		action.ID,
		action.Name,
		action.Kind,
		action.Instructions,
		action.ScheduleText,
		boolToInt(action.Enabled),
		action.GeneratedCode,
		action.CreatedAt.UnixMilli(),
		action.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save action: %w", err)
	}
	return nil
}

// UpsertTrigger saves a trigger (create or update)
func (r *stateRepo) UpsertTrigger(ctx context.Context, trigger *domain.Trigger) error {
	actionIDs, err := json.Marshal(trigger.ActionIDs)
	if err != nil {
		return fmt.Errorf("failed to encode action ids: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO triggers (id, name, source_tab, match_text, schedule_text, action_ids, enabled, generated_code, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		trigger.ID,
		trigger.Name,
		trigger.SourceTab,
		trigger.MatchText,
		trigger.ScheduleText,
		string(actionIDs),
		boolToInt(trigger.Enabled),
		trigger.GeneratedCode,
		trigger.CreatedAt.UnixMilli(),
		trigger.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save trigger: %w", err)
	}
	return nil
}

// InsertMessage appends a captured message
func (r *stateRepo) InsertMessage(ctx context.Context, message *domain.Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO messages (id, tab_id, title, body, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		message.ID,
		message.TabID,
		message.Title,
		message.Body,
		message.Source,
		message.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// InsertEvaluation appends a trigger evaluation row
func (r *stateRepo) InsertEvaluation(ctx context.Context, evaluation *domain.TriggerEvaluation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO trigger_evaluations (id, trigger_id, message_id, matched, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		evaluation.ID,
		evaluation.TriggerID,
		evaluation.MessageID,
		boolToInt(evaluation.Matched),
		evaluation.Reason,
		evaluation.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save evaluation: %w", err)
	}
	return nil
}

// InsertEvent appends an automation event
func (r *stateRepo) InsertEvent(ctx context.Context, event *domain.AutomationEvent) error {
	fields, err := json.Marshal(event.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode event fields: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO automation_events (kind, fields, created_at)
		VALUES (?, ?, ?)
	`, string(event.Kind), string(fields), event.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

// Load bulk-loads persisted state, newest first, bounded to the in-memory caps
func (r *stateRepo) Load(ctx context.Context) (*repo.StateSnapshot, error) {
	snapshot := &repo.StateSnapshot{}

	if err := r.loadActions(ctx, snapshot); err != nil {
		return nil, err
	}
	if err := r.loadTriggers(ctx, snapshot); err != nil {
		return nil, err
	}
	if err := r.loadMessages(ctx, snapshot); err != nil {
		return nil, err
	}
	if err := r.loadEvaluations(ctx, snapshot); err != nil {
		return nil, err
	}
	if err := r.loadEvents(ctx, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (r *stateRepo) loadActions(ctx context.Context, snapshot *repo.StateSnapshot) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, kind, instructions, schedule_text, enabled, generated_code, created_at, updated_at
		FROM actions
	`)
	if err != nil {
		return fmt.Errorf("failed to load actions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var action domain.Action
		var enabled int
		var createdAt, updatedAt int64
		if err := rows.Scan(&action.ID, &action.Name, &action.Kind, &action.Instructions,
			&action.ScheduleText, &enabled, &action.GeneratedCode, &createdAt, &updatedAt); err != nil {
			return fmt.Errorf("failed to scan action: %w", err)
		}
		action.Enabled = enabled != 0
		action.CreatedAt = time.UnixMilli(createdAt)
		action.UpdatedAt = time.UnixMilli(updatedAt)
		// Schedules are not persisted in parsed form; re-derive from the text.
		action.Schedule = domain.ParseSchedule(action.ScheduleText)
		snapshot.Actions = append(snapshot.Actions, &action)
	}
	return rows.Err()
}

func (r *stateRepo) loadTriggers(ctx context.Context, snapshot *repo.StateSnapshot) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, source_tab, match_text, schedule_text, action_ids, enabled, generated_code, created_at, updated_at
		FROM triggers
	`)
	if err != nil {
		return fmt.Errorf("failed to load triggers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var trigger domain.Trigger
		var actionIDs string
		var enabled int
		var createdAt, updatedAt int64
		if err := rows.Scan(&trigger.ID, &trigger.Name, &trigger.SourceTab, &trigger.MatchText,
			&trigger.ScheduleText, &actionIDs, &enabled, &trigger.GeneratedCode, &createdAt, &updatedAt); err != nil {
			return fmt.Errorf("failed to scan trigger: %w", err)
		}
		if err := json.Unmarshal([]byte(actionIDs), &trigger.ActionIDs); err != nil {
			return fmt.Errorf("failed to decode action ids for %s: %w", trigger.ID, err)
		}
		trigger.Enabled = enabled != 0
		trigger.CreatedAt = time.UnixMilli(createdAt)
		trigger.UpdatedAt = time.UnixMilli(updatedAt)
		trigger.Schedule = domain.ParseSchedule(trigger.ScheduleText)
		snapshot.Triggers = append(snapshot.Triggers, &trigger)
	}
	return rows.Err()
}

func (r *stateRepo) loadMessages(ctx context.Context, snapshot *repo.StateSnapshot) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tab_id, title, body, source, created_at
		FROM messages
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, loadMessageLimit)
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var message domain.Message
		var createdAt int64
		if err := rows.Scan(&message.ID, &message.TabID, &message.Title, &message.Body, &message.Source, &createdAt); err != nil {
			return fmt.Errorf("failed to scan message: %w", err)
		}
		message.CreatedAt = time.UnixMilli(createdAt)
		snapshot.Messages = append(snapshot.Messages, &message)
	}
	return rows.Err()
}

func (r *stateRepo) loadEvaluations(ctx context.Context, snapshot *repo.StateSnapshot) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, trigger_id, message_id, matched, reason, created_at
		FROM trigger_evaluations
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, loadEvaluationLimit)
	if err != nil {
		return fmt.Errorf("failed to load evaluations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var evaluation domain.TriggerEvaluation
		var matched int
		var createdAt int64
		if err := rows.Scan(&evaluation.ID, &evaluation.TriggerID, &evaluation.MessageID, &matched, &evaluation.Reason, &createdAt); err != nil {
			return fmt.Errorf("failed to scan evaluation: %w", err)
		}
		evaluation.Matched = matched != 0
		evaluation.CreatedAt = time.UnixMilli(createdAt)
		snapshot.Evaluations = append(snapshot.Evaluations, &evaluation)
	}
	return rows.Err()
}

func (r *stateRepo) loadEvents(ctx context.Context, snapshot *repo.StateSnapshot) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, fields, created_at
		FROM automation_events
		ORDER BY seq DESC
		LIMIT ?
	`, loadEventLimit)
	if err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var event domain.AutomationEvent
		var kind, fields string
		var createdAt int64
		if err := rows.Scan(&kind, &fields, &createdAt); err != nil {
			return fmt.Errorf("failed to scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(fields), &event.Fields); err != nil {
			return fmt.Errorf("failed to decode event fields: %w", err)
		}
		event.Kind = domain.EventKind(kind)
		event.CreatedAt = time.UnixMilli(createdAt)
		snapshot.Events = append(snapshot.Events, &event)
	}
	return rows.Err()
}

// Close closes the database connection
func (r *stateRepo) Close() error {
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
