package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"commhub/internal/biz/domain"
	"commhub/internal/biz/repo"
	"commhub/internal/eventbus"
)

// In-memory history caps. Persistence mirrors these bounds on load.
const (
	maxMessages       = 400
	maxEvents         = 400
	maxEvaluations    = 1200
	maxTriggerHistory = 120
)

// AutomationUsecase owns the automation state: actions, triggers, captured
// messages, the trigger-evaluation audit trail and the pipeline event log.
// In-memory state is authoritative; every mutation is mirrored to the state
// repo best-effort and pipeline events are published on the bus.
type AutomationUsecase struct {
	stateRepo repo.StateRepo
	codegen   *CodeGenerator
	bus       eventbus.Bus
	log       zerolog.Logger

	now   func() time.Time
	newID func(prefix string) string

	mu          sync.Mutex
	actions     map[string]*domain.Action
	triggers    map[string]*domain.Trigger
	messages    []*domain.Message // most recent first
	messageByID map[string]*domain.Message
	evaluations []*domain.TriggerEvaluation // most recent first
	events      []*domain.AutomationEvent   // most recent first
}

// NewAutomationUsecase creates the automation usecase. bus may be nil when no
// observer is attached.
func NewAutomationUsecase(stateRepo repo.StateRepo, codegen *CodeGenerator, bus eventbus.Bus, log zerolog.Logger) *AutomationUsecase {
	return &AutomationUsecase{
		stateRepo:   stateRepo,
		codegen:     codegen,
		bus:         bus,
		log:         log.With().Str("component", "automation").Logger(),
		now:         time.Now,
		newID:       newID,
		actions:     make(map[string]*domain.Action),
		triggers:    make(map[string]*domain.Trigger),
		messageByID: make(map[string]*domain.Message),
	}
}

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// Hydrate loads persisted state into memory. Called once at startup, before
// any capture or pipeline activity.
func (uc *AutomationUsecase) Hydrate(ctx context.Context) error {
	snapshot, err := uc.stateRepo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load automation state: %w", err)
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()
	for _, action := range snapshot.Actions {
		uc.actions[action.ID] = action
	}
	for _, trigger := range snapshot.Triggers {
		uc.triggers[trigger.ID] = trigger
	}
	uc.messages = boundPrepend(nil, snapshot.Messages, maxMessages)
	for _, message := range uc.messages {
		uc.messageByID[message.ID] = message
	}
	uc.evaluations = boundPrepend(nil, snapshot.Evaluations, maxEvaluations)
	uc.events = boundPrepend(nil, snapshot.Events, maxEvents)

	uc.log.Info().
		Int("actions", len(uc.actions)).
		Int("triggers", len(uc.triggers)).
		Int("messages", len(uc.messages)).
		Msg("automation state hydrated")
	return nil
}

// boundPrepend returns items capped to limit, keeping the head.
func boundPrepend[T any](dst, items []T, limit int) []T {
	dst = append(dst, items...)
	if len(dst) > limit {
		dst = dst[:limit]
	}
	return dst
}

// ActionInput is the payload for AddAction. Zero-valued fields get the same
// defaults the UI applies.
type ActionInput struct {
	Name         string
	Kind         string
	Instructions string
	ScheduleText string
}

// AddAction creates an enabled action with a generated code artifact.
// Actions are never deleted, only toggled.
func (uc *AutomationUsecase) AddAction(ctx context.Context, input ActionInput) *domain.Action {
	now := uc.now()
	action := &domain.Action{
		ID:           uc.newID("action"),
		Name:         defaultString(input.Name, "Untitled Action"),
		Kind:         defaultString(input.Kind, "custom"),
		Instructions: input.Instructions,
		ScheduleText: defaultString(input.ScheduleText, "always"),
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	action.Schedule = domain.ParseSchedule(action.ScheduleText)
	action.GeneratedCode = uc.codegen.ActionCode(ctx, action)

	uc.mu.Lock()
	uc.actions[action.ID] = action
	uc.mu.Unlock()

	uc.persistAction(ctx, action)
	return action
}

// TriggerInput is the payload for AddTrigger.
type TriggerInput struct {
	Name         string
	SourceTab    string
	MatchText    string
	ScheduleText string
	ActionIDs    []string
}

// AddTrigger creates an enabled trigger. Action ids that do not resolve to a
// known action are silently dropped.
func (uc *AutomationUsecase) AddTrigger(ctx context.Context, input TriggerInput) *domain.Trigger {
	now := uc.now()
	trigger := &domain.Trigger{
		ID:           uc.newID("trigger"),
		Name:         defaultString(input.Name, "Untitled Trigger"),
		SourceTab:    defaultString(input.SourceTab, domain.SourceTabAny),
		MatchText:    input.MatchText,
		ScheduleText: defaultString(input.ScheduleText, "always"),
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	trigger.Schedule = domain.ParseSchedule(trigger.ScheduleText)

	uc.mu.Lock()
	for _, actionID := range input.ActionIDs {
		if _, ok := uc.actions[actionID]; ok {
			trigger.ActionIDs = append(trigger.ActionIDs, actionID)
		}
	}
	uc.mu.Unlock()

	trigger.GeneratedCode = uc.codegen.TriggerCode(ctx, trigger)

	uc.mu.Lock()
	uc.triggers[trigger.ID] = trigger
	uc.mu.Unlock()

	uc.persistTrigger(ctx, trigger)
	return trigger
}

// SetActionEnabled toggles an action.
func (uc *AutomationUsecase) SetActionEnabled(ctx context.Context, actionID string, enabled bool) (*domain.Action, error) {
	uc.mu.Lock()
	action, ok := uc.actions[actionID]
	if ok {
		action.Enabled = enabled
		action.UpdatedAt = uc.now()
	}
	uc.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("action not found: %s", actionID)
	}
	uc.persistAction(ctx, action)
	return action, nil
}

// SetTriggerEnabled toggles a trigger.
func (uc *AutomationUsecase) SetTriggerEnabled(ctx context.Context, triggerID string, enabled bool) (*domain.Trigger, error) {
	uc.mu.Lock()
	trigger, ok := uc.triggers[triggerID]
	if ok {
		trigger.Enabled = enabled
		trigger.UpdatedAt = uc.now()
	}
	uc.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("trigger not found: %s", triggerID)
	}
	uc.persistTrigger(ctx, trigger)
	return trigger, nil
}

// ListActions returns all actions, newest first.
func (uc *AutomationUsecase) ListActions() []*domain.Action {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	out := make([]*domain.Action, 0, len(uc.actions))
	for _, action := range uc.actions {
		out = append(out, action)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListTriggers returns all triggers, newest first.
func (uc *AutomationUsecase) ListTriggers() []*domain.Trigger {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	out := make([]*domain.Trigger, 0, len(uc.triggers))
	for _, trigger := range uc.triggers {
		out = append(out, trigger)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// AddMessage stores a captured message without running the pipeline. Most
// callers want RunTriggerPipeline instead.
func (uc *AutomationUsecase) AddMessage(tabID string, payload domain.MessagePayload) *domain.Message {
	uc.mu.Lock()
	message := uc.addMessageLocked(tabID, payload)
	uc.mu.Unlock()
	uc.persistMessage(context.Background(), message)
	return message
}

func (uc *AutomationUsecase) addMessageLocked(tabID string, payload domain.MessagePayload) *domain.Message {
	createdAt := payload.CreatedAt
	if createdAt.IsZero() {
		createdAt = uc.now()
	}
	message := &domain.Message{
		ID:        uc.newID("msg"),
		TabID:     tabID,
		Title:     payload.Title,
		Body:      payload.Body,
		Source:    defaultString(payload.Source, "unknown"),
		CreatedAt: createdAt,
	}
	uc.messages = append([]*domain.Message{message}, uc.messages...)
	if len(uc.messages) > maxMessages {
		for _, evicted := range uc.messages[maxMessages:] {
			delete(uc.messageByID, evicted.ID)
		}
		uc.messages = uc.messages[:maxMessages]
	}
	uc.messageByID[message.ID] = message
	return message
}

// RunTriggerPipeline stores the message and evaluates every trigger against
// it. Evaluation rows are recorded for every trigger, matched or not; events
// are emitted in a deterministic order for a fixed store and clock.
func (uc *AutomationUsecase) RunTriggerPipeline(tabID string, payload domain.MessagePayload) *domain.Message {
	ctx := context.Background()

	uc.mu.Lock()
	message := uc.addMessageLocked(tabID, payload)
	triggers := uc.triggersInOrderLocked()
	uc.mu.Unlock()

	uc.persistMessage(ctx, message)
	uc.recordEvent(ctx, domain.EventMessageReceived, map[string]string{
		"tabId":     tabID,
		"messageId": message.ID,
		"source":    message.Source,
		"title":     message.Title,
	})

	for _, trigger := range triggers {
		matched, reason := evaluateTriggerOnMessage(trigger, message)
		uc.recordEvaluation(ctx, &domain.TriggerEvaluation{
			ID:        uc.newID("eval"),
			TriggerID: trigger.ID,
			MessageID: message.ID,
			Matched:   matched,
			Reason:    reason,
			CreatedAt: uc.now(),
		})
		if !matched {
			continue
		}

		uc.recordEvent(ctx, domain.EventTriggerMatched, map[string]string{
			"triggerId":    trigger.ID,
			"triggerName":  trigger.Name,
			"messageId":    message.ID,
			"messageTitle": message.Title,
		})
		uc.planActions(ctx, trigger, message)
	}
	return message
}

// triggersInOrderLocked returns triggers in their evaluation order: ascending
// creation time, ties broken by id.
func (uc *AutomationUsecase) triggersInOrderLocked() []*domain.Trigger {
	out := make([]*domain.Trigger, 0, len(uc.triggers))
	for _, trigger := range uc.triggers {
		out = append(out, trigger)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// evaluateTriggerOnMessage applies the trigger gates in order: source tab,
// enabled flag, schedule at the message timestamp, then the match expression.
func evaluateTriggerOnMessage(trigger *domain.Trigger, message *domain.Message) (bool, string) {
	if !trigger.MatchesTab(message.TabID) {
		return false, fmt.Sprintf("source tab mismatch (%s != %s)", trigger.SourceTab, message.TabID)
	}
	if !trigger.Enabled {
		return false, "trigger disabled"
	}
	status := trigger.Schedule.StatusAt(message.CreatedAt)
	if status.Active == nil {
		return false, fmt.Sprintf("trigger schedule unknown (%s)", status.Reason)
	}
	if !*status.Active {
		return false, fmt.Sprintf("trigger schedule inactive (%s)", status.Reason)
	}
	result := domain.EvaluateMatch(trigger.MatchText, message.Title, message.Body)
	return result.Matched, result.Reason
}

// planActions walks a matched trigger's actions in link order and emits a
// planned or skipped event per action.
func (uc *AutomationUsecase) planActions(ctx context.Context, trigger *domain.Trigger, message *domain.Message) {
	for _, actionID := range trigger.ActionIDs {
		uc.mu.Lock()
		action, ok := uc.actions[actionID]
		uc.mu.Unlock()

		if !ok {
			uc.recordEvent(ctx, domain.EventActionSkipped, map[string]string{
				"triggerId": trigger.ID,
				"actionId":  actionID,
				"reason":    "action not found",
			})
			continue
		}
		if !action.Enabled {
			uc.recordEvent(ctx, domain.EventActionSkipped, map[string]string{
				"triggerId":  trigger.ID,
				"actionId":   action.ID,
				"actionName": action.Name,
				"reason":     "action disabled",
			})
			continue
		}
		status := action.Schedule.StatusAt(message.CreatedAt)
		if status.Active == nil || !*status.Active {
			reason := fmt.Sprintf("schedule unknown (%s)", status.Reason)
			if status.Active != nil {
				reason = fmt.Sprintf("schedule inactive (%s)", status.Reason)
			}
			uc.recordEvent(ctx, domain.EventActionSkipped, map[string]string{
				"triggerId":  trigger.ID,
				"actionId":   action.ID,
				"actionName": action.Name,
				"reason":     reason,
			})
			continue
		}

		uc.recordEvent(ctx, domain.EventActionPlanned, map[string]string{
			"triggerId":   trigger.ID,
			"triggerName": trigger.Name,
			"actionId":    action.ID,
			"actionName":  action.Name,
			"actionKind":  action.Kind,
			"messageId":   message.ID,
			"reason":      "matched trigger and active schedule",
		})
	}
}

// SimulateMessage feeds a hand-authored message through the full pipeline.
func (uc *AutomationUsecase) SimulateMessage(tabID, title, body string) *domain.Message {
	return uc.RunTriggerPipeline(defaultString(tabID, "unknown"), domain.MessagePayload{
		Title:  defaultString(title, "Simulated message"),
		Body:   body,
		Source: "simulation",
	})
}

// TriggerHistoryEntry is one evaluation joined with its message. Message is
// nil when the message has aged out of the bounded history.
type TriggerHistoryEntry struct {
	EvaluationID string
	Matched      bool
	Reason       string
	EvaluatedAt  time.Time
	Message      *domain.Message
}

// TriggerHistory returns the latest evaluations of one trigger, newest first.
// Unknown triggers yield an empty history.
func (uc *AutomationUsecase) TriggerHistory(triggerID string) []TriggerHistoryEntry {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if _, ok := uc.triggers[triggerID]; !ok {
		return nil
	}
	var out []TriggerHistoryEntry
	for _, evaluation := range uc.evaluations {
		if evaluation.TriggerID != triggerID {
			continue
		}
		out = append(out, TriggerHistoryEntry{
			EvaluationID: evaluation.ID,
			Matched:      evaluation.Matched,
			Reason:       evaluation.Reason,
			EvaluatedAt:  evaluation.CreatedAt,
			Message:      uc.messageByID[evaluation.MessageID],
		})
		if len(out) >= maxTriggerHistory {
			break
		}
	}
	return out
}

// EntityScheduleState is the schedule inspection row for one trigger or
// action. Active mirrors schedule evaluation except that disabled entities
// are reported inactive with reason "disabled".
type EntityScheduleState struct {
	ID           string
	Name         string
	Kind         string
	SourceTab    string
	Enabled      bool
	ScheduleText string
	Active       *bool
	Reason       string
}

// ScheduleInspection is the per-entity schedule state at one instant.
type ScheduleInspection struct {
	At       time.Time
	Triggers []EntityScheduleState
	Actions  []EntityScheduleState
}

// InspectSchedule reports every trigger's and action's schedule state at the
// given instant.
func (uc *AutomationUsecase) InspectSchedule(at time.Time) (*ScheduleInspection, error) {
	if at.IsZero() {
		return nil, fmt.Errorf("invalid timestamp")
	}
	inspection := &ScheduleInspection{At: at}
	for _, trigger := range uc.ListTriggers() {
		state := EntityScheduleState{
			ID:           trigger.ID,
			Name:         trigger.Name,
			SourceTab:    trigger.SourceTab,
			Enabled:      trigger.Enabled,
			ScheduleText: trigger.ScheduleText,
		}
		state.Active, state.Reason = describeEntitySchedule(trigger.Enabled, &trigger.Schedule, at)
		inspection.Triggers = append(inspection.Triggers, state)
	}
	for _, action := range uc.ListActions() {
		state := EntityScheduleState{
			ID:           action.ID,
			Name:         action.Name,
			Kind:         action.Kind,
			Enabled:      action.Enabled,
			ScheduleText: action.ScheduleText,
		}
		state.Active, state.Reason = describeEntitySchedule(action.Enabled, &action.Schedule, at)
		inspection.Actions = append(inspection.Actions, state)
	}
	return inspection, nil
}

func describeEntitySchedule(enabled bool, schedule *domain.Schedule, at time.Time) (*bool, string) {
	if !enabled {
		inactive := false
		return &inactive, "disabled"
	}
	status := schedule.StatusAt(at)
	return status.Active, status.Reason
}

// RecentEvents returns up to limit events, newest first.
func (uc *AutomationUsecase) RecentEvents(limit int) []*domain.AutomationEvent {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return boundCopy(uc.events, limit)
}

// ListMessages returns up to limit messages, newest first.
func (uc *AutomationUsecase) ListMessages(limit int) []*domain.Message {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return boundCopy(uc.messages, limit)
}

func boundCopy[T any](items []T, limit int) []T {
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}
	out := make([]T, limit)
	copy(out, items[:limit])
	return out
}

// recordEvent appends to the bounded event log, mirrors to storage and
// publishes on the bus.
func (uc *AutomationUsecase) recordEvent(ctx context.Context, kind domain.EventKind, fields map[string]string) {
	event := &domain.AutomationEvent{Kind: kind, Fields: fields, CreatedAt: uc.now()}

	uc.mu.Lock()
	uc.events = append([]*domain.AutomationEvent{event}, uc.events...)
	if len(uc.events) > maxEvents {
		uc.events = uc.events[:maxEvents]
	}
	uc.mu.Unlock()

	if err := uc.stateRepo.InsertEvent(ctx, event); err != nil {
		uc.log.Warn().Err(err).Str("kind", string(kind)).Msg("persist event failed")
	}
	if uc.bus != nil {
		uc.bus.Publish(eventbus.Event{Topic: eventbus.TopicAutomationEvent, Time: event.CreatedAt, Data: event})
	}
}

func (uc *AutomationUsecase) recordEvaluation(ctx context.Context, evaluation *domain.TriggerEvaluation) {
	uc.mu.Lock()
	uc.evaluations = append([]*domain.TriggerEvaluation{evaluation}, uc.evaluations...)
	if len(uc.evaluations) > maxEvaluations {
		uc.evaluations = uc.evaluations[:maxEvaluations]
	}
	uc.mu.Unlock()

	if err := uc.stateRepo.InsertEvaluation(ctx, evaluation); err != nil {
		uc.log.Warn().Err(err).Str("trigger", evaluation.TriggerID).Msg("persist evaluation failed")
	}
}

func (uc *AutomationUsecase) persistAction(ctx context.Context, action *domain.Action) {
	if err := uc.stateRepo.UpsertAction(ctx, action); err != nil {
		uc.log.Warn().Err(err).Str("action", action.ID).Msg("persist action failed")
	}
}

func (uc *AutomationUsecase) persistTrigger(ctx context.Context, trigger *domain.Trigger) {
	if err := uc.stateRepo.UpsertTrigger(ctx, trigger); err != nil {
		uc.log.Warn().Err(err).Str("trigger", trigger.ID).Msg("persist trigger failed")
	}
}

func (uc *AutomationUsecase) persistMessage(ctx context.Context, message *domain.Message) {
	if err := uc.stateRepo.InsertMessage(ctx, message); err != nil {
		uc.log.Warn().Err(err).Str("message", message.ID).Msg("persist message failed")
	}
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
