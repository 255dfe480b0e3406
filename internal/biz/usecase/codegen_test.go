package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"commhub/internal/biz/domain"
	"commhub/internal/biz/repo"
)

type mockCodegenRepo struct {
	text string
	err  error
	kind repo.CodegenKind
}

func (m *mockCodegenRepo) Generate(ctx context.Context, kind repo.CodegenKind, payload any) (string, error) {
	m.kind = kind
	return m.text, m.err
}

func testAction() *domain.Action {
	return &domain.Action{ID: "action_1", Name: "Notify", Kind: "notification", Instructions: "ping the channel", ScheduleText: "weekdays 09:00"}
}

func testTrigger() *domain.Trigger {
	return &domain.Trigger{ID: "trigger_1", Name: "Urgent", SourceTab: "slack", MatchText: "urgent,asap", ScheduleText: "always"}
}

func TestActionCode_NilProviderUsesTemplate(t *testing.T) {
	gen := NewCodeGenerator(nil, zerolog.Nop())
	code := gen.ActionCode(context.Background(), testAction())
	if !strings.Contains(code, "// Action: Notify") {
		t.Errorf("template must embed the action name:\n%s", code)
	}
	if !strings.Contains(code, "async function runAction(context)") {
		t.Error("template must be a runnable stub")
	}
	if strings.Contains(code, "fallback template") {
		t.Error("nil provider must not add the unavailability trailer")
	}
}

func TestActionCode_ProviderOutputUsedVerbatim(t *testing.T) {
	provider := &mockCodegenRepo{text: "function custom() {}"}
	gen := NewCodeGenerator(provider, zerolog.Nop())
	code := gen.ActionCode(context.Background(), testAction())
	if code != "function custom() {}" {
		t.Errorf("unexpected code %q", code)
	}
	if provider.kind != repo.CodegenAction {
		t.Errorf("unexpected kind %q", provider.kind)
	}
}

func TestActionCode_ProviderFailureFallsBack(t *testing.T) {
	gen := NewCodeGenerator(&mockCodegenRepo{err: errors.New("provider down")}, zerolog.Nop())
	code := gen.ActionCode(context.Background(), testAction())
	if !strings.Contains(code, "// Action: Notify") {
		t.Error("failure must fall back to the template")
	}
	if !strings.Contains(code, "LLM generation unavailable") {
		t.Error("failure must append the unavailability trailer")
	}
}

func TestActionCode_EmptyProviderOutputFallsBack(t *testing.T) {
	gen := NewCodeGenerator(&mockCodegenRepo{text: "   \n"}, zerolog.Nop())
	code := gen.ActionCode(context.Background(), testAction())
	if !strings.Contains(code, "LLM generation unavailable") {
		t.Error("blank output must fall back with the trailer")
	}
}

func TestTriggerCode_TemplateEmbedsMatchExpression(t *testing.T) {
	gen := NewCodeGenerator(nil, zerolog.Nop())
	code := gen.TriggerCode(context.Background(), testTrigger())
	if !strings.Contains(code, "// Trigger: Urgent") || !strings.Contains(code, "// Source tab: slack") {
		t.Errorf("template must embed trigger metadata:\n%s", code)
	}
	if !strings.Contains(code, `"urgent,asap"`) {
		t.Error("match expression must appear as a literal")
	}
	if !strings.Contains(code, "function matchesMessage(message)") {
		t.Error("template must be a runnable stub")
	}
}

func TestTriggerCode_ProviderKind(t *testing.T) {
	provider := &mockCodegenRepo{text: "function t() {}"}
	gen := NewCodeGenerator(provider, zerolog.Nop())
	gen.TriggerCode(context.Background(), testTrigger())
	if provider.kind != repo.CodegenTrigger {
		t.Errorf("unexpected kind %q", provider.kind)
	}
}
