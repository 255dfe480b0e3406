package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"commhub/internal/biz/domain"
	"commhub/internal/biz/repo"
)

// CodeGenerator produces the stored code artifact for actions and triggers.
// Provider output is used verbatim; a nil provider skips generation, and any
// provider failure or empty result collapses to the deterministic fallback
// template with an explanatory trailer.
type CodeGenerator struct {
	provider repo.CodegenRepo
	log      zerolog.Logger
}

// NewCodeGenerator wires a generator. provider may be nil.
func NewCodeGenerator(provider repo.CodegenRepo, log zerolog.Logger) *CodeGenerator {
	return &CodeGenerator{provider: provider, log: log.With().Str("component", "codegen").Logger()}
}

const fallbackTrailer = "\n\n// LLM generation unavailable; using fallback template.\n"

type actionCodegenPayload struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Instructions string `json:"instructions"`
	ScheduleText string `json:"scheduleText"`
}

type triggerCodegenPayload struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	SourceTab    string   `json:"sourceTab"`
	MatchText    string   `json:"matchText"`
	ScheduleText string   `json:"scheduleText"`
	ActionIDs    []string `json:"actionIds"`
}

// ActionCode returns the code artifact for a new action.
func (g *CodeGenerator) ActionCode(ctx context.Context, action *domain.Action) string {
	fallback := actionTemplate(action)
	if g == nil || g.provider == nil {
		return fallback
	}
	payload := actionCodegenPayload{
		ID:           action.ID,
		Name:         action.Name,
		Kind:         action.Kind,
		Instructions: action.Instructions,
		ScheduleText: action.ScheduleText,
	}
	text, err := g.provider.Generate(ctx, repo.CodegenAction, payload)
	if err != nil {
		g.log.Warn().Err(err).Str("action", action.ID).Msg("action code generation failed")
	}
	if text = strings.TrimSpace(text); text == "" {
		return fallback + fallbackTrailer
	}
	return text
}

// TriggerCode returns the code artifact for a new trigger.
func (g *CodeGenerator) TriggerCode(ctx context.Context, trigger *domain.Trigger) string {
	fallback := triggerTemplate(trigger)
	if g == nil || g.provider == nil {
		return fallback
	}
	payload := triggerCodegenPayload{
		ID:           trigger.ID,
		Name:         trigger.Name,
		SourceTab:    trigger.SourceTab,
		MatchText:    trigger.MatchText,
		ScheduleText: trigger.ScheduleText,
		ActionIDs:    trigger.ActionIDs,
	}
	text, err := g.provider.Generate(ctx, repo.CodegenTrigger, payload)
	if err != nil {
		g.log.Warn().Err(err).Str("trigger", trigger.ID).Msg("trigger code generation failed")
	}
	if text = strings.TrimSpace(text); text == "" {
		return fallback + fallbackTrailer
	}
	return text
}

func orAlways(scheduleText string) string {
	if strings.TrimSpace(scheduleText) == "" {
		return "always"
	}
	return scheduleText
}

// actionTemplate is the deterministic runnable stub stored when no provider
// output is available. The artifact is JavaScript for the runtime worker.
func actionTemplate(action *domain.Action) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// Action: %s\n", action.Name)
	fmt.Fprintf(&b, "// Kind: %s\n", action.Kind)
	fmt.Fprintf(&b, "// Plain-text instructions: %s\n", action.Instructions)
	fmt.Fprintf(&b, "// Schedule text: %s\n", orAlways(action.ScheduleText))
	b.WriteString("\n")
	b.WriteString("async function runAction(context) {\n")
	b.WriteString("  // context includes message payload and trigger metadata\n")
	b.WriteString("  const { message, trigger } = context;\n")
	b.WriteString("  const prompt = [\n")
	fmt.Fprintf(&b, "    \"Action kind: \" + %s,\n", jsString(action.Kind))
	fmt.Fprintf(&b, "    \"Instructions: \" + %s,\n", jsString(action.Instructions))
	b.WriteString("    \"Message title: \" + (message.title || \"\"),\n")
	b.WriteString("    \"Message body: \" + (message.body || \"\")\n")
	b.WriteString("  ].join(\"\\n\");\n")
	b.WriteString("\n")
	b.WriteString("  // Replace this with real API calls in your runtime worker.\n")
	b.WriteString("  return {\n")
	b.WriteString("    status: 'planned',\n")
	fmt.Fprintf(&b, "    summary: `Will execute %s for trigger ${trigger.name}`\n", action.Kind)
	b.WriteString("  };\n")
	b.WriteString("}\n")
	b.WriteString("\n")
	b.WriteString("module.exports = { runAction };")
	return b.String()
}

func triggerTemplate(trigger *domain.Trigger) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// Trigger: %s\n", trigger.Name)
	fmt.Fprintf(&b, "// Source tab: %s\n", trigger.SourceTab)
	fmt.Fprintf(&b, "// Match expression (plain text): %s\n", trigger.MatchText)
	fmt.Fprintf(&b, "// Schedule text: %s\n", orAlways(trigger.ScheduleText))
	b.WriteString("\n")
	b.WriteString("function matchesMessage(message) {\n")
	fmt.Fprintf(&b, "  const matchExpression = %s;\n", jsString(trigger.MatchText))
	b.WriteString("  const haystack = `${message.title || ''}\\n${message.body || ''}`.toLowerCase();\n")
	b.WriteString("  if (!matchExpression.trim()) return true;\n")
	b.WriteString("  if (matchExpression.startsWith('regex:')) {\n")
	b.WriteString("    const regex = new RegExp(matchExpression.replace(/^regex:\\s*/i, ''), 'i');\n")
	b.WriteString("    return regex.test(haystack);\n")
	b.WriteString("  }\n")
	b.WriteString("  return matchExpression\n")
	b.WriteString("    .split(/[\\n,]/)\n")
	b.WriteString("    .map((x) => x.trim().toLowerCase())\n")
	b.WriteString("    .filter(Boolean)\n")
	b.WriteString("    .some((term) => haystack.includes(term));\n")
	b.WriteString("}\n")
	b.WriteString("\n")
	b.WriteString("module.exports = { matchesMessage };")
	return b.String()
}

// jsString renders a Go string as a JS string literal. Go's %q escaping is a
// compatible subset of JSON string syntax.
func jsString(s string) string {
	return fmt.Sprintf("%q", s)
}
