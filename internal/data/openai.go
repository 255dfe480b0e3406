package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"commhub/internal/biz/repo"
)

const (
	defaultCodegenModel   = "gpt-4.1-mini"
	codegenRequestTimeout = 30 * time.Second
)

// codegenRepo implements code generation against an OpenAI-compatible
// endpoint. A custom base URL covers openrouter and self-hosted gateways.
type codegenRepo struct {
	client *openai.Client
	model  string
}

// NewCodegenRepo creates the code generation repository. Returns nil when no
// API key is configured; callers treat a nil repository as "generation off".
func NewCodegenRepo(apiKey, model, baseURL string) repo.CodegenRepo {
	if apiKey == "" {
		return nil
	}
	if model == "" {
		model = defaultCodegenModel
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &codegenRepo{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Generate asks the model for the code artifact. The payload is serialized
// into the prompt; the raw completion text is returned untouched.
func (r *codegenRepo) Generate(ctx context.Context, kind repo.CodegenKind, payload any) (string, error) {
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode codegen payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, codegenRequestTimeout)
	defer cancel()

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Generate only JavaScript code for a %s.\n%s", kind, encoded),
			},
		},
		MaxTokens: 800,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
