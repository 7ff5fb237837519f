package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/config"
)

// systemPrompt frames the assistant as a senior developer whose replies may
// carry a structured workspace payload.
const systemPrompt = `You are an expert full-stack developer with 10 years of experience. You always write modular code, break code into files where possible, and follow best practices. You use understandable comments, create files as needed, and keep previously working code intact. You never miss edge cases and always write scalable, maintainable code with errors and exceptions handled.

When your answer creates or changes project files, reply with a single JSON object of the shape {"text": "<explanation>", "fileTree": {"<name>": {"file": {"contents": "..."}}, "<dir>": {"directory": {...}}}} and optionally "buildCommand" and "startCommand". For purely conversational answers reply with plain text.`

// Fixed user-facing fallbacks; callers never see a raw provider error.
const (
	FallbackQuota    = "AI Error: You have exceeded your free quota for the day. Please try again later or check your API plan."
	FallbackProvider = "AI Error: There was a problem with the AI service. Please try again later."
	FallbackGeneric  = "AI Error: Service unavailable. Please try again later."
)

// Service invokes the external model collaborator.
type Service struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles the prompt/model chain for the configured provider.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile chat chain: %w", err)
	}

	return &Service{chain: runnable}, nil
}

// GenerateResult sends the prompt to the model and returns the raw reply
// text, which may itself be a serialized workspace payload.
func (s *Service) GenerateResult(ctx context.Context, userPrompt string) (string, error) {
	response, err := s.chain.Invoke(ctx, map[string]any{
		"system": systemPrompt,
		"query":  userPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("run AI chain: %w", err)
	}

	log.Printf("[ai] generated reply, length=%d", len(response.Content))
	return response.Content, nil
}

// FallbackMessage maps a provider failure onto one of the fixed user-facing
// strings. The room always receives some assistant message, never silence.
func FallbackMessage(err error) string {
	if err == nil {
		return FallbackGeneric
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "quota"):
		return FallbackQuota
	case strings.Contains(strings.ToLower(msg), "provider") || strings.Contains(strings.ToLower(msg), "model"):
		return FallbackProvider
	default:
		return FallbackGeneric
	}
}
