package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mlundquist/saga-engine/pkg/chat"
)

// LLMService is the contract every provider integration satisfies: turn a
// message array into raw text plus token accounting. Everything downstream
// of this interface is provider-agnostic.
type LLMService interface {
	// Name identifies the provider for logging and ledger attribution.
	Name() string

	// Chat generates a completion for the given messages.
	Chat(ctx context.Context, messages []chat.Message) (*chat.Completion, error)
}

// Route names a provider and model for one pipeline role.
type Route struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string // used by self-hosted providers
}

// Resolve constructs the provider integration for a route. Dispatch happens
// once here, at configuration-resolution time.
func Resolve(route Route, logger *slog.Logger) (LLMService, error) {
	switch strings.ToLower(route.Provider) {
	case "anthropic":
		if route.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key")
		}
		return NewAnthropicService(route.APIKey, route.Model, logger), nil
	case "openai":
		if route.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return NewOpenAIService(route.APIKey, route.Model, logger), nil
	case "ollama":
		if route.BaseURL == "" {
			return nil, fmt.Errorf("ollama provider requires a base URL")
		}
		return NewOllamaService(route.BaseURL, route.Model, logger), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", route.Provider)
	}
}

// splitMessages extracts and joins all system messages into a single system
// prompt and returns the remaining conversation messages. Anthropic takes
// the system prompt out of band; the other providers tolerate it either way.
func splitMessages(messages []chat.Message) (string, []chat.Message) {
	var systemParts []string
	var conversation []chat.Message

	for _, msg := range messages {
		if msg.Role == chat.RoleSystem {
			systemParts = append(systemParts, msg.Content)
		} else {
			conversation = append(conversation, msg)
		}
	}

	return strings.Join(systemParts, "\n\n"), conversation
}
