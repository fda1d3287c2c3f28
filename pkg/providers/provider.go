package providers

import (
	"context"
	"fmt"

	"github.com/chime-bot/chime/pkg/config"
	"github.com/chime-bot/chime/pkg/convo"
)

// LLMProvider generates a reply from a personality prompt, prior
// conversation turns, and the message being answered.
type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, history []convo.Turn, userMessage string) (string, error)
	Name() string
}

// CreateProvider builds the configured provider. Only the OpenAI-compatible
// chat-completions surface exists today; NanoGPT, Ollama, LM Studio and the
// like are reached by pointing api_base at them.
func CreateProvider(cfg *config.Config) (LLMProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	return NewOpenAICompatible(cfg.Provider)
}
