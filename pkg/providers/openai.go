package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chime-bot/chime/pkg/config"
	"github.com/chime-bot/chime/pkg/convo"
)

const (
	defaultMaxTokens   = 2048
	defaultTemperature = 0.7
	requestTimeout     = 120 * time.Second
)

// OpenAICompatible talks to any OpenAI-compatible chat-completions endpoint.
type OpenAICompatible struct {
	client *openai.Client
	model  string
}

func NewOpenAICompatible(cfg config.ProviderConfig) (*OpenAICompatible, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("provider API key is required (set provider.api_key or CHIME_PROVIDER_API_KEY)")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/"); base != "" {
		clientCfg.BaseURL = base
	}

	httpClient := &http.Client{Timeout: requestTimeout}
	if proxy := strings.TrimSpace(cfg.Proxy); proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse provider proxy: %w", err)
		}
		httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}
	clientCfg.HTTPClient = httpClient

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAICompatible{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

func (p *OpenAICompatible) Name() string {
	return "openai-compatible"
}

func (p *OpenAICompatible) Generate(ctx context.Context, systemPrompt string, history []convo.Turn, userMessage string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    BuildMessages(systemPrompt, history, userMessage),
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from API")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// BuildMessages assembles the request: system prompt first, then the prior
// turns in order, then the message being answered.
func BuildMessages(systemPrompt string, history []convo.Turn, userMessage string) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, turn := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userMessage,
	})
	return messages
}
