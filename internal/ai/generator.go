// Package ai runs the assistant round trip: prompt the configured model,
// turn its answer into project files and post the result to the chat.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ollama/ollama/api"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"project-hub/internal/config"
)

// ErrNotConfigured is returned by generators that lack credentials.
var ErrNotConfigured = errors.New("ai service is not configured")

// Generator turns a prompt into text. Each call is independent; no
// conversation state is carried between calls.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// NewGenerator builds the generator for cfg.Provider. A missing API key for
// a hosted provider yields a generator that always fails with
// ErrNotConfigured, so callers still answer with a fallback message.
func NewGenerator(cfg config.AIConfig) (Generator, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider != "ollama" && cfg.APIKey == "" {
		return unconfigured{provider: provider}, nil
	}

	switch provider {
	case "gemini", "":
		return &geminiGenerator{apiKey: cfg.APIKey, model: orDefault(cfg.Model, "gemini-2.5-pro")}, nil
	case "openai":
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
		return &openAIGenerator{client: openai.NewClientWithConfig(clientConfig), model: orDefault(cfg.Model, openai.GPT4o)}, nil
	case "anthropic":
		opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		return &anthropicGenerator{client: anthropic.NewClient(opts...), model: orDefault(cfg.Model, "claude-sonnet-4-20250514")}, nil
	case "ollama":
		u, err := url.Parse(orDefault(cfg.BaseURL, "http://localhost:11434"))
		if err != nil {
			return nil, fmt.Errorf("invalid Ollama base URL: %w", err)
		}
		return &ollamaGenerator{client: api.NewClient(u, http.DefaultClient), model: orDefault(cfg.Model, "llama3")}, nil
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

type unconfigured struct {
	provider string
}

func (u unconfigured) Generate(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}

func (u unconfigured) Name() string { return u.provider + " (unconfigured)" }

type geminiGenerator struct {
	apiKey string
	model  string
}

func (g *geminiGenerator) Name() string { return "gemini" }

func (g *geminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("gemini client: %w", err)
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	return resp.Text(), nil
}

type openAIGenerator struct {
	client *openai.Client
	model  string
}

func (g *openAIGenerator) Name() string { return "openai" }

func (g *openAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

type anthropicGenerator struct {
	client anthropic.Client
	model  string
}

func (g *anthropicGenerator) Name() string { return "anthropic" }

func (g *anthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: 8192,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

type ollamaGenerator struct {
	client *api.Client
	model  string
}

func (g *ollamaGenerator) Name() string { return "ollama" }

func (g *ollamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	var b strings.Builder
	err := g.client.Chat(ctx, &api.ChatRequest{
		Model:    g.model,
		Messages: []api.Message{{Role: "user", Content: prompt}},
		Stream:   &stream,
	}, func(resp api.ChatResponse) error {
		b.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	return b.String(), nil
}
