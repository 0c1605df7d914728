package llm

import (
	"context"
	"errors"

	"ai-health-navigator/internal/config"
	"ai-health-navigator/internal/shared"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const groqProvider = "groq"

// groqClient talks to Groq through its OpenAI-compatible chat endpoint.
type groqClient struct {
	client      openai.Client
	model       string
	temperature float64
}

// NewGroqClient creates a new Groq API client. Retries are disabled: a failed
// call is reported to the user instead of being replayed.
func NewGroqClient(cfg *config.Config, temperature float64) Client {
	client := openai.NewClient(
		option.WithAPIKey(cfg.GroqAPIKey),
		option.WithBaseURL(cfg.GroqBaseURL),
		option.WithMaxRetries(0),
	)
	return &groqClient{
		client:      client,
		model:       cfg.GroqModel,
		temperature: temperature,
	}
}

// GenerateContent sends a prompt to the Groq model and returns the generated text.
func (c *groqClient) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return ContentResponse{}, &RemoteServiceError{Provider: groqProvider, Status: apiErr.StatusCode, Message: apiErr.Message}
		}
		return ContentResponse{}, &RemoteServiceError{Provider: groqProvider, Message: err.Error()}
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return ContentResponse{}, &NoCandidatesError{Provider: groqProvider}
	}

	return ContentResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: shared.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
			Model:            c.model,
		},
	}, nil
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (c *groqClient) Close() error {
	return nil
}
