package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ai-health-navigator/internal/config"
	"ai-health-navigator/internal/shared"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const geminiProvider = "gemini"

// geminiClient is a client for the Google Gemini API.
type geminiClient struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
}

// NewGeminiClient creates a new Gemini API client.
func NewGeminiClient(ctx context.Context, cfg *config.Config) (Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	model := client.GenerativeModel(cfg.GeminiModel)
	model.SetTemperature(0.4)
	return &geminiClient{client: client, model: model, modelName: cfg.GeminiModel}, nil
}

// GenerateContent sends a prompt to the Gemini model and returns the generated text.
func (c *geminiClient) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	return geminiResult(c.modelName, resp, err)
}

// Close closes the underlying Gemini client.
func (c *geminiClient) Close() error {
	return c.client.Close()
}

// geminiResult converts a raw Gemini reply into a ContentResponse or one of
// the typed provider errors.
func geminiResult(model string, resp *genai.GenerateContentResponse, err error) (ContentResponse, error) {
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return ContentResponse{}, &RemoteServiceError{Provider: geminiProvider, Status: apiErr.Code, Message: apiErr.Message}
		}
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return ContentResponse{}, &NoCandidatesError{Provider: geminiProvider, Reason: blocked.Error()}
		}
		return ContentResponse{}, &RemoteServiceError{Provider: geminiProvider, Message: err.Error()}
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return ContentResponse{}, &NoCandidatesError{Provider: geminiProvider}
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return ContentResponse{}, &NoCandidatesError{Provider: geminiProvider, Reason: "candidate has no parts"}
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return ContentResponse{}, &NoCandidatesError{Provider: geminiProvider, Reason: "generated content is not text"}
	}

	usage := shared.TokenUsage{Model: model}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return ContentResponse{Content: sb.String(), Usage: usage}, nil
}
