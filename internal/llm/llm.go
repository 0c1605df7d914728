package llm

import (
	"context"

	"ai-health-navigator/internal/shared"
)

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// TextGenerator is an interface for generating text from a single-turn prompt.
//
// Implementations resolve the provider's response shape at the boundary: a
// successful call always carries non-empty Content, a non-success status is
// reported as *RemoteServiceError, and a reply without candidates as
// *NoCandidatesError.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}

// Client is a TextGenerator that owns a connection which must be closed.
type Client interface {
	TextGenerator
	Closer
}
