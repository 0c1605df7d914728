package llm

import "fmt"

// RemoteServiceError is returned when the model provider answers with a
// non-success status or cannot be reached at all (Status == 0).
type RemoteServiceError struct {
	Provider string
	Status   int
	Message  string
}

func (e *RemoteServiceError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s request failed: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s api error: status=%d message=%s", e.Provider, e.Status, e.Message)
}

// NoCandidatesError is returned when the provider replied successfully but
// produced no usable text.
type NoCandidatesError struct {
	Provider string
	Reason   string
}

func (e *NoCandidatesError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s returned no content", e.Provider)
	}
	return fmt.Sprintf("%s returned no content: %s", e.Provider, e.Reason)
}
