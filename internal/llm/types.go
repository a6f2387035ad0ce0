package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when the backend answers without any text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-neutral completion request.
type Request struct {
	System   string
	Messages []Message
}

// Completer produces the text reply for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ProviderError is returned when the backend responds with a non-2xx status.
type ProviderError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Type != "" {
		return fmt.Sprintf("llm: HTTP %d: %s: %s", e.StatusCode, e.Type, msg)
	}
	return fmt.Sprintf("llm: HTTP %d: %s", e.StatusCode, msg)
}

// Temporary reports whether retrying later may succeed.
func (e *ProviderError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// errorEnvelope matches the error body of both providers:
// {"error": {"type": "...", "message": "..."}}.
type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
