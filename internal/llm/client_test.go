package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/eschatch/internal/infrastructure/resilience"
)

type capturedRequest struct {
	Path    string
	Header  http.Header
	Payload map[string]any
}

type recorder struct {
	mu   sync.Mutex
	seen []capturedRequest
}

func (r *recorder) add(c capturedRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, c)
}

func (r *recorder) requests() []capturedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]capturedRequest(nil), r.seen...)
}

// backend serves one canned reply per call, repeating the last, and records
// every request it receives.
func backend(t *testing.T, replies ...func(w http.ResponseWriter)) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		assert.NoError(t, sonic.Unmarshal(body, &payload))
		rec.add(capturedRequest{Path: r.URL.Path, Header: r.Header.Clone(), Payload: payload})

		i := int(atomic.AddInt32(&calls, 1)) - 1
		if i >= len(replies) {
			i = len(replies) - 1
		}
		replies[i](w)
	}))
	t.Cleanup(server.Close)
	return server, rec
}

func reply(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

const openAIReply = `{"choices":[{"message":{"role":"assistant","content":"ls -la"}}]}`

var testRequest = Request{
	System:   "one command only",
	Messages: []Message{{Role: RoleUser, Content: "list files"}},
}

func TestOpenAIComplete(t *testing.T) {
	server, seen := backend(t, reply(http.StatusOK, openAIReply))

	client, err := NewClient(Config{
		Provider:    ProviderOpenAI,
		Model:       "gpt-4o-mini",
		BaseURL:     server.URL + "/v1/",
		APIKey:      "sk-test",
		Temperature: 0.2,
	})
	require.NoError(t, err)

	text, err := client.Complete(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, "ls -la", text)

	require.Len(t, seen.requests(), 1)
	got := seen.requests()[0]
	assert.Equal(t, "/v1/chat/completions", got.Path)
	assert.Equal(t, "Bearer sk-test", got.Header.Get("Authorization"))
	assert.NotEmpty(t, got.Header.Get("X-Request-ID"))
	assert.Equal(t, "gpt-4o-mini", got.Payload["model"])
	assert.EqualValues(t, defaultMaxTokens, got.Payload["max_tokens"])

	messages, ok := got.Payload["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, map[string]any{"role": "system", "content": "one command only"}, messages[0])
	assert.Equal(t, map[string]any{"role": "user", "content": "list files"}, messages[1])
}

func TestOpenAIWithoutKeySendsNoAuthorization(t *testing.T) {
	server, seen := backend(t, reply(http.StatusOK, openAIReply))

	client, err := NewClient(Config{Model: "llama3", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Empty(t, seen.requests()[0].Header.Get("Authorization"))
}

func TestAnthropicComplete(t *testing.T) {
	server, seen := backend(t, reply(http.StatusOK,
		`{"content":[{"type":"text","text":"git "},{"type":"tool_use"},{"type":"text","text":"status"}]}`))

	client, err := NewClient(Config{
		Provider:  ProviderAnthropic,
		Model:     "claude-3-5-haiku-latest",
		BaseURL:   server.URL,
		APIKey:    "sk-ant",
		MaxTokens: 128,
	})
	require.NoError(t, err)

	text, err := client.Complete(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, "git status", text)

	got := seen.requests()[0]
	assert.Equal(t, "/messages", got.Path)
	assert.Equal(t, "sk-ant", got.Header.Get("x-api-key"))
	assert.Equal(t, anthropicVersion, got.Header.Get("anthropic-version"))
	assert.Equal(t, "one command only", got.Payload["system"])
	assert.EqualValues(t, 128, got.Payload["max_tokens"])

	messages, ok := got.Payload["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 1, "system instruction travels outside the message list")
}

func TestProviderError(t *testing.T) {
	server, _ := backend(t, reply(http.StatusUnauthorized,
		`{"error":{"type":"invalid_request_error","message":"bad key"}}`))

	client, err := NewClient(Config{Model: "m", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), testRequest)
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusUnauthorized, perr.StatusCode)
	assert.Equal(t, "invalid_request_error", perr.Type)
	assert.Equal(t, "bad key", perr.Message)
	assert.False(t, perr.Temporary())
	assert.Contains(t, err.Error(), "HTTP 401")
}

func TestProviderErrorWithPlainBody(t *testing.T) {
	server, _ := backend(t, reply(http.StatusBadGateway, "upstream down"))

	client, err := NewClient(Config{Model: "m", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), testRequest)
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusBadGateway, perr.StatusCode)
	assert.Equal(t, "upstream down", perr.Message)
	assert.True(t, perr.Temporary())
}

func TestEmptyResponses(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		body     string
	}{
		{"no choices", ProviderOpenAI, `{"choices":[]}`},
		{"blank content", ProviderOpenAI, `{"choices":[{"message":{"content":"  \n"}}]}`},
		{"no text blocks", ProviderAnthropic, `{"content":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := backend(t, reply(http.StatusOK, tt.body))
			client, err := NewClient(Config{Provider: tt.provider, Model: "m", BaseURL: server.URL})
			require.NoError(t, err)

			_, err = client.Complete(context.Background(), testRequest)
			assert.ErrorIs(t, err, ErrEmptyResponse)
		})
	}
}

func TestRetriesTransientFailure(t *testing.T) {
	server, seen := backend(t,
		reply(http.StatusServiceUnavailable, `{"error":{"message":"busy"}}`),
		reply(http.StatusOK, openAIReply),
	)

	client, err := NewClient(Config{Model: "m", BaseURL: server.URL, MaxRetries: 1})
	require.NoError(t, err)

	text, err := client.Complete(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, "ls -la", text)
	assert.Len(t, seen.requests(), 2)
}

func TestBreakerOpensAfterRepeatedServerErrors(t *testing.T) {
	server, seen := backend(t, reply(http.StatusInternalServerError, `{"error":{"message":"boom"}}`))

	var transitions []string
	client, err := NewClient(Config{
		Model:   "m",
		BaseURL: server.URL,
		OnBreakerChange: func(from, to resilience.State) {
			transitions = append(transitions, to.String())
		},
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = client.Complete(context.Background(), testRequest)
		var perr *ProviderError
		require.ErrorAs(t, err, &perr)
	}
	assert.Equal(t, resilience.StateOpen, client.BreakerState())
	assert.Equal(t, []string{"open"}, transitions)

	_, err = client.Complete(context.Background(), testRequest)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Len(t, seen.requests(), 3, "open breaker must not reach the backend")
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	server, _ := backend(t, reply(http.StatusBadRequest, `{"error":{"message":"bad prompt"}}`))

	client, err := NewClient(Config{Model: "m", BaseURL: server.URL})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, _ = client.Complete(context.Background(), testRequest)
	}
	assert.Equal(t, resilience.StateClosed, client.BreakerState())
}

func TestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{Model: "m", BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), testRequest)
	assert.Error(t, err)
}

func TestCanceledContext(t *testing.T) {
	server, seen := backend(t, reply(http.StatusOK, openAIReply))
	client, err := NewClient(Config{Model: "m", BaseURL: server.URL, RequestsPerSecond: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Complete(ctx, testRequest)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, seen.requests())
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{Provider: "pigeon", Model: "m"})
	assert.Error(t, err)

	_, err = NewClient(Config{Provider: ProviderOpenAI})
	assert.Error(t, err)

	client, err := NewClient(Config{Provider: "Anthropic", Model: "claude"})
	require.NoError(t, err)
	assert.Equal(t, defaultAnthropicBaseURL, client.cfg.BaseURL)
	assert.Equal(t, "claude", client.Model())
}
