package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/eschatch/internal/infrastructure/resilience"
)

const (
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
	defaultMaxTokens        = 512
	userAgent               = "eschatch/1.0"
)

// Config configures a Client.
type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
	// Timeout bounds one request including retries. Zero means none.
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
	// OnBreakerChange observes circuit breaker transitions.
	OnBreakerChange func(from, to resilience.State)
}

// wireFormat adapts a provider's request and response bodies.
type wireFormat interface {
	path() string
	authorize(r *resty.Request, apiKey string)
	encode(cfg Config, req Request) any
	decode(body []byte) (string, error)
}

// Client talks to one backend.
type Client struct {
	cfg     Config
	format  wireFormat
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
}

var _ Completer = (*Client)(nil)

// NewClient validates cfg and builds the transport stack.
func NewClient(cfg Config) (*Client, error) {
	var format wireFormat
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		format = openAIFormat{}
		if cfg.BaseURL == "" {
			cfg.BaseURL = defaultOpenAIBaseURL
		}
	case ProviderAnthropic:
		format = anthropicFormat{}
		if cfg.BaseURL == "" {
			cfg.BaseURL = defaultAnthropicBaseURL
		}
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
	if cfg.Model == "" {
		return nil, errors.New("llm: model must be set")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil // the terminal belongs to the child process
	// Hand the final response back so the status code reaches ProviderError.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	restyClient := resty.New().
		SetTransport(&retryablehttp.RoundTripper{Client: retryClient}).
		SetBaseURL(cfg.BaseURL).
		SetHeader("User-Agent", userAgent).
		SetHeader("Content-Type", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	if cfg.Timeout > 0 {
		restyClient.SetTimeout(cfg.Timeout)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	onChange := cfg.OnBreakerChange
	breaker := resilience.New("llm", resilience.Settings{
		Probes:   1,
		Window:   time.Minute,
		Cooldown: 30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		// Rejected credentials or prompts say nothing about backend health.
		IsFailure: func(err error) bool {
			var perr *ProviderError
			if errors.As(err, &perr) {
				return perr.Temporary()
			}
			return err != nil && !errors.Is(err, context.Canceled)
		},
		OnStateChange: func(_ string, from, to resilience.State) {
			if onChange != nil {
				onChange(from, to)
			}
		},
	})

	return &Client{
		cfg:     cfg,
		format:  format,
		resty:   restyClient,
		limiter: limiter,
		breaker: breaker,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// BreakerState exposes the circuit breaker position.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// Complete sends req and returns the reply text.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm: rate limit: %w", err)
	}

	text, err := resilience.Do(c.breaker, func() (string, error) {
		return c.send(ctx, req)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return "", fmt.Errorf("llm: backend unavailable: %w", err)
	}
	return text, err
}

func (c *Client) send(ctx context.Context, req Request) (string, error) {
	r := c.resty.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString()).
		SetBody(c.format.encode(c.cfg, req))
	c.format.authorize(r, c.cfg.APIKey)

	resp, err := r.Post(c.format.path())
	if err != nil {
		return "", fmt.Errorf("llm: sending request: %w", err)
	}
	if resp.IsError() {
		return "", providerError(resp.StatusCode(), resp.Body())
	}

	text, err := c.format.decode(resp.Body())
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func providerError(status int, body []byte) *ProviderError {
	perr := &ProviderError{StatusCode: status}
	var envelope errorEnvelope
	if err := sonic.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		perr.Type = envelope.Error.Type
		perr.Message = envelope.Error.Message
		return perr
	}
	perr.Message = strings.TrimSpace(string(body))
	if len(perr.Message) > 200 {
		perr.Message = perr.Message[:200]
	}
	return perr
}
