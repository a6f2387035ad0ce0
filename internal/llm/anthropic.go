package llm

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

type anthropicFormat struct{}

type anthropicRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (anthropicFormat) path() string { return "/messages" }

func (anthropicFormat) authorize(r *resty.Request, apiKey string) {
	r.SetHeader("anthropic-version", anthropicVersion)
	if apiKey != "" {
		r.SetHeader("x-api-key", apiKey)
	}
}

func (anthropicFormat) encode(cfg Config, req Request) any {
	return anthropicRequest{
		Model:       cfg.Model,
		System:      req.System,
		Messages:    req.Messages,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
}

// decode concatenates the text blocks of the reply.
func (anthropicFormat) decode(body []byte) (string, error) {
	var resp anthropicResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("llm: decoding anthropic response: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}
