package llm

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

type openAIFormat struct{}

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (openAIFormat) path() string { return "/chat/completions" }

func (openAIFormat) authorize(r *resty.Request, apiKey string) {
	// Local OpenAI-compatible servers run without a key.
	if apiKey != "" {
		r.SetAuthToken(apiKey)
	}
}

// encode puts the system instruction first in the message list.
func (openAIFormat) encode(cfg Config, req Request) any {
	messages := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, req.Messages...)

	return openAIRequest{
		Model:       cfg.Model,
		Messages:    messages,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
}

func (openAIFormat) decode(body []byte) (string, error) {
	var resp openAIResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("llm: decoding openai response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
