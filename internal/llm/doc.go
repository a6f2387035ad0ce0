/*
Package llm is the client for the text-generation backend.

Two wire formats are supported: the OpenAI-compatible chat completions API
(which also covers local servers such as Ollama or llama.cpp) and the
Anthropic Messages API. Both are reached through the same Client, which
layers, from the outside in:

  - a circuit breaker, so a dead backend fails fast instead of stalling the
    terminal on every request
  - a token-bucket rate limiter
  - resty for request building, with sonic as the JSON codec
  - a retryablehttp transport for backoff on 429 and 5xx responses

Usage:

	client, err := llm.NewClient(llm.Config{
		Provider: llm.ProviderOpenAI,
		Model:    "gpt-4o-mini",
		APIKey:   os.Getenv("OPENAI_API_KEY"),
	})
	text, err := client.Complete(ctx, llm.Request{
		System:   "Reply with one shell command.",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "list files"}},
	})

Only complete, non-streaming responses are requested.
*/
package llm
