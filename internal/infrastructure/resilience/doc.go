/*
Package resilience guards calls to the generation backend with a circuit
breaker.

A session is interactive: when the backend is down every escape-key request
would otherwise stall the terminal for the full retry budget. The breaker
trips after a run of consecutive failures and rejects further requests
immediately until the cool-down elapses, after which a limited number of
probe requests decide whether it closes again.

	Closed --[failures]-> Open --[cool-down]-> Half-Open --[successes]-> Closed
	                                              |
	                                          [failure]
	                                              v
	                                             Open

# Usage

	breaker := resilience.New("llm", resilience.Settings{
		Cooldown: 30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	})

	text, err := resilience.Do(breaker, func() (string, error) {
		return client.call(ctx, req)
	})
*/
package resilience
