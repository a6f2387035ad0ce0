package escape

// Mode is the relay mode of the session
type Mode int

const (
	PassThrough Mode = iota
	AwaitingQuery
)

// String returns the string representation of the mode
func (m Mode) String() string {
	switch m {
	case PassThrough:
		return "pass-through"
	case AwaitingQuery:
		return "awaiting-query"
	default:
		return "unknown"
	}
}

// Role tags a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the chat conversation
type Turn struct {
	Role Role
	Text string
}

// State is the escape-mode state of one session.
// Query is non-empty only while Mode is AwaitingQuery.
type State struct {
	Mode     Mode
	ChatMode bool
	Query    []byte
	History  []Turn
}

// WithChat returns s with chat mode set to enabled
func (s State) WithChat(enabled bool) State {
	s.ChatMode = enabled
	return s
}

// WithoutHistory returns s with an empty conversation
func (s State) WithoutHistory() State {
	s.History = nil
	return s
}

// WithTurns returns s with turns appended to a fresh copy of the history
func (s State) WithTurns(turns ...Turn) State {
	if len(turns) == 0 {
		return s
	}
	history := make([]Turn, 0, len(s.History)+len(turns))
	history = append(history, s.History...)
	s.History = append(history, turns...)
	return s
}

// RecentTurns returns a copy of the last n turns
func (s State) RecentTurns(n int) []Turn {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	start := len(s.History) - n
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(s.History)-start)
	copy(out, s.History[start:])
	return out
}
