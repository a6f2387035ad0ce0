package escape

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// EventKind identifies the source of an event
type EventKind int

const (
	// EventInput is a chunk read from the controlling terminal
	EventInput EventKind = iota
	// EventOutput is a chunk read from the pty master
	EventOutput
)

// Event is one chunk of bytes from either source
type Event struct {
	Kind EventKind
	Data []byte
}

// Input wraps a controlling-terminal chunk
func Input(p []byte) Event {
	return Event{Kind: EventInput, Data: p}
}

// Output wraps a pty chunk
func Output(p []byte) Event {
	return Event{Kind: EventOutput, Data: p}
}

// EffectKind enumerates the side effects the relay performs
type EffectKind int

const (
	// ForwardToPty writes Data into the child's input
	ForwardToPty EffectKind = iota
	// RecordInput appends Data to the input transcript
	RecordInput
	// RecordOutput appends Data to the output transcript
	RecordOutput
	// WriteDisplay writes Data to the real terminal
	WriteDisplay
	// InvokeGeneration runs the generation pipeline for Query. The relay
	// restores the cursor and writes the resulting bytes into the pty.
	InvokeGeneration
)

// String returns the string representation of the effect kind
func (k EffectKind) String() string {
	switch k {
	case ForwardToPty:
		return "forward-to-pty"
	case RecordInput:
		return "record-input"
	case RecordOutput:
		return "record-output"
	case WriteDisplay:
		return "write-display"
	case InvokeGeneration:
		return "invoke-generation"
	default:
		return "unknown"
	}
}

// Effect is one side effect produced by a transition
type Effect struct {
	Kind EffectKind
	Data []byte
	// Activation marks the WriteDisplay that opens the task prompt
	Activation bool
	Query      string
	ChatMode   bool
}

// Control bytes handled while composing a query
const (
	keyInterrupt = 0x03
	keyBackspace = 0x08
	keyDelete    = 0x7f
)

// Machine holds the static configuration of the state machine
type Machine struct {
	escapeKey []byte
}

// NewMachine creates a machine triggered by escapeKey
func NewMachine(escapeKey []byte) *Machine {
	return &Machine{escapeKey: append([]byte(nil), escapeKey...)}
}

// EscapeKey returns the trigger sequence
func (m *Machine) EscapeKey() []byte {
	return append([]byte(nil), m.escapeKey...)
}

// Step applies ev to s. The input state is not modified.
func (m *Machine) Step(s State, ev Event) (State, []Effect) {
	if len(ev.Data) == 0 {
		return s, nil
	}

	switch ev.Kind {
	case EventOutput:
		return s, []Effect{
			{Kind: RecordOutput, Data: ev.Data},
			{Kind: WriteDisplay, Data: ev.Data},
		}
	case EventInput:
		var effects []Effect
		p := ev.Data
		for len(p) > 0 {
			switch s.Mode {
			case PassThrough:
				s, p = m.passThrough(s, p, &effects)
			case AwaitingQuery:
				s, p = m.compose(s, p, &effects)
			default:
				return s, effects
			}
		}
		return s, effects
	default:
		return s, nil
	}
}

// passThrough forwards operator bytes up to the escape key and switches to
// AwaitingQuery when the key is found. It returns the unconsumed bytes.
func (m *Machine) passThrough(s State, p []byte, effects *[]Effect) (State, []byte) {
	i := m.indexEscape(p)
	if i < 0 {
		*effects = append(*effects,
			Effect{Kind: RecordInput, Data: p},
			Effect{Kind: ForwardToPty, Data: p},
		)
		return s, nil
	}

	if i > 0 {
		*effects = append(*effects,
			Effect{Kind: RecordInput, Data: p[:i]},
			Effect{Kind: ForwardToPty, Data: p[:i]},
		)
	}

	s.Mode = AwaitingQuery
	s.Query = nil
	*effects = append(*effects, Effect{Kind: WriteDisplay, Data: Prompt(s.ChatMode), Activation: true})

	return s, p[i+len(m.escapeKey):]
}

// compose accumulates query bytes until a line terminator, a cancel key, or
// the end of p. It returns the unconsumed bytes.
func (m *Machine) compose(s State, p []byte, effects *[]Effect) (State, []byte) {
	query := append([]byte(nil), s.Query...)
	var echo []byte

	flush := func() {
		if len(echo) > 0 {
			*effects = append(*effects, Effect{Kind: WriteDisplay, Data: echo})
			echo = nil
		}
	}

	for i := 0; i < len(p); i++ {
		if m.hasEscapeAt(p, i) {
			flush()
			return m.cancel(s, effects), p[i+len(m.escapeKey):]
		}

		b := p[i]
		switch b {
		case '\r', '\n':
			flush()
			rest := p[i+1:]
			// CRLF counts as one terminator
			if b == '\r' && len(rest) > 0 && rest[0] == '\n' {
				rest = rest[1:]
			}
			s.Query = query
			return m.submit(s, effects), rest
		case keyInterrupt:
			flush()
			return m.cancel(s, effects), p[i+1:]
		case keyBackspace, keyDelete:
			if len(query) > 0 {
				_, size := utf8.DecodeLastRune(query)
				query = query[:len(query)-size]
				echo = append(echo, EraseChar...)
			}
		default:
			query = append(query, b)
			if b >= 0x20 || b == '\t' {
				echo = append(echo, b)
			}
		}
	}

	flush()
	s.Query = query
	return s, nil
}

// submit ends query composition
func (m *Machine) submit(s State, effects *[]Effect) State {
	text := strings.TrimSpace(string(s.Query))
	s.Query = nil
	s.Mode = PassThrough

	if s.ChatMode && text == "" {
		s.ChatMode = false
		*effects = append(*effects, Effect{Kind: WriteDisplay, Data: ChatExitBanner()})
		return s
	}

	*effects = append(*effects,
		Effect{Kind: WriteDisplay, Data: []byte(ClearLine)},
		Effect{Kind: InvokeGeneration, Query: text, ChatMode: s.ChatMode},
	)
	return s
}

// cancel abandons the query without generating anything
func (m *Machine) cancel(s State, effects *[]Effect) State {
	s.Query = nil
	s.Mode = PassThrough
	*effects = append(*effects, Effect{Kind: WriteDisplay, Data: []byte(ClearLine + RestoreCursor)})
	return s
}

func (m *Machine) indexEscape(p []byte) int {
	if len(m.escapeKey) == 0 {
		return -1
	}
	return bytes.Index(p, m.escapeKey)
}

func (m *Machine) hasEscapeAt(p []byte, i int) bool {
	return len(m.escapeKey) > 0 && bytes.HasPrefix(p[i:], m.escapeKey)
}
