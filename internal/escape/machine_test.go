package escape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ctrlX = "\x18"

func kinds(effects []Effect) []EffectKind {
	out := make([]EffectKind, len(effects))
	for i, e := range effects {
		out[i] = e.Kind
	}
	return out
}

func find(effects []Effect, kind EffectKind) []Effect {
	var out []Effect
	for _, e := range effects {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func TestPassThroughForwardsAndRecords(t *testing.T) {
	m := NewMachine([]byte(ctrlX))

	next, effects := m.Step(State{}, Input([]byte("ls -la\r")))

	assert.Equal(t, PassThrough, next.Mode)
	require.Equal(t, []EffectKind{RecordInput, ForwardToPty}, kinds(effects))
	assert.Equal(t, "ls -la\r", string(effects[0].Data))
	assert.Equal(t, "ls -la\r", string(effects[1].Data))
}

func TestOutputIsRecordedAndDisplayedInEveryMode(t *testing.T) {
	m := NewMachine([]byte(ctrlX))

	for _, mode := range []Mode{PassThrough, AwaitingQuery} {
		s := State{Mode: mode, Query: []byte("partial")}
		next, effects := m.Step(s, Output([]byte("$ ")))

		assert.Equal(t, s.Mode, next.Mode, mode.String())
		assert.Equal(t, "partial", string(next.Query))
		assert.Equal(t, []EffectKind{RecordOutput, WriteDisplay}, kinds(effects))
	}
}

func TestEmptyEventIsIgnored(t *testing.T) {
	m := NewMachine([]byte(ctrlX))
	next, effects := m.Step(State{}, Input(nil))
	assert.Equal(t, State{}, next)
	assert.Empty(t, effects)
}

func TestEscapeKeyDetectedAnywhereInChunk(t *testing.T) {
	tests := []struct {
		name      string
		escapeKey string
		chunk     string
		forwarded string
		query     string
	}{
		{"alone", ctrlX, ctrlX, "", ""},
		{"after typed bytes", ctrlX, "ab" + ctrlX, "ab", ""},
		{"before query bytes", ctrlX, ctrlX + "list", "", "list"},
		{"surrounded", ctrlX, "git" + ctrlX + "fix", "git", "fix"},
		{"multi-byte key", "\x1b[24~", "x\x1b[24~y", "x", "y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine([]byte(tt.escapeKey))
			next, effects := m.Step(State{}, Input([]byte(tt.chunk)))

			assert.Equal(t, AwaitingQuery, next.Mode)
			assert.Equal(t, tt.query, string(next.Query))

			forwarded := find(effects, ForwardToPty)
			if tt.forwarded == "" {
				assert.Empty(t, forwarded)
			} else {
				require.Len(t, forwarded, 1)
				assert.Equal(t, tt.forwarded, string(forwarded[0].Data))
			}

			displays := find(effects, WriteDisplay)
			require.NotEmpty(t, displays)
			assert.Equal(t, Prompt(false), displays[0].Data)
		})
	}
}

func TestPartialEscapeSequenceIsForwarded(t *testing.T) {
	m := NewMachine([]byte("\x1b[24~"))
	next, effects := m.Step(State{}, Input([]byte("\x1b[24")))

	assert.Equal(t, PassThrough, next.Mode)
	assert.Equal(t, []EffectKind{RecordInput, ForwardToPty}, kinds(effects))
}

func TestPromptReflectsChatMode(t *testing.T) {
	m := NewMachine([]byte(ctrlX))
	_, effects := m.Step(State{ChatMode: true}, Input([]byte(ctrlX)))

	require.Len(t, effects, 1)
	assert.Equal(t, Prompt(true), effects[0].Data)
	assert.True(t, effects[0].Activation)
	assert.Contains(t, string(effects[0].Data), ChatPromptLabel)
	assert.Contains(t, string(effects[0].Data), SaveCursor)
}

func TestQueryBytesAreNotForwardedOrRecorded(t *testing.T) {
	m := NewMachine([]byte(ctrlX))
	s := State{Mode: AwaitingQuery}

	next, effects := m.Step(s, Input([]byte("list ")))
	next, more := m.Step(next, Input([]byte("files")))
	effects = append(effects, more...)

	assert.Equal(t, "list files", string(next.Query))
	assert.Empty(t, find(effects, ForwardToPty))
	assert.Empty(t, find(effects, RecordInput))

	// Typed bytes are echoed
	echoed := ""
	for _, e := range find(effects, WriteDisplay) {
		echoed += string(e.Data)
	}
	assert.Equal(t, "list files", echoed)

	// Step never mutates its input
	assert.Empty(t, s.Query)
}

func TestSubmitInvokesGeneration(t *testing.T) {
	m := NewMachine([]byte(ctrlX))
	s := State{Mode: AwaitingQuery, Query: []byte("  list files ")}

	next, effects := m.Step(s, Input([]byte("\r")))

	assert.Equal(t, PassThrough, next.Mode)
	assert.Empty(t, next.Query)
	require.Equal(t, []EffectKind{WriteDisplay, InvokeGeneration}, kinds(effects))
	assert.Equal(t, ClearLine, string(effects[0].Data))
	assert.Equal(t, "list files", effects[1].Query)
	assert.False(t, effects[1].ChatMode)
}

func TestSubmitAcrossOneChunk(t *testing.T) {
	m := NewMachine([]byte(ctrlX))

	next, effects := m.Step(State{}, Input([]byte(ctrlX+"list files\n")))

	assert.Equal(t, PassThrough, next.Mode)
	gen := find(effects, InvokeGeneration)
	require.Len(t, gen, 1)
	assert.Equal(t, "list files", gen[0].Query)
}

func TestBytesAfterTerminatorAreProcessedInNewState(t *testing.T) {
	m := NewMachine([]byte(ctrlX))
	s := State{Mode: AwaitingQuery, Query: []byte("q")}

	next, effects := m.Step(s, Input([]byte("\r\nls\r")))

	assert.Equal(t, PassThrough, next.Mode)
	assert.Equal(t,
		[]EffectKind{WriteDisplay, InvokeGeneration, RecordInput, ForwardToPty},
		kinds(effects))
	assert.Equal(t, "ls\r", string(effects[3].Data))
}

func TestChatModeDoubleEnterExits(t *testing.T) {
	m := NewMachine([]byte(ctrlX))
	history := []Turn{{Role: RoleUser, Text: "hi"}, {Role: RoleAssistant, Text: "echo hi"}}
	s := State{Mode: AwaitingQuery, ChatMode: true, Query: []byte("   "), History: history}

	next, effects := m.Step(s, Input([]byte("\r")))

	assert.Equal(t, PassThrough, next.Mode)
	assert.False(t, next.ChatMode)
	assert.Empty(t, next.Query)
	assert.Equal(t, history, next.History)
	assert.Empty(t, find(effects, InvokeGeneration))
	require.Len(t, effects, 1)
	assert.Equal(t, ChatExitBanner(), effects[0].Data)
}

func TestEmptyQueryOutsideChatStillSubmits(t *testing.T) {
	m := NewMachine([]byte(ctrlX))
	next, effects := m.Step(State{Mode: AwaitingQuery}, Input([]byte("\r")))

	assert.Equal(t, PassThrough, next.Mode)
	gen := find(effects, InvokeGeneration)
	require.Len(t, gen, 1)
	assert.Equal(t, "", gen[0].Query)
}

func TestChatModePersistsAcrossSubmission(t *testing.T) {
	m := NewMachine([]byte(ctrlX))
	s := State{Mode: AwaitingQuery, ChatMode: true, Query: []byte("and now?")}

	next, effects := m.Step(s, Input([]byte("\n")))

	assert.True(t, next.ChatMode)
	gen := find(effects, InvokeGeneration)
	require.Len(t, gen, 1)
	assert.True(t, gen[0].ChatMode)
}

func TestBackspaceEditsQuery(t *testing.T) {
	m := NewMachine([]byte(ctrlX))
	s := State{Mode: AwaitingQuery, Query: []byte("caté")}

	next, effects := m.Step(s, Input([]byte{keyDelete, keyBackspace, 'r'}))

	assert.Equal(t, "car", string(next.Query))
	require.Len(t, effects, 1)
	assert.Equal(t, EraseChar+EraseChar+"r", string(effects[0].Data))

	// Erasing an empty query does nothing
	next, effects = m.Step(State{Mode: AwaitingQuery}, Input([]byte{keyDelete}))
	assert.Empty(t, next.Query)
	assert.Empty(t, effects)
}

func TestCancelReturnsToPassThrough(t *testing.T) {
	for name, key := range map[string][]byte{
		"interrupt":  {keyInterrupt},
		"escape key": []byte(ctrlX),
	} {
		t.Run(name, func(t *testing.T) {
			m := NewMachine([]byte(ctrlX))
			s := State{Mode: AwaitingQuery, ChatMode: true, Query: []byte("half")}

			next, effects := m.Step(s, Input(key))

			assert.Equal(t, PassThrough, next.Mode)
			assert.Empty(t, next.Query)
			assert.True(t, next.ChatMode)
			assert.Empty(t, find(effects, InvokeGeneration))
			require.Len(t, effects, 1)
			assert.Equal(t, ClearLine+RestoreCursor, string(effects[0].Data))
		})
	}
}

func TestEmptyEscapeKeyNeverTriggers(t *testing.T) {
	m := NewMachine(nil)
	next, effects := m.Step(State{}, Input([]byte("abc\x18")))

	assert.Equal(t, PassThrough, next.Mode)
	assert.Equal(t, []EffectKind{RecordInput, ForwardToPty}, kinds(effects))
}

func TestQueryOnlyNonEmptyWhileAwaiting(t *testing.T) {
	m := NewMachine([]byte(ctrlX))
	chunks := []string{"echo", ctrlX, "do ", "it", "\r", "x", ctrlX, "y", "\x03", ctrlX, "\r"}

	s := State{}
	for _, c := range chunks {
		s, _ = m.Step(s, Input([]byte(c)))
		if s.Mode == PassThrough {
			assert.Empty(t, s.Query, "after %q", c)
		}
	}
}

func TestStateHistoryHelpers(t *testing.T) {
	s := State{}
	s = s.WithTurns(Turn{RoleUser, "a"}, Turn{RoleAssistant, "b"})
	s = s.WithTurns(Turn{RoleUser, "c"}, Turn{RoleAssistant, "d"})
	s = s.WithTurns(Turn{RoleUser, "e"}, Turn{RoleAssistant, "f"})

	recent := s.RecentTurns(4)
	require.Len(t, recent, 4)
	assert.Equal(t, "c", recent[0].Text)
	assert.Equal(t, "f", recent[3].Text)

	assert.Len(t, s.RecentTurns(10), 6)
	assert.Nil(t, s.RecentTurns(0))

	cleared := s.WithoutHistory()
	assert.Empty(t, cleared.History)
	assert.Len(t, s.History, 6)

	assert.True(t, s.WithChat(true).ChatMode)
}

func TestModeAndEffectStrings(t *testing.T) {
	assert.Equal(t, "pass-through", PassThrough.String())
	assert.Equal(t, "awaiting-query", AwaitingQuery.String())
	assert.Equal(t, "invoke-generation", InvokeGeneration.String())
	assert.Equal(t, "unknown", EffectKind(42).String())
}
