package relay

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/eschatch/internal/escape"
	"github.com/GriffinCanCode/eschatch/internal/generation"
	"github.com/GriffinCanCode/eschatch/internal/llm"
	"github.com/GriffinCanCode/eschatch/internal/safety"
	"github.com/GriffinCanCode/eschatch/internal/terminal"
	"github.com/GriffinCanCode/eschatch/internal/transcript"
)

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// TestCatSession drives a real pty running cat through the full pipeline.
func TestCatSession(t *testing.T) {
	session, err := terminal.Start("cat")
	require.NoError(t, err)
	defer session.Close()

	completer := new(mockCompleter)
	completer.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return strings.Contains(req.Messages[0].Content, "following task: list files")
	})).Return("ls -la", nil).Once()

	pipeline := generation.New(generation.Options{
		Completer:    completer,
		Policy:       safety.Policy{Gate: safety.MustGate(true, nil)},
		SystemPrompt: "one command",
	})

	termR, termW, err := os.Pipe()
	require.NoError(t, err)
	defer termR.Close()
	defer termW.Close()

	display := &syncBuffer{}
	loop := New(Config{
		Terminal:     termR,
		Display:      display,
		Pty:          session.Pty(),
		Machine:      escape.NewMachine([]byte(ctrlX)),
		Transcript:   transcript.New(transcript.DefaultMaxBytes, true),
		Generator:    pipeline,
		PollInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	waitFor := func(want string, count int) {
		t.Helper()
		assert.Eventually(t, func() bool {
			return strings.Count(display.String(), want) >= count
		}, 5*time.Second, 10*time.Millisecond, "display never showed %q %d times", want, count)
	}

	_, err = termW.WriteString("hello\n")
	require.NoError(t, err)
	// Echoed by the line discipline, then printed by cat.
	waitFor("hello\r\n", 2)

	_, err = termW.WriteString(ctrlX + "list files\n")
	require.NoError(t, err)
	waitFor("ls -la\r\n", 2)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}

	input, output := loop.Transcript().Context()
	assert.Equal(t, "hello\n", input, "injected bytes are not operator input")
	assert.Contains(t, output, "hello")
	assert.Contains(t, output, "ls -la")
	assert.Empty(t, loop.State().History)
	assert.False(t, loop.State().ChatMode)
	completer.AssertExpectations(t)
}
