package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/eschatch/internal/escape"
	"github.com/GriffinCanCode/eschatch/internal/generation"
	"github.com/GriffinCanCode/eschatch/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/eschatch/internal/sessionlog"
	"github.com/GriffinCanCode/eschatch/internal/shared/id"
	"github.com/GriffinCanCode/eschatch/internal/transcript"
)

const (
	// ChunkSize bounds one read per source per wake-up.
	ChunkSize = 1024
	// DefaultPollInterval is how often an idle loop checks for cancellation.
	DefaultPollInterval = 100 * time.Millisecond
)

// Generator handles submitted tasks.
type Generator interface {
	Handle(ctx context.Context, req generation.Request) generation.Outcome
}

// Config wires a Loop.
type Config struct {
	// Terminal is the controlling terminal input, normally os.Stdin.
	Terminal *os.File
	// Display is the real terminal output, normally os.Stdout.
	Display io.Writer
	// Pty is the pty master of the child.
	Pty *os.File

	Machine    *escape.Machine
	Transcript *transcript.Buffer
	Generator  Generator

	Log     *sessionlog.Log
	Metrics *monitoring.Metrics
	Logger  *zap.Logger

	PollInterval time.Duration
}

// Loop owns the escape state and transcript of one session. It is not safe
// for concurrent use; State and Transcript are meant to be read after Run
// returns.
type Loop struct {
	cfg   Config
	state escape.State
}

// New creates a loop in pass-through mode.
func New(cfg Config) *Loop {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Transcript == nil {
		cfg.Transcript = transcript.New(transcript.DefaultMaxBytes, true)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Loop{cfg: cfg}
}

// State returns the current escape state.
func (l *Loop) State() escape.State {
	return l.state
}

// Transcript returns the session transcript.
func (l *Loop) Transcript() *transcript.Buffer {
	return l.cfg.Transcript
}

// Run relays until end of stream (nil), cancellation (ctx.Err()) or an I/O
// failure.
func (l *Loop) Run(ctx context.Context) error {
	termFd := int(l.cfg.Terminal.Fd())
	ptyFd := int(l.cfg.Pty.Fd())
	timeout := int(l.cfg.PollInterval / time.Millisecond)

	fds := []unix.PollFd{
		{Fd: int32(termFd), Events: unix.POLLIN},
		{Fd: int32(ptyFd), Events: unix.POLLIN},
	}
	buf := make([]byte, ChunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fds[0].Revents, fds[1].Revents = 0, 0
		n, err := unix.Poll(fds, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("poll: %w", err)
		}
		if n == 0 {
			continue
		}

		if fds[0].Revents&unix.POLLNVAL != 0 || fds[1].Revents&unix.POLLNVAL != 0 {
			return errors.New("poll: descriptor closed")
		}

		if readable(fds[0].Revents) {
			chunk, eof, err := readChunk(termFd, buf)
			if err != nil {
				return fmt.Errorf("read terminal: %w", err)
			}
			if eof {
				l.cfg.Logger.Info("Terminal input closed")
				return nil
			}
			if err := l.dispatch(ctx, escape.Input(chunk)); err != nil {
				return err
			}
		}

		if readable(fds[1].Revents) {
			chunk, eof, err := readChunk(ptyFd, buf)
			if errors.Is(err, unix.EIO) {
				// Linux reports EIO on the master once the slave side is gone.
				eof, err = true, nil
			}
			if err != nil {
				return fmt.Errorf("read pty: %w", err)
			}
			if eof {
				l.cfg.Logger.Info("Child output closed")
				return nil
			}
			if err := l.dispatch(ctx, escape.Output(chunk)); err != nil {
				return err
			}
		}
	}
}

func readable(revents int16) bool {
	return revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0
}

// readChunk performs one read. It returns a copy of the bytes read so the
// chunk outlives the shared buffer. EAGAIN yields an empty, non-EOF chunk.
func readChunk(fd int, buf []byte) ([]byte, bool, error) {
	for {
		n, err := unix.Read(fd, buf)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return nil, false, nil
		case err != nil:
			return nil, false, err
		case n == 0:
			return nil, true, nil
		}
		return append([]byte(nil), buf[:n]...), false, nil
	}
}

// dispatch runs one event through the state machine and executes the
// resulting effects in order.
func (l *Loop) dispatch(ctx context.Context, ev escape.Event) error {
	next, effects := l.cfg.Machine.Step(l.state, ev)
	l.state = next

	for _, effect := range effects {
		if err := l.apply(ctx, effect); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) apply(ctx context.Context, effect escape.Effect) error {
	switch effect.Kind {
	case escape.ForwardToPty:
		return l.writePty(effect.Data)
	case escape.RecordInput:
		if !l.cfg.Transcript.AppendInput(effect.Data) {
			l.cfg.Metrics.RecordRejected(monitoring.DirectionInput)
		}
		l.cfg.Log.WriteInput(effect.Data)
		l.cfg.Metrics.RecordBytes(monitoring.DirectionInput, len(effect.Data))
		return nil
	case escape.RecordOutput:
		if !l.cfg.Transcript.AppendOutput(effect.Data) {
			l.cfg.Metrics.RecordRejected(monitoring.DirectionOutput)
		}
		l.cfg.Log.WriteOutput(effect.Data)
		l.cfg.Metrics.RecordBytes(monitoring.DirectionOutput, len(effect.Data))
		return nil
	case escape.WriteDisplay:
		if effect.Activation {
			l.cfg.Metrics.RecordEscape()
		}
		return l.writeDisplay(effect.Data)
	case escape.InvokeGeneration:
		return l.generate(ctx, effect)
	default:
		return fmt.Errorf("relay: unknown effect %s", effect.Kind)
	}
}

// generate runs the pipeline, applies its state changes, and writes its
// bytes: display text first, then the injection into the child. Injected
// bytes are not recorded as operator input.
func (l *Loop) generate(ctx context.Context, effect escape.Effect) error {
	input, output := l.cfg.Transcript.Context()
	out := l.cfg.Generator.Handle(ctx, generation.Request{
		Query:    effect.Query,
		ChatMode: effect.ChatMode,
		History:  l.state.History,
		Input:    input,
		Output:   output,
	})

	if out.EnableChat {
		l.state = l.state.WithChat(true)
	}
	if out.ClearHistory {
		l.state = l.state.WithoutHistory()
	}
	if len(out.AppendTurns) > 0 {
		l.state = l.state.WithTurns(out.AppendTurns...)
	}

	l.journal(effect, out)

	// The cursor goes back to where the prompt opened before any banner
	// that accompanies an injection, so the child's echo lands below the
	// banner instead of over it.
	if len(out.Display) == 0 || len(out.Inject) > 0 {
		if err := l.writeDisplay([]byte(escape.RestoreCursor)); err != nil {
			return err
		}
	}
	if len(out.Display) > 0 {
		if err := l.writeDisplay(out.Display); err != nil {
			return err
		}
	}
	if len(out.Inject) > 0 {
		return l.writePty(out.Inject)
	}
	return nil
}

func (l *Loop) journal(effect escape.Effect, out generation.Outcome) {
	if effect.Query == "" {
		return
	}
	entry := sessionlog.Entry{
		ID:    id.NewInjectionID().String(),
		Time:  time.Now(),
		Query: effect.Query,
		Chat:  effect.ChatMode,
	}
	if out.IsDirective {
		entry.Directive = out.Directive.String()
	}
	if out.Command != "" {
		entry.Command = out.Command
		entry.Action = out.Decision.Action.String()
		entry.Destructive = out.Decision.Verdict.Destructive
		entry.Pattern = out.Decision.Verdict.Pattern
	}
	if out.Err != nil {
		entry.Error = out.Err.Error()
	}
	l.cfg.Log.Record(entry)
}

func (l *Loop) writePty(p []byte) error {
	if _, err := l.cfg.Pty.Write(p); err != nil {
		return fmt.Errorf("write pty: %w", err)
	}
	return nil
}

func (l *Loop) writeDisplay(p []byte) error {
	if _, err := l.cfg.Display.Write(p); err != nil {
		return fmt.Errorf("write terminal: %w", err)
	}
	return nil
}
