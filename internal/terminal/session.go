package terminal

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// ErrEmptyCommand is returned when the exec target has no tokens
var ErrEmptyCommand = errors.New("empty exec command")

// Session is a child process attached to a pty
type Session struct {
	Args []string

	cmd  *exec.Cmd
	ptmx *os.File

	// Raw mode snapshot of the controlling terminal
	rawFd    int
	rawState *term.State
	rawMu    sync.Mutex

	closeOnce sync.Once
	closeErr  error

	done    chan struct{}
	waitErr error
}

// SplitCommand splits an exec target on whitespace
func SplitCommand(line string) []string {
	return strings.Fields(line)
}

// Start launches execCommand on a new pty
func Start(execCommand string) (*Session, error) {
	args := SplitCommand(execCommand)
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}

	path, err := exec.LookPath(args[0])
	if err != nil {
		return nil, fmt.Errorf("exec target %q: %w", args[0], err)
	}

	cmd := exec.Command(path)
	cmd.Args = args
	cmd.Env = os.Environ()
	if os.Getenv("TERM") == "" {
		cmd.Env = append(cmd.Env, "TERM=xterm-256color")
	}

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to start PTY: %w", err)
	}

	s := &Session{
		Args:  args,
		cmd:   cmd,
		ptmx:  ptmx,
		rawFd: -1,
		done:  make(chan struct{}),
	}

	go s.reap()

	return s, nil
}

// reap waits for the child to exit
func (s *Session) reap() {
	s.waitErr = s.cmd.Wait()
	close(s.done)
}

// Pty returns the pty master
func (s *Session) Pty() *os.File {
	return s.ptmx
}

// Pid returns the child process id
func (s *Session) Pid() int {
	if s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Done is closed once the child has been reaped
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// ExitCode returns the child's exit status, or -1 while it is running
func (s *Session) ExitCode() int {
	select {
	case <-s.done:
	default:
		return -1
	}

	if s.waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(s.waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// SyncWindowSize copies the controlling terminal's geometry to the pty.
// Callers treat a failure as non-fatal.
func (s *Session) SyncWindowSize(controlling *os.File) error {
	cols, rows, err := term.GetSize(int(controlling.Fd()))
	if err != nil {
		return fmt.Errorf("query terminal size: %w", err)
	}

	if err := pty.Setsize(s.ptmx, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	}); err != nil {
		return fmt.Errorf("apply pty size: %w", err)
	}
	return nil
}

// EnterRawMode snapshots the attributes of fd and puts it in raw mode
func (s *Session) EnterRawMode(fd int) error {
	s.rawMu.Lock()
	defer s.rawMu.Unlock()

	if s.rawState != nil {
		return nil
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("set terminal raw mode: %w", err)
	}

	s.rawFd = fd
	s.rawState = state
	return nil
}

// RestoreMode reapplies the snapshot taken by EnterRawMode. Only the first
// call after EnterRawMode has an effect.
func (s *Session) RestoreMode() error {
	s.rawMu.Lock()
	defer s.rawMu.Unlock()

	if s.rawState == nil {
		return nil
	}

	state := s.rawState
	s.rawState = nil
	return term.Restore(s.rawFd, state)
}

// InRawMode reports whether a snapshot is pending restoration
func (s *Session) InRawMode() bool {
	s.rawMu.Lock()
	defer s.rawMu.Unlock()
	return s.rawState != nil
}

// Close closes the pty master. The child sees a hangup and exits on its own.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.ptmx.Close()
	})
	return s.closeErr
}
