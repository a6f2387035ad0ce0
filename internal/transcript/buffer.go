package transcript

import (
	"github.com/charmbracelet/x/ansi"
)

// DefaultMaxBytes bounds each direction when no limit is configured
const DefaultMaxBytes = 2000

// Buffer holds the recent input and output of one session
type Buffer struct {
	input  *Window
	output *Window
}

// New creates a buffer bounding each direction to maxBytes
func New(maxBytes int, sliding bool) *Buffer {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Buffer{
		input:  NewWindow(maxBytes, sliding),
		output: NewWindow(maxBytes, sliding),
	}
}

// AppendInput records operator keystrokes forwarded to the child
func (b *Buffer) AppendInput(p []byte) bool {
	return b.input.Write(p)
}

// AppendOutput records bytes the child wrote to its terminal
func (b *Buffer) AppendOutput(p []byte) bool {
	return b.output.Write(p)
}

// MaxBytes returns the per-direction bound
func (b *Buffer) MaxBytes() int {
	return b.input.Cap()
}

// Raw returns unmodified copies of both directions
func (b *Buffer) Raw() (input, output []byte) {
	return b.input.Bytes(), b.output.Bytes()
}

// Context returns copies of both directions with terminal escape
// sequences removed. The buffer itself is not modified.
func (b *Buffer) Context() (input, output string) {
	return Strip(b.input.Bytes()), Strip(b.output.Bytes())
}

// Strip removes terminal control sequences from p
func Strip(p []byte) string {
	if len(p) == 0 {
		return ""
	}
	return ansi.Strip(string(p))
}
