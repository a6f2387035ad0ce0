// Package transcript records the recent keystrokes and screen output of a
// wrapped terminal session.
//
// Each direction is held in its own bounded window. Two retention policies
// are supported:
//   - Sliding: once the window is full, the oldest bytes are evicted so the
//     window always holds the most recent traffic.
//   - Frozen: once an append would overflow the window it is rejected whole,
//     so the window keeps the earliest traffic of the session.
//
// Raw bytes are stored untouched. Context returns escape-stripped copies
// suitable for building prompts.
//
// Example Usage:
//
//	buf := transcript.New(2000, true)
//	buf.AppendInput([]byte("ls\r"))
//	buf.AppendOutput(ptyBytes)
//	input, output := buf.Context()
package transcript
