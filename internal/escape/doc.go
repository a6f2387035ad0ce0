// Package escape implements the escape-mode state machine of the terminal
// wrapper.
//
// The machine is pure: Step takes the current State and one Event (a chunk
// read from the controlling terminal or from the pty) and returns the next
// State plus an ordered list of Effects. The relay executes the effects;
// nothing in this package performs I/O.
//
// States:
//   - PassThrough: operator bytes are recorded and forwarded to the child
//   - AwaitingQuery: operator bytes build a natural-language query
//
// Chat mode is orthogonal to the mode and survives transitions. Pressing
// Enter on an empty query while chat mode is on leaves chat mode.
package escape
