/*
Package relay runs the session event loop.

One goroutine multiplexes the controlling terminal and the pty master with
poll(2). Each readable source yields at most one 1024-byte chunk per wake-up;
the chunk becomes an escape.Event, the state machine turns it into effects,
and the loop executes them in order:

	ForwardToPty      write to the pty master
	RecordInput       append to the transcript input window and input.log
	RecordOutput      append to the transcript output window and output.log
	WriteDisplay      write to the real terminal
	InvokeGeneration  run the generation pipeline and apply its outcome

Generation blocks the loop. Poll wakes up every PollInterval so a canceled
context ends the loop promptly. A zero-byte read from either source, or EIO
from the pty master once the child has exited, ends the loop normally.
*/
package relay
