// Package app assembles an ESChatch session from configuration and runs it
// to completion.
//
// Run is the whole lifecycle: load configuration, start the child on a pty,
// put the controlling terminal into raw mode, relay until end of stream or a
// signal, then restore the terminal, finalize the session log and write the
// metrics file. It returns the process exit code:
//
//	0    the child or the terminal reached end of stream
//	1    setup failed before the session started
//	130  interrupted by a signal, or an I/O error ended the session
package app
