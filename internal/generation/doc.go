// Package generation turns a submitted task into bytes for the terminal.
//
// A task is either a slash directive (/chat, /explain, /debug, /clear, /help)
// or a natural-language request. Requests are composed into a prompt from
// the transcript context and, in chat mode, the recent conversation, sent to
// the generation backend, normalized to a single command line, and screened
// by the safety policy before being returned as injection bytes.
//
// The pipeline never mutates session state. Handle returns an Outcome that
// the relay applies: chat mode changes, history updates, text for the real
// terminal, and bytes for the child.
package generation
