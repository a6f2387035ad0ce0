// Package sessionlog keeps a durable record of one wrapped session.
//
// Each session gets its own directory named by a sortable session ID:
//
//	<root>/<id>/input.log         raw bytes typed by the operator
//	<root>/<id>/output.log        raw bytes produced by the child
//	<root>/<id>/injections.jsonl  one JSON line per submitted task
//	<root>/<id>/session.json      metadata, finalized on Close
//
// With compression enabled, Close rewrites the raw logs as zstd (.zst).
// Logging is best-effort: a write failure is reported once and that stream
// is abandoned, the session itself carries on. All methods are no-ops on a
// nil *Log.
package sessionlog
