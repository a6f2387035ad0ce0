// Package safety screens generated commands before they are written into a
// live terminal.
//
// A Gate holds an ordered list of case-insensitive patterns describing
// commands likely to cause irreversible damage. Classification stops at the
// first matching pattern. A disabled gate classifies everything as safe.
//
// The Policy turns a verdict into an injection action. A command is either
// submitted (written with a trailing line feed so the target program runs
// it) or staged (written without one, so the operator has to review it and
// press Enter). Destructive commands are always staged; preview mode stages
// every command.
package safety
