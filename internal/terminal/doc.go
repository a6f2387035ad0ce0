// Package terminal owns the pseudo-terminal environment of a wrapped
// program.
//
// A Session starts the exec target on a new pty, keeps the pty master, and
// snapshots the controlling terminal's attributes when raw mode is entered.
// Restoring the attributes and closing the master each happen at most once,
// so callers can both defer them and invoke them from a signal path.
//
// Features:
//   - Exec target split on whitespace, no shell interpretation
//   - One-time window-size sync from the controlling terminal
//   - Raw-mode capture and guaranteed single restore
//   - Background reaping of the child
//
// Example Usage:
//
//	session, err := terminal.Start("vim notes.md")
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//	_ = session.SyncWindowSize(os.Stdin)
//	if err := session.EnterRawMode(int(os.Stdin.Fd())); err != nil {
//	    return err
//	}
//	defer session.RestoreMode()
package terminal
