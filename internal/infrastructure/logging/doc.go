// Package logging provides structured logging using uber/zap.
//
// The wrapped terminal owns stdout and stderr once raw mode is entered, so a
// session logger writes to a file. Two encodings are available:
//   - Production: JSON lines for machine parsing
//   - Development: console output for human readability
//
// Example Usage:
//
//	logger, err := logging.New(logging.FileConfig("info", "/tmp/eschatch.log"))
//	if err != nil {
//		return err
//	}
//	defer logger.Sync()
//	logger.Info("Session started", zap.String("exec", "bash"))
package logging
