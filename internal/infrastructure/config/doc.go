// Package config loads ESChatch configuration.
//
// Sources are layered, later ones winning:
//   - Default(): built-in values
//   - a config file (TOML, or YAML by .yaml/.yml extension)
//   - ESCHATCH_* environment variables
//   - command-line flags, applied by the caller
//
// Configuration Sections:
//   - general: escape key, session log directory, log compression
//   - context: transcript window size and overflow policy
//   - llm: provider, model, endpoint, credentials, retry and rate limits
//   - prompt: system instructions for one-shot and chat requests
//   - safety: destructive-command screening and preview mode
//   - logging: level, encoding and file
//
// Example Usage:
//
//	cfg, err := config.Load("")
//	if err != nil {
//		return err
//	}
//	key, err := config.ParseEscapeKey(cfg.General.EscapeKey)
//
// Environment Variables:
//   - ESCHATCH_PROVIDER, ESCHATCH_MODEL, ESCHATCH_BASE_URL, ESCHATCH_API_KEY
//   - ESCHATCH_ESCAPE_KEY, ESCHATCH_LOG_LEVEL
//   - OPENAI_API_KEY, ANTHROPIC_API_KEY (used when no key is configured)
package config
