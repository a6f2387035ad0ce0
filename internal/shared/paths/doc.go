// Package paths defines the on-disk layout shared by the config, logging and
// session-log layers.
//
// Layout:
//
//	~/.config/eschatch/config.toml     configuration
//	~/.eschatch/sessions/eschatch.log  structured log
//	~/.eschatch/sessions/<ulid>/       one directory per session
package paths
