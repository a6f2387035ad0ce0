package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// AppName names the per-user directories
const AppName = "eschatch"

// Fixed file names
const (
	// ConfigFile lives in ConfigDir
	ConfigFile = "config.toml"

	// LogFile is the structured log, placed in the session root by default
	LogFile = "eschatch.log"
)

// DefaultSessionRoot holds one directory per session. The leading ~ is
// expanded by the config layer.
const DefaultSessionRoot = "~/.eschatch/sessions"

// ConfigDir returns the per-user config directory, honoring XDG_CONFIG_HOME
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}
	return filepath.Join(dir, AppName), nil
}

// DefaultConfigFile returns ConfigDir/ConfigFile
func DefaultConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFile), nil
}

// Session returns the layout of one session directory
type Session struct {
	Root string
	ID   string
}

// Dir returns the session's directory
func (s Session) Dir() string {
	return filepath.Join(s.Root, s.ID)
}

// File returns the path of name inside the session directory
func (s Session) File(name string) string {
	return filepath.Join(s.Dir(), name)
}
