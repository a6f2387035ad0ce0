package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/eschatch/internal/infrastructure/config"
)

func TestFlags(t *testing.T) {
	cmd, _ := newRootCmd()

	for name, want := range map[string]string{
		"exec":           "bash",
		"config":         "",
		"model":          "",
		"base-url":       "",
		"preview":        "false",
		"install-config": "false",
		"verbose":        "false",
	} {
		flag := cmd.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, want, flag.DefValue, name)
	}

	assert.Equal(t, "e", cmd.Flags().Lookup("exec").Shorthand)
	assert.Equal(t, "c", cmd.Flags().Lookup("config").Shorthand)
	assert.Equal(t, "m", cmd.Flags().Lookup("model").Shorthand)
	assert.Equal(t, "v", cmd.Flags().Lookup("verbose").Shorthand)
}

func TestInstallConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cmd, code := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--install-config", "--config", path})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Equal(t, 0, *code)
	assert.Contains(t, out.String(), path)
	assert.FileExists(t, path)

	cmd, _ = newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--install-config", "--config", path})
	assert.ErrorIs(t, cmd.ExecuteContext(context.Background()), config.ErrConfigExists)
}

func TestSetupFailureExitCode(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	cmd, code := newRootCmd()
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--exec", "eschatch-no-such-binary"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Equal(t, 1, *code)
	assert.Contains(t, stderr.String(), "eschatch-no-such-binary")
}
