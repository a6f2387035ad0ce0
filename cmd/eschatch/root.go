package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/eschatch/internal/app"
	"github.com/GriffinCanCode/eschatch/internal/infrastructure/config"
)

type rootFlags struct {
	exec          string
	configPath    string
	model         string
	baseURL       string
	preview       bool
	installConfig bool
	verbose       bool
}

// newRootCmd builds the command. The session exit code is stored in the
// returned pointer once the command has run.
func newRootCmd() (*cobra.Command, *int) {
	var flags rootFlags
	code := new(int)

	cmd := &cobra.Command{
		Use:   "eschatch [flags] [-- args...]",
		Short: "Run a command on a pty with a language-model task prompt",
		Long: `Run a command on a pseudo-terminal and inject model-generated commands.

Press the escape key (ctrl+x by default) to open a task prompt, describe what
you want, and press Enter. The reply is typed into the running program.

Config file: ~/.config/eschatch/config.toml`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.installConfig {
				path, err := config.InstallDefault(flags.configPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Default config created at: %s\n", path)
				return nil
			}

			exec := flags.exec
			if len(args) > 0 {
				exec = strings.TrimSpace(exec + " " + strings.Join(args, " "))
			}

			*code = app.Run(cmd.Context(), app.Options{
				Exec:       exec,
				ConfigPath: flags.configPath,
				Model:      flags.model,
				BaseURL:    flags.baseURL,
				Preview:    flags.preview,
				Verbose:    flags.verbose,
				Stderr:     cmd.ErrOrStderr(),
			})
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.exec, "exec", "e", "bash", "command to run on the pty")
	f.StringVarP(&flags.configPath, "config", "c", "", "config file (default ~/.config/eschatch/config.toml)")
	f.StringVarP(&flags.model, "model", "m", "", "model name (overrides config)")
	f.StringVar(&flags.baseURL, "base-url", "", "backend base URL (overrides config)")
	f.BoolVar(&flags.preview, "preview", false, "stage generated commands instead of running them")
	f.BoolVar(&flags.installConfig, "install-config", false, "write the default config file and exit")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "log at debug level")

	return cmd, code
}
