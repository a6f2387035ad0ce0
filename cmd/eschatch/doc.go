/*
Eschatch runs a command on a pseudo-terminal and lets the operator ask a
language model for the next command without leaving it.

Everything typed is relayed to the child untouched until the escape key
(ctrl+x by default) is pressed. A task prompt then opens on the current line;
the task, together with the recent terminal transcript, is sent to the
configured model and the single-line reply is typed into the child as if the
operator had entered it. Commands that look destructive are staged without a
trailing newline so they only run after an explicit Enter.

Usage:

	eschatch [flags] [-- args...]

The flags are:

	-e, --exec string
		Command to run on the pty (default "bash"). Remaining positional
		arguments are appended to it.
	-c, --config string
		Config file (default ~/.config/eschatch/config.toml).
	-m, --model string
		Model name, overriding the config file.
	--base-url string
		Backend base URL, overriding the config file.
	--preview
		Stage every generated command instead of submitting it.
	--install-config
		Write the default config file and exit.
	-v, --verbose
		Log at debug level.

At the task prompt these directives are available:

	/chat     multi-turn conversation; an empty task leaves chat mode
	/explain  describe what is happening in the session
	/debug    analyze the last error and suggest a fix
	/clear    forget the conversation
	/help     list the directives

Examples:

	eschatch                   # wrap bash
	eschatch -e zsh            # wrap zsh
	eschatch -e python3        # wrap a Python REPL
	eschatch -e vim main.go    # edit a file with a helper at hand

Logs, raw session transcripts and metrics are written under
~/.eschatch/sessions.
*/
package main
