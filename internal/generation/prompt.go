package generation

import (
	"fmt"
	"strings"

	"github.com/GriffinCanCode/eschatch/internal/escape"
)

// HistoryTurns is how many chat turns are replayed into a prompt.
const HistoryTurns = 4

const (
	explainSystem = "You are a helpful assistant that explains terminal sessions clearly and concisely."
	debugSystem   = "You are an expert debugger that helps identify and fix terminal/command errors."
)

const helpText = "\r\n" +
	"[ESChatch] Special commands:\r\n" +
	"  /chat    - Enable multi-turn conversation mode\r\n" +
	"  /explain - Explain current terminal state\r\n" +
	"  /debug   - Analyze errors and suggest fixes\r\n" +
	"  /clear   - Clear conversation history\r\n" +
	"  /help    - Show this help message\r\n"

// commandPrompt is the user message for a command request.
func commandPrompt(req Request) string {
	var history string
	if req.ChatMode {
		turns := req.History
		if len(turns) > HistoryTurns {
			turns = turns[len(turns)-HistoryTurns:]
		}
		if len(turns) > 0 {
			lines := make([]string, len(turns))
			for i, turn := range turns {
				lines[i] = fmt.Sprintf("%s: %s", turn.Role, turn.Text)
			}
			history = "Previous conversation:\n----\n" + strings.Join(lines, "\n") + "\n----\n\n"
		}
	}

	return `You are an experienced fullstack software engineer with expertise in all Linux commands and their functionality.
Given a task, along with a sequence of previous inputs and screen scrape, generate a single line of commands that accomplish the task efficiently.
This command is to be executed in the current program which can be determined by the screen scrape.

` + history + `The screen scrape is:
----
` + req.Output + `
----

The recent input is: ` + req.Input + `
----

Take special care and look at the most recent part of the screen scrape. Pay attention to:
- Things like the prompt style, welcome banners
- Be sensitive if the person is say at a python prompt, ruby prompt, gdb, or perhaps inside a program such as vim

Create a command to accomplish the following task: ` + req.Query + `

If there is text enclosed in parenthesis, that's what ought to be changed.

Output only the command as a single line of plain text, with no quotes, formatting, or additional commentary.
Do not use markdown or any other formatting. Do not include the command into a code block.
Don't include the program itself (bash, zsh, etc.) in the command.`
}

func explainPrompt(req Request) string {
	return "Explain what is happening in this terminal session:\n----\n" + req.Output +
		"\n----\nRecent input: " + req.Input
}

func debugPrompt(req Request) string {
	return "Analyze the last error or issue in this terminal session and suggest how to fix it:\n----\n" +
		req.Output + "\n----\nRecent input: " + req.Input
}

// terminalText converts free text for a terminal in raw mode, where a bare
// line feed does not return the carriage.
func terminalText(s string) []byte {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

// historyTurns is the pair recorded for one chat exchange.
func historyTurns(query, command string) []escape.Turn {
	return []escape.Turn{
		{Role: escape.RoleUser, Text: query},
		{Role: escape.RoleAssistant, Text: command},
	}
}
