package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDirective(t *testing.T) {
	tests := []struct {
		query     string
		directive Directive
		token     string
		ok        bool
	}{
		{"/chat", DirectiveChat, "/chat", true},
		{"  /Explain  ", DirectiveExplain, "/explain", true},
		{"/debug why did make fail", DirectiveDebug, "/debug", true},
		{"/CLEAR", DirectiveClear, "/clear", true},
		{"/help", DirectiveHelp, "/help", true},
		{"/chatty", DirectiveUnknown, "/chatty", true},
		{"/", DirectiveUnknown, "/", true},
		{"list /tmp", DirectiveUnknown, "", false},
		{"", DirectiveUnknown, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			d, token, ok := ParseDirective(tt.query)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.directive, d)
			assert.Equal(t, tt.token, token)
		})
	}
}

func TestNormalizeCommand(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"plain", "ls -la", "ls -la"},
		{"surrounding whitespace", "\n  ls -la  \n", "ls -la"},
		{"fenced", "```bash\nls -la\n```", "ls -la"},
		{"first line wins", "ls -la\ncd /tmp", "ls -la"},
		{"backticks", "`ls -la`", "ls -la"},
		{"double quotes", `"ls -la"`, "ls -la"},
		{"single quotes", `'ls -la'`, "ls -la"},
		{"inner quotes kept", `"a" && "b"`, `"a" && "b"`},
		{"quoted argument kept", `echo "hi"`, `echo "hi"`},
		{"crlf", "ls\r\n", "ls"},
		{"empty", "", ""},
		{"only fences", "```\n```", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCommand(tt.reply))
		})
	}
}

func TestTerminalText(t *testing.T) {
	assert.Equal(t, "a\r\nb\r\n", string(terminalText("a\nb\r\n")))
}
