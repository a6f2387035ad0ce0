package generation

import "strings"

// Directive is a slash command typed at the task prompt.
type Directive int

const (
	DirectiveChat Directive = iota
	DirectiveExplain
	DirectiveDebug
	DirectiveClear
	DirectiveHelp
	DirectiveUnknown
)

var directiveNames = map[string]Directive{
	"/chat":    DirectiveChat,
	"/explain": DirectiveExplain,
	"/debug":   DirectiveDebug,
	"/clear":   DirectiveClear,
	"/help":    DirectiveHelp,
}

func (d Directive) String() string {
	switch d {
	case DirectiveChat:
		return "chat"
	case DirectiveExplain:
		return "explain"
	case DirectiveDebug:
		return "debug"
	case DirectiveClear:
		return "clear"
	case DirectiveHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ParseDirective reports whether query is a directive and which one. Only
// the leading whitespace-separated token is considered, case-insensitively;
// the lowercased token is returned for error messages.
func ParseDirective(query string) (Directive, string, bool) {
	fields := strings.Fields(query)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return DirectiveUnknown, "", false
	}

	token := strings.ToLower(fields[0])
	if d, ok := directiveNames[token]; ok {
		return d, token, true
	}
	return DirectiveUnknown, token, true
}
