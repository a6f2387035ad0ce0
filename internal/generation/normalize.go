package generation

import "strings"

// NormalizeCommand reduces a model reply to one command line: code fences
// are dropped, the first non-empty line is kept, and a single layer of
// matching backticks or quotes wrapping the whole line is removed.
func NormalizeCommand(reply string) string {
	for _, line := range strings.Split(strings.ReplaceAll(reply, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		return unquote(line)
	}
	return ""
}

func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if first != last || (first != '`' && first != '"' && first != '\'') {
		return s
	}
	inner := s[1 : len(s)-1]
	// "a" && "b" is a command, not a quoted one.
	if strings.IndexByte(inner, first) >= 0 {
		return s
	}
	return strings.TrimSpace(inner)
}
