package safety

import (
	"fmt"
	"regexp"
)

// DefaultPatterns is the destructive-pattern list used when none is configured
var DefaultPatterns = []string{
	`rm\s+(-[rf]+\s+)?/`,
	`rm\s+-rf\s`,
	`dd\s+if=`,
	`mkfs`,
	`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`,
	`>\s*/dev/sd`,
	`chmod\s+-R\s+777`,
}

// Verdict is the result of classifying one command
type Verdict struct {
	Destructive bool
	Pattern     string // matching pattern, empty when not destructive
}

type matcher struct {
	pattern string
	re      *regexp.Regexp
}

// Gate matches commands against destructive patterns
type Gate struct {
	enabled  bool
	matchers []matcher
}

// NewGate compiles patterns in order. An empty list selects DefaultPatterns.
func NewGate(enabled bool, patterns []string) (*Gate, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	matchers := make([]matcher, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid destructive pattern %q: %w", pattern, err)
		}
		matchers = append(matchers, matcher{pattern: pattern, re: re})
	}

	return &Gate{enabled: enabled, matchers: matchers}, nil
}

// MustGate is like NewGate but panics on an invalid pattern
func MustGate(enabled bool, patterns []string) *Gate {
	g, err := NewGate(enabled, patterns)
	if err != nil {
		panic(err)
	}
	return g
}

// Enabled reports whether the gate classifies at all
func (g *Gate) Enabled() bool {
	return g.enabled
}

// Patterns returns the configured patterns in evaluation order
func (g *Gate) Patterns() []string {
	out := make([]string, len(g.matchers))
	for i, m := range g.matchers {
		out[i] = m.pattern
	}
	return out
}

// Classify evaluates command against the patterns in order
func (g *Gate) Classify(command string) Verdict {
	if !g.enabled {
		return Verdict{}
	}

	for _, m := range g.matchers {
		if m.re.MatchString(command) {
			return Verdict{Destructive: true, Pattern: m.pattern}
		}
	}
	return Verdict{}
}
