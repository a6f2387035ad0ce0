package config

import (
	"fmt"
	"strconv"
	"strings"
)

var namedKeys = map[string]byte{
	"esc":        0x1b,
	"escape":     0x1b,
	"ctrl+[":     0x1b,
	"ctrl+\\":    0x1c,
	"ctrl+]":     0x1d,
	"ctrl+^":     0x1e,
	"ctrl+_":     0x1f,
	"ctrl+space": 0x00,
	"ctrl+@":     0x00,
}

// ParseEscapeKey converts a key name into the byte sequence the terminal
// sends for it. Accepted forms are ctrl+<letter>, the named control keys
// above, and a single hex byte such as 0x18.
func ParseEscapeKey(name string) ([]byte, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("escape key must be set")
	}

	if b, ok := namedKeys[key]; ok {
		return []byte{b}, nil
	}

	if rest, ok := strings.CutPrefix(key, "ctrl+"); ok && len(rest) == 1 && rest[0] >= 'a' && rest[0] <= 'z' {
		return []byte{rest[0] - 'a' + 1}, nil
	}

	if hex, ok := strings.CutPrefix(key, "0x"); ok {
		v, err := strconv.ParseUint(hex, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid escape key %q: %w", name, err)
		}
		return []byte{byte(v)}, nil
	}

	return nil, fmt.Errorf("invalid escape key %q", name)
}
