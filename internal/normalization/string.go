package normalization

import (
	"strings"
	"unicode"
)

func ParseInputString(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// NameID maps a display name to the stable identifier the taxonomy is keyed
// by: lowercase, runs of whitespace collapsed to a single underscore, every
// other non-alphanumeric rune dropped. Every writer that touches topics or
// chapters must derive IDs through this function so that independently
// created entries with the same name collide into one row.
func NameID(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	b.Grow(len(lowered))
	pendingSep := false
	for _, r := range lowered {
		switch {
		case unicode.IsSpace(r):
			pendingSep = b.Len() > 0
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep {
				b.WriteByte('_')
				pendingSep = false
			}
			b.WriteRune(r)
		default:
			// punctuation and symbols contribute nothing, not even a separator
		}
	}
	return b.String()
}
