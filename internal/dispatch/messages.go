package dispatch

import (
	"strings"

	"grouplock/internal/runstate"
)

// DefaultMessage is sent when no messages are configured.
const DefaultMessage = "Hello!"

// ParseMessages splits newline separated text into trimmed, non-empty messages.
func ParseMessages(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// NextMessage returns the message at the state's rotation index and advances
// the index.
func NextMessage(messages []string, st *runstate.State) string {
	idx := st.NextRotation()
	if len(messages) == 0 {
		return DefaultMessage
	}
	return messages[idx%uint64(len(messages))]
}

// Compose prepends the optional name prefix.
func Compose(prefix, msg string) string {
	return strings.TrimSpace(prefix + " " + msg)
}

// Preview returns at most n runes of s.
func Preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
