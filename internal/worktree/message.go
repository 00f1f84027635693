package worktree

import (
	"fmt"
	"regexp"
)

var ticketRegex = regexp.MustCompile(`^[A-Z]+-[0-9]+`)

// TicketPrefix returns the ticket code a branch name starts with, such as
// "ABC-123" for "ABC-123-user-auth", or "" when there is none.
func TicketPrefix(branch string) string {
	return ticketRegex.FindString(branch)
}

// FormatMessage prefixes msg with "<prefix>: " when prefix is non-empty.
func FormatMessage(prefix, msg string) string {
	if prefix == "" {
		return msg
	}
	return prefix + ": " + msg
}

// SyncLabel renders a commits-behind count for status output.
func SyncLabel(behind int) string {
	if behind == 0 {
		return "✓ current"
	}
	return fmt.Sprintf("↓ %d behind", behind)
}
