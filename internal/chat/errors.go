package chat

import "strings"

// expectedFailures is the allow-list of delivery failures that are part of
// normal operation: stale buttons, users who blocked the bot, edits that
// change nothing. They are swallowed; anything else is logged as unexpected
// but still never unwinds a committed state transition.
var expectedFailures = []string{
	"message to edit not found",
	"message can't be edited",
	"message is not modified",
	"query is too old",
	"bot was blocked by the user",
	"chat not found",
	"message to delete not found",
	"user is deactivated",
	"retry after",
	"bad request",
	"forbidden",
}

// Expected reports whether a transport error is on the allow-list of
// ignorable delivery failures. A nil error is expected by definition.
func Expected(err error) bool {
	if err == nil {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range expectedFailures {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
