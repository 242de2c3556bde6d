package conversation

import "strings"

// optOutPhrases are matched case-insensitively as substrings of the inbound
// body. Detection is deterministic on purpose: honoring an opt-out must
// never depend on a generative step that could fail or drift.
var optOutPhrases = []string{
	"stop",
	"unsubscribe",
	"remove me",
	"take me off",
	"opt out",
	"leave me alone",
	"don't text",
	"dont text",
	"no more",
	"quit texting",
}

// IsOptOut reports whether the inbound message requests cessation of contact.
func IsOptOut(body string) bool {
	lowered := strings.ToLower(body)
	for _, phrase := range optOutPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}
