package conversation

import "testing"

func TestIsOptOutMatchesPhrases(t *testing.T) {
	cases := []string{
		"STOP",
		"stop",
		"Please stop texting me",
		"UNSUBSCRIBE",
		"remove me from your list",
		"take me off this list",
		"I want to opt out",
		"leave me alone",
		"don't text me again",
		"dont text me",
		"no more messages please",
		"quit texting me",
	}
	for _, body := range cases {
		if !IsOptOut(body) {
			t.Fatalf("expected opt-out for %q", body)
		}
	}
}

func TestIsOptOutIgnoresNormalReplies(t *testing.T) {
	cases := []string{
		"Yes, I'm interested in a quote",
		"What would a new roof cost?",
		"Call me tomorrow afternoon",
		"",
	}
	for _, body := range cases {
		if IsOptOut(body) {
			t.Fatalf("expected no opt-out for %q", body)
		}
	}
}
