// Package ai wraps the AI text-generation capability behind a typed
// interface. The capability is opaque and non-deterministic: callers get a
// result-or-error and must never assume the provider's output parses
// cleanly. Malformed output is a recoverable error, not fatal.
package ai

import (
	"context"
	"time"
)

// HistoryMessage is one turn of the conversation transcript passed to the
// capability.
type HistoryMessage struct {
	Role      string    `json:"role"` // "assistant" or "customer"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ReplyRequest carries everything the reply capability needs.
type ReplyRequest struct {
	CustomerName string
	ContextNotes string
	History      []HistoryMessage
}

// Reply is the generated outbound message plus the capability's own
// textual heuristic for whether the conversation should end.
type Reply struct {
	Message   string `json:"message"`
	ShouldEnd bool   `json:"shouldEnd"`
}

// Analysis is the structured end-of-conversation classification.
type Analysis struct {
	Outcome        string `json:"outcome"`
	InterestLevel  string `json:"interestLevel"`
	ProjectType    string `json:"projectType"`
	Timeline       string `json:"timeline"`
	RemoveFromList bool   `json:"removeFromList"`
}

// Client is the AI text-generation capability.
type Client interface {
	GenerateReply(ctx context.Context, req ReplyRequest) (Reply, error)
	Analyze(ctx context.Context, history []HistoryMessage) (Analysis, error)
}
