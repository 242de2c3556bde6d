// Package conversation owns the lifecycle of one SMS outreach thread:
// inbound replies, AI-generated outbound replies, opt-out handling,
// termination, and the structured end-of-conversation analysis.
package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Status is the conversation lifecycle status.
type Status string

const (
	StatusPending      Status = "pending"
	StatusActive       Status = "active"
	StatusCompleted    Status = "completed"
	StatusOptedOut     Status = "opted_out"
	StatusUnresponsive Status = "unresponsive"
)

// Terminal reports whether no further inbound message may be appended.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusOptedOut || s == StatusUnresponsive
}

// Message roles.
const (
	RoleAssistant = "assistant"
	RoleCustomer  = "customer"
)

// Message delivery statuses.
const (
	DeliverySent     = "sent"
	DeliveryFailed   = "failed"
	DeliveryReceived = "received"
)

// MaxMessages is the hard cap on log length. A conversation is forced to
// end at this size regardless of the AI's "should end" signal; it is an
// independent safety net against runaway loops.
const MaxMessages = 10

// OptOutReply is the fixed courtesy confirmation sent on opt-out. It is
// deterministic: opt-out handling never depends on a generative step.
const OptOutReply = "You've been removed from our list and won't hear from us again. Sorry for the bother, and have a great day!"

// Message is one entry in the conversation log.
type Message struct {
	ID                uuid.UUID `json:"id"`
	ConversationID    uuid.UUID `json:"conversationId"`
	Role              string    `json:"role"`
	Body              string    `json:"body"`
	ProviderMessageID *string   `json:"providerMessageId,omitempty"`
	DeliveryStatus    string    `json:"deliveryStatus"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Analysis is the structured classification recorded when a conversation
// reaches a terminal or near-terminal state.
type Analysis struct {
	Outcome        string `json:"outcome"`
	InterestLevel  string `json:"interestLevel,omitempty"`
	ProjectType    string `json:"projectType,omitempty"`
	Timeline       string `json:"timeline,omitempty"`
	RemoveFromList bool   `json:"removeFromList"`
}

// Conversation is one outreach thread tied to a lead.
// Invariant: MessageCount always equals len(Messages).
type Conversation struct {
	ID           uuid.UUID `json:"id"`
	LeadID       uuid.UUID `json:"leadId"`
	Phone        string    `json:"phone"`
	Status       Status    `json:"status"`
	MessageCount int       `json:"messageCount"`
	Analysis     *Analysis `json:"analysis,omitempty"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
