// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"fieldops_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// LeadCaptured is published when a new lead enters the system
// (webhook form submission or manual creation).
type LeadCaptured struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Phone  string    `json:"phone"`
	Zip    string    `json:"zip"`
	Source string    `json:"source,omitempty"`
}

func (e LeadCaptured) EventName() string { return "leads.captured" }

// LeadAssigned is published when the assignment engine assigns a lead.
type LeadAssigned struct {
	BaseEvent
	LeadID        uuid.UUID `json:"leadId"`
	AssigneeID    uuid.UUID `json:"assigneeId"`
	AssigneeKind  string    `json:"assigneeKind"`
	DistanceMiles float64   `json:"distanceMiles"`
}

func (e LeadAssigned) EventName() string { return "leads.assigned" }

// OutreachExhausted is published when a channel's attempt cap is reached
// and no further automated contact will be attempted.
type OutreachExhausted struct {
	BaseEvent
	LeadID  uuid.UUID `json:"leadId"`
	Channel string    `json:"channel"`
	Reason  string    `json:"reason"`
}

func (e OutreachExhausted) EventName() string { return "outreach.exhausted" }

// ConversationEnded is published when a conversation reaches a terminal state.
type ConversationEnded struct {
	BaseEvent
	ConversationID uuid.UUID `json:"conversationId"`
	LeadID         uuid.UUID `json:"leadId"`
	Status         string    `json:"status"`
	Outcome        string    `json:"outcome,omitempty"`
}

func (e ConversationEnded) EventName() string { return "conversations.ended" }
