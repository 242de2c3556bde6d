// Package webhook provides the public ingress endpoints: the signed lead-gen
// capture webhook and the inbound SMS webhook.
package webhook

import (
	"context"
	"time"

	"fieldops_backend/internal/events"
	"fieldops_backend/internal/leads/domain"
	"fieldops_backend/internal/leads/repository"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/phone"
)

// First-touch scheduling offsets applied at capture. SMS goes out on the
// next batch; the call waits a few minutes so the text lands first.
const callTouchDelay = 5 * time.Minute

// LeadCreator is the slice of the lead repository the ingress needs.
type LeadCreator interface {
	Create(ctx context.Context, params repository.CreateParams) (*domain.Lead, error)
}

// InboundHandler consumes inbound SMS messages. Satisfied by the
// conversation service.
type InboundHandler interface {
	HandleInbound(ctx context.Context, fromPhone, body string) error
}

// LeadPayload is the lead-gen provider's capture payload.
type LeadPayload struct {
	FirstName string `json:"firstName" validate:"required,min=1,max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Phone     string `json:"phone" validate:"required,min=7,max=20"`
	Email     string `json:"email" validate:"omitempty,email"`
	Street    string `json:"street" validate:"max=200"`
	City      string `json:"city" validate:"max=100"`
	State     string `json:"state" validate:"max=50"`
	Zip       string `json:"zip" validate:"required,min=5,max=10"`
	Source    string `json:"source" validate:"max=100"`
}

// Service turns verified capture payloads into leads with first-touch
// outreach scheduled.
type Service struct {
	leads   LeadCreator
	inbound InboundHandler
	bus     events.Bus
	log     *logger.Logger
}

func NewService(leads LeadCreator, inbound InboundHandler, bus events.Bus, log *logger.Logger) *Service {
	return &Service{leads: leads, inbound: inbound, bus: bus, log: log}
}

// CaptureLead creates the lead and schedules its first touches. The SMS is
// due immediately; the call is staggered behind it.
func (s *Service) CaptureLead(ctx context.Context, payload LeadPayload) (*domain.Lead, error) {
	now := time.Now()
	smsAt := now
	callAt := now.Add(callTouchDelay)

	var email, source *string
	if payload.Email != "" {
		email = &payload.Email
	}
	if payload.Source != "" {
		source = &payload.Source
	}

	lead, err := s.leads.Create(ctx, repository.CreateParams{
		FirstName:       payload.FirstName,
		LastName:        payload.LastName,
		Phone:           phone.NormalizeE164(payload.Phone),
		Email:           email,
		Street:          payload.Street,
		City:            payload.City,
		State:           payload.State,
		Zip:             payload.Zip,
		Source:          source,
		ScheduledSMSAt:  &smsAt,
		ScheduledCallAt: &callAt,
	})
	if err != nil {
		s.log.DatabaseError("create lead from webhook", err)
		return nil, err
	}

	s.log.Info("lead captured", "leadId", lead.ID, "zip", lead.Zip, "source", payload.Source)

	if s.bus != nil {
		s.bus.Publish(ctx, events.LeadCaptured{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			Phone:     lead.Phone,
			Zip:       lead.Zip,
			Source:    payload.Source,
		})
	}

	return lead, nil
}

// HandleInboundSMS forwards one inbound message to the conversation state
// machine. Errors are logged, never surfaced: the provider retries on
// non-2xx, and a retried AI failure would double-process the message.
func (s *Service) HandleInboundSMS(ctx context.Context, fromPhone, body string) {
	normalized := phone.NormalizeE164(fromPhone)
	if err := s.inbound.HandleInbound(ctx, normalized, body); err != nil {
		s.log.Error("inbound sms processing failed", "from", normalized, "error", err)
	}
}
