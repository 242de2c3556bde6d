// Package outreach runs due-outreach batches: it picks up leads whose
// channel due timestamp has arrived, applies the exit conditions, and
// dispatches the first-touch message or call.
package outreach

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fieldops_backend/internal/conversation"
	"fieldops_backend/internal/events"
	"fieldops_backend/internal/leads/domain"
	"fieldops_backend/internal/voice"
	"fieldops_backend/platform/config"
	"fieldops_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Exit and outcome reasons recorded on the lead's last-outcome field.
const (
	ReasonNoPhone      = "no_phone"
	ReasonOptedOut     = "opted_out"
	ReasonMaxAttempts  = "max_attempts"
	ReasonConvComplete = "conversation_completed"
	ReasonSent         = "sent"
	ReasonCallPlaced   = "call_placed"
	ReasonSendFailed   = "send_failed"
)

// LeadStore is the slice of the lead repository the scheduler drives.
type LeadStore interface {
	ListDueForOutreach(ctx context.Context, channel domain.Channel, now time.Time, limit int) ([]*domain.Lead, error)
	ClearDue(ctx context.Context, id uuid.UUID, channel domain.Channel, reason string) error
	RecordSendSuccess(ctx context.Context, id uuid.UUID, channel domain.Channel, outcome string) (int, error)
	RecordSendFailure(ctx context.Context, id uuid.UUID, channel domain.Channel, nextDue time.Time, reason string) (int, error)
}

// ConversationStore opens conversations for successful SMS first touches and
// answers the completed-conversation exit condition.
type ConversationStore interface {
	Create(ctx context.Context, leadID uuid.UUID, phoneNumber string, first conversation.AppendParams) (*conversation.Conversation, error)
	HasCompletedForLead(ctx context.Context, leadID uuid.UUID) (bool, error)
}

// SMSSender dispatches one outbound SMS.
type SMSSender interface {
	Send(ctx context.Context, toNumber string, body string) (string, error)
}

// VoiceDialer places one outbound call.
type VoiceDialer interface {
	CreateOutboundCall(ctx context.Context, toNumber string, metadata map[string]string) (voice.Call, error)
}

// BatchResult summarizes one batch run. Returned to cron callers as-is.
type BatchResult struct {
	Channel   string `json:"channel"`
	Due       int    `json:"due"`
	Sent      int    `json:"sent"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Exhausted int    `json:"exhausted"`
}

// Service runs due-outreach batches for both channels.
type Service struct {
	leadStore     LeadStore
	conversations ConversationStore
	sms           SMSSender
	dialer        VoiceDialer
	bus           events.Bus
	log           *logger.Logger

	batchSize   int
	workers     int
	sendTimeout time.Duration
}

func NewService(leadStore LeadStore, conversations ConversationStore, sms SMSSender, dialer VoiceDialer, bus events.Bus, cfg config.OutreachConfig, log *logger.Logger) *Service {
	return &Service{
		leadStore:     leadStore,
		conversations: conversations,
		sms:           sms,
		dialer:        dialer,
		bus:           bus,
		log:           log,
		batchSize:     cfg.GetOutreachBatchSize(),
		workers:       cfg.GetOutreachWorkers(),
		sendTimeout:   cfg.GetSendTimeout(),
	}
}

// RunDueOutreach processes one batch of due leads on a channel. A positive
// limit overrides the configured batch size, so triggers can carry their own
// bound. Each lead is handled independently: one lead's provider failure or
// database error never aborts the rest of the batch.
func (s *Service) RunDueOutreach(ctx context.Context, channel domain.Channel, limit int) (BatchResult, error) {
	if limit <= 0 {
		limit = s.batchSize
	}

	now := time.Now()
	due, err := s.leadStore.ListDueForOutreach(ctx, channel, now, limit)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list due leads: %w", err)
	}

	result := BatchResult{Channel: string(channel), Due: len(due)}
	if len(due) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)

	for _, lead := range due {
		lead := lead
		group.Go(func() error {
			outcome := s.processLead(groupCtx, channel, lead)
			mu.Lock()
			switch outcome {
			case ReasonSent, ReasonCallPlaced:
				result.Sent++
			case ReasonSendFailed:
				result.Failed++
			case ReasonMaxAttempts:
				result.Exhausted++
			default:
				result.Skipped++
			}
			mu.Unlock()
			return nil
		})
	}

	_ = group.Wait()

	s.log.Info("outreach batch complete",
		"channel", channel,
		"due", result.Due,
		"sent", result.Sent,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"exhausted", result.Exhausted,
	)
	return result, nil
}

// processLead applies exit conditions and dispatches one send. Returns the
// outcome reason for aggregation.
func (s *Service) processLead(ctx context.Context, channel domain.Channel, lead *domain.Lead) string {
	if reason, exhausted := s.exitCondition(ctx, channel, lead); reason != "" {
		if err := s.leadStore.ClearDue(ctx, lead.ID, channel, reason); err != nil {
			s.log.DatabaseError("clear outreach due", err)
		}
		if exhausted {
			s.publishExhausted(ctx, lead.ID, channel, reason)
			return ReasonMaxAttempts
		}
		s.log.Info("outreach skipped", "leadId", lead.ID, "channel", channel, "reason", reason)
		return reason
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	var sendErr error
	if channel == domain.ChannelCall {
		sendErr = s.placeCall(sendCtx, lead)
	} else {
		sendErr = s.sendSMS(sendCtx, lead)
	}

	if sendErr != nil {
		return s.recordFailure(ctx, channel, lead, sendErr)
	}

	outcome := ReasonSent
	if channel == domain.ChannelCall {
		outcome = ReasonCallPlaced
	}
	attempts, err := s.leadStore.RecordSendSuccess(ctx, lead.ID, channel, outcome)
	if err != nil {
		s.log.DatabaseError("record send success", err)
		return outcome
	}

	s.log.OutreachAttempt(string(channel), lead.ID.String(), outcome, attempts)
	return outcome
}

// exitCondition returns a non-empty reason when the lead must be dropped
// from the batch without a send. The second return marks exhaustion.
func (s *Service) exitCondition(ctx context.Context, channel domain.Channel, lead *domain.Lead) (string, bool) {
	if lead.Phone == "" {
		return ReasonNoPhone, false
	}
	if lead.RemoveFromList {
		return ReasonOptedOut, false
	}
	if lead.Attempts(channel) >= domain.MaxAttempts {
		return ReasonMaxAttempts, true
	}
	if channel == domain.ChannelSMS {
		completed, err := s.conversations.HasCompletedForLead(ctx, lead.ID)
		if err != nil {
			s.log.DatabaseError("check completed conversation", err)
			return "", false
		}
		if completed {
			return ReasonConvComplete, false
		}
	}
	return "", false
}

func (s *Service) sendSMS(ctx context.Context, lead *domain.Lead) error {
	body := introMessage(lead)
	providerID, err := s.sms.Send(ctx, lead.Phone, body)
	if err != nil {
		return err
	}

	var providerRef *string
	if providerID != "" {
		providerRef = &providerID
	}
	_, err = s.conversations.Create(ctx, lead.ID, lead.Phone, conversation.AppendParams{
		Role:              conversation.RoleAssistant,
		Body:              body,
		ProviderMessageID: providerRef,
		DeliveryStatus:    conversation.DeliverySent,
	})
	if err != nil {
		// The message left the provider; the attempt still counts.
		s.log.DatabaseError("create conversation for first touch", err)
	}
	return nil
}

func (s *Service) placeCall(ctx context.Context, lead *domain.Lead) error {
	_, err := s.dialer.CreateOutboundCall(ctx, lead.Phone, map[string]string{
		"leadId":   lead.ID.String(),
		"leadName": lead.FullName(),
	})
	return err
}

// recordFailure applies the fixed linear backoff, or clears the due
// timestamp when this failure lands on the attempt cap.
func (s *Service) recordFailure(ctx context.Context, channel domain.Channel, lead *domain.Lead, sendErr error) string {
	s.log.ProviderError(string(channel), "outreach send", sendErr)

	attempts, err := s.leadStore.RecordSendFailure(ctx, lead.ID, channel, time.Now().Add(domain.RetryDelay), ReasonSendFailed)
	if err != nil {
		s.log.DatabaseError("record send failure", err)
		return ReasonSendFailed
	}

	s.log.OutreachAttempt(string(channel), lead.ID.String(), ReasonSendFailed, attempts)
	if attempts >= domain.MaxAttempts {
		s.publishExhausted(ctx, lead.ID, channel, ReasonSendFailed)
	}
	return ReasonSendFailed
}

func (s *Service) publishExhausted(ctx context.Context, leadID uuid.UUID, channel domain.Channel, reason string) {
	s.log.Warn("outreach attempts exhausted", "leadId", leadID, "channel", channel, "reason", reason)
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.OutreachExhausted{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		Channel:   string(channel),
		Reason:    reason,
	})
}

// introMessage is the deterministic first-touch SMS. Follow-ups are
// AI-generated; the opener is fixed copy so batches never block on the
// generative capability.
func introMessage(lead *domain.Lead) string {
	name := lead.FirstName
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(
		"Hi %s! Thanks for your interest in a home project quote. A local specialist has your request - is now a good time to go over a few quick details by text?",
		name,
	)
}
