package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"fieldops_backend/internal/ai"
	"fieldops_backend/internal/events"
	"fieldops_backend/internal/leads/domain"
	"fieldops_backend/platform/apperr"
	"fieldops_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the conversation persistence the state machine drives.
type Store interface {
	GetActiveByPhone(ctx context.Context, phoneNumber string) (*Conversation, error)
	AppendMessage(ctx context.Context, convID uuid.UUID, params AppendParams) (int, error)
	Close(ctx context.Context, convID uuid.UUID, status Status, analysis *Analysis) error
}

// LeadStore is the slice of the lead repository the state machine owns:
// contact and conversation mirror fields only.
type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error)
	MarkContacted(ctx context.Context, id uuid.UUID, at time.Time, messageCount int) error
	RecordConversationOutcome(ctx context.Context, id uuid.UUID, outcome string, quality *domain.Quality, removeFromList bool, messageCount int, at time.Time) error
}

// Sender dispatches one outbound message through the channel provider.
type Sender interface {
	Send(ctx context.Context, toNumber string, body string) (string, error)
}

// Service is the conversation state machine. Inbound messages for the same
// conversation are serialized with a per-phone mutex so two overlapping AI
// calls can never both append conflicting "next" messages.
type Service struct {
	store     Store
	leadStore LeadStore
	ai        ai.Client
	sender    Sender
	bus       events.Bus
	log       *logger.Logger
	locks     keyedMutex
}

func NewService(store Store, leadStore LeadStore, aiClient ai.Client, sender Sender, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		leadStore: leadStore,
		ai:        aiClient,
		sender:    sender,
		bus:       bus,
		log:       log,
	}
}

// HandleInbound processes one inbound customer message. Failures in the AI
// capability or the dispatch call never corrupt state: the appended inbound
// message is retained and the conversation stays resumable.
func (s *Service) HandleInbound(ctx context.Context, fromPhone, body string) error {
	unlock := s.locks.lock(fromPhone)
	defer unlock()

	conv, err := s.store.GetActiveByPhone(ctx, fromPhone)
	if errors.Is(err, ErrNotFound) {
		s.log.Info("inbound message without active conversation", "from", fromPhone)
		return nil
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "could not load conversation", err)
	}

	count, err := s.store.AppendMessage(ctx, conv.ID, AppendParams{
		Role:           RoleCustomer,
		Body:           body,
		DeliveryStatus: DeliveryReceived,
	})
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "could not append inbound message", err)
	}

	now := time.Now()
	if err := s.leadStore.MarkContacted(ctx, conv.LeadID, now, count); err != nil {
		s.log.DatabaseError("mark lead contacted", err)
	}

	if IsOptOut(body) {
		return s.handleOptOut(ctx, conv)
	}

	history := s.history(conv, body, now)

	reply, err := s.generateReply(ctx, conv, history)
	if err != nil {
		// Inbound message is already persisted; the conversation resumes
		// on the next inbound message.
		return err
	}

	count, err = s.dispatchReply(ctx, conv, reply.Message)
	if err != nil {
		return err
	}

	// Two independent end guards: the capability's textual heuristic, and
	// the hard message cap.
	ending := reply.ShouldEnd || count >= MaxMessages
	if !ending {
		s.log.ConversationEvent(conv.ID.String(), "reply_sent", string(StatusActive), count)
		return nil
	}

	history = append(history, ai.HistoryMessage{Role: RoleAssistant, Content: reply.Message, Timestamp: time.Now()})
	return s.complete(ctx, conv, history, count)
}

// handleOptOut terminates the conversation deterministically: fixed courtesy
// reply, opted_out status, removeFromList mirrored onto the lead. No AI call.
func (s *Service) handleOptOut(ctx context.Context, conv *Conversation) error {
	status := DeliverySent
	var providerID *string
	if id, err := s.sender.Send(ctx, conv.Phone, OptOutReply); err != nil {
		s.log.ProviderError("sms", "send opt-out confirmation", err)
		status = DeliveryFailed
	} else if id != "" {
		providerID = &id
	}

	count, err := s.store.AppendMessage(ctx, conv.ID, AppendParams{
		Role:              RoleAssistant,
		Body:              OptOutReply,
		ProviderMessageID: providerID,
		DeliveryStatus:    status,
	})
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "could not append opt-out confirmation", err)
	}

	analysis := &Analysis{Outcome: "opted_out", RemoveFromList: true}
	if err := s.store.Close(ctx, conv.ID, StatusOptedOut, analysis); err != nil {
		return apperr.Wrap(apperr.KindInternal, "could not close conversation", err)
	}

	if err := s.leadStore.RecordConversationOutcome(ctx, conv.LeadID, "opted_out", nil, true, count, time.Now()); err != nil {
		s.log.DatabaseError("record opt-out on lead", err)
	}

	s.log.ConversationEvent(conv.ID.String(), "opted_out", string(StatusOptedOut), count)
	s.publishEnded(ctx, conv, StatusOptedOut, "opted_out")
	return nil
}

func (s *Service) generateReply(ctx context.Context, conv *Conversation, history []ai.HistoryMessage) (ai.Reply, error) {
	lead, err := s.leadStore.GetByID(ctx, conv.LeadID)
	if err != nil {
		return ai.Reply{}, apperr.Wrap(apperr.KindInternal, "could not load lead for reply context", err)
	}

	reply, err := s.ai.GenerateReply(ctx, ai.ReplyRequest{
		CustomerName: lead.FullName(),
		ContextNotes: leadContextNotes(lead),
		History:      history,
	})
	if err != nil {
		return ai.Reply{}, apperr.Wrap(apperr.KindUnavailable, "reply generation failed", err)
	}

	return reply, nil
}

// dispatchReply sends the outbound reply and appends it to the log. Dispatch
// failure still appends the message marked failed; dropping state silently
// would be worse than a missed delivery.
func (s *Service) dispatchReply(ctx context.Context, conv *Conversation, body string) (int, error) {
	status := DeliverySent
	var providerID *string
	if id, err := s.sender.Send(ctx, conv.Phone, body); err != nil {
		s.log.ProviderError("sms", "send reply", err)
		status = DeliveryFailed
	} else if id != "" {
		providerID = &id
	}

	count, err := s.store.AppendMessage(ctx, conv.ID, AppendParams{
		Role:              RoleAssistant,
		Body:              body,
		ProviderMessageID: providerID,
		DeliveryStatus:    status,
	})
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "could not append outbound message", err)
	}

	return count, nil
}

// complete closes the conversation and mirrors the analysis onto the lead.
// An analysis failure does not reopen the conversation; the thread still
// terminates, just without the structured classification.
func (s *Service) complete(ctx context.Context, conv *Conversation, history []ai.HistoryMessage, count int) error {
	var analysis *Analysis
	outcome := "completed"

	result, err := s.ai.Analyze(ctx, history)
	if err != nil {
		s.log.Warn("conversation analysis failed", "conversationId", conv.ID, "error", err)
	} else {
		analysis = &Analysis{
			Outcome:        result.Outcome,
			InterestLevel:  result.InterestLevel,
			ProjectType:    result.ProjectType,
			Timeline:       result.Timeline,
			RemoveFromList: result.RemoveFromList,
		}
		outcome = result.Outcome
	}

	if err := s.store.Close(ctx, conv.ID, StatusCompleted, analysis); err != nil {
		return apperr.Wrap(apperr.KindInternal, "could not close conversation", err)
	}

	var quality *domain.Quality
	if analysis != nil {
		if q, ok := domain.QualityFromInterest(analysis.InterestLevel); ok {
			quality = &q
		}
	}
	removeFromList := analysis != nil && analysis.RemoveFromList

	if err := s.leadStore.RecordConversationOutcome(ctx, conv.LeadID, outcome, quality, removeFromList, count, time.Now()); err != nil {
		s.log.DatabaseError("record conversation outcome on lead", err)
	}

	s.log.ConversationEvent(conv.ID.String(), "completed", string(StatusCompleted), count)
	s.publishEnded(ctx, conv, StatusCompleted, outcome)
	return nil
}

func (s *Service) publishEnded(ctx context.Context, conv *Conversation, status Status, outcome string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.ConversationEnded{
		BaseEvent:      events.NewBaseEvent(),
		ConversationID: conv.ID,
		LeadID:         conv.LeadID,
		Status:         string(status),
		Outcome:        outcome,
	})
}

// history converts the stored log plus the just-received inbound message
// into the capability's transcript form.
func (s *Service) history(conv *Conversation, inboundBody string, at time.Time) []ai.HistoryMessage {
	messages := make([]ai.HistoryMessage, 0, len(conv.Messages)+1)
	for _, msg := range conv.Messages {
		messages = append(messages, ai.HistoryMessage{
			Role:      msg.Role,
			Content:   msg.Body,
			Timestamp: msg.CreatedAt,
		})
	}
	return append(messages, ai.HistoryMessage{Role: RoleCustomer, Content: inboundBody, Timestamp: at})
}

func leadContextNotes(lead *domain.Lead) string {
	notes := "Lead from " + lead.City + ", " + lead.State + "."
	if lead.Source != nil && *lead.Source != "" {
		notes += " Source: " + *lead.Source + "."
	}
	return notes
}

// keyedMutex serializes work per key (phone number). Entries are not
// reclaimed; channel identities are low-cardinality.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
