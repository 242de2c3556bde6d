package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"fieldops_backend/internal/ai"
	"fieldops_backend/internal/leads/domain"
	"fieldops_backend/platform/apperr"
	"fieldops_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	conv     *Conversation
	appended []AppendParams

	closed       bool
	closedStatus Status
	closedWith   *Analysis
}

func (f *fakeStore) GetActiveByPhone(_ context.Context, phoneNumber string) (*Conversation, error) {
	if f.conv == nil || f.conv.Phone != phoneNumber {
		return nil, ErrNotFound
	}
	return f.conv, nil
}

func (f *fakeStore) AppendMessage(_ context.Context, _ uuid.UUID, params AppendParams) (int, error) {
	f.appended = append(f.appended, params)
	f.conv.MessageCount++
	return f.conv.MessageCount, nil
}

func (f *fakeStore) Close(_ context.Context, _ uuid.UUID, status Status, analysis *Analysis) error {
	f.closed = true
	f.closedStatus = status
	f.closedWith = analysis
	return nil
}

type fakeLeads struct {
	lead *domain.Lead

	contacted       bool
	contactedCount  int
	outcomeRecorded string
	quality         *domain.Quality
	removeFromList  bool
	mirroredCount   int
}

func (f *fakeLeads) GetByID(_ context.Context, _ uuid.UUID) (*domain.Lead, error) {
	return f.lead, nil
}

func (f *fakeLeads) MarkContacted(_ context.Context, _ uuid.UUID, _ time.Time, messageCount int) error {
	f.contacted = true
	f.contactedCount = messageCount
	return nil
}

func (f *fakeLeads) RecordConversationOutcome(_ context.Context, _ uuid.UUID, outcome string, quality *domain.Quality, removeFromList bool, messageCount int, _ time.Time) error {
	f.outcomeRecorded = outcome
	f.quality = quality
	f.removeFromList = removeFromList
	f.mirroredCount = messageCount
	return nil
}

type fakeAI struct {
	reply      ai.Reply
	replyErr   error
	analysis   ai.Analysis
	analyzeErr error

	replyCalls   int
	analyzeCalls int
}

func (f *fakeAI) GenerateReply(_ context.Context, _ ai.ReplyRequest) (ai.Reply, error) {
	f.replyCalls++
	return f.reply, f.replyErr
}

func (f *fakeAI) Analyze(_ context.Context, _ []ai.HistoryMessage) (ai.Analysis, error) {
	f.analyzeCalls++
	return f.analysis, f.analyzeErr
}

type fakeSender struct {
	sent []string
	fail bool
}

func (f *fakeSender) Send(_ context.Context, _ string, body string) (string, error) {
	if f.fail {
		return "", errors.New("provider unavailable")
	}
	f.sent = append(f.sent, body)
	return "msg-1", nil
}

const testPhone = "+14055550100"

func activeConversation(messageCount int) *Conversation {
	return &Conversation{
		ID:           uuid.New(),
		LeadID:       uuid.New(),
		Phone:        testPhone,
		Status:       StatusActive,
		MessageCount: messageCount,
	}
}

func testLead() *domain.Lead {
	return &domain.Lead{
		ID:        uuid.New(),
		FirstName: "Dana",
		City:      "Edmond",
		State:     "OK",
		Status:    domain.StatusAssigned,
	}
}

func newTestService(store *fakeStore, leads *fakeLeads, aiClient *fakeAI, sender *fakeSender) *Service {
	return NewService(store, leads, aiClient, sender, nil, logger.New("test"))
}

func TestHandleInboundNoActiveConversation(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, &fakeLeads{lead: testLead()}, &fakeAI{}, &fakeSender{})

	if err := svc.HandleInbound(context.Background(), testPhone, "hello"); err != nil {
		t.Fatalf("expected silent drop, got %v", err)
	}
	if len(store.appended) != 0 {
		t.Fatalf("expected no append without active conversation")
	}
}

func TestHandleInboundOptOut(t *testing.T) {
	store := &fakeStore{conv: activeConversation(2)}
	leads := &fakeLeads{lead: testLead()}
	aiClient := &fakeAI{}
	sender := &fakeSender{}
	svc := newTestService(store, leads, aiClient, sender)

	if err := svc.HandleInbound(context.Background(), testPhone, "STOP"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if aiClient.replyCalls != 0 || aiClient.analyzeCalls != 0 {
		t.Fatalf("expected no AI involvement in opt-out handling")
	}
	if len(sender.sent) != 1 || sender.sent[0] != OptOutReply {
		t.Fatalf("expected fixed courtesy reply, got %v", sender.sent)
	}
	if !store.closed || store.closedStatus != StatusOptedOut {
		t.Fatalf("expected conversation closed as opted_out, got %v %s", store.closed, store.closedStatus)
	}
	if !leads.removeFromList {
		t.Fatalf("expected removeFromList mirrored onto lead")
	}
	if leads.outcomeRecorded != "opted_out" {
		t.Fatalf("expected opted_out outcome, got %q", leads.outcomeRecorded)
	}
	if leads.mirroredCount != 4 {
		t.Fatalf("expected message count mirrored onto lead, got %d", leads.mirroredCount)
	}

	// Inbound message plus courtesy reply are both in the log.
	if len(store.appended) != 2 {
		t.Fatalf("expected 2 appended messages, got %d", len(store.appended))
	}
	if store.appended[0].Role != RoleCustomer || store.appended[0].DeliveryStatus != DeliveryReceived {
		t.Fatalf("unexpected inbound append: %+v", store.appended[0])
	}
	if store.appended[1].Role != RoleAssistant {
		t.Fatalf("unexpected reply append: %+v", store.appended[1])
	}
}

func TestHandleInboundGeneratesReply(t *testing.T) {
	store := &fakeStore{conv: activeConversation(2)}
	leads := &fakeLeads{lead: testLead()}
	aiClient := &fakeAI{reply: ai.Reply{Message: "Happy to help! What's your timeline?"}}
	sender := &fakeSender{}
	svc := newTestService(store, leads, aiClient, sender)

	if err := svc.HandleInbound(context.Background(), testPhone, "tell me more"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !leads.contacted {
		t.Fatalf("expected lead marked contacted")
	}
	// The inbound message is the third entry in the log.
	if leads.contactedCount != 3 {
		t.Fatalf("expected running count mirrored on contact, got %d", leads.contactedCount)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one outbound reply, got %d", len(sender.sent))
	}
	if store.closed {
		t.Fatalf("expected conversation still active")
	}
	if store.appended[1].DeliveryStatus != DeliverySent {
		t.Fatalf("expected reply marked sent, got %q", store.appended[1].DeliveryStatus)
	}
}

func TestHandleInboundAIFailureKeepsConversationResumable(t *testing.T) {
	store := &fakeStore{conv: activeConversation(2)}
	aiClient := &fakeAI{replyErr: errors.New("model overloaded")}
	svc := newTestService(store, &fakeLeads{lead: testLead()}, aiClient, &fakeSender{})

	err := svc.HandleInbound(context.Background(), testPhone, "tell me more")
	if err == nil {
		t.Fatalf("expected error surfaced on AI failure")
	}
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable error kind, got %v", err)
	}
	if store.closed {
		t.Fatalf("expected conversation left open after AI failure")
	}
	// The inbound message was persisted before the failure.
	if len(store.appended) != 1 || store.appended[0].Role != RoleCustomer {
		t.Fatalf("expected only the inbound message appended, got %+v", store.appended)
	}
}

func TestHandleInboundDispatchFailureStillAppends(t *testing.T) {
	store := &fakeStore{conv: activeConversation(2)}
	aiClient := &fakeAI{reply: ai.Reply{Message: "reply"}}
	svc := newTestService(store, &fakeLeads{lead: testLead()}, aiClient, &fakeSender{fail: true})

	if err := svc.HandleInbound(context.Background(), testPhone, "tell me more"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.appended) != 2 {
		t.Fatalf("expected inbound and failed reply appended, got %d", len(store.appended))
	}
	if store.appended[1].DeliveryStatus != DeliveryFailed {
		t.Fatalf("expected reply marked failed, got %q", store.appended[1].DeliveryStatus)
	}
}

func TestHandleInboundShouldEndTriggersAnalysis(t *testing.T) {
	store := &fakeStore{conv: activeConversation(4)}
	leads := &fakeLeads{lead: testLead()}
	aiClient := &fakeAI{
		reply: ai.Reply{Message: "Great, someone will call you!", ShouldEnd: true},
		analysis: ai.Analysis{
			Outcome:       "qualified",
			InterestLevel: "high",
			ProjectType:   "roofing",
		},
	}
	svc := newTestService(store, leads, aiClient, &fakeSender{})

	if err := svc.HandleInbound(context.Background(), testPhone, "sounds good"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if aiClient.analyzeCalls != 1 {
		t.Fatalf("expected analysis on ending, got %d calls", aiClient.analyzeCalls)
	}
	if !store.closed || store.closedStatus != StatusCompleted {
		t.Fatalf("expected conversation completed, got %v %s", store.closed, store.closedStatus)
	}
	if store.closedWith == nil || store.closedWith.Outcome != "qualified" {
		t.Fatalf("expected analysis recorded, got %+v", store.closedWith)
	}
	if leads.outcomeRecorded != "qualified" {
		t.Fatalf("expected outcome mirrored onto lead, got %q", leads.outcomeRecorded)
	}
	if leads.quality == nil || *leads.quality != domain.QualityHot {
		t.Fatalf("expected hot quality from high interest, got %v", leads.quality)
	}
	// 4 stored + inbound + reply.
	if leads.mirroredCount != 6 {
		t.Fatalf("expected final message count mirrored onto lead, got %d", leads.mirroredCount)
	}
}

func TestHandleInboundMessageCapForcesEnd(t *testing.T) {
	// 8 stored messages; inbound makes 9, the reply makes 10. The AI does
	// not ask to end, the cap does.
	store := &fakeStore{conv: activeConversation(8)}
	leads := &fakeLeads{lead: testLead()}
	aiClient := &fakeAI{
		reply:    ai.Reply{Message: "thanks!", ShouldEnd: false},
		analysis: ai.Analysis{Outcome: "completed", InterestLevel: "medium"},
	}
	svc := newTestService(store, leads, aiClient, &fakeSender{})

	if err := svc.HandleInbound(context.Background(), testPhone, "ok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !store.closed || store.closedStatus != StatusCompleted {
		t.Fatalf("expected forced completion at message cap")
	}
	if store.conv.MessageCount != MaxMessages {
		t.Fatalf("expected message count at cap, got %d", store.conv.MessageCount)
	}
}

func TestHandleInboundAnalysisFailureStillCloses(t *testing.T) {
	store := &fakeStore{conv: activeConversation(4)}
	leads := &fakeLeads{lead: testLead()}
	aiClient := &fakeAI{
		reply:      ai.Reply{Message: "bye", ShouldEnd: true},
		analyzeErr: errors.New("model overloaded"),
	}
	svc := newTestService(store, leads, aiClient, &fakeSender{})

	if err := svc.HandleInbound(context.Background(), testPhone, "bye"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !store.closed || store.closedStatus != StatusCompleted {
		t.Fatalf("expected conversation closed despite analysis failure")
	}
	if store.closedWith != nil {
		t.Fatalf("expected no analysis recorded on failure, got %+v", store.closedWith)
	}
	if leads.outcomeRecorded != "completed" {
		t.Fatalf("expected fallback outcome, got %q", leads.outcomeRecorded)
	}
}

func TestMessageCountMatchesAppendedLog(t *testing.T) {
	store := &fakeStore{conv: activeConversation(0)}
	aiClient := &fakeAI{reply: ai.Reply{Message: "reply"}}
	svc := newTestService(store, &fakeLeads{lead: testLead()}, aiClient, &fakeSender{})

	if err := svc.HandleInbound(context.Background(), testPhone, "first"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.conv.MessageCount != len(store.appended) {
		t.Fatalf("message count %d diverged from log length %d", store.conv.MessageCount, len(store.appended))
	}
}
