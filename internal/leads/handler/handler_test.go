package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fieldops_backend/internal/assignment"
	"fieldops_backend/internal/conversation"
	"fieldops_backend/internal/leads/domain"
	"fieldops_backend/internal/leads/repository"
	"fieldops_backend/platform/apperr"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeLeadStore struct {
	lead      *domain.Lead
	getErr    error
	createErr error
	returnErr error
}

func (f *fakeLeadStore) Create(_ context.Context, _ repository.CreateParams) (*domain.Lead, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.lead, nil
}

func (f *fakeLeadStore) GetByID(_ context.Context, _ uuid.UUID) (*domain.Lead, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.lead, nil
}

func (f *fakeLeadStore) ReturnToPool(_ context.Context, _ uuid.UUID) error {
	return f.returnErr
}

type fakeAssigner struct {
	result assignment.Result
	err    error
}

func (f *fakeAssigner) Assign(_ context.Context, _ uuid.UUID, _ domain.AssigneeKind) (assignment.Result, error) {
	return f.result, f.err
}

type fakeConversations struct {
	conv *conversation.Conversation
	err  error
}

func (f *fakeConversations) GetLatestByLeadID(_ context.Context, _ uuid.UUID) (*conversation.Conversation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.conv, nil
}

type fakeInbound struct {
	from string
	body string
	err  error
}

func (f *fakeInbound) HandleInbound(_ context.Context, fromPhone, body string) error {
	f.from = fromPhone
	f.body = body
	return f.err
}

func testRouter(store *fakeLeadStore, assigner *fakeAssigner, convs *fakeConversations, inbound *fakeInbound) *gin.Engine {
	gin.SetMode(gin.TestMode)

	h := New(store, assigner, convs, inbound, nil, validator.New(), logger.New("test"))

	engine := gin.New()
	group := engine.Group("/leads")
	group.GET("/:leadId", h.HandleGet)
	group.POST("/:leadId/assign", h.HandleAssign)
	group.POST("/:leadId/return", h.HandleReturnToPool)
	group.GET("/:leadId/conversation", h.HandleGetConversation)
	group.POST("/:leadId/conversation/simulate", h.HandleSimulateInbound)
	return engine
}

func testStoredLead() *domain.Lead {
	return &domain.Lead{
		ID:        uuid.New(),
		FirstName: "Dana",
		Phone:     "+14055550100",
		Zip:       "73012",
		Status:    domain.StatusAssigned,
	}
}

func TestHandleGetNotFound(t *testing.T) {
	router := testRouter(&fakeLeadStore{getErr: repository.ErrNotFound}, &fakeAssigner{}, &fakeConversations{}, &fakeInbound{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/leads/"+uuid.NewString(), nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleGetStorageFailureIsInternal(t *testing.T) {
	router := testRouter(&fakeLeadStore{getErr: errors.New("connection refused")}, &fakeAssigner{}, &fakeConversations{}, &fakeInbound{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/leads/"+uuid.NewString(), nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for a storage failure, got %d", rec.Code)
	}
}

func TestHandleAssignStorageFailureIsInternal(t *testing.T) {
	router := testRouter(&fakeLeadStore{lead: testStoredLead()}, &fakeAssigner{err: errors.New("connection refused")}, &fakeConversations{}, &fakeInbound{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/leads/"+uuid.NewString()+"/assign", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for a storage failure, got %d", rec.Code)
	}
}

func TestHandleAssignMissingLead(t *testing.T) {
	router := testRouter(&fakeLeadStore{}, &fakeAssigner{err: repository.ErrNotFound}, &fakeConversations{}, &fakeInbound{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/leads/"+uuid.NewString()+"/assign", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing lead, got %d", rec.Code)
	}
}

func TestHandleSimulateInbound(t *testing.T) {
	lead := testStoredLead()
	inbound := &fakeInbound{}
	router := testRouter(&fakeLeadStore{lead: lead}, &fakeAssigner{}, &fakeConversations{}, inbound)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/leads/"+lead.ID.String()+"/conversation/simulate",
		strings.NewReader(`{"body":"tell me more"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if inbound.from != lead.Phone || inbound.body != "tell me more" {
		t.Fatalf("expected inbound fed with lead phone and body, got %q %q", inbound.from, inbound.body)
	}
}

func TestHandleSimulateInboundProviderFailure(t *testing.T) {
	lead := testStoredLead()
	inbound := &fakeInbound{err: apperr.Wrap(apperr.KindUnavailable, "reply generation failed", errors.New("model overloaded"))}
	router := testRouter(&fakeLeadStore{lead: lead}, &fakeAssigner{}, &fakeConversations{}, inbound)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/leads/"+lead.ID.String()+"/conversation/simulate",
		strings.NewReader(`{"body":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for a provider failure, got %d", rec.Code)
	}
}

func TestHandleSimulateInboundRequiresPhone(t *testing.T) {
	lead := testStoredLead()
	lead.Phone = ""
	router := testRouter(&fakeLeadStore{lead: lead}, &fakeAssigner{}, &fakeConversations{}, &fakeInbound{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/leads/"+lead.ID.String()+"/conversation/simulate",
		strings.NewReader(`{"body":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a phoneless lead, got %d", rec.Code)
	}
}

func TestHandleGetConversationNotFound(t *testing.T) {
	router := testRouter(&fakeLeadStore{lead: testStoredLead()}, &fakeAssigner{}, &fakeConversations{err: conversation.ErrNotFound}, &fakeInbound{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/leads/"+uuid.NewString()+"/conversation", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
