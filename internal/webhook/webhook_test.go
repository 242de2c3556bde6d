package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fieldops_backend/internal/leads/domain"
	"fieldops_backend/internal/leads/repository"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestVerifySignature(t *testing.T) {
	secret := "shhh"
	body := []byte(`{"firstName":"Dana"}`)

	if !VerifySignature(secret, body, Sign(secret, body)) {
		t.Fatalf("expected valid signature to verify")
	}
	if !VerifySignature(secret, body, "sha256="+Sign(secret, body)) {
		t.Fatalf("expected prefixed signature to verify")
	}
	if VerifySignature(secret, body, Sign("other", body)) {
		t.Fatalf("expected wrong-secret signature to fail")
	}
	if VerifySignature(secret, []byte("tampered"), Sign(secret, body)) {
		t.Fatalf("expected tampered body to fail")
	}
	if VerifySignature(secret, body, "not-hex") {
		t.Fatalf("expected malformed signature to fail")
	}
	if VerifySignature("", body, Sign("", body)) {
		t.Fatalf("expected empty secret to always fail")
	}
	if VerifySignature(secret, body, "") {
		t.Fatalf("expected missing signature to fail")
	}
}

type fakeLeadCreator struct {
	created *repository.CreateParams
}

func (f *fakeLeadCreator) Create(_ context.Context, params repository.CreateParams) (*domain.Lead, error) {
	f.created = &params
	return &domain.Lead{
		ID:     uuid.New(),
		Phone:  params.Phone,
		Zip:    params.Zip,
		Status: domain.StatusNew,
	}, nil
}

type fakeInbound struct {
	from string
	body string
}

func (f *fakeInbound) HandleInbound(_ context.Context, fromPhone, body string) error {
	f.from = fromPhone
	f.body = body
	return nil
}

type webhookConfig struct {
	secret string
}

func (c webhookConfig) GetLeadWebhookSecret() string { return c.secret }

func newTestRouter(creator *fakeLeadCreator, inbound *fakeInbound, secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.New("test")
	service := NewService(creator, inbound, nil, log)
	h := NewHandler(service, webhookConfig{secret: secret}, validator.New(), log)

	engine := gin.New()
	engine.POST("/webhook/leads", h.HandleLeadCapture)
	engine.POST("/webhook/sms/inbound", h.HandleInboundSMS)
	return engine
}

func capturePayload() []byte {
	data, _ := json.Marshal(LeadPayload{
		FirstName: "Dana",
		LastName:  "Miller",
		Phone:     "(405) 555-0100",
		Zip:       "73012",
		City:      "Edmond",
		State:     "OK",
		Source:    "homeadvisor",
	})
	return data
}

func TestHandleLeadCaptureValidSignature(t *testing.T) {
	creator := &fakeLeadCreator{}
	router := newTestRouter(creator, &fakeInbound{}, "secret")

	body := capturePayload()
	req := httptest.NewRequest(http.MethodPost, "/webhook/leads", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, Sign("secret", body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if creator.created == nil {
		t.Fatalf("expected lead created")
	}
	if creator.created.Phone != "+14055550100" {
		t.Fatalf("expected normalized phone, got %q", creator.created.Phone)
	}
	if creator.created.ScheduledSMSAt == nil || creator.created.ScheduledCallAt == nil {
		t.Fatalf("expected first touches scheduled")
	}
	if !creator.created.ScheduledCallAt.After(*creator.created.ScheduledSMSAt) {
		t.Fatalf("expected call staggered after sms")
	}
}

func TestHandleLeadCaptureInvalidSignatureAcksButDrops(t *testing.T) {
	creator := &fakeLeadCreator{}
	router := newTestRouter(creator, &fakeInbound{}, "secret")

	body := capturePayload()
	req := httptest.NewRequest(http.MethodPost, "/webhook/leads", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, Sign("wrong-secret", body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 ack for invalid signature, got %d", rec.Code)
	}
	if creator.created != nil {
		t.Fatalf("expected payload dropped on invalid signature")
	}
}

func TestHandleLeadCaptureMissingSecretFailsClosed(t *testing.T) {
	creator := &fakeLeadCreator{}
	router := newTestRouter(creator, &fakeInbound{}, "")

	body := capturePayload()
	req := httptest.NewRequest(http.MethodPost, "/webhook/leads", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, Sign("", body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 ack, got %d", rec.Code)
	}
	if creator.created != nil {
		t.Fatalf("expected no processing without a configured secret")
	}
}

func TestHandleInboundSMSForwardsToConversation(t *testing.T) {
	inbound := &fakeInbound{}
	router := newTestRouter(&fakeLeadCreator{}, inbound, "secret")

	body, _ := json.Marshal(InboundSMSPayload{From: "(405) 555-0100", Body: "STOP"})
	req := httptest.NewRequest(http.MethodPost, "/webhook/sms/inbound", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if inbound.from != "+14055550100" {
		t.Fatalf("expected normalized sender, got %q", inbound.from)
	}
	if inbound.body != "STOP" {
		t.Fatalf("expected body forwarded, got %q", inbound.body)
	}
}
