package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"fieldops_backend/platform/config"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler handles webhook HTTP requests.
type Handler struct {
	service *Service
	cfg     config.WebhookConfig
	val     *validator.Validator
	log     *logger.Logger
}

func NewHandler(service *Service, cfg config.WebhookConfig, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{service: service, cfg: cfg, val: val, log: log}
}

// HandleLeadCapture processes a signed lead-gen capture.
// POST /api/v1/webhook/leads
//
// Invalid signatures are acknowledged with 200 and dropped: returning an
// error would make the provider retry a payload that will never verify,
// and the signature failure is already logged for operators.
func (h *Handler) HandleLeadCapture(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"received": true, "processed": false})
		return
	}

	if !VerifySignature(h.cfg.GetLeadWebhookSecret(), body, c.GetHeader(SignatureHeader)) {
		h.log.Warn("webhook signature verification failed", "ip", c.ClientIP())
		c.JSON(http.StatusOK, gin.H{"received": true, "processed": false})
		return
	}

	var payload LeadPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.log.Warn("webhook payload not parseable", "error", err)
		c.JSON(http.StatusOK, gin.H{"received": true, "processed": false})
		return
	}
	if err := h.val.Struct(payload); err != nil {
		h.log.Warn("webhook payload failed validation", "error", err)
		c.JSON(http.StatusOK, gin.H{"received": true, "processed": false})
		return
	}

	lead, err := h.service.CaptureLead(c.Request.Context(), payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"received": true, "processed": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "processed": true, "leadId": lead.ID})
}

// InboundSMSPayload is the SMS provider's inbound message callback.
type InboundSMSPayload struct {
	From string `json:"from" validate:"required"`
	Body string `json:"body" validate:"required"`
}

// HandleInboundSMS processes an inbound customer SMS.
// POST /api/v1/webhook/sms/inbound
//
// Always acknowledges 200 so the provider does not redeliver.
func (h *Handler) HandleInboundSMS(c *gin.Context) {
	var payload InboundSMSPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.log.Warn("inbound sms payload not parseable", "error", err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if err := h.val.Struct(payload); err != nil {
		h.log.Warn("inbound sms payload failed validation", "error", err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	h.service.HandleInboundSMS(c.Request.Context(), payload.From, payload.Body)
	c.JSON(http.StatusOK, gin.H{"received": true})
}
