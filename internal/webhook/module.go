package webhook

import (
	"fieldops_backend/internal/events"
	apphttp "fieldops_backend/internal/http"
	"fieldops_backend/platform/config"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/validator"
)

// Module is the ingress bounded context module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule wires the webhook service and handler.
func NewModule(leads LeadCreator, inbound InboundHandler, cfg config.WebhookConfig, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	service := NewService(leads, inbound, bus, log)
	return &Module{handler: NewHandler(service, cfg, val, log)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the public ingress routes. Both endpoints
// authenticate by payload (signature or provider callback), not JWT.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/webhook")
	group.POST("/leads", m.handler.HandleLeadCapture)
	group.POST("/sms/inbound", m.handler.HandleInboundSMS)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
