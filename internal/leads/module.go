// Package leads is the lead bounded context module: operator endpoints plus
// the event subscription that kicks off assignment on capture.
package leads

import (
	"context"

	"fieldops_backend/internal/events"
	apphttp "fieldops_backend/internal/http"
	"fieldops_backend/internal/leads/domain"
	"fieldops_backend/internal/leads/handler"
	"fieldops_backend/internal/leads/repository"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/validator"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule wires the operator handler and subscribes the assignment engine
// to lead capture events.
func NewModule(repo *repository.Repository, assigner handler.Assigner, conversations handler.ConversationReader, inbound handler.InboundSimulator, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	h := handler.New(repo, assigner, conversations, inbound, bus, val, log)

	if bus != nil {
		bus.Subscribe("leads.captured", events.HandlerFunc(func(ctx context.Context, event events.Event) error {
			captured, ok := event.(events.LeadCaptured)
			if !ok {
				return nil
			}
			if _, err := assigner.Assign(ctx, captured.LeadID, domain.AssigneeRep); err != nil {
				log.Error("assignment on capture failed", "leadId", captured.LeadID, "error", err)
			}
			return nil
		}))
	}

	return &Module{handler: h}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// RegisterRoutes mounts the operator routes on the authenticated group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/leads")
	group.POST("", m.handler.HandleCreate)
	group.GET("/:leadId", m.handler.HandleGet)
	group.POST("/:leadId/assign", m.handler.HandleAssign)
	group.POST("/:leadId/return", m.handler.HandleReturnToPool)
	group.GET("/:leadId/conversation", m.handler.HandleGetConversation)
	group.POST("/:leadId/conversation/simulate", m.handler.HandleSimulateInbound)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
