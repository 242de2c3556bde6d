// Package handler exposes the operator-facing lead endpoints: manual
// capture, assignment triggering, return-to-pool, and transcript review.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"fieldops_backend/internal/assignment"
	"fieldops_backend/internal/conversation"
	"fieldops_backend/internal/events"
	"fieldops_backend/internal/leads/domain"
	"fieldops_backend/internal/leads/repository"
	"fieldops_backend/platform/apperr"
	"fieldops_backend/platform/httpkit"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/phone"
	"fieldops_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LeadStore is the slice of the lead repository the operator endpoints use.
// Satisfied by repository.Repository.
type LeadStore interface {
	Create(ctx context.Context, params repository.CreateParams) (*domain.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error)
	ReturnToPool(ctx context.Context, id uuid.UUID) error
}

// Assigner triggers the assignment engine. Satisfied by assignment.Service.
type Assigner interface {
	Assign(ctx context.Context, leadID uuid.UUID, kind domain.AssigneeKind) (assignment.Result, error)
}

// ConversationReader loads transcripts for review.
type ConversationReader interface {
	GetLatestByLeadID(ctx context.Context, leadID uuid.UUID) (*conversation.Conversation, error)
}

// InboundSimulator feeds a message into the conversation state machine as if
// it arrived from the provider. Satisfied by conversation.Service.
type InboundSimulator interface {
	HandleInbound(ctx context.Context, fromPhone, body string) error
}

// Handler handles operator lead requests.
type Handler struct {
	repo          LeadStore
	assigner      Assigner
	conversations ConversationReader
	inbound       InboundSimulator
	bus           events.Bus
	val           *validator.Validator
	log           *logger.Logger
}

func New(repo LeadStore, assigner Assigner, conversations ConversationReader, inbound InboundSimulator, bus events.Bus, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{
		repo:          repo,
		assigner:      assigner,
		conversations: conversations,
		inbound:       inbound,
		bus:           bus,
		val:           val,
		log:           log,
	}
}

// CreateLeadRequest is the manual lead capture body.
type CreateLeadRequest struct {
	FirstName     string `json:"firstName" validate:"required,min=1,max=100"`
	LastName      string `json:"lastName" validate:"max=100"`
	Phone         string `json:"phone" validate:"required,min=7,max=20"`
	Email         string `json:"email" validate:"omitempty,email"`
	Street        string `json:"street" validate:"max=200"`
	City          string `json:"city" validate:"max=100"`
	State         string `json:"state" validate:"max=50"`
	Zip           string `json:"zip" validate:"required,min=5,max=10"`
	Source        string `json:"source" validate:"max=100"`
	ScheduleTouch bool   `json:"scheduleTouch"`
}

// HandleCreate creates a lead manually.
// POST /api/v1/leads
func (h *Handler) HandleCreate(c *gin.Context) {
	var req CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", gin.H{"detail": err.Error()})
		return
	}

	params := repository.CreateParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     phone.NormalizeE164(req.Phone),
		Street:    req.Street,
		City:      req.City,
		State:     req.State,
		Zip:       req.Zip,
	}
	if req.Email != "" {
		params.Email = &req.Email
	}
	if req.Source != "" {
		params.Source = &req.Source
	}
	if req.ScheduleTouch {
		now := time.Now()
		callAt := now.Add(5 * time.Minute)
		params.ScheduledSMSAt = &now
		params.ScheduledCallAt = &callAt
	}

	lead, err := h.repo.Create(c.Request.Context(), params)
	if err != nil {
		h.log.DatabaseError("create lead", err)
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "could not create lead", err))
		return
	}

	if h.bus != nil {
		h.bus.Publish(c.Request.Context(), events.LeadCaptured{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			Phone:     lead.Phone,
			Zip:       lead.Zip,
			Source:    req.Source,
		})
	}

	c.JSON(http.StatusCreated, lead)
}

// HandleGet returns one lead.
// GET /api/v1/leads/:leadId
func (h *Handler) HandleGet(c *gin.Context) {
	id, ok := h.leadID(c)
	if !ok {
		return
	}

	lead, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		httpkit.HandleError(c, apperr.NotFound("lead not found"))
		return
	}
	if err != nil {
		h.log.DatabaseError("get lead", err)
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "could not load lead", err))
		return
	}

	c.JSON(http.StatusOK, lead)
}

// AssignRequest selects the candidate pool for an assignment run.
type AssignRequest struct {
	Kind string `json:"kind" validate:"omitempty,oneof=rep subscriber"`
}

// HandleAssign triggers the assignment engine for one lead.
// POST /api/v1/leads/:leadId/assign
func (h *Handler) HandleAssign(c *gin.Context) {
	id, ok := h.leadID(c)
	if !ok {
		return
	}

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", gin.H{"detail": err.Error()})
		return
	}

	kind := domain.AssigneeRep
	if req.Kind == string(domain.AssigneeSubscriber) {
		kind = domain.AssigneeSubscriber
	}

	result, err := h.assigner.Assign(c.Request.Context(), id, kind)
	if errors.Is(err, repository.ErrNotFound) {
		httpkit.HandleError(c, apperr.NotFound("lead not found"))
		return
	}
	if err != nil {
		h.log.DatabaseError("assign lead", err)
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "assignment failed", err))
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleReturnToPool clears the assignment and returns the lead to the pool.
// POST /api/v1/leads/:leadId/return
func (h *Handler) HandleReturnToPool(c *gin.Context) {
	id, ok := h.leadID(c)
	if !ok {
		return
	}

	err := h.repo.ReturnToPool(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		httpkit.HandleError(c, apperr.NotFound("lead not found"))
		return
	}
	if err != nil {
		h.log.DatabaseError("return lead to pool", err)
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "could not return lead", err))
		return
	}

	h.log.Info("lead returned to pool", "leadId", id)
	c.JSON(http.StatusOK, gin.H{"leadId": id, "status": domain.StatusReturned})
}

// HandleGetConversation returns the latest conversation transcript.
// GET /api/v1/leads/:leadId/conversation
func (h *Handler) HandleGetConversation(c *gin.Context) {
	id, ok := h.leadID(c)
	if !ok {
		return
	}

	conv, err := h.conversations.GetLatestByLeadID(c.Request.Context(), id)
	if errors.Is(err, conversation.ErrNotFound) {
		httpkit.HandleError(c, apperr.NotFound("no conversation for lead"))
		return
	}
	if err != nil {
		h.log.DatabaseError("get conversation", err)
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "could not load conversation", err))
		return
	}

	c.JSON(http.StatusOK, conv)
}

// SimulateInboundRequest is the body for the inbound-message simulation.
type SimulateInboundRequest struct {
	Body string `json:"body" validate:"required,max=1600"`
}

// HandleSimulateInbound feeds a message into the lead's active conversation
// exactly as if the provider had delivered it. Ops-only; sits behind JWT auth
// rather than the webhook signature.
// POST /api/v1/leads/:leadId/conversation/simulate
func (h *Handler) HandleSimulateInbound(c *gin.Context) {
	id, ok := h.leadID(c)
	if !ok {
		return
	}

	var req SimulateInboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", gin.H{"detail": err.Error()})
		return
	}

	lead, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		httpkit.HandleError(c, apperr.NotFound("lead not found"))
		return
	}
	if err != nil {
		h.log.DatabaseError("get lead", err)
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "could not load lead", err))
		return
	}
	if lead.Phone == "" {
		httpkit.HandleError(c, apperr.BadRequest("lead has no phone number"))
		return
	}

	if err := h.inbound.HandleInbound(c.Request.Context(), lead.Phone, req.Body); err != nil {
		httpkit.HandleError(c, err)
		return
	}

	h.log.Info("inbound message simulated", "leadId", id)
	c.JSON(http.StatusOK, gin.H{"leadId": id, "simulated": true})
}

func (h *Handler) leadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead ID", nil)
		return uuid.Nil, false
	}
	return id, true
}
