// Package cron exposes the batch trigger endpoints used by external
// schedulers. All routes sit behind the shared-secret cron guard.
package cron

import (
	"context"
	"net/http"

	apphttp "fieldops_backend/internal/http"
	"fieldops_backend/internal/leads/domain"
	"fieldops_backend/internal/outreach"
	"fieldops_backend/platform/httpkit"
	"fieldops_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// OutreachRunner runs one due-outreach batch. Satisfied by outreach.Service.
type OutreachRunner interface {
	RunDueOutreach(ctx context.Context, channel domain.Channel, limit int) (outreach.BatchResult, error)
}

// Module is the cron bounded context module implementing http.Module.
type Module struct {
	runner OutreachRunner
	log    *logger.Logger
}

func NewModule(runner OutreachRunner, log *logger.Logger) *Module {
	return &Module{runner: runner, log: log}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "cron"
}

// RegisterRoutes mounts the batch triggers on the cron-guarded group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Cron.POST("/outreach/sms", m.runBatch(domain.ChannelSMS))
	ctx.Cron.POST("/outreach/voice", m.runBatch(domain.ChannelCall))
}

func (m *Module) runBatch(channel domain.Channel) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := m.runner.RunDueOutreach(c.Request.Context(), channel, 0)
		if err != nil {
			m.log.Error("outreach batch failed", "channel", channel, "error", err)
			httpkit.Error(c, http.StatusInternalServerError, "batch run failed", nil)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
